// Package main provides the onboarding API server implementation.
package main

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/healthcheck"
	"github.com/gofiber/fiber/v3/middleware/logger"
	"go.opentelemetry.io/otel/trace"

	"github.com/homemesh/onboard/pkg/discovery"
	"github.com/homemesh/onboard/pkg/eventbus"
	"github.com/homemesh/onboard/pkg/flow"
	"github.com/homemesh/onboard/pkg/options"
	"github.com/homemesh/onboard/pkg/persistence"
	"github.com/homemesh/onboard/pkg/services"
	"github.com/homemesh/onboard/pkg/web"
)

type API struct {
	logger           *slog.Logger
	persistence      persistence.Persistence
	flowRegistry     *flow.Registry
	protocolRegistry *discovery.HandlerRegistry
	eventBus         eventbus.EventBus
	cache            discovery.Cache
	tracer           trace.Tracer
	refreshSchedule  string
	validate         *validator.Validate

	refresher *discovery.Refresher
}

func NewAPI(
	logger *slog.Logger,
	persistence persistence.Persistence,
	flowRegistry *flow.Registry,
	protocolRegistry *discovery.HandlerRegistry,
	eventBus eventbus.EventBus,
	cache discovery.Cache,
	tracer trace.Tracer,
	refreshSchedule string,
) *API {
	return &API{
		logger:           logger,
		persistence:      persistence,
		flowRegistry:     flowRegistry,
		protocolRegistry: protocolRegistry,
		eventBus:         eventBus,
		cache:            cache,
		tracer:           tracer,
		refreshSchedule:  refreshSchedule,
		validate:         validator.New(validator.WithRequiredStructEnabled()),
	}
}

func (a *API) App() *fiber.App {
	aggregator := discovery.NewAggregator(a.protocolRegistry, a.cache, a.logger, a.tracer)

	definitionService := services.NewDefinition(a.persistence, a.eventBus, a.logger)
	flowService := services.NewFlow(a.flowRegistry, options.NewResolver(a.logger), a.persistence, a.eventBus, a.logger)
	discoveryService := services.NewDiscovery(aggregator, a.persistence, a.eventBus, a.logger)

	if a.refreshSchedule != "" {
		a.refresher = discovery.NewRefresher(aggregator, a.logger)
		discoveryService.TrackWith(a.refresher)
	}

	handlers := web.NewAPIHandlers(definitionService, flowService, discoveryService, a.validate)

	app := fiber.New()
	app.Use(cors.New())
	app.Use(logger.New(logger.Config{
		DisableColors: true,
	}))

	app.Get(healthcheck.DefaultLivenessEndpoint, healthcheck.NewHealthChecker())
	app.Get(healthcheck.DefaultReadinessEndpoint, healthcheck.NewHealthChecker())

	app.Get("/", func(c fiber.Ctx) error {
		return c.SendString("Onboard API")
	})

	d := app.Group("/definitions")
	d.Get("/", handlers.ListDefinitions)
	d.Post("/", handlers.CreateDefinition)
	d.Post("/validate", handlers.ValidateDefinition)
	d.Get("/:id", handlers.GetDefinition)
	d.Patch("/:id", handlers.UpdateDefinition)
	d.Delete("/:id", handlers.DeleteDefinition)
	d.Post("/:id/activate", handlers.ActivateDefinition)

	f := app.Group("/flows")
	f.Post("/initial-step", handlers.InitialStep)
	f.Post("/next-step", handlers.NextStep)
	f.Post("/validate-step", handlers.ValidateStep)
	f.Post("/options", handlers.ResolveOptions)

	i := app.Group("/integrations")
	i.Get("/:integration/definition", handlers.GetActiveDefinition)
	i.Get("/:integration/discovery/protocols", handlers.DiscoveryProtocols)
	i.Post("/:integration/discovery", handlers.Discover)
	i.Post("/:integration/discovery/refresh", handlers.RefreshDiscovery)

	app.Get("/health", handlers.HealthCheck)

	return app
}

func (a *API) Start(ctx context.Context, port int) error {
	app := a.App()

	if a.refresher != nil {
		if err := a.refresher.Start(ctx, a.refreshSchedule); err != nil {
			return err
		}

		defer a.refresher.Stop()
	}

	return app.Listen(":" + strconv.Itoa(port))
}

// discoveryCacheTTL guards against a zero flag value.
func discoveryCacheTTL(ttl time.Duration) time.Duration {
	if ttl <= 0 {
		return 5 * time.Minute
	}

	return ttl
}
