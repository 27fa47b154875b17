package main

import (
	"context"
	"os"
	"time"

	cli "github.com/urfave/cli/v3"

	"github.com/homemesh/onboard/pkg/cmd"
	"github.com/homemesh/onboard/pkg/log"
	"github.com/homemesh/onboard/pkg/otelhelper"
)

const defaultPort = 9091

func main() {
	logger := log.WithModule("api")

	command := &cli.Command{
		Name:                  "onboard-api",
		Usage:                 "Manage device onboarding flows and discovery",
		EnableShellCompletion: true,
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Usage:   "Port to run the API server on",
				Value:   defaultPort,
				Sources: cli.EnvVars("PORT"),
			},
			&cli.StringFlag{
				Name:     "database-url",
				Usage:    "Database connection URL for persistence",
				Required: true,
				Sources:  cli.EnvVars("DATABASE_URL"),
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level (debug, info, warn, error)",
				Value:   "info",
				Sources: cli.EnvVars("LOG_LEVEL"),
			},
			&cli.StringFlag{
				Name:    "event-bus",
				Usage:   "Event bus provider (gochannel, kafka)",
				Value:   "gochannel",
				Sources: cli.EnvVars("EVENT_BUS"),
			},
			&cli.StringFlag{
				Name:    "kafka-brokers",
				Usage:   "Comma-separated Kafka broker list",
				Sources: cli.EnvVars("KAFKA_BROKERS"),
			},
			&cli.StringFlag{
				Name:    "redis-url",
				Usage:   "Redis URL for the shared discovery cache",
				Sources: cli.EnvVars("REDIS_URL"),
			},
			&cli.DurationFlag{
				Name:    "discovery-cache-ttl",
				Usage:   "How long discovery results stay fresh",
				Value:   5 * time.Minute,
				Sources: cli.EnvVars("DISCOVERY_CACHE_TTL"),
			},
			&cli.StringFlag{
				Name:    "discovery-refresh-schedule",
				Usage:   "Cron expression for background discovery refresh (empty disables it)",
				Sources: cli.EnvVars("DISCOVERY_REFRESH_SCHEDULE"),
			},
			&cli.StringFlag{
				Name:    "hub-url",
				Usage:   "Base URL of the hub device state API",
				Sources: cli.EnvVars("HUB_URL"),
			},
			&cli.StringFlag{
				Name:    "hub-token",
				Usage:   "Bearer token for the hub device state API",
				Sources: cli.EnvVars("HUB_TOKEN"),
			},
			&cli.BoolFlag{
				Name:    "tracing",
				Usage:   "Export traces over OTLP",
				Sources: cli.EnvVars("TRACING_ENABLED"),
			},
		},
		Action: func(ctx context.Context, command *cli.Command) error {
			log.Setup(command.String("log-level"))

			logger.InfoContext(ctx, "Initializing Onboard API")

			persistence := cmd.NewPersistence(ctx, logger, command.String("database-url"))
			defer func() {
				if err := persistence.Close(ctx); err != nil {
					logger.ErrorContext(ctx, "Failed to close persistence", "error", err)
				}
			}()

			eventBus := cmd.NewEventBus(command.String("event-bus"), command.String("kafka-brokers"), logger)
			defer func() {
				if err := eventBus.Close(); err != nil {
					logger.ErrorContext(ctx, "Failed to close event bus", "error", err)
				}
			}()

			busSubscriber := cmd.NewBusSubscriber(command.String("event-bus"), command.String("kafka-brokers"), logger)

			tracer := otelhelper.NoopTracer()

			if command.Bool("tracing") {
				var err error

				tracer, err = otelhelper.NewTracer(ctx, "onboard-api")
				if err != nil {
					return err
				}
			}

			api := NewAPI(
				logger,
				persistence,
				cmd.NewFlowRegistry(logger, persistence),
				cmd.NewProtocolRegistry(logger, command.String("hub-url"), command.String("hub-token"), busSubscriber),
				eventBus,
				cmd.NewDiscoveryCache(logger, command.String("redis-url"), discoveryCacheTTL(command.Duration("discovery-cache-ttl"))),
				tracer,
				command.String("discovery-refresh-schedule"),
			)

			err := api.Start(ctx, command.Int("port"))
			if err != nil {
				logger.ErrorContext(ctx, "Failed to start API server", "error", err)
			}

			return nil
		},
	}

	err := command.Run(context.Background(), os.Args)
	if err != nil {
		panic(err)
	}
}
