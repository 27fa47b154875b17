// Package web provides the HTTP handlers of the onboarding REST API.
package web

import (
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"

	"github.com/homemesh/onboard/pkg/services"
)

type APIHandlers struct {
	definitionService *services.Definition
	flowService       *services.Flow
	discoveryService  *services.Discovery
	validator         *validator.Validate
}

func NewAPIHandlers(
	definitionService *services.Definition,
	flowService *services.Flow,
	discoveryService *services.Discovery,
	validator *validator.Validate,
) *APIHandlers {
	return &APIHandlers{
		definitionService: definitionService,
		flowService:       flowService,
		discoveryService:  discoveryService,
		validator:         validator,
	}
}

// Definition endpoints

func (h *APIHandlers) ListDefinitions(c fiber.Ctx) error {
	integration := c.Query("integration")
	if integration == "" {
		return badRequest(c, "integration query parameter is required")
	}

	definitions, err := h.definitionService.List(c.Context(), integration)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(fiber.Map{
		"integration": integration,
		"definitions": definitions,
	})
}

func (h *APIHandlers) CreateDefinition(c fiber.Ctx) error {
	var req CreateDefinitionRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	created, err := h.definitionService.Create(c.Context(), req.Definition())
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(created)
}

func (h *APIHandlers) GetDefinition(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Definition ID is required")
	}

	def, err := h.definitionService.Get(c.Context(), id)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(def)
}

func (h *APIHandlers) UpdateDefinition(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Definition ID is required")
	}

	var req UpdateDefinitionRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	updated, err := h.definitionService.Update(c.Context(), id, req.Fields())
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(updated)
}

func (h *APIHandlers) DeleteDefinition(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Definition ID is required")
	}

	if err := h.definitionService.Delete(c.Context(), id); err != nil {
		return handleServiceError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

func (h *APIHandlers) ActivateDefinition(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Definition ID is required")
	}

	activated, err := h.definitionService.Activate(c.Context(), id)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(activated)
}

func (h *APIHandlers) ValidateDefinition(c fiber.Ctx) error {
	var req CreateDefinitionRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	issues := h.definitionService.Validate(req.Definition())

	return c.JSON(ValidateDefinitionResponse{
		Valid:  len(issues) == 0,
		Issues: issues,
	})
}

func (h *APIHandlers) GetActiveDefinition(c fiber.Ctx) error {
	integration := c.Params("integration")
	if integration == "" {
		return badRequest(c, "Integration is required")
	}

	def, err := h.definitionService.GetActive(c.Context(), integration)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(def)
}

// Flow endpoints

func (h *APIHandlers) InitialStep(c fiber.Ctx) error {
	var req InitialStepRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	step, def, err := h.flowService.InitialStep(c.Context(), services.DefinitionRef{
		DefinitionID: req.DefinitionID,
		Integration:  req.Integration,
	})
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(StepResponse{
		Step:         step,
		Integration:  def.Integration,
		DefinitionID: def.ID,
	})
}

func (h *APIHandlers) NextStep(c fiber.Ctx) error {
	var req NextStepRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	next, err := h.flowService.NextStep(c.Context(), services.DefinitionRef{
		DefinitionID: req.DefinitionID,
		Integration:  req.Integration,
	}, req.CurrentStep, req.State)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(StepResponse{Step: next})
}

func (h *APIHandlers) ValidateStep(c fiber.Ctx) error {
	var req ValidateStepRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	result, err := h.flowService.ValidateStep(c.Context(), services.DefinitionRef{
		DefinitionID: req.DefinitionID,
		Integration:  req.Integration,
	}, req.StepID, req.Data)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(result)
}

func (h *APIHandlers) ResolveOptions(c fiber.Ctx) error {
	var req ResolveOptionsRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	opts, err := h.flowService.ResolveOptions(c.Context(), services.DefinitionRef{
		DefinitionID: req.DefinitionID,
		Integration:  req.Integration,
	}, req.StepID, req.Field, req.FormValues)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(fiber.Map{"options": opts})
}

// Discovery endpoints

func (h *APIHandlers) DiscoveryProtocols(c fiber.Ctx) error {
	integration := c.Params("integration")
	if integration == "" {
		return badRequest(c, "Integration is required")
	}

	protocols, err := h.discoveryService.SupportedProtocols(c.Context(), integration)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(fiber.Map{
		"integration": integration,
		"protocols":   protocols,
	})
}

func (h *APIHandlers) Discover(c fiber.Ctx) error {
	integration := c.Params("integration")
	if integration == "" {
		return badRequest(c, "Integration is required")
	}

	devices, err := h.discoveryService.Discover(c.Context(), integration)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(DiscoveryResponse{Integration: integration, Devices: devices})
}

func (h *APIHandlers) RefreshDiscovery(c fiber.Ctx) error {
	integration := c.Params("integration")
	if integration == "" {
		return badRequest(c, "Integration is required")
	}

	devices, err := h.discoveryService.Refresh(c.Context(), integration)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(DiscoveryResponse{Integration: integration, Devices: devices})
}

func (h *APIHandlers) HealthCheck(c fiber.Ctx) error {
	repositoryCheck, repOk := h.definitionService.HealthCheck(c.Context())

	status := "unhealthy"
	message := "Onboard API is unhealthy"
	httpStatus := http.StatusInternalServerError

	if repOk {
		status = "healthy"
		message = "Onboard API is healthy"
		httpStatus = http.StatusOK
	}

	return c.Status(httpStatus).JSON(fiber.Map{
		"status":  status,
		"message": message,
		"checkers": fiber.Map{
			"repository": repositoryCheck,
		},
		"timestamp": time.Now().UTC(),
	})
}
