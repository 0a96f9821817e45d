package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"plant-monitor-service/internal/metrics"
	"plant-monitor-service/internal/services"
	"plant-monitor-service/internal/utils"

	"github.com/gofiber/fiber/v3"
)

type ControlHandler struct {
	controlService *services.ControlSettingsService
	auth           *OperatorAuth
}

func NewControlHandler(controlService *services.ControlSettingsService, auth *OperatorAuth) *ControlHandler {
	return &ControlHandler{controlService: controlService, auth: auth}
}

func (h *ControlHandler) Register(app *fiber.App) {
	controlGr := app.Group("plant/public/api/v2").Group("/controls")
	requireOperator := h.auth.RequireOperator()

	controlGr.Get("/", h.GetControls)
	controlGr.Put("/", requireOperator, h.SaveControls)
	controlGr.Post("/reset", requireOperator, h.ResetControls)
}

func (h *ControlHandler) GetControls(c fiber.Ctx) error {
	return c.Status(http.StatusOK).JSON(utils.CreateSuccessResponse(h.controlService.Settings()))
}

// SaveControls accepts a full or partial controls document; absent values
// keep their current setting.
func (h *ControlHandler) SaveControls(c fiber.Ctx) error {
	var patch map[string]any
	if err := c.Bind().Body(&patch); err != nil {
		slog.Error("error parsing control settings request", "error", err)
		return c.Status(http.StatusBadRequest).JSON(utils.CreateErrorResponse("INVALID_REQUEST", "Invalid request body"))
	}

	settings, err := h.controlService.Update(c.Context(), patch)
	if err != nil {
		if errors.Is(err, services.ErrInvalidControls) {
			metrics.ControlSaves.WithLabelValues("invalid").Inc()
			return c.Status(http.StatusBadRequest).JSON(utils.CreateErrorResponse("INVALID_CONTROLS", err.Error()))
		}
		metrics.ControlSaves.WithLabelValues("failed").Inc()
		slog.Error("control settings save failed", "error", err)
		return c.Status(http.StatusBadGateway).JSON(utils.CreateUpstreamErrorResponse("SAVE_FAILED", "Could not save control settings", err))
	}

	metrics.ControlSaves.WithLabelValues("ok").Inc()
	slog.Info("control settings saved", "operator", operatorFrom(c))
	return c.Status(http.StatusOK).JSON(utils.CreateSuccessResponse(settings))
}

func (h *ControlHandler) ResetControls(c fiber.Ctx) error {
	settings, err := h.controlService.Reset(c.Context())
	if err != nil {
		metrics.ControlSaves.WithLabelValues("failed").Inc()
		slog.Error("control settings reset failed", "error", err)
		return c.Status(http.StatusBadGateway).JSON(utils.CreateUpstreamErrorResponse("RESET_FAILED", "Could not reset control settings", err))
	}

	metrics.ControlSaves.WithLabelValues("reset").Inc()
	slog.Info("control settings reset to defaults", "operator", operatorFrom(c))
	return c.Status(http.StatusOK).JSON(utils.CreateSuccessResponse(settings))
}
