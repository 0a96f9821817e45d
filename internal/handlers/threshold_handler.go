package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"plant-monitor-service/internal/metrics"
	"plant-monitor-service/internal/models"
	"plant-monitor-service/internal/services"
	"plant-monitor-service/internal/utils"

	"github.com/gofiber/fiber/v3"
)

type ThresholdHandler struct {
	editorService *services.ThresholdEditorService
	auth          *OperatorAuth
}

// NewThresholdHandler guards the draft and commit routes with auth; nil
// leaves them open.
func NewThresholdHandler(editorService *services.ThresholdEditorService, auth *OperatorAuth) *ThresholdHandler {
	return &ThresholdHandler{editorService: editorService, auth: auth}
}

func (h *ThresholdHandler) Register(app *fiber.App) {
	thresholdGr := app.Group("plant/public/api/v2").Group("/thresholds")

	requireOperator := h.auth.RequireOperator()

	thresholdGr.Get("/", h.GetSettings)
	thresholdGr.Get("/draft", h.GetDraft)
	thresholdGr.Post("/edit/:field", requireOperator, h.BeginEdit)
	thresholdGr.Put("/draft", requireOperator, h.SetDraftValue)
	thresholdGr.Post("/commit", requireOperator, h.Commit)
	thresholdGr.Post("/cancel", requireOperator, h.Cancel)
	thresholdGr.Post("/reset", requireOperator, h.Reset)
}

type DraftValueRequest struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

func (h *ThresholdHandler) GetSettings(c fiber.Ctx) error {
	return c.Status(http.StatusOK).JSON(utils.CreateSuccessResponse(h.editorService.Settings()))
}

func (h *ThresholdHandler) GetDraft(c fiber.Ctx) error {
	draft := h.editorService.Draft()
	if draft == nil {
		return c.Status(http.StatusNotFound).JSON(utils.CreateErrorResponse("NO_ACTIVE_EDIT", services.ErrNoActiveEdit.Error()))
	}
	return c.Status(http.StatusOK).JSON(utils.CreateSuccessResponse(draft))
}

func (h *ThresholdHandler) BeginEdit(c fiber.Ctx) error {
	draft, err := h.editorService.BeginEdit(models.ThresholdField(c.Params("field")))
	if err != nil {
		return c.Status(http.StatusBadRequest).JSON(utils.CreateErrorResponse("UNKNOWN_FIELD", err.Error()))
	}
	return c.Status(http.StatusOK).JSON(utils.CreateSuccessResponse(draft))
}

func (h *ThresholdHandler) SetDraftValue(c fiber.Ctx) error {
	var req DraftValueRequest
	if err := c.Bind().Body(&req); err != nil {
		slog.Error("error parsing draft value request", "error", err)
		return c.Status(http.StatusBadRequest).JSON(utils.CreateErrorResponse("INVALID_REQUEST", "Invalid request body"))
	}

	if err := h.editorService.SetDraftValue(req.Key, req.Value); err != nil {
		if errors.Is(err, services.ErrNoActiveEdit) {
			return c.Status(http.StatusConflict).JSON(utils.CreateErrorResponse("NO_ACTIVE_EDIT", err.Error()))
		}
		return c.Status(http.StatusBadRequest).JSON(utils.CreateErrorResponse("INVALID_KEY", err.Error()))
	}
	return c.Status(http.StatusOK).JSON(utils.CreateSuccessResponse(h.editorService.Draft()))
}

func (h *ThresholdHandler) Commit(c fiber.Ctx) error {
	settings, err := h.editorService.Commit(c.Context())
	if err != nil {
		switch {
		case errors.Is(err, services.ErrNoActiveEdit):
			metrics.ThresholdCommits.WithLabelValues("no_edit").Inc()
			return c.Status(http.StatusConflict).JSON(utils.CreateErrorResponse("NO_ACTIVE_EDIT", err.Error()))
		case errors.Is(err, services.ErrInvalidRange):
			metrics.ThresholdCommits.WithLabelValues("invalid").Inc()
			return c.Status(http.StatusBadRequest).JSON(utils.CreateErrorResponse("INVALID_RANGE", err.Error()))
		default:
			metrics.ThresholdCommits.WithLabelValues("failed").Inc()
			slog.Error("threshold commit failed", "error", err)
			return c.Status(http.StatusBadGateway).JSON(utils.CreateUpstreamErrorResponse("COMMIT_FAILED", "Could not save thresholds", err))
		}
	}
	metrics.ThresholdCommits.WithLabelValues("ok").Inc()
	slog.Info("thresholds committed", "operator", operatorFrom(c))
	return c.Status(http.StatusOK).JSON(utils.CreateSuccessResponse(settings))
}

func (h *ThresholdHandler) Cancel(c fiber.Ctx) error {
	h.editorService.Cancel()
	return c.Status(http.StatusOK).JSON(utils.CreateSuccessResponse(h.editorService.Settings()))
}

func (h *ThresholdHandler) Reset(c fiber.Ctx) error {
	settings, err := h.editorService.Reset(c.Context())
	if err != nil {
		metrics.ThresholdCommits.WithLabelValues("failed").Inc()
		slog.Error("threshold reset failed", "error", err)
		return c.Status(http.StatusBadGateway).JSON(utils.CreateUpstreamErrorResponse("RESET_FAILED", "Could not reset thresholds", err))
	}
	metrics.ThresholdCommits.WithLabelValues("reset").Inc()
	slog.Info("thresholds reset to defaults", "operator", operatorFrom(c))
	return c.Status(http.StatusOK).JSON(utils.CreateSuccessResponse(settings))
}
