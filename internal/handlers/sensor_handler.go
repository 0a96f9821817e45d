package handlers

import (
	"context"
	"net/http"
	"strconv"

	"plant-monitor-service/internal/models"
	"plant-monitor-service/internal/services"
	"plant-monitor-service/internal/utils"

	"github.com/gofiber/fiber/v3"
)

// TelemetryHistory serves stored snapshots, newest first.
type TelemetryHistory interface {
	QueryHistory(ctx context.Context, minutes, limit int) ([]models.SensorSnapshot, error)
}

type SensorHandler struct {
	syncService  *services.SensorSyncService
	alertService *services.AlertService
	history      TelemetryHistory
}

func NewSensorHandler(syncService *services.SensorSyncService, alertService *services.AlertService, history TelemetryHistory) *SensorHandler {
	return &SensorHandler{
		syncService:  syncService,
		alertService: alertService,
		history:      history,
	}
}

func (h *SensorHandler) Register(app *fiber.App) {
	sensorGr := app.Group("plant/public/api/v2").Group("/sensors")

	sensorGr.Get("/", h.GetSensors)
	sensorGr.Get("/history", h.GetHistory)
}

type sensorsResponse struct {
	models.SyncState
	Readings []string            `json:"readings"`
	Alerts   []models.AlertEvent `json:"alerts"`
}

func (h *SensorHandler) GetSensors(c fiber.Ctx) error {
	state := h.syncService.State()
	resp := sensorsResponse{
		SyncState: state,
		Readings:  state.Snapshot.Lines(),
		Alerts:    []models.AlertEvent{},
	}
	if h.alertService != nil {
		resp.Alerts = h.alertService.Recent()
	}
	return c.Status(http.StatusOK).JSON(utils.CreateSuccessResponse(resp))
}

func (h *SensorHandler) GetHistory(c fiber.Ctx) error {
	if h.history == nil {
		return c.Status(http.StatusServiceUnavailable).JSON(utils.CreateErrorResponse("HISTORY_DISABLED", "Telemetry history is not configured"))
	}

	minutes, err := positiveQuery(c, "minutes", 0)
	if err != nil {
		return c.Status(http.StatusBadRequest).JSON(utils.CreateErrorResponse("INVALID_MINUTES", err.Error()))
	}
	limit, err := positiveQuery(c, "limit", 0)
	if err != nil {
		return c.Status(http.StatusBadRequest).JSON(utils.CreateErrorResponse("INVALID_LIMIT", err.Error()))
	}

	snapshots, err := h.history.QueryHistory(c.Context(), minutes, limit)
	if err != nil {
		return c.Status(http.StatusBadGateway).JSON(utils.CreateUpstreamErrorResponse("HISTORY_FAILED", "Could not load telemetry history", err))
	}
	return c.Status(http.StatusOK).JSON(utils.CreateListResponse(snapshots))
}

func positiveQuery(c fiber.Ctx, key string, def int) (int, error) {
	raw := c.Query(key)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return 0, fiber.NewError(http.StatusBadRequest, key+" must be a positive integer")
	}
	return n, nil
}
