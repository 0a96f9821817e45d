package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"plant-monitor-service/internal/client"
	"plant-monitor-service/internal/models"
	"plant-monitor-service/internal/services"
	"plant-monitor-service/internal/utils"

	"github.com/gofiber/fiber/v3"
)

type AnalysisHandler struct {
	analysisService *services.DiseaseAnalysisService
	scanService     *services.PlantScanService
}

func NewAnalysisHandler(analysisService *services.DiseaseAnalysisService, scanService *services.PlantScanService) *AnalysisHandler {
	return &AnalysisHandler{
		analysisService: analysisService,
		scanService:     scanService,
	}
}

func (h *AnalysisHandler) Register(app *fiber.App) {
	publicGr := app.Group("plant/public/api/v2")

	publicGr.Post("/analyze-plant", h.AnalyzePlant)

	analysisGr := publicGr.Group("/analysis")
	analysisGr.Get("/latest", h.GetLatest)
	analysisGr.Get("/history", h.GetHistory)

	publicGr.Get("/scan/next", h.GetNextScan)
}

// AnalyzePlant keeps the flat {error} / {error, kind, details} bodies the
// dashboard expects instead of the shared envelope.
func (h *AnalysisHandler) AnalyzePlant(c fiber.Ctx) error {
	var req models.AnalyzePlantRequest
	if err := c.Bind().Body(&req); err != nil {
		slog.Error("error parsing analyze request", "error", err)
		return c.Status(http.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}
	if strings.TrimSpace(req.Image) == "" {
		return c.Status(http.StatusBadRequest).JSON(fiber.Map{
			"error": "Image is required",
		})
	}

	image, mimeType, err := services.DecodeImageDataURI(req.Image)
	if err != nil {
		return c.Status(http.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	source := models.SourceEndpoint
	if c.Get(client.SourceHeader) == models.SourceScheduled {
		source = models.SourceScheduled
	}

	result, err := h.analysisService.Diagnose(c.Context(), services.DiagnoseRequest{
		Image:    image,
		MIMEType: mimeType,
		Readings: req.SensorReadings,
		Source:   source,
	})
	if err != nil {
		var analysisErr *services.AnalysisError
		if errors.As(err, &analysisErr) {
			return c.Status(http.StatusInternalServerError).JSON(fiber.Map{
				"error":   "Failed to analyze plant image",
				"kind":    analysisErr.Kind,
				"details": analysisErr.Err.Error(),
			})
		}
		if errors.Is(err, services.ErrImageRequired) {
			return c.Status(http.StatusBadRequest).JSON(fiber.Map{
				"error": "Image is required",
			})
		}
		slog.Error("plant analysis failed", "error", err)
		return c.Status(http.StatusInternalServerError).JSON(fiber.Map{
			"error":   "Failed to analyze plant image",
			"kind":    "internal",
			"details": err.Error(),
		})
	}

	return c.Status(http.StatusOK).JSON(models.NewAnalysisResponse(*result))
}

func (h *AnalysisHandler) GetLatest(c fiber.Ctx) error {
	latest, err := h.analysisService.Latest(c.Context())
	if err != nil {
		return c.Status(http.StatusInternalServerError).JSON(utils.CreateUpstreamErrorResponse("FETCH_FAILED", "Could not load latest analysis", err))
	}
	if latest == nil {
		return c.Status(http.StatusNotFound).JSON(utils.CreateErrorResponse("NOT_FOUND", "No analysis has been performed yet"))
	}
	return c.Status(http.StatusOK).JSON(utils.CreateSuccessResponse(models.NewAnalysisResponse(*latest)))
}

func (h *AnalysisHandler) GetHistory(c fiber.Ctx) error {
	limit := 20
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			return c.Status(http.StatusBadRequest).JSON(utils.CreateErrorResponse("INVALID_LIMIT", "limit must be a positive integer"))
		}
		limit = n
	}

	results, err := h.analysisService.History(c.Context(), limit)
	if err != nil {
		return c.Status(http.StatusInternalServerError).JSON(utils.CreateUpstreamErrorResponse("FETCH_FAILED", "Could not load analysis history", err))
	}
	out := make([]models.AnalysisResponse, 0, len(results))
	for _, r := range results {
		out = append(out, models.NewAnalysisResponse(r))
	}
	return c.Status(http.StatusOK).JSON(utils.CreateListResponse(out))
}

func (h *AnalysisHandler) GetNextScan(c fiber.Ctx) error {
	if h.scanService == nil {
		return c.Status(http.StatusServiceUnavailable).JSON(utils.CreateErrorResponse("SCAN_DISABLED", "Scheduled scan is not configured"))
	}
	body := fiber.Map{
		"secondsUntilNext": int64(h.scanService.NextScanIn().Seconds()),
		"intervalSeconds":  int64(h.scanService.Interval().Seconds()),
	}
	if last := h.scanService.LastResult(); last != nil {
		body["lastResult"] = models.NewAnalysisResponse(*last)
	}
	return c.Status(http.StatusOK).JSON(utils.CreateSuccessResponse(body))
}
