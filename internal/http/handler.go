package http

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gocv.io/x/gocv"

	"eagleeye/internal/config"
	"eagleeye/internal/repository"
	"eagleeye/internal/service"
)

const maxImageBytes = 16 << 20

type Handler struct {
	gateService *service.GateService
	config      *config.Config
	httpClient  *http.Client
	log         zerolog.Logger
}

func NewHandler(
	gateService *service.GateService,
	cfg *config.Config,
	log zerolog.Logger,
) *Handler {
	return &Handler{
		gateService: gateService,
		config:      cfg,
		httpClient:  &http.Client{Timeout: 10 * time.Second},
		log:         log,
	}
}

func (h *Handler) Register(r *gin.Engine, authMiddleware gin.HandlerFunc) {
	r.GET("/healthz", h.health)

	// Public endpoints
	public := r.Group("/api/v1")
	{
		public.POST("/detect", h.detect)
		public.GET("/detections", h.listDetections)
		public.GET("/events", h.listEvents)
		public.GET("/alerts", h.listAlerts)
		public.POST("/validate", h.validatePlate)
		public.POST("/decide", h.decidePlate)
	}

	// Vehicle administration and retention require a token
	protected := r.Group("/api/v1")
	protected.Use(authMiddleware)
	{
		protected.POST("/vehicles", h.createVehicle)
		protected.GET("/vehicles/:plate", h.getVehicle)
		protected.DELETE("/detections", h.purgeDetections)
	}
}

func (h *Handler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy"})
}

// detect accepts a frame as an uploaded file or an image URL, runs the full
// pipeline and records the outcome. "No plate in this frame" is a 404, not
// a server error.
func (h *Handler) detect(c *gin.Context) {
	if c.PostForm("use_camera") == "true" {
		c.JSON(http.StatusNotImplemented, errorResponse("camera capture not implemented"))
		return
	}

	data, source, err := h.readImage(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse(err.Error()))
		return
	}

	frame, err := gocv.IMDecode(data, gocv.IMReadColor)
	if err != nil || frame.Empty() {
		c.JSON(http.StatusBadRequest, errorResponse("invalid image"))
		return
	}
	defer frame.Close()

	imagePath := h.saveSnapshot(data)

	h.log.Info().Str("source", source).Int("bytes", len(data)).Msg("processing frame")

	result, err := h.gateService.ProcessFrame(c.Request.Context(), frame, imagePath)
	if err != nil {
		if errors.Is(err, service.ErrNoPlate) {
			c.JSON(http.StatusNotFound, errorResponse("no license plate detected"))
			return
		}
		h.log.Error().Err(err).Msg("failed to process frame")
		c.JSON(http.StatusInternalServerError, errorResponse("internal error"))
		return
	}

	c.JSON(http.StatusCreated, successResponse(result))
}

// readImage pulls the frame bytes from the multipart upload or the
// image_url form field, in that priority order.
func (h *Handler) readImage(c *gin.Context) ([]byte, string, error) {
	if file, err := c.FormFile("file"); err == nil && file != nil {
		f, err := file.Open()
		if err != nil {
			return nil, "", fmt.Errorf("open upload: %w", err)
		}
		defer f.Close()
		data, err := io.ReadAll(io.LimitReader(f, maxImageBytes))
		if err != nil {
			return nil, "", fmt.Errorf("read upload: %w", err)
		}
		return data, "upload:" + file.Filename, nil
	}

	if imageURL := strings.TrimSpace(c.PostForm("image_url")); imageURL != "" {
		data, err := h.fetchImage(imageURL)
		if err != nil {
			return nil, "", err
		}
		return data, "url:" + imageURL, nil
	}

	return nil, "", errors.New("file or image_url is required")
}

func (h *Handler) fetchImage(imageURL string) ([]byte, error) {
	if !strings.HasPrefix(imageURL, "http://") && !strings.HasPrefix(imageURL, "https://") {
		return nil, errors.New("image_url must be http or https")
	}
	resp, err := h.httpClient.Get(imageURL)
	if err != nil {
		return nil, fmt.Errorf("fetch image: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch image: unexpected status %d", resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxImageBytes))
	if err != nil {
		return nil, fmt.Errorf("read image: %w", err)
	}
	return data, nil
}

// saveSnapshot stores the raw frame when a snapshot directory is configured.
// Snapshot failures are logged and ignored, the pipeline result matters more.
func (h *Handler) saveSnapshot(data []byte) string {
	dir := h.config.Snapshots.Dir
	if dir == "" {
		return ""
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		h.log.Warn().Err(err).Str("dir", dir).Msg("cannot create snapshot directory")
		return ""
	}
	path := filepath.Join(dir, uuid.New().String()+".jpg")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		h.log.Warn().Err(err).Str("path", path).Msg("cannot write snapshot")
		return ""
	}
	return path
}

func (h *Handler) listDetections(c *gin.Context) {
	limit := queryInt(c, "limit", 50)
	offset := queryInt(c, "offset", 0)

	detections, err := h.gateService.ListDetections(c.Request.Context(), limit, offset)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, successResponse(detections))
}

func (h *Handler) listEvents(c *gin.Context) {
	eventType := strings.TrimSpace(c.Query("event_type"))
	limit := queryInt(c, "limit", 50)
	offset := queryInt(c, "offset", 0)

	events, err := h.gateService.ListEvents(c.Request.Context(), eventType, limit, offset)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, successResponse(events))
}

func (h *Handler) listAlerts(c *gin.Context) {
	hours := queryInt(c, "hours", 24)
	limit := queryInt(c, "limit", 100)

	alerts, err := h.gateService.ListAlerts(c.Request.Context(), hours, limit)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, successResponse(alerts))
}

// purgeDetections removes detections and events older than the retention
// window given in days.
func (h *Handler) purgeDetections(c *gin.Context) {
	days := queryInt(c, "days", 30)

	deleted, err := h.gateService.PurgeDetections(c.Request.Context(), days)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, successResponse(gin.H{"deleted": deleted}))
}

type plateRequest struct {
	PlateText string `json:"plate_text" binding:"required"`
}

func (h *Handler) validatePlate(c *gin.Context) {
	var req plateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse(err.Error()))
		return
	}
	c.JSON(http.StatusOK, successResponse(h.gateService.ValidatePlate(req.PlateText)))
}

func (h *Handler) decidePlate(c *gin.Context) {
	var req plateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse(err.Error()))
		return
	}
	validation, decision := h.gateService.DecidePlate(c.Request.Context(), req.PlateText)
	c.JSON(http.StatusOK, gin.H{
		"validation": validation,
		"decision":   decision,
	})
}

type vehicleRequest struct {
	PlateNumber   string  `json:"plate_number" binding:"required"`
	VehicleType   *string `json:"vehicle_type"`
	OwnerName     *string `json:"owner_name"`
	IsAuthorized  bool    `json:"is_authorized"`
	IsBlacklisted bool    `json:"is_blacklisted"`
	Notes         *string `json:"notes"`
}

func (h *Handler) createVehicle(c *gin.Context) {
	var req vehicleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse(err.Error()))
		return
	}

	vehicle := &repository.Vehicle{
		PlateNumber:   req.PlateNumber,
		VehicleType:   req.VehicleType,
		OwnerName:     req.OwnerName,
		IsAuthorized:  req.IsAuthorized,
		IsBlacklisted: req.IsBlacklisted,
		Notes:         req.Notes,
	}
	if err := h.gateService.RegisterVehicle(c.Request.Context(), vehicle); err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusCreated, successResponse(vehicle))
}

func (h *Handler) getVehicle(c *gin.Context) {
	vehicle, err := h.gateService.GetVehicle(c.Request.Context(), c.Param("plate"))
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, successResponse(vehicle))
}

func (h *Handler) handleError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidInput):
		c.JSON(http.StatusBadRequest, errorResponse(err.Error()))
	case errors.Is(err, service.ErrNotFound):
		c.JSON(http.StatusNotFound, errorResponse(err.Error()))
	default:
		h.log.Error().Err(err).Msg("handler error")
		c.JSON(http.StatusInternalServerError, errorResponse("internal error"))
	}
}

func successResponse(data interface{}) gin.H {
	return gin.H{
		"data": data,
	}
}

func errorResponse(message string) gin.H {
	return gin.H{
		"error": message,
	}
}

func queryInt(c *gin.Context, name string, def int) int {
	if raw := c.Query(name); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil {
			return parsed
		}
	}
	return def
}
