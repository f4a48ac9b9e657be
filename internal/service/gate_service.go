package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"gocv.io/x/gocv"
	"gorm.io/datatypes"

	"eagleeye/internal/domain/anpr"
	"eagleeye/internal/plate"
	"eagleeye/internal/repository"
	"eagleeye/internal/rules"
	"eagleeye/internal/utils"
)

var (
	ErrInvalidInput = errors.New("invalid input")
	ErrNotFound     = errors.New("not found")
	ErrNoPlate      = errors.New("no plate recognized")
)

// Store is the persistence surface the gate service works against.
// *repository.Repository satisfies it in production.
type Store interface {
	FindVehicleByPlate(ctx context.Context, normalized string) (*repository.Vehicle, error)
	UpsertVehicle(ctx context.Context, vehicle *repository.Vehicle) error
	CreateDetection(ctx context.Context, detection *repository.Detection) error
	CreateGateEvent(ctx context.Context, event *repository.GateEvent) error
	ListDetections(ctx context.Context, limit, offset int) ([]repository.Detection, error)
	ListGateEvents(ctx context.Context, eventType string, limit, offset int) ([]repository.GateEvent, error)
	ListAlertsSince(ctx context.Context, since time.Time, limit int) ([]repository.Alert, error)
	DeleteOldDetections(ctx context.Context, days int) (int64, error)
}

// GateService ties recognition, validation, vehicle lookup, decisioning and
// persistence into the end-to-end per-frame operation.
type GateService struct {
	recognition *RecognitionService
	engine      *rules.Engine
	repo        Store
	log         zerolog.Logger
}

func NewGateService(recognition *RecognitionService, engine *rules.Engine, repo Store, log zerolog.Logger) *GateService {
	return &GateService{
		recognition: recognition,
		engine:      engine,
		repo:        repo,
		log:         log,
	}
}

// GateResult is the full outcome of one processed frame.
type GateResult struct {
	DetectionID int64                  `json:"detection_id"`
	EventID     int64                  `json:"event_id"`
	Plate       string                 `json:"plate"`
	Recognition anpr.RecognitionResult `json:"recognition"`
	Validation  anpr.ValidationResult  `json:"validation"`
	Decision    anpr.Decision          `json:"decision"`
}

// ProcessFrame runs the pipeline on a decoded frame and records the
// detection and the resulting event. ErrNoPlate means the frame held no
// recognizable plate; callers treat it as an expected outcome.
func (s *GateService) ProcessFrame(ctx context.Context, frame gocv.Mat, imagePath string) (*GateResult, error) {
	recognized := s.recognition.Recognize(frame)
	if recognized == nil {
		return nil, ErrNoPlate
	}

	validation := plate.Validate(recognized.PlateText)

	vehicle, vehicleInfo, err := s.lookupVehicle(ctx, validation.NormalizedText)
	if err != nil {
		// A lookup failure must not kill the frame: decide without status.
		s.log.Warn().Err(err).Str("plate", validation.NormalizedText).Msg("vehicle lookup failed")
	}

	decision := s.engine.Decide(validation.NormalizedText, validation.IsValid, vehicleInfo)

	detection := &repository.Detection{
		PlateText:  validation.NormalizedText,
		Confidence: recognized.Confidence,
		BBoxX1:     recognized.BBox.X1,
		BBoxY1:     recognized.BBox.Y1,
		BBoxX2:     recognized.BBox.X2,
		BBoxY2:     recognized.BBox.Y2,
		Timestamp:  recognized.Timestamp,
	}
	if vehicle != nil {
		detection.VehicleID = &vehicle.ID
	}
	if imagePath != "" {
		detection.ImagePath = &imagePath
	}
	if meta := detectionMeta(recognized, validation); meta != nil {
		detection.Meta = meta
	}

	if err := s.repo.CreateDetection(ctx, detection); err != nil {
		s.log.Error().Err(err).Str("plate", validation.NormalizedText).Msg("failed to save detection")
		return nil, fmt.Errorf("save detection: %w", err)
	}

	event := &repository.GateEvent{
		DetectionID: &detection.ID,
		VehicleID:   detection.VehicleID,
		EventType:   string(decision.Action),
		Timestamp:   time.Now().UTC(),
	}
	if decision.Description != "" {
		event.Description = &decision.Description
	}
	if decision.RuleName != "" {
		event.RuleName = &decision.RuleName
	}

	if err := s.repo.CreateGateEvent(ctx, event); err != nil {
		s.log.Error().Err(err).Str("plate", validation.NormalizedText).Msg("failed to save gate event")
		return nil, fmt.Errorf("save gate event: %w", err)
	}

	s.log.Info().
		Int64("detection_id", detection.ID).
		Int64("event_id", event.ID).
		Str("plate", validation.NormalizedText).
		Str("action", string(decision.Action)).
		Str("rule", decision.RuleName).
		Float64("confidence", recognized.Confidence).
		Msg("processed frame")

	return &GateResult{
		DetectionID: detection.ID,
		EventID:     event.ID,
		Plate:       validation.NormalizedText,
		Recognition: *recognized,
		Validation:  validation,
		Decision:    decision,
	}, nil
}

// ValidatePlate validates already-recognized text, for callers that have
// plate text from another source.
func (s *GateService) ValidatePlate(text string) anpr.ValidationResult {
	return plate.Validate(text)
}

// DecidePlate validates text and produces an access decision for it, using
// the registered-vehicle status when one exists.
func (s *GateService) DecidePlate(ctx context.Context, text string) (anpr.ValidationResult, anpr.Decision) {
	validation := plate.Validate(text)
	_, vehicleInfo, err := s.lookupVehicle(ctx, validation.NormalizedText)
	if err != nil {
		s.log.Warn().Err(err).Str("plate", validation.NormalizedText).Msg("vehicle lookup failed")
	}
	return validation, s.engine.Decide(validation.NormalizedText, validation.IsValid, vehicleInfo)
}

func (s *GateService) lookupVehicle(ctx context.Context, normalized string) (*repository.Vehicle, *anpr.VehicleInfo, error) {
	if normalized == "" {
		return nil, nil, nil
	}
	vehicle, err := s.repo.FindVehicleByPlate(ctx, normalized)
	if err != nil {
		return nil, nil, err
	}
	if vehicle == nil {
		return nil, nil, nil
	}
	return vehicle, &anpr.VehicleInfo{
		IsAuthorized:  vehicle.IsAuthorized,
		IsBlacklisted: vehicle.IsBlacklisted,
	}, nil
}

// detectionMeta packs per-detection pipeline context for the JSONB column.
func detectionMeta(recognized *anpr.RecognitionResult, validation anpr.ValidationResult) datatypes.JSON {
	raw, err := json.Marshal(map[string]any{
		"raw_text":           recognized.PlateText,
		"validation_message": validation.Message,
		"is_valid":           validation.IsValid,
	})
	if err != nil {
		return nil
	}
	return datatypes.JSON(raw)
}

// ListDetections returns stored detections, newest first.
func (s *GateService) ListDetections(ctx context.Context, limit, offset int) ([]repository.Detection, error) {
	limit, offset = clampPage(limit, offset)
	detections, err := s.repo.ListDetections(ctx, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list detections: %w", err)
	}
	return detections, nil
}

// ListEvents returns stored gate events, optionally filtered by action type.
func (s *GateService) ListEvents(ctx context.Context, eventType string, limit, offset int) ([]repository.GateEvent, error) {
	if eventType != "" {
		switch anpr.Action(eventType) {
		case anpr.ActionAllow, anpr.ActionAlert, anpr.ActionLogOnly:
		default:
			return nil, fmt.Errorf("%w: unknown event type %q", ErrInvalidInput, eventType)
		}
	}
	limit, offset = clampPage(limit, offset)
	events, err := s.repo.ListGateEvents(ctx, eventType, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	return events, nil
}

// ListAlerts returns ALERT events from the last `hours` hours.
func (s *GateService) ListAlerts(ctx context.Context, hours, limit int) ([]repository.Alert, error) {
	if hours <= 0 {
		hours = 24
	}
	limit, _ = clampPage(limit, 0)
	since := time.Now().UTC().Add(-time.Duration(hours) * time.Hour)
	alerts, err := s.repo.ListAlertsSince(ctx, since, limit)
	if err != nil {
		return nil, fmt.Errorf("list alerts: %w", err)
	}
	return alerts, nil
}

// PurgeDetections removes detections and their events older than the given
// number of days. Returns the number of detections removed.
func (s *GateService) PurgeDetections(ctx context.Context, days int) (int64, error) {
	if days <= 0 {
		return 0, fmt.Errorf("%w: days must be positive", ErrInvalidInput)
	}
	deleted, err := s.repo.DeleteOldDetections(ctx, days)
	if err != nil {
		return 0, fmt.Errorf("purge detections: %w", err)
	}
	s.log.Info().Int("days", days).Int64("deleted", deleted).Msg("old detections purged")
	return deleted, nil
}

// RegisterVehicle creates or refreshes a registered vehicle record.
func (s *GateService) RegisterVehicle(ctx context.Context, v *repository.Vehicle) error {
	v.PlateNumber = utils.NormalizePlate(v.PlateNumber)
	if v.PlateNumber == "" {
		return fmt.Errorf("%w: plate_number is required", ErrInvalidInput)
	}
	if err := s.repo.UpsertVehicle(ctx, v); err != nil {
		s.log.Error().Err(err).Str("plate", v.PlateNumber).Msg("failed to save vehicle")
		return fmt.Errorf("save vehicle: %w", err)
	}
	s.log.Info().Str("plate", v.PlateNumber).Msg("vehicle registered")
	return nil
}

// GetVehicle looks up a registered vehicle by plate.
func (s *GateService) GetVehicle(ctx context.Context, plateQuery string) (*repository.Vehicle, error) {
	normalized := utils.NormalizePlate(plateQuery)
	if normalized == "" {
		return nil, fmt.Errorf("%w: plate is required", ErrInvalidInput)
	}
	vehicle, err := s.repo.FindVehicleByPlate(ctx, normalized)
	if err != nil {
		return nil, fmt.Errorf("find vehicle: %w", err)
	}
	if vehicle == nil {
		return nil, fmt.Errorf("%w: vehicle %s", ErrNotFound, normalized)
	}
	return vehicle, nil
}

func clampPage(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = 50
	}
	if limit > 100 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
