package repository

import (
	"context"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type Repository struct {
	db *gorm.DB
}

func New(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Vehicle is a registered vehicle and its access status.
type Vehicle struct {
	ID            int64     `gorm:"primaryKey" json:"id"`
	PlateNumber   string    `gorm:"not null;uniqueIndex" json:"plate_number"`
	VehicleType   *string   `json:"vehicle_type,omitempty"`
	OwnerName     *string   `json:"owner_name,omitempty"`
	IsAuthorized  bool      `gorm:"not null;default:true" json:"is_authorized"`
	IsBlacklisted bool      `gorm:"not null;default:false" json:"is_blacklisted"`
	Notes         *string   `json:"notes,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Detection is one stored plate recognition.
type Detection struct {
	ID         int64          `gorm:"primaryKey" json:"id"`
	VehicleID  *int64         `json:"vehicle_id,omitempty"`
	PlateText  string         `gorm:"not null;index" json:"plate_text"`
	Confidence float64        `gorm:"not null" json:"confidence"`
	BBoxX1     int            `gorm:"column:bbox_x1;not null" json:"bbox_x1"`
	BBoxY1     int            `gorm:"column:bbox_y1;not null" json:"bbox_y1"`
	BBoxX2     int            `gorm:"column:bbox_x2;not null" json:"bbox_x2"`
	BBoxY2     int            `gorm:"column:bbox_y2;not null" json:"bbox_y2"`
	ImagePath  *string        `json:"image_path,omitempty"`
	Meta       datatypes.JSON `gorm:"type:jsonb" json:"meta,omitempty"`
	Timestamp  time.Time      `gorm:"not null;index" json:"timestamp"`
	CreatedAt  time.Time      `json:"created_at"`
}

// GateEvent is one access decision recorded for a detection.
type GateEvent struct {
	ID          int64     `gorm:"primaryKey" json:"id"`
	VehicleID   *int64    `json:"vehicle_id,omitempty"`
	DetectionID *int64    `json:"detection_id,omitempty"`
	EventType   string    `gorm:"not null;index" json:"event_type"`
	Description *string   `json:"description,omitempty"`
	RuleName    *string   `json:"rule_name,omitempty"`
	Timestamp   time.Time `gorm:"not null;index" json:"timestamp"`
	CreatedAt   time.Time `json:"created_at"`
}

// Alert is a gate event joined with the plate text of its detection.
type Alert struct {
	ID          int64     `json:"id"`
	PlateText   string    `json:"plate_text"`
	EventType   string    `json:"event_type"`
	Description string    `json:"description"`
	RuleName    string    `json:"rule_name"`
	Timestamp   time.Time `json:"timestamp"`
}

// TableName keeps the query side and the migration side on the same name.
func (GateEvent) TableName() string { return "gate_events" }

// FindVehicleByPlate looks up a registered vehicle by normalized plate.
// A missing vehicle is (nil, nil), not an error.
func (r *Repository) FindVehicleByPlate(ctx context.Context, normalized string) (*Vehicle, error) {
	var vehicle Vehicle
	err := r.db.WithContext(ctx).Where("plate_number = ?", normalized).First(&vehicle).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &vehicle, nil
}

// UpsertVehicle creates a vehicle or refreshes its status by plate number.
func (r *Repository) UpsertVehicle(ctx context.Context, vehicle *Vehicle) error {
	now := time.Now()
	if vehicle.CreatedAt.IsZero() {
		vehicle.CreatedAt = now
	}
	vehicle.UpdatedAt = now
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "plate_number"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"vehicle_type", "owner_name", "is_authorized", "is_blacklisted", "notes", "updated_at",
			}),
		}).
		Create(vehicle).Error
}

func (r *Repository) CreateDetection(ctx context.Context, detection *Detection) error {
	if detection.CreatedAt.IsZero() {
		detection.CreatedAt = time.Now()
	}
	return r.db.WithContext(ctx).Create(detection).Error
}

func (r *Repository) CreateGateEvent(ctx context.Context, event *GateEvent) error {
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}
	return r.db.WithContext(ctx).Create(event).Error
}

func (r *Repository) ListDetections(ctx context.Context, limit, offset int) ([]Detection, error) {
	var detections []Detection
	err := r.db.WithContext(ctx).
		Order("timestamp DESC").
		Limit(limit).
		Offset(offset).
		Find(&detections).Error
	return detections, err
}

func (r *Repository) ListGateEvents(ctx context.Context, eventType string, limit, offset int) ([]GateEvent, error) {
	query := r.db.WithContext(ctx).Model(&GateEvent{})
	if eventType != "" {
		query = query.Where("event_type = ?", eventType)
	}

	var events []GateEvent
	err := query.
		Order("timestamp DESC").
		Limit(limit).
		Offset(offset).
		Find(&events).Error
	return events, err
}

// ListAlertsSince returns ALERT events recorded after `since`, newest first,
// with the plate text of the underlying detection.
func (r *Repository) ListAlertsSince(ctx context.Context, since time.Time, limit int) ([]Alert, error) {
	var alerts []Alert
	err := r.db.WithContext(ctx).
		Table("gate_events").
		Select(`gate_events.id,
			COALESCE(detections.plate_text, 'Unknown') AS plate_text,
			gate_events.event_type,
			COALESCE(gate_events.description, '') AS description,
			COALESCE(gate_events.rule_name, '') AS rule_name,
			gate_events.timestamp`).
		Joins("LEFT JOIN detections ON gate_events.detection_id = detections.id").
		Where("gate_events.event_type = ?", "ALERT").
		Where("gate_events.timestamp >= ?", since).
		Order("gate_events.timestamp DESC").
		Limit(limit).
		Scan(&alerts).Error
	if err != nil {
		return nil, err
	}
	return alerts, nil
}

// DeleteOldDetections removes detections and their events older than the
// given number of days. Returns the number of detections removed.
func (r *Repository) DeleteOldDetections(ctx context.Context, days int) (int64, error) {
	cutoff := time.Now().AddDate(0, 0, -days)

	if err := r.db.WithContext(ctx).
		Where("timestamp < ?", cutoff).
		Delete(&GateEvent{}).Error; err != nil {
		return 0, err
	}

	result := r.db.WithContext(ctx).
		Where("timestamp < ?", cutoff).
		Delete(&Detection{})
	return result.RowsAffected, result.Error
}
