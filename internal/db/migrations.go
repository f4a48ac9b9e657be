package db

import (
	"fmt"

	"gorm.io/gorm"
)

var migrationStatements = []string{
	`CREATE TABLE IF NOT EXISTS vehicles (
		id              BIGSERIAL PRIMARY KEY,
		plate_number    TEXT NOT NULL,
		vehicle_type    TEXT,
		owner_name      TEXT,
		is_authorized   BOOLEAN NOT NULL DEFAULT TRUE,
		is_blacklisted  BOOLEAN NOT NULL DEFAULT FALSE,
		notes           TEXT,
		created_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at      TIMESTAMPTZ NOT NULL DEFAULT now()
	);`,
	`CREATE UNIQUE INDEX IF NOT EXISTS ux_vehicles_plate_number ON vehicles(plate_number);`,
	`CREATE TABLE IF NOT EXISTS detections (
		id              BIGSERIAL PRIMARY KEY,
		vehicle_id      BIGINT REFERENCES vehicles(id),
		plate_text      TEXT NOT NULL,
		confidence      NUMERIC(5,4) NOT NULL,
		bbox_x1         INT NOT NULL,
		bbox_y1         INT NOT NULL,
		bbox_x2         INT NOT NULL,
		bbox_y2         INT NOT NULL,
		image_path      TEXT,
		meta            JSONB,
		timestamp       TIMESTAMPTZ NOT NULL,
		created_at      TIMESTAMPTZ NOT NULL DEFAULT now()
	);`,
	`CREATE INDEX IF NOT EXISTS idx_detections_plate_text ON detections(plate_text);`,
	`CREATE INDEX IF NOT EXISTS idx_detections_timestamp ON detections(timestamp);`,
	`CREATE TABLE IF NOT EXISTS gate_events (
		id              BIGSERIAL PRIMARY KEY,
		vehicle_id      BIGINT REFERENCES vehicles(id),
		detection_id    BIGINT REFERENCES detections(id),
		event_type      TEXT NOT NULL,
		description     TEXT,
		rule_name       TEXT,
		timestamp       TIMESTAMPTZ NOT NULL,
		created_at      TIMESTAMPTZ NOT NULL DEFAULT now()
	);`,
	`CREATE INDEX IF NOT EXISTS idx_gate_events_event_type ON gate_events(event_type);`,
	`CREATE INDEX IF NOT EXISTS idx_gate_events_timestamp ON gate_events(timestamp);`,
}

func runMigrations(db *gorm.DB) error {
	for i, stmt := range migrationStatements {
		if err := db.Exec(stmt).Error; err != nil {
			return fmt.Errorf("migration %d failed: %w", i+1, err)
		}
	}
	return nil
}
