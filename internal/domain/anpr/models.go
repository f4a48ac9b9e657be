package anpr

import (
	"time"
)

// BBox is a pixel-space bounding box, top-left (X1,Y1) to bottom-right (X2,Y2).
type BBox struct {
	X1 int `json:"x1"`
	Y1 int `json:"y1"`
	X2 int `json:"x2"`
	Y2 int `json:"y2"`
}

func (b BBox) Width() int  { return b.X2 - b.X1 }
func (b BBox) Height() int { return b.Y2 - b.Y1 }
func (b BBox) Area() int   { return b.Width() * b.Height() }

type DetectionCandidate struct {
	BBox       BBox    `json:"bbox"`
	Confidence float64 `json:"confidence"`
	ClassLabel string  `json:"class_label,omitempty"`
}

// OCRCandidate is one recognized string from a single preprocessing variant.
type OCRCandidate struct {
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
}

// RecognitionResult is the single output of a per-frame recognition attempt.
// PlateText is non-empty, uppercase, with separators stripped.
type RecognitionResult struct {
	PlateText  string    `json:"plate_text"`
	Confidence float64   `json:"confidence"`
	BBox       BBox      `json:"bbox"`
	Timestamp  time.Time `json:"timestamp"`
}

// ValidationResult reports format validation of a plate string.
// NormalizedText is populated even when the plate is invalid.
type ValidationResult struct {
	IsValid        bool   `json:"is_valid"`
	NormalizedText string `json:"normalized_text"`
	Message        string `json:"message"`
}

// VehicleInfo is the registered-vehicle status for a plate, when known.
type VehicleInfo struct {
	IsAuthorized  bool `json:"is_authorized"`
	IsBlacklisted bool `json:"is_blacklisted"`
}

type Action string

const (
	ActionAllow   Action = "ALLOW"
	ActionAlert   Action = "ALERT"
	ActionLogOnly Action = "LOG_ONLY"
)

type Decision struct {
	Action      Action `json:"action"`
	RuleName    string `json:"rule_name"`
	Description string `json:"description"`
}
