package service

import (
	"image"
	"time"

	"github.com/rs/zerolog"
	"gocv.io/x/gocv"

	"eagleeye/internal/config"
	"eagleeye/internal/domain/anpr"
)

// Detector produces candidate plate regions for a frame. Implementations
// must not fail: degraded output is a whole-frame candidate.
type Detector interface {
	Detect(frame gocv.Mat) []anpr.DetectionCandidate
}

// Recognizer reads plate text from an image region. Empty text means no
// qualifying string was found.
type Recognizer interface {
	ReadText(img gocv.Mat) (string, float64)
}

// RecognitionService drives the per-frame pipeline: detection, cropping with
// fallback regions, and OCR. Both models are passed in at construction so
// they are loaded once per process and replaceable in tests.
type RecognitionService struct {
	detector   Detector
	recognizer Recognizer
	cfg        config.PipelineConfig
	log        zerolog.Logger
}

func NewRecognitionService(detector Detector, recognizer Recognizer, cfg config.PipelineConfig, log zerolog.Logger) *RecognitionService {
	return &RecognitionService{
		detector:   detector,
		recognizer: recognizer,
		cfg:        cfg,
		log:        log,
	}
}

// Recognize runs one full recognition attempt on a frame. A nil result is
// the normal "no plate recognized in this frame" outcome, not an error: a
// frame without a plate and a low-confidence miss are indistinguishable to
// the caller.
func (s *RecognitionService) Recognize(frame gocv.Mat) *anpr.RecognitionResult {
	if frame.Empty() {
		return nil
	}
	w, h := frame.Cols(), frame.Rows()

	best := anpr.DetectionCandidate{
		BBox:       anpr.BBox{X1: 0, Y1: 0, X2: w, Y2: h},
		Confidence: 0.5,
	}
	candidates := s.detector.Detect(frame)
	if len(candidates) > 0 {
		best = candidates[0]
		for _, c := range candidates[1:] {
			if c.Confidence > best.Confidence {
				best = c
			}
		}
	}

	// A box that collapses to nothing even after padding means the frame is
	// not worth retrying on.
	detRect := padClip(best.BBox, s.cfg.CropPadding, w, h)
	if detRect.Empty() {
		s.log.Debug().Msg("degenerate detection box, skipping frame")
		return nil
	}

	// The detected region first, then the bottom third of the frame (the
	// typical plate position), then the whole frame. The synthetic
	// confidences on the retries reflect reduced localization certainty.
	attempts := []struct {
		rect image.Rectangle
		conf float64
	}{
		{detRect, best.Confidence},
		{image.Rect(0, 2*h/3, w, h), s.cfg.BottomThirdConf},
		{image.Rect(0, 0, w, h), s.cfg.WholeFrameConf},
	}

	for _, att := range attempts {
		roi := frame.Region(att.rect)
		text, ocrConf := s.recognizer.ReadText(roi)
		roi.Close()

		if len(text) < s.cfg.MinTextLength {
			if text != "" {
				s.log.Debug().Str("text", text).Msg("recognized text too short, retrying")
			}
			continue
		}

		result := &anpr.RecognitionResult{
			PlateText:  text,
			Confidence: (att.conf + ocrConf) / 2,
			BBox: anpr.BBox{
				X1: att.rect.Min.X,
				Y1: att.rect.Min.Y,
				X2: att.rect.Max.X,
				Y2: att.rect.Max.Y,
			},
			Timestamp: time.Now().UTC(),
		}
		s.log.Info().
			Str("plate", result.PlateText).
			Float64("confidence", result.Confidence).
			Msg("plate recognized")
		return result
	}

	s.log.Debug().Msg("no plate recognized in frame")
	return nil
}

// padClip clips a box to the frame, pads it by the configured margin and
// clips again. A degenerate box comes back empty.
func padClip(b anpr.BBox, pad, w, h int) image.Rectangle {
	x1 := max(0, min(b.X1, w)-pad)
	y1 := max(0, min(b.Y1, h)-pad)
	x2 := min(w, max(b.X2, 0)+pad)
	y2 := min(h, max(b.Y2, 0)+pad)
	if x2 <= x1 || y2 <= y1 {
		return image.Rectangle{}
	}
	return image.Rect(x1, y1, x2, y2)
}
