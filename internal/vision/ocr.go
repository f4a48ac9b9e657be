package vision

import (
	"fmt"
	"image"
	"strings"
	"sync"

	"github.com/otiai10/gosseract/v2"
	"github.com/rs/zerolog"
	"gocv.io/x/gocv"

	"eagleeye/internal/config"
	"eagleeye/internal/domain/anpr"
	"eagleeye/internal/plate"
)

// TesseractRecognizer reads plate text from an image region. Each configured
// preprocessing variant is tried in order until one yields a confident
// candidate; otherwise candidates are pooled, deduplicated and scored.
// Grammar correction is applied to every candidate in-line.
//
// The underlying tesseract client is not safe for concurrent use, so calls
// are serialized; the loaded language data is shared across frames.
type TesseractRecognizer struct {
	mu     sync.Mutex
	client *gosseract.Client
	cfg    config.OCRConfig
	log    zerolog.Logger

	// run performs one OCR pass on a processed image. Backed by tesseract
	// in production; tests substitute a scripted stand-in.
	run func(m gocv.Mat) (anpr.OCRCandidate, bool)
}

func NewTesseractRecognizer(cfg config.OCRConfig, log zerolog.Logger) (*TesseractRecognizer, error) {
	client := gosseract.NewClient()
	if err := client.SetLanguage("eng"); err != nil {
		client.Close()
		return nil, fmt.Errorf("init OCR language: %w", err)
	}
	if err := client.SetWhitelist(cfg.Whitelist); err != nil {
		client.Close()
		return nil, fmt.Errorf("set OCR whitelist: %w", err)
	}
	if err := client.SetPageSegMode(gosseract.PSM_SINGLE_LINE); err != nil {
		client.Close()
		return nil, fmt.Errorf("set OCR page mode: %w", err)
	}
	log.Info().Strs("variants", cfg.Variants).Msg("OCR engine initialized")
	r := &TesseractRecognizer{client: client, cfg: cfg, log: log}
	r.run = r.runOCR
	return r, nil
}

func (r *TesseractRecognizer) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.client.Close()
}

// ReadText extracts plate text from an image region. It returns ("", 0) only
// when every preprocessing variant produced nothing usable; internal errors
// in a variant count as "no candidates from this variant".
func (r *TesseractRecognizer) ReadText(img gocv.Mat) (text string, conf float64) {
	defer func() {
		if rec := recover(); rec != nil {
			r.log.Error().Interface("panic", rec).Msg("OCR failure, treating as no text")
			text, conf = "", 0
		}
	}()

	if img.Empty() {
		return "", 0
	}

	work := r.prepare(img)
	defer work.Close()

	var candidates []anpr.OCRCandidate
	index := make(map[string]int)

	for _, variant := range r.cfg.Variants {
		processed := applyVariant(work, variant)
		cand, ok := r.run(processed)
		processed.Close()
		if !ok {
			continue
		}

		cand.Text = plate.Correct(cand.Text)
		if cand.Text == "" {
			continue
		}

		// Early exit: a confident, plate-sized candidate ends the search.
		if cand.Confidence >= r.cfg.EarlyExitConfidence && r.lengthOK(cand.Text) {
			r.log.Debug().Str("variant", variant).Str("text", cand.Text).
				Float64("confidence", cand.Confidence).Msg("OCR early exit")
			return cand.Text, cand.Confidence
		}

		if i, seen := index[cand.Text]; seen {
			if cand.Confidence > candidates[i].Confidence {
				candidates[i].Confidence = cand.Confidence
			}
			continue
		}
		index[cand.Text] = len(candidates)
		candidates = append(candidates, cand)
	}

	return r.selectBest(candidates)
}

// selectBest ranks pooled candidates by confidence × (1 + 0.05 × length),
// preferring longer still-confident strings over short fragments. Candidates
// outside the plate length window only win when nothing inside it exists.
func (r *TesseractRecognizer) selectBest(candidates []anpr.OCRCandidate) (string, float64) {
	bestIdx, bestScore := -1, 0.0
	for i, c := range candidates {
		if !r.lengthOK(c.Text) {
			continue
		}
		score := c.Confidence * (1 + 0.05*float64(len(c.Text)))
		if bestIdx == -1 || score > bestScore {
			bestIdx, bestScore = i, score
		}
	}
	if bestIdx >= 0 {
		return candidates[bestIdx].Text, candidates[bestIdx].Confidence
	}

	for i, c := range candidates {
		if bestIdx == -1 || c.Confidence > candidates[bestIdx].Confidence {
			bestIdx = i
		}
	}
	if bestIdx >= 0 {
		return candidates[bestIdx].Text, candidates[bestIdx].Confidence
	}
	return "", 0
}

func (r *TesseractRecognizer) lengthOK(text string) bool {
	return len(text) >= r.cfg.MinLength && len(text) <= r.cfg.MaxLength
}

// prepare grayscales the region and upscales it when it is below the minimum
// usable OCR size. The caller closes the returned Mat.
func (r *TesseractRecognizer) prepare(img gocv.Mat) gocv.Mat {
	var gray gocv.Mat
	if img.Channels() > 1 {
		gray = gocv.NewMat()
		gocv.CvtColor(img, &gray, gocv.ColorBGRToGray)
	} else {
		gray = img.Clone()
	}

	if gray.Cols() >= r.cfg.MinWidth && gray.Rows() >= r.cfg.MinHeight {
		return gray
	}

	scale := float64(r.cfg.MinWidth) / float64(gray.Cols())
	if s := float64(r.cfg.MinHeight) / float64(gray.Rows()); s > scale {
		scale = s
	}
	resized := gocv.NewMat()
	gocv.Resize(gray, &resized,
		image.Pt(int(float64(gray.Cols())*scale), int(float64(gray.Rows())*scale)),
		0, 0, gocv.InterpolationLinear)
	gray.Close()
	return resized
}

// applyVariant runs one preprocessing strategy on a grayscale image. Unknown
// names behave as identity. The caller closes the returned Mat.
func applyVariant(src gocv.Mat, name string) gocv.Mat {
	switch name {
	case "contrast":
		dst := gocv.NewMat()
		clahe := gocv.NewCLAHEWithParams(2.0, image.Pt(8, 8))
		defer clahe.Close()
		clahe.Apply(src, &dst)
		return dst
	case "denoise":
		dst := gocv.NewMat()
		gocv.FastNlMeansDenoising(src, &dst)
		return dst
	default:
		return src.Clone()
	}
}

// runOCR feeds one processed image to tesseract and pools the recognized
// words into a single cleaned candidate with their mean confidence.
func (r *TesseractRecognizer) runOCR(m gocv.Mat) (anpr.OCRCandidate, bool) {
	buf, err := gocv.IMEncode(".png", m)
	if err != nil {
		return anpr.OCRCandidate{}, false
	}
	defer buf.Close()

	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.client.SetImageFromBytes(buf.GetBytes()); err != nil {
		return anpr.OCRCandidate{}, false
	}
	words, err := r.client.GetBoundingBoxes(gosseract.RIL_WORD)
	if err != nil || len(words) == 0 {
		return anpr.OCRCandidate{}, false
	}

	var b strings.Builder
	total, counted := 0.0, 0
	for _, w := range words {
		cleaned := cleanText(w.Word)
		if cleaned == "" {
			continue
		}
		b.WriteString(cleaned)
		total += w.Confidence
		counted++
	}
	if counted == 0 {
		return anpr.OCRCandidate{}, false
	}

	// Tesseract reports word confidence on a 0..100 scale.
	return anpr.OCRCandidate{
		Text:       b.String(),
		Confidence: total / float64(counted) / 100.0,
	}, true
}

// cleanText uppercases and keeps only plate characters.
func cleanText(s string) string {
	var b strings.Builder
	for _, ch := range strings.ToUpper(s) {
		if (ch >= 'A' && ch <= 'Z') || (ch >= '0' && ch <= '9') {
			b.WriteRune(ch)
		}
	}
	return b.String()
}
