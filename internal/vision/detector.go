package vision

import (
	"fmt"
	"image"
	"sync"

	"github.com/rs/zerolog"
	"gocv.io/x/gocv"

	"eagleeye/internal/config"
	"eagleeye/internal/domain/anpr"
)

// COCO classes treated as vehicle-like. The detection model is a general
// localizer, not plate-specific, so these narrow the OCR search region.
var vehicleClasses = map[int]string{
	2: "car",
	3: "motorcycle",
	5: "bus",
	7: "truck",
}

type rawDetection struct {
	rect    image.Rectangle
	conf    float64
	classID int
}

// YOLODetector localizes candidate plate regions with a YOLO ONNX model.
// Construct once per process, the loaded network is reused across frames.
type YOLODetector struct {
	mu  sync.Mutex
	net gocv.Net
	cfg config.VisionConfig
	log zerolog.Logger
}

func NewYOLODetector(cfg config.VisionConfig, log zerolog.Logger) (*YOLODetector, error) {
	net := gocv.ReadNet(cfg.ModelPath, "")
	if net.Empty() {
		return nil, fmt.Errorf("load detection model %q", cfg.ModelPath)
	}
	log.Info().Str("model", cfg.ModelPath).Msg("detection model loaded")
	return &YOLODetector{net: net, cfg: cfg, log: log}, nil
}

func (d *YOLODetector) Close() error {
	return d.net.Close()
}

// Detect returns candidate plate regions for a frame. It never fails: any
// internal problem degrades to a single whole-frame candidate at confidence
// 0.5, so downstream stages always have at least one region to work with.
func (d *YOLODetector) Detect(frame gocv.Mat) (out []anpr.DetectionCandidate) {
	defer func() {
		if r := recover(); r != nil {
			d.log.Error().Interface("panic", r).Msg("detector failure, falling back to whole frame")
			out = []anpr.DetectionCandidate{wholeFrame(frame)}
		}
	}()

	if frame.Empty() {
		return []anpr.DetectionCandidate{wholeFrame(frame)}
	}

	detections := d.forward(frame)

	var vehicles []rawDetection
	for _, det := range detections {
		if _, ok := vehicleClasses[det.classID]; ok {
			vehicles = append(vehicles, det)
		}
	}
	if len(vehicles) == 0 {
		if len(detections) > 0 {
			d.log.Debug().Int("detections", len(detections)).Msg("no vehicle-like detections, using whole frame")
		}
		return []anpr.DetectionCandidate{wholeFrame(frame)}
	}

	// The largest vehicle dominates the frame and is the most likely plate
	// carrier; expand its box so a bumper-mounted plate is not clipped.
	largest := vehicles[0]
	for _, v := range vehicles[1:] {
		if v.rect.Dx()*v.rect.Dy() > largest.rect.Dx()*largest.rect.Dy() {
			largest = v
		}
	}

	margin := d.cfg.ExpandMargin
	w, h := frame.Cols(), frame.Rows()
	box := anpr.BBox{
		X1: max(0, largest.rect.Min.X-margin),
		Y1: max(0, largest.rect.Min.Y-margin),
		X2: min(w, largest.rect.Max.X+margin),
		Y2: min(h, largest.rect.Max.Y+margin),
	}

	return []anpr.DetectionCandidate{{
		BBox:       box,
		Confidence: largest.conf,
		ClassLabel: vehicleClasses[largest.classID],
	}}
}

// forward runs one inference pass and decodes boxes above the confidence
// threshold, NMS-suppressed.
func (d *YOLODetector) forward(frame gocv.Mat) []rawDetection {
	blob := gocv.BlobFromImage(frame, 1.0/255.0,
		image.Pt(d.cfg.InputSize, d.cfg.InputSize),
		gocv.NewScalar(0, 0, 0, 0), true, false)
	defer blob.Close()

	d.mu.Lock()
	d.net.SetInput(blob, "")
	prob := d.net.Forward("")
	d.mu.Unlock()
	defer prob.Close()

	dims := prob.Size()
	if len(dims) < 2 {
		return nil
	}
	rows := dims[len(dims)-2]

	out := prob.Reshape(1, rows)
	defer out.Close()

	scaleX := float64(frame.Cols()) / float64(d.cfg.InputSize)
	scaleY := float64(frame.Rows()) / float64(d.cfg.InputSize)

	return d.decode(out, scaleX, scaleY)
}

// decode handles both YOLO output layouts. yolov5-family models emit one row
// per anchor as [cx,cy,w,h,objectness,classes...]; yolov8-family models emit
// the transpose, [4+classes, anchors], with no objectness column. The anchor
// axis is always the long one, which is how the two are told apart.
func (d *YOLODetector) decode(out gocv.Mat, scaleX, scaleY float64) []rawDetection {
	if out.Cols() > out.Rows() {
		t := gocv.NewMat()
		defer t.Close()
		gocv.Transpose(out, &t)
		return d.decodeAnchors(t, false, scaleX, scaleY)
	}
	return d.decodeAnchors(out, true, scaleX, scaleY)
}

func (d *YOLODetector) decodeAnchors(out gocv.Mat, hasObjectness bool, scaleX, scaleY float64) []rawDetection {
	rows, cols := out.Rows(), out.Cols()
	classStart := 4
	if hasObjectness {
		classStart = 5
	}

	var boxes []image.Rectangle
	var scores []float32
	var classIDs []int

	for i := 0; i < rows; i++ {
		objectness := 1.0
		if hasObjectness {
			objectness = float64(out.GetFloatAt(i, 4))
			if objectness < d.cfg.ConfThreshold {
				continue
			}
		}

		bestScore, bestClass := float64(0), -1
		for c := classStart; c < cols; c++ {
			if s := float64(out.GetFloatAt(i, c)); s > bestScore {
				bestScore, bestClass = s, c-classStart
			}
		}
		conf := objectness * bestScore
		if conf < d.cfg.ConfThreshold {
			continue
		}

		cx := float64(out.GetFloatAt(i, 0)) * scaleX
		cy := float64(out.GetFloatAt(i, 1)) * scaleY
		bw := float64(out.GetFloatAt(i, 2)) * scaleX
		bh := float64(out.GetFloatAt(i, 3)) * scaleY

		boxes = append(boxes, image.Rect(
			int(cx-bw/2), int(cy-bh/2),
			int(cx+bw/2), int(cy+bh/2)))
		scores = append(scores, float32(conf))
		classIDs = append(classIDs, bestClass)
	}

	if len(boxes) == 0 {
		return nil
	}

	indices := gocv.NMSBoxes(boxes, scores, float32(d.cfg.ConfThreshold), float32(d.cfg.NMSThreshold))
	detections := make([]rawDetection, 0, len(indices))
	for _, idx := range indices {
		detections = append(detections, rawDetection{
			rect:    boxes[idx],
			conf:    float64(scores[idx]),
			classID: classIDs[idx],
		})
	}
	return detections
}

func wholeFrame(frame gocv.Mat) anpr.DetectionCandidate {
	return anpr.DetectionCandidate{
		BBox:       anpr.BBox{X1: 0, Y1: 0, X2: frame.Cols(), Y2: frame.Rows()},
		Confidence: 0.5,
	}
}
