// Package lbph is a recognition backend built on OpenCV's Haar cascade
// detector and LBPH face classifier.
package lbph

import (
	"errors"
	"fmt"
	"image"
	"os"
	"sync"

	"github.com/MrCodeEU/facekiosk/pkg/logging"
	"github.com/MrCodeEU/facekiosk/pkg/recognition"
	"github.com/MrCodeEU/facekiosk/pkg/roster"
	"gocv.io/x/gocv"
	"gocv.io/x/gocv/contrib"
)

// ErrNotTrained is returned when no model files exist yet.
var ErrNotTrained = errors.New("lbph model not trained")

// ErrNoTrainingData is returned when no enrollment image yielded a face.
var ErrNoTrainingData = errors.New("no usable training images")

// Options configures the backend.
type Options struct {
	CascadeFile   string
	ModelFile     string
	LabelsFile    string
	AcceptCutoff  float64
	DisplayCutoff float64
	FaceSize      int
}

// detector is the part of gocv.CascadeClassifier the backend uses.
type detector interface {
	DetectMultiScaleWithParams(img gocv.Mat, scale float64, minNeighbors, flags int, minSize, maxSize image.Point) []image.Rectangle
	Close() error
}

// Backend implements recognition.Backend.
type Backend struct {
	opts Options

	// detectMu serializes cascade calls; the classifier keeps per-call
	// buffers and is not safe for concurrent use.
	detectMu sync.Mutex
	cascade  detector

	mu     sync.RWMutex
	model  *contrib.LBPHFaceRecognizer
	labels LabelMap
}

// New loads the cascade. The classifier itself is loaded by Load or produced
// by Train.
func New(opts Options) (*Backend, error) {
	if opts.FaceSize <= 0 {
		opts.FaceSize = 200
	}
	cascade := gocv.NewCascadeClassifier()
	if !cascade.Load(opts.CascadeFile) {
		cascade.Close()
		return nil, fmt.Errorf("failed to load face cascade %s", opts.CascadeFile)
	}
	return &Backend{opts: opts, cascade: &cascade}, nil
}

// detect runs the cascade on a grayscale image.
func (b *Backend) detect(gray gocv.Mat, scale float64, neighbors int, minSize image.Point) []image.Rectangle {
	b.detectMu.Lock()
	defer b.detectMu.Unlock()
	if b.cascade == nil {
		return nil
	}
	return b.cascade.DetectMultiScaleWithParams(gray, scale, neighbors, 0, minSize, image.Point{})
}

// Name implements recognition.Backend.
func (b *Backend) Name() string { return "lbph" }

// Ready implements recognition.Backend.
func (b *Backend) Ready() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.model != nil && len(b.labels) > 0
}

// Load reads a previously trained model and label map from disk.
func (b *Backend) Load() error {
	if _, err := os.Stat(b.opts.ModelFile); err != nil {
		return ErrNotTrained
	}
	labels, err := LoadLabels(b.opts.LabelsFile)
	if err != nil {
		if os.IsNotExist(err) {
			return ErrNotTrained
		}
		return err
	}

	model := contrib.NewLBPHFaceRecognizer()
	model.LoadFile(b.opts.ModelFile)

	b.swap(model, labels)
	logging.Component("lbph").Infof("Model loaded (%d people)", len(labels))
	return nil
}

func (b *Backend) swap(model *contrib.LBPHFaceRecognizer, labels LabelMap) {
	b.mu.Lock()
	old := b.model
	b.model = model
	b.labels = labels
	b.mu.Unlock()

	if old != nil {
		old.Close()
	}
}

// Close implements recognition.Backend.
func (b *Backend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.model != nil {
		b.model.Close()
		b.model = nil
	}

	b.detectMu.Lock()
	defer b.detectMu.Unlock()
	if b.cascade == nil {
		return nil
	}
	err := b.cascade.Close()
	b.cascade = nil
	return err
}

// Recognize implements recognition.Backend.
func (b *Backend) Recognize(frame []byte, gallery []roster.Employee) ([]recognition.Detection, error) {
	img, err := gocv.IMDecode(frame, gocv.IMReadColor)
	if err != nil {
		return nil, fmt.Errorf("failed to decode frame: %w", err)
	}
	defer img.Close()
	if img.Empty() {
		return nil, errors.New("failed to decode frame")
	}

	gray := gocv.NewMat()
	defer gray.Close()
	gocv.CvtColor(img, &gray, gocv.ColorBGRToGray)

	rects := b.detect(gray, 1.1, 4, image.Pt(30, 30))
	if len(rects) == 0 {
		return nil, nil
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	names := make(map[string]string, len(gallery))
	for _, e := range gallery {
		names[e.ID] = e.Name
	}

	detections := make([]recognition.Detection, len(rects))
	for i, r := range rects {
		d := recognition.Detection{Box: toRectangle(r)}
		if b.model != nil && len(b.labels) > 0 {
			b.classify(gray, r, names, &d)
		}
		detections[i] = d
	}
	return detections, nil
}

func (b *Backend) classify(gray gocv.Mat, r image.Rectangle, names map[string]string, d *recognition.Detection) {
	roi := gray.Region(r)
	defer roi.Close()

	face := gocv.NewMat()
	defer face.Close()
	gocv.Resize(roi, &face, image.Pt(b.opts.FaceSize, b.opts.FaceSize), 0, 0, gocv.InterpolationLinear)

	resp := b.model.PredictExtendedResponse(face)
	d.Confidence = float64(resp.Confidence)
	if d.Confidence >= b.opts.DisplayCutoff {
		return
	}

	id, ok := b.labels[int(resp.Label)]
	if !ok {
		return
	}
	d.EmployeeID = id
	d.Name = names[id]
	if d.Name == "" {
		d.Name = id
	}
	d.Accepted = d.Confidence < b.opts.AcceptCutoff
}

func toRectangle(r image.Rectangle) recognition.Rectangle {
	return recognition.Rectangle{X: r.Min.X, Y: r.Min.Y, Width: r.Dx(), Height: r.Dy()}
}
