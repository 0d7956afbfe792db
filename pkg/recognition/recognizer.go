// Package recognition detects faces in camera frames and matches them against
// the enrolled roster. The default backend uses dlib via go-face.
package recognition

import (
	"fmt"
	"math"
	"sync"

	"github.com/Kagami/go-face"
	"github.com/MrCodeEU/facekiosk/pkg/logging"
	"github.com/MrCodeEU/facekiosk/pkg/roster"
)

// Descriptor is a 128-dimensional face descriptor from dlib.
type Descriptor = face.Descriptor

// FaceEngine is the subset of *face.Recognizer the backend needs.
type FaceEngine interface {
	Recognize(data []byte) ([]face.Face, error)
	Close()
}

// Face is a region found by the engine with its descriptor.
type Face struct {
	BoundingBox Rectangle
	Descriptor  Descriptor
}

// DlibRecognizer implements Backend using dlib embeddings.
type DlibRecognizer struct {
	rec       FaceEngine
	modelPath string
	loaded    bool
	mu        sync.RWMutex
	tolerance float64
	factory   func(path string) (FaceEngine, error)
}

// NewRecognizer creates a new DlibRecognizer instance.
func NewRecognizer() *DlibRecognizer {
	return &DlibRecognizer{
		tolerance: 0.5,
		factory: func(path string) (FaceEngine, error) {
			return face.NewRecognizer(path)
		},
	}
}

// Name implements Backend.
func (r *DlibRecognizer) Name() string { return "dlib" }

// SetTolerance sets the maximum descriptor distance accepted as a match.
func (r *DlibRecognizer) SetTolerance(tolerance float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tolerance = tolerance
}

// LoadModels loads the dlib models from modelPath. The directory must contain
// shape_predictor_5_face_landmarks.dat, dlib_face_recognition_resnet_model_v1.dat
// and mmod_human_face_detector.dat.
func (r *DlibRecognizer) LoadModels(modelPath string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.loaded {
		return nil
	}

	logging.Infof("Loading face recognition models from: %s", modelPath)

	rec, err := r.factory(modelPath)
	if err != nil {
		return fmt.Errorf("failed to load models: %w", err)
	}

	r.rec = rec
	r.modelPath = modelPath
	r.loaded = true

	logging.Info("Face recognition models loaded successfully")
	return nil
}

// Ready implements Backend.
func (r *DlibRecognizer) Ready() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.loaded
}

// Close releases the recognizer resources.
func (r *DlibRecognizer) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.rec != nil {
		r.rec.Close()
		r.rec = nil
	}
	r.loaded = false
	return nil
}

// DetectFaces detects all faces in a JPEG image.
func (r *DlibRecognizer) DetectFaces(imageData []byte) ([]Face, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if !r.loaded {
		return nil, ErrModelNotLoaded
	}

	faces, err := r.rec.Recognize(imageData)
	if err != nil {
		return nil, fmt.Errorf("face detection failed: %w", err)
	}

	if len(faces) == 0 {
		return nil, ErrNoFaceDetected
	}

	result := make([]Face, len(faces))
	for i, f := range faces {
		rect := f.Rectangle
		result[i] = Face{
			BoundingBox: Rectangle{
				X:      rect.Min.X,
				Y:      rect.Min.Y,
				Width:  rect.Dx(),
				Height: rect.Dy(),
			},
			Descriptor: f.Descriptor,
		}
	}

	logging.Debugf("Detected %d face(s) in image", len(result))
	return result, nil
}

// DetectSingleFace detects exactly one face in the image.
func (r *DlibRecognizer) DetectSingleFace(imageData []byte) (*Face, error) {
	faces, err := r.DetectFaces(imageData)
	if err != nil {
		return nil, err
	}
	if len(faces) > 1 {
		return nil, ErrMultipleFaces
	}
	return &faces[0], nil
}

// Recognize implements Backend. Each region is compared against every
// gallery signature in roster order and the first entry within tolerance
// wins.
func (r *DlibRecognizer) Recognize(frame []byte, gallery []roster.Employee) ([]Detection, error) {
	faces, err := r.DetectFaces(frame)
	if err == ErrNoFaceDetected {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	r.mu.RLock()
	tolerance := r.tolerance
	r.mu.RUnlock()

	detections := make([]Detection, len(faces))
	for i, f := range faces {
		d := Detection{Box: f.BoundingBox, Confidence: math.Inf(1)}
		for _, e := range gallery {
			sig, ok := DescriptorFrom(e.Signature)
			if !ok {
				continue
			}
			dist := EuclideanDistance(f.Descriptor, sig)
			if dist < tolerance {
				d.EmployeeID = e.ID
				d.Name = e.Name
				d.Confidence = dist * 100
				d.Accepted = true
				break
			}
			if dist*100 < d.Confidence {
				d.Confidence = dist * 100
			}
		}
		if math.IsInf(d.Confidence, 1) {
			d.Confidence = 0
		}
		detections[i] = d
	}
	return detections, nil
}

// DescriptorFrom converts a stored signature into a dlib descriptor.
func DescriptorFrom(values []float32) (Descriptor, bool) {
	var d Descriptor
	if len(values) != len(d) {
		return d, false
	}
	copy(d[:], values)
	return d, true
}

// EuclideanDistance calculates the Euclidean distance between two descriptors.
func EuclideanDistance(d1, d2 Descriptor) float64 {
	var sum float64
	for i := range d1 {
		diff := float64(d1[i] - d2[i])
		sum += diff * diff
	}
	return math.Sqrt(sum)
}
