package recognition

import (
	"errors"

	"github.com/MrCodeEU/facekiosk/pkg/roster"
)

// ErrNoFaceDetected is returned when no face is found in the image.
var ErrNoFaceDetected = errors.New("no face detected")

// ErrMultipleFaces is returned when multiple faces are detected.
var ErrMultipleFaces = errors.New("multiple faces detected")

// ErrModelNotLoaded is returned when models are not loaded.
var ErrModelNotLoaded = errors.New("recognition models not loaded")

// Rectangle represents a bounding box.
type Rectangle struct {
	X, Y          int
	Width, Height int
}

// Detection is one face region found in a frame.
// Confidence is a distance score: lower means a closer match.
type Detection struct {
	Box        Rectangle
	EmployeeID string
	Name       string
	Confidence float64
	Accepted   bool
}

// Labelled reports whether the detection carries an identity for display.
func (d Detection) Labelled() bool {
	return d.EmployeeID != ""
}

// Backend detects faces in a JPEG frame and matches them against the
// gallery of enrolled employees.
type Backend interface {
	Name() string
	Ready() bool
	Recognize(frame []byte, gallery []roster.Employee) ([]Detection, error)
	Close() error
}

// Level is a coarse confidence bucket for display.
type Level string

const (
	LevelHigh   Level = "high"
	LevelMedium Level = "medium"
	LevelLow    Level = "low"
)

// ConfidenceLevel buckets a distance score.
func ConfidenceLevel(confidence float64) Level {
	switch {
	case confidence < 50:
		return LevelHigh
	case confidence < 65:
		return LevelMedium
	default:
		return LevelLow
	}
}
