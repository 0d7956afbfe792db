// Package camera provides frame capture from local video devices.
// Frames are delivered as JPEG bytes regardless of the backend.
package camera

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"time"

	"github.com/MrCodeEU/facekiosk/pkg/logging"
)

// Frame represents a single camera frame.
type Frame struct {
	Data      []byte // JPEG
	Width     int
	Height    int
	Timestamp time.Time
}

// ToImage decodes the frame.
func (f *Frame) ToImage() (image.Image, error) {
	return jpeg.Decode(bytes.NewReader(f.Data))
}

// DeviceInfo contains information about a camera device.
type DeviceInfo struct {
	Index  int
	Path   string
	Name   string
	Driver string
}

// Camera is a video source opened by integer index.
type Camera interface {
	Open(index int) error
	Read() (*Frame, error)
	Close() error
	IsOpen() bool
	Info() DeviceInfo
}

// ErrCameraNotFound is returned when the camera device is not found.
var ErrCameraNotFound = errors.New("camera device not found")

// ErrCameraNotOpen is returned when trying to capture from a closed camera.
var ErrCameraNotOpen = errors.New("camera not open")

// ErrNoFrame is returned when no frame could be captured.
var ErrNoFrame = errors.New("failed to capture frame")

// OpenWithFallback opens index and, if that fails, fallback. A negative
// fallback disables the second attempt. It returns the index that opened.
func OpenWithFallback(c Camera, index, fallback int) (int, error) {
	err := c.Open(index)
	if err == nil {
		return index, nil
	}
	if fallback < 0 || fallback == index {
		return -1, err
	}

	logging.Component("camera").Warnf("Camera %d failed (%v), trying %d", index, err, fallback)
	if err2 := c.Open(fallback); err2 != nil {
		return -1, fmt.Errorf("cameras %d and %d unavailable: %w", index, fallback, err2)
	}
	return fallback, nil
}
