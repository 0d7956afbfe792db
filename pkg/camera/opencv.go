package camera

import (
	"fmt"
	"sync"
	"time"

	"github.com/MrCodeEU/facekiosk/pkg/logging"
	"gocv.io/x/gocv"
)

// OpenCVCamera captures through OpenCV's VideoCapture.
type OpenCVCamera struct {
	mu      sync.Mutex
	width   int
	height  int
	capture *gocv.VideoCapture
	mat     gocv.Mat
	info    DeviceInfo
}

// NewOpenCVCamera creates a camera that requests the given resolution.
func NewOpenCVCamera(width, height int) *OpenCVCamera {
	return &OpenCVCamera{width: width, height: height}
}

// Open implements Camera.
func (c *OpenCVCamera) Open(index int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.capture != nil {
		c.release()
	}

	vc, err := gocv.OpenVideoCapture(index)
	if err != nil {
		return fmt.Errorf("%w: index %d: %v", ErrCameraNotFound, index, err)
	}
	if !vc.IsOpened() {
		vc.Close()
		return fmt.Errorf("%w: index %d", ErrCameraNotFound, index)
	}

	vc.Set(gocv.VideoCaptureFrameWidth, float64(c.width))
	vc.Set(gocv.VideoCaptureFrameHeight, float64(c.height))

	c.capture = vc
	c.mat = gocv.NewMat()
	c.info = DeviceInfo{
		Index:  index,
		Path:   fmt.Sprintf("/dev/video%d", index),
		Name:   vc.CodecString(),
		Driver: "opencv",
	}

	logging.Component("camera").Infof("Opened camera %d at %dx%d", index, c.width, c.height)
	return nil
}

// Read implements Camera.
func (c *OpenCVCamera) Read() (*Frame, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.capture == nil {
		return nil, ErrCameraNotOpen
	}
	if ok := c.capture.Read(&c.mat); !ok || c.mat.Empty() {
		return nil, ErrNoFrame
	}

	buf, err := gocv.IMEncode(gocv.JPEGFileExt, c.mat)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoFrame, err)
	}
	defer buf.Close()

	data := make([]byte, buf.Len())
	copy(data, buf.GetBytes())

	return &Frame{
		Data:      data,
		Width:     c.mat.Cols(),
		Height:    c.mat.Rows(),
		Timestamp: time.Now(),
	}, nil
}

// Close implements Camera.
func (c *OpenCVCamera) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.release()
	return nil
}

func (c *OpenCVCamera) release() {
	if c.capture != nil {
		c.capture.Close()
		c.capture = nil
		c.mat.Close()
	}
}

// IsOpen implements Camera.
func (c *OpenCVCamera) IsOpen() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.capture != nil
}

// Info implements Camera.
func (c *OpenCVCamera) Info() DeviceInfo {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.info
}
