package camera

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/MrCodeEU/facekiosk/pkg/logging"
)

// execCommand is swapped in tests.
var execCommand = exec.Command

// FFmpegCamera streams MJPEG from a V4L2 device through an ffmpeg process.
type FFmpegCamera struct {
	mu     sync.Mutex
	width  int
	height int
	fps    int
	device func(index int) string

	cmd    *exec.Cmd
	stdout io.ReadCloser
	reader *bufio.Reader
	info   DeviceInfo
}

// NewFFmpegCamera creates a camera. device maps an index to a device path;
// nil means /dev/video<index>.
func NewFFmpegCamera(width, height, fps int, device func(index int) string) *FFmpegCamera {
	if device == nil {
		device = func(index int) string { return fmt.Sprintf("/dev/video%d", index) }
	}
	return &FFmpegCamera{width: width, height: height, fps: fps, device: device}
}

// Open implements Camera. The device is probed with v4l2-ctl before ffmpeg
// is started.
func (c *FFmpegCamera) Open(index int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.cmd != nil {
		c.stop()
	}

	path := c.device(index)
	info, err := probeDevice(path)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrCameraNotFound, path, err)
	}
	info.Index = index

	cmd := execCommand("ffmpeg",
		"-hide_banner", "-loglevel", "error",
		"-f", "v4l2",
		"-video_size", fmt.Sprintf("%dx%d", c.width, c.height),
		"-framerate", fmt.Sprintf("%d", c.fps),
		"-i", path,
		"-f", "mjpeg", "-q:v", "5",
		"pipe:1",
	)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("failed to create ffmpeg pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start ffmpeg: %w", err)
	}

	c.cmd = cmd
	c.stdout = stdout
	c.reader = bufio.NewReaderSize(stdout, 256*1024)
	c.info = info

	logging.Component("camera").Infof("Streaming %s (%s) at %dx%d", path, info.Name, c.width, c.height)
	return nil
}

// Read implements Camera.
func (c *FFmpegCamera) Read() (*Frame, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.reader == nil {
		return nil, ErrCameraNotOpen
	}

	data, err := readJPEG(c.reader)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoFrame, err)
	}
	return &Frame{
		Data:      data,
		Width:     c.width,
		Height:    c.height,
		Timestamp: time.Now(),
	}, nil
}

// Close implements Camera.
func (c *FFmpegCamera) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stop()
	return nil
}

func (c *FFmpegCamera) stop() {
	if c.cmd == nil {
		return
	}
	if c.cmd.Process != nil {
		_ = c.cmd.Process.Kill()
	}
	_ = c.stdout.Close()
	_ = c.cmd.Wait()
	c.cmd = nil
	c.stdout = nil
	c.reader = nil
}

// IsOpen implements Camera.
func (c *FFmpegCamera) IsOpen() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cmd != nil
}

// Info implements Camera.
func (c *FFmpegCamera) Info() DeviceInfo {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.info
}

// readJPEG returns the next SOI..EOI segment from r.
func readJPEG(r *bufio.Reader) ([]byte, error) {
	// Skip to start of image.
	for {
		b, err := r.ReadByte()
		if err != nil {
			return nil, err
		}
		if b != 0xFF {
			continue
		}
		next, err := r.Peek(1)
		if err != nil {
			return nil, err
		}
		if next[0] == 0xD8 {
			_, _ = r.ReadByte()
			break
		}
	}

	var buf bytes.Buffer
	buf.Write([]byte{0xFF, 0xD8})
	var prev byte
	for {
		b, err := r.ReadByte()
		if err != nil {
			return nil, err
		}
		buf.WriteByte(b)
		if prev == 0xFF && b == 0xD9 {
			return buf.Bytes(), nil
		}
		prev = b
	}
}

func probeDevice(path string) (DeviceInfo, error) {
	info := DeviceInfo{Path: path}

	out, err := execCommand("v4l2-ctl", "--device="+path, "--info").Output()
	if err != nil {
		return info, err
	}

	for _, line := range strings.Split(string(out), "\n") {
		key, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		switch strings.TrimSpace(key) {
		case "Driver name":
			info.Driver = strings.TrimSpace(value)
		case "Card type":
			info.Name = strings.TrimSpace(value)
		}
	}
	return info, nil
}

// ListCameras returns the video devices reported by v4l2-ctl.
func ListCameras() ([]DeviceInfo, error) {
	out, err := execCommand("v4l2-ctl", "--list-devices").Output()
	if err != nil {
		return nil, fmt.Errorf("failed to list cameras: %w", err)
	}

	var devices []DeviceInfo
	var card string
	for _, line := range strings.Split(string(out), "\n") {
		switch {
		case strings.TrimSpace(line) == "":
			continue
		case !strings.HasPrefix(line, "\t") && !strings.HasPrefix(line, " "):
			card = strings.TrimSuffix(strings.TrimSpace(line), ":")
			if i := strings.Index(card, " ("); i > 0 {
				card = card[:i]
			}
		default:
			path := strings.TrimSpace(line)
			if !strings.HasPrefix(path, "/dev/video") {
				continue
			}
			var index int
			if _, err := fmt.Sscanf(path, "/dev/video%d", &index); err != nil {
				continue
			}
			devices = append(devices, DeviceInfo{Index: index, Path: path, Name: card})
		}
	}
	return devices, nil
}
