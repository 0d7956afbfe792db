package camera

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"io"
	"os"
	"os/exec"
	"strings"
	"testing"
	"time"
)

func fakeExecCommand(command string, args ...string) *exec.Cmd {
	cs := []string{"-test.run=TestHelperProcess", "--", command}
	cs = append(cs, args...)
	cmd := exec.Command(os.Args[0], cs...)
	cmd.Env = append(os.Environ(), "GO_WANT_HELPER_PROCESS=1")
	return cmd
}

func testJPEG() []byte {
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	img.Set(1, 1, color.RGBA{255, 0, 0, 255})
	var buf bytes.Buffer
	_ = jpeg.Encode(&buf, img, nil)
	return buf.Bytes()
}

func TestHelperProcess(t *testing.T) {
	if os.Getenv("GO_WANT_HELPER_PROCESS") != "1" {
		return
	}

	// os.Args: [test_binary, -test.run=TestHelperProcess, --, command, args...]
	if len(os.Args) < 4 {
		os.Exit(1)
	}

	args := os.Args[3:]
	switch args[0] {
	case "v4l2-ctl":
		for _, arg := range args {
			if strings.HasPrefix(arg, "--device=") {
				if strings.TrimPrefix(arg, "--device=") == os.Getenv("TEST_MISSING_DEVICE") {
					fmt.Fprintln(os.Stderr, "Cannot open device")
					os.Exit(1)
				}
			}
			if arg == "--info" {
				fmt.Println("Driver Info:")
				fmt.Println("\tDriver name      : uvcvideo")
				fmt.Println("\tCard type        : Integrated Camera")
				os.Exit(0)
			}
			if arg == "--list-devices" {
				fmt.Println("Integrated Camera (usb-0000:00:14.0-1):")
				fmt.Println("\t/dev/video0")
				fmt.Println("\t/dev/video1")
				fmt.Println("\t/dev/media0")
				fmt.Println()
				fmt.Println("USB Webcam (usb-0000:00:14.0-2):")
				fmt.Println("\t/dev/video2")
				os.Exit(0)
			}
		}
	case "ffmpeg":
		if os.Getenv("TEST_FAIL_FFMPEG") == "1" {
			os.Exit(1)
		}
		frame := testJPEG()
		for i := 0; i < 20; i++ {
			_, _ = os.Stdout.Write(frame)
			// padding between frames
			_, _ = os.Stdout.Write([]byte{0x00, 0x00})
			time.Sleep(5 * time.Millisecond)
		}
		time.Sleep(2 * time.Second)
	}
	os.Exit(0)
}

func useFakeExec(t *testing.T) {
	t.Helper()
	execCommand = fakeExecCommand
	t.Cleanup(func() { execCommand = exec.Command })
}

func TestNewFFmpegCamera(t *testing.T) {
	c := NewFFmpegCamera(640, 480, 30, nil)
	if c.width != 640 || c.height != 480 {
		t.Error("resolution not stored")
	}
	if got := c.device(2); got != "/dev/video2" {
		t.Errorf("expected default device path, got %s", got)
	}
	if c.IsOpen() {
		t.Error("new camera should not be open")
	}
}

func TestFFmpegCamera_OpenReadClose(t *testing.T) {
	useFakeExec(t)

	c := NewFFmpegCamera(640, 480, 30, nil)
	if err := c.Open(0); err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer c.Close()

	if !c.IsOpen() {
		t.Error("camera should be open")
	}
	info := c.Info()
	if info.Driver != "uvcvideo" || info.Name != "Integrated Camera" {
		t.Errorf("unexpected device info %+v", info)
	}
	if info.Path != "/dev/video0" || info.Index != 0 {
		t.Errorf("unexpected device path %+v", info)
	}

	for i := 0; i < 3; i++ {
		frame, err := c.Read()
		if err != nil {
			t.Fatalf("Read %d failed: %v", i, err)
		}
		if len(frame.Data) < 4 || frame.Data[0] != 0xFF || frame.Data[1] != 0xD8 {
			t.Fatal("frame is not a JPEG")
		}
		if _, err := frame.ToImage(); err != nil {
			t.Errorf("frame did not decode: %v", err)
		}
		if frame.Width != 640 || frame.Height != 480 {
			t.Errorf("unexpected frame size %dx%d", frame.Width, frame.Height)
		}
	}

	if err := c.Close(); err != nil {
		t.Errorf("Close failed: %v", err)
	}
	if c.IsOpen() {
		t.Error("camera should be closed")
	}
	// Close again is a no-op
	if err := c.Close(); err != nil {
		t.Errorf("second Close failed: %v", err)
	}
}

func TestFFmpegCamera_ReadNotOpen(t *testing.T) {
	c := NewFFmpegCamera(640, 480, 30, nil)
	if _, err := c.Read(); err != ErrCameraNotOpen {
		t.Errorf("expected ErrCameraNotOpen, got %v", err)
	}
}

func TestFFmpegCamera_OpenMissingDevice(t *testing.T) {
	useFakeExec(t)
	t.Setenv("TEST_MISSING_DEVICE", "/dev/video0")

	c := NewFFmpegCamera(640, 480, 30, nil)
	err := c.Open(0)
	if !errors.Is(err, ErrCameraNotFound) {
		t.Errorf("expected ErrCameraNotFound, got %v", err)
	}
	if c.IsOpen() {
		t.Error("camera should not be open")
	}
}

func TestFFmpegCamera_ProcessExitGivesNoFrame(t *testing.T) {
	useFakeExec(t)
	t.Setenv("TEST_FAIL_FFMPEG", "1")

	c := NewFFmpegCamera(640, 480, 30, nil)
	if err := c.Open(0); err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer c.Close()

	if _, err := c.Read(); !errors.Is(err, ErrNoFrame) {
		t.Errorf("expected ErrNoFrame, got %v", err)
	}
}

func TestOpenWithFallback_FFmpeg(t *testing.T) {
	useFakeExec(t)
	t.Setenv("TEST_MISSING_DEVICE", "/dev/video0")

	c := NewFFmpegCamera(640, 480, 30, nil)
	index, err := OpenWithFallback(c, 0, 1)
	if err != nil {
		t.Fatalf("OpenWithFallback failed: %v", err)
	}
	defer c.Close()
	if index != 1 {
		t.Errorf("expected fallback index 1, got %d", index)
	}
	if c.Info().Path != "/dev/video1" {
		t.Errorf("expected /dev/video1, got %s", c.Info().Path)
	}
}

type stubCamera struct {
	failing map[int]bool
	opened  []int
}

func (s *stubCamera) Open(index int) error {
	s.opened = append(s.opened, index)
	if s.failing[index] {
		return ErrCameraNotFound
	}
	return nil
}
func (s *stubCamera) Read() (*Frame, error) { return nil, ErrNoFrame }
func (s *stubCamera) Close() error          { return nil }
func (s *stubCamera) IsOpen() bool          { return true }
func (s *stubCamera) Info() DeviceInfo      { return DeviceInfo{} }

func TestOpenWithFallback(t *testing.T) {
	tests := []struct {
		name      string
		failing   map[int]bool
		fallback  int
		wantIndex int
		wantErr   bool
		wantTries int
	}{
		{"primary works", nil, 1, 0, false, 1},
		{"fallback works", map[int]bool{0: true}, 1, 1, false, 2},
		{"both fail", map[int]bool{0: true, 1: true}, 1, -1, true, 2},
		{"fallback disabled", map[int]bool{0: true}, -1, -1, true, 1},
		{"fallback equals primary", map[int]bool{0: true}, 0, -1, true, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := &stubCamera{failing: tt.failing}
			index, err := OpenWithFallback(c, 0, tt.fallback)
			if (err != nil) != tt.wantErr {
				t.Fatalf("unexpected error state: %v", err)
			}
			if err != nil && !errors.Is(err, ErrCameraNotFound) {
				t.Errorf("expected wrapped ErrCameraNotFound, got %v", err)
			}
			if index != tt.wantIndex {
				t.Errorf("expected index %d, got %d", tt.wantIndex, index)
			}
			if len(c.opened) != tt.wantTries {
				t.Errorf("expected %d open attempts, got %v", tt.wantTries, c.opened)
			}
		})
	}
}

func TestReadJPEG(t *testing.T) {
	frame := []byte{0xFF, 0xD8, 0x01, 0xFF, 0x02, 0xFF, 0xD9}
	stream := append([]byte{0x00, 0xFF, 0x00}, frame...)
	stream = append(stream, 0x00, 0x00)
	stream = append(stream, frame...)

	r := bufio.NewReader(bytes.NewReader(stream))
	for i := 0; i < 2; i++ {
		got, err := readJPEG(r)
		if err != nil {
			t.Fatalf("readJPEG %d failed: %v", i, err)
		}
		if !bytes.Equal(got, frame) {
			t.Errorf("frame %d: got %x, want %x", i, got, frame)
		}
	}

	if _, err := readJPEG(r); err != io.EOF {
		t.Errorf("expected EOF at end of stream, got %v", err)
	}
}

func TestReadJPEG_Truncated(t *testing.T) {
	r := bufio.NewReader(bytes.NewReader([]byte{0xFF, 0xD8, 0x01, 0x02}))
	if _, err := readJPEG(r); err == nil {
		t.Error("expected error for truncated frame")
	}
}

func TestListCameras(t *testing.T) {
	useFakeExec(t)

	devices, err := ListCameras()
	if err != nil {
		t.Fatalf("ListCameras failed: %v", err)
	}
	if len(devices) != 3 {
		t.Fatalf("expected 3 video devices, got %d: %+v", len(devices), devices)
	}
	if devices[0].Name != "Integrated Camera" || devices[0].Index != 0 {
		t.Errorf("unexpected first device %+v", devices[0])
	}
	if devices[2].Name != "USB Webcam" || devices[2].Path != "/dev/video2" {
		t.Errorf("unexpected last device %+v", devices[2])
	}
}

func TestFrameToImage(t *testing.T) {
	frame := &Frame{Data: testJPEG()}
	img, err := frame.ToImage()
	if err != nil {
		t.Fatalf("ToImage failed: %v", err)
	}
	if img.Bounds().Dx() != 4 {
		t.Errorf("unexpected width %d", img.Bounds().Dx())
	}

	bad := &Frame{Data: []byte{0xFF, 0xD8}}
	if _, err := bad.ToImage(); err == nil {
		t.Error("expected decode error for truncated JPEG")
	}
}
