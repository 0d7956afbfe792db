package display

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/jpeg"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrCodeEU/facekiosk/pkg/metrics"
	"github.com/MrCodeEU/facekiosk/pkg/recognition"
)

func solid(w, h int, c color.Color) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	return img
}

func encode(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, img, nil))
	return buf.Bytes()
}

func TestAnnotate_DrawsBoxAndStatus(t *testing.T) {
	gray := color.RGBA{40, 40, 40, 255}
	res := recognition.Result{
		ModelReady: true,
		Enrolled:   3,
		Faces: []recognition.Detection{{
			Box:        recognition.Rectangle{X: 100, Y: 100, Width: 80, Height: 80},
			EmployeeID: "001",
			Name:       "Alice",
			Confidence: 42,
			Accepted:   true,
		}},
	}

	out := Annotate(solid(320, 240, gray), res)

	assert.Equal(t, color.RGBA{0, 255, 0, 255}, out.RGBAAt(100, 140), "left edge of box")
	assert.Equal(t, color.RGBA{0, 255, 0, 255}, out.RGBAAt(179, 140), "right edge of box")
	assert.Equal(t, gray, out.RGBAAt(140, 140), "box interior untouched")

	changed := false
	for y := 0; y < 45 && !changed; y++ {
		for x := 10; x < 200; x++ {
			if out.RGBAAt(x, y) != gray {
				changed = true
				break
			}
		}
	}
	assert.True(t, changed, "status lines drawn")
}

func TestAnnotate_ClipsBoxesOutsideFrame(t *testing.T) {
	res := recognition.Result{Faces: []recognition.Detection{{
		Box: recognition.Rectangle{X: -20, Y: 300, Width: 100, Height: 100},
	}}}
	assert.NotPanics(t, func() { Annotate(solid(64, 48, color.Black), res) })
}

func TestFit(t *testing.T) {
	tests := []struct {
		name         string
		w, h         int
		wantW, wantH int
	}{
		{"already fits", 640, 480, 640, 480},
		{"wide frame", 1280, 720, 640, 360},
		{"tall frame", 480, 960, 240, 480},
		{"small frame scales up", 320, 240, 640, 480},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := Fit(image.NewRGBA(image.Rect(0, 0, tt.w, tt.h)), 640, 480)
			assert.Equal(t, tt.wantW, out.Bounds().Dx())
			assert.Equal(t, tt.wantH, out.Bounds().Dy())
		})
	}
}

func TestRender(t *testing.T) {
	frame := encode(t, solid(1280, 720, color.White))

	out, err := Render(frame, recognition.Result{}, 640, 480, 80)
	require.NoError(t, err)

	img, err := jpeg.Decode(bytes.NewReader(out))
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 640, 360), img.Bounds())

	_, err = Render([]byte("not a jpeg"), recognition.Result{}, 640, 480, 80)
	assert.Error(t, err)
}

func TestQueue_DropsIncomingWhenFull(t *testing.T) {
	q := NewQueue(2)
	before := testutil.ToFloat64(metrics.FramesDropped)

	assert.True(t, q.Offer([]byte("a")))
	assert.True(t, q.Offer([]byte("b")))
	assert.False(t, q.Offer([]byte("c")))
	assert.Equal(t, 2, q.Len())
	assert.Equal(t, before+1, testutil.ToFloat64(metrics.FramesDropped))

	f, ok := q.Poll()
	require.True(t, ok)
	assert.Equal(t, "a", string(f))
	f, _ = q.Poll()
	assert.Equal(t, "b", string(f))
	_, ok = q.Poll()
	assert.False(t, ok)
}

func TestQueue_OfferNeverBlocks(t *testing.T) {
	q := NewQueue(DefaultQueueSize)
	done := make(chan struct{})
	go func() {
		for i := 0; i < 100; i++ {
			q.Offer([]byte{byte(i)})
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Offer blocked on a full queue")
	}
}

func TestCanvas_RunPaintsQueuedFrames(t *testing.T) {
	q := NewQueue(2)
	c := NewCanvas()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go c.Run(ctx, q, 5*time.Millisecond)

	frame, seq := c.Latest()
	assert.Nil(t, frame)

	q.Offer([]byte("frame-1"))
	waitCtx, waitCancel := context.WithTimeout(ctx, time.Second)
	defer waitCancel()
	frame, next, err := c.Next(waitCtx, seq)
	require.NoError(t, err)
	assert.Equal(t, "frame-1", string(frame))
	assert.Greater(t, next, seq)
}

func TestCanvas_NextHonoursContext(t *testing.T) {
	c := NewCanvas()
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, _, err := c.Next(ctx, 0)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestMJPEGHandler_StreamsFrames(t *testing.T) {
	c := NewCanvas()
	c.Paint([]byte("jpeg-1"))

	srv := httptest.NewServer(MJPEGHandler(c))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL, nil)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	mediaType, params, err := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	require.NoError(t, err)
	assert.Equal(t, "multipart/x-mixed-replace", mediaType)

	mr := multipart.NewReader(resp.Body, params["boundary"])
	part, err := mr.NextPart()
	require.NoError(t, err)
	assert.Equal(t, "image/jpeg", part.Header.Get("Content-Type"))
	body, _ := io.ReadAll(io.LimitReader(part, 6))
	assert.Equal(t, "jpeg-1", string(body))

	c.Paint([]byte("jpeg-2"))
	part, err = mr.NextPart()
	require.NoError(t, err)
	body, _ = io.ReadAll(io.LimitReader(part, 6))
	assert.Equal(t, "jpeg-2", string(body))
}
