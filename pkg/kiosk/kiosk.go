// Package kiosk runs the capture loop: frames are read from the camera,
// matched against the roster, recorded as attendance and handed to the
// display.
package kiosk

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/MrCodeEU/facekiosk/pkg/attendance"
	"github.com/MrCodeEU/facekiosk/pkg/camera"
	"github.com/MrCodeEU/facekiosk/pkg/config"
	"github.com/MrCodeEU/facekiosk/pkg/display"
	"github.com/MrCodeEU/facekiosk/pkg/logging"
	"github.com/MrCodeEU/facekiosk/pkg/metrics"
	"github.com/MrCodeEU/facekiosk/pkg/recognition"
	"github.com/MrCodeEU/facekiosk/pkg/roster"
)

const (
	minBackoff = 50 * time.Millisecond
	maxBackoff = 2 * time.Second
)

// ErrNotRunning is returned by operations that need the capture loop.
var ErrNotRunning = errors.New("capture loop not running")

// Matcher judges one frame.
type Matcher interface {
	Match(frame []byte) recognition.Result
}

// Recorder writes attendance rows.
type Recorder interface {
	Record(ctx context.Context, id, name, kind string) (bool, error)
}

// Sink receives rendered frames without blocking.
type Sink interface {
	Offer(frame []byte) bool
}

// Options tunes the capture loop.
type Options struct {
	CameraIndex   int
	FallbackIndex int
	DisplayWidth  int
	DisplayHeight int
	JPEGQuality   int
	// Kind tags rows written for recognized faces.
	Kind string
}

// OptionsFromConfig converts the relevant config sections.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		CameraIndex:   cfg.Camera.Index,
		FallbackIndex: cfg.Camera.FallbackIndex,
		DisplayWidth:  cfg.Display.Width,
		DisplayHeight: cfg.Display.Height,
		JPEGQuality:   cfg.Display.JPEGQuality,
	}
}

// MatchInfo describes the latest accepted match.
type MatchInfo struct {
	EmployeeID string    `json:"employee_id"`
	Name       string    `json:"name"`
	Confidence float64   `json:"confidence"`
	Recorded   bool      `json:"recorded"`
	At         time.Time `json:"at"`
}

// Status is a snapshot of the capture loop.
type Status struct {
	Running     bool       `json:"running"`
	CameraIndex int        `json:"camera_index"`
	Backend     string     `json:"backend,omitempty"`
	ModelReady  bool       `json:"model_ready"`
	Enrolled    int        `json:"enrolled"`
	Frames      uint64     `json:"frames"`
	Faces       int        `json:"faces"`
	LastMatch   *MatchInfo `json:"last_match,omitempty"`
	LastError   string     `json:"last_error,omitempty"`
	StartedAt   time.Time  `json:"started_at,omitempty"`
}

// Kiosk owns the camera while the capture loop runs.
type Kiosk struct {
	opts     Options
	camera   camera.Camera
	matcher  Matcher
	recorder Recorder
	roster   *roster.Roster
	sink     Sink
	backend  string

	render func(frame []byte, res recognition.Result) ([]byte, error)
	sleep  func(ctx context.Context, d time.Duration) bool

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
	status Status
}

// New creates a kiosk. sink may be nil when nothing displays frames.
func New(cam camera.Camera, matcher Matcher, recorder Recorder, r *roster.Roster, sink Sink, opts Options) *Kiosk {
	k := &Kiosk{
		opts:     opts,
		camera:   cam,
		matcher:  matcher,
		recorder: recorder,
		roster:   r,
		sink:     sink,
		sleep:    sleepContext,
	}
	if m, ok := matcher.(*recognition.Matcher); ok {
		k.backend = m.Backend().Name()
	}
	k.render = func(frame []byte, res recognition.Result) ([]byte, error) {
		return display.Render(frame, res, k.opts.DisplayWidth, k.opts.DisplayHeight, k.opts.JPEGQuality)
	}
	return k
}

// Start opens the camera and launches the capture loop. Calling Start while
// the loop runs is a no-op.
func (k *Kiosk) Start(ctx context.Context) error {
	k.mu.Lock()
	defer k.mu.Unlock()

	if k.cancel != nil {
		return nil
	}

	log := logging.Component("capture")
	index, err := camera.OpenWithFallback(k.camera, k.opts.CameraIndex, k.opts.FallbackIndex)
	if err != nil {
		k.status.LastError = err.Error()
		log.Errorf("Camera start failed: %v", err)
		return fmt.Errorf("failed to open camera: %w", err)
	}

	runCtx, cancel := context.WithCancel(ctx)
	k.cancel = cancel
	k.done = make(chan struct{})
	k.status.Running = true
	k.status.CameraIndex = index
	k.status.StartedAt = time.Now()
	k.status.LastError = ""

	metrics.CaptureRunning.Set(1)
	log.Infof("Camera %d running", index)

	go k.loop(runCtx, k.done)
	return nil
}

// Stop ends the capture loop and waits until the camera is released.
func (k *Kiosk) Stop() {
	k.mu.Lock()
	cancel, done := k.cancel, k.done
	k.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// Running reports whether the capture loop is active.
func (k *Kiosk) Running() bool {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.status.Running
}

// Status returns a snapshot of the loop state.
func (k *Kiosk) Status() Status {
	k.mu.Lock()
	defer k.mu.Unlock()
	s := k.status
	s.Backend = k.backend
	if s.LastMatch != nil {
		m := *s.LastMatch
		s.LastMatch = &m
	}
	return s
}

func (k *Kiosk) loop(ctx context.Context, done chan struct{}) {
	log := logging.Component("capture")
	defer func() {
		if err := k.camera.Close(); err != nil {
			log.Warnf("Failed to release camera: %v", err)
		}
		metrics.CaptureRunning.Set(0)

		k.mu.Lock()
		k.cancel = nil
		k.status.Running = false
		k.mu.Unlock()
		close(done)
		log.Info("Camera stopped")
	}()

	backoff := minBackoff
	for {
		if ctx.Err() != nil {
			return
		}

		frame, err := k.camera.Read()
		if err != nil {
			metrics.CameraErrors.Inc()
			if backoff == minBackoff {
				log.Warnf("Camera read failed: %v", err)
			} else {
				log.Debugf("Camera read failed, retrying in %s: %v", backoff, err)
			}
			k.setError(err)
			if !k.sleep(ctx, backoff) {
				return
			}
			backoff = nextBackoff(backoff)
			continue
		}

		backoff = minBackoff
		metrics.FramesCaptured.Inc()
		k.process(ctx, frame)
	}
}

// nextBackoff doubles d up to maxBackoff.
func nextBackoff(d time.Duration) time.Duration {
	d *= 2
	if d > maxBackoff {
		return maxBackoff
	}
	return d
}

func sleepContext(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

func (k *Kiosk) setError(err error) {
	k.mu.Lock()
	k.status.LastError = err.Error()
	k.mu.Unlock()
}

// process handles one frame: match, record, render, enqueue.
func (k *Kiosk) process(ctx context.Context, frame *camera.Frame) {
	res := k.matcher.Match(frame.Data)
	metrics.FacesDetected.Add(float64(len(res.Faces)))

	var info *MatchInfo
	if m := res.Match; m != nil {
		metrics.Matches.Inc()
		recorded, err := k.recorder.Record(ctx, m.EmployeeID, m.Name, k.opts.Kind)
		info = &MatchInfo{
			EmployeeID: m.EmployeeID,
			Name:       m.Name,
			Confidence: m.Confidence,
			Recorded:   recorded,
			At:         frame.Timestamp,
		}
		if err != nil {
			k.setError(err)
		}
	}

	k.mu.Lock()
	k.status.Frames++
	k.status.Faces = len(res.Faces)
	k.status.ModelReady = res.ModelReady
	k.status.Enrolled = res.Enrolled
	if info != nil {
		k.status.LastMatch = info
	}
	k.mu.Unlock()

	if k.sink == nil {
		return
	}
	rendered, err := k.render(frame.Data, res)
	if err != nil {
		logging.Component("capture").Debugf("Skipping frame: %v", err)
		return
	}
	k.sink.Offer(rendered)
}

// CheckIn records attendance for id without a camera match. It is used for
// manual and demo check-ins.
func (k *Kiosk) CheckIn(ctx context.Context, id, kind string) (bool, error) {
	emp, ok := k.roster.Lookup(id)
	if !ok {
		return false, fmt.Errorf("%w: %s", roster.ErrEmployeeNotFound, id)
	}
	return k.recorder.Record(ctx, emp.ID, emp.Name, kind)
}

var _ Recorder = (*attendance.Recorder)(nil)
