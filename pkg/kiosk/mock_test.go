package kiosk

import (
	"context"
	"io"
	"sync"
	"sync/atomic"

	"github.com/MrCodeEU/facekiosk/pkg/attendance"
	"github.com/MrCodeEU/facekiosk/pkg/camera"
	"github.com/MrCodeEU/facekiosk/pkg/recognition"
)

// MockCamera implements camera.Camera for testing.
type MockCamera struct {
	OpenFunc  func(index int) error
	ReadFunc  func() (*camera.Frame, error)
	CloseFunc func() error

	mu     sync.Mutex
	opened []int
	open   bool
	reads  int64
	closes int64
}

func (m *MockCamera) Open(index int) error {
	m.mu.Lock()
	m.opened = append(m.opened, index)
	m.mu.Unlock()
	if m.OpenFunc != nil {
		if err := m.OpenFunc(index); err != nil {
			return err
		}
	}
	m.mu.Lock()
	m.open = true
	m.mu.Unlock()
	return nil
}

func (m *MockCamera) Read() (*camera.Frame, error) {
	atomic.AddInt64(&m.reads, 1)
	if m.ReadFunc != nil {
		return m.ReadFunc()
	}
	return &camera.Frame{Data: []byte("frame")}, nil
}

func (m *MockCamera) Close() error {
	atomic.AddInt64(&m.closes, 1)
	m.mu.Lock()
	m.open = false
	m.mu.Unlock()
	if m.CloseFunc != nil {
		return m.CloseFunc()
	}
	return nil
}

func (m *MockCamera) IsOpen() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.open
}

func (m *MockCamera) Info() camera.DeviceInfo {
	return camera.DeviceInfo{Name: "mock"}
}

func (m *MockCamera) Opened() []int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]int(nil), m.opened...)
}

func (m *MockCamera) Reads() int64  { return atomic.LoadInt64(&m.reads) }
func (m *MockCamera) Closes() int64 { return atomic.LoadInt64(&m.closes) }

// MockMatcher returns a fixed result for every frame.
type MockMatcher struct {
	MatchFunc func(frame []byte) recognition.Result
}

func (m *MockMatcher) Match(frame []byte) recognition.Result {
	if m.MatchFunc != nil {
		return m.MatchFunc(frame)
	}
	return recognition.Result{ModelReady: true}
}

// matchAlways builds a matcher accepting id/name on every frame.
func matchAlways(id, name string) *MockMatcher {
	return &MockMatcher{MatchFunc: func([]byte) recognition.Result {
		d := recognition.Detection{
			Box:        recognition.Rectangle{X: 10, Y: 10, Width: 50, Height: 50},
			EmployeeID: id,
			Name:       name,
			Confidence: 30,
			Accepted:   true,
		}
		res := recognition.Result{Faces: []recognition.Detection{d}, ModelReady: true, Enrolled: 1}
		res.Match = &res.Faces[0]
		return res
	}}
}

// collectSink records offered frames.
type collectSink struct {
	mu     sync.Mutex
	frames [][]byte
}

func (s *collectSink) Offer(frame []byte) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.frames = append(s.frames, frame)
	return true
}

func (s *collectSink) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.frames)
}

// memStore is an in-memory attendance.Store.
type memStore struct {
	mu      sync.Mutex
	err     error
	tries   int
	records []attendance.Record
}

func (s *memStore) Append(_ context.Context, r attendance.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tries++
	if s.err != nil {
		return s.err
	}
	s.records = append(s.records, r)
	return nil
}

func (s *memStore) Records(context.Context) ([]attendance.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]attendance.Record(nil), s.records...), nil
}

func (s *memStore) Dump(context.Context, io.Writer) error { return nil }
func (s *memStore) Close() error                          { return nil }

func (s *memStore) attempts() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tries
}
