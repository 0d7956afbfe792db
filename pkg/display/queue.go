package display

import (
	"context"
	"sync"
	"time"

	"github.com/MrCodeEU/facekiosk/pkg/metrics"
)

// DefaultQueueSize is the number of rendered frames waiting for the canvas.
const DefaultQueueSize = 2

// Queue is a small bounded hand-off between the capture loop and the canvas.
type Queue struct {
	ch chan []byte
}

// NewQueue creates a queue holding up to size frames.
func NewQueue(size int) *Queue {
	if size <= 0 {
		size = DefaultQueueSize
	}
	return &Queue{ch: make(chan []byte, size)}
}

// Offer enqueues frame without blocking. When the queue is full the incoming
// frame is dropped and false is returned.
func (q *Queue) Offer(frame []byte) bool {
	select {
	case q.ch <- frame:
		return true
	default:
		metrics.FramesDropped.Inc()
		return false
	}
}

// Poll dequeues one frame if available.
func (q *Queue) Poll() ([]byte, bool) {
	select {
	case f := <-q.ch:
		return f, true
	default:
		return nil, false
	}
}

// Len returns the number of queued frames.
func (q *Queue) Len() int {
	return len(q.ch)
}

// Canvas holds the most recently painted frame.
type Canvas struct {
	mu      sync.RWMutex
	frame   []byte
	seq     uint64
	changed chan struct{}
}

// NewCanvas creates an empty canvas.
func NewCanvas() *Canvas {
	return &Canvas{changed: make(chan struct{})}
}

// Paint replaces the current frame and wakes waiters.
func (c *Canvas) Paint(frame []byte) {
	c.mu.Lock()
	c.frame = frame
	c.seq++
	close(c.changed)
	c.changed = make(chan struct{})
	c.mu.Unlock()
}

// Latest returns the current frame and its sequence number. The frame is nil
// until something has been painted.
func (c *Canvas) Latest() ([]byte, uint64) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.frame, c.seq
}

// Next blocks until a frame newer than seq is painted.
func (c *Canvas) Next(ctx context.Context, seq uint64) ([]byte, uint64, error) {
	for {
		c.mu.RLock()
		frame, cur, changed := c.frame, c.seq, c.changed
		c.mu.RUnlock()
		if cur > seq {
			return frame, cur, nil
		}
		select {
		case <-ctx.Done():
			return nil, seq, ctx.Err()
		case <-changed:
		}
	}
}

// Run drains q every interval and paints the newest frame taken, until ctx is
// cancelled.
func (c *Canvas) Run(ctx context.Context, q *Queue, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if f, ok := q.Poll(); ok {
				c.Paint(f)
			}
		}
	}
}
