// Package metrics exposes Prometheus counters for the kiosk pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	FramesCaptured = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "facekiosk",
		Name:      "frames_captured_total",
		Help:      "Frames read from the camera.",
	})

	CameraErrors = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "facekiosk",
		Name:      "camera_read_errors_total",
		Help:      "Failed camera reads.",
	})

	FramesDropped = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "facekiosk",
		Name:      "display_frames_dropped_total",
		Help:      "Frames dropped because the display queue was full.",
	})

	FacesDetected = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "facekiosk",
		Name:      "faces_detected_total",
		Help:      "Face regions found across all frames.",
	})

	Matches = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "facekiosk",
		Name:      "matches_total",
		Help:      "Frames with an accepted roster match.",
	})

	// AttendanceRecords is labelled by outcome: written, suppressed or failed.
	AttendanceRecords = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "facekiosk",
		Name:      "attendance_records_total",
		Help:      "Attendance write attempts by outcome.",
	}, []string{"outcome"})

	// AssistantQueries is labelled by outcome: ok, error or busy.
	AssistantQueries = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "facekiosk",
		Name:      "assistant_queries_total",
		Help:      "Assistant questions by outcome.",
	}, []string{"outcome"})

	AssistantLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "facekiosk",
		Name:      "assistant_request_seconds",
		Help:      "Latency of language-model requests.",
		Buckets:   []float64{0.5, 1, 2, 5, 10, 20, 30},
	})

	CaptureRunning = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "facekiosk",
		Name:      "capture_running",
		Help:      "1 while the capture loop is running.",
	})
)
