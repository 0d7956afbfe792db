package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestAttendanceRecordsByOutcome(t *testing.T) {
	before := testutil.ToFloat64(AttendanceRecords.WithLabelValues("written"))
	AttendanceRecords.WithLabelValues("written").Inc()
	assert.Equal(t, before+1, testutil.ToFloat64(AttendanceRecords.WithLabelValues("written")))
}

func TestCaptureRunningGauge(t *testing.T) {
	CaptureRunning.Set(1)
	assert.Equal(t, 1.0, testutil.ToFloat64(CaptureRunning))
	CaptureRunning.Set(0)
	assert.Equal(t, 0.0, testutil.ToFloat64(CaptureRunning))
}
