package attendance

import (
	"context"
	"time"

	"github.com/MrCodeEU/facekiosk/pkg/logging"
	"github.com/MrCodeEU/facekiosk/pkg/metrics"
)

// Recorder writes records through a Store, honoring a Cooldown.
type Recorder struct {
	store    Store
	cooldown Cooldown
	now      func() time.Time
}

// NewRecorder creates a Recorder. cooldown may be nil.
func NewRecorder(store Store, cooldown Cooldown) *Recorder {
	return &Recorder{store: store, cooldown: cooldown, now: time.Now}
}

// Store returns the underlying store.
func (r *Recorder) Store() Store {
	return r.store
}

// Record writes one row for the employee unless the cooldown suppresses it.
// It reports whether a row was written. The window is reserved before the
// write and released again when the write fails. Persistence errors are
// logged and returned.
func (r *Recorder) Record(ctx context.Context, id, name, kind string) (bool, error) {
	log := logging.Component("attendance")
	now := r.now()

	reserved := false
	if r.cooldown != nil {
		ok, err := r.cooldown.Reserve(ctx, id, now)
		switch {
		case err != nil:
			log.Warnf("Cooldown check failed for %s, recording anyway: %v", id, err)
		case ok:
			reserved = true
		default:
			metrics.AttendanceRecords.WithLabelValues("suppressed").Inc()
			log.Debugf("Suppressed repeat check-in for %s", id)
			return false, nil
		}
	}

	rec := NewRecord(id, name, kind, now)
	if err := r.store.Append(ctx, rec); err != nil {
		metrics.AttendanceRecords.WithLabelValues("failed").Inc()
		log.Errorf("Failed to record attendance for %s: %v", name, err)
		if reserved {
			if rerr := r.cooldown.Release(ctx, id); rerr != nil {
				log.Warnf("Failed to release cooldown for %s: %v", id, rerr)
			}
		}
		return false, err
	}
	metrics.AttendanceRecords.WithLabelValues("written").Inc()

	suffix := ""
	if kind == KindDemo {
		suffix = " (demo)"
	}
	log.Infof("%s checked in at %s%s", name, rec.Time, suffix)
	return true, nil
}
