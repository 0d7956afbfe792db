package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/MrCodeEU/facekiosk/pkg/attendance"
	"github.com/MrCodeEU/facekiosk/pkg/camera"
	"github.com/MrCodeEU/facekiosk/pkg/config"
	"github.com/MrCodeEU/facekiosk/pkg/logging"
	"github.com/MrCodeEU/facekiosk/pkg/recognition"
	"github.com/MrCodeEU/facekiosk/pkg/recognition/lbph"
	"github.com/MrCodeEU/facekiosk/pkg/roster"
	"github.com/MrCodeEU/facekiosk/pkg/server"
	"github.com/MrCodeEU/facekiosk/pkg/storage"
)

var errNoSignatures = errors.New("no enrollment image yielded a face signature")

// app holds the components shared by the commands.
type app struct {
	cfg      *config.Config
	roster   *roster.Roster
	store    attendance.Store
	recorder *attendance.Recorder

	backend  recognition.Backend
	dlib     *recognition.DlibRecognizer
	enroller *recognition.Enroller
	lbph     *lbph.Backend

	closers []func() error
}

// newApp loads the roster and opens the attendance store. The recognition
// backend is only loaded when withRecognition is set.
func newApp(ctx context.Context, cfg *config.Config, withRecognition bool) (*app, error) {
	a := &app{cfg: cfg}

	a.roster = roster.New(roster.JSONFile{Path: cfg.Roster.File}, cfg.Roster.FacesDir)
	if err := a.roster.Load(); err != nil {
		return nil, err
	}

	store, err := openStore(ctx, cfg)
	if err != nil {
		return nil, err
	}
	a.store = store
	a.closers = append(a.closers, store.Close)
	a.recorder = attendance.NewRecorder(store, a.openCooldown(ctx))

	if withRecognition {
		if err := a.loadRecognition(); err != nil {
			a.Close()
			return nil, err
		}
	}
	return a, nil
}

func openStore(ctx context.Context, cfg *config.Config) (attendance.Store, error) {
	switch cfg.Attendance.Backend {
	case "postgres":
		store, err := attendance.NewPostgresStore(ctx, cfg.Attendance.DatabaseURL, cfg.Attendance.RecordKind)
		if err != nil {
			return nil, fmt.Errorf("failed to open attendance database: %w", err)
		}
		return store, nil
	default:
		return attendance.NewCSVStore(cfg.Attendance.File, cfg.Attendance.RecordKind), nil
	}
}

func (a *app) openCooldown(ctx context.Context) attendance.Cooldown {
	window := a.cfg.CooldownWindow()
	if a.cfg.Attendance.CooldownBackend == "redis" {
		rc := attendance.NewRedisCooldown(a.cfg.Attendance.RedisAddr, window)
		if rc.Healthy(ctx) {
			a.closers = append(a.closers, rc.Close)
			return rc
		}
		_ = rc.Close()
		logging.Warnf("Redis at %s unreachable, using in-memory cooldown", a.cfg.Attendance.RedisAddr)
	}
	return attendance.NewMemoryCooldown(window)
}

func (a *app) loadRecognition() error {
	rc := a.cfg.Recognition
	switch rc.Backend {
	case "lbph":
		b, err := lbph.New(lbph.Options{
			CascadeFile:   rc.CascadeFile,
			ModelFile:     rc.LBPHModelFile,
			LabelsFile:    rc.LBPHLabelsFile,
			AcceptCutoff:  rc.AcceptCutoff,
			DisplayCutoff: rc.DisplayCutoff,
			FaceSize:      rc.FaceSize,
		})
		if err != nil {
			return err
		}
		if err := b.Load(); err != nil {
			if !errors.Is(err, lbph.ErrNotTrained) {
				b.Close()
				return err
			}
			logging.Warnf("Model not trained yet: add employees and run 'facekiosk train'")
		}
		a.lbph = b
		a.backend = b

	default:
		rec := recognition.NewRecognizer()
		rec.SetTolerance(rc.Tolerance)
		if err := rec.LoadModels(rc.ModelPath); err != nil {
			logging.Warnf("Recognition models unavailable (%v): run 'facekiosk download-models'", err)
		}
		sigs, err := storage.NewSignatureStore(a.cfg.SignaturesDir(), a.cfg.Storage.EncryptionEnabled)
		if err != nil {
			logging.Warnf("Signature cache disabled: %v", err)
			sigs = nil
		}
		a.dlib = rec
		a.enroller = recognition.NewEnroller(rec, sigs, a.roster)
		a.backend = rec
		if rec.Ready() {
			a.enroller.Refresh(nil)
		}
	}
	a.closers = append(a.closers, a.backend.Close)
	return nil
}

func (a *app) newCamera() camera.Camera {
	if a.cfg.Camera.Backend == "ffmpeg" {
		return camera.NewFFmpegCamera(a.cfg.Camera.Width, a.cfg.Camera.Height, a.cfg.Camera.FPS, a.cfg.CameraDevice)
	}
	return camera.NewOpenCVCamera(a.cfg.Camera.Width, a.cfg.Camera.Height)
}

// Close releases everything newApp opened, newest first.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			logging.Warnf("Close failed: %v", err)
		}
	}
	a.closers = nil
}

// Train implements server.Trainer.
func (a *app) Train(ctx context.Context) (server.TrainSummary, error) {
	return a.train(nil)
}

// train rebuilds recognition data from every enrollment image.
func (a *app) train(progress func(roster.Employee)) (server.TrainSummary, error) {
	summary := server.TrainSummary{Backend: a.backend.Name()}

	if a.lbph != nil {
		report, err := a.lbph.Train(a.roster.Employees(), progress)
		summary.Processed, summary.Failed = report.Processed, report.Failed
		return summary, err
	}

	if !a.dlib.Ready() {
		return summary, recognition.ErrModelNotLoaded
	}
	report := a.enroller.Refresh(progress)
	summary.Processed = report.Loaded
	summary.Failed = append(summary.Failed, report.Missing...)
	for id := range report.Failed {
		summary.Failed = append(summary.Failed, id)
	}
	if len(summary.Processed) == 0 {
		return summary, errNoSignatures
	}
	return summary, nil
}

// Enroll implements server.Enroller. The dlib backend computes the new
// signature right away; the lbph backend picks the image up on the next
// train.
func (a *app) Enroll(id, name, imagePath string) (roster.Employee, error) {
	emp, err := a.roster.Enroll(id, name, imagePath)
	if err != nil {
		return emp, err
	}
	if a.enroller != nil && a.dlib.Ready() {
		if err := a.enroller.Enroll(emp.ID); err != nil {
			logging.Warnf("Enrolled %s without a face signature: %v", emp.Name, err)
		}
	}
	return emp, nil
}
