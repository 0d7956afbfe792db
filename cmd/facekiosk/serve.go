package main

import (
	"context"
	"errors"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/MrCodeEU/facekiosk/pkg/assistant"
	"github.com/MrCodeEU/facekiosk/pkg/display"
	"github.com/MrCodeEU/facekiosk/pkg/kiosk"
	"github.com/MrCodeEU/facekiosk/pkg/logging"
	"github.com/MrCodeEU/facekiosk/pkg/recognition"
	"github.com/MrCodeEU/facekiosk/pkg/server"
)

var serveAutostart bool

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the kiosk web panel",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().BoolVar(&serveAutostart, "autostart", false, "Start the camera immediately")
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg, true)
	if err != nil {
		return err
	}
	defer a.Close()

	queue := display.NewQueue(cfg.Display.QueueSize)
	canvas := display.NewCanvas()
	go canvas.Run(ctx, queue, cfg.RefreshInterval())

	matcher := recognition.NewMatcher(a.backend, a.roster)
	k := kiosk.New(a.newCamera(), matcher, a.recorder, a.roster, queue, kiosk.OptionsFromConfig(cfg))
	defer k.Stop()

	provider, err := assistant.NewProvider(ctx, cfg)
	if err != nil {
		if !errors.Is(err, assistant.ErrNotConfigured) {
			return err
		}
		logging.Warnf("Query assistant disabled: %v", err)
	}
	queries := assistant.NewQueue(assistant.New(a.store, provider))
	go queries.Run(ctx)

	srv := server.NewServer(cfg, server.Deps{
		Capture:  k,
		Roster:   a.roster,
		Store:    a.store,
		Queries:  queries,
		Canvas:   canvas,
		Trainer:  a,
		Enroller: a,
		Logs:     logging.History,
	})

	if serveAutostart {
		if err := k.Start(ctx); err != nil {
			logging.Errorf("Camera not started: %v", err)
		}
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
