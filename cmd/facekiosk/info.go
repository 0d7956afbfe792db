package main

import (
	"fmt"
	"io"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/MrCodeEU/facekiosk/pkg/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show current configuration",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		printConfig(cmd.OutOrStdout(), cfg)
		return nil
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Args:  cobra.NoArgs,
	// Runs without a config file.
	PersistentPreRunE: func(*cobra.Command, []string) error { return nil },
	Run: func(cmd *cobra.Command, args []string) {
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "facekiosk v%s\n", version)
		fmt.Fprintf(out, "  Go version: %s\n", runtime.Version())
		fmt.Fprintf(out, "  Platform:   %s/%s\n", runtime.GOOS, runtime.GOARCH)
	},
}

func printConfig(w io.Writer, c *config.Config) {
	secret := "(not set)"
	if c.Assistant.APIKey != "" {
		secret = "(set)"
	}

	fmt.Fprintln(w, "Camera:")
	fmt.Fprintf(w, "  Backend:         %s\n", c.Camera.Backend)
	fmt.Fprintf(w, "  Index:           %d (fallback %d)\n", c.Camera.Index, c.Camera.FallbackIndex)
	fmt.Fprintf(w, "  Resolution:      %dx%d @ %d FPS\n", c.Camera.Width, c.Camera.Height, c.Camera.FPS)

	fmt.Fprintln(w, "\nRecognition:")
	fmt.Fprintf(w, "  Backend:         %s\n", c.Recognition.Backend)
	if c.Recognition.Backend == "lbph" {
		fmt.Fprintf(w, "  Cascade:         %s\n", c.Recognition.CascadeFile)
		fmt.Fprintf(w, "  Model:           %s\n", c.Recognition.LBPHModelFile)
		fmt.Fprintf(w, "  Cutoffs:         accept < %.0f, display < %.0f\n", c.Recognition.AcceptCutoff, c.Recognition.DisplayCutoff)
	} else {
		fmt.Fprintf(w, "  Model Path:      %s\n", c.Recognition.ModelPath)
		fmt.Fprintf(w, "  Tolerance:       %.2f\n", c.Recognition.Tolerance)
	}

	fmt.Fprintln(w, "\nRoster:")
	fmt.Fprintf(w, "  File:            %s\n", c.Roster.File)
	fmt.Fprintf(w, "  Faces:           %s\n", c.Roster.FacesDir)

	fmt.Fprintln(w, "\nAttendance:")
	fmt.Fprintf(w, "  Backend:         %s\n", c.Attendance.Backend)
	if c.Attendance.Backend == "csv" {
		fmt.Fprintf(w, "  File:            %s\n", c.Attendance.File)
	}
	fmt.Fprintf(w, "  Cooldown:        %s (%s)\n", c.CooldownWindow(), c.Attendance.CooldownBackend)

	fmt.Fprintln(w, "\nAssistant:")
	fmt.Fprintf(w, "  Provider:        %s\n", c.Assistant.Provider)
	fmt.Fprintf(w, "  URL:             %s\n", c.Assistant.APIURL)
	fmt.Fprintf(w, "  Model:           %s\n", c.Assistant.Model)
	fmt.Fprintf(w, "  API Key:         %s\n", secret)

	fmt.Fprintln(w, "\nServer:")
	fmt.Fprintf(w, "  Address:         http://%s\n", c.Addr())

	fmt.Fprintln(w, "\nStorage:")
	fmt.Fprintf(w, "  Data Dir:        %s\n", c.Storage.DataDir)
	fmt.Fprintf(w, "  Encryption:      %t\n", c.Storage.EncryptionEnabled)

	fmt.Fprintln(w, "\nLogging:")
	fmt.Fprintf(w, "  Level:           %s\n", c.Logging.Level)
	fmt.Fprintf(w, "  File:            %s\n", c.Logging.File)
}
