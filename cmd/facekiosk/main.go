package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/MrCodeEU/facekiosk/pkg/config"
	"github.com/MrCodeEU/facekiosk/pkg/logging"
)

const version = "0.1.0"

var (
	cfg        *config.Config
	configFile string
	debug      bool
)

var rootCmd = &cobra.Command{
	Use:     "facekiosk",
	Short:   "Face recognition attendance kiosk",
	Version: version,
	Long: `facekiosk reads a camera, recognizes enrolled employees, appends their
check-ins to an attendance log and answers questions about the log through a
hosted language model.`,
	SilenceUsage:      true,
	PersistentPreRunE: loadConfig,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "Path to configuration file")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug logging")

	rootCmd.AddCommand(
		serveCmd,
		employeesCmd,
		trainCmd,
		recognizeCmd,
		checkinCmd,
		askCmd,
		exportCmd,
		downloadCmd,
		camerasCmd,
		configCmd,
		versionCmd,
	)
}

func loadConfig(cmd *cobra.Command, args []string) error {
	var err error
	if configFile != "" {
		cfg, err = config.Load(configFile)
		if err != nil {
			return err
		}
	} else {
		cfg, err = config.LoadDefault()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Warning: Could not load config: %v\n", err)
			cfg = config.DefaultConfig()
		}
	}

	cfg.ExpandPaths()
	if err := cfg.ApplySecrets(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	level := cfg.Logging.Level
	if debug {
		level = "debug"
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return err
	}
	if err := logging.Init(level, cfg.Logging.File); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: Could not initialize file logging: %v\n", err)
	}

	logging.Debugf("facekiosk v%s starting", version)
	logging.Debugf("Config loaded, data dir: %s", cfg.Storage.DataDir)
	return nil
}
