package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/MrCodeEU/facekiosk/pkg/camera"
)

var camerasCmd = &cobra.Command{
	Use:   "cameras",
	Short: "List video devices",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		devices, err := camera.ListCameras()
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if len(devices) == 0 {
			fmt.Fprintln(out, "No cameras found.")
			return nil
		}
		for _, d := range devices {
			fmt.Fprintf(out, "  %d  %-14s %s\n", d.Index, d.Path, d.Name)
		}
		return nil
	},
}
