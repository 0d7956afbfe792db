package main

import (
	"context"
	"fmt"
	"os"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/MrCodeEU/facekiosk/pkg/roster"
)

var trainCmd = &cobra.Command{
	Use:   "train",
	Short: "Rebuild recognition data from the enrollment images",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(context.Background(), cfg, true)
		if err != nil {
			return err
		}
		defer a.Close()

		bar := progressbar.NewOptions(a.roster.Len(),
			progressbar.OptionSetDescription("Training"),
			progressbar.OptionSetWriter(os.Stderr),
			progressbar.OptionShowCount(),
			progressbar.OptionShowElapsedTimeOnFinish(),
		)
		summary, err := a.train(func(roster.Employee) { _ = bar.Add(1) })
		_ = bar.Finish()
		fmt.Fprintln(os.Stderr)

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Backend:   %s\n", summary.Backend)
		fmt.Fprintf(out, "Processed: %d %v\n", len(summary.Processed), summary.Processed)
		if len(summary.Failed) > 0 {
			fmt.Fprintf(out, "Failed:    %d %v\n", len(summary.Failed), summary.Failed)
		}
		return err
	},
}
