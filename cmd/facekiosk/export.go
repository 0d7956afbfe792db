package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/MrCodeEU/facekiosk/pkg/attendance"
)

var exportCmd = &cobra.Command{
	Use:   "export <file.xlsx|file.csv>",
	Short: "Export the attendance log",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		a, err := newApp(ctx, cfg, false)
		if err != nil {
			return err
		}
		defer a.Close()

		path := args[0]
		ext := strings.ToLower(filepath.Ext(path))
		if ext != ".xlsx" && ext != ".csv" {
			return fmt.Errorf("unsupported export format %q (use .xlsx or .csv)", filepath.Ext(path))
		}

		out, err := os.Create(path)
		if err != nil {
			return err
		}
		defer out.Close()

		if ext == ".xlsx" {
			records, err := a.store.Records(ctx)
			if err != nil {
				return err
			}
			if err := attendance.ExportXLSX(out, records); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Exported %d record(s) to %s\n", len(records), path)
		} else {
			if err := a.store.Dump(ctx, out); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Exported attendance log to %s\n", path)
		}
		return out.Close()
	},
}
