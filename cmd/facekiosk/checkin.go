package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/MrCodeEU/facekiosk/pkg/attendance"
	"github.com/MrCodeEU/facekiosk/pkg/roster"
)

var checkinDemo bool

var checkinCmd = &cobra.Command{
	Use:   "checkin <employee-id>",
	Short: "Record attendance without the camera",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		a, err := newApp(ctx, cfg, false)
		if err != nil {
			return err
		}
		defer a.Close()

		emp, ok := a.roster.Lookup(args[0])
		if !ok {
			return fmt.Errorf("%w: %s", roster.ErrEmployeeNotFound, args[0])
		}
		kind := ""
		if checkinDemo {
			kind = attendance.KindDemo
		}

		recorded, err := a.recorder.Record(ctx, emp.ID, emp.Name, kind)
		if err != nil {
			return err
		}
		if recorded {
			fmt.Fprintf(cmd.OutOrStdout(), "%s checked in\n", emp.Name)
		} else {
			fmt.Fprintf(cmd.OutOrStdout(), "%s already checked in within the last %s\n", emp.Name, cfg.CooldownWindow())
		}
		return nil
	},
}

func init() {
	checkinCmd.Flags().BoolVar(&checkinDemo, "demo", false, "Tag the record as a demo check-in")
}
