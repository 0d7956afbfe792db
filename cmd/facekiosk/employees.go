package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var employeesCmd = &cobra.Command{
	Use:   "employees",
	Short: "Manage the employee roster",
}

var employeesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List enrolled employees",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(context.Background(), cfg, false)
		if err != nil {
			return err
		}
		defer a.Close()

		employees := a.roster.Employees()
		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "ID\tNAME\tIMAGE")
		for _, e := range employees {
			image := "missing"
			if _, err := os.Stat(e.ImagePath); err == nil {
				image = e.ImagePath
			}
			fmt.Fprintf(tw, "%s\t%s\t%s\n", e.ID, e.Name, image)
		}
		if err := tw.Flush(); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "\nTotal: %d employee(s)\n", len(employees))
		return nil
	},
}

var employeesAddCmd = &cobra.Command{
	Use:   "add <id> <name> <image>",
	Short: "Add an employee from a face photo",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(context.Background(), cfg, cfg.Recognition.Backend == "dlib")
		if err != nil {
			return err
		}
		defer a.Close()

		emp, err := a.Enroll(args[0], args[1], args[2])
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Added %s (%s), image saved to %s\n", emp.Name, emp.ID, emp.ImagePath)
		if cfg.Recognition.Backend == "lbph" {
			fmt.Fprintln(cmd.OutOrStdout(), "Run 'facekiosk train' to update the model.")
		}
		return nil
	},
}

func init() {
	employeesCmd.AddCommand(employeesListCmd, employeesAddCmd)
}
