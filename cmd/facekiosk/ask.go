package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/MrCodeEU/facekiosk/pkg/assistant"
)

var askShowPrompt bool

var askCmd = &cobra.Command{
	Use:   "ask <question>",
	Short: "Ask the language model about the attendance log",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		a, err := newApp(ctx, cfg, false)
		if err != nil {
			return err
		}
		defer a.Close()

		question := strings.Join(args, " ")
		if askShowPrompt {
			prompt, err := assistant.New(a.store, nil).Prompt(ctx, question)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), prompt)
			return nil
		}

		provider, err := assistant.NewProvider(ctx, cfg)
		if err != nil {
			return err
		}
		answer, err := assistant.New(a.store, provider).Ask(ctx, question)
		if err != nil {
			return fmt.Errorf("query failed: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), answer)
		return nil
	},
}

func init() {
	askCmd.Flags().BoolVar(&askShowPrompt, "prompt", false, "Print the prompt instead of sending it")
}
