package main

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/jpeg"
	_ "image/png"
	"os"

	"github.com/spf13/cobra"

	"github.com/MrCodeEU/facekiosk/pkg/recognition"
)

var recognizeCmd = &cobra.Command{
	Use:   "recognize <image>",
	Short: "Run recognition against a still image",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		frame, err := loadAsJPEG(args[0])
		if err != nil {
			return err
		}

		a, err := newApp(context.Background(), cfg, true)
		if err != nil {
			return err
		}
		defer a.Close()

		res := recognition.NewMatcher(a.backend, a.roster).Match(frame)
		out := cmd.OutOrStdout()
		if !res.ModelReady {
			fmt.Fprintln(out, "model not trained")
			return nil
		}
		if res.Err != nil {
			return res.Err
		}

		fmt.Fprintf(out, "%d faces detected\n", len(res.Faces))
		for i, d := range res.Faces {
			who := "unknown"
			if d.Labelled() {
				who = fmt.Sprintf("%s %s", d.EmployeeID, d.Name)
			}
			fmt.Fprintf(out, "  #%d at (%d,%d %dx%d): %s, confidence %.0f (%s), accepted=%t\n",
				i+1, d.Box.X, d.Box.Y, d.Box.Width, d.Box.Height,
				who, d.Confidence, recognition.ConfidenceLevel(d.Confidence), d.Accepted)
		}
		if res.Match != nil {
			fmt.Fprintf(out, "Match: %s (%s)\n", res.Match.Name, res.Match.EmployeeID)
		}
		return nil
	},
}

func loadAsJPEG(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", path, err)
	}
	if format == "jpeg" {
		return data, nil
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 95}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
