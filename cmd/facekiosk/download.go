package main

import (
	"compress/bzip2"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/MrCodeEU/facekiosk/pkg/logging"
)

type modelFile struct {
	Name string
	URL  string
}

var dlibModels = []modelFile{
	{
		Name: "shape_predictor_5_face_landmarks.dat",
		URL:  "http://dlib.net/files/shape_predictor_5_face_landmarks.dat.bz2",
	},
	{
		Name: "dlib_face_recognition_resnet_model_v1.dat",
		URL:  "http://dlib.net/files/dlib_face_recognition_resnet_model_v1.dat.bz2",
	},
	{
		Name: "mmod_human_face_detector.dat",
		URL:  "http://dlib.net/files/mmod_human_face_detector.dat.bz2",
	},
}

var haarCascade = modelFile{
	Name: "haarcascade_frontalface_default.xml",
	URL:  "https://raw.githubusercontent.com/opencv/opencv/4.x/data/haarcascades/haarcascade_frontalface_default.xml",
}

var downloadCascade bool

var downloadCmd = &cobra.Command{
	Use:   "download-models [dir]",
	Short: "Download face recognition models",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		modelDir := cfg.Recognition.ModelPath
		if len(args) > 0 {
			modelDir = args[0]
		}
		models := dlibModels
		if downloadCascade {
			models = append(append([]modelFile{}, dlibModels...), haarCascade)
		}
		if err := downloadModels(&http.Client{Timeout: 10 * time.Minute}, modelDir, models); err != nil {
			return err
		}
		if downloadCascade {
			fmt.Fprintf(cmd.OutOrStdout(), "Set recognition.cascade_file to %s to use the downloaded cascade.\n",
				filepath.Join(modelDir, haarCascade.Name))
		}
		return nil
	},
}

func init() {
	downloadCmd.Flags().BoolVar(&downloadCascade, "cascade", false, "Also download the Haar cascade used by the lbph backend")
}

func downloadModels(client *http.Client, modelDir string, models []modelFile) error {
	logging.Infof("Downloading models to: %s", modelDir)

	if err := os.MkdirAll(modelDir, 0755); err != nil {
		return fmt.Errorf("failed to create model directory: %w", err)
	}

	for _, model := range models {
		targetPath := filepath.Join(modelDir, model.Name)
		if _, err := os.Stat(targetPath); err == nil {
			logging.Infof("Model %s already exists, skipping", model.Name)
			continue
		}

		if err := downloadFile(client, model.URL, targetPath); err != nil {
			return fmt.Errorf("failed to download %s: %w", model.Name, err)
		}
		logging.Infof("Downloaded %s", model.Name)
	}
	return nil
}

// downloadFile fetches url into targetPath, decompressing .bz2 payloads.
// A partial file is removed on failure.
func downloadFile(client *http.Client, url, targetPath string) error {
	resp, err := client.Get(url)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("bad status: %s", resp.Status)
	}

	bar := progressbar.NewOptions64(resp.ContentLength,
		progressbar.OptionSetDescription(filepath.Base(targetPath)),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionShowBytes(true),
		progressbar.OptionOnCompletion(func() { fmt.Fprintln(os.Stderr) }),
	)

	var src io.Reader = io.TeeReader(resp.Body, bar)
	if strings.HasSuffix(url, ".bz2") {
		src = bzip2.NewReader(src)
	}

	tmp := targetPath + ".part"
	out, err := os.Create(tmp)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, src); err != nil {
		_ = out.Close()
		_ = os.Remove(tmp)
		return err
	}
	if err := out.Close(); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	_ = bar.Finish()
	return os.Rename(tmp, targetPath)
}
