package lbph

import (
	"fmt"
	"image"

	"github.com/MrCodeEU/facekiosk/pkg/logging"
	"github.com/MrCodeEU/facekiosk/pkg/roster"
	"gocv.io/x/gocv"
	"gocv.io/x/gocv/contrib"
)

// TrainReport lists which employees contributed a training sample.
type TrainReport struct {
	Processed []string
	Failed    []string
}

// detectParams are tried in order until the cascade finds a face.
var detectParams = []struct {
	scale     float64
	neighbors int
	minSize   image.Point
}{
	{1.1, 4, image.Point{}},
	{1.05, 3, image.Point{}},
	{1.02, 2, image.Pt(30, 30)},
}

// Train rebuilds the classifier from each employee's enrollment image, writes
// the model and label map to disk, and swaps them in.
func (b *Backend) Train(employees []roster.Employee, progress func(roster.Employee)) (TrainReport, error) {
	var report TrainReport
	log := logging.Component("train")

	var samples []gocv.Mat
	var sampleLabels []int
	labels := seedLabels(b.previousLabels(), employees)
	defer func() {
		for _, m := range samples {
			m.Close()
		}
	}()

	for _, e := range employees {
		if progress != nil {
			progress(e)
		}
		face, err := b.loadFace(e.ImagePath)
		if err != nil {
			log.Warnf("Skipping %s: %v", e.Name, err)
			report.Failed = append(report.Failed, e.ID)
			continue
		}
		samples = append(samples, face)
		sampleLabels = append(sampleLabels, labels.Assign(e.ID))
		report.Processed = append(report.Processed, e.ID)
		log.Infof("Processed face data for %s", e.Name)
	}

	if len(samples) == 0 {
		return report, ErrNoTrainingData
	}
	labels = labels.Only(report.Processed)

	model := contrib.NewLBPHFaceRecognizer()
	model.Train(samples, sampleLabels)
	model.SaveFile(b.opts.ModelFile)
	if err := SaveLabels(b.opts.LabelsFile, labels); err != nil {
		model.Close()
		return report, fmt.Errorf("failed to save labels: %w", err)
	}

	b.swap(model, labels)
	log.Infof("Model trained with %d samples", len(samples))
	return report, nil
}

// previousLabels returns the labels in use, falling back to the label file.
func (b *Backend) previousLabels() LabelMap {
	b.mu.RLock()
	current := b.labels
	b.mu.RUnlock()
	if len(current) > 0 {
		return current
	}
	labels, err := LoadLabels(b.opts.LabelsFile)
	if err != nil {
		return nil
	}
	return labels
}

// seedLabels keeps the previous label of every employee still enrolled, so
// labels do not shift when an earlier image fails.
func seedLabels(prev LabelMap, employees []roster.Employee) LabelMap {
	enrolled := make(map[string]bool, len(employees))
	for _, e := range employees {
		enrolled[e.ID] = true
	}
	labels := LabelMap{}
	for label, id := range prev {
		if enrolled[id] {
			labels[label] = id
		}
	}
	return labels
}

// loadFace returns the largest face in the image as a grayscale square.
func (b *Backend) loadFace(path string) (gocv.Mat, error) {
	img := gocv.IMRead(path, gocv.IMReadGrayScale)
	defer img.Close()
	if img.Empty() {
		return gocv.Mat{}, fmt.Errorf("cannot read image %s", path)
	}

	var rects []image.Rectangle
	for _, p := range detectParams {
		rects = b.detect(img, p.scale, p.neighbors, p.minSize)
		if len(rects) > 0 {
			break
		}
	}

	if len(rects) == 0 {
		return gocv.Mat{}, fmt.Errorf("no face detected in %s", path)
	}

	roi := img.Region(largest(rects))
	defer roi.Close()

	face := gocv.NewMat()
	gocv.Resize(roi, &face, image.Pt(b.opts.FaceSize, b.opts.FaceSize), 0, 0, gocv.InterpolationLinear)
	return face, nil
}

func largest(rects []image.Rectangle) image.Rectangle {
	best := rects[0]
	for _, r := range rects[1:] {
		if r.Dx()*r.Dy() > best.Dx()*best.Dy() {
			best = r
		}
	}
	return best
}
