// Package display turns annotated camera frames into a stream for the kiosk
// panel.
package display

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"

	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/MrCodeEU/facekiosk/pkg/recognition"
)

var (
	colorBox     = color.RGBA{0, 255, 0, 255}
	colorHigh    = color.RGBA{0, 255, 0, 255}
	colorMedium  = color.RGBA{255, 255, 0, 255}
	colorLow     = color.RGBA{255, 165, 0, 255}
	colorUnknown = color.RGBA{255, 0, 0, 255}
	colorStatus  = color.RGBA{255, 255, 255, 255}
)

const boxThickness = 2

// Annotate draws face boxes, identity labels and status lines onto a copy of
// img.
func Annotate(img image.Image, res recognition.Result) *image.RGBA {
	bounds := img.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	draw.Draw(dst, dst.Bounds(), img, bounds.Min, draw.Src)

	drawText(dst, 10, 20, fmt.Sprintf("%d faces detected", len(res.Faces)), colorStatus)
	if res.ModelReady {
		drawText(dst, 10, 40, fmt.Sprintf("model loaded (%d people)", res.Enrolled), colorStatus)
	} else {
		drawText(dst, 10, 40, "model not trained", colorUnknown)
	}

	for _, d := range res.Faces {
		r := image.Rect(d.Box.X, d.Box.Y, d.Box.X+d.Box.Width, d.Box.Y+d.Box.Height)
		drawRect(dst, r, colorBox)

		switch {
		case d.Labelled():
			c := levelColor(recognition.ConfidenceLevel(d.Confidence))
			drawText(dst, r.Min.X, r.Min.Y-22, d.EmployeeID+" "+d.Name, c)
			drawText(dst, r.Min.X, r.Min.Y-6,
				fmt.Sprintf("confidence: %s (%.0f)", recognition.ConfidenceLevel(d.Confidence), d.Confidence), c)
		case res.ModelReady:
			drawText(dst, r.Min.X, r.Min.Y-6, fmt.Sprintf("unknown (%.0f)", d.Confidence), colorUnknown)
		}
	}
	return dst
}

func levelColor(l recognition.Level) color.Color {
	switch l {
	case recognition.LevelHigh:
		return colorHigh
	case recognition.LevelMedium:
		return colorMedium
	default:
		return colorLow
	}
}

// drawRect outlines r, clipped to dst.
func drawRect(dst *image.RGBA, r image.Rectangle, c color.Color) {
	src := image.NewUniform(c)
	edges := []image.Rectangle{
		image.Rect(r.Min.X, r.Min.Y, r.Max.X, r.Min.Y+boxThickness),
		image.Rect(r.Min.X, r.Max.Y-boxThickness, r.Max.X, r.Max.Y),
		image.Rect(r.Min.X, r.Min.Y, r.Min.X+boxThickness, r.Max.Y),
		image.Rect(r.Max.X-boxThickness, r.Min.Y, r.Max.X, r.Max.Y),
	}
	for _, e := range edges {
		draw.Draw(dst, e.Intersect(dst.Bounds()), src, image.Point{}, draw.Src)
	}
}

// drawText writes s with its baseline at y. Runes outside the font are
// skipped.
func drawText(dst *image.RGBA, x, y int, s string, c color.Color) {
	if y < 13 {
		y = 13
	}
	d := &font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(c),
		Face: basicfont.Face7x13,
		Dot:  fixed.P(x, y),
	}
	d.DrawString(s)
}

// Fit scales img to the largest size inside width×height that keeps its
// aspect ratio. Images already at that size are returned unchanged.
func Fit(img image.Image, width, height int) image.Image {
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if w == 0 || h == 0 || width <= 0 || height <= 0 {
		return img
	}

	scale := float64(width) / float64(w)
	if s := float64(height) / float64(h); s < scale {
		scale = s
	}
	newWidth := int(float64(w) * scale)
	newHeight := int(float64(h) * scale)
	if newWidth == w && newHeight == h {
		return img
	}

	dst := image.NewRGBA(image.Rect(0, 0, newWidth, newHeight))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, bounds, draw.Over, nil)
	return dst
}

// Render decodes a JPEG frame, annotates it, fits it to width×height and
// re-encodes it.
func Render(frame []byte, res recognition.Result, width, height, quality int) ([]byte, error) {
	img, err := jpeg.Decode(bytes.NewReader(frame))
	if err != nil {
		return nil, fmt.Errorf("failed to decode frame: %w", err)
	}

	out := Fit(Annotate(img, res), width, height)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, out, &jpeg.Options{Quality: quality}); err != nil {
		return nil, fmt.Errorf("failed to encode frame: %w", err)
	}
	return buf.Bytes(), nil
}
