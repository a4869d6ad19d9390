// Package preview generates the advisory per-series PNG thumbnail
// described in spec.md §4.4: windowed to [0,255], aspect-preserving
// resize, padded onto a fixed 896x896 canvas. Grounded on
// mrsinham-dicomforge's use of golang.org/x/image/draw for aspect-aware
// scaling (go/internal/dicom/generator.go).
package preview

import (
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"
	"sort"

	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

const canvasSize = 896

// WindowParams is the DICOM windowing applied before mapping to 8-bit.
type WindowParams struct {
	Center float64
	Width  float64
	HasWindow bool
}

// ApplyWindowing maps a float32 slice to [0,255] using WindowCenter/Width
// when present, else the 1st-99th percentile of the data (spec.md §4.4).
func ApplyWindowing(pixels []float32, params WindowParams) []uint8 {
	var lo, hi float64
	if params.HasWindow {
		lo = params.Center - params.Width/2
		hi = params.Center + params.Width/2
	} else {
		lo, hi = percentileRange(pixels, 1, 99)
	}
	if hi <= lo {
		hi = lo + 1
	}

	out := make([]uint8, len(pixels))
	for i, v := range pixels {
		f := (float64(v) - lo) / (hi - lo)
		if f < 0 {
			f = 0
		}
		if f > 1 {
			f = 1
		}
		out[i] = uint8(f * 255)
	}
	return out
}

func percentileRange(pixels []float32, lowPct, highPct float64) (float64, float64) {
	if len(pixels) == 0 {
		return 0, 1
	}
	sorted := make([]float32, len(pixels))
	copy(sorted, pixels)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	lowIdx := int(float64(len(sorted)-1) * lowPct / 100)
	highIdx := int(float64(len(sorted)-1) * highPct / 100)
	return float64(sorted[lowIdx]), float64(sorted[highIdx])
}

// BuildGray renders an 8-bit windowed slice into a grayscale image.
func BuildGray(width, height int, values []uint8) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, width, height))
	for i, v := range values {
		img.Pix[i] = v
	}
	return img
}

// stampLabel burns a one-line caption (series description/modality) into the
// bottom-left corner of the canvas, the way a PACS QC viewer annotates its
// thumbnails, so the advisory preview stays identifiable once detached from
// its metadata sidecar.
func stampLabel(canvas *image.Gray, label string) {
	if label == "" {
		return
	}
	const margin = 8
	d := &font.Drawer{
		Dst:  canvas,
		Src:  image.NewUniform(color.Gray{Y: 255}),
		Face: basicfont.Face7x13,
		Dot:  fixed.P(margin, canvasSize-margin),
	}
	d.DrawString(label)
}

// RenderToCanvas resizes src preserving pixelSpacing aspect ratio, then
// pads/crops it onto a fixed canvasSize x canvasSize black canvas and
// writes it as a PNG to outputPath. label, when non-empty, is stamped into
// the bottom-left corner.
func RenderToCanvas(src *image.Gray, pixelSpacingRow, pixelSpacingCol float64, outputPath, label string) error {
	bounds := src.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	if width == 0 || height == 0 {
		return fmt.Errorf("preview: empty source image")
	}

	aspect := pixelSpacingCol / pixelSpacingRow
	if aspect <= 0 {
		aspect = 1
	}

	targetW, targetH := fitWithAspect(width, height, aspect, canvasSize)

	scaled := image.NewGray(image.Rect(0, 0, targetW, targetH))
	draw.BiLinear.Scale(scaled, scaled.Bounds(), src, bounds, draw.Over, nil)

	canvas := image.NewGray(image.Rect(0, 0, canvasSize, canvasSize))
	draw.Draw(canvas, canvas.Bounds(), image.NewUniform(color.Gray{Y: 0}), image.Point{}, draw.Src)

	offsetX := (canvasSize - targetW) / 2
	offsetY := (canvasSize - targetH) / 2
	draw.Draw(canvas, image.Rect(offsetX, offsetY, offsetX+targetW, offsetY+targetH), scaled, image.Point{}, draw.Over)
	stampLabel(canvas, label)

	f, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("preview: create %s: %w", outputPath, err)
	}
	defer f.Close()
	return png.Encode(f, canvas)
}

func fitWithAspect(width, height int, pixelAspect float64, maxSize int) (int, int) {
	physW := float64(width) * pixelAspect
	physH := float64(height)
	scale := float64(maxSize) / physW
	if physH*scale > float64(maxSize) {
		scale = float64(maxSize) / physH
	}
	targetW := int(physW * scale)
	targetH := int(physH * scale)
	if targetW < 1 {
		targetW = 1
	}
	if targetH < 1 {
		targetH = 1
	}
	if targetW > maxSize {
		targetW = maxSize
	}
	if targetH > maxSize {
		targetH = maxSize
	}
	return targetW, targetH
}
