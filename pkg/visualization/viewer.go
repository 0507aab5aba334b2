// Package visualization renders the engine's working images for
// inspection: the image plane, the hole mask, and hole-overlay
// composites, plus numbered dumps of a whole pyramid so intermediary
// stages of a run can be reviewed on disk.
package visualization

import (
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"

	"github.com/DemetryRomanowski/krita/pkg/inpaint"
)

// Plane selects what Render draws from a masked image.
type Plane int

const (
	// PlaneImage renders the colour content
	PlaneImage Plane = iota

	// PlaneMask renders the hole mask, white where pixels are holes
	PlaneMask

	// PlaneOverlay renders the colour content with holes tinted red
	PlaneOverlay
)

// Render draws the selected plane of a masked image into a host image.
func Render(m *inpaint.MaskedImage, plane Plane) image.Image {
	w, h := m.Width(), m.Height()

	if plane == PlaneMask {
		img := image.NewGray(image.Rect(0, 0, w, h))
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				if m.IsMasked(x, y) {
					img.SetGray(x, y, color.Gray{Y: 255})
				}
			}
		}
		return img
	}

	colour := m.ColourChannels()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			var rgb [3]uint8
			for i := range rgb {
				c := colour[len(colour)-1]
				if i < len(colour) {
					c = colour[i]
				}
				rgb[i] = m.PixelU8(x, y, c)
			}
			if plane == PlaneOverlay && m.IsMasked(x, y) {
				// Blend towards red so the hole stays readable over any content.
				rgb[0] = uint8((int(rgb[0]) + 2*255) / 3)
				rgb[1] = uint8(int(rgb[1]) / 3)
				rgb[2] = uint8(int(rgb[2]) / 3)
			}
			img.SetRGBA(x, y, color.RGBA{R: rgb[0], G: rgb[1], B: rgb[2], A: 255})
		}
	}
	return img
}

// SavePNG writes a host image to path, creating parent directories.
func SavePNG(img image.Image, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %v", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %v", path, err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		return fmt.Errorf("failed to encode %s: %v", path, err)
	}
	return nil
}

// SavePyramid writes every level of a pyramid into dir as numbered
// image and mask PNGs, coarsest last.
func SavePyramid(p *inpaint.Pyramid, dir string) error {
	for k := 0; k < p.Len(); k++ {
		level := p.Level(k)
		imgPath := filepath.Join(dir, fmt.Sprintf("level_%02d_image.png", k))
		if err := SavePNG(Render(level, PlaneImage), imgPath); err != nil {
			return err
		}
		maskPath := filepath.Join(dir, fmt.Sprintf("level_%02d_mask.png", k))
		if err := SavePNG(Render(level, PlaneMask), maskPath); err != nil {
			return err
		}
	}
	return nil
}
