// Package surface abstracts the host application's pixel storage into
// bounded byte grids with per-channel metadata. The inpainting core
// consumes and produces Surface values and never interprets colour
// spaces beyond the colour/alpha channel distinction; all host-specific
// normalisation lives in the adapters of this package.
package surface

import (
	"image"
	"image/color"

	"github.com/pkg/errors"

	"github.com/DemetryRomanowski/krita/internal/grid"
)

// ChannelKind classifies a channel of a pixel surface. Only colour
// channels participate in patch distance and voting; alpha channels are
// carried through the engine untouched.
type ChannelKind int

const (
	// Colour marks a channel holding colour information
	Colour ChannelKind = iota

	// Alpha marks a transparency channel
	Alpha
)

// Surface is the abstract pixel grid consumed by the inpainting engine.
// Reads and writes are deterministic and side-effect free with respect
// to other pixels.
type Surface interface {
	// Bounds returns the pixel extent of the surface. The returned
	// rectangle is always anchored at the origin.
	Bounds() image.Rectangle

	// ChannelCount returns the number of byte samples per pixel.
	ChannelCount() int

	// ChannelKind reports whether channel c carries colour or alpha.
	ChannelKind(c int) ChannelKind

	// Read copies the samples of pixel (x, y) into px, which must have
	// length ChannelCount.
	Read(x, y int, px []uint8)

	// Write stores the samples in px into pixel (x, y).
	Write(x, y int, px []uint8)

	// FillByte sets every sample of every pixel to v. Mask surfaces use
	// this to clear or saturate the hole set in one call.
	FillByte(v uint8)

	// Clone returns an independent deep copy of the surface.
	Clone() Surface
}

// ByteSurface is the dense implementation of Surface used throughout
// the engine: one contiguous row-major buffer with interleaved channel
// samples, addressed as (y*W+x)*C+c.
type ByteSurface struct {
	plane *grid.Bytes
	kinds []ChannelKind
}

// NewByteSurface allocates a zeroed surface of the given dimensions and
// channel layout. The layout must contain at least one channel and at
// most one alpha channel.
func NewByteSurface(width, height int, kinds []ChannelKind) (*ByteSurface, error) {
	if width <= 0 || height <= 0 {
		return nil, errors.Errorf("invalid surface dimensions %dx%d", width, height)
	}
	if len(kinds) == 0 {
		return nil, errors.New("surface requires at least one channel")
	}
	alphas := 0
	for _, k := range kinds {
		if k == Alpha {
			alphas++
		}
	}
	if alphas > 1 {
		return nil, errors.Errorf("surface supports at most one alpha channel, got %d", alphas)
	}
	s := &ByteSurface{
		plane: grid.NewBytes(width, height, len(kinds)),
		kinds: append([]ChannelKind(nil), kinds...),
	}
	return s, nil
}

// Bounds returns the origin-anchored extent of the surface.
func (s *ByteSurface) Bounds() image.Rectangle {
	return image.Rect(0, 0, s.plane.Width, s.plane.Height)
}

// ChannelCount returns the number of samples per pixel.
func (s *ByteSurface) ChannelCount() int {
	return s.plane.Channels
}

// ChannelKind reports the classification of channel c.
func (s *ByteSurface) ChannelKind(c int) ChannelKind {
	return s.kinds[c]
}

// Read copies the samples of pixel (x, y) into px.
func (s *ByteSurface) Read(x, y int, px []uint8) {
	off := s.plane.Offset(x, y, 0)
	copy(px, s.plane.Pix[off:off+s.plane.Channels])
}

// Write stores the samples in px into pixel (x, y).
func (s *ByteSurface) Write(x, y int, px []uint8) {
	off := s.plane.Offset(x, y, 0)
	copy(s.plane.Pix[off:off+s.plane.Channels], px)
}

// FillByte sets every sample of the surface to v.
func (s *ByteSurface) FillByte(v uint8) {
	s.plane.Fill(v)
}

// Clone returns an independent deep copy of the surface.
func (s *ByteSurface) Clone() Surface {
	return &ByteSurface{
		plane: s.plane.Clone(),
		kinds: append([]ChannelKind(nil), s.kinds...),
	}
}

// FromImage adapts a host image.Image into a four-channel surface
// (three colour channels plus one alpha). Host samples are normalised
// to u8 through the standard colour model's 16-bit scale, which is the
// host's own scale function for every stdlib colour space.
func FromImage(img image.Image) (*ByteSurface, error) {
	b := img.Bounds()
	s, err := NewByteSurface(b.Dx(), b.Dy(), []ChannelKind{Colour, Colour, Colour, Alpha})
	if err != nil {
		return nil, errors.Wrap(err, "failed to adapt image")
	}
	px := make([]uint8, 4)
	for y := 0; y < b.Dy(); y++ {
		for x := 0; x < b.Dx(); x++ {
			r, g, bl, a := img.At(b.Min.X+x, b.Min.Y+y).RGBA()
			px[0] = uint8(r >> 8)
			px[1] = uint8(g >> 8)
			px[2] = uint8(bl >> 8)
			px[3] = uint8(a >> 8)
			s.Write(x, y, px)
		}
	}
	return s, nil
}

// FromGray adapts a host image into a single-channel surface holding
// the image's luma. Mask surfaces are built through this adapter: a
// pixel whose byte is below 128 designates a hole.
func FromGray(img image.Image) (*ByteSurface, error) {
	b := img.Bounds()
	s, err := NewByteSurface(b.Dx(), b.Dy(), []ChannelKind{Colour})
	if err != nil {
		return nil, errors.Wrap(err, "failed to adapt mask image")
	}
	px := make([]uint8, 1)
	for y := 0; y < b.Dy(); y++ {
		for x := 0; x < b.Dx(); x++ {
			g := color.GrayModel.Convert(img.At(b.Min.X+x, b.Min.Y+y)).(color.Gray)
			px[0] = g.Y
			s.Write(x, y, px)
		}
	}
	return s, nil
}

// ToImage converts a surface back into a host image. Single-channel
// surfaces become grayscale images. Every other layout becomes an RGBA
// image: the first three colour channels map onto RGB (the last colour
// channel repeats when there are fewer than three), and alpha comes
// from the alpha channel when there is one and is opaque otherwise.
func ToImage(s Surface) image.Image {
	b := s.Bounds()
	c := s.ChannelCount()
	px := make([]uint8, c)

	if c == 1 {
		img := image.NewGray(b)
		for y := 0; y < b.Dy(); y++ {
			for x := 0; x < b.Dx(); x++ {
				s.Read(x, y, px)
				img.SetGray(x, y, color.Gray{Y: px[0]})
			}
		}
		return img
	}

	// Collect up to three colour channels and an optional alpha channel.
	colourIdx := make([]int, 0, c)
	alphaIdx := -1
	for i := 0; i < c; i++ {
		if s.ChannelKind(i) == Alpha {
			alphaIdx = i
		} else if len(colourIdx) < 3 {
			colourIdx = append(colourIdx, i)
		}
	}

	img := image.NewRGBA(b)
	for y := 0; y < b.Dy(); y++ {
		for x := 0; x < b.Dx(); x++ {
			s.Read(x, y, px)
			var rgb [3]uint8
			for i := range rgb {
				if i < len(colourIdx) {
					rgb[i] = px[colourIdx[i]]
				} else if len(colourIdx) > 0 {
					rgb[i] = px[colourIdx[len(colourIdx)-1]]
				}
			}
			a := uint8(255)
			if alphaIdx >= 0 {
				a = px[alphaIdx]
			}
			img.SetRGBA(x, y, color.RGBA{R: rgb[0], G: rgb[1], B: rgb[2], A: a})
		}
	}
	return img
}
