// Package inpaint implements mask-guided image inpainting with the
// PatchMatch correspondence algorithm described in "PatchMatch: A
// Randomized Correspondence Algorithm for Structural Image Editing"
// (Barnes et al., SIGGRAPH 2009), refined coarse-to-fine with the
// expectation-maximization scheme of "Space-Time Video Completion"
// (Wexler et al.).
//
// Given an image and a mask designating hole pixels, the engine
// synthesises plausible content for the hole by repeatedly finding, for
// every target patch, its approximate nearest neighbour patch in the
// known region, then voting those patches back into the hole.
package inpaint

import (
	"github.com/pkg/errors"

	"github.com/DemetryRomanowski/krita/internal/grid"
	"github.com/DemetryRomanowski/krita/pkg/surface"
)

// Internal mask plane convention: a mask byte stores hole confidence.
// Construction inverts the host convention (host byte < 128 = hole)
// once, so that a zeroed plane means "no holes" and downsampling blends
// hole confidence like any other sample.
const (
	maskHole    = 255
	maskKnown   = 0
	maskHoleMin = 128
)

// MaskedImage owns an image plane and a hole-mask plane of identical
// dimensions. The planes are dense byte grids cached at construction;
// dimensions are immutable afterwards except through Downsample2x,
// which replaces both planes atomically.
type MaskedImage struct {
	// width and height of both planes
	width  int
	height int

	// kinds is the channel layout inherited from the source surface
	kinds []surface.ChannelKind

	// colour holds the indices of the colour channels in layout order
	colour []int

	// img is the interleaved image plane, mask the hole-confidence plane
	img  *grid.Bytes
	mask *grid.Bytes
}

// NewMaskedImage builds a masked image from an image surface and a
// single-channel mask surface of the same bounds. A mask pixel below
// 128 designates a hole. The surfaces are copied; the caller keeps
// ownership of both.
func NewMaskedImage(img, mask surface.Surface) (*MaskedImage, error) {
	if img == nil || mask == nil {
		return nil, errors.Wrap(ErrConfiguration, "image and mask surfaces are required")
	}
	ib, mb := img.Bounds(), mask.Bounds()
	if ib.Dx() != mb.Dx() || ib.Dy() != mb.Dy() {
		return nil, errors.Wrapf(ErrConfiguration,
			"image bounds %dx%d do not match mask bounds %dx%d",
			ib.Dx(), ib.Dy(), mb.Dx(), mb.Dy())
	}
	if mask.ChannelCount() != 1 {
		return nil, errors.Wrapf(ErrConfiguration,
			"mask must have exactly one channel, got %d", mask.ChannelCount())
	}
	channels := img.ChannelCount()
	if channels < 1 {
		return nil, errors.Wrap(ErrConfiguration, "image has no channels")
	}

	kinds := make([]surface.ChannelKind, channels)
	colour := make([]int, 0, channels)
	alphas := 0
	for c := 0; c < channels; c++ {
		kinds[c] = img.ChannelKind(c)
		if kinds[c] == surface.Alpha {
			alphas++
		} else {
			colour = append(colour, c)
		}
	}
	if alphas > 1 {
		return nil, errors.Wrapf(ErrConfiguration,
			"image supports at most one alpha channel, got %d", alphas)
	}
	if len(colour) == 0 {
		return nil, errors.Wrap(ErrConfiguration, "image has no colour channels")
	}

	m := &MaskedImage{
		width:  ib.Dx(),
		height: ib.Dy(),
		kinds:  kinds,
		colour: colour,
		img:    grid.NewBytes(ib.Dx(), ib.Dy(), channels),
		mask:   grid.NewBytes(ib.Dx(), ib.Dy(), 1),
	}

	px := make([]uint8, channels)
	mpx := make([]uint8, 1)
	for y := 0; y < m.height; y++ {
		for x := 0; x < m.width; x++ {
			img.Read(x, y, px)
			off := m.img.Offset(x, y, 0)
			copy(m.img.Pix[off:off+channels], px)

			mask.Read(x, y, mpx)
			if mpx[0] < 128 {
				m.mask.Pix[y*m.width+x] = maskHole
			} else {
				m.mask.Pix[y*m.width+x] = maskKnown
			}
		}
	}
	return m, nil
}

// Width returns the image width in pixels.
func (m *MaskedImage) Width() int { return m.width }

// Height returns the image height in pixels.
func (m *MaskedImage) Height() int { return m.height }

// ChannelCount returns the number of samples per pixel.
func (m *MaskedImage) ChannelCount() int { return len(m.kinds) }

// ColourChannels returns the indices of the colour channels.
func (m *MaskedImage) ColourChannels() []int { return m.colour }

// Clone returns an independent deep copy.
func (m *MaskedImage) Clone() *MaskedImage {
	return &MaskedImage{
		width:  m.width,
		height: m.height,
		kinds:  m.kinds,
		colour: m.colour,
		img:    m.img.Clone(),
		mask:   m.mask.Clone(),
	}
}

// Contains reports whether (x, y) lies inside the image.
func (m *MaskedImage) Contains(x, y int) bool {
	return x >= 0 && x < m.width && y >= 0 && y < m.height
}

// IsMasked reports whether pixel (x, y) is a hole. Hole pixels may not
// be read by the distance metric or sampled as a voting source.
func (m *MaskedImage) IsMasked(x, y int) bool {
	return m.mask.Pix[y*m.width+x] >= maskHoleMin
}

// CountMasked returns the number of hole pixels.
func (m *MaskedImage) CountMasked() int {
	n := 0
	for _, v := range m.mask.Pix {
		if v >= maskHoleMin {
			n++
		}
	}
	return n
}

// ClearMask removes every hole without touching the image plane.
func (m *MaskedImage) ClearMask() {
	m.mask.Fill(maskKnown)
}

// SetMasked marks or clears the hole flag of a single pixel.
func (m *MaskedImage) SetMasked(x, y int, masked bool) {
	if masked {
		m.mask.Pix[y*m.width+x] = maskHole
	} else {
		m.mask.Pix[y*m.width+x] = maskKnown
	}
}

// PixelU8 reads channel c of pixel (x, y) from the cached image plane.
func (m *MaskedImage) PixelU8(x, y, c int) uint8 {
	return m.img.Pix[(y*m.width+x)*len(m.kinds)+c]
}

// SetPixelU8 stores v into channel c of pixel (x, y).
func (m *MaskedImage) SetPixelU8(x, y, c int, v uint8) {
	m.img.Pix[(y*m.width+x)*len(m.kinds)+c] = v
}

// PixelsFloat reads all channels of pixel (x, y) as float samples. The
// result is written into dst when it has sufficient capacity.
func (m *MaskedImage) PixelsFloat(x, y int, dst []float32) []float32 {
	c := len(m.kinds)
	if cap(dst) < c {
		dst = make([]float32, c)
	}
	dst = dst[:c]
	off := (y*m.width + x) * c
	for i := 0; i < c; i++ {
		dst[i] = float32(m.img.Pix[off+i])
	}
	return dst
}

// SetPixelsFloat stores float samples into pixel (x, y), clamping each
// channel into the byte range with round-to-nearest.
func (m *MaskedImage) SetPixelsFloat(x, y int, px []float32) {
	c := len(m.kinds)
	off := (y*m.width + x) * c
	for i := 0; i < c; i++ {
		v := px[i] + 0.5
		if v < 0 {
			v = 0
		} else if v > 255 {
			v = 255
		}
		m.img.Pix[off+i] = uint8(v)
	}
}

// DistanceSq returns the sum over colour channels of the squared sample
// difference between pixel (x, y) of m and pixel (xo, yo) of other.
func (m *MaskedImage) DistanceSq(x, y int, other *MaskedImage, xo, yo int) int64 {
	offA := (y*m.width + x) * len(m.kinds)
	offB := (yo*other.width + xo) * len(other.kinds)
	var sum int64
	for _, c := range m.colour {
		d := int64(m.img.Pix[offA+c]) - int64(other.img.Pix[offB+c])
		sum += d * d
	}
	return sum
}

// Downsample2x replaces the image and mask planes with half-sized
// versions. Bounds are first aligned outwards to even extents (the
// oddness of the original extent is captured before halving); each
// destination pixel averages the four covered source pixels with the
// integer weights 64, 64, 64, 63 summing to 255, clamping reads on the
// odd edge to the last row or column.
func (m *MaskedImage) Downsample2x() {
	w, h := m.width, m.height
	alignedW := w + (w & 1)
	alignedH := h + (h & 1)
	newW, newH := alignedW/2, alignedH/2
	channels := len(m.kinds)

	newImg := grid.NewBytes(newW, newH, channels)
	newMask := grid.NewBytes(newW, newH, 1)

	// Weight order follows the source scan: (2x,2y), (2x+1,2y),
	// (2x,2y+1), (2x+1,2y+1).
	weights := [4]int{64, 64, 64, 63}

	for dy := 0; dy < newH; dy++ {
		sy0 := 2 * dy
		sy1 := sy0 + 1
		if sy1 >= h {
			sy1 = h - 1
		}
		for dx := 0; dx < newW; dx++ {
			sx0 := 2 * dx
			sx1 := sx0 + 1
			if sx1 >= w {
				sx1 = w - 1
			}

			offs := [4]int{
				(sy0*w + sx0) * channels,
				(sy0*w + sx1) * channels,
				(sy1*w + sx0) * channels,
				(sy1*w + sx1) * channels,
			}
			dst := (dy*newW + dx) * channels
			for c := 0; c < channels; c++ {
				acc := 0
				for i := 0; i < 4; i++ {
					acc += weights[i] * int(m.img.Pix[offs[i]+c])
				}
				newImg.Pix[dst+c] = uint8(acc / 255)
			}

			macc := weights[0]*int(m.mask.Pix[sy0*w+sx0]) +
				weights[1]*int(m.mask.Pix[sy0*w+sx1]) +
				weights[2]*int(m.mask.Pix[sy1*w+sx0]) +
				weights[3]*int(m.mask.Pix[sy1*w+sx1])
			newMask.Pix[dy*newW+dx] = uint8(macc / 255)
		}
	}

	m.width = newW
	m.height = newH
	m.img = newImg
	m.mask = newMask
}

// Upscale returns a bilinear resample of the image and mask planes to
// exactly w by h pixels.
func (m *MaskedImage) Upscale(w, h int) *MaskedImage {
	channels := len(m.kinds)
	out := &MaskedImage{
		width:  w,
		height: h,
		kinds:  m.kinds,
		colour: m.colour,
		img:    grid.NewBytes(w, h, channels),
		mask:   grid.NewBytes(w, h, 1),
	}

	xRatio := float64(m.width) / float64(w)
	yRatio := float64(m.height) / float64(h)

	for y := 0; y < h; y++ {
		sy := (float64(y)+0.5)*yRatio - 0.5
		if sy < 0 {
			sy = 0
		}
		y0 := int(sy)
		if y0 > m.height-1 {
			y0 = m.height - 1
		}
		y1 := y0 + 1
		if y1 > m.height-1 {
			y1 = m.height - 1
		}
		fy := sy - float64(y0)

		for x := 0; x < w; x++ {
			sx := (float64(x)+0.5)*xRatio - 0.5
			if sx < 0 {
				sx = 0
			}
			x0 := int(sx)
			if x0 > m.width-1 {
				x0 = m.width - 1
			}
			x1 := x0 + 1
			if x1 > m.width-1 {
				x1 = m.width - 1
			}
			fx := sx - float64(x0)

			w00 := (1 - fx) * (1 - fy)
			w10 := fx * (1 - fy)
			w01 := (1 - fx) * fy
			w11 := fx * fy

			o00 := (y0*m.width + x0) * channels
			o10 := (y0*m.width + x1) * channels
			o01 := (y1*m.width + x0) * channels
			o11 := (y1*m.width + x1) * channels
			dst := (y*w + x) * channels
			for c := 0; c < channels; c++ {
				v := w00*float64(m.img.Pix[o00+c]) +
					w10*float64(m.img.Pix[o10+c]) +
					w01*float64(m.img.Pix[o01+c]) +
					w11*float64(m.img.Pix[o11+c])
				out.img.Pix[dst+c] = uint8(v + 0.5)
			}

			mv := w00*float64(m.mask.Pix[y0*m.width+x0]) +
				w10*float64(m.mask.Pix[y0*m.width+x1]) +
				w01*float64(m.mask.Pix[y1*m.width+x0]) +
				w11*float64(m.mask.Pix[y1*m.width+x1])
			out.mask.Pix[y*w+x] = uint8(mv + 0.5)
		}
	}
	return out
}

// ToSurface copies the image plane into a fresh surface with the
// channel layout inherited at construction.
func (m *MaskedImage) ToSurface() (surface.Surface, error) {
	s, err := surface.NewByteSurface(m.width, m.height, m.kinds)
	if err != nil {
		return nil, errors.Wrap(err, "failed to export image")
	}
	channels := len(m.kinds)
	px := make([]uint8, channels)
	for y := 0; y < m.height; y++ {
		for x := 0; x < m.width; x++ {
			off := (y*m.width + x) * channels
			copy(px, m.img.Pix[off:off+channels])
			s.Write(x, y, px)
		}
	}
	return s, nil
}
