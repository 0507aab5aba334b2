package inpaint

import (
	"testing"

	"github.com/pkg/errors"

	"github.com/DemetryRomanowski/krita/pkg/surface"
)

// createTestSurface creates an RGBA surface with the specified dimensions
// and per-pixel colour pattern
func createTestSurface(t *testing.T, width, height int, pattern func(x, y int) [4]uint8) *surface.ByteSurface {
	t.Helper()
	s, err := surface.NewByteSurface(width, height, []surface.ChannelKind{
		surface.Colour, surface.Colour, surface.Colour, surface.Alpha,
	})
	if err != nil {
		t.Fatalf("Failed to create test surface: %v", err)
	}
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			px := pattern(x, y)
			s.Write(x, y, px[:])
		}
	}
	return s
}

// createTestMask creates a single-channel mask surface; hole pixels are
// written as 0 (dark) and known pixels as 255
func createTestMask(t *testing.T, width, height int, hole func(x, y int) bool) *surface.ByteSurface {
	t.Helper()
	s, err := surface.NewByteSurface(width, height, []surface.ChannelKind{surface.Colour})
	if err != nil {
		t.Fatalf("Failed to create test mask: %v", err)
	}
	px := make([]uint8, 1)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			px[0] = 255
			if hole(x, y) {
				px[0] = 0
			}
			s.Write(x, y, px)
		}
	}
	return s
}

// constantPattern returns a pattern function producing a uniform colour
func constantPattern(r, g, b uint8) func(x, y int) [4]uint8 {
	return func(x, y int) [4]uint8 {
		return [4]uint8{r, g, b, 255}
	}
}

// noHoles marks every pixel as known
func noHoles(x, y int) bool { return false }

// TestNewMaskedImageValidation verifies the constructor rejects
// configurations the engine cannot use
func TestNewMaskedImageValidation(t *testing.T) {
	img := createTestSurface(t, 8, 8, constantPattern(10, 20, 30))

	t.Run("DimensionMismatch", func(t *testing.T) {
		mask := createTestMask(t, 4, 8, noHoles)
		if _, err := NewMaskedImage(img, mask); !errors.Is(err, ErrConfiguration) {
			t.Errorf("Expected ErrConfiguration for mismatched bounds, got %v", err)
		}
	})

	t.Run("MultiChannelMask", func(t *testing.T) {
		badMask := createTestSurface(t, 8, 8, constantPattern(0, 0, 0))
		if _, err := NewMaskedImage(img, badMask); !errors.Is(err, ErrConfiguration) {
			t.Errorf("Expected ErrConfiguration for multi-channel mask, got %v", err)
		}
	})

	t.Run("Valid", func(t *testing.T) {
		mask := createTestMask(t, 8, 8, noHoles)
		m, err := NewMaskedImage(img, mask)
		if err != nil {
			t.Fatalf("Failed to build masked image: %v", err)
		}
		if m.Width() != 8 || m.Height() != 8 {
			t.Errorf("Expected 8x8, got %dx%d", m.Width(), m.Height())
		}
		if m.ChannelCount() != 4 {
			t.Errorf("Expected 4 channels, got %d", m.ChannelCount())
		}
		if len(m.ColourChannels()) != 3 {
			t.Errorf("Expected 3 colour channels, got %d", len(m.ColourChannels()))
		}
	})
}

// TestMaskPolarity verifies that dark mask bytes designate holes and
// bright bytes known pixels
func TestMaskPolarity(t *testing.T) {
	img := createTestSurface(t, 4, 4, constantPattern(1, 2, 3))
	mask := createTestMask(t, 4, 4, func(x, y int) bool { return x == 1 && y == 2 })

	m, err := NewMaskedImage(img, mask)
	if err != nil {
		t.Fatalf("Failed to build masked image: %v", err)
	}

	if !m.IsMasked(1, 2) {
		t.Errorf("Expected (1,2) to be a hole")
	}
	if m.IsMasked(0, 0) {
		t.Errorf("Expected (0,0) to be known")
	}
	if got := m.CountMasked(); got != 1 {
		t.Errorf("Expected 1 masked pixel, got %d", got)
	}
}

// TestClearMask verifies ClearMask removes every hole without touching
// the image plane
func TestClearMask(t *testing.T) {
	img := createTestSurface(t, 4, 4, constantPattern(7, 8, 9))
	mask := createTestMask(t, 4, 4, func(x, y int) bool { return true })

	m, err := NewMaskedImage(img, mask)
	if err != nil {
		t.Fatalf("Failed to build masked image: %v", err)
	}
	if got := m.CountMasked(); got != 16 {
		t.Fatalf("Expected 16 masked pixels, got %d", got)
	}

	m.ClearMask()
	if got := m.CountMasked(); got != 0 {
		t.Errorf("Expected 0 masked pixels after ClearMask, got %d", got)
	}
	if got := m.PixelU8(2, 2, 0); got != 7 {
		t.Errorf("ClearMask changed the image plane: got %d, want 7", got)
	}
}

// TestDownsample2xDimensions verifies the even-aligned halving contract
func TestDownsample2xDimensions(t *testing.T) {
	cases := []struct {
		w, h         int
		wantW, wantH int
	}{
		{8, 8, 4, 4},
		{7, 7, 4, 4},
		{9, 6, 5, 3},
		{2, 2, 1, 1},
	}
	for _, c := range cases {
		img := createTestSurface(t, c.w, c.h, constantPattern(50, 60, 70))
		mask := createTestMask(t, c.w, c.h, noHoles)
		m, err := NewMaskedImage(img, mask)
		if err != nil {
			t.Fatalf("Failed to build masked image: %v", err)
		}
		m.Downsample2x()
		if m.Width() != c.wantW || m.Height() != c.wantH {
			t.Errorf("Downsample2x of %dx%d: expected %dx%d, got %dx%d",
				c.w, c.h, c.wantW, c.wantH, m.Width(), m.Height())
		}
	}
}

// TestDownsample2xConstant verifies that the 64/64/64/63 weighting
// reproduces a constant field exactly
func TestDownsample2xConstant(t *testing.T) {
	img := createTestSurface(t, 8, 8, constantPattern(128, 64, 32))
	mask := createTestMask(t, 8, 8, noHoles)
	m, err := NewMaskedImage(img, mask)
	if err != nil {
		t.Fatalf("Failed to build masked image: %v", err)
	}

	m.Downsample2x()
	want := [3]uint8{128, 64, 32}
	for y := 0; y < m.Height(); y++ {
		for x := 0; x < m.Width(); x++ {
			for c := 0; c < 3; c++ {
				if got := m.PixelU8(x, y, c); got != want[c] {
					t.Errorf("Pixel (%d,%d) channel %d: expected %d, got %d", x, y, c, want[c], got)
				}
			}
		}
	}
	if got := m.CountMasked(); got != 0 {
		t.Errorf("Expected no holes after downsampling a hole-free image, got %d", got)
	}
}

// TestDownsample2xMask verifies that hole confidence survives halving:
// a solid hole block stays a hole and a solid known block stays known
func TestDownsample2xMask(t *testing.T) {
	img := createTestSurface(t, 8, 8, constantPattern(0, 0, 0))
	mask := createTestMask(t, 8, 8, func(x, y int) bool { return x < 4 })

	m, err := NewMaskedImage(img, mask)
	if err != nil {
		t.Fatalf("Failed to build masked image: %v", err)
	}
	m.Downsample2x()

	for y := 0; y < m.Height(); y++ {
		if !m.IsMasked(0, y) || !m.IsMasked(1, y) {
			t.Errorf("Expected left half to stay masked at row %d", y)
		}
		if m.IsMasked(2, y) || m.IsMasked(3, y) {
			t.Errorf("Expected right half to stay known at row %d", y)
		}
	}
}

// TestUpscale verifies exact output dimensions and that a constant
// field upscales to itself
func TestUpscale(t *testing.T) {
	img := createTestSurface(t, 4, 4, constantPattern(200, 100, 50))
	mask := createTestMask(t, 4, 4, noHoles)
	m, err := NewMaskedImage(img, mask)
	if err != nil {
		t.Fatalf("Failed to build masked image: %v", err)
	}

	up := m.Upscale(7, 9)
	if up.Width() != 7 || up.Height() != 9 {
		t.Fatalf("Expected 7x9, got %dx%d", up.Width(), up.Height())
	}
	for y := 0; y < up.Height(); y++ {
		for x := 0; x < up.Width(); x++ {
			if got := up.PixelU8(x, y, 0); got != 200 {
				t.Errorf("Pixel (%d,%d): expected 200, got %d", x, y, got)
			}
			if up.IsMasked(x, y) {
				t.Errorf("Expected no holes after upscaling a hole-free image")
			}
		}
	}
}

// TestUpscaleGradientMonotone verifies bilinear upscaling preserves the
// monotonicity of a horizontal gradient
func TestUpscaleGradientMonotone(t *testing.T) {
	img := createTestSurface(t, 8, 4, func(x, y int) [4]uint8 {
		v := uint8(x * 255 / 7)
		return [4]uint8{v, v, v, 255}
	})
	mask := createTestMask(t, 8, 4, noHoles)
	m, err := NewMaskedImage(img, mask)
	if err != nil {
		t.Fatalf("Failed to build masked image: %v", err)
	}

	up := m.Upscale(16, 8)
	for y := 0; y < up.Height(); y++ {
		for x := 1; x < up.Width(); x++ {
			if up.PixelU8(x, y, 0) < up.PixelU8(x-1, y, 0) {
				t.Errorf("Gradient not monotone at (%d,%d)", x, y)
			}
		}
	}
}

// TestDistanceSq verifies the per-pixel squared distance over colour
// channels only
func TestDistanceSq(t *testing.T) {
	a := createTestSurface(t, 2, 2, func(x, y int) [4]uint8 { return [4]uint8{10, 20, 30, 255} })
	b := createTestSurface(t, 2, 2, func(x, y int) [4]uint8 { return [4]uint8{13, 16, 30, 0} })
	maskA := createTestMask(t, 2, 2, noHoles)
	maskB := createTestMask(t, 2, 2, noHoles)

	ma, err := NewMaskedImage(a, maskA)
	if err != nil {
		t.Fatalf("Failed to build masked image: %v", err)
	}
	mb, err := NewMaskedImage(b, maskB)
	if err != nil {
		t.Fatalf("Failed to build masked image: %v", err)
	}

	// (10-13)^2 + (20-16)^2 + (30-30)^2 = 25; the alpha difference of
	// 255 must not contribute.
	if got := ma.DistanceSq(0, 0, mb, 1, 1); got != 25 {
		t.Errorf("Expected squared distance 25, got %d", got)
	}
}

// TestPixelsFloatRoundTrip verifies the float accessors clamp and round
func TestPixelsFloatRoundTrip(t *testing.T) {
	img := createTestSurface(t, 2, 2, constantPattern(100, 150, 200))
	mask := createTestMask(t, 2, 2, noHoles)
	m, err := NewMaskedImage(img, mask)
	if err != nil {
		t.Fatalf("Failed to build masked image: %v", err)
	}

	px := m.PixelsFloat(0, 0, nil)
	if px[0] != 100 || px[1] != 150 || px[2] != 200 || px[3] != 255 {
		t.Fatalf("Unexpected float pixels: %v", px)
	}

	px[0] = -4.0
	px[1] = 300.0
	px[2] = 99.6
	m.SetPixelsFloat(1, 1, px)
	if got := m.PixelU8(1, 1, 0); got != 0 {
		t.Errorf("Expected clamp to 0, got %d", got)
	}
	if got := m.PixelU8(1, 1, 1); got != 255 {
		t.Errorf("Expected clamp to 255, got %d", got)
	}
	if got := m.PixelU8(1, 1, 2); got != 100 {
		t.Errorf("Expected round to 100, got %d", got)
	}
}

// TestCloneIndependence verifies a clone does not alias its parent
func TestCloneIndependence(t *testing.T) {
	img := createTestSurface(t, 3, 3, constantPattern(5, 5, 5))
	mask := createTestMask(t, 3, 3, noHoles)
	m, err := NewMaskedImage(img, mask)
	if err != nil {
		t.Fatalf("Failed to build masked image: %v", err)
	}

	c := m.Clone()
	c.SetPixelU8(1, 1, 0, 99)
	c.SetMasked(1, 1, true)

	if m.PixelU8(1, 1, 0) != 5 {
		t.Errorf("Clone write leaked into the parent image plane")
	}
	if m.IsMasked(1, 1) {
		t.Errorf("Clone mask write leaked into the parent mask plane")
	}
}
