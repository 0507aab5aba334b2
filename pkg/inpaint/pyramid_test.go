package inpaint

import "testing"

// TestPyramidTermination verifies the radius-bounded floor: a 7x7 input
// with radius 3 cannot be downsampled at all
func TestPyramidTermination(t *testing.T) {
	img := createTestSurface(t, 7, 7, constantPattern(1, 1, 1))
	mask := createTestMask(t, 7, 7, func(x, y int) bool { return x == 3 && y == 3 })
	m, err := NewMaskedImage(img, mask)
	if err != nil {
		t.Fatalf("Failed to build masked image: %v", err)
	}

	p := BuildPyramid(m, 3)
	if p.Len() != 1 {
		t.Errorf("Expected pyramid of length 1, got %d", p.Len())
	}
	if p.Level(0) != m {
		t.Errorf("Expected level 0 to be the initial image")
	}
}

// TestPyramidLevels verifies halving down to the floor and the shared
// channel layout invariant
func TestPyramidLevels(t *testing.T) {
	img := createTestSurface(t, 32, 32, constantPattern(9, 9, 9))
	mask := createTestMask(t, 32, 32, func(x, y int) bool {
		return x >= 8 && x < 24 && y >= 8 && y < 24
	})
	m, err := NewMaskedImage(img, mask)
	if err != nil {
		t.Fatalf("Failed to build masked image: %v", err)
	}

	p := BuildPyramid(m, 2)
	if p.Len() < 2 {
		t.Fatalf("Expected at least 2 levels for a 32x32 input, got %d", p.Len())
	}

	for k := 1; k < p.Len(); k++ {
		prev, cur := p.Level(k-1), p.Level(k)
		wantW := (prev.Width() + prev.Width()%2) / 2
		wantH := (prev.Height() + prev.Height()%2) / 2
		if cur.Width() != wantW || cur.Height() != wantH {
			t.Errorf("Level %d: expected %dx%d, got %dx%d", k, wantW, wantH, cur.Width(), cur.Height())
		}
		if cur.ChannelCount() != m.ChannelCount() {
			t.Errorf("Level %d: channel layout diverged", k)
		}
	}

	// The floor level must not be halvable under the radius bound.
	last := p.Level(p.Len() - 1)
	if last.Width()/2 > 2 && last.Height()/2 > 2 && last.CountMasked() > 0 {
		t.Errorf("Pyramid stopped early at %dx%d with %d holes",
			last.Width(), last.Height(), last.CountMasked())
	}
}

// TestPyramidStopsWhenHoleVanishes verifies that construction ends once
// downsampling has averaged the hole away
func TestPyramidStopsWhenHoleVanishes(t *testing.T) {
	// A single hole pixel in a 64x64 image is outvoted by its three
	// known neighbours after one halving.
	img := createTestSurface(t, 64, 64, constantPattern(3, 3, 3))
	mask := createTestMask(t, 64, 64, func(x, y int) bool { return x == 10 && y == 10 })
	m, err := NewMaskedImage(img, mask)
	if err != nil {
		t.Fatalf("Failed to build masked image: %v", err)
	}

	p := BuildPyramid(m, 2)
	if p.Len() != 2 {
		t.Fatalf("Expected construction to stop after the hole vanished, got %d levels", p.Len())
	}
	if p.Level(1).CountMasked() != 0 {
		t.Errorf("Expected the final level to be hole-free, got %d holes", p.Level(1).CountMasked())
	}
}

// TestPyramidFullyMasked verifies that an all-hole image still yields a
// terminating pyramid with valid dimensions
func TestPyramidFullyMasked(t *testing.T) {
	img := createTestSurface(t, 16, 16, constantPattern(0, 0, 0))
	mask := createTestMask(t, 16, 16, func(x, y int) bool { return true })
	m, err := NewMaskedImage(img, mask)
	if err != nil {
		t.Fatalf("Failed to build masked image: %v", err)
	}

	p := BuildPyramid(m, 2)
	for k := 0; k < p.Len(); k++ {
		if p.Level(k).Width() < 1 || p.Level(k).Height() < 1 {
			t.Errorf("Level %d has degenerate dimensions %dx%d",
				k, p.Level(k).Width(), p.Level(k).Height())
		}
	}
	last := p.Level(p.Len() - 1)
	if last.CountMasked() != last.Width()*last.Height() {
		t.Errorf("Expected the hole to survive downsampling on an all-hole image")
	}
}
