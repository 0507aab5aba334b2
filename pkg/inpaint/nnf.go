package inpaint

import (
	"github.com/chewxy/math32"
	"golang.org/x/exp/rand"
)

const (
	// maxDistance is the upper end of the patch distance domain; a field
	// entry at maxDistance is effectively unknown.
	maxDistance = 65535

	// ssdMax is the penalty charged for a patch sample that is masked or
	// out of bounds on either side. It leaves headroom for images of up
	// to ten colour channels.
	ssdMax = 10 * 255 * 255

	// retryLimit bounds the fresh random draws spent repairing an entry
	// whose recomputed distance is still maxDistance.
	retryLimit = 20
)

// Similarity curve parameters: a patch at distance 0 maps to a voting
// weight near s0, and the weight falls through 0.5 at tHalf of the
// distance domain.
const (
	simS0    = 0.999
	simTHalf = 0.10
)

// nnfEntry maps one target pixel to its best-found source pixel.
type nnfEntry struct {
	x, y     int32
	distance int32
}

// nnf is a nearest-neighbour field over a target image, referencing
// patches of a source image. Entries always hold in-range source
// coordinates once randomize or initializeFrom has run.
type nnf struct {
	// input is the target image whose patches are being matched; output
	// is the source image patches are copied from. The driver swaps
	// input between EM iterations; dimensions never change within one
	// field's lifetime.
	input  *MaskedImage
	output *MaskedImage

	radius int
	width  int
	height int
	field  []nnfEntry

	rng        *rand.Rand
	similarity []float32

	// distanceCalls counts metric evaluations for the performance bound
	distanceCalls int64
}

// newNNF creates an unpopulated field mapping input onto output.
func newNNF(input, output *MaskedImage, radius int, rng *rand.Rand, similarity []float32) *nnf {
	return &nnf{
		input:      input,
		output:     output,
		radius:     radius,
		width:      input.Width(),
		height:     input.Height(),
		field:      make([]nnfEntry, input.Width()*input.Height()),
		rng:        rng,
		similarity: similarity,
	}
}

// buildSimilarity precomputes the monotone map from patch distance to
// voting weight, a logistic-like curve over the distance domain.
func buildSimilarity() []float32 {
	x := float32(simS0-0.5) * 2
	invTanh := 0.5 * math32.Log((1+x)/(1-x))
	coef := invTanh / simTHalf

	sim := make([]float32, maxDistance+1)
	for i := range sim {
		t := float32(i) / float32(maxDistance+1)
		sim[i] = 0.5 - 0.5*math32.Tanh(coef*(t-simTHalf))
	}
	return sim
}

// randomize assigns every entry a uniformly random source coordinate,
// then recomputes distances, redrawing coordinates for entries that
// remain unknown.
func (f *nnf) randomize() {
	ow, oh := f.output.Width(), f.output.Height()
	for i := range f.field {
		f.field[i] = nnfEntry{
			x:        int32(f.rng.Intn(ow)),
			y:        int32(f.rng.Intn(oh)),
			distance: maxDistance,
		}
	}
	f.recompute()
}

// initializeFrom seeds the field from a coarser one by scaling its
// coordinates up, then recomputes distances with the same retry policy
// as randomize.
func (f *nnf) initializeFrom(coarser *nnf) {
	xScale := f.width / coarser.width
	yScale := f.height / coarser.height
	if xScale < 1 {
		xScale = 1
	}
	if yScale < 1 {
		yScale = 1
	}
	ow, oh := f.output.Width(), f.output.Height()

	for y := 0; y < f.height; y++ {
		cy := y / yScale
		if cy > coarser.height-1 {
			cy = coarser.height - 1
		}
		for x := 0; x < f.width; x++ {
			cx := x / xScale
			if cx > coarser.width-1 {
				cx = coarser.width - 1
			}
			ce := coarser.field[cy*coarser.width+cx]
			sx := int(ce.x) * xScale
			sy := int(ce.y) * yScale
			if sx > ow-1 {
				sx = ow - 1
			}
			if sy > oh-1 {
				sy = oh - 1
			}
			f.field[y*f.width+x] = nnfEntry{
				x:        int32(sx),
				y:        int32(sy),
				distance: maxDistance,
			}
		}
	}
	f.recompute()
}

// recompute refreshes every entry's distance, spending up to retryLimit
// fresh random coordinates on entries whose distance stays unknown.
func (f *nnf) recompute() {
	ow, oh := f.output.Width(), f.output.Height()
	for y := 0; y < f.height; y++ {
		for x := 0; x < f.width; x++ {
			e := &f.field[y*f.width+x]
			e.distance = f.distance(x, y, int(e.x), int(e.y))
			for retries := 0; e.distance == maxDistance && retries < retryLimit; retries++ {
				e.x = int32(f.rng.Intn(ow))
				e.y = int32(f.rng.Intn(oh))
				e.distance = f.distance(x, y, int(e.x), int(e.y))
			}
		}
	}
}

// distance scores the patch centred at (x, y) in the target against the
// patch centred at (xp, yp) in the source. Samples that are masked or
// out of bounds on either side are charged the full ssdMax penalty, so
// the result always lands in [0, maxDistance].
func (f *nnf) distance(x, y, xp, yp int) int32 {
	f.distanceCalls++
	r := f.radius
	side := int64(2*r + 1)
	wsum := side * side * ssdMax

	var sum int64
	for dy := -r; dy <= r; dy++ {
		for dx := -r; dx <= r; dx++ {
			xt, yt := x+dx, y+dy
			if !f.input.Contains(xt, yt) || f.input.IsMasked(xt, yt) {
				sum += ssdMax
				continue
			}
			xs, ys := xp+dx, yp+dy
			if !f.output.Contains(xs, ys) || f.output.IsMasked(xs, ys) {
				sum += ssdMax
				continue
			}
			sum += f.input.DistanceSq(xt, yt, f.output, xs, ys)
		}
	}
	return int32(int64(maxDistance) * sum / wsum)
}

// minimize runs the given number of propagation/search passes. Each
// pass scans the field forward and then in reverse, so good matches
// travel across the whole image in both directions within one pass.
func (f *nnf) minimize(passes int) {
	for i := 0; i < passes; i++ {
		for y := 0; y < f.height; y++ {
			for x := 0; x < f.width; x++ {
				if f.field[y*f.width+x].distance > 0 {
					f.minimizeLink(x, y, 1)
				}
			}
		}
		for y := f.height - 1; y >= 0; y-- {
			for x := f.width - 1; x >= 0; x-- {
				if f.field[y*f.width+x].distance != 0 {
					f.minimizeLink(x, y, -1)
				}
			}
		}
	}
}

// minimizeLink improves one entry in place: propagation from the
// horizontal and vertical scan neighbours, then an exponentially
// shrinking random search around the current best. Updates fire only on
// a strict improvement.
func (f *nnf) minimizeLink(x, y, dir int) {
	e := &f.field[y*f.width+x]
	ow, oh := f.output.Width(), f.output.Height()

	// Horizontal propagation: shift the scan neighbour's match by one.
	if px := x - dir; px >= 0 && px < f.width {
		n := f.field[y*f.width+px]
		cx, cy := int(n.x)+dir, int(n.y)
		if cx >= 0 && cx < ow && cy >= 0 && cy < oh {
			if d := f.distance(x, y, cx, cy); d < e.distance {
				e.x, e.y, e.distance = int32(cx), int32(cy), d
			}
		}
	}

	// Vertical propagation. The x component comes from the current cell,
	// not the vertical neighbour; PatchMatch's propagation is designed
	// this way.
	if py := y - dir; py >= 0 && py < f.height {
		n := f.field[py*f.width+x]
		cx, cy := int(e.x), int(n.y)+dir
		if cx >= 0 && cx < ow && cy >= 0 && cy < oh {
			if d := f.distance(x, y, cx, cy); d < e.distance {
				e.x, e.y, e.distance = int32(cx), int32(cy), d
			}
		}
	}

	// Random search: perturb the current best inside a window that
	// starts at the source width and halves until it vanishes.
	for w := ow; w > 0; w /= 2 {
		cx := int(e.x) + f.rng.Intn(2*w+1) - w
		cy := int(e.y) + f.rng.Intn(2*w+1) - w
		if cx < 0 {
			cx = 0
		} else if cx > ow-1 {
			cx = ow - 1
		}
		if cy < 0 {
			cy = 0
		} else if cy > oh-1 {
			cy = oh - 1
		}
		if d := f.distance(x, y, cx, cy); d < e.distance {
			e.x, e.y, e.distance = int32(cx), int32(cy), d
		}
	}
}
