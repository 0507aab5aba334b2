package inpaint

import (
	"context"
	cryptorand "crypto/rand"
	"encoding/binary"

	"github.com/pkg/errors"
	"golang.org/x/exp/rand"

	"github.com/DemetryRomanowski/krita/pkg/surface"
)

// ErrConfiguration is returned when the inpainting parameters or the
// input surfaces cannot be used: radius below 1, image/mask dimension
// mismatch, or an unsupported channel combination.
var ErrConfiguration = errors.New("invalid inpainting configuration")

// Params holds the inpainting parameters.
type Params struct {
	// Radius is the patch half-width; patches cover (2*Radius+1)^2
	// pixels. Must be at least 1.
	Radius int

	// Deterministic selects the explicit Seed instead of the platform
	// entropy source, making repeated runs bit-identical.
	Deterministic bool

	// Seed is the generator seed used when Deterministic is set.
	Seed uint64
}

// Inpainter synthesises plausible content for the hole region of a
// masked image. The pipeline follows the multiscale scheme of the
// papers cited in the package documentation:
//
//  1. Build an image pyramid from the input down to a radius-bounded floor.
//  2. Start a synthesised target at the coarsest level with the hole cleared.
//  3. For each level, coarse to fine, map target patches to source
//     patches with a randomised nearest-neighbour field and rebuild the
//     target by voting source patches weighted by similarity.
//  4. Re-seed the field from the coarser level's result between levels.
//
// An Inpainter is single-threaded and synchronous; Patch runs to
// completion on the calling goroutine and keeps no state across calls
// beyond the random number generator and the distance-call count of the
// most recent call.
type Inpainter struct {
	// params stores the inpainting configuration
	params *Params

	// rng drives random initialisation and random search
	rng *rand.Rand

	// similarity is the precomputed distance-to-weight table shared by
	// every field of a run
	similarity []float32

	// distanceCalls counts patch distance evaluations of the most recent
	// Patch call
	distanceCalls int64
}

// NewInpainter creates an inpainter with the provided parameters.
//
// Parameters:
//   - params: Configuration for the inpainting process
//
// Returns:
//   - A new Inpainter, or ErrConfiguration if the radius is below 1
func NewInpainter(params *Params) (*Inpainter, error) {
	if params == nil {
		return nil, errors.Wrap(ErrConfiguration, "params are required")
	}
	if params.Radius < 1 {
		return nil, errors.Wrapf(ErrConfiguration, "radius must be at least 1, got %d", params.Radius)
	}

	seed := params.Seed
	if !params.Deterministic {
		var buf [8]byte
		if _, err := cryptorand.Read(buf[:]); err != nil {
			return nil, errors.Wrap(err, "failed to seed random source")
		}
		seed = binary.LittleEndian.Uint64(buf[:])
	}

	return &Inpainter{
		params:     params,
		rng:        rand.New(rand.NewSource(seed)),
		similarity: buildSimilarity(),
	}, nil
}

// Patch is the convenience entry point: it inpaints the hole designated
// by mask (byte < 128 = hole) in image using the given patch radius and
// a fresh entropy-seeded inpainter.
func Patch(image, mask surface.Surface, radius int) (surface.Surface, error) {
	ip, err := NewInpainter(&Params{Radius: radius})
	if err != nil {
		return nil, err
	}
	return ip.Patch(image, mask)
}

// Patch inpaints the hole designated by mask in image and returns a
// surface of the same channel layout and dimensions. Non-hole pixels
// participate in the voting grid and are therefore not guaranteed to be
// bit-identical to the input.
func (ip *Inpainter) Patch(image, mask surface.Surface) (surface.Surface, error) {
	return ip.PatchContext(context.Background(), image, mask)
}

// PatchContext is Patch with host cancellation. The context is observed
// between pyramid levels and between EM iterations only; work below
// that granularity always runs to completion.
func (ip *Inpainter) PatchContext(ctx context.Context, image, mask surface.Surface) (surface.Surface, error) {
	initial, err := NewMaskedImage(image, mask)
	if err != nil {
		return nil, errors.Wrap(err, "failed to build masked image")
	}
	out, err := ip.patch(ctx, initial)
	if err != nil {
		return nil, err
	}
	result, err := out.ToSurface()
	if err != nil {
		return nil, errors.Wrap(err, "failed to export result")
	}
	return result, nil
}

// patch runs the coarse-to-fine pipeline over an already validated
// masked image and returns the synthesised target at full resolution.
func (ip *Inpainter) patch(ctx context.Context, initial *MaskedImage) (*MaskedImage, error) {
	ip.distanceCalls = 0
	pyramid := BuildPyramid(initial, ip.params.Radius)

	// Degenerate inputs resolve to the input itself: nothing to fill,
	// or no coarser level to seed the field from.
	if initial.CountMasked() == 0 || pyramid.Len() == 1 {
		out := initial.Clone()
		out.ClearMask()
		return out, nil
	}

	maxLevel := pyramid.Len() - 1
	target := pyramid.Level(maxLevel).Clone()
	target.ClearMask()

	var field *nnf
	for level := maxLevel; level >= 1; level-- {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		source := pyramid.Level(level)
		if field == nil {
			field = newNNF(target, source, ip.params.Radius, ip.rng, ip.similarity)
			field.randomize()
		} else {
			next := newNNF(target, source, ip.params.Radius, ip.rng, ip.similarity)
			next.initializeFrom(field)
			field = next
		}

		var err error
		target, err = ip.expectationMaximization(ctx, level, field, pyramid)
		ip.distanceCalls += field.distanceCalls
		field.distanceCalls = 0
		if err != nil {
			return nil, err
		}
	}
	return target, nil
}

// DistanceCalls returns the number of patch distance evaluations made
// by the most recent Patch call.
func (ip *Inpainter) DistanceCalls() int64 { return ip.distanceCalls }

// expectationMaximization alternates field minimisation with target
// reconstruction at one pyramid level. The final iteration of each
// level upscales the target to the next finer level's dimensions, so
// the returned image is ready to seed that level.
func (ip *Inpainter) expectationMaximization(ctx context.Context, level int, field *nnf, pyramid *Pyramid) (*MaskedImage, error) {
	iterEM := 2 * level
	if iterEM > 4 {
		iterEM = 4
	}
	iterNNF := level
	if iterNNF > 5 {
		iterNNF = 5
	}

	var newTarget *MaskedImage
	for em := 1; em <= iterEM; em++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		// The previous iteration's reconstruction becomes the matching
		// target for this one.
		if newTarget != nil {
			field.input = newTarget
			newTarget = nil
		}

		field.minimize(iterNNF)

		target := field.input
		var newSource *MaskedImage
		upscaled := false
		if level >= 1 && em == iterEM {
			newSource = pyramid.Level(level - 1)
			newTarget = target.Upscale(newSource.Width(), newSource.Height())
			upscaled = true
		} else {
			newSource = pyramid.Level(level)
			newTarget = target.Clone()
		}

		ip.emStep(field, newSource, newTarget, upscaled)
	}
	return newTarget, nil
}

// emStep rebuilds every pixel of target from a per-channel histogram.
// Each patch that contains the pixel votes with its similarity weight;
// the vote records the source samples at the pixel's own position
// (x, y), while the matched source pixel only decides whether the vote
// counts (it must lie inside the field and not be a hole). Each colour
// channel is then set to the CDF-trimmed weighted mean of its
// histogram. Alpha channels carry through from the previous target.
func (ip *Inpainter) emStep(field *nnf, source, target *MaskedImage, upscaled bool) {
	r := field.radius
	if upscaled {
		r *= 2
	}
	szW, szH := field.width, field.height
	colour := source.ColourChannels()

	hist := make([]float64, len(colour)*256)
	px := make([]float32, target.ChannelCount())

	for y := 0; y < target.Height(); y++ {
		for x := 0; x < target.Width(); x++ {
			for i := range hist {
				hist[i] = 0
			}
			var wsum float64

			for dy := -r; dy <= r; dy++ {
				for dx := -r; dx <= r; dx++ {
					// Centre of the patch containing (x, y) at this offset.
					xpt, ypt := x+dx, y+dy

					var xst, yst int
					var w float32
					if !upscaled {
						if xpt < 0 || xpt >= szW || ypt < 0 || ypt >= szH {
							continue
						}
						e := field.field[ypt*szW+xpt]
						xst, yst = int(e.x), int(e.y)
						w = field.similarity[e.distance]
					} else {
						if xpt < 0 || xpt >= 2*szW || ypt < 0 || ypt >= 2*szH {
							continue
						}
						e := field.field[(ypt/2)*szW+xpt/2]
						xst = 2*int(e.x) + xpt%2
						yst = 2*int(e.y) + ypt%2
						w = field.similarity[e.distance]
					}

					// Source pixel corresponding to the target pixel
					// itself under the patch-centred contribution model.
					xs, ys := xst-dx, yst-dy
					if xs < 0 || xs >= szW || ys < 0 || ys >= szH {
						continue
					}
					if source.IsMasked(xs, ys) {
						continue
					}

					for ci, c := range colour {
						hist[ci*256+int(source.PixelU8(x, y, c))] += float64(w)
					}
					wsum += float64(w)
				}
			}

			// Too little support: leave the pixel unchanged.
			if wsum < 1 {
				continue
			}

			px = target.PixelsFloat(x, y, px)
			lowth := 0.4 * wsum
			highth := 0.6 * wsum
			for ci, c := range colour {
				var cdf, contrib, wcontrib float64
				for i := 0; i < 256; i++ {
					h := hist[ci*256+i]
					cdf += h
					if cdf < lowth {
						continue
					}
					contrib += float64(i) * h
					wcontrib += h
					if cdf > highth {
						break
					}
				}
				px[c] = float32(contrib / wcontrib)
			}
			target.SetPixelsFloat(x, y, px)
		}
	}
}
