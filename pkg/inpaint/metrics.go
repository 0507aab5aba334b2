package inpaint

import (
	"math"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/stat"

	"github.com/DemetryRomanowski/krita/pkg/surface"
)

// QualityMetrics summarises how faithfully the engine reproduced the
// known (non-hole) region of the input. The hole region has no ground
// truth and is excluded; the known region passes through the voting
// grid and is expected to come back close to the original.
type QualityMetrics struct {
	// RMSE is the root mean square error over known colour samples.
	// Lower values indicate better fidelity.
	RMSE float64

	// PSNR is the peak signal-to-noise ratio in decibels derived from
	// RMSE; +Inf for a bit-identical known region.
	PSNR float64

	// Correlation is the Pearson correlation between original and
	// result samples. Values close to 1 indicate structure preservation.
	Correlation float64

	// MeanAbsError is the mean absolute per-sample error.
	MeanAbsError float64

	// KnownPixels is the number of non-hole pixels the metrics cover.
	KnownPixels int
}

// ComputeMetrics compares the inpainting result against the original
// over the region the mask marks as known (byte >= 128). Both surfaces
// must share bounds and channel layout with each other and the mask.
func ComputeMetrics(original, result, mask surface.Surface) (*QualityMetrics, error) {
	ob, rb, mb := original.Bounds(), result.Bounds(), mask.Bounds()
	if ob != rb || ob != mb {
		return nil, errors.Wrap(ErrConfiguration, "metrics require matching original, result and mask bounds")
	}
	if original.ChannelCount() != result.ChannelCount() {
		return nil, errors.Wrap(ErrConfiguration, "metrics require matching channel layouts")
	}
	if mask.ChannelCount() != 1 {
		return nil, errors.Wrap(ErrConfiguration, "metrics require a single-channel mask")
	}

	channels := original.ChannelCount()
	colour := make([]int, 0, channels)
	for c := 0; c < channels; c++ {
		if original.ChannelKind(c) == surface.Colour {
			colour = append(colour, c)
		}
	}

	opx := make([]uint8, channels)
	rpx := make([]uint8, channels)
	mpx := make([]uint8, 1)

	var xs, ys []float64
	known := 0
	for y := 0; y < ob.Dy(); y++ {
		for x := 0; x < ob.Dx(); x++ {
			mask.Read(x, y, mpx)
			if mpx[0] < 128 {
				continue
			}
			known++
			original.Read(x, y, opx)
			result.Read(x, y, rpx)
			for _, c := range colour {
				xs = append(xs, float64(opx[c]))
				ys = append(ys, float64(rpx[c]))
			}
		}
	}

	m := &QualityMetrics{KnownPixels: known}
	if len(xs) == 0 {
		return m, nil
	}

	var sqSum, absSum float64
	for i := range xs {
		d := xs[i] - ys[i]
		sqSum += d * d
		absSum += math.Abs(d)
	}
	m.RMSE = math.Sqrt(sqSum / float64(len(xs)))
	m.MeanAbsError = absSum / float64(len(xs))
	if m.RMSE == 0 {
		m.PSNR = math.Inf(1)
	} else {
		m.PSNR = 20 * math.Log10(255/m.RMSE)
	}

	// A constant region has no variance to correlate; report perfect
	// correlation when the samples agree exactly.
	if stat.Variance(xs, nil) == 0 || stat.Variance(ys, nil) == 0 {
		if m.RMSE == 0 {
			m.Correlation = 1
		}
	} else {
		m.Correlation = stat.Correlation(xs, ys, nil)
	}
	return m, nil
}
