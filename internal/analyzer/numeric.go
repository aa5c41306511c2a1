package analyzer

import (
	"math"
	"sort"
	"strings"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// NumericToolkit is the numeric-array library exposed to scripts as np.
// Empty inputs yield 0 rather than NaN.
type NumericToolkit struct{}

func NewNumericToolkit() *NumericToolkit {
	return &NumericToolkit{}
}

func (NumericToolkit) Mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	return stat.Mean(values, nil)
}

// Variance is the unbiased sample variance.
func (NumericToolkit) Variance(values []float64) float64 {
	if len(values) < 2 {
		return 0
	}
	return stat.Variance(values, nil)
}

func (NumericToolkit) Std(values []float64) float64 {
	if len(values) < 2 {
		return 0
	}
	return stat.StdDev(values, nil)
}

func (NumericToolkit) Sum(values []float64) float64 {
	return floats.Sum(values)
}

func (NumericToolkit) Min(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	return floats.Min(values)
}

func (NumericToolkit) Max(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	return floats.Max(values)
}

func (NumericToolkit) Median(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	if len(sorted)%2 == 0 {
		return (sorted[len(sorted)/2-1] + sorted[len(sorted)/2]) / 2
	}
	return stat.Quantile(0.5, stat.Empirical, sorted, nil)
}

// Pixels flattens one channel of a frame row by row. Channel is one of
// "r", "g", "b", "a"; anything else yields gray levels.
func (NumericToolkit) Pixels(f *Frame, channel string) []float64 {
	out := make([]float64, 0, f.Width()*f.Height())
	idx := -1
	switch strings.ToLower(channel) {
	case "r":
		idx = 0
	case "g":
		idx = 1
	case "b":
		idx = 2
	case "a":
		idx = 3
	}
	if idx < 0 {
		g := f.gray()
		for _, v := range g.Pix {
			out = append(out, float64(v))
		}
		return out
	}
	for i := idx; i < len(f.pix.Pix); i += 4 {
		out = append(out, float64(f.pix.Pix[i]))
	}
	return out
}

// Histogram counts values into bins equal-width buckets over [lo, hi].
// Values outside the range are dropped.
func (NumericToolkit) Histogram(values []float64, bins int, lo, hi float64) []float64 {
	if bins <= 0 || hi <= lo {
		return []float64{}
	}
	dividers := make([]float64, bins+1)
	floats.Span(dividers, lo, hi)
	dividers[bins] = math.Nextafter(hi, math.Inf(1))

	in := make([]float64, 0, len(values))
	for _, v := range values {
		if v >= lo && v <= hi {
			in = append(in, v)
		}
	}
	sort.Float64s(in)
	return stat.Histogram(nil, dividers, in, nil)
}
