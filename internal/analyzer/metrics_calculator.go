package analyzer

import (
	"image"
	"math"
	"runtime"
	"sync"

	"gonum.org/v1/gonum/stat"
)

// parallelThreshold is the pixel count above which work is split into strips.
const parallelThreshold = 100000

// edgeThreshold is the Sobel magnitude counted as an edge.
const edgeThreshold = 50

// metricsCalculator implements MetricsCalculator with gonum statistics
type metricsCalculator struct {
	slicePool sync.Pool
}

// NewMetricsCalculator creates a new metrics calculator
func NewMetricsCalculator() MetricsCalculator {
	return &metricsCalculator{
		slicePool: sync.Pool{
			New: func() interface{} {
				return make([]float64, 0, 1024)
			},
		},
	}
}

// strip is a half-open row range.
type strip struct{ startY, endY int }

// strips splits the rows of bounds into at most NumCPU ranges.
func strips(bounds image.Rectangle) []strip {
	height := bounds.Dy()
	workers := runtime.NumCPU()
	if bounds.Dx()*height < parallelThreshold || height < workers {
		workers = 1
	}
	rows := (height + workers - 1) / workers
	out := make([]strip, 0, workers)
	for y := bounds.Min.Y; y < bounds.Max.Y; y += rows {
		out = append(out, strip{startY: y, endY: min(y+rows, bounds.Max.Y)})
	}
	return out
}

// CalculateColorStats averages RGB, saturation and value over every pixel.
func (mc *metricsCalculator) CalculateColorStats(img image.Image) ColorStats {
	bounds := img.Bounds()
	if bounds.Empty() {
		return ColorStats{}
	}

	parts := strips(bounds)
	sums := make([]ColorStats, len(parts))
	var wg sync.WaitGroup
	for i, s := range parts {
		wg.Add(1)
		go func(i int, s strip) {
			defer wg.Done()
			var acc ColorStats
			for y := s.startY; y < s.endY; y++ {
				for x := bounds.Min.X; x < bounds.Max.X; x++ {
					rVal, gVal, bVal, _ := img.At(x, y).RGBA()
					rf := float64(rVal) / 65535.0
					gf := float64(gVal) / 65535.0
					bf := float64(bVal) / 65535.0

					_, sat, val := rgbToHSV(rf, gf, bf)
					acc.Saturation += sat
					acc.Luminance += val
					acc.R += rf
					acc.G += gf
					acc.B += bf
				}
			}
			sums[i] = acc
		}(i, s)
	}
	wg.Wait()

	var total ColorStats
	for _, s := range sums {
		total.Luminance += s.Luminance
		total.Saturation += s.Saturation
		total.R += s.R
		total.G += s.G
		total.B += s.B
	}
	n := float64(bounds.Dx() * bounds.Dy())
	return ColorStats{
		Luminance:  total.Luminance / n,
		Saturation: total.Saturation / n,
		R:          total.R / n,
		G:          total.G / n,
		B:          total.B / n,
	}
}

// CalculateLaplacianVariance returns the variance of the 4-neighbour Laplacian,
// a focus measure: sharp text scores high, blank or blurred regions near zero.
func (mc *metricsCalculator) CalculateLaplacianVariance(gray *image.Gray) float64 {
	b := gray.Bounds()
	width, height := b.Dx(), b.Dy()
	if width < 3 || height < 3 {
		return 0
	}

	data := mc.slicePool.Get().([]float64)[:0]
	defer func() { mc.slicePool.Put(data[:0]) }()

	at := func(x, y int) float64 { return float64(gray.GrayAt(b.Min.X+x, b.Min.Y+y).Y) }
	for y := 1; y < height-1; y++ {
		for x := 1; x < width-1; x++ {
			data = append(data, -4*at(x, y)+at(x, y-1)+at(x, y+1)+at(x-1, y)+at(x+1, y))
		}
	}
	if len(data) < 2 {
		return 0
	}
	return stat.Variance(data, nil)
}

// CalculateBrightness returns the mean gray level in [0,255].
func (mc *metricsCalculator) CalculateBrightness(gray *image.Gray) float64 {
	bounds := gray.Bounds()
	if bounds.Empty() {
		return 0
	}

	parts := strips(bounds)
	sums := make([]float64, len(parts))
	var wg sync.WaitGroup
	for i, s := range parts {
		wg.Add(1)
		go func(i int, s strip) {
			defer wg.Done()
			for y := s.startY; y < s.endY; y++ {
				row := gray.Pix[gray.PixOffset(bounds.Min.X, y):gray.PixOffset(bounds.Max.X, y)]
				for _, v := range row {
					sums[i] += float64(v)
				}
			}
		}(i, s)
	}
	wg.Wait()

	var total float64
	for _, v := range sums {
		total += v
	}
	return total / float64(bounds.Dx()*bounds.Dy())
}

// DetectSkew fits a line through edge pixels and returns its angle in
// degrees within [-45, 45], or nil when there are too few edges.
func (mc *metricsCalculator) DetectSkew(gray *image.Gray) *float64 {
	var xs, ys []float64
	forEachEdge(gray, func(x, y int) {
		xs = append(xs, float64(x))
		ys = append(ys, float64(y))
	})
	if len(xs) < 10 {
		return nil
	}

	_, slope := stat.LinearRegression(xs, ys, nil, false)
	angle := math.Atan(slope) * 180 / math.Pi
	if math.IsNaN(angle) || math.IsInf(angle, 0) {
		angle = 0
	}
	for angle > 45 {
		angle -= 90
	}
	for angle < -45 {
		angle += 90
	}
	return &angle
}

// DetectContours approximates the number of contours from the edge pixel count.
func (mc *metricsCalculator) DetectContours(gray *image.Gray) int {
	edges := 0
	forEachEdge(gray, func(int, int) { edges++ })
	return edges / 10
}

// forEachEdge calls fn for every interior pixel whose Sobel magnitude exceeds edgeThreshold.
func forEachEdge(gray *image.Gray, fn func(x, y int)) {
	b := gray.Bounds()
	at := func(x, y int) int { return int(gray.GrayAt(x, y).Y) }
	for y := b.Min.Y + 1; y < b.Max.Y-1; y++ {
		for x := b.Min.X + 1; x < b.Max.X-1; x++ {
			gx := -at(x-1, y-1) + at(x+1, y-1) - 2*at(x-1, y) + 2*at(x+1, y) - at(x-1, y+1) + at(x+1, y+1)
			gy := -at(x-1, y-1) - 2*at(x, y-1) - at(x+1, y-1) + at(x-1, y+1) + 2*at(x, y+1) + at(x+1, y+1)
			if math.Sqrt(float64(gx*gx+gy*gy)) > edgeThreshold {
				fn(x, y)
			}
		}
	}
}

// rgbToHSV converts normalized RGB to hue in degrees and saturation/value in [0,1].
func rgbToHSV(r, g, b float64) (h, s, v float64) {
	hi := math.Max(r, math.Max(g, b))
	lo := math.Min(r, math.Min(g, b))
	delta := hi - lo

	v = hi
	if hi > 0 {
		s = delta / hi
	}

	switch {
	case delta == 0:
		h = 0
	case hi == r:
		h = 60 * ((g - b) / delta)
	case hi == g:
		h = 60 * ((b-r)/delta + 2)
	default:
		h = 60 * ((r-g)/delta + 4)
	}
	if h < 0 {
		h += 360
	}
	return h, s, v
}
