package analyzer

import (
	"image"
	"math"
)

// InspectOptions holds the thresholds behind ImageToolkit.Inspect
type InspectOptions struct {
	BlurThreshold           float64
	OverexposureThreshold   float64
	OversaturationThreshold float64
	WhiteBalanceTolerance   float64

	// gray levels in [0,255]
	MinBrightness float64
	MaxBrightness float64

	MaxSkewDegrees float64
	MinWidth       int
	MinHeight      int
}

// DefaultInspectOptions returns thresholds suited to photographed forms.
func DefaultInspectOptions() InspectOptions {
	return InspectOptions{
		BlurThreshold:           100.0,
		OverexposureThreshold:   0.95,
		OversaturationThreshold: 0.9,
		WhiteBalanceTolerance:   0.1,
		MinBrightness:           80,
		MaxBrightness:           220,
		MaxSkewDegrees:          5,
		MinWidth:                800,
		MinHeight:               1000,
	}
}

// OCRInspectOptions tightens blur detection for frames headed to OCR.
func OCRInspectOptions() InspectOptions {
	opts := DefaultInspectOptions()
	opts.BlurThreshold = 300.0
	return opts
}

// WithThresholds overrides the blur, overexposure and oversaturation limits
func (o InspectOptions) WithThresholds(blur, overexposure, oversaturation float64) InspectOptions {
	o.BlurThreshold = blur
	o.OverexposureThreshold = overexposure
	o.OversaturationThreshold = oversaturation
	return o
}

// WithMinResolution sets the smallest frame that is not flagged as low resolution
func (o InspectOptions) WithMinResolution(w, h int) InspectOptions {
	o.MinWidth = w
	o.MinHeight = h
	return o
}

// Inspection is the quality verdict on one frame. Scripts read it as
// cv.inspect(img), e.g. cv.inspect(img).blurry.
type Inspection struct {
	Width      int
	Height     int
	Sharpness  float64
	Brightness float64
	Luminance  float64
	Saturation float64
	Skew       float64

	Blurry        bool
	Overexposed   bool
	Oversaturated bool
	IncorrectWB   bool
	TooDark       bool
	TooBright     bool
	Skewed        bool
	LowResolution bool
	DocumentEdges bool
	QRCode        bool

	// Issues names every raised flag, in the order above
	Issues []string
}

// OK reports whether no flag was raised.
func (i Inspection) OK() bool {
	return len(i.Issues) == 0
}

// Inspect measures f and flags the conditions that usually spoil
// classification or OCR.
func (t *ImageToolkit) Inspect(f *Frame) Inspection {
	opts := t.inspect
	gray := f.gray()
	stats := t.metrics.CalculateColorStats(f.pix)

	in := Inspection{
		Width:      f.Width(),
		Height:     f.Height(),
		Sharpness:  t.metrics.CalculateLaplacianVariance(gray),
		Brightness: t.metrics.CalculateBrightness(gray),
		Luminance:  stats.Luminance,
		Saturation: stats.Saturation,
	}
	if a := t.metrics.DetectSkew(gray); a != nil {
		in.Skew = *a
		in.Skewed = math.Abs(*a) > opts.MaxSkewDegrees
	}

	in.Blurry = in.Sharpness <= opts.BlurThreshold
	in.Overexposed = stats.Luminance > opts.OverexposureThreshold
	in.Oversaturated = stats.Saturation > opts.OversaturationThreshold
	in.IncorrectWB = channelSpread(stats) > opts.WhiteBalanceTolerance
	in.TooDark = in.Brightness < opts.MinBrightness
	in.TooBright = in.Brightness > opts.MaxBrightness
	in.LowResolution = in.Width < opts.MinWidth || in.Height < opts.MinHeight
	in.DocumentEdges = hasDocumentEdges(gray)
	in.QRCode = t.qr.DetectQRCode(f.pix)

	for _, flag := range []struct {
		set  bool
		name string
	}{
		{in.Blurry, "blurry"},
		{in.Overexposed, "overexposed"},
		{in.Oversaturated, "oversaturated"},
		{in.IncorrectWB, "white_balance"},
		{in.TooDark, "too_dark"},
		{in.TooBright, "too_bright"},
		{in.Skewed, "skewed"},
		{in.LowResolution, "low_resolution"},
	} {
		if flag.set {
			in.Issues = append(in.Issues, flag.name)
		}
	}
	return in
}

// channelSpread is the largest difference between two mean channels.
func channelSpread(s ColorStats) float64 {
	return math.Max(math.Abs(s.R-s.G), math.Max(math.Abs(s.R-s.B), math.Abs(s.G-s.B)))
}

// hasDocumentEdges compares the corners with the center. Paper laid on a
// darker surface leaves at least two corners visibly different.
func hasDocumentEdges(gray *image.Gray) bool {
	b := gray.Bounds()
	if b.Dx() <= 20 || b.Dy() <= 20 {
		return false
	}
	corners := []image.Point{
		{b.Min.X + 10, b.Min.Y + 10},
		{b.Max.X - 10, b.Min.Y + 10},
		{b.Min.X + 10, b.Max.Y - 10},
		{b.Max.X - 10, b.Max.Y - 10},
	}
	center := int(gray.GrayAt(b.Min.X+b.Dx()/2, b.Min.Y+b.Dy()/2).Y)

	different := 0
	for _, c := range corners {
		d := int(gray.GrayAt(c.X, c.Y).Y) - center
		if d > 30 || d < -30 {
			different++
		}
	}
	return different >= 2
}
