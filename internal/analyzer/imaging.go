package analyzer

import (
	"image"
	"image/color"

	xdraw "golang.org/x/image/draw"
)

// ImageToolkit is the image-array library exposed to scripts as cv.
// Every method returns a new frame and leaves its input untouched.
type ImageToolkit struct {
	metrics MetricsCalculator
	qr      QRDetector
	inspect InspectOptions
}

// NewImageToolkit wires the toolkit to the metric and QR detectors
func NewImageToolkit(metrics MetricsCalculator, qr QRDetector) *ImageToolkit {
	return &ImageToolkit{metrics: metrics, qr: qr, inspect: DefaultInspectOptions()}
}

// WithInspectOptions returns a copy of the toolkit using opts for Inspect.
func (t *ImageToolkit) WithInspectOptions(opts InspectOptions) *ImageToolkit {
	c := *t
	c.inspect = opts
	return &c
}

// DefaultImageToolkit builds a toolkit with the standard detectors.
func DefaultImageToolkit() *ImageToolkit {
	return NewImageToolkit(NewMetricsCalculator(), NewQRDetector())
}

// Gray converts to grayscale, kept in RGBA form.
func (t *ImageToolkit) Gray(f *Frame) *Frame {
	return NewFrame(f.gray())
}

// Threshold maps gray levels at or above level to white and the rest to black.
func (t *ImageToolkit) Threshold(f *Frame, level int) *Frame {
	g := f.gray()
	out := BlankFrame(f.Width(), f.Height(), color.Black)
	for y := 0; y < f.Height(); y++ {
		for x := 0; x < f.Width(); x++ {
			if int(g.GrayAt(x, y).Y) >= level {
				out.pix.SetRGBA(x, y, color.RGBA{255, 255, 255, 255})
			}
		}
	}
	return out
}

// Invert flips every color channel.
func (t *ImageToolkit) Invert(f *Frame) *Frame {
	out := NewFrame(f.pix)
	for i := 0; i < len(out.pix.Pix); i += 4 {
		out.pix.Pix[i] = 255 - out.pix.Pix[i]
		out.pix.Pix[i+1] = 255 - out.pix.Pix[i+1]
		out.pix.Pix[i+2] = 255 - out.pix.Pix[i+2]
	}
	return out
}

func (t *ImageToolkit) Crop(f *Frame, x1, y1, x2, y2 int) *Frame {
	return f.Crop(x1, y1, x2, y2)
}

// Resize scales to exactly w x h with Catmull-Rom interpolation.
func (t *ImageToolkit) Resize(f *Frame, w, h int) *Frame {
	if w <= 0 || h <= 0 {
		return BlankFrame(0, 0, color.Black)
	}
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), f.pix, f.pix.Bounds(), xdraw.Src, nil)
	return &Frame{pix: dst}
}

// Scale resizes by a uniform factor, e.g. 2 to upsample small print before OCR.
func (t *ImageToolkit) Scale(f *Frame, factor float64) *Frame {
	return t.Resize(f, int(float64(f.Width())*factor+0.5), int(float64(f.Height())*factor+0.5))
}

// Brightness is the mean gray level in [0,255].
func (t *ImageToolkit) Brightness(f *Frame) float64 {
	return t.metrics.CalculateBrightness(f.gray())
}

// Sharpness is the Laplacian variance of the gray image.
func (t *ImageToolkit) Sharpness(f *Frame) float64 {
	return t.metrics.CalculateLaplacianVariance(f.gray())
}

// MeanColor returns the average [r, g, b] in [0,255].
func (t *ImageToolkit) MeanColor(f *Frame) []float64 {
	s := t.metrics.CalculateColorStats(f.pix)
	return []float64{s.R * 255, s.G * 255, s.B * 255}
}

// Saturation is the mean HSV saturation in [0,1].
func (t *ImageToolkit) Saturation(f *Frame) float64 {
	return t.metrics.CalculateColorStats(f.pix).Saturation
}

func (t *ImageToolkit) Contours(f *Frame) int {
	return t.metrics.DetectContours(f.gray())
}

// Skew is the dominant edge angle in degrees, 0 when undetectable.
func (t *ImageToolkit) Skew(f *Frame) float64 {
	if a := t.metrics.DetectSkew(f.gray()); a != nil {
		return *a
	}
	return 0
}

func (t *ImageToolkit) HasQRCode(f *Frame) bool {
	return t.qr.DetectQRCode(f.pix)
}
