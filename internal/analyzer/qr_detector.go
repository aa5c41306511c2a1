package analyzer

import (
	"image"
	"image/draw"
)

// qrDetector implements QRDetector by probing for finder patterns
type qrDetector struct{}

// NewQRDetector creates a new QR detector
func NewQRDetector() QRDetector {
	return &qrDetector{}
}

// finderProbes are the relative positions probed for finder patterns.
var finderProbes = [][2]float64{
	{0.25, 0.25},
	{0.75, 0.25},
	{0.25, 0.75},
	{0.5, 0.5},
}

// DetectQRCode reports whether at least two probes look like finder patterns.
// Useful in predicates that separate coded forms from plain ones.
func (qd *qrDetector) DetectQRCode(img image.Image) bool {
	bounds := img.Bounds()
	gray, ok := img.(*image.Gray)
	if !ok || bounds.Min != (image.Point{}) {
		gray = image.NewGray(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
		draw.Draw(gray, gray.Bounds(), img, bounds.Min, draw.Src)
	}

	width, height := bounds.Dx(), bounds.Dy()
	minSize, maxSize := 7, min(width, height)/3
	if maxSize < minSize {
		return false
	}

	found := 0
	for _, p := range finderProbes {
		cx, cy := int(p[0]*float64(width)), int(p[1]*float64(height))
		for size := minSize; size <= maxSize; size += 2 {
			if qd.isFinderPattern(gray, cx, cy, size/2) {
				found++
				break
			}
		}
	}
	return found >= 2
}

// isFinderPattern samples outward from the center along four directions and
// expects alternating dark and light rings.
func (qd *qrDetector) isFinderPattern(gray *image.Gray, cx, cy, radius int) bool {
	width, height := gray.Bounds().Dx(), gray.Bounds().Dy()
	if cx-radius < 0 || cx+radius >= width || cy-radius < 0 || cy+radius >= height {
		return false
	}

	samples := []int{radius / 4, radius / 2, 3 * radius / 4, radius}
	dark := []bool{true, false, true, false}
	directions := [][2]int{{1, 0}, {0, 1}, {1, 1}, {-1, 1}}

	matchingDirections := 0
	for _, dir := range directions {
		matches := 0
		for i, s := range samples {
			isDark := gray.GrayAt(cx+s*dir[0], cy+s*dir[1]).Y < 128
			if isDark == dark[i] {
				matches++
			}
		}
		if matches >= len(samples)-1 {
			matchingDirections++
		}
	}
	return matchingDirections >= 2
}
