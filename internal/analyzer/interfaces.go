package analyzer

import "image"

// MetricsCalculator handles pixel statistics used by the cv toolkit
type MetricsCalculator interface {
	CalculateColorStats(img image.Image) ColorStats
	CalculateLaplacianVariance(gray *image.Gray) float64
	CalculateBrightness(gray *image.Gray) float64
	DetectSkew(gray *image.Gray) *float64
	DetectContours(gray *image.Gray) int
}

// QRDetector handles QR code detection
type QRDetector interface {
	DetectQRCode(img image.Image) bool
}
