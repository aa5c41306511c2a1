package analyzer

// ColorStats holds mean channel values, all normalized to [0,1].
// Luminance is the HSV value channel.
type ColorStats struct {
	Luminance  float64
	Saturation float64
	R, G, B    float64
}
