package models

// InspectRequest asks for a quality check of one image, given either as a
// URL or as a file name inside the image directory.
type InspectRequest struct {
	URL        string             `json:"url,omitempty"`
	Image      string             `json:"image,omitempty"`
	Mode       string             `json:"mode,omitempty"` // "default" or "ocr"
	Thresholds *InspectThresholds `json:"thresholds,omitempty"`
}

// Inspection modes
const (
	InspectModeDefault = "default"
	InspectModeOCR     = "ocr"
)

// InspectThresholds overrides individual limits; nil fields keep the mode's value.
type InspectThresholds struct {
	Blur           *float64 `json:"blur,omitempty"`
	Overexposure   *float64 `json:"overexposure,omitempty"`
	Oversaturation *float64 `json:"oversaturation,omitempty"`
	MaxSkew        *float64 `json:"max_skew,omitempty"`
	MinWidth       *int     `json:"min_width,omitempty"`
	MinHeight      *int     `json:"min_height,omitempty"`
}

// InspectResponse is the quality verdict on one image.
type InspectResponse struct {
	Source            string            `json:"source"`
	Mode              string            `json:"mode"`
	Width             int               `json:"width"`
	Height            int               `json:"height"`
	Metrics           InspectMetrics    `json:"metrics"`
	Issues            []string          `json:"issues"`
	Passed            bool              `json:"passed"`
	Thresholds        AppliedThresholds `json:"thresholds"`
	ProcessingTimeSec float64           `json:"processing_time_sec"`
}

// InspectMetrics are the raw measurements behind the verdict.
type InspectMetrics struct {
	Sharpness     float64 `json:"sharpness"`
	Brightness    float64 `json:"brightness"`
	Luminance     float64 `json:"luminance"`
	Saturation    float64 `json:"saturation"`
	Skew          float64 `json:"skew"`
	DocumentEdges bool    `json:"document_edges"`
	QRCode        bool    `json:"qr_code"`
}

// AppliedThresholds echoes the limits the verdict was computed with.
type AppliedThresholds struct {
	Blur           float64 `json:"blur"`
	Overexposure   float64 `json:"overexposure"`
	Oversaturation float64 `json:"oversaturation"`
	WhiteBalance   float64 `json:"white_balance"`
	MinBrightness  float64 `json:"min_brightness"`
	MaxBrightness  float64 `json:"max_brightness"`
	MaxSkew        float64 `json:"max_skew"`
	MinWidth       int     `json:"min_width"`
	MinHeight      int     `json:"min_height"`
}
