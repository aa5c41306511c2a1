package models

import "time"

// BatchRequest starts a batch over the configured image directory.
// Source fields override the configured copy source for this batch only.
type BatchRequest struct {
	SourceType     string `json:"source_type,omitempty"`
	SourceLocation string `json:"source_location,omitempty"`
	RenderReport   bool   `json:"render_report,omitempty"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// ProgressSnapshot is the latest progress state of the running batch.
type ProgressSnapshot struct {
	BatchID   string    `json:"batch_id,omitempty"`
	Phase     string    `json:"phase"`
	Done      int       `json:"done"`
	Total     int       `json:"total"`
	Running   bool      `json:"running"`
	UpdatedAt time.Time `json:"updated_at"`
}

// CategorySummary is the listing view of a category.
type CategorySummary struct {
	Alias         string `json:"alias"`
	Boxes         int    `json:"boxes"`
	SchemeRegions int    `json:"scheme_regions"`
	NewType       bool   `json:"new_type"`
	HasOverride   bool   `json:"has_override"`
	Timestamp     string `json:"timestamp,omitempty"`
}

// Summarize builds the listing view of c.
func Summarize(c *Category) CategorySummary {
	return CategorySummary{
		Alias:         c.Alias,
		Boxes:         len(c.Regions),
		SchemeRegions: len(c.Scheme),
		NewType:       c.HasNewType(),
		HasOverride:   c.OCROverride != nil,
		Timestamp:     c.Timestamp,
	}
}
