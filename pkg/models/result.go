package models

import (
	"encoding/json"
	"time"
)

// Sentinel categories assigned by the classifier.
const (
	CategoryUnreadable = "unreadable"
	CategoryUnknown    = "unknown"
)

// NoCoordinatesText is the text of a scheme region that was never drawn.
const NoCoordinatesText = "no region coordinates"

// RegionResult is the extracted text of one region.
// RegionType is nil for scheme regions; Coords is nil when none were stored.
type RegionResult struct {
	RegionName string `json:"region_name"`
	RegionType *int   `json:"region_type"`
	Coords     *Rect  `json:"coords"`
	Text       string `json:"text"`
}

// ImageResult is everything extracted from one classified image.
type ImageResult struct {
	ImageName       string         `json:"image_name"`
	Category        string         `json:"category"`
	Regions         []RegionResult `json:"regions"`
	NewTypeDetected bool           `json:"new_type_detected,omitempty"`
	Error           string         `json:"error,omitempty"`
}

// ClassifiedImage pairs an image file name with its category alias.
type ClassifiedImage struct {
	ImageName string `json:"image_name"`
	Category  string `json:"category"`
}

// Classification is an ordered image name to alias mapping.
type Classification struct {
	names   []string
	aliases map[string]string
}

func NewClassification() *Classification {
	return &Classification{aliases: make(map[string]string)}
}

// Set records the alias for an image; re-setting keeps the original position.
func (c *Classification) Set(imageName, alias string) {
	if _, ok := c.aliases[imageName]; !ok {
		c.names = append(c.names, imageName)
	}
	c.aliases[imageName] = alias
}

func (c *Classification) Alias(imageName string) (string, bool) {
	a, ok := c.aliases[imageName]
	return a, ok
}

// Names returns image names in classification order.
func (c *Classification) Names() []string {
	out := make([]string, len(c.names))
	copy(out, c.names)
	return out
}

func (c *Classification) Len() int {
	return len(c.names)
}

// Entries returns the mapping as an ordered slice.
func (c *Classification) Entries() []ClassifiedImage {
	out := make([]ClassifiedImage, 0, len(c.names))
	for _, n := range c.names {
		out = append(out, ClassifiedImage{ImageName: n, Category: c.aliases[n]})
	}
	return out
}

func (c *Classification) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.Entries())
}

// UnmarshalJSON replaces c with the entries of a JSON array, in array order.
func (c *Classification) UnmarshalJSON(data []byte) error {
	var entries []ClassifiedImage
	if err := json.Unmarshal(data, &entries); err != nil {
		return err
	}
	c.names = nil
	c.aliases = make(map[string]string, len(entries))
	for _, e := range entries {
		c.Set(e.ImageName, e.Category)
	}
	return nil
}

// BatchResult is the outcome of one classify and extract run.
type BatchResult struct {
	ID             string          `json:"id"`
	StartedAt      time.Time       `json:"started_at"`
	FinishedAt     time.Time       `json:"finished_at"`
	Total          int             `json:"total"`
	Classification *Classification `json:"classification"`
	Results        []ImageResult   `json:"results"`
	Report         GroupedReport   `json:"report"`
	ReportPath     string          `json:"report_path,omitempty"`
}

// RegionsByImage indexes the region results by image name.
func (b *BatchResult) RegionsByImage() map[string][]RegionResult {
	out := make(map[string][]RegionResult, len(b.Results))
	for _, r := range b.Results {
		out[r.ImageName] = r.Regions
	}
	return out
}
