package models

import (
	"encoding/json"
	"fmt"
	"image"
	"math"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	// GlobalAlias is the reserved registry key holding the basic-type defaults.
	GlobalAlias = "__global__"

	// NewTypeRegion marks a box the user flagged as needing a custom scheme.
	NewTypeRegion = 5

	// NewTypeRegionName names the region extracted from a type-5 box.
	NewTypeRegionName = "new_type"

	// BasicTypeCount is the number of shared basic types.
	BasicTypeCount = 4

	basicTypePrefix = "basic_type_"
)

// BasicTypeKey returns the persisted key for basic type n.
func BasicTypeKey(n int) string {
	return fmt.Sprintf("%s%d", basicTypePrefix, n)
}

// IsBasicTypeKey reports whether a scheme region name collides with a basic type.
func IsBasicTypeKey(name string) bool {
	return strings.HasPrefix(name, basicTypePrefix)
}

// Point is an (x, y) pixel position. Fractional values in stored data are rounded.
type Point [2]int

func (p *Point) UnmarshalYAML(value *yaml.Node) error {
	var raw []float64
	if err := value.Decode(&raw); err != nil {
		return err
	}
	if len(raw) != 2 {
		return fmt.Errorf("point needs 2 values, got %d", len(raw))
	}
	p[0], p[1] = int(math.Round(raw[0])), int(math.Round(raw[1]))
	return nil
}

// Rect is an axis-aligned rectangle given by two opposite corners.
type Rect struct {
	X1, Y1, X2, Y2 int
}

// NewRect builds a normalized rectangle from two corners in any order.
func NewRect(a, b Point) Rect {
	return Rect{X1: a[0], Y1: a[1], X2: b[0], Y2: b[1]}.Normalize()
}

// Normalize orders both axes so (X1, Y1) is the top-left corner.
func (r Rect) Normalize() Rect {
	return Rect{
		X1: min(r.X1, r.X2),
		Y1: min(r.Y1, r.Y2),
		X2: max(r.X1, r.X2),
		Y2: max(r.Y1, r.Y2),
	}
}

func (r Rect) Width() int  { return r.X2 - r.X1 }
func (r Rect) Height() int { return r.Y2 - r.Y1 }

// Bounds converts the rectangle to an image.Rectangle.
func (r Rect) Bounds() image.Rectangle {
	return image.Rect(r.X1, r.Y1, r.X2, r.Y2)
}

func (r Rect) String() string {
	return fmt.Sprintf("(%d,%d,%d,%d)", r.X1, r.Y1, r.X2, r.Y2)
}

func (r Rect) MarshalJSON() ([]byte, error) {
	return json.Marshal([4]int{r.X1, r.Y1, r.X2, r.Y2})
}

func (r *Rect) UnmarshalJSON(data []byte) error {
	var raw [4]float64
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*r = rectFromFloats(raw[:])
	return nil
}

func (r Rect) MarshalYAML() (interface{}, error) {
	node := &yaml.Node{Kind: yaml.SequenceNode, Style: yaml.FlowStyle}
	for _, v := range []int{r.X1, r.Y1, r.X2, r.Y2} {
		node.Content = append(node.Content, &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!int", Value: fmt.Sprint(v)})
	}
	return node, nil
}

func (r *Rect) UnmarshalYAML(value *yaml.Node) error {
	var raw []float64
	if err := value.Decode(&raw); err != nil {
		return err
	}
	if len(raw) != 4 {
		return fmt.Errorf("coords need 4 values, got %d", len(raw))
	}
	*r = rectFromFloats(raw)
	return nil
}

func rectFromFloats(raw []float64) Rect {
	return Rect{
		X1: int(math.Round(raw[0])),
		Y1: int(math.Round(raw[1])),
		X2: int(math.Round(raw[2])),
		Y2: int(math.Round(raw[3])),
	}
}

// Box is an annotated rectangle on a category's reference image.
type Box struct {
	Pt1        Point `yaml:"pt1" json:"pt1"`
	Pt2        Point `yaml:"pt2" json:"pt2"`
	RegionType int   `yaml:"region_type" json:"region_type"`
}

// Rect returns the box as a normalized rectangle.
func (b Box) Rect() Rect {
	return NewRect(b.Pt1, b.Pt2)
}

// EngineSettings selects an OCR engine and the code run around it.
// An empty engine name means the configured default engine.
type EngineSettings struct {
	OCREngine string `yaml:"ocr_engine" json:"ocr_engine"`
	PreCode   string `yaml:"pre_code" json:"pre_code"`
	PostCode  string `yaml:"post_code" json:"post_code"`
}

// SchemeRegion is a named region carrying its own engine settings.
// Coords is nil when the user never drew the region.
type SchemeRegion struct {
	Name           string `yaml:"-" json:"name"`
	Coords         *Rect  `yaml:"coords,omitempty" json:"coords"`
	EngineSettings `yaml:",inline"`
}

// Scheme is an ordered list of named regions, persisted as a mapping.
type Scheme []SchemeRegion

func (s *Scheme) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.MappingNode {
		return fmt.Errorf("scheme must be a mapping, got kind %d", value.Kind)
	}
	out := make(Scheme, 0, len(value.Content)/2)
	for i := 0; i+1 < len(value.Content); i += 2 {
		var region SchemeRegion
		if err := value.Content[i+1].Decode(&region); err != nil {
			return fmt.Errorf("scheme region %q: %w", value.Content[i].Value, err)
		}
		region.Name = value.Content[i].Value
		out = append(out, region)
	}
	*s = out
	return nil
}

func (s Scheme) MarshalYAML() (interface{}, error) {
	node := &yaml.Node{Kind: yaml.MappingNode}
	for _, region := range s {
		var body yaml.Node
		if err := body.Encode(region); err != nil {
			return nil, err
		}
		node.Content = append(node.Content,
			&yaml.Node{Kind: yaml.ScalarNode, Value: region.Name},
			&body,
		)
	}
	return node, nil
}

// Size is the editor's reference image size as [width, height].
type Size [2]int

// Category is one user-defined image class.
type Category struct {
	Alias                string          `yaml:"-" json:"alias"`
	ClassificationSource string          `yaml:"classification_source" json:"classification_source"`
	Regions              []Box           `yaml:"regions,omitempty" json:"regions"`
	Scheme               Scheme          `yaml:"scheme,omitempty" json:"scheme"`
	OCROverride          *EngineSettings `yaml:"ocr_override,omitempty" json:"ocr_override,omitempty"`
	Size                 *Size           `yaml:"size,omitempty" json:"size,omitempty"`
	Timestamp            string          `yaml:"timestamp,omitempty" json:"timestamp,omitempty"`
}

// HasNewType reports whether any box was flagged as a new type.
func (c *Category) HasNewType() bool {
	for _, box := range c.Regions {
		if box.RegionType == NewTypeRegion {
			return true
		}
	}
	return false
}

// Global holds the four shared basic-type settings.
type Global struct {
	BasicTypes [BasicTypeCount]EngineSettings `json:"basic_types"`
}

// BasicType returns the settings for type n (1-based).
func (g Global) BasicType(n int) (EngineSettings, bool) {
	if n < 1 || n > BasicTypeCount {
		return EngineSettings{}, false
	}
	return g.BasicTypes[n-1], true
}

// Registry is the in-memory view of the persisted categories.
// Aliases keep their insertion order.
type Registry struct {
	Global     Global
	aliases    []string
	categories map[string]*Category
}

func NewRegistry() *Registry {
	return &Registry{categories: make(map[string]*Category)}
}

// Add inserts a category, or replaces it in place when the alias exists.
func (r *Registry) Add(c *Category) {
	if _, ok := r.categories[c.Alias]; !ok {
		r.aliases = append(r.aliases, c.Alias)
	}
	r.categories[c.Alias] = c
}

// Remove deletes a category and reports whether it existed.
func (r *Registry) Remove(alias string) bool {
	if _, ok := r.categories[alias]; !ok {
		return false
	}
	delete(r.categories, alias)
	for i, a := range r.aliases {
		if a == alias {
			r.aliases = append(r.aliases[:i], r.aliases[i+1:]...)
			break
		}
	}
	return true
}

func (r *Registry) Category(alias string) (*Category, bool) {
	c, ok := r.categories[alias]
	return c, ok
}

// Aliases returns a copy of the aliases in insertion order.
func (r *Registry) Aliases() []string {
	out := make([]string, len(r.aliases))
	copy(out, r.aliases)
	return out
}

// Categories returns the categories in insertion order.
func (r *Registry) Categories() []*Category {
	out := make([]*Category, 0, len(r.aliases))
	for _, a := range r.aliases {
		out = append(out, r.categories[a])
	}
	return out
}

func (r *Registry) Len() int {
	return len(r.aliases)
}
