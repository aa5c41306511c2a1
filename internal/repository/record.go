package repository

import (
	"fmt"

	"go-scan-sorter/internal/logger"
	"go-scan-sorter/pkg/models"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

const timestampLayout = "2006-01-02 15:04:05"

// Persisted sub-record keys.
const (
	keyClassification = "classification_source"
	keyRegions        = "regions"
	keyScheme         = "scheme"
	keyOverride       = "ocr_override"
	keySize           = "size"
	keyTimestamp      = "timestamp"
)

// recordEdit mutates one alias mapping in place.
type recordEdit func(record *yaml.Node) error

func newMapping() *yaml.Node {
	return &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
}

func keyNode(key string) *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: key}
}

// lookup returns the index of key's value within mapping, or -1.
func lookup(mapping *yaml.Node, key string) (int, *yaml.Node) {
	if mapping == nil || mapping.Kind != yaml.MappingNode {
		return -1, nil
	}
	for i := 0; i+1 < len(mapping.Content); i += 2 {
		if mapping.Content[i].Value == key {
			return i + 1, mapping.Content[i+1]
		}
	}
	return -1, nil
}

func setNode(mapping *yaml.Node, key string, value *yaml.Node) {
	if i, _ := lookup(mapping, key); i >= 0 {
		mapping.Content[i] = value
		return
	}
	mapping.Content = append(mapping.Content, keyNode(key), value)
}

func setValue(mapping *yaml.Node, key string, value interface{}) error {
	var n yaml.Node
	if err := n.Encode(value); err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	setNode(mapping, key, &n)
	return nil
}

func removeKey(mapping *yaml.Node, key string) bool {
	i, _ := lookup(mapping, key)
	if i < 0 {
		return false
	}
	mapping.Content = append(mapping.Content[:i-1], mapping.Content[i+1:]...)
	return true
}

// recordFor returns alias's mapping inside root, creating it at the end when absent.
func recordFor(root *yaml.Node, alias string) *yaml.Node {
	_, rec := lookup(root, alias)
	if rec == nil || rec.Kind != yaml.MappingNode {
		rec = newMapping()
		setNode(root, alias, rec)
	}
	return rec
}

func decodeCategory(alias string, node *yaml.Node) (*models.Category, error) {
	if node.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("category %q is not a mapping", alias)
	}
	var c models.Category
	if err := node.Decode(&c); err != nil {
		return nil, fmt.Errorf("category %q: %w", alias, err)
	}
	c.Alias = alias
	return &c, nil
}

// decodeGlobal reads basic_type_1..4. Broken entries keep their zero value.
func decodeGlobal(node *yaml.Node) models.Global {
	var g models.Global
	for n := 1; n <= models.BasicTypeCount; n++ {
		_, v := lookup(node, models.BasicTypeKey(n))
		if v == nil {
			continue
		}
		var s models.EngineSettings
		if err := v.Decode(&s); err != nil {
			logger.WithError(err).WithField("basic_type", n).Warn("Ignoring malformed basic type")
			continue
		}
		g.BasicTypes[n-1] = s
	}
	return g
}

// registryFromNode builds a registry from the root mapping, skipping entries
// that do not decode.
func registryFromNode(root *yaml.Node, source string) *models.Registry {
	reg := models.NewRegistry()
	for i := 0; i+1 < len(root.Content); i += 2 {
		alias := root.Content[i].Value
		value := root.Content[i+1]
		if alias == models.GlobalAlias {
			reg.Global = decodeGlobal(value)
			continue
		}
		c, err := decodeCategory(alias, value)
		if err != nil {
			logger.WithError(err).WithFields(logrus.Fields{
				"alias":    alias,
				"registry": source,
			}).Warn("Skipping malformed category")
			continue
		}
		reg.Add(c)
	}
	return reg
}

func editSize(size models.Size) recordEdit {
	return func(rec *yaml.Node) error {
		return setValue(rec, keySize, size)
	}
}

func editClassification(source string) recordEdit {
	return func(rec *yaml.Node) error {
		return setValue(rec, keyClassification, source)
	}
}

func editRegions(boxes []models.Box) recordEdit {
	return func(rec *yaml.Node) error {
		if boxes == nil {
			boxes = []models.Box{}
		}
		return setValue(rec, keyRegions, boxes)
	}
}

func editScheme(scheme models.Scheme) recordEdit {
	return func(rec *yaml.Node) error {
		if scheme == nil {
			scheme = models.Scheme{}
		}
		return setValue(rec, keyScheme, scheme)
	}
}

func editOverride(settings models.EngineSettings) recordEdit {
	return func(rec *yaml.Node) error {
		return setValue(rec, keyOverride, settings)
	}
}

func editBasicType(n int, settings models.EngineSettings) recordEdit {
	return func(rec *yaml.Node) error {
		if n < 1 || n > models.BasicTypeCount {
			return ErrInvalidBasicType
		}
		return setValue(rec, models.BasicTypeKey(n), settings)
	}
}
