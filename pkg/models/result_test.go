package models

import (
	"encoding/json"
	"reflect"
	"testing"
)

func TestClassificationJSON(t *testing.T) {
	c := NewClassification()
	c.Set("b.png", "receipt")
	c.Set("a.png", CategoryUnknown)
	c.Set("b.png", "invoice")

	data, err := json.Marshal(BatchResult{ID: "batch-1", Classification: c})
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}

	var got BatchResult
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if got.Classification == nil {
		t.Fatal("Expected classification to be decoded")
	}
	if names := got.Classification.Names(); !reflect.DeepEqual(names, []string{"b.png", "a.png"}) {
		t.Errorf("Expected order [b.png a.png], got %v", names)
	}
	if alias, _ := got.Classification.Alias("b.png"); alias != "invoice" {
		t.Errorf("Expected b.png to be invoice, got %q", alias)
	}

	// decoding over an existing value replaces it
	if err := json.Unmarshal([]byte(`[{"image_name":"c.png","category":"receipt"}]`), c); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if c.Len() != 1 {
		t.Errorf("Expected 1 entry after decoding, got %d", c.Len())
	}
	if _, ok := c.Alias("a.png"); ok {
		t.Error("Expected earlier entries to be dropped")
	}

	if err := json.Unmarshal([]byte(`{"a.png":"receipt"}`), c); err == nil {
		t.Error("Expected an object to be rejected")
	}
}
