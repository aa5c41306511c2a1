package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func TestLocalSource_Copy(t *testing.T) {
	src := t.TempDir()
	dst := t.TempDir()
	os.WriteFile(filepath.Join(src, "b.png"), onePixelPNG, 0o644)
	os.WriteFile(filepath.Join(src, "a.JPG"), []byte("jpeg"), 0o644)
	os.WriteFile(filepath.Join(src, "notes.txt"), []byte("x"), 0o644)

	s := NewLocalSource(src)
	names, err := s.List(context.Background())
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(names) != 2 || names[0] != "a.JPG" || names[1] != "b.png" {
		t.Fatalf("Unexpected listing %v", names)
	}

	for _, n := range names {
		if err := s.Copy(context.Background(), n, dst); err != nil {
			t.Fatalf("Copy %s: %v", n, err)
		}
	}
	got, _ := os.ReadFile(filepath.Join(dst, "a.JPG"))
	if string(got) != "jpeg" {
		t.Errorf("Unexpected content %q", got)
	}
}

func TestLocalSource_SameDirectoryIsNoop(t *testing.T) {
	dir := t.TempDir()
	os.WriteFile(filepath.Join(dir, "a.png"), onePixelPNG, 0o644)

	if err := NewLocalSource(dir).Copy(context.Background(), "a.png", dir); err != nil {
		t.Fatalf("Copy onto itself: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "a.png")); err != nil {
		t.Error("Source file must survive")
	}
}

func TestAzureSource_ParsesLocation(t *testing.T) {
	s := NewAzureSource(nil, "scans/2024/q1")
	if s.container != "scans" || s.prefix != "2024/q1" {
		t.Errorf("Unexpected split %q %q", s.container, s.prefix)
	}
	s = NewAzureSource(nil, "scans")
	if s.container != "scans" || s.prefix != "" {
		t.Errorf("Unexpected split %q %q", s.container, s.prefix)
	}
	if s.Name() != "azure:scans" {
		t.Errorf("Unexpected name %q", s.Name())
	}
	s = NewAzureSource(nil, "scans/")
	if s.container != "scans" || s.prefix != "" {
		t.Errorf("Unexpected split %q %q", s.container, s.prefix)
	}
}
