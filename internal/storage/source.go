package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// Source supplies the images copied into the working directory before a batch.
type Source interface {
	// Name identifies the source in logs
	Name() string

	// List returns the file names the source will deliver
	List(ctx context.Context) ([]string, error)

	// Copy writes one listed file into dstDir under the same name
	Copy(ctx context.Context, name, dstDir string) error
}

// writeFile streams r into dir/name through a temp file so a failed copy
// never leaves a truncated image behind.
func writeFile(dir, name string, r io.Reader) error {
	tmp, err := os.CreateTemp(dir, ".copy-*.part")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := io.Copy(tmp, r); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close %s: %w", name, err)
	}
	if err := os.Rename(tmpName, filepath.Join(dir, name)); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("move %s: %w", name, err)
	}
	return nil
}
