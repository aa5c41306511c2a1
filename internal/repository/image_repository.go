package repository

import (
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	apperrors "go-scan-sorter/internal/errors"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// imageExtensions are the recognized image file extensions, lower case.
var imageExtensions = map[string]struct{}{
	".jpg":  {},
	".jpeg": {},
	".png":  {},
	".bmp":  {},
	".gif":  {},
	".tiff": {},
	".webp": {},
}

// IsImageFile reports whether name carries a recognized image extension.
func IsImageFile(name string) bool {
	_, ok := imageExtensions[strings.ToLower(filepath.Ext(name))]
	return ok
}

// DirImageRepository serves images from a local directory
type DirImageRepository struct {
	dir string
}

// NewDirImageRepository creates a repository over dir
func NewDirImageRepository(dir string) *DirImageRepository {
	return &DirImageRepository{dir: dir}
}

func (r *DirImageRepository) Dir() string {
	return r.dir
}

// List returns recognized image files sorted by name. Subdirectories are ignored.
func (r *DirImageRepository) List(ctx context.Context) ([]string, error) {
	entries, err := os.ReadDir(r.dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrImageDirMissing, r.dir)
		}
		return nil, fmt.Errorf("list %s: %w", r.dir, err)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !IsImageFile(e.Name()) {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)
	return names, nil
}

// Open decodes name. Any failure is a decode error.
func (r *DirImageRepository) Open(ctx context.Context, name string) (image.Image, error) {
	f, err := os.Open(filepath.Join(r.dir, name))
	if err != nil {
		return nil, apperrors.NewDecodeError(fmt.Sprintf("cannot open %s", name), err)
	}
	defer f.Close()
	return DecodeImage(f, name)
}

// DecodeImage decodes any registered format; name only labels errors.
func DecodeImage(src io.Reader, name string) (img image.Image, err error) {
	defer func() {
		// some decoders panic on truncated input
		if rec := recover(); rec != nil {
			img = nil
			err = apperrors.NewDecodeError(fmt.Sprintf("cannot decode %s", name), fmt.Errorf("decoder panic: %v", rec))
		}
	}()

	img, _, err = image.Decode(src)
	if err != nil {
		return nil, apperrors.NewDecodeError(fmt.Sprintf("cannot decode %s", name), err)
	}
	return img, nil
}

// Clear deletes the recognized image files and returns how many were removed.
func (r *DirImageRepository) Clear(ctx context.Context) (int, error) {
	names, err := r.List(ctx)
	if err != nil {
		return 0, err
	}
	removed := 0
	var errs []error
	for _, n := range names {
		if err := os.Remove(filepath.Join(r.dir, n)); err != nil {
			errs = append(errs, err)
			continue
		}
		removed++
	}
	return removed, errors.Join(errs...)
}
