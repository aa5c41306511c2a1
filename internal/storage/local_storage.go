package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"go-scan-sorter/internal/repository"
)

// LocalSource copies images from a drop directory on disk.
type LocalSource struct {
	repo *repository.DirImageRepository
}

func NewLocalSource(dir string) *LocalSource {
	return &LocalSource{repo: repository.NewDirImageRepository(dir)}
}

func (s *LocalSource) Name() string {
	return "local:" + s.repo.Dir()
}

func (s *LocalSource) List(ctx context.Context) ([]string, error) {
	return s.repo.List(ctx)
}

func (s *LocalSource) Copy(ctx context.Context, name, dstDir string) error {
	src := filepath.Join(s.repo.Dir(), name)
	if filepath.Clean(s.repo.Dir()) == filepath.Clean(dstDir) {
		return nil
	}
	f, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("open %s: %w", src, err)
	}
	defer f.Close()
	return writeFile(dstDir, name, f)
}
