package classifier

import (
	"context"
	"fmt"

	"go-scan-sorter/internal/analyzer"
	"go-scan-sorter/internal/logger"
	"go-scan-sorter/internal/repository"
	"go-scan-sorter/internal/scripting"
	"go-scan-sorter/pkg/models"
)

// ImageFunc is called once per image after it has been assigned a category.
type ImageFunc func(imageName, alias string)

// Classifier assigns each image in a directory to the first category whose
// predicate accepts it.
type Classifier struct {
	images repository.ImageRepository
}

func New(images repository.ImageRepository) *Classifier {
	return &Classifier{images: images}
}

// Classify walks the images in name order. Only a missing or unlistable
// directory is an error; every image still ends up in the result.
func (c *Classifier) Classify(ctx context.Context, predicates *scripting.PredicateSet, onImage ImageFunc) (*models.Classification, error) {
	names, err := c.images.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("classify: %w", err)
	}

	ordered := predicates.Ordered()
	out := models.NewClassification()
	for _, name := range names {
		alias := c.classifyOne(ctx, name, ordered)
		out.Set(name, alias)
		if onImage != nil {
			onImage(name, alias)
		}
	}
	return out, nil
}

func (c *Classifier) classifyOne(ctx context.Context, name string, predicates []scripting.Predicate) string {
	img, err := c.images.Open(ctx, name)
	if err != nil {
		logger.ForImage(name, "").WithError(err).Warn("Image unreadable")
		return models.CategoryUnreadable
	}
	frame := analyzer.NewFrame(img)

	for _, p := range predicates {
		ok, err := p.Judge(frame)
		if err != nil {
			logger.ForImage(name, p.Alias()).WithError(err).Warn("Predicate failed, treating as no match")
			continue
		}
		if ok {
			return p.Alias()
		}
	}
	return models.CategoryUnknown
}

// ClassifyDir is Classify over a plain directory.
func ClassifyDir(ctx context.Context, dir string, predicates *scripting.PredicateSet, onImage ImageFunc) (*models.Classification, error) {
	return New(repository.NewDirImageRepository(dir)).Classify(ctx, predicates, onImage)
}
