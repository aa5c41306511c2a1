package pipeline

import (
	"context"
	"errors"
	"fmt"
	"image"
	"sync"
	"time"

	"go-scan-sorter/internal/classifier"
	"go-scan-sorter/internal/logger"
	"go-scan-sorter/internal/observer"
	"go-scan-sorter/internal/repository"
	"go-scan-sorter/internal/scripting"
	"go-scan-sorter/internal/storage"
	"go-scan-sorter/pkg/models"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// ErrPhaseIncomplete means a phase finished with its counter below the total.
var ErrPhaseIncomplete = errors.New("phase incomplete")

// OverrideCollector supplies OCR settings for a category whose boxes were
// flagged as a new type and which has no override yet. Returning nil skips
// the new-type regions for this batch.
type OverrideCollector interface {
	CollectOverride(ctx context.Context, category *models.Category) (*models.EngineSettings, error)
}

// RegionExtractor reads the regions of one classified image
type RegionExtractor interface {
	Extract(ctx context.Context, imageName string, category *models.Category, global models.Global, img image.Image) models.ImageResult
}

// BatchResetter clears per-batch engine state
type BatchResetter interface {
	BeginBatch()
}

type Options struct {
	ClearImageDir bool
	CopyWorkers   int
}

// Orchestrator runs copy, classify and recognize over the image directory
// and reports progress to a single observer.
type Orchestrator struct {
	store     repository.CategoryRepository
	images    repository.ImageRepository
	loader    *scripting.Loader
	extractor RegionExtractor
	engines   BatchResetter
	observer  observer.Observer
	collector OverrideCollector
	opts      Options
	now       func() time.Time
}

func NewOrchestrator(
	store repository.CategoryRepository,
	images repository.ImageRepository,
	loader *scripting.Loader,
	extractor RegionExtractor,
	engines BatchResetter,
	obs observer.Observer,
	opts Options,
) *Orchestrator {
	if obs == nil {
		obs = observer.NewEventPublisher()
	}
	return &Orchestrator{
		store:     store,
		images:    images,
		loader:    loader,
		extractor: extractor,
		engines:   engines,
		observer:  obs,
		opts:      opts,
		now:       time.Now,
	}
}

// SetOverrideCollector installs the collector asked about new-type categories.
func (o *Orchestrator) SetOverrideCollector(c OverrideCollector) {
	o.collector = c
}

// batch carries the counters of one run
type batch struct {
	id      string
	total   int
	phase   observer.Phase
	done    int
	started time.Time
	mu      sync.Mutex
}

func (o *Orchestrator) emit(ctx context.Context, b *batch, t observer.EventType, mutate func(*observer.ProgressEvent)) {
	ev := observer.ProgressEvent{
		EventType: t,
		Timestamp: o.now(),
		BatchID:   b.id,
		Phase:     b.phase,
		Done:      b.done,
		Total:     b.total,
	}
	if mutate != nil {
		mutate(&ev)
	}
	o.observer.OnEvent(ctx, ev)
}

func (o *Orchestrator) startPhase(ctx context.Context, b *batch, phase observer.Phase) time.Time {
	b.phase = phase
	b.done = 0
	o.emit(ctx, b, observer.PhaseStarted, nil)
	return o.now()
}

// advance bumps the phase counter, never past the total.
func (o *Orchestrator) advance(ctx context.Context, b *batch, item string, meta map[string]interface{}) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.done < b.total {
		b.done++
	}
	o.emit(ctx, b, observer.ItemProcessed, func(ev *observer.ProgressEvent) {
		ev.Item = item
		ev.Metadata = meta
	})
}

func (o *Orchestrator) finishPhase(ctx context.Context, b *batch, started time.Time) error {
	if b.done < b.total {
		return fmt.Errorf("%w: %s reached %d of %d", ErrPhaseIncomplete, b.phase, b.done, b.total)
	}
	o.emit(ctx, b, observer.PhaseCompleted, func(ev *observer.ProgressEvent) {
		ev.Elapsed = o.now().Sub(started)
	})
	return nil
}

// Run executes one batch. source may be nil when the images are already in
// the directory. Failures after the batch started are reported to the
// observer as well as returned.
func (o *Orchestrator) Run(ctx context.Context, source storage.Source) (*models.BatchResult, error) {
	b := &batch{id: uuid.New().String(), started: o.now()}
	if o.engines != nil {
		o.engines.BeginBatch()
	}

	present, pending, err := o.discover(ctx, source)
	if err != nil {
		return nil, err
	}
	b.total = len(present) + len(pending)
	o.emit(ctx, b, observer.BatchStarted, nil)

	result, err := o.run(ctx, b, source, present, pending)
	if err != nil {
		o.emit(ctx, b, observer.BatchFailed, func(ev *observer.ProgressEvent) {
			ev.ErrorMessage = err.Error()
		})
		return nil, err
	}

	b.phase = observer.PhaseDone
	o.emit(ctx, b, observer.BatchCompleted, func(ev *observer.ProgressEvent) {
		ev.Elapsed = o.now().Sub(b.started)
	})

	if o.opts.ClearImageDir {
		removed, err := o.images.Clear(ctx)
		if err != nil {
			logger.WithError(err).WithField("dir", o.images.Dir()).Warn("Image directory only partly cleared")
		}
		logger.WithField("removed", removed).Info("Image directory cleared")
	}
	return result, nil
}

// discover splits the batch into images already in the directory and
// images the source still has to deliver.
func (o *Orchestrator) discover(ctx context.Context, source storage.Source) (present, pending []string, err error) {
	present, err = o.images.List(ctx)
	if err != nil {
		return nil, nil, err
	}
	if source == nil {
		return present, nil, nil
	}

	listed, err := source.List(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("list %s: %w", source.Name(), err)
	}
	seen := make(map[string]bool, len(listed))
	for _, n := range listed {
		if !seen[n] {
			seen[n] = true
			pending = append(pending, n)
		}
	}
	// files the source delivers again are counted once, as copies
	kept := make([]string, 0, len(present))
	for _, n := range present {
		if !seen[n] {
			kept = append(kept, n)
		}
	}
	return kept, pending, nil
}

func (o *Orchestrator) run(ctx context.Context, b *batch, source storage.Source, present, pending []string) (*models.BatchResult, error) {
	if err := o.copyPhase(ctx, b, source, present, pending); err != nil {
		return nil, err
	}

	classification, err := o.classifyPhase(ctx, b)
	if err != nil {
		return nil, err
	}

	results, err := o.recognizePhase(ctx, b, classification)
	if err != nil {
		return nil, err
	}

	return &models.BatchResult{
		ID:             b.id,
		StartedAt:      b.started,
		FinishedAt:     o.now(),
		Total:          b.total,
		Classification: classification,
		Results:        results,
	}, nil
}

func (o *Orchestrator) copyPhase(ctx context.Context, b *batch, source storage.Source, present, pending []string) error {
	started := o.startPhase(ctx, b, observer.PhaseCopying)
	for _, name := range present {
		o.advance(ctx, b, name, map[string]interface{}{"copied": false})
	}

	if len(pending) > 0 {
		pool := NewWorkerPool(o.opts.CopyWorkers)
		pool.Start()
		for _, name := range pending {
			name := name
			pool.Submit(func() {
				if err := source.Copy(ctx, name, o.images.Dir()); err != nil {
					logger.WithError(err).WithFields(logrus.Fields{
						"image":  name,
						"source": source.Name(),
					}).Error("Copy failed")
					return
				}
				o.advance(ctx, b, name, map[string]interface{}{"copied": true})
			})
		}
		pool.Wait()
		pool.Close()
	}
	return o.finishPhase(ctx, b, started)
}

func (o *Orchestrator) classifyPhase(ctx context.Context, b *batch) (*models.Classification, error) {
	started := o.startPhase(ctx, b, observer.PhaseClassifying)

	predicates := o.loader.LoadAll(o.store.Load(ctx))
	c := classifier.New(o.images)
	classification, err := c.Classify(ctx, predicates, func(name, alias string) {
		o.advance(ctx, b, name, map[string]interface{}{"category": alias})
	})
	if err != nil {
		return nil, err
	}
	if err := o.finishPhase(ctx, b, started); err != nil {
		return nil, err
	}
	return classification, nil
}

func (o *Orchestrator) recognizePhase(ctx context.Context, b *batch, classification *models.Classification) ([]models.ImageResult, error) {
	started := o.startPhase(ctx, b, observer.PhaseRecognizing)

	reg := o.store.Load(ctx)
	global := reg.Global
	resolved := make(map[string]*models.Category)

	results := make([]models.ImageResult, 0, classification.Len())
	for _, entry := range classification.Entries() {
		res := o.recognizeOne(ctx, reg, global, resolved, entry)
		results = append(results, res)
		o.advance(ctx, b, entry.ImageName, map[string]interface{}{"category": entry.Category})
	}

	if err := o.finishPhase(ctx, b, started); err != nil {
		return nil, err
	}
	return results, nil
}

func (o *Orchestrator) recognizeOne(ctx context.Context, reg *models.Registry, global models.Global, resolved map[string]*models.Category, entry models.ClassifiedImage) models.ImageResult {
	res := models.ImageResult{
		ImageName: entry.ImageName,
		Category:  entry.Category,
		Regions:   []models.RegionResult{},
	}
	if entry.Category == models.CategoryUnreadable || entry.Category == models.CategoryUnknown {
		return res
	}

	category, ok := resolved[entry.Category]
	if !ok {
		found, exists := reg.Category(entry.Category)
		if !exists {
			logger.WithFields(logrus.Fields{
				"alias": entry.Category,
				"image": entry.ImageName,
			}).Warn("Category vanished between classification and recognition")
			resolved[entry.Category] = nil
			res.Error = "category no longer exists"
			return res
		}
		category = o.withOverride(ctx, found)
		resolved[entry.Category] = category
	}
	if category == nil {
		res.Error = "category no longer exists"
		return res
	}

	img, err := o.images.Open(ctx, entry.ImageName)
	if err != nil {
		logger.WithError(err).WithFields(logrus.Fields{
			"alias": entry.Category,
			"image": entry.ImageName,
		}).Warn("Image unreadable during recognition")
		res.Error = err.Error()
		return res
	}
	return o.extractor.Extract(ctx, entry.ImageName, category, global, img)
}

// withOverride asks the collector once per category and batch.
func (o *Orchestrator) withOverride(ctx context.Context, category *models.Category) *models.Category {
	if o.collector == nil || category.OCROverride != nil || !category.HasNewType() {
		return category
	}

	log := logger.WithField("alias", category.Alias)
	settings, err := o.collector.CollectOverride(ctx, category)
	if err != nil {
		log.WithError(err).Warn("Override collection failed")
		return category
	}
	if settings == nil {
		return category
	}

	if !o.store.SaveOverride(ctx, category.Alias, *settings) {
		log.Warn("Override not persisted, using it for this batch only")
	}
	withOverride := *category
	withOverride.OCROverride = settings
	return &withOverride
}
