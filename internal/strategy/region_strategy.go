package strategy

import (
	"image"

	"go-scan-sorter/internal/logger"
	"go-scan-sorter/pkg/models"
)

// RegionJob is one region to read from an image.
// Coords is nil when the region was never drawn.
type RegionJob struct {
	Name     string
	Type     *int
	Coords   *models.Rect
	Settings models.EngineSettings
}

// RegionStrategy picks the regions of a category it is responsible for
type RegionStrategy interface {
	Plan(category *models.Category, global models.Global, bounds image.Rectangle) []RegionJob
	GetStrategyName() string
}

func intPtr(v int) *int { return &v }

// clip normalizes r and clips it to bounds. A rectangle entirely outside
// bounds comes back normalized but unclipped; its crop is empty.
func clip(r models.Rect, bounds image.Rectangle) *models.Rect {
	n := r.Normalize()
	c := n.Bounds().Intersect(bounds)
	if c.Empty() {
		return &n
	}
	return &models.Rect{X1: c.Min.X, Y1: c.Min.Y, X2: c.Max.X, Y2: c.Max.Y}
}

// BoxStrategy reads annotated boxes of the four basic types with the
// shared global settings.
type BoxStrategy struct{}

func NewBoxStrategy() RegionStrategy {
	return &BoxStrategy{}
}

func (s *BoxStrategy) Plan(category *models.Category, global models.Global, bounds image.Rectangle) []RegionJob {
	var jobs []RegionJob
	for _, box := range category.Regions {
		settings, ok := global.BasicType(box.RegionType)
		if !ok {
			if box.RegionType != models.NewTypeRegion {
				logger.WithField("alias", category.Alias).
					WithField("region_type", box.RegionType).
					Debug("Ignoring box with unsupported region type")
			}
			continue
		}
		jobs = append(jobs, RegionJob{
			Name:     models.BasicTypeKey(box.RegionType),
			Type:     intPtr(box.RegionType),
			Coords:   clip(box.Rect(), bounds),
			Settings: settings,
		})
	}
	return jobs
}

func (s *BoxStrategy) GetStrategyName() string {
	return "box_regions"
}

// SchemeStrategy reads the category's named scheme regions.
type SchemeStrategy struct{}

func NewSchemeStrategy() RegionStrategy {
	return &SchemeStrategy{}
}

func (s *SchemeStrategy) Plan(category *models.Category, global models.Global, bounds image.Rectangle) []RegionJob {
	var jobs []RegionJob
	for _, region := range category.Scheme {
		if models.IsBasicTypeKey(region.Name) {
			continue
		}
		job := RegionJob{Name: region.Name, Settings: region.EngineSettings}
		if region.Coords != nil {
			job.Coords = clip(*region.Coords, bounds)
		}
		jobs = append(jobs, job)
	}
	return jobs
}

func (s *SchemeStrategy) GetStrategyName() string {
	return "scheme_regions"
}

// NewTypeStrategy reads boxes flagged as a new type, but only when the
// category carries an override to read them with.
type NewTypeStrategy struct{}

func NewNewTypeStrategy() RegionStrategy {
	return &NewTypeStrategy{}
}

func (s *NewTypeStrategy) Plan(category *models.Category, global models.Global, bounds image.Rectangle) []RegionJob {
	if category.OCROverride == nil {
		return nil
	}
	var jobs []RegionJob
	for _, box := range category.Regions {
		if box.RegionType != models.NewTypeRegion {
			continue
		}
		jobs = append(jobs, RegionJob{
			Name:     models.NewTypeRegionName,
			Type:     intPtr(models.NewTypeRegion),
			Coords:   clip(box.Rect(), bounds),
			Settings: *category.OCROverride,
		})
	}
	return jobs
}

func (s *NewTypeStrategy) GetStrategyName() string {
	return "new_type_regions"
}

// PlanContext runs a fixed sequence of strategies.
type PlanContext struct {
	strategies []RegionStrategy
}

// NewPlanContext creates a plan context; with no strategies it uses the
// box, scheme and new-type strategies in that order.
func NewPlanContext(strategies ...RegionStrategy) *PlanContext {
	if len(strategies) == 0 {
		strategies = []RegionStrategy{NewBoxStrategy(), NewSchemeStrategy(), NewNewTypeStrategy()}
	}
	return &PlanContext{strategies: strategies}
}

// Plan concatenates every strategy's jobs in strategy order.
func (c *PlanContext) Plan(category *models.Category, global models.Global, bounds image.Rectangle) []RegionJob {
	var jobs []RegionJob
	for _, s := range c.strategies {
		jobs = append(jobs, s.Plan(category, global, bounds)...)
	}
	return jobs
}

// GetStrategyNames lists the strategies in run order.
func (c *PlanContext) GetStrategyNames() []string {
	names := make([]string, len(c.strategies))
	for i, s := range c.strategies {
		names[i] = s.GetStrategyName()
	}
	return names
}
