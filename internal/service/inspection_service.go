package service

import (
	"context"
	"fmt"
	"image"
	"io"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"go-scan-sorter/internal/analyzer"
	apperrors "go-scan-sorter/internal/errors"
	"go-scan-sorter/internal/logger"
	"go-scan-sorter/internal/repository"
	"go-scan-sorter/internal/storage"
	"go-scan-sorter/pkg/models"
	"go-scan-sorter/pkg/validation"

	"github.com/sirupsen/logrus"
)

// maxInspectBytes bounds a downloaded image
const maxInspectBytes = 50 << 20

// InspectionService checks whether an image is fit for classification and OCR
type InspectionService interface {
	Inspect(ctx context.Context, req models.InspectRequest) (*models.InspectResponse, error)
}

// inspectionService implements InspectionService
type inspectionService struct {
	cv        *analyzer.ImageToolkit
	images    repository.ImageRepository
	client    *storage.RetryClient
	validator *validation.URLValidator
}

// NewInspectionService creates an inspection service. Images named in a
// request are read from images; URLs are fetched through client once the
// validator accepts them.
func NewInspectionService(
	cv *analyzer.ImageToolkit,
	images repository.ImageRepository,
	client *storage.RetryClient,
	validator *validation.URLValidator,
) InspectionService {
	return &inspectionService{
		cv:        cv,
		images:    images,
		client:    client,
		validator: validator,
	}
}

func (s *inspectionService) Inspect(ctx context.Context, req models.InspectRequest) (*models.InspectResponse, error) {
	start := time.Now()

	mode := strings.ToLower(strings.TrimSpace(req.Mode))
	if mode == "" {
		mode = models.InspectModeDefault
	}
	opts, err := inspectOptions(mode, req.Thresholds)
	if err != nil {
		return nil, err
	}

	img, source, err := s.load(ctx, req)
	if err != nil {
		return nil, err
	}

	in := s.cv.WithInspectOptions(opts).Inspect(analyzer.NewFrame(img))
	resp := &models.InspectResponse{
		Source: source,
		Mode:   mode,
		Width:  in.Width,
		Height: in.Height,
		Metrics: models.InspectMetrics{
			Sharpness:     in.Sharpness,
			Brightness:    in.Brightness,
			Luminance:     in.Luminance,
			Saturation:    in.Saturation,
			Skew:          in.Skew,
			DocumentEdges: in.DocumentEdges,
			QRCode:        in.QRCode,
		},
		Issues:            append([]string{}, in.Issues...),
		Passed:            in.OK(),
		Thresholds:        appliedThresholds(opts),
		ProcessingTimeSec: time.Since(start).Seconds(),
	}

	logger.WithFields(logrus.Fields{
		"source": source,
		"mode":   mode,
		"issues": len(resp.Issues),
	}).Debug("Image inspected")
	return resp, nil
}

// load resolves exactly one of req.URL and req.Image.
func (s *inspectionService) load(ctx context.Context, req models.InspectRequest) (image.Image, string, error) {
	rawURL := strings.TrimSpace(req.URL)
	name := strings.TrimSpace(req.Image)

	switch {
	case rawURL != "" && name != "":
		return nil, "", apperrors.NewValidationError("give either url or image, not both", nil)
	case name != "":
		if filepath.Base(name) != name || name == "." || name == ".." {
			return nil, "", apperrors.NewValidationError("image must be a file name inside the image directory", nil)
		}
		if !repository.IsImageFile(name) {
			return nil, "", apperrors.NewValidationError(fmt.Sprintf("%s is not a recognized image file", name), nil)
		}
		img, err := s.images.Open(ctx, name)
		if err != nil {
			return nil, "", err
		}
		return img, name, nil
	case rawURL != "":
		img, err := s.fetch(ctx, rawURL)
		if err != nil {
			return nil, "", err
		}
		return img, rawURL, nil
	default:
		return nil, "", apperrors.NewValidationError("url or image is required", nil)
	}
}

func (s *inspectionService) fetch(ctx context.Context, rawURL string) (image.Image, error) {
	u, err := s.validator.ValidateImageURL(rawURL)
	if err != nil {
		return nil, err
	}

	resp, err := s.client.Do(ctx, func(ctx context.Context) (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	})
	if err != nil {
		return nil, apperrors.NewNetworkError("failed to fetch image", err)
	}
	defer resp.Body.Close()

	if resp.ContentLength > maxInspectBytes {
		return nil, apperrors.NewValidationError(fmt.Sprintf("image exceeds %d bytes", maxInspectBytes), nil)
	}
	return repository.DecodeImage(io.LimitReader(resp.Body, maxInspectBytes), u.Path)
}

// inspectOptions picks the mode's thresholds and applies any overrides.
func inspectOptions(mode string, t *models.InspectThresholds) (analyzer.InspectOptions, error) {
	var opts analyzer.InspectOptions
	switch mode {
	case models.InspectModeDefault:
		opts = analyzer.DefaultInspectOptions()
	case models.InspectModeOCR:
		opts = analyzer.OCRInspectOptions()
	default:
		return opts, apperrors.NewValidationError(fmt.Sprintf("unknown inspect mode %q", mode), nil)
	}
	if t == nil {
		return opts, nil
	}

	if t.Blur != nil {
		opts.BlurThreshold = *t.Blur
	}
	if t.Overexposure != nil {
		opts.OverexposureThreshold = *t.Overexposure
	}
	if t.Oversaturation != nil {
		opts.OversaturationThreshold = *t.Oversaturation
	}
	if t.MaxSkew != nil {
		opts.MaxSkewDegrees = *t.MaxSkew
	}
	if t.MinWidth != nil {
		opts.MinWidth = *t.MinWidth
	}
	if t.MinHeight != nil {
		opts.MinHeight = *t.MinHeight
	}
	if opts.MinWidth < 0 || opts.MinHeight < 0 || opts.MaxSkewDegrees < 0 {
		return opts, apperrors.NewValidationError("thresholds must not be negative", nil)
	}
	return opts, nil
}

func appliedThresholds(o analyzer.InspectOptions) models.AppliedThresholds {
	return models.AppliedThresholds{
		Blur:           o.BlurThreshold,
		Overexposure:   o.OverexposureThreshold,
		Oversaturation: o.OversaturationThreshold,
		WhiteBalance:   o.WhiteBalanceTolerance,
		MinBrightness:  o.MinBrightness,
		MaxBrightness:  o.MaxBrightness,
		MaxSkew:        o.MaxSkewDegrees,
		MinWidth:       o.MinWidth,
		MinHeight:      o.MinHeight,
	}
}
