package ocr

import (
	"context"
	"fmt"
	"image"
	"strings"

	"github.com/otiai10/gosseract/v2"
)

// DefaultLanguages is the tesseract language set used when none is configured.
const DefaultLanguages = "chi_sim+eng"

// TesseractEngine runs the local tesseract library through gosseract.
// A client is created per call since gosseract clients are not safe for
// concurrent use.
type TesseractEngine struct {
	clientFactory func() *gosseract.Client
	languages     []string
}

// NewTesseractEngine accepts languages in tesseract's "a+b" notation.
func NewTesseractEngine(languages string) *TesseractEngine {
	return &TesseractEngine{
		clientFactory: gosseract.NewClient,
		languages:     ParseLanguages(languages),
	}
}

// ParseLanguages splits "chi_sim+eng" style lists, falling back to the default set.
func ParseLanguages(languages string) []string {
	var out []string
	for _, l := range strings.FieldsFunc(languages, func(r rune) bool { return r == '+' || r == ',' }) {
		if l = strings.TrimSpace(l); l != "" {
			out = append(out, l)
		}
	}
	if len(out) == 0 {
		return strings.Split(DefaultLanguages, "+")
	}
	return out
}

func (e *TesseractEngine) Name() string { return DefaultEngineName }

func (e *TesseractEngine) Languages() []string {
	return append([]string(nil), e.languages...)
}

func (e *TesseractEngine) Recognize(ctx context.Context, img image.Image) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	data, err := encodePNG(img)
	if err != nil {
		return "", err
	}

	c := e.clientFactory()
	defer c.Close()

	if err := c.SetImageFromBytes(data); err != nil {
		return "", fmt.Errorf("set image: %w", err)
	}
	if err := c.SetLanguage(e.languages...); err != nil {
		return "", fmt.Errorf("set languages: %w", err)
	}
	text, err := c.Text()
	if err != nil {
		return "", fmt.Errorf("recognize text: %w", err)
	}
	return strings.TrimSpace(text), nil
}
