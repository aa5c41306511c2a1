package scripting

import (
	"errors"
	"image/color"
	"testing"
	"time"

	"go-scan-sorter/internal/analyzer"
	apperrors "go-scan-sorter/internal/errors"
	"go-scan-sorter/pkg/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func solidFrame(w, h int, c color.RGBA) *analyzer.Frame {
	return analyzer.BlankFrame(w, h, c)
}

func TestCompile_ValidJudge(t *testing.T) {
	l := NewLoader()

	sources := map[string]string{
		"declaration": `function judge(image) { return true; }`,
		"expression":  `var judge = function (image) { return image.width() > 10; };`,
		"arrow":       `var judge = (image) => cv.brightness(image) > 100;`,
		"helpers":     "function bright(i) { return np.mean(np.pixels(i, 'gray')) > 100; }\nfunction judge(i) { return bright(i); }",
	}
	for name, src := range sources {
		t.Run(name, func(t *testing.T) {
			p, err := l.Compile(name, src)
			require.NoError(t, err)
			assert.Equal(t, name, p.Alias())

			ok, err := p.Judge(solidFrame(20, 20, color.RGBA{255, 255, 255, 255}))
			require.NoError(t, err)
			assert.True(t, ok)
		})
	}
}

func TestCompile_MissingEntryPoint(t *testing.T) {
	l := NewLoader()

	sources := []string{
		``,
		`function Judge(image) { return true; }`,
		`function classify(image) { return true; }`,
		`var judge = 42;`,
	}
	for _, src := range sources {
		_, err := l.Compile("a", src)
		var le *LoadError
		require.True(t, errors.As(err, &le), "source %q", src)
		assert.Equal(t, MissingEntryPoint, le.Kind)
		assert.Equal(t, "a", le.Alias)
	}
}

func TestCompile_CompileFailure(t *testing.T) {
	l := NewLoader()

	sources := []string{
		`function judge(image) { return true;`,
		`throw new Error("boom"); function judge() { return true; }`,
		`require("fs"); function judge() { return true; }`,
	}
	for _, src := range sources {
		_, err := l.Compile("bad", src)
		var le *LoadError
		require.True(t, errors.As(err, &le), "source %q", src)
		assert.Equal(t, CompileFailure, le.Kind)
		assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeLoad))
	}
}

func TestCompile_IsolatedRuntimes(t *testing.T) {
	l := NewLoader()

	first, err := l.Compile("first", `var counter = 0; function judge() { counter++; return counter > 1; }`)
	require.NoError(t, err)

	second, err := l.Compile("second", `function judge() { return typeof counter === "undefined"; }`)
	require.NoError(t, err)
	ok, err := second.Judge(solidFrame(1, 1, color.RGBA{}))
	require.NoError(t, err)
	assert.True(t, ok, "globals must not leak between compiled sources")

	ok, _ = first.Judge(solidFrame(1, 1, color.RGBA{}))
	assert.False(t, ok)
	ok, _ = first.Judge(solidFrame(1, 1, color.RGBA{}))
	assert.True(t, ok)
}

func TestJudge_ExceptionIsPredicateError(t *testing.T) {
	p, err := NewLoader().Compile("a", `function judge(image) { return image.nothing.here; }`)
	require.NoError(t, err)

	ok, err := p.Judge(solidFrame(2, 2, color.RGBA{}))
	assert.False(t, ok)
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypePredicate))
}

func TestJudge_Timeout(t *testing.T) {
	l := NewLoader(WithTimeout(50 * time.Millisecond))
	p, err := l.Compile("loop", `function judge() { for (;;) {} }`)
	require.NoError(t, err)

	ok, err := p.Judge(solidFrame(1, 1, color.RGBA{}))
	assert.False(t, ok)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypePredicate))

	// the runtime stays usable after an interrupt
	_, err = l.Compile("after", `function judge() { return true; }`)
	assert.NoError(t, err)
}

func TestLoadAll_SkipsFailuresAndKeepsOrder(t *testing.T) {
	reg := models.NewRegistry()
	reg.Add(&models.Category{Alias: "z", ClassificationSource: `function judge() { return false; }`})
	reg.Add(&models.Category{Alias: "broken", ClassificationSource: `function judge( {`})
	reg.Add(&models.Category{Alias: "nojudge", ClassificationSource: `function other() {}`})
	reg.Add(&models.Category{Alias: "a", ClassificationSource: `function judge() { return true; }`})

	set := NewLoader().LoadAll(reg)
	assert.Equal(t, []string{"z", "a"}, set.Aliases())
	assert.Equal(t, []string{"broken", "nojudge"}, set.Skipped())
	require.Len(t, set.Ordered(), 2)
	assert.Equal(t, "z", set.Ordered()[0].Alias())

	_, ok := set.Get("broken")
	assert.False(t, ok)
}

func TestJudge_InspectFromScript(t *testing.T) {
	p, err := NewLoader().Compile("sharp", `function judge(image) {
		var q = cv.inspect(image);
		return !q.blurry && q.width === 30;
	}`)
	require.NoError(t, err)

	ok, err := p.Judge(solidFrame(30, 30, color.RGBA{128, 128, 128, 255}))
	require.NoError(t, err)
	assert.False(t, ok, "a flat frame is blurry")

	edged := solidFrame(30, 30, color.RGBA{0, 0, 0, 255})
	for y := 10; y < 20; y++ {
		for x := 10; x < 20; x++ {
			edged.Set(x, y, 255, 255, 255)
		}
	}
	ok, err = p.Judge(edged)
	require.NoError(t, err)
	assert.True(t, ok)
}
