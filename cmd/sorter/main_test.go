package main

import (
	"bytes"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func TestCommands(t *testing.T) {
	root := t.TempDir()
	imageDir := filepath.Join(root, "images")
	require.NoError(t, os.Mkdir(imageDir, 0o755))
	t.Setenv("REGISTRY_PATH", filepath.Join(root, "categories.yaml"))
	t.Setenv("IMAGE_DIR", imageDir)
	t.Setenv("REPORT_DIR", filepath.Join(root, "results"))
	t.Setenv("LOG_LEVEL", "error")

	judge := filepath.Join(root, "judge.js")
	require.NoError(t, os.WriteFile(judge, []byte("function judge(img) { return true; }"), 0o600))
	boxes := filepath.Join(root, "boxes.yaml")
	require.NoError(t, os.WriteFile(boxes, []byte("- {pt1: [0, 0], pt2: [4, 4], region_type: 1}\n- {pt1: [4, 4], pt2: [8, 8], region_type: 5}\n"), 0o600))
	post := filepath.Join(root, "post.js")
	require.NoError(t, os.WriteFile(post, []byte("text = text.trim();"), 0o600))

	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "sorter dev")

	out, err = execute(t, "categories")
	require.NoError(t, err)
	assert.Contains(t, out, "No categories defined.")

	out, err = execute(t, "edit", "receipt", "--judge", judge, "--boxes", boxes, "--override-engine", "cloud", "--width", "800", "--height", "600")
	require.NoError(t, err)
	assert.Contains(t, out, "Saved receipt (2 boxes, 0 named regions)")

	_, err = execute(t, "edit", "receipt", "--judge", judge)
	assert.ErrorContains(t, err, "--overwrite")

	out, err = execute(t, "categories")
	require.NoError(t, err)
	assert.Contains(t, out, "receipt")

	out, err = execute(t, "categories", "show", "receipt")
	require.NoError(t, err)
	assert.Contains(t, out, "ocr_engine: cloud")

	_, err = execute(t, "basic-types", "set", "2", "--engine", "cloud", "--post", post)
	require.NoError(t, err)
	out, err = execute(t, "basic-types")
	require.NoError(t, err)
	assert.Contains(t, out, "text = text.trim();")

	out, err = execute(t, "categories", "check")
	require.NoError(t, err)
	assert.Contains(t, out, "Registry OK")

	_, err = execute(t, "categories", "remove", "receipt")
	assert.ErrorContains(t, err, "--yes")

	writeGrayPNG(t, filepath.Join(imageDir, "scan.png"), 12, 9)
	out, err = execute(t, "inspect", "scan.png")
	require.NoError(t, err)
	assert.Contains(t, out, "scan.png (12x9, default mode)")
	assert.Contains(t, out, "issues: blurry, low_resolution")

	_, err = execute(t, "inspect", "../scan.png")
	assert.Error(t, err)

	_, err = execute(t, "categories", "remove", "receipt", "--yes")
	require.NoError(t, err)

	_, err = execute(t, "run", "--keep-images", "--no-report", "-q")
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(imageDir, "scan.png"))

	out, err = execute(t, "run", "--keep-images=false", "--no-report", "-q")
	require.NoError(t, err)
	assert.Contains(t, out, "1 images")
	assert.NoFileExists(t, filepath.Join(imageDir, "scan.png"), "the image directory is cleared by default")
}

func writeGrayPNG(t *testing.T, path string, w, h int) {
	t.Helper()
	img := image.NewGray(image.Rect(0, 0, w, h))
	for i := range img.Pix {
		img.Pix[i] = 128
	}
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, png.Encode(f, img))
}
