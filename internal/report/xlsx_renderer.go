package report

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode"

	"go-scan-sorter/pkg/models"

	"github.com/xuri/excelize/v2"
)

const (
	resultSheet = "Results"
	regionSheet = "Other regions"
	minColWidth = 10
	colWidthPad = 2
)

var (
	resultHeaders = []string{"Category", "Image", "Region 1", "Region 2", "Region 3", "Region 4"}
	regionHeaders = []string{"Category", "Image", "Region", "Type", "Coordinates", "Text"}
)

// XLSXRenderer writes a grouped report as a spreadsheet: a header row, one
// merged banner row per category and one row per image. A second sheet lists
// the regions outside the four basic buckets.
type XLSXRenderer struct {
	now func() time.Time
}

func NewXLSXRenderer() *XLSXRenderer {
	return &XLSXRenderer{now: time.Now}
}

// FileName is the timestamped report name used by Render.
func (r *XLSXRenderer) FileName() string {
	return fmt.Sprintf("ocr_results_%s.xlsx", r.now().Format("20060102_150405"))
}

// Render writes the workbook into dir and returns its path.
func (r *XLSXRenderer) Render(report models.GroupedReport, dir string) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create report dir: %w", err)
	}
	f, err := r.build(report)
	if err != nil {
		return "", err
	}
	defer f.Close()

	path := filepath.Join(dir, r.FileName())
	if err := f.SaveAs(path); err != nil {
		return "", fmt.Errorf("save report: %w", err)
	}
	return path, nil
}

// WriteTo streams the workbook to w.
func (r *XLSXRenderer) WriteTo(report models.GroupedReport, w io.Writer) error {
	f, err := r.build(report)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = f.WriteTo(w)
	return err
}

type sheetWriter struct {
	f      *excelize.File
	sheet  string
	row    int
	widths []int
}

func (s *sheetWriter) cell(col, row int) string {
	name, _ := excelize.CoordinatesToCellName(col, row)
	return name
}

func (s *sheetWriter) appendRow(values []string) error {
	s.row++
	row := make([]interface{}, len(values))
	for i, v := range values {
		row[i] = v
		if w := displayWidth(v); w > s.widths[i] {
			s.widths[i] = w
		}
	}
	return s.f.SetSheetRow(s.sheet, s.cell(1, s.row), &row)
}

func (s *sheetWriter) styleRow(style int) error {
	return s.f.SetCellStyle(s.sheet, s.cell(1, s.row), s.cell(len(s.widths), s.row), style)
}

func (s *sheetWriter) fitColumns() error {
	for i, w := range s.widths {
		col, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			return err
		}
		if err := s.f.SetColWidth(s.sheet, col, col, float64(w+colWidthPad)); err != nil {
			return err
		}
	}
	return nil
}

func newSheetWriter(f *excelize.File, sheet string, cols int) *sheetWriter {
	widths := make([]int, cols)
	for i := range widths {
		widths[i] = minColWidth
	}
	return &sheetWriter{f: f, sheet: sheet, widths: widths}
}

type styles struct {
	header, banner, data int
}

func newStyles(f *excelize.File) (styles, error) {
	var s styles
	var err error
	if s.header, err = f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center", WrapText: true},
	}); err != nil {
		return s, err
	}
	if s.banner, err = f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 13},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	}); err != nil {
		return s, err
	}
	s.data, err = f.NewStyle(&excelize.Style{
		Alignment: &excelize.Alignment{Vertical: "top", WrapText: true},
	})
	return s, err
}

func (r *XLSXRenderer) build(report models.GroupedReport) (*excelize.File, error) {
	f := excelize.NewFile()
	ok := false
	defer func() {
		if !ok {
			f.Close()
		}
	}()

	st, err := newStyles(f)
	if err != nil {
		return nil, fmt.Errorf("create styles: %w", err)
	}
	if err := f.SetSheetName("Sheet1", resultSheet); err != nil {
		return nil, err
	}
	if err := writeResults(f, st, report); err != nil {
		return nil, fmt.Errorf("write %s sheet: %w", resultSheet, err)
	}
	if _, err := f.NewSheet(regionSheet); err != nil {
		return nil, err
	}
	if err := writeRegions(f, st, report); err != nil {
		return nil, fmt.Errorf("write %s sheet: %w", regionSheet, err)
	}

	ok = true
	return f, nil
}

func writeResults(f *excelize.File, st styles, report models.GroupedReport) error {
	w := newSheetWriter(f, resultSheet, len(resultHeaders))
	if err := w.appendRow(resultHeaders); err != nil {
		return err
	}
	if err := w.styleRow(st.header); err != nil {
		return err
	}

	for _, group := range report.Groups {
		banner := make([]string, len(resultHeaders))
		banner[0] = group.Category
		if err := w.appendRow(banner); err != nil {
			return err
		}
		if err := f.MergeCell(resultSheet, w.cell(1, w.row), w.cell(len(resultHeaders), w.row)); err != nil {
			return err
		}
		if err := w.styleRow(st.banner); err != nil {
			return err
		}

		for _, row := range group.Rows {
			values := append([]string{group.Category, row.ImageName}, row.Buckets[:]...)
			if err := w.appendRow(values); err != nil {
				return err
			}
			if err := w.styleRow(st.data); err != nil {
				return err
			}
		}
	}
	return w.fitColumns()
}

func writeRegions(f *excelize.File, st styles, report models.GroupedReport) error {
	w := newSheetWriter(f, regionSheet, len(regionHeaders))
	if err := w.appendRow(regionHeaders); err != nil {
		return err
	}
	if err := w.styleRow(st.header); err != nil {
		return err
	}

	for _, group := range report.Groups {
		for _, row := range group.Rows {
			for _, region := range row.Others {
				typ, coords := "", ""
				if region.RegionType != nil {
					typ = fmt.Sprint(*region.RegionType)
				}
				if region.Coords != nil {
					coords = region.Coords.String()
				}
				if err := w.appendRow([]string{group.Category, row.ImageName, region.RegionName, typ, coords, region.Text}); err != nil {
					return err
				}
				if err := w.styleRow(st.data); err != nil {
					return err
				}
			}
		}
	}
	return w.fitColumns()
}

// displayWidth is the longest line of s, counting CJK characters twice.
func displayWidth(s string) int {
	longest := 0
	for _, line := range strings.Split(s, "\n") {
		n := 0
		for _, r := range line {
			if unicode.Is(unicode.Han, r) {
				n += 2
			} else {
				n++
			}
		}
		longest = max(longest, n)
	}
	return longest
}
