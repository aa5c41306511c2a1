package report

import (
	"fmt"
	"strings"

	"go-scan-sorter/pkg/models"
)

// Assemble groups the extracted text by category for rendering. Groups
// follow the first-seen category order of the classification and rows keep
// classification order. Images with results but no classification land
// under "unknown".
func Assemble(results []models.ImageResult, classification *models.Classification) models.GroupedReport {
	byName := make(map[string]models.ImageResult, len(results))
	for _, r := range results {
		byName[r.ImageName] = r
	}

	var order []models.ClassifiedImage
	listed := make(map[string]bool)
	if classification != nil {
		for _, e := range classification.Entries() {
			if _, ok := byName[e.ImageName]; !ok {
				continue
			}
			order = append(order, e)
			listed[e.ImageName] = true
		}
	}
	for _, r := range results {
		if !listed[r.ImageName] {
			order = append(order, models.ClassifiedImage{ImageName: r.ImageName, Category: models.CategoryUnknown})
			listed[r.ImageName] = true
		}
	}

	var report models.GroupedReport
	index := make(map[string]int)
	for _, e := range order {
		i, ok := index[e.Category]
		if !ok {
			i = len(report.Groups)
			index[e.Category] = i
			report.Groups = append(report.Groups, models.ReportGroup{Category: e.Category})
		}
		report.Groups[i].Rows = append(report.Groups[i].Rows, buildRow(byName[e.ImageName]))
	}
	return report
}

func buildRow(r models.ImageResult) models.ReportRow {
	row := models.ReportRow{ImageName: r.ImageName}
	var buckets [models.BasicTypeCount][]string
	for _, region := range r.Regions {
		if region.RegionType != nil && *region.RegionType >= 1 && *region.RegionType <= models.BasicTypeCount {
			buckets[*region.RegionType-1] = append(buckets[*region.RegionType-1], region.Text)
			continue
		}
		row.Others = append(row.Others, region)
	}
	for i, texts := range buckets {
		row.Buckets[i] = formatBucket(texts)
	}
	return row
}

func formatBucket(texts []string) string {
	if len(texts) == 0 {
		return ""
	}
	parts := make([]string, len(texts))
	for i, t := range texts {
		parts[i] = fmt.Sprintf("【%d】\n%s", i+1, t)
	}
	return strings.Join(parts, "\n")
}
