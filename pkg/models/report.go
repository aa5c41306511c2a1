package models

// ReportRow holds one image's text, bucketed by basic region type.
// Buckets[i] collects region type i+1; anything else lands in Others.
type ReportRow struct {
	ImageName string                `json:"image_name"`
	Buckets   [BasicTypeCount]string `json:"buckets"`
	Others    []RegionResult        `json:"others,omitempty"`
}

// ReportGroup is every row classified under one category.
type ReportGroup struct {
	Category string      `json:"category"`
	Rows     []ReportRow `json:"rows"`
}

// GroupedReport lists groups in first-seen category order.
type GroupedReport struct {
	Groups []ReportGroup `json:"groups"`
}

// Categories returns the group order.
func (g GroupedReport) Categories() []string {
	out := make([]string, 0, len(g.Groups))
	for _, grp := range g.Groups {
		out = append(out, grp.Category)
	}
	return out
}

// RowCount is the number of image rows across all groups.
func (g GroupedReport) RowCount() int {
	n := 0
	for _, grp := range g.Groups {
		n += len(grp.Rows)
	}
	return n
}
