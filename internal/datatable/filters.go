package datatable

import "strconv"

// Metric ids used as compact column names in archived records.
const (
	IndexNbUniqVisitors    = 1
	IndexNbVisits          = 2
	IndexNbActions         = 3
	IndexMaxActions        = 4
	IndexSumVisitLength    = 5
	IndexBounceCount       = 6
	IndexNbVisitsConverted = 7
)

// MetricNames maps metric ids to their expanded column names.
var MetricNames = map[int]string{
	IndexNbUniqVisitors:    "nb_uniq_visitors",
	IndexNbVisits:          "nb_visits",
	IndexNbActions:         "nb_actions",
	IndexMaxActions:        "max_actions",
	IndexSumVisitLength:    "sum_visit_length",
	IndexBounceCount:       "bounce_count",
	IndexNbVisitsConverted: "nb_visits_converted",
}

// MetricColumn returns the compact column name for a metric id.
func MetricColumn(index int) string {
	return strconv.Itoa(index)
}

// ReplaceColumnNames renames compact metric-id columns to their expanded names.
// Columns that are not metric ids are left untouched.
func ReplaceColumnNames() Filter {
	return RenameColumns(metricRenames())
}

// RenameColumns renames columns according to mapping on every row.
func RenameColumns(mapping map[string]string) Filter {
	return func(t *Table) {
		for _, r := range t.rows {
			for from, to := range mapping {
				if _, exists := r.GetColumn(to); exists {
					continue
				}
				r.RenameColumn(from, to)
			}
		}
	}
}

func metricRenames() map[string]string {
	out := make(map[string]string, len(MetricNames))
	for idx, name := range MetricNames {
		out[MetricColumn(idx)] = name
	}
	return out
}
