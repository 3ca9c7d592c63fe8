package series

import "fmt"

const (
	// ShareThreshold is the smallest share of the national total a region
	// needs to keep its own slice.
	ShareThreshold = 0.02

	OtherLabel = "Other"
)

// ShareEntry is one slice of the share-of-total breakdown.
type ShareEntry struct {
	Label string `json:"label"`
	Value int64  `json:"value"`
}

// ShareFrame labels each region's count on day with its name, or with
// OtherLabel when its share of the national total is below ShareThreshold.
// Rows are in table order and are not merged; several rows may carry
// OtherLabel. Use MergeShares to collapse them.
func ShareFrame(t *Table, day int) ([]ShareEntry, error) {
	if err := t.CheckDay(day); err != nil {
		return nil, err
	}

	var total int64
	for _, r := range t.regions {
		total += t.value(r, day)
	}
	if total == 0 {
		return nil, fmt.Errorf("%w on day %d", ErrDegenerateTotal, day)
	}

	out := make([]ShareEntry, 0, len(t.regions))
	for _, r := range t.regions {
		v := t.value(r, day)
		label := r
		if float64(v)/float64(total) < ShareThreshold {
			label = OtherLabel
		}
		out = append(out, ShareEntry{Label: label, Value: v})
	}
	return out, nil
}

// MergeShares sums rows that share a label. Labels keep the order in which
// they first appear.
func MergeShares(rows []ShareEntry) []ShareEntry {
	index := make(map[string]int, len(rows))
	out := make([]ShareEntry, 0, len(rows))
	for _, row := range rows {
		if i, ok := index[row.Label]; ok {
			out[i].Value += row.Value
			continue
		}
		index[row.Label] = len(out)
		out = append(out, row)
	}
	return out
}
