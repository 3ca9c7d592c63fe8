package series

import (
	"fmt"
	"time"
)

const (
	// DefaultDateLayout matches the JHU column headers, e.g. "3/15/20".
	DefaultDateLayout = "1/2/06"
)

// DefaultEpoch is the first day of the JHU time series.
var DefaultEpoch = time.Date(2020, time.January, 22, 0, 0, 0, 0, time.UTC)

// NormalizeOptions controls how date labels map to day offsets. Zero
// fields fall back to DefaultEpoch and DefaultDateLayout.
type NormalizeOptions struct {
	Epoch      time.Time // day 0; truncated to midnight UTC
	DateLayout string    // time.Parse layout of the column labels
}

func (o NormalizeOptions) withDefaults() NormalizeOptions {
	if o.Epoch.IsZero() {
		o.Epoch = DefaultEpoch
	}
	if o.DateLayout == "" {
		o.DateLayout = DefaultDateLayout
	}
	y, m, d := o.Epoch.Date()
	o.Epoch = time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return o
}

// Normalize collapses raw into one cumulative series per distinct region.
//
// Rows sharing a region name (county rows under one state) are summed
// element-wise. Every date label must parse under opts.DateLayout and the
// label at position i must be exactly i days after opts.Epoch: columns are
// expected in chronological order and are never re-sorted.
func Normalize(raw RawTable, opts NormalizeOptions) (*Table, error) {
	opts = opts.withDefaults()

	for i, label := range raw.DateLabels {
		day, err := dayOffset(label, opts)
		if err != nil {
			return nil, &LoadError{Column: label, Err: fmt.Errorf("%w: %v", ErrMalformedDateColumn, err)}
		}
		if day != i {
			return nil, &LoadError{
				Column: label,
				Err:    fmt.Errorf("%w: column %d is day %d", ErrNonContiguousDates, i, day),
			}
		}
	}

	days := len(raw.DateLabels)
	index := make(map[string]int, 64)
	var regions []string
	var sums [][]int64

	for n, row := range raw.Rows {
		if len(row.Counts) != days {
			return nil, &LoadError{
				Column: row.Region,
				Err:    fmt.Errorf("%w: row %d has %d values for %d date columns", ErrMalformedDateColumn, n, len(row.Counts), days),
			}
		}

		i, ok := index[row.Region]
		if !ok {
			i = len(regions)
			index[row.Region] = i
			regions = append(regions, row.Region)
			sums = append(sums, make([]int64, days))
		}
		acc := sums[i]
		for d, v := range row.Counts {
			acc[d] += v
		}
	}

	if len(regions) == 0 {
		return nil, ErrEmptyDataset
	}

	series := make(map[string][]int64, len(regions))
	for i, r := range regions {
		series[r] = sums[i]
	}
	return newTable(opts.Epoch, regions, series, days), nil
}

func dayOffset(label string, opts NormalizeOptions) (int, error) {
	t, err := time.Parse(opts.DateLayout, label)
	if err != nil {
		return 0, err
	}
	return int(t.Sub(opts.Epoch).Hours() / 24), nil
}
