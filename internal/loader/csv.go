package loader

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"covidash/internal/series"
)

// DefaultIDColumns are the non-date columns of the JHU US time series. They
// are dropped before grouping.
var DefaultIDColumns = []string{
	"UID", "iso2", "iso3", "code3", "FIPS", "Admin2",
	"Country_Region", "Lat", "Long_", "Combined_Key", "Population",
}

type ParseOptions struct {
	RegionColumn string   // default "Province_State"
	IDColumns    []string // default DefaultIDColumns
}

// ParseCSV reads a wide cumulative table: one region column, some
// identifier columns, and one column per date. Every column that is
// neither the region nor an identifier is taken to be a date; the
// normalizer rejects it if it is not.
func ParseCSV(r io.Reader, opts ParseOptions) (series.RawTable, error) {
	if opts.RegionColumn == "" {
		opts.RegionColumn = "Province_State"
	}
	if opts.IDColumns == nil {
		opts.IDColumns = DefaultIDColumns
	}

	cr := csv.NewReader(r)
	cr.ReuseRecord = true

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return series.RawTable{}, series.ErrEmptyDataset
		}
		return series.RawTable{}, fmt.Errorf("read header: %w", err)
	}

	drop := make(map[string]struct{}, len(opts.IDColumns))
	for _, c := range opts.IDColumns {
		drop[strings.ToLower(c)] = struct{}{}
	}

	regionCol := -1
	var dateCols []int
	var raw series.RawTable
	for i, name := range header {
		name = strings.TrimSpace(strings.TrimPrefix(name, "\ufeff"))
		if name == opts.RegionColumn {
			regionCol = i
			continue
		}
		if _, ok := drop[strings.ToLower(name)]; ok {
			continue
		}
		dateCols = append(dateCols, i)
		raw.DateLabels = append(raw.DateLabels, name)
	}
	if regionCol < 0 {
		return series.RawTable{}, fmt.Errorf("missing column %q", opts.RegionColumn)
	}

	for line := 2; ; line++ {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return series.RawTable{}, fmt.Errorf("line %d: %w", line, err)
		}
		if len(row) != len(header) {
			return series.RawTable{}, fmt.Errorf("line %d: %d fields, header has %d", line, len(row), len(header))
		}

		counts := make([]int64, len(dateCols))
		for j, c := range dateCols {
			n, err := parseCount(row[c])
			if err != nil {
				return series.RawTable{}, fmt.Errorf("line %d column %q: %w", line, raw.DateLabels[j], err)
			}
			counts[j] = n
		}
		raw.Rows = append(raw.Rows, series.RawRow{
			Region: strings.TrimSpace(row[regionCol]),
			Counts: counts,
		})
	}
	return raw, nil
}

// parseCount accepts integers and, since JHU has at times published counts
// as floats, decimal values (truncated). Empty cells count as zero.
func parseCount(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		f, ferr := strconv.ParseFloat(s, 64)
		if ferr != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return 0, fmt.Errorf("invalid count %q", s)
		}
		n = int64(f)
	}
	if n < 0 {
		return 0, fmt.Errorf("negative count %q", s)
	}
	return n, nil
}
