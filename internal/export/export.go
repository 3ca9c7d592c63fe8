// Package export writes the dashboard views as CSV files.
package export

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"go.uber.org/zap"

	"covidash/internal/series"
	"covidash/pkg/filewriter"
)

const dateFormat = "2006-01-02"

// Totals writes day,date,total,new for the national aggregate.
func Totals(w io.Writer, e *series.Engine) error {
	t := e.Table()
	total, delta := e.Total(), e.TotalDelta()
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"day", "date", "total", "new"}); err != nil {
		return err
	}
	for i := range total {
		rec := []string{
			strconv.Itoa(i),
			t.Date(i).Format(dateFormat),
			strconv.FormatInt(total[i], 10),
			strconv.FormatInt(delta[i], 10),
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// Regions writes the normalized table in wide form: one row per region and
// one column per date.
func Regions(w io.Writer, t *series.Table, codes series.CodeLookup) error {
	cw := csv.NewWriter(w)
	header := make([]string, 0, t.DayCount()+2)
	header = append(header, "region", "code")
	for d := 0; d < t.DayCount(); d++ {
		header = append(header, t.Date(d).Format(dateFormat))
	}
	if err := cw.Write(header); err != nil {
		return err
	}
	for _, name := range t.Regions() {
		s, _ := t.Series(name)
		code := ""
		if codes != nil {
			code, _ = codes.Lookup(name)
		}
		rec := make([]string, 0, len(s)+2)
		rec = append(rec, name, code)
		for _, v := range s {
			rec = append(rec, strconv.FormatInt(v, 10))
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// Map writes region,code,value,log_value for day.
func Map(w io.Writer, t *series.Table, day int, codes series.CodeLookup) error {
	entries, err := series.MapFrame(t, day, codes)
	if err != nil {
		return err
	}
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"region", "code", "value", "log_value"}); err != nil {
		return err
	}
	for _, m := range entries {
		rec := []string{m.Region, m.Code, strconv.FormatInt(m.Value, 10), strconv.FormatFloat(m.LogValue, 'f', 6, 64)}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// Share writes label,value,share for day, with "Other" rows merged.
func Share(w io.Writer, e *series.Engine, day int) error {
	rows, err := series.ShareFrame(e.Table(), day)
	if err != nil {
		return err
	}
	total := e.Total()[day]
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"label", "value", "share"}); err != nil {
		return err
	}
	for _, r := range series.MergeShares(rows) {
		share := float64(r.Value) / float64(total)
		if err := cw.Write([]string{r.Label, strconv.FormatInt(r.Value, 10), strconv.FormatFloat(share, 'f', 6, 64)}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// Dir writes totals.csv, regions.csv and, for each day in days,
// map-<day>.csv and share-<day>.csv into dir. A day whose total is zero
// gets no share file. Every file is replaced atomically.
func Dir(dir string, e *series.Engine, days []int, codes series.CodeLookup, logger *zap.Logger) ([]string, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	t := e.Table()
	for _, d := range days {
		if err := t.CheckDay(d); err != nil {
			return nil, err
		}
	}

	var written []string
	write := func(name string, fn func(io.Writer) error) error {
		p := filepath.Join(dir, name)
		fw, err := filewriter.New(p)
		if err != nil {
			return err
		}
		if err := fn(fw); err != nil {
			fw.Abort()
			return fmt.Errorf("%s: %w", name, err)
		}
		if err := fw.Close(); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
		written = append(written, p)
		logger.Info("wrote file", zap.String("path", p))
		return nil
	}

	if err := write("totals.csv", func(w io.Writer) error { return Totals(w, e) }); err != nil {
		return written, err
	}
	if err := write("regions.csv", func(w io.Writer) error { return Regions(w, t, codes) }); err != nil {
		return written, err
	}
	for _, d := range days {
		if err := write(fmt.Sprintf("map-%d.csv", d), func(w io.Writer) error { return Map(w, t, d, codes) }); err != nil {
			return written, err
		}
		err := write(fmt.Sprintf("share-%d.csv", d), func(w io.Writer) error { return Share(w, e, d) })
		if errors.Is(err, series.ErrDegenerateTotal) {
			logger.Warn("skipping share, no cases", zap.Int("day", d))
			continue
		}
		if err != nil {
			return written, err
		}
	}
	return written, nil
}
