package loader

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"covidash/internal/metrics"
	"covidash/internal/series"
)

// Loader fetches the case table from the first source that answers and
// turns it into a normalized series.Table.
type Loader struct {
	Sources   []Source
	Parse     ParseOptions
	Normalize series.NormalizeOptions
	Logger    *zap.Logger
	Metrics   *metrics.Metrics
}

func New(logger *zap.Logger, sources ...Source) *Loader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Loader{Sources: sources, Logger: logger}
}

// Load tries each source in order. A source that cannot be fetched, or
// whose body does not parse as a case table, is logged and skipped. A
// table that parses but fails to normalize is a hard error.
func (l *Loader) Load(ctx context.Context) (*series.Table, error) {
	if len(l.Sources) == 0 {
		return nil, errors.New("loader: no sources configured")
	}

	var errs []error
	for _, src := range l.Sources {
		start := time.Now()
		l.Logger.Info("fetching dataset", zap.String("source", src.Name()))

		raw, err := l.fetch(ctx, src)
		if err != nil {
			l.Metrics.LoadAttempt(src.Name(), err)
			l.Logger.Warn("source failed", zap.String("source", src.Name()), zap.Error(err))
			errs = append(errs, fmt.Errorf("%s: %w", src.Name(), err))
			if ctx.Err() != nil {
				break
			}
			continue
		}

		tbl, err := series.Normalize(raw, l.Normalize)
		l.Metrics.LoadAttempt(src.Name(), err)
		if err != nil {
			l.Logger.Error("normalize failed", zap.String("source", src.Name()), zap.Error(err))
			return nil, fmt.Errorf("normalize %s: %w", src.Name(), err)
		}

		elapsed := time.Since(start)
		l.Metrics.Loaded(tbl.RegionCount(), tbl.DayCount(), elapsed)
		l.Logger.Info("dataset loaded",
			zap.String("source", src.Name()),
			zap.String("table_id", tbl.ID()),
			zap.Int("rows", len(raw.Rows)),
			zap.Int("regions", tbl.RegionCount()),
			zap.Int("days", tbl.DayCount()),
			zap.Duration("elapsed", elapsed))
		return tbl, nil
	}
	return nil, fmt.Errorf("loader: all sources failed: %w", errors.Join(errs...))
}

func (l *Loader) fetch(ctx context.Context, src Source) (series.RawTable, error) {
	rc, err := src.Fetch(ctx)
	if err != nil {
		return series.RawTable{}, err
	}
	defer rc.Close()
	return ParseCSV(rc, l.Parse)
}
