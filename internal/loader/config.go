package loader

import (
	"errors"

	"go.uber.org/zap"

	"covidash/internal/metrics"
	"covidash/internal/series"
	"covidash/pkg/utils"
)

// FromConfig builds a loader that tries cfg.SourceURL and then
// cfg.SourceFile. At least one of them must be set.
func FromConfig(cfg utils.Config, logger *zap.Logger, m *metrics.Metrics) (*Loader, error) {
	epoch, err := cfg.EpochTime()
	if err != nil {
		return nil, err
	}

	var sources []Source
	if cfg.SourceURL != "" {
		sources = append(sources, NewHTTPSource(cfg.SourceURL, cfg.FetchTimeout))
	}
	if cfg.SourceFile != "" {
		sources = append(sources, NewFileSource(cfg.SourceFile))
	}
	if len(sources) == 0 {
		return nil, errors.New("loader: neither source_url nor source_file is set")
	}

	l := New(logger, sources...)
	l.Parse = ParseOptions{RegionColumn: cfg.RegionColumn}
	l.Normalize = series.NormalizeOptions{Epoch: epoch, DateLayout: cfg.DateLayout}
	l.Metrics = m
	return l, nil
}
