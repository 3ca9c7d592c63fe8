package main

import (
	"context"
	"flag"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"covidash/internal/export"
	"covidash/internal/loader"
	"covidash/internal/regions"
	"covidash/internal/series"
	"covidash/pkg/utils"
)

func main() {
	var (
		outDir = flag.String("out", "data/export", "output directory")
		days   = flag.String("days", "", "comma-separated day offsets for map/share files (default latest)")
		file   = flag.String("file", "", "read this CSV instead of the configured sources")
	)
	flag.Parse()

	cfg, err := utils.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := utils.MustLogger(cfg)
	defer logger.Sync()

	if *file != "" {
		cfg.SourceURL = ""
		cfg.SourceFile = *file
	}
	ld, err := loader.FromConfig(cfg, logger.Named("loader"), nil)
	if err != nil {
		logger.Fatal("loader config", zap.Error(err))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*cfg.FetchTimeout+30*time.Second)
	defer cancel()

	tbl, err := ld.Load(ctx)
	if err != nil {
		logger.Fatal("load failed", zap.Error(err))
	}

	selected, err := parseDays(*days, tbl.DayCount())
	if err != nil {
		logger.Fatal("bad -days", zap.Error(err))
	}

	written, err := export.Dir(*outDir, series.NewEngine(tbl), selected, regions.US, logger.Named("export"))
	if err != nil {
		logger.Fatal("export failed", zap.Error(err))
	}
	logger.Info("export complete", zap.String("dir", *outDir), zap.Int("files", len(written)))
}

// parseDays reads "3,10,-1"; negative offsets count back from the last day.
func parseDays(s string, dayCount int) ([]int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return []int{dayCount - 1}, nil
	}
	var out []int
	for _, part := range strings.Split(s, ",") {
		n, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil {
			return nil, err
		}
		if n < 0 {
			n += dayCount
		}
		out = append(out, n)
	}
	return out, nil
}
