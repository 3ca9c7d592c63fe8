package main

import (
	"bytes"
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"covidash/internal/loader"
	"covidash/pkg/filewriter"
	"covidash/pkg/utils"
)

// export-mirror downloads the upstream time series into the file that
// mirror-server serves. The old copy is kept if the download does not
// parse.
func main() {
	outPath := flag.String("out", "data/time_series_covid19_confirmed_US.csv", "output CSV path")
	flag.Parse()

	cfg, err := utils.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := utils.MustLogger(cfg)
	defer logger.Sync()

	ctx, cancel := context.WithTimeout(context.Background(), cfg.FetchTimeout+10*time.Second)
	defer cancel()

	src := loader.NewHTTPSource(cfg.SourceURL, cfg.FetchTimeout)
	n, err := snapshot(ctx, src, *outPath, loader.ParseOptions{RegionColumn: cfg.RegionColumn})
	if err != nil {
		logger.Fatal("snapshot failed", zap.String("source", src.Name()), zap.Error(err))
	}
	logger.Info("mirror updated", zap.String("out", *outPath), zap.Int("bytes", n))
}

func snapshot(ctx context.Context, src loader.Source, outPath string, opts loader.ParseOptions) (int, error) {
	rc, err := src.Fetch(ctx)
	if err != nil {
		return 0, err
	}
	defer rc.Close()

	b, err := io.ReadAll(rc)
	if err != nil {
		return 0, err
	}
	raw, err := loader.ParseCSV(bytes.NewReader(b), opts)
	if err != nil {
		return 0, fmt.Errorf("downloaded table does not parse: %w", err)
	}
	if len(raw.Rows) == 0 {
		return 0, fmt.Errorf("downloaded table has no rows")
	}

	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return 0, err
	}
	fw, err := filewriter.New(outPath)
	if err != nil {
		return 0, err
	}
	if _, err := fw.Write(b); err != nil {
		fw.Abort()
		return 0, err
	}
	return len(b), fw.Close()
}
