package main

import (
	"bytes"
	"compress/gzip"
	"flag"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"covidash/internal/loader"
	"covidash/pkg/utils"
)

// mirror-server serves a local copy of the time series at
// GET /time_series.csv so api-server can run without the upstream host.
func main() {
	addr := flag.String("addr", ":9000", "listen address")
	dataPath := flag.String("file", "data/time_series_covid19_confirmed_US.csv", "CSV (or .csv.gz) to serve")
	flag.Parse()

	logger, err := utils.NewLogger("info", false)
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.GET("/time_series.csv", serveCSV(*dataPath, logger))

	logger.Info("mirror-server listening", zap.String("addr", *addr), zap.String("file", *dataPath))
	if err := router.Run(*addr); err != nil {
		logger.Fatal("mirror-server stopped", zap.Error(err))
	}
}

// serveCSV checks that the file still parses as a case table before
// serving it, so a truncated copy fails loudly here instead of in the
// loader.
func serveCSV(path string, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		f, err := os.Open(path)
		if err != nil {
			c.String(http.StatusInternalServerError, "cannot read %s: %v", path, err)
			return
		}
		defer f.Close()

		var r io.Reader = f
		if strings.HasSuffix(path, ".gz") {
			gz, err := gzip.NewReader(f)
			if err != nil {
				c.String(http.StatusInternalServerError, "bad gzip: %v", err)
				return
			}
			defer gz.Close()
			r = gz
		}
		b, err := io.ReadAll(r)
		if err != nil {
			c.String(http.StatusInternalServerError, "read: %v", err)
			return
		}
		if _, err := loader.ParseCSV(bytes.NewReader(b), loader.ParseOptions{}); err != nil {
			logger.Warn("mirror file invalid", zap.String("file", path), zap.Error(err))
			c.String(http.StatusInternalServerError, "invalid CSV: %v", err)
			return
		}
		c.Data(http.StatusOK, "text/csv; charset=utf-8", b)
	}
}
