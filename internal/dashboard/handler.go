package dashboard

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"covidash/internal/metrics"
	"covidash/internal/series"
)

var errBadParam = errors.New("bad parameter")

type Handler struct {
	Data    *Dataset
	Codes   series.CodeLookup
	Metrics *metrics.Metrics
	Logger  *zap.Logger
}

func NewHandler(data *Dataset, codes series.CodeLookup, m *metrics.Metrics, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{Data: data, Codes: codes, Metrics: m, Logger: logger}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/regions", h.regions)      // GET /api/regions
	rg.GET("/regions/:name", h.region) // GET /api/regions/Texas
	rg.GET("/lines", h.lines)          // GET /api/lines?mode=aggregate
	rg.GET("/totals", h.totals)        // GET /api/totals
	rg.GET("/deltas", h.deltas)        // GET /api/deltas?mode=by-region
	rg.GET("/map", h.mapFrame)         // GET /api/map?day=120
	rg.GET("/share", h.share)          // GET /api/share?day=120&merged=false
}

func (h *Handler) RegisterAdmin(rg *gin.RouterGroup) {
	rg.POST("/reload", h.reload) // POST /admin/reload
}

func (h *Handler) regions(c *gin.Context) {
	e, ok := h.engine(c, "regions")
	if !ok {
		return
	}
	c.JSON(http.StatusOK, Regions(e))
}

func (h *Handler) region(c *gin.Context) {
	e, ok := h.engine(c, "region")
	if !ok {
		return
	}
	v, err := Region(e, c.Param("name"), h.Codes)
	if err != nil {
		h.fail(c, "region", err)
		return
	}
	c.JSON(http.StatusOK, v)
}

func (h *Handler) lines(c *gin.Context) {
	e, ok := h.engine(c, "lines")
	if !ok {
		return
	}
	mode, err := series.ParseMode(c.Query("mode"))
	if err != nil {
		h.fail(c, "lines", err)
		return
	}
	lines, err := e.Lines(mode)
	if err != nil {
		h.fail(c, "lines", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"mode":   mode,
		"title":  "COVID-19 Cases in " + modeTitle(mode),
		"xaxis":  "Days since " + e.Table().Epoch().Format("Jan. 2, 2006"),
		"yaxis":  "Number of Cases",
		"series": lines,
	})
}

func (h *Handler) totals(c *gin.Context) {
	e, ok := h.engine(c, "totals")
	if !ok {
		return
	}
	c.JSON(http.StatusOK, Totals(e))
}

func (h *Handler) deltas(c *gin.Context) {
	e, ok := h.engine(c, "deltas")
	if !ok {
		return
	}
	mode, err := series.ParseMode(c.Query("mode"))
	if err != nil {
		h.fail(c, "deltas", err)
		return
	}
	out, err := e.Deltas(mode)
	if err != nil {
		h.fail(c, "deltas", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"mode":   mode,
		"xaxis":  "Total cases",
		"yaxis":  "New cases",
		"series": out,
	})
}

func (h *Handler) mapFrame(c *gin.Context) {
	e, ok := h.engine(c, "map")
	if !ok {
		return
	}
	day, err := parseDay(c.Query("day"))
	if err != nil {
		h.fail(c, "map", err)
		return
	}
	v, err := Map(e, day, h.Codes)
	if err != nil {
		h.fail(c, "map", err)
		return
	}
	c.JSON(http.StatusOK, v)
}

func (h *Handler) share(c *gin.Context) {
	e, ok := h.engine(c, "share")
	if !ok {
		return
	}
	day, err := parseDay(c.Query("day"))
	if err != nil {
		h.fail(c, "share", err)
		return
	}
	merged, err := parseBool(c.Query("merged"), true)
	if err != nil {
		h.fail(c, "share", err)
		return
	}
	v, err := Share(e, day, merged)
	if err != nil {
		if errors.Is(err, series.ErrDegenerateTotal) {
			h.Metrics.ViewError("share", "degenerate_total")
			c.JSON(http.StatusUnprocessableEntity, gin.H{
				"error": err.Error(),
				"code":  "degenerate_total",
				"rows":  []series.ShareEntry{},
			})
			return
		}
		h.fail(c, "share", err)
		return
	}
	c.JSON(http.StatusOK, v)
}

func (h *Handler) reload(c *gin.Context) {
	t, err := h.Data.Reload(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error(), "code": "reload_failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"table_id":  t.ID(),
		"regions":   t.RegionCount(),
		"day_count": t.DayCount(),
	})
}

func (h *Handler) engine(c *gin.Context, view string) (*series.Engine, bool) {
	e, err := h.Data.Engine()
	if err != nil {
		h.fail(c, view, err)
		return nil, false
	}
	return e, true
}

func (h *Handler) fail(c *gin.Context, view string, err error) {
	status, kind := ErrorKind(err)
	h.Metrics.ViewError(view, kind)
	if status >= http.StatusInternalServerError && status != http.StatusServiceUnavailable {
		h.Logger.Error("view failed", zap.String("view", view), zap.Error(err))
	}
	c.JSON(status, gin.H{"error": err.Error(), "code": kind})
}

func modeTitle(m series.Mode) string {
	if m == series.ModeAggregate {
		return series.NationalTotalName
	}
	return "All"
}

// parseDay returns nil for an empty value (latest day).
func parseDay(s string) (*int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return nil, fmt.Errorf("%w: day %q", errBadParam, s)
	}
	return &n, nil
}

func parseBool(s string, def bool) (bool, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(s)
	if err != nil {
		return def, fmt.Errorf("%w: %q", errBadParam, s)
	}
	return b, nil
}
