package dashboard

import (
	"errors"
	"net/http"

	"covidash/internal/series"
)

// RegionsInfo describes the loaded table.
type RegionsInfo struct {
	TableID   string   `json:"table_id"`
	Regions   []string `json:"regions"`
	DayCount  int      `json:"day_count"`
	Epoch     string   `json:"epoch"`
	FirstDate string   `json:"first_date"`
	LastDate  string   `json:"last_date"`
}

type MapView struct {
	Day        int               `json:"day"`
	Date       string            `json:"date"`
	Entries    []series.MapEntry `json:"entries"`
	Legend     series.Legend     `json:"legend"`
	Colorscale []string          `json:"colorscale"`
}

type ShareView struct {
	Day       int                 `json:"day"`
	Date      string              `json:"date"`
	Total     int64               `json:"total"`
	Threshold float64             `json:"threshold"`
	Merged    bool                `json:"merged"`
	Rows      []series.ShareEntry `json:"rows"`
}

type TotalsView struct {
	X     []int   `json:"x"`
	Total []int64 `json:"total"`
	Delta []int64 `json:"delta"`
}

type RegionView struct {
	Name       string  `json:"name"`
	Code       string  `json:"code,omitempty"`
	Cumulative []int64 `json:"cumulative"`
	Delta      []int64 `json:"delta"`
}

// ErrUnknownRegion is returned for a region name the table does not have.
var ErrUnknownRegion = errors.New("unknown region")

const dateFormat = "2006-01-02"

func Regions(e *series.Engine) RegionsInfo {
	t := e.Table()
	return RegionsInfo{
		TableID:   t.ID(),
		Regions:   t.Regions(),
		DayCount:  t.DayCount(),
		Epoch:     t.Epoch().Format(dateFormat),
		FirstDate: t.Date(0).Format(dateFormat),
		LastDate:  t.Date(t.DayCount() - 1).Format(dateFormat),
	}
}

func Totals(e *series.Engine) TotalsView {
	total := e.Total()
	x := make([]int, len(total))
	for i := range x {
		x[i] = i
	}
	return TotalsView{X: x, Total: total, Delta: e.TotalDelta()}
}

func Region(e *series.Engine, name string, codes series.CodeLookup) (RegionView, error) {
	cum, ok := e.Table().Series(name)
	if !ok {
		return RegionView{}, ErrUnknownRegion
	}
	delta, _ := e.RegionDelta(name)
	v := RegionView{Name: name, Cumulative: cum, Delta: delta}
	if codes != nil {
		v.Code, _ = codes.Lookup(name)
	}
	return v, nil
}

// Map builds the choropleth for day; a nil day selects the latest one.
func Map(e *series.Engine, day *int, codes series.CodeLookup) (MapView, error) {
	t := e.Table()
	d := lastDay(t, day)
	entries, err := series.MapFrame(t, d, codes)
	if err != nil {
		return MapView{}, err
	}
	return MapView{
		Day:        d,
		Date:       t.Date(d).Format(dateFormat),
		Entries:    entries,
		Legend:     series.MapLegend(),
		Colorscale: series.Colorscale,
	}, nil
}

// Share builds the share-of-total breakdown for day; a nil day selects
// the latest one. With merged set, rows relabeled "Other" are summed into
// one.
func Share(e *series.Engine, day *int, merged bool) (ShareView, error) {
	t := e.Table()
	d := lastDay(t, day)
	rows, err := series.ShareFrame(t, d)
	if err != nil {
		return ShareView{}, err
	}
	if merged {
		rows = series.MergeShares(rows)
	}
	return ShareView{
		Day:       d,
		Date:      t.Date(d).Format(dateFormat),
		Total:     e.Total()[d],
		Threshold: series.ShareThreshold,
		Merged:    merged,
		Rows:      rows,
	}, nil
}

func lastDay(t *series.Table, day *int) int {
	if day == nil {
		return t.DayCount() - 1
	}
	return *day
}

// ErrorKind classifies a view error for status codes and metrics.
func ErrorKind(err error) (status int, kind string) {
	switch {
	case errors.Is(err, series.ErrDayOffsetOutOfRange):
		return http.StatusBadRequest, "day_out_of_range"
	case errors.Is(err, series.ErrUnknownMode):
		return http.StatusBadRequest, "unknown_mode"
	case errors.Is(err, errBadParam):
		return http.StatusBadRequest, "bad_param"
	case errors.Is(err, series.ErrDegenerateTotal):
		return http.StatusUnprocessableEntity, "degenerate_total"
	case errors.Is(err, ErrUnknownRegion):
		return http.StatusNotFound, "unknown_region"
	case errors.Is(err, ErrNotLoaded):
		return http.StatusServiceUnavailable, "not_loaded"
	default:
		return http.StatusInternalServerError, "internal"
	}
}
