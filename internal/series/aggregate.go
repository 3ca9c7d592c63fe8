package series

import (
	"slices"
	"sync"
)

// NationalTotalName labels the aggregate line in line and delta views.
const NationalTotalName = "the United States"

// NationalTotal sums every region's cumulative series per day.
func NationalTotal(t *Table) []int64 {
	total := make([]int64, t.days)
	for _, r := range t.regions {
		for d, v := range t.series[r] {
			total[d] += v
		}
	}
	return total
}

// DailyDelta returns day-over-day differences of a cumulative series.
// The first day is its own delta. Downward revisions produce negative
// deltas; they are not clamped.
func DailyDelta(s []int64) []int64 {
	out := make([]int64, len(s))
	for d, v := range s {
		if d == 0 {
			out[d] = v
			continue
		}
		out[d] = v - s[d-1]
	}
	return out
}

// LineSeries is one line of the cumulative view: X is the day offset,
// Y the cumulative count.
type LineSeries struct {
	Name string  `json:"name"`
	X    []int   `json:"x"`
	Y    []int64 `json:"y"`
}

// DeltaSeries is one line of the new-cases view. It plots count against
// count: X is the cumulative total, Y the daily delta.
type DeltaSeries struct {
	Name string  `json:"name"`
	X    []int64 `json:"x"`
	Y    []int64 `json:"y"`
}

// Engine caches the derived series of one table. The table never changes,
// so every value is computed at most once. Safe for concurrent use.
type Engine struct {
	table *Table

	totalOnce sync.Once
	total     []int64

	deltaOnce sync.Once
	deltas    map[string][]int64
	totalD    []int64
}

// NewEngine wraps t. Nothing is computed until the first call.
func NewEngine(t *Table) *Engine {
	return &Engine{table: t}
}

func (e *Engine) Table() *Table { return e.table }

// Total returns a copy of the national total series.
func (e *Engine) Total() []int64 {
	return slices.Clone(e.cachedTotal())
}

func (e *Engine) cachedTotal() []int64 {
	e.totalOnce.Do(func() {
		e.total = NationalTotal(e.table)
	})
	return e.total
}

func (e *Engine) computeDeltas() {
	e.deltaOnce.Do(func() {
		e.deltas = make(map[string][]int64, len(e.table.regions))
		for _, r := range e.table.regions {
			e.deltas[r] = DailyDelta(e.table.series[r])
		}
		e.totalD = DailyDelta(e.cachedTotal())
	})
}

// TotalDelta returns DailyDelta(Total()).
func (e *Engine) TotalDelta() []int64 {
	e.computeDeltas()
	return slices.Clone(e.totalD)
}

// RegionDelta returns a copy of the delta series of one region.
func (e *Engine) RegionDelta(region string) ([]int64, bool) {
	e.computeDeltas()
	d, ok := e.deltas[region]
	if !ok {
		return nil, false
	}
	return slices.Clone(d), true
}

// Lines returns the cumulative view for mode: one national line in
// aggregate mode, one line per region (table order) in by-region mode.
// Every returned slice is freshly allocated.
func (e *Engine) Lines(mode Mode) ([]LineSeries, error) {
	switch mode {
	case ModeAggregate:
		return []LineSeries{{Name: NationalTotalName, X: dayAxis(e.table.days), Y: slices.Clone(e.cachedTotal())}}, nil
	case ModeByRegion:
		out := make([]LineSeries, 0, len(e.table.regions))
		for _, r := range e.table.regions {
			out = append(out, LineSeries{Name: r, X: dayAxis(e.table.days), Y: slices.Clone(e.table.series[r])})
		}
		return out, nil
	default:
		return nil, ErrUnknownMode
	}
}

// Deltas returns the new-cases view for mode. Like Lines, the result
// shares no memory with the table.
func (e *Engine) Deltas(mode Mode) ([]DeltaSeries, error) {
	switch mode {
	case ModeAggregate:
		return []DeltaSeries{{Name: NationalTotalName, X: e.Total(), Y: e.TotalDelta()}}, nil
	case ModeByRegion:
		e.computeDeltas()
		out := make([]DeltaSeries, 0, len(e.table.regions))
		for _, r := range e.table.regions {
			out = append(out, DeltaSeries{Name: r, X: slices.Clone(e.table.series[r]), Y: slices.Clone(e.deltas[r])})
		}
		return out, nil
	default:
		return nil, ErrUnknownMode
	}
}

func dayAxis(n int) []int {
	x := make([]int, n)
	for i := range x {
		x[i] = i
	}
	return x
}
