package series

import (
	"errors"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type codeMap map[string]string

func (m codeMap) Lookup(name string) (string, bool) {
	c, ok := m[name]
	return c, ok
}

func labels(n int) []string {
	all := []string{"1/22/20", "1/23/20", "1/24/20", "1/25/20", "1/26/20"}
	return all[:n]
}

func mustTable(t *testing.T, rows ...RawRow) *Table {
	t.Helper()
	require.NotEmpty(t, rows)
	tbl, err := Normalize(RawTable{DateLabels: labels(len(rows[0].Counts)), Rows: rows}, NormalizeOptions{})
	require.NoError(t, err)
	return tbl
}

func TestNormalize_GroupsDuplicateRegions(t *testing.T) {
	tbl := mustTable(t,
		RawRow{Region: "Texas", Counts: []int64{1, 2, 3}},
		RawRow{Region: "Ohio", Counts: []int64{0, 0, 1}},
		RawRow{Region: "Texas", Counts: []int64{10, 20, 30}},
	)

	assert.Equal(t, []string{"Texas", "Ohio"}, tbl.Regions())
	assert.Equal(t, 3, tbl.DayCount())

	tx, ok := tbl.Series("Texas")
	require.True(t, ok)
	assert.Equal(t, []int64{11, 22, 33}, tx)
	assert.NotEmpty(t, tbl.ID())
}

func TestNormalize_SeriesIsCopy(t *testing.T) {
	tbl := mustTable(t, RawRow{Region: "A", Counts: []int64{1, 2}})
	s, _ := tbl.Series("A")
	s[0] = 99
	again, _ := tbl.Series("A")
	assert.Equal(t, int64(1), again[0])
}

func TestEngine_ResultsAreCopies(t *testing.T) {
	tbl := mustTable(t,
		RawRow{Region: "A", Counts: []int64{1, 2}},
		RawRow{Region: "B", Counts: []int64{1000, 4}},
	)
	e := NewEngine(tbl)

	byRegion, err := e.Lines(ModeByRegion)
	require.NoError(t, err)
	byRegion[0].Y[0] = 999
	byRegion[0].X[0] = 42

	agg, err := e.Lines(ModeAggregate)
	require.NoError(t, err)
	agg[0].Y[1] = -5

	deltas, err := e.Deltas(ModeByRegion)
	require.NoError(t, err)
	deltas[1].X[0] = 7
	deltas[1].Y[1] = 7

	aggD, err := e.Deltas(ModeAggregate)
	require.NoError(t, err)
	aggD[0].X[0] = 3
	aggD[0].Y[0] = 3

	e.Total()[0] = 0
	e.TotalDelta()[1] = 0
	rd, ok := e.RegionDelta("A")
	require.True(t, ok)
	rd[0] = 0

	a, _ := tbl.Series("A")
	b, _ := tbl.Series("B")
	assert.Equal(t, []int64{1, 2}, a)
	assert.Equal(t, []int64{1000, 4}, b)
	assert.Equal(t, []int64{1001, 6}, NationalTotal(tbl))
	assert.Equal(t, []int64{1001, 6}, e.Total())
	assert.Equal(t, []int64{1001, -995}, e.TotalDelta())
	rd, _ = e.RegionDelta("A")
	assert.Equal(t, []int64{1, 1}, rd)

	again, err := e.Lines(ModeByRegion)
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1}, again[0].X)
	assert.Equal(t, []int64{1, 2}, again[0].Y)
}

func TestEngine_ConcurrentUse(t *testing.T) {
	tbl := mustTable(t,
		RawRow{Region: "A", Counts: []int64{1, 5, 10, 12}},
		RawRow{Region: "B", Counts: []int64{0, 2, 3, 3}},
		RawRow{Region: "C", Counts: []int64{4, 4, 9, 20}},
	)

	type result struct {
		Total      []int64
		TotalDelta []int64
		RegionB    []int64
		Lines      []LineSeries
		Deltas     []DeltaSeries
		AggLines   []LineSeries
	}
	collect := func(e *Engine) (result, error) {
		var r result
		var err error
		r.Total = e.Total()
		r.TotalDelta = e.TotalDelta()
		r.RegionB, _ = e.RegionDelta("B")
		if r.Lines, err = e.Lines(ModeByRegion); err != nil {
			return r, err
		}
		if r.AggLines, err = e.Lines(ModeAggregate); err != nil {
			return r, err
		}
		r.Deltas, err = e.Deltas(ModeByRegion)
		return r, err
	}

	want, err := collect(NewEngine(tbl))
	require.NoError(t, err)

	// One shared engine; its caches are filled by whichever goroutine wins.
	e := NewEngine(tbl)
	const workers = 16
	results := make([]result, workers)
	errs := make([]error, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = collect(e)
		}(i)
	}
	wg.Wait()

	for i := range results {
		require.NoError(t, errs[i])
		if diff := cmp.Diff(want, results[i]); diff != "" {
			t.Errorf("worker %d saw different results (-want +got):\n%s", i, diff)
		}
	}
}

func TestNormalize_MalformedDateColumn(t *testing.T) {
	_, err := Normalize(RawTable{
		DateLabels: []string{"1/22/20", "13/45/2020"},
		Rows:       []RawRow{{Region: "A", Counts: []int64{1, 2}}},
	}, NormalizeOptions{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrMalformedDateColumn), "got %v", err)

	var le *LoadError
	require.True(t, errors.As(err, &le))
	assert.Equal(t, "13/45/2020", le.Column)
}

func TestNormalize_NonContiguousDates(t *testing.T) {
	_, err := Normalize(RawTable{
		DateLabels: []string{"1/22/20", "1/24/20"},
		Rows:       []RawRow{{Region: "A", Counts: []int64{1, 2}}},
	}, NormalizeOptions{})
	assert.True(t, errors.Is(err, ErrNonContiguousDates), "got %v", err)
}

func TestNormalize_RowLengthMismatch(t *testing.T) {
	_, err := Normalize(RawTable{
		DateLabels: labels(2),
		Rows:       []RawRow{{Region: "A", Counts: []int64{1}}},
	}, NormalizeOptions{})
	assert.True(t, errors.Is(err, ErrMalformedDateColumn), "got %v", err)
}

func TestNormalize_Empty(t *testing.T) {
	_, err := Normalize(RawTable{DateLabels: labels(2)}, NormalizeOptions{})
	assert.True(t, errors.Is(err, ErrEmptyDataset), "got %v", err)
}

func TestNormalize_CustomEpoch(t *testing.T) {
	tbl, err := Normalize(RawTable{
		DateLabels: []string{"2020-03-01", "2020-03-02"},
		Rows:       []RawRow{{Region: "A", Counts: []int64{5, 6}}},
	}, NormalizeOptions{
		Epoch:      DefaultEpoch.AddDate(0, 0, 39),
		DateLayout: "2006-01-02",
	})
	require.NoError(t, err)
	assert.Equal(t, "2020-03-02", tbl.Date(1).Format("2006-01-02"))
}

func TestNationalTotal(t *testing.T) {
	tbl := mustTable(t,
		RawRow{Region: "A", Counts: []int64{1, 5, 10}},
		RawRow{Region: "B", Counts: []int64{0, 2, 3}},
	)
	total := NationalTotal(tbl)
	assert.Equal(t, []int64{1, 7, 13}, total)

	for d := 0; d < tbl.DayCount(); d++ {
		var sum int64
		for _, r := range tbl.Regions() {
			s, _ := tbl.Series(r)
			sum += s[d]
		}
		assert.Equal(t, sum, total[d], "day %d", d)
	}
}

func TestDailyDelta(t *testing.T) {
	for _, tc := range []struct {
		in, want []int64
	}{
		{[]int64{1, 5, 10}, []int64{1, 4, 5}},
		{[]int64{0, 2, 3}, []int64{0, 2, 1}},
		{[]int64{7}, []int64{7}},
		{nil, []int64{}},
		// downward revision stays negative
		{[]int64{10, 8, 8}, []int64{10, -2, 0}},
	} {
		got := DailyDelta(tc.in)
		if diff := cmp.Diff(tc.want, got); diff != "" {
			t.Errorf("DailyDelta(%v) mismatch (-want +got):\n%s", tc.in, diff)
		}
	}
}

func TestDailyDelta_NonDecreasingIsNonNegative(t *testing.T) {
	s := []int64{0, 0, 3, 3, 9, 120, 121}
	d := DailyDelta(s)
	assert.Equal(t, s[0], d[0])
	for i := 1; i < len(d); i++ {
		assert.GreaterOrEqual(t, d[i], int64(0), "day %d", i)
	}
}

func TestEngine_LinesAndDeltas(t *testing.T) {
	tbl := mustTable(t,
		RawRow{Region: "A", Counts: []int64{1, 5, 10}},
		RawRow{Region: "B", Counts: []int64{0, 2, 3}},
	)
	e := NewEngine(tbl)

	lines, err := e.Lines(ModeAggregate)
	require.NoError(t, err)
	require.Len(t, lines, 1)
	assert.Equal(t, NationalTotalName, lines[0].Name)
	assert.Equal(t, []int{0, 1, 2}, lines[0].X)
	assert.Equal(t, []int64{1, 7, 13}, lines[0].Y)

	lines, err = e.Lines(ModeByRegion)
	require.NoError(t, err)
	require.Len(t, lines, 2)
	assert.Equal(t, "A", lines[0].Name)
	assert.Equal(t, []int64{0, 2, 3}, lines[1].Y)

	deltas, err := e.Deltas(ModeByRegion)
	require.NoError(t, err)
	assert.Equal(t, []DeltaSeries{
		{Name: "A", X: []int64{1, 5, 10}, Y: []int64{1, 4, 5}},
		{Name: "B", X: []int64{0, 2, 3}, Y: []int64{0, 2, 1}},
	}, deltas)

	deltas, err = e.Deltas(ModeAggregate)
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 6, 6}, deltas[0].Y)

	_, err = e.Lines(Mode(7))
	assert.ErrorIs(t, err, ErrUnknownMode)
}

func TestLogValue(t *testing.T) {
	assert.Equal(t, 0.0, LogValue(0))
	assert.Equal(t, 0.0, LogValue(1))
	assert.InDelta(t, 2.0, LogValue(100), 1e-12)
	assert.InDelta(t, 6.0, LogValue(1_000_000), 1e-12)

	prev := LogValue(1)
	for _, v := range []int64{2, 9, 10, 11, 999, 1000, 123456} {
		cur := LogValue(v)
		assert.Greater(t, cur, prev, "LogValue(%d)", v)
		prev = cur
	}
}

func TestMapFrame(t *testing.T) {
	tbl := mustTable(t,
		RawRow{Region: "Texas", Counts: []int64{0, 100}},
		RawRow{Region: "Diamond Princess", Counts: []int64{40, 49}},
		RawRow{Region: "Ohio", Counts: []int64{1, 10}},
	)
	codes := codeMap{"Texas": "TX", "Ohio": "OH"}

	got, err := MapFrame(tbl, 1, codes)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "TX", got[0].Code)
	assert.Equal(t, int64(100), got[0].Value)
	assert.InDelta(t, 2.0, got[0].LogValue, 1e-12)
	assert.Equal(t, "OH", got[1].Code)
	assert.InDelta(t, 1.0, got[1].LogValue, 1e-12)

	got, err = MapFrame(tbl, 0, codes)
	require.NoError(t, err)
	assert.Equal(t, 0.0, got[0].LogValue)

	_, err = MapFrame(tbl, 2, codes)
	assert.ErrorIs(t, err, ErrDayOffsetOutOfRange)
	_, err = MapFrame(tbl, -1, codes)
	assert.ErrorIs(t, err, ErrDayOffsetOutOfRange)
}

func TestMapLegend(t *testing.T) {
	l := MapLegend()
	require.Len(t, l.TickVals, 7)
	require.Len(t, l.TickText, 7)
	assert.Equal(t, "1", l.TickText[0])
	assert.Equal(t, "1M", l.TickText[6])
	assert.Equal(t, 6.0, l.TickVals[6])
}

func TestShareFrame_Example(t *testing.T) {
	tbl := mustTable(t,
		RawRow{Region: "A", Counts: []int64{1, 5, 10}},
		RawRow{Region: "B", Counts: []int64{0, 2, 3}},
	)
	got, err := ShareFrame(tbl, 2)
	require.NoError(t, err)
	assert.Equal(t, []ShareEntry{{Label: "A", Value: 10}, {Label: "B", Value: 3}}, got)
}

func TestShareFrame_Threshold(t *testing.T) {
	tbl := mustTable(t,
		RawRow{Region: "Big", Counts: []int64{49, 50}},
		RawRow{Region: "Edge", Counts: []int64{1, 0}},
		RawRow{Region: "Tiny", Counts: []int64{0, 1}},
	)

	// day 0: Edge is exactly 1/50 = 0.02, which keeps its name.
	got, err := ShareFrame(tbl, 0)
	require.NoError(t, err)
	assert.Equal(t, []ShareEntry{
		{Label: "Big", Value: 49},
		{Label: "Edge", Value: 1},
		{Label: OtherLabel, Value: 0},
	}, got)

	// day 1: both small regions fall under the threshold.
	got, err = ShareFrame(tbl, 1)
	require.NoError(t, err)
	assert.Equal(t, []ShareEntry{
		{Label: "Big", Value: 50},
		{Label: OtherLabel, Value: 0},
		{Label: OtherLabel, Value: 1},
	}, got)

	merged := MergeShares(got)
	assert.Equal(t, []ShareEntry{
		{Label: "Big", Value: 50},
		{Label: OtherLabel, Value: 1},
	}, merged)
}

func TestShareFrame_MergedSumEqualsTotal(t *testing.T) {
	tbl := mustTable(t,
		RawRow{Region: "A", Counts: []int64{500, 1000}},
		RawRow{Region: "B", Counts: []int64{3, 4}},
		RawRow{Region: "C", Counts: []int64{7, 9}},
		RawRow{Region: "D", Counts: []int64{200, 300}},
		RawRow{Region: "E", Counts: []int64{1, 1}},
	)
	total := NationalTotal(tbl)
	for d := 0; d < tbl.DayCount(); d++ {
		rows, err := ShareFrame(tbl, d)
		require.NoError(t, err)
		var sum int64
		for _, r := range MergeShares(rows) {
			sum += r.Value
		}
		assert.Equal(t, total[d], sum, "day %d", d)
	}
}

func TestShareFrame_Errors(t *testing.T) {
	tbl := mustTable(t,
		RawRow{Region: "A", Counts: []int64{0, 2}},
		RawRow{Region: "B", Counts: []int64{0, 2}},
	)
	_, err := ShareFrame(tbl, 0)
	assert.ErrorIs(t, err, ErrDegenerateTotal)

	_, err = ShareFrame(tbl, 5)
	assert.ErrorIs(t, err, ErrDayOffsetOutOfRange)
}

func TestParseMode(t *testing.T) {
	for in, want := range map[string]Mode{
		"aggregate":         ModeAggregate,
		"Total":             ModeAggregate,
		"the United States": ModeAggregate,
		"by-region":         ModeByRegion,
		"All":               ModeByRegion,
		"Individual":        ModeByRegion,
		"":                  ModeByRegion,
	} {
		got, err := ParseMode(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseMode("odd")
	assert.ErrorIs(t, err, ErrUnknownMode)

	b, err := ModeByRegion.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "by-region", string(b))
}
