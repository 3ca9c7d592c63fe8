package loader

import (
	"compress/gzip"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"covidash/internal/metrics"
	"covidash/internal/series"
	"covidash/pkg/utils"
)

// Trimmed from time_series_covid19_confirmed_US.csv.
const sampleCSV = `UID,iso2,iso3,code3,FIPS,Admin2,Province_State,Country_Region,Lat,Long_,Combined_Key,1/22/20,1/23/20,1/24/20
84048001,US,USA,840,48001,Anderson,Texas,US,31.81,-95.65,"Anderson, Texas, US",0,1,2
84048003,US,USA,840,48003,Andrews,Texas,US,32.30,-102.63,"Andrews, Texas, US",1,1,4
84039001,US,USA,840,39001,Adams,Ohio,US,38.84,-83.47,"Adams, Ohio, US",0,0,1
84088888,US,USA,840,88888,,Diamond Princess,US,0,0,"Diamond Princess, US",40,45,49
`

func TestParseCSV(t *testing.T) {
	raw, err := ParseCSV(strings.NewReader(sampleCSV), ParseOptions{})
	require.NoError(t, err)
	assert.Equal(t, []string{"1/22/20", "1/23/20", "1/24/20"}, raw.DateLabels)
	require.Len(t, raw.Rows, 4)
	assert.Equal(t, series.RawRow{Region: "Texas", Counts: []int64{1, 1, 4}}, raw.Rows[1])
	assert.Equal(t, "Diamond Princess", raw.Rows[3].Region)
}

func TestParseCSV_UnknownColumnBecomesDate(t *testing.T) {
	in := "Province_State,Notes,1/22/20\nOhio,0,1\n"
	raw, err := ParseCSV(strings.NewReader(in), ParseOptions{})
	require.NoError(t, err)
	assert.Equal(t, []string{"Notes", "1/22/20"}, raw.DateLabels)

	_, err = series.Normalize(raw, series.NormalizeOptions{})
	assert.True(t, errors.Is(err, series.ErrMalformedDateColumn), "got %v", err)
}

func TestParseCSV_Cells(t *testing.T) {
	in := "\ufeffProvince_State,1/22/20,1/23/20,1/24/20\nOhio,,2.0,3\n"
	raw, err := ParseCSV(strings.NewReader(in), ParseOptions{})
	require.NoError(t, err)
	assert.Equal(t, []int64{0, 2, 3}, raw.Rows[0].Counts)

	for _, bad := range []string{"-1", "lots", "NaN"} {
		_, err := ParseCSV(strings.NewReader("Province_State,1/22/20\nOhio,"+bad+"\n"), ParseOptions{})
		assert.Error(t, err, bad)
	}
}

func TestParseCSV_MissingRegionColumn(t *testing.T) {
	_, err := ParseCSV(strings.NewReader("State,1/22/20\nOhio,1\n"), ParseOptions{})
	assert.ErrorContains(t, err, "Province_State")

	raw, err := ParseCSV(strings.NewReader("State,1/22/20\nOhio,1\n"), ParseOptions{RegionColumn: "State"})
	require.NoError(t, err)
	assert.Equal(t, "Ohio", raw.Rows[0].Region)
}

func TestParseCSV_Empty(t *testing.T) {
	_, err := ParseCSV(strings.NewReader(""), ParseOptions{})
	assert.ErrorIs(t, err, series.ErrEmptyDataset)
}

func TestLoader_HTTP(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/csv")
		_, _ = w.Write([]byte(sampleCSV))
	}))
	defer srv.Close()

	l := New(nil, NewHTTPSource(srv.URL, 0))
	l.Metrics = metrics.New()
	tbl, err := l.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"Texas", "Ohio", "Diamond Princess"}, tbl.Regions())

	tx, _ := tbl.Series("Texas")
	assert.Equal(t, []int64{1, 2, 6}, tx)
}

func TestLoader_FallsBackToFile(t *testing.T) {
	down := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer down.Close()

	p := filepath.Join(t.TempDir(), "confirmed.csv.gz")
	f, err := os.Create(p)
	require.NoError(t, err)
	gw := gzip.NewWriter(f)
	_, err = gw.Write([]byte(sampleCSV))
	require.NoError(t, err)
	require.NoError(t, gw.Close())
	require.NoError(t, f.Close())

	l := New(nil, NewHTTPSource(down.URL, 0), NewFileSource(p))
	tbl, err := l.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, tbl.DayCount())
}

func TestLoader_AllSourcesFail(t *testing.T) {
	l := New(nil, NewFileSource(filepath.Join(t.TempDir(), "missing.csv")))
	_, err := l.Load(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestLoader_ParseErrorFallsThrough(t *testing.T) {
	bad := filepath.Join(t.TempDir(), "bad.csv")
	require.NoError(t, os.WriteFile(bad, []byte("Province_State,1/22/20\nOhio,-3\n"), 0o644))
	good := filepath.Join(t.TempDir(), "good.csv")
	require.NoError(t, os.WriteFile(good, []byte(sampleCSV), 0o644))

	l := New(nil, NewFileSource(bad), NewFileSource(good))
	tbl, err := l.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, tbl.DayCount())
	assert.Equal(t, []string{"Texas", "Ohio", "Diamond Princess"}, tbl.Regions())

	_, err = New(nil, NewFileSource(bad)).Load(context.Background())
	assert.ErrorContains(t, err, "negative count")
}

func TestLoader_NormalizeErrorIsFatal(t *testing.T) {
	p := filepath.Join(t.TempDir(), "bad.csv")
	require.NoError(t, os.WriteFile(p, []byte("Province_State,13/45/2020\nOhio,1\n"), 0o644))
	good := filepath.Join(t.TempDir(), "good.csv")
	require.NoError(t, os.WriteFile(good, []byte(sampleCSV), 0o644))

	l := New(nil, NewFileSource(p), NewFileSource(good))
	_, err := l.Load(context.Background())
	assert.ErrorIs(t, err, series.ErrMalformedDateColumn)
}

func TestLoader_NoSources(t *testing.T) {
	_, err := New(nil).Load(context.Background())
	assert.Error(t, err)
}

func TestFromConfig(t *testing.T) {
	p := filepath.Join(t.TempDir(), "confirmed.csv")
	require.NoError(t, os.WriteFile(p, []byte(sampleCSV), 0o644))

	cfg := utils.DefaultConfig()
	cfg.SourceURL = ""
	cfg.SourceFile = p
	l, err := FromConfig(cfg, nil, nil)
	require.NoError(t, err)
	require.Len(t, l.Sources, 1)

	tbl, err := l.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "2020-01-22", tbl.Epoch().Format("2006-01-02"))

	cfg.SourceFile = ""
	_, err = FromConfig(cfg, nil, nil)
	assert.Error(t, err)

	cfg.SourceFile = p
	cfg.Epoch = "22 Jan"
	_, err = FromConfig(cfg, nil, nil)
	assert.Error(t, err)
}
