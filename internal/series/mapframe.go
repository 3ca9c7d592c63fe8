package series

import "math"

// CodeLookup maps a full region name to its short map code.
type CodeLookup interface {
	Lookup(name string) (string, bool)
}

// MapEntry is one region's value on the choropleth.
type MapEntry struct {
	Region   string  `json:"region"`
	Code     string  `json:"code"`
	Value    int64   `json:"value"`
	LogValue float64 `json:"log_value"`
}

// Legend is the fixed colour-bar legend for LogValue: tick i sits at log
// position i and reads 10^i.
type Legend struct {
	TickVals []float64 `json:"tickvals"`
	TickText []string  `json:"ticktext"`
}

// Colorscale is the sequential blue scale the map is drawn with, light to
// dark.
var Colorscale = []string{
	"#f7fbff", "#ebf3fb", "#deebf7", "#d2e3f3", "#c6dbef", "#b3d2e9", "#9ecae1",
	"#85bcdb", "#6baed6", "#57a0ce", "#4292c6", "#3082be", "#2171b5", "#1361a9",
	"#08519c", "#0b4083", "#08306b",
}

// MapLegend labels the log10 axis in case counts, 1 through 1M.
func MapLegend() Legend {
	return Legend{
		TickVals: []float64{0, 1, 2, 3, 4, 5, 6},
		TickText: []string{"1", "10", "100", "1k", "10k", "100k", "1M"},
	}
}

// LogValue is log10(v) for positive v and 0 otherwise, so the low end of
// the colour scale is always defined.
func LogValue(v int64) float64 {
	if v <= 0 {
		return 0
	}
	return math.Log10(float64(v))
}

// MapFrame returns one entry per mappable region for day, in table order.
// Regions unknown to codes (cruise ships, unlisted territories) are
// skipped.
func MapFrame(t *Table, day int, codes CodeLookup) ([]MapEntry, error) {
	if err := t.CheckDay(day); err != nil {
		return nil, err
	}
	out := make([]MapEntry, 0, len(t.regions))
	for _, r := range t.regions {
		code, ok := codes.Lookup(r)
		if !ok {
			continue
		}
		v := t.value(r, day)
		out = append(out, MapEntry{Region: r, Code: code, Value: v, LogValue: LogValue(v)})
	}
	return out, nil
}
