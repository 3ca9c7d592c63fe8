package series

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

var (
	// load-time, fatal
	ErrMalformedDateColumn = errors.New("malformed date column")
	ErrNonContiguousDates  = errors.New("date columns are not contiguous from epoch")
	ErrEmptyDataset        = errors.New("empty dataset")

	// per-request, recoverable
	ErrDayOffsetOutOfRange = errors.New("day offset out of range")
	ErrDegenerateTotal     = errors.New("national total is zero")
	ErrUnknownMode         = errors.New("unknown display mode")
)

// LoadError names the column (or row) that made a load fail.
type LoadError struct {
	Column string
	Err    error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("column %q: %v", e.Column, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

// RawRow is one source record. Counts[i] belongs to RawTable.DateLabels[i].
type RawRow struct {
	Region string
	Counts []int64
}

// RawTable is the loader's output: a shared ordered list of date labels and
// one row per source record (regions may repeat).
type RawTable struct {
	DateLabels []string
	Rows       []RawRow
}

// Table is the normalized, immutable form of the dataset: one cumulative
// series per distinct region, all of the same length.
type Table struct {
	id       string
	epoch    time.Time
	loadedAt time.Time
	regions  []string
	series   map[string][]int64
	days     int
}

// ID identifies this build of the table. Two loads of the same data get
// different IDs.
func (t *Table) ID() string { return t.id }

// Epoch is the calendar date of day offset 0.
func (t *Table) Epoch() time.Time { return t.epoch }

// LoadedAt is when the table was built, in UTC.
func (t *Table) LoadedAt() time.Time { return t.loadedAt }

// DayCount is the length of every series in the table.
func (t *Table) DayCount() int { return t.days }

// RegionCount is the number of distinct regions.
func (t *Table) RegionCount() int { return len(t.regions) }

// Regions returns region names in first-seen order.
func (t *Table) Regions() []string {
	out := make([]string, len(t.regions))
	copy(out, t.regions)
	return out
}

// Series returns a copy of the cumulative series for region.
func (t *Table) Series(region string) ([]int64, bool) {
	s, ok := t.series[region]
	if !ok {
		return nil, false
	}
	out := make([]int64, len(s))
	copy(out, s)
	return out, true
}

// value returns the cumulative count for region on day. The caller must
// have validated day.
func (t *Table) value(region string, day int) int64 {
	return t.series[region][day]
}

// Date converts a day offset back into a calendar date.
func (t *Table) Date(day int) time.Time {
	return t.epoch.AddDate(0, 0, day)
}

// CheckDay reports ErrDayOffsetOutOfRange for offsets outside [0, DayCount).
func (t *Table) CheckDay(day int) error {
	if day < 0 || day >= t.days {
		return fmt.Errorf("%w: %d not in [0, %d)", ErrDayOffsetOutOfRange, day, t.days)
	}
	return nil
}

func newTable(epoch time.Time, regions []string, series map[string][]int64, days int) *Table {
	return &Table{
		id:       uuid.NewString(),
		epoch:    epoch,
		loadedAt: time.Now().UTC(),
		regions:  regions,
		series:   series,
		days:     days,
	}
}
