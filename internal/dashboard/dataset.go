package dashboard

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"covidash/internal/series"
	synchub "covidash/internal/sync"
)

// ErrNotLoaded is returned by every view until the first load succeeds.
var ErrNotLoaded = errors.New("dataset not loaded")

// TableLoader builds a complete table; *loader.Loader implements it.
type TableLoader interface {
	Load(ctx context.Context) (*series.Table, error)
}

// Publisher receives an event per successful load; *sync.Hub implements it.
type Publisher interface {
	Publish(ev synchub.DatasetEvent)
}

// Dataset holds the current table. A table is never modified: a reload
// builds a new one and swaps the pointer, so readers see either the old
// table or the new one, never a mix.
type Dataset struct {
	loader    TableLoader
	publisher Publisher
	logger    *zap.Logger

	current  atomic.Pointer[series.Engine]
	reloadMu sync.Mutex
}

func NewDataset(loader TableLoader, publisher Publisher, logger *zap.Logger) *Dataset {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dataset{loader: loader, publisher: publisher, logger: logger}
}

// Engine returns the engine of the current table.
func (d *Dataset) Engine() (*series.Engine, error) {
	e := d.current.Load()
	if e == nil {
		return nil, ErrNotLoaded
	}
	return e, nil
}

// Set installs t as the current table and announces it.
func (d *Dataset) Set(t *series.Table) {
	d.current.Store(series.NewEngine(t))
	if d.publisher != nil {
		d.publisher.Publish(synchub.DatasetEvent{
			Type:     synchub.EventDatasetLoaded,
			TableID:  t.ID(),
			Regions:  t.RegionCount(),
			DayCount: t.DayCount(),
			LastDate: t.Date(t.DayCount() - 1).Format("2006-01-02"),
			At:       t.LoadedAt(),
		})
	}
}

// Reload runs the loader and installs the result. On failure the previous
// table, if any, stays current. Concurrent calls are serialized.
func (d *Dataset) Reload(ctx context.Context) (*series.Table, error) {
	if d.loader == nil {
		return nil, errors.New("dataset: no loader")
	}
	d.reloadMu.Lock()
	defer d.reloadMu.Unlock()

	t, err := d.loader.Load(ctx)
	if err != nil {
		d.logger.Warn("reload failed, keeping previous table", zap.Error(err))
		return nil, err
	}
	d.Set(t)
	return t, nil
}

// Refresh reloads every interval until ctx is done.
func (d *Dataset) Refresh(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if t, err := d.Reload(ctx); err == nil {
				d.logger.Info("dataset refreshed", zap.String("table_id", t.ID()))
			}
		}
	}
}
