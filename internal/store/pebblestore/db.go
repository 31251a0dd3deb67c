package pebblestore

import (
	"errors"
	"sync"
	"time"

	"github.com/cockroachdb/pebble"
)

// FsyncMode defines durability behavior for write operations.
type FsyncMode int

const (
	FsyncModeUnspecified FsyncMode = iota
	// FsyncModeAlways requests a WAL fsync on each committed batch.
	FsyncModeAlways
	// FsyncModeInterval enables group-commit by allowing Pebble to coalesce WAL
	// syncs for operations within the configured interval.
	FsyncModeInterval
	// FsyncModeNever avoids forcing WAL syncs from the application.
	FsyncModeNever
)

// ParseFsyncMode maps a configuration string to a FsyncMode.
// The empty string selects FsyncModeAlways.
func ParseFsyncMode(s string) (FsyncMode, error) {
	switch s {
	case "", "always":
		return FsyncModeAlways, nil
	case "interval":
		return FsyncModeInterval, nil
	case "never":
		return FsyncModeNever, nil
	default:
		return FsyncModeUnspecified, errors.New("pebble: unknown fsync mode " + s)
	}
}

// MetricsHook is a minimal hook surface for storage observations.
type MetricsHook interface {
	ObserveRead(elapsed time.Duration, bytes int)
	ObserveBatchCommit(elapsed time.Duration, bytes int)
}

// NoopMetrics is used when no metrics hook is provided.
type NoopMetrics struct{}

func (NoopMetrics) ObserveRead(time.Duration, int)        {}
func (NoopMetrics) ObserveBatchCommit(time.Duration, int) {}

// db wraps a Pebble database instance with fsync policy and basic helpers.
// inner is nil once the database is closed; every helper then fails with
// pebble.ErrClosed.
type db struct {
	mu        sync.RWMutex
	inner     *pebble.DB
	writeSync bool
	metrics   MetricsHook
}

func openDB(opts Options) (*db, error) {
	if opts.DataDir == "" {
		return nil, errors.New("pebble: Options.DataDir is required")
	}

	po := opts.PebbleOptions
	if po == nil {
		po = &pebble.Options{}
	}

	switch opts.Fsync {
	case FsyncModeInterval:
		if opts.FsyncInterval <= 0 {
			opts.FsyncInterval = 5 * time.Millisecond
		}
		po.WALMinSyncInterval = func() time.Duration { return opts.FsyncInterval }
	case FsyncModeNever:
		// Neither set WALMinSyncInterval nor Sync on writes.
	default:
		// Sync on each commit; a write must be durable before the handler completes.
		opts.Fsync = FsyncModeAlways
	}

	inner, err := pebble.Open(opts.DataDir, po)
	if err != nil {
		return nil, err
	}

	metrics := opts.Metrics
	if metrics == nil {
		metrics = NoopMetrics{}
	}

	return &db{
		inner:     inner,
		writeSync: opts.Fsync == FsyncModeAlways,
		metrics:   metrics,
	}, nil
}

func (d *db) close() error {
	if d == nil {
		return nil
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.inner == nil {
		return nil
	}
	err := d.inner.Close()
	d.inner = nil
	return err
}

func (d *db) isOpen() bool {
	if d == nil {
		return false
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.inner != nil
}

// update fills a fresh batch with fn and commits it with the configured
// fsync policy.
func (d *db) update(fn func(b *pebble.Batch) error) error {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.inner == nil {
		return pebble.ErrClosed
	}

	b := d.inner.NewBatch()
	defer b.Close()
	if err := fn(b); err != nil {
		return err
	}

	start := time.Now()
	size := b.Len()
	defer func() { d.metrics.ObserveBatchCommit(time.Since(start), size) }()

	syncMode := pebble.NoSync
	if d.writeSync {
		syncMode = pebble.Sync
	}
	return b.Commit(syncMode)
}

// get copies the value for key. Returns pebble.ErrNotFound when absent.
func (d *db) get(key []byte) ([]byte, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.inner == nil {
		return nil, pebble.ErrClosed
	}

	start := time.Now()
	val, closer, err := d.inner.Get(key)
	if err != nil {
		return nil, err
	}
	defer closer.Close()
	buf := append([]byte(nil), val...)
	d.metrics.ObserveRead(time.Since(start), len(buf))
	return buf, nil
}

// scanPrefix calls fn with a copy of every key/value pair under prefix.
func (d *db) scanPrefix(prefix []byte, fn func(key, value []byte)) error {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.inner == nil {
		return pebble.ErrClosed
	}

	start := time.Now()
	iter, err := d.inner.NewIter(&pebble.IterOptions{
		LowerBound: prefix,
		UpperBound: prefixEnd(prefix),
	})
	if err != nil {
		return err
	}

	total := 0
	for iter.First(); iter.Valid(); iter.Next() {
		key := append([]byte(nil), iter.Key()...)
		value := append([]byte(nil), iter.Value()...)
		total += len(value)
		fn(key, value)
	}
	d.metrics.ObserveRead(time.Since(start), total)
	return iter.Close()
}
