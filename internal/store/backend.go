package store

import (
	"context"
	"fmt"

	"github.com/roach88/roomstore/internal/config"
	"github.com/roach88/roomstore/internal/metrics"
	"github.com/roach88/roomstore/internal/record"
	"github.com/roach88/roomstore/internal/store/pebblestore"
	"github.com/roach88/roomstore/internal/store/pgstore"
	"github.com/roach88/roomstore/internal/store/redisstore"
)

// OpenBackend opens the record store selected by cfg.Driver.
func OpenBackend(ctx context.Context, cfg config.StorageConfig) (record.Store, error) {
	var (
		s   record.Store
		err error
	)
	switch cfg.Driver {
	case config.DriverSQLite, "":
		s, err = openSQLite(cfg.Path)
	case config.DriverPebble:
		s, err = openPebble(cfg)
	case config.DriverRedis:
		s, err = openRedis(ctx, cfg.URL)
	case config.DriverPostgres:
		s, err = openPostgres(ctx, cfg.URL)
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
	}
	if err != nil {
		return nil, err
	}
	return s, nil
}

func openSQLite(path string) (record.Store, error) {
	s, err := Open(path)
	if err != nil {
		return nil, err
	}
	return s, nil
}

func openPebble(cfg config.StorageConfig) (record.Store, error) {
	mode, err := pebblestore.ParseFsyncMode(cfg.Fsync)
	if err != nil {
		return nil, err
	}
	s, err := pebblestore.Open(pebblestore.Options{
		DataDir: cfg.Path,
		Fsync:   mode,
		Metrics: metrics.StorageHook{},
	})
	if err != nil {
		return nil, err
	}
	return s, nil
}

func openRedis(ctx context.Context, url string) (record.Store, error) {
	s, err := redisstore.Open(ctx, redisstore.Options{URL: url})
	if err != nil {
		return nil, err
	}
	return s, nil
}

func openPostgres(ctx context.Context, url string) (record.Store, error) {
	s, err := pgstore.Open(ctx, url, nil)
	if err != nil {
		return nil, err
	}
	return s, nil
}
