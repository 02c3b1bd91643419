// Package backend opens the storage collection selected by configuration.
package backend

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/tendant/simple-idm-docstore/internal/config"
	"github.com/tendant/simple-idm-docstore/pkg/storage"
	"github.com/tendant/simple-idm-docstore/pkg/storage/instrumented"
	"github.com/tendant/simple-idm-docstore/pkg/storage/memory"
	"github.com/tendant/simple-idm-docstore/pkg/storage/redisdoc"
	"github.com/tendant/simple-idm-docstore/pkg/storage/sqldoc"
)

// Backend is an opened, provisioned collection and the connections behind it.
type Backend struct {
	Collection storage.Collection
	Name       string

	closers []func() error
}

// Open connects to the configured backend and provisions its collection.
// When metrics is non-nil the collection is wrapped with instrumentation.
func Open(ctx context.Context, cfg *config.Config, metrics *instrumented.Metrics, logger *slog.Logger) (*Backend, error) {
	if logger == nil {
		logger = slog.Default()
	}

	b := &Backend{Name: cfg.StorageBackend}
	coll, err := b.open(ctx, cfg)
	if err != nil {
		_ = b.Close()
		return nil, err
	}

	if metrics != nil {
		coll = instrumented.Wrap(coll, metrics, logger)
	}
	if p, ok := coll.(storage.Provisioner); ok {
		if err := p.EnsureCollection(ctx); err != nil {
			_ = b.Close()
			return nil, fmt.Errorf("provision %s collection: %w", b.Name, err)
		}
	}

	b.Collection = coll
	logger.Info("storage backend ready", "backend", b.Name, "collection", cfg.DBTable)
	return b, nil
}

func (b *Backend) open(ctx context.Context, cfg *config.Config) (storage.Collection, error) {
	switch cfg.StorageBackend {
	case config.BackendMemory:
		return memory.New(), nil

	case config.BackendPostgres:
		db, err := sqldoc.OpenPostgres(ctx, sqldoc.PostgresConfig{
			Host:     cfg.DBHost,
			Port:     cfg.DBPort,
			User:     cfg.DBUser,
			Password: cfg.DBPassword,
			DBName:   cfg.DBName,
			SSLMode:  cfg.DBSSLMode,
		})
		if err != nil {
			return nil, err
		}
		b.closers = append(b.closers, db.Close)
		return sqldoc.New(db, sqldoc.Postgres, cfg.DBTable)

	case config.BackendSQLite:
		db, err := sqldoc.OpenSQLite(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		b.closers = append(b.closers, db.Close)
		return sqldoc.New(db, sqldoc.SQLite, cfg.DBTable)

	case config.BackendRedis:
		rdb, err := redisdoc.NewClient(ctx, cfg.RedisURL)
		if err != nil {
			return nil, err
		}
		b.closers = append(b.closers, rdb.Close)
		return redisdoc.New(rdb, cfg.RedisKeyPrefix), nil

	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.StorageBackend)
	}
}

// Close releases every connection the backend opened.
func (b *Backend) Close() error {
	var errs []error
	for i := len(b.closers) - 1; i >= 0; i-- {
		errs = append(errs, b.closers[i]())
	}
	b.closers = nil
	return errors.Join(errs...)
}
