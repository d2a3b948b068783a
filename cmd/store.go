package main

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/leadimport/internal/dedup"
	"github.com/sells-group/leadimport/internal/importjob"
	"github.com/sells-group/leadimport/internal/model"
	"github.com/sells-group/leadimport/internal/resilience"
	"github.com/sells-group/leadimport/internal/store"
)

func retryConfig() resilience.RetryConfig {
	return resilience.FromRetryConfig(
		cfg.Retry.MaxAttempts,
		cfg.Retry.InitialBackoffMs,
		cfg.Retry.MaxBackoffMs,
		cfg.Retry.Multiplier,
		0,
	)
}

func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		path := cfg.Store.SQLitePath
		if path == "" {
			path = "leadimport.db"
		}
		return store.NewSQLite(path)
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL, &store.PoolConfig{
			MaxConns: cfg.Store.MaxConns,
			MinConns: cfg.Store.MinConns,
		}, retryConfig())
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}

// initService validates cfg for mode, opens and migrates the store and builds
// the import service. The caller closes the returned store.
func initService(ctx context.Context, mode string) (*importjob.Service, store.Store, error) {
	if err := cfg.Validate(mode); err != nil {
		return nil, nil, err
	}

	st, err := initStore(ctx)
	if err != nil {
		return nil, nil, eris.Wrap(err, "init store")
	}
	if err := st.Migrate(ctx); err != nil {
		st.Close() //nolint:errcheck
		return nil, nil, eris.Wrap(err, "migrate store")
	}

	svc, err := importjob.New(st, importjob.Config{
		Options: dedup.Options{
			ContactFields: cfg.Import.ContactUpdatableFields,
			CompanyFields: cfg.Import.CompanyUpdatableFields,
		},
		DefaultStrategy: model.Strategy(cfg.Import.DefaultStrategy),
		MaxRows:         cfg.Import.MaxRows,
		Retry:           retryConfig(),
	})
	if err != nil {
		st.Close() //nolint:errcheck
		return nil, nil, err
	}
	return svc, st, nil
}
