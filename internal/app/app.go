package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/heartmarshall/discogs-dumpload/internal/adapter/dumpxml"
	"github.com/heartmarshall/discogs-dumpload/internal/adapter/postgres"
	"github.com/heartmarshall/discogs-dumpload/internal/adapter/postgres/dump"
	"github.com/heartmarshall/discogs-dumpload/internal/adapter/postgres/staging"
	"github.com/heartmarshall/discogs-dumpload/internal/adapter/s3/dumpbucket"
	"github.com/heartmarshall/discogs-dumpload/internal/app/loader"
	"github.com/heartmarshall/discogs-dumpload/internal/config"
	"github.com/heartmarshall/discogs-dumpload/internal/domain"
	"github.com/heartmarshall/discogs-dumpload/internal/metrics"
	"github.com/heartmarshall/discogs-dumpload/internal/service/catalog"
	"github.com/heartmarshall/discogs-dumpload/internal/service/resolver"
)

// App holds the wired components shared by the CLI commands.
type App struct {
	Config  *config.Config
	Log     *slog.Logger
	Pool    *pgxpool.Pool
	Metrics *metrics.Metrics

	Dumps    *dump.Repo
	Bucket   *dumpbucket.Bucket
	Resolver *resolver.Service
	Catalog  *catalog.Service
}

// New connects to the database and the dump bucket and wires the services.
// The caller must Close the returned App.
func New(ctx context.Context, cfg *config.Config, log *slog.Logger) (*App, error) {
	pool, err := postgres.NewPool(ctx, cfg.Database, cfg.Loader.Workers)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	m := metrics.New()
	bucket, err := dumpbucket.New(ctx, log, cfg.Catalog, cfg.Loader.DataDir, m)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("dump bucket: %w", err)
	}

	dumps := dump.New(pool)

	return &App{
		Config:   cfg,
		Log:      log,
		Pool:     pool,
		Metrics:  m,
		Dumps:    dumps,
		Bucket:   bucket,
		Resolver: resolver.NewService(log, dumps, cfg.Loader.FloorYear),
		Catalog:  catalog.NewService(log, bucket, dumps),
	}, nil
}

// Loader builds a pipeline loader; upsert overrides the configured mode when set.
func (a *App) Loader(upsert bool) *loader.Loader {
	writer := staging.New(a.Log, a.Pool, postgres.NewTxManager(a.Pool))
	return loader.New(a.Log, a.Bucket, OpenDump, writer, a.Metrics, loader.Config{
		BatchSize:   a.Config.Loader.BatchSize,
		Workers:     a.Config.Loader.Workers,
		Upsert:      upsert || a.Config.Loader.Upsert,
		KeepStaging: a.Config.Loader.KeepStaging,
	})
}

// Close releases the database pool.
func (a *App) Close() {
	a.Pool.Close()
}

// OpenDump opens a downloaded dump file as a loader record stream.
func OpenDump(path string, t domain.EntityType) (loader.RecordStream, error) {
	r, err := dumpxml.Open(path, t)
	if err != nil {
		return nil, err
	}
	return r, nil
}
