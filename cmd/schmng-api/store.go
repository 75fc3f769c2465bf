package main

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/ecorvi/schmng-api/internal/service"
	"github.com/ecorvi/schmng-api/pkg/config"
	"github.com/ecorvi/schmng-api/pkg/database"
	"github.com/ecorvi/schmng-api/pkg/docstore"
)

// documentStore is the gateway selected by STORE_BACKEND plus what it needs at shutdown.
type documentStore struct {
	gateway docstore.Gateway
	ping    func(context.Context) error
	db      *sqlx.DB
}

func openStore(ctx context.Context, cfg *config.Config, metrics *service.MetricsService, logr *zap.Logger) (*documentStore, error) {
	var (
		raw docstore.Gateway
		out = &documentStore{}
	)

	switch cfg.Store.Backend {
	case config.StoreBackendPostgres:
		db, err := database.NewPostgres(ctx, cfg.Database)
		if err != nil {
			return nil, err
		}
		pg := docstore.NewPostgres(db, docstore.PostgresOptions{Notify: cfg.Store.ListenChanges, Logger: logr})
		if err := pg.Migrate(ctx); err != nil {
			_ = db.Close()
			return nil, err
		}
		if cfg.Store.ListenChanges {
			if err := pg.Listen(ctx, database.DSN(cfg.Database)); err != nil {
				_ = db.Close()
				return nil, err
			}
		}
		out.db = db
		out.ping = db.PingContext
		raw = pg
	case config.StoreBackendBolt:
		path := boltPath(cfg.Store.BoltPath)
		b, err := docstore.OpenBolt(path)
		if err != nil {
			return nil, err
		}
		logr.Info("bolt document store opened", zap.String("path", path))
		raw = b
	case config.StoreBackendMemory, "":
		logr.Warn("memory document store in use, data is lost on restart")
		raw = docstore.NewMemory()
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
	}

	timeout := config.ClampGatewayTimeout(cfg.Store.GatewayTimeout)
	out.gateway = docstore.WithObserver(docstore.WithTimeout(raw, timeout), metrics)
	return out, nil
}

// Close stops subscriptions before the pool goes away.
func (s *documentStore) Close() {
	_ = s.gateway.Close()
	if s.db != nil {
		_ = s.db.Close()
	}
}
