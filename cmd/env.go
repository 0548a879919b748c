package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/buyermatch/internal/rank"
	"github.com/sells-group/buyermatch/internal/roster"
	"github.com/sells-group/buyermatch/internal/stats"
	"github.com/sells-group/buyermatch/internal/store"
)

// env wires the storage backend, both caches, and the ranking engine for a
// command invocation.
type env struct {
	Store  store.Store
	Roster *roster.Cache
	Stats  *stats.Cache
	Engine *rank.Engine
}

func initEnv(ctx context.Context) (*env, error) {
	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}

	bands := rank.DefaultBands()
	if cfg.Rank.BandsFile != "" {
		bands, err = rank.LoadBands(cfg.Rank.BandsFile)
		if err != nil {
			st.Close()
			return nil, err
		}
	}

	rosterCache := roster.New(st, roster.Config{
		TTL:                 time.Duration(cfg.Roster.TTLHours) * time.Hour,
		DegradedConcurrency: cfg.Roster.DegradedConcurrency,
	})
	statsCache := stats.New(st, stats.Config{
		TTL: time.Duration(cfg.Stats.TTLHours) * time.Hour,
	})

	return &env{
		Store:  st,
		Roster: rosterCache,
		Stats:  statsCache,
		Engine: rank.NewEngine(rosterCache, statsCache, bands),
	}, nil
}

func (e *env) Close() {
	_ = e.Store.Close()
}

func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		dsn := cfg.Store.DatabaseURL
		if dsn == "" {
			dsn = "buyermatch.db"
		}
		return store.NewSQLite(dsn)
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL, &store.PoolConfig{
			MaxConns:             int32(cfg.Store.MaxConns),
			MinConns:             int32(cfg.Store.MinConns),
			StatementTimeoutSecs: cfg.Store.StatementTimeoutSecs,
			HistoryQueryQPS:      cfg.Store.HistoryQueryQPS,
		})
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}
