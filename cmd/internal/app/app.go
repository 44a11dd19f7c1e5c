// Package app wires the VidTube auth server runtime: config, logging,
// backing stores, and HTTP routes.
//
// It is intentionally small and deterministic to keep behavior predictable.
package app

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/hamdanahmadkhan101-tech/VidTube-sub001/cmd/identity"
	authapi "github.com/hamdanahmadkhan101-tech/VidTube-sub001/cmd/internal/auth/api"
	"github.com/hamdanahmadkhan101-tech/VidTube-sub001/cmd/internal/auth/session"
)

// Store is a small app-level lifecycle abstraction for backing resources
// that need a graceful close.
type Store interface {
	Close(ctx context.Context) error
}

// nopStore is used for pure in-memory mode.
type nopStore struct{}

func (nopStore) Close(_ context.Context) error { return nil }

// App is the VidTube auth server runtime.
type App struct {
	cfg Config
	log Logger

	store  Store
	dbPool *pgxpool.Pool
	rdb    *redis.Client

	auth           *authapi.Handler
	metricsHandler http.Handler
}

// New constructs a fully wired App instance from config and logger.
//
// Store selection: user records live in Postgres when VIDTUBE_DATABASE_URL
// is set, otherwise in process memory. Sessions prefer Redis, then
// Postgres, then memory.
func New(ctx context.Context, cfg Config, log Logger) (*App, error) {
	if log == nil {
		log = NewLogger(cfg.LogLevel, cfg.LogFormat)
	}

	if err := ValidateSecurityConfig(cfg); err != nil {
		return nil, err
	}

	var (
		dbPool *pgxpool.Pool
		rdb    *redis.Client
		users  identity.Store
	)
	closeAll := func() {
		if rdb != nil {
			_ = rdb.Close()
		}
		if dbPool != nil {
			dbPool.Close()
		}
	}

	if cfg.DatabaseURL != "" {
		pool, err := NewDBPool(ctx, cfg)
		if err != nil {
			return nil, err
		}
		dbPool = pool

		pg, err := identity.NewPostgresStore(pool)
		if err != nil {
			closeAll()
			return nil, err
		}
		if cfg.DBEnsureSchema {
			if err := pg.EnsureSchema(ctx); err != nil {
				closeAll()
				return nil, err
			}
		}
		users = pg
		log.Info("identity.store", "backend", "postgres")
	} else {
		users = identity.NewMemoryStore()
		log.Info("identity.store", "backend", "memory")
	}

	var sessStore session.Store
	switch {
	case cfg.RedisURL != "":
		client, err := NewRedisClient(ctx, cfg)
		if err != nil {
			closeAll()
			return nil, err
		}
		rdb = client
		store, err := session.NewRedisStore(rdb, "vidtube")
		if err != nil {
			closeAll()
			return nil, err
		}
		sessStore = store
		log.Info("session.store", "backend", "redis")
	case dbPool != nil:
		store, err := session.NewPostgresStore(dbPool)
		if err != nil {
			closeAll()
			return nil, err
		}
		if cfg.DBEnsureSchema {
			if err := store.EnsureSchema(ctx); err != nil {
				closeAll()
				return nil, err
			}
		}
		sessStore = store
		log.Info("session.store", "backend", "postgres")
	default:
		sessStore = session.NewMemoryStore()
		log.Info("session.store", "backend", "memory")
	}

	verifier, err := identity.NewVerifier(users)
	if err != nil {
		closeAll()
		return nil, err
	}

	sessCfg, err := session.FromEnv()
	if err != nil {
		closeAll()
		return nil, err
	}
	codec, err := session.NewCodec(sessCfg)
	if err != nil {
		closeAll()
		return nil, err
	}
	sessions, err := session.NewManager(sessCfg, codec, verifier, sessStore, log)
	if err != nil {
		closeAll()
		return nil, err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := authapi.NewMetrics(reg)

	auth, err := authapi.NewHandler(log, authapi.LoadConfigFromEnv(), users, verifier, sessions, metrics)
	if err != nil {
		closeAll()
		return nil, err
	}

	return &App{
		cfg:            cfg,
		log:            log,
		store:          backingStore{pool: dbPool, rdb: rdb},
		dbPool:         dbPool,
		rdb:            rdb,
		auth:           auth,
		metricsHandler: promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
	}, nil
}

// Run starts the HTTP server and blocks until context cancellation or fatal
// server error.
func (a *App) Run(ctx context.Context) error {
	mux := http.NewServeMux()
	registerHTTP(mux, a.log, a.cfg, a.dbPool, a.rdb, a.auth, a.metricsHandler)

	srv := &http.Server{
		Addr:              a.cfg.HTTPAddr,
		Handler:           WithRequestLogging(mux, a.log),
		ReadHeaderTimeout: nonZeroDuration(a.cfg.ReadHeaderTimeout, 5*time.Second),
		ReadTimeout:       nonZeroDuration(a.cfg.ReadTimeout, 15*time.Second),
		WriteTimeout:      nonZeroDuration(a.cfg.WriteTimeout, 15*time.Second),
		IdleTimeout:       nonZeroDuration(a.cfg.IdleTimeout, 60*time.Second),
		MaxHeaderBytes:    nonZeroInt(a.cfg.MaxHeaderBytes, 1<<20),
	}

	a.log.Info("server.start",
		"addr", a.cfg.HTTPAddr,
		"db_enabled", a.dbPool != nil,
		"redis_enabled", a.rdb != nil,
	)

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		a.log.Info("server.stop", "reason", "context_done")
	case err := <-errCh:
		a.log.Error("server.fail", "err", err)
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.log.Error("server.shutdown.fail", "err", err)
		return err
	}

	if err := a.store.Close(shutdownCtx); err != nil {
		a.log.Error("store.close.fail", "err", err)
	}

	a.log.Info("server.stopped")
	return nil
}

func nonZeroDuration(v, def time.Duration) time.Duration {
	if v <= 0 {
		return def
	}
	return v
}

func nonZeroInt(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}

// backingStore owns the connection lifecycles; the identity/session stores
// built on top of them are close-free.
type backingStore struct {
	pool *pgxpool.Pool
	rdb  *redis.Client
}

func (s backingStore) Close(_ context.Context) error {
	if s.rdb != nil {
		_ = s.rdb.Close()
	}
	if s.pool != nil {
		s.pool.Close()
	}
	return nil
}
