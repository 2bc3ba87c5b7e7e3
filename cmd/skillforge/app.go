package main

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/michaelbrown/skillforge/internal/cache"
	"github.com/michaelbrown/skillforge/internal/checker"
	"github.com/michaelbrown/skillforge/internal/config"
	"github.com/michaelbrown/skillforge/internal/logging"
	"github.com/michaelbrown/skillforge/internal/sandbox"
	"github.com/michaelbrown/skillforge/internal/storage"
	"github.com/michaelbrown/skillforge/internal/storage/sqlstore"
	"github.com/michaelbrown/skillforge/internal/submission"
)

// app holds the components a command needs.
type app struct {
	cfg     *config.Config
	logger  *zap.SugaredLogger
	store   storage.Store
	checker *checker.Checker
	service *submission.Service
	closers []func() error
}

// newApp loads config and builds the checker pipeline. The store is
// opened only when withStore is set so that `check` works without a
// database.
func newApp(ctx context.Context, withStore bool) (*app, error) {
	cfg, err := config.LoadFile(configFlag)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	logger, err := logging.New(cfg.Logging)
	if err != nil {
		return nil, err
	}
	a := &app{cfg: cfg, logger: logger}
	a.closers = append(a.closers, func() error {
		logger.Sync()
		return nil
	})

	policy := cfg.Policy()
	sb, err := sandbox.New(cfg.Sandbox.Driver, policy)
	if err != nil {
		a.Close()
		return nil, err
	}

	a.checker = checker.New(checker.Options{
		CompilerPath:  cfg.Checker.Compiler,
		WorkspaceRoot: cfg.Checker.WorkspaceRoot,
		Sandbox:       sb,
		Policy:        policy,
		Logger:        logger.Named("checker"),
	})

	var vc cache.Cache = cache.Nop{}
	if cfg.Cache.RedisAddr != "" {
		rc, err := cache.DialRedis(ctx, cfg.Cache.RedisAddr, cfg.Cache.RedisPassword, cfg.Cache.RedisDB, cfg.Cache.TTL, logger.Named("cache"))
		if err != nil {
			// The cache is an optimization; run without it.
			logger.Warnw("Verdict cache disabled", "addr", cfg.Cache.RedisAddr, "error", err)
		} else {
			vc = rc
			a.closers = append(a.closers, rc.Close)
		}
	}

	if withStore {
		store, err := sqlstore.Open(cfg.Storage.Driver, cfg.Storage.DSN)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("opening storage: %w", err)
		}
		a.store = store
		a.closers = append(a.closers, store.Close)
	}

	a.service = submission.NewService(a.store, a.checker, vc, policy, logger.Named("submission"))
	return a, nil
}

// Close releases resources in reverse order of acquisition.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.logger.Warnw("Close failed", "error", err)
		}
	}
	a.closers = nil
}
