package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/depsentry/depsentry/internal/server"
	"github.com/depsentry/depsentry/pkg/analysis"
	"github.com/depsentry/depsentry/pkg/cache"
	"github.com/depsentry/depsentry/pkg/stages"
	"github.com/depsentry/depsentry/pkg/store"
)

// Environment variables read by the serve command.
const (
	envMongoURI  = "DEPSENTRY_MONGO_URI"
	envRedisAddr = "DEPSENTRY_REDIS_ADDR"
)

// newServeCmd creates the serve command running the HTTP API.
func newServeCmd() *cobra.Command {
	var (
		addr             string
		budget           time.Duration
		model            string
		internalPrefixes []string
		refresh          bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API server",
		Long: `Run the HTTP API server.

Exposes manifest scanning and report retrieval over HTTP. Reports are
persisted to MongoDB when DEPSENTRY_MONGO_URI is set, otherwise held in
memory. Registry responses are cached in Redis when DEPSENTRY_REDIS_ADDR
is set, otherwise on disk. Setting GEMINI_API_KEY enables agent-backed
synthesis.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), serveConfig{
				addr:             addr,
				budget:           budget,
				model:            model,
				internalPrefixes: internalPrefixes,
				refresh:          refresh,
			})
		},
	}

	cmd.Flags().StringVar(&addr, "addr", ":8080", "listen address")
	cmd.Flags().DurationVar(&budget, "budget", analysis.DefaultBudget, "total time budget per scan")
	cmd.Flags().StringVar(&model, "model", stages.DefaultSynthesisModel, "model for agent-backed synthesis")
	cmd.Flags().StringArrayVar(&internalPrefixes, "internal-prefix", nil, "private package prefix for dependency-confusion checks (repeatable)")
	cmd.Flags().BoolVar(&refresh, "refresh", false, "bypass cached registry responses")

	return cmd
}

type serveConfig struct {
	addr             string
	budget           time.Duration
	model            string
	internalPrefixes []string
	refresh          bool
}

func runServe(ctx context.Context, cfg serveConfig) error {
	logger := loggerFromContext(ctx)

	st, err := newStore(ctx, logger)
	if err != nil {
		return err
	}
	defer st.Close(context.Background())

	backend := newServerCache(ctx, logger)
	defer backend.Close()

	srv := server.New(server.Config{
		Store:            st,
		Cache:            backend,
		Logger:           logger,
		Budget:           cfg.budget,
		InternalPrefixes: cfg.internalPrefixes,
		Synthesis:        newSynthesisStage(ctx, cfg.model, logger),
		Refresh:          cfg.refresh,
	})

	httpServer := &http.Server{
		Addr:              cfg.addr,
		Handler:           srv.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", cfg.addr)
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serve: %w", err)
	}
}

// newStore picks MongoDB when configured, otherwise an in-memory store.
func newStore(ctx context.Context, logger *log.Logger) (store.Store, error) {
	uri := os.Getenv(envMongoURI)
	if uri == "" {
		logger.Warn("no DEPSENTRY_MONGO_URI set, reports are held in memory")
		return store.NewMemoryStore(), nil
	}
	st, err := store.NewMongoStore(ctx, store.MongoConfig{URI: uri})
	if err != nil {
		return nil, fmt.Errorf("connect mongodb: %w", err)
	}
	logger.Info("reports persisted to mongodb")
	return st, nil
}

// newServerCache picks Redis when configured, otherwise the file cache.
func newServerCache(ctx context.Context, logger *log.Logger) cache.Cache {
	addr := os.Getenv(envRedisAddr)
	if addr == "" {
		return newCacheBackend(false)
	}
	backend, err := cache.NewRedisCache(ctx, cache.RedisConfig{Addr: addr})
	if err != nil {
		logger.Warn("redis unavailable, falling back to file cache", "err", err)
		return newCacheBackend(false)
	}
	logger.Info("registry responses cached in redis")
	return backend
}
