package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"meownopoly/internal/api"
	"meownopoly/internal/board"
	"meownopoly/internal/broadcast"
	"meownopoly/internal/config"
	"meownopoly/internal/game"
	"meownopoly/internal/htmx"
	"meownopoly/internal/logging"
	"meownopoly/internal/store"
	"meownopoly/internal/store/sqlite"
	"meownopoly/internal/ws"
)

func main() {
	cfg, err := config.Parse()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Fatal("server stopped", zap.Error(err))
	}
}

func run(ctx context.Context, cfg config.Config, logger *zap.Logger) error {
	b := board.Classic()
	if cfg.BoardPath != "" {
		var err error
		if b, err = board.Load(cfg.BoardPath); err != nil {
			return fmt.Errorf("load board: %w", err)
		}
	}

	st, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	// Initialize layers
	hub := broadcast.NewHub(logger.Named("hub"), broadcast.DefaultBuffer)
	gameService := game.NewService(b, cfg.Rules(), st, hub, logger.Named("game"),
		game.WithMatchSize(cfg.MatchSize),
		game.WithRetention(cfg.SessionRetention),
	)

	// Setup routes
	mux := http.NewServeMux()
	api.NewHandler(gameService, logger.Named("api")).RegisterRoutes(mux)
	ws.NewHandler(gameService, logger.Named("ws"), cfg.AllowedOrigins).RegisterRoutes(mux)
	htmx.NewHandler(gameService, logger.Named("htmx")).RegisterRoutes(mux)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           api.LogMiddleware(logger.Named("http"), api.CORSMiddleware(cfg.AllowedOrigins, mux)),
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("server starting",
			zap.String("addr", cfg.Addr),
			zap.String("board", b.ID),
			zap.String("store", cfg.Store),
			zap.Int("matchSize", cfg.MatchSize))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		return gameService.RunClock(gctx, cfg.TickInterval)
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

func openStore(ctx context.Context, cfg config.Config) (store.Store, error) {
	if cfg.Store == config.StoreMemory {
		return store.NewMemory(), nil
	}
	db, err := sqlite.Open(ctx, cfg.StorePath)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	return db, nil
}
