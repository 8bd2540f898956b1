package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"

	"github.com/Vasu1712/scenyx-chatsync/internal/api/dms"
	"github.com/Vasu1712/scenyx-chatsync/internal/auth"
	"github.com/Vasu1712/scenyx-chatsync/internal/config"
	"github.com/Vasu1712/scenyx-chatsync/internal/middleware"
	"github.com/Vasu1712/scenyx-chatsync/internal/models"
	"github.com/Vasu1712/scenyx-chatsync/internal/storage"
	"github.com/Vasu1712/scenyx-chatsync/internal/ws"
)

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the relay server",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "addr",
				Usage: "Override server.addr",
			},
		},
		Action: runServe,
	}
}

func runServe(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if c.IsSet("addr") {
		cfg.Server.Addr = c.String("addr")
	}
	if err := cfg.ValidateServer(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, dir, err := storage.Open(ctx, storage.Options{
		Driver:        cfg.Storage.Driver,
		PostgresDSN:   cfg.Storage.PostgresDSN,
		ValkeyAddr:    cfg.Storage.ValkeyAddr,
		MongoURI:      cfg.Storage.MongoURI,
		MongoDatabase: cfg.Storage.MongoDatabase,
	})
	if err != nil {
		return fmt.Errorf("failed to open storage: %w", err)
	}
	defer store.Close()

	if err := seedParticipants(ctx, dir, cfg.Server.SeedParticipants); err != nil {
		return err
	}

	hub := ws.NewHub()
	go hub.Run(ctx)

	wsCfg := ws.DefaultConfig()
	wsCfg.FrameRate = cfg.Server.FrameRate
	wsCfg.FrameBurst = cfg.Server.FrameBurst

	tokens := auth.NewManager(cfg.Server.JWTSecret, cfg.Server.TokenTTL)
	handler := &dms.DMHandler{
		Store:     store,
		Directory: dir,
		Hub:       hub,
		Tokens:    tokens,
		Upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     checkOrigin(cfg.Server.AllowedOrigin),
		},
		WS:           wsCfg,
		HistoryLimit: cfg.Server.HistoryLimit,
	}

	limiter := middleware.NewLimiterStore(cfg.Server.RateLimitRPM, cfg.Server.RateLimitRPM/3+1, 5*time.Minute)
	defer limiter.Stop()

	r := mux.NewRouter()
	dms.RegisterDMRoutes(r, handler, middleware.Authenticate(tokens), middleware.RateLimit(limiter))

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           middleware.CORS(cfg.Server.AllowedOrigin)(r),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", cfg.Server.Addr).Str("storage", cfg.Storage.Driver).Msg("relay started")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down relay")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

func seedParticipants(ctx context.Context, dir storage.Directory, seeds []config.SeedParticipant) error {
	for _, s := range seeds {
		id, err := models.ParseParticipantID(s.ID)
		if err != nil {
			return fmt.Errorf("seed participant %q: %w", s.ID, err)
		}
		hash, err := auth.HashPassword(s.Password)
		if err != nil {
			return fmt.Errorf("seed participant %s: %w", id, err)
		}
		p := models.Participant{ID: id, Name: s.Name, Role: s.Role, PasswordHash: hash}
		if err := dir.UpsertParticipant(ctx, p); err != nil {
			return fmt.Errorf("seed participant %s: %w", id, err)
		}
		log.Debug().Str("participant", string(id)).Msg("seeded participant")
	}
	return nil
}

// checkOrigin accepts non-browser clients and the configured front end.
func checkOrigin(allowed string) func(*http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return origin == "" || allowed == "*" || origin == allowed
	}
}
