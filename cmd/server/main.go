package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/word-battle/internal/api"
	"github.com/word-battle/internal/config"
	"github.com/word-battle/internal/game"
	"github.com/word-battle/internal/kafka"
	"github.com/word-battle/internal/replay"
	"github.com/word-battle/internal/scan"
	"github.com/word-battle/internal/sessions"
	"github.com/word-battle/internal/stats"
	"github.com/word-battle/internal/storage"
	"github.com/word-battle/internal/websocket"
)

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	cfg, err := config.Load(".env")
	if err != nil {
		log.Fatal().Err(err).Msg("load config")
	}
	cfg.ApplyLogLevel()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store := openStore(ctx, cfg)
	defer store.Close()

	importReplays(ctx, cfg, store)

	// Initialize Kafka producer
	producer, err := kafka.NewProducer(cfg.KafkaBrokers)
	if err != nil {
		log.Warn().Str("component", "kafka").Err(err).Msg("producer not available, analytics disabled")
	}
	defer producer.Close()

	// Initialize Kafka consumer (optional)
	var consumer *kafka.Consumer
	if producer.IsEnabled() {
		consumer, err = kafka.NewConsumer(cfg.KafkaBrokers)
		if err != nil {
			log.Warn().Str("component", "kafka").Err(err).Msg("consumer not available")
		} else {
			consumer.Start()
			defer consumer.Stop()
		}
	}

	registry := sessions.NewRegistry(cfg.Limits())
	registry.SetOnStart(func(e *sessions.Entry) {
		producer.EmitReplayLoaded(e.ReplayID, e.Session, e.Record)
	})

	// Initialize WebSocket hub
	hub := websocket.NewHub(registry)
	go hub.Run(ctx)

	handler := websocket.NewHandler(registry, store, cfg.PlaybackDelay)
	handler.SetOnTurn(func(e *sessions.Entry, index int, ev replay.TurnEvent) {
		producer.EmitTurn(e.ReplayID, e.Session, index, ev)
	})
	handler.SetOnFinished(func(e *sessions.Entry) {
		producer.EmitFinished(e.ReplayID, e.Session)
	})

	// Set up HTTP router
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Link", "Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// API routes
	r.Route("/api", func(r chi.Router) {
		apiHandlers := api.NewHandlers(cfg, store, registry, producer, consumer)
		apiHandlers.RegisterRoutes(r)
	})

	// WebSocket endpoint
	r.Get("/ws", func(w http.ResponseWriter, r *http.Request) {
		websocket.ServeWs(hub, handler, w, r)
	})

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("OK"))
	})

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("port", cfg.Port).Msg("server starting")
		log.Info().Msgf("WebSocket endpoint: ws://localhost:%s/ws", cfg.Port)
		log.Info().Msgf("API endpoint: http://localhost:%s/api", cfg.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	// Graceful shutdown
	<-ctx.Done()
	log.Info().Msg("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server exited properly")
}

// openStore prefers Postgres, then SQLite, then memory
func openStore(ctx context.Context, cfg config.Config) storage.Store {
	if cfg.DatabaseURL != "" {
		pg, err := storage.NewPostgresStore(ctx, cfg.DatabaseURL)
		if err == nil {
			return pg
		}
		log.Warn().Str("component", "storage").Err(err).Msg("database not available, falling back to sqlite")
	}

	sqlite, err := storage.OpenSQLite(cfg.SQLitePath)
	if err == nil {
		return sqlite
	}
	log.Warn().Str("component", "storage").Err(err).Msg("sqlite not available, replays won't be persisted")
	return storage.NewMemoryStore()
}

// importReplays stores every playable replay of the replay directory. IDs are
// derived from the file content so restarts do not duplicate them.
func importReplays(ctx context.Context, cfg config.Config, store storage.Store) {
	sum, err := scan.Dir(ctx, cfg.ReplayDir, cfg.ScanOptions())
	if err != nil {
		log.Info().Str("component", "import").Str("dir", cfg.ReplayDir).Err(err).Msg("no replays imported")
		return
	}

	imported := 0
	for _, rep := range sum.Reports {
		if !rep.Valid() {
			continue
		}
		if err := game.CheckConsistency(rep.Record); err != nil {
			log.Warn().Str("component", "import").Str("file", rep.File).Err(err).Msg("skipping inconsistent replay")
			continue
		}
		data, err := replay.Encode(rep.Record)
		if err != nil {
			continue
		}
		stored := &storage.StoredReplay{
			ID:       uuid.NewSHA1(uuid.NameSpaceOID, data).String(),
			FileName: rep.File,
			Record:   rep.Record,
		}
		if err := store.Save(ctx, stored); err != nil {
			log.Warn().Str("component", "import").Str("file", rep.File).Err(err).Msg("save replay")
			continue
		}
		imported++
	}
	log.Info().Str("component", "import").Int("files", len(sum.Reports)).Int("imported", imported).Bool("mixed_board_sizes", stats.MixedBoardSizes(sum.Records())).Msg("replay directory imported")
}

// requestLogger logs every request through zerolog
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		defer func() {
			log.Debug().
				Str("component", "http").
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", ww.Status()).
				Dur("duration", time.Since(start)).
				Str("request_id", middleware.GetReqID(r.Context())).
				Msg("request")
		}()
		next.ServeHTTP(ww, r)
	})
}
