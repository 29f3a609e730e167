package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"

	"twin-assistant-backend/internal/agent"
	"twin-assistant-backend/internal/config"
	"twin-assistant-backend/internal/db"
	"twin-assistant-backend/internal/store"
	"twin-assistant-backend/internal/types"
)

const (
	errMethodNotAllowed = "Method not allowed"
	errInvalidMessages  = "Invalid messages"
	errInternal         = "Internal server error"
)

type Server struct {
	router    *chi.Mux
	cfg       config.Config
	log       zerolog.Logger
	responder agent.Responder
	exchanges store.ExchangeLog
	database  *db.DB
}

// Deps are the collaborators a Server is built from.
type Deps struct {
	Responder agent.Responder
	Exchanges store.ExchangeLog
	Logger    zerolog.Logger
}

// NewServer wires the responder and exchange log described by cfg.
func NewServer(cfg config.Config, log zerolog.Logger) (*Server, error) {
	responder, err := agent.New(agent.Options{
		APIKey:    cfg.OpenAIAPIKey,
		BaseURL:   cfg.OpenAIBaseURL,
		Model:     cfg.Model,
		RulesFile: cfg.RulesFile,
		Logger:    log,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create responder: %w", err)
	}
	log.Info().Str("mode", responder.Mode()).Msg("responder ready")

	var exchanges store.ExchangeLog
	var database *db.DB
	if cfg.DatabaseURL != "" {
		database, err = db.New(cfg.DatabaseURL, log)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize database: %w", err)
		}
		if err := database.RunMigrations(db.Migrations()); err != nil {
			database.Close()
			return nil, fmt.Errorf("failed to run migrations: %w", err)
		}
		log.Info().Msg("exchange log stored in database")
		exchanges = store.NewDatabaseStore(database)
	} else if cfg.ExchangeFile != "" {
		fileStore, err := store.OpenFileStore(cfg.ExchangeFile, cfg.ExchangeBuffer)
		if err != nil {
			return nil, fmt.Errorf("failed to open exchange file: %w", err)
		}
		log.Info().Str("path", cfg.ExchangeFile).Msg("exchange log stored in file")
		exchanges = fileStore
	} else {
		log.Info().Int("buffer", cfg.ExchangeBuffer).Msg("DB_URL not provided, keeping exchange log in memory")
		exchanges = store.NewMemoryStore(cfg.ExchangeBuffer)
	}

	s := New(cfg, Deps{Responder: responder, Exchanges: exchanges, Logger: log})
	s.database = database
	return s, nil
}

func New(cfg config.Config, deps Deps) *Server {
	exchanges := deps.Exchanges
	if exchanges == nil {
		exchanges = store.NewMemoryStore(cfg.ExchangeBuffer)
	}
	r := chi.NewRouter()

	r.Use(middleware.RealIP)
	r.Use(hlog.NewHandler(deps.Logger))
	r.Use(hlog.RequestIDHandler("req_id", "X-Request-Id"))
	r.Use(hlog.AccessHandler(func(r *http.Request, status, size int, duration time.Duration) {
		hlog.FromRequest(r).Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", status).
			Int("size", size).
			Dur("duration", duration).
			Msg("request")
	}))
	r.Use(recoverJSON)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{cfg.AllowedOrigin},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Requested-With"},
		ExposedHeaders: []string{"X-Request-Id"},
		MaxAge:         300,
	}))

	s := &Server{
		router:    r,
		cfg:       cfg,
		log:       deps.Logger,
		responder: deps.Responder,
		exchanges: exchanges,
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.router.MethodNotAllowed(s.handleMethodNotAllowed)
	s.router.Get("/api/health", s.handleHealth)
	s.router.Post("/api/agent", s.handleAgent)
	s.router.Get("/api/exchanges", s.handleExchanges)
	s.router.Handle("/docs/*", http.StripPrefix("/docs/", http.FileServer(http.Dir(s.cfg.DocsDir))))
}

func (s *Server) Router() http.Handler { return s.router }

// Close releases the database connection, if any.
func (s *Server) Close() error {
	if s.database != nil {
		return s.database.Close()
	}
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, types.HealthResponse{Status: "ok", Mode: s.responder.Mode()})
}

func (s *Server) handleMethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	s.writeError(w, http.StatusMethodNotAllowed, errMethodNotAllowed)
}

func (s *Server) writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Server) writeError(w http.ResponseWriter, code int, msg string) {
	s.writeJSON(w, code, types.ErrorResponse{Error: msg})
}

// recoverJSON turns a panic in a handler into the generic 500 body.
func recoverJSON(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				hlog.FromRequest(r).Error().Interface("panic", rec).Str("path", r.URL.Path).Msg("handler panicked")
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusInternalServerError)
				_ = json.NewEncoder(w).Encode(types.ErrorResponse{Error: errInternal})
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}
