package server

import (
	"context"
	"database/sql"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/mclemens/timekeep/internal/auth"
	"github.com/mclemens/timekeep/internal/handler"
	"github.com/mclemens/timekeep/internal/middleware"
	"github.com/mclemens/timekeep/internal/store"
	ws "github.com/mclemens/timekeep/internal/websocket"
)

type Server struct {
	db          *sql.DB
	hub         *ws.Hub
	dispatcher  *ws.Dispatcher
	resolver    *auth.Resolver
	authH       *handler.AuthHandler
	timerH      *handler.TimerHandler
	rateLimiter *middleware.RateLimiter
	logger      *slog.Logger
}

func New(db *sql.DB, logger *slog.Logger) *Server {
	userStore := store.NewUserStore(db)
	sessionStore := store.NewSessionStore(db)
	timerStore := store.NewTimerStore(db)

	resolver := auth.NewResolver(sessionStore, userStore)

	hub := ws.NewHub(logger.With("component", "websocket"))
	dispatcher := ws.NewDispatcher(hub, timerStore, logger.With("component", "dispatcher"))

	return &Server{
		db:          db,
		hub:         hub,
		dispatcher:  dispatcher,
		resolver:    resolver,
		authH:       handler.NewAuthHandler(userStore, sessionStore, logger.With("component", "auth")),
		timerH:      handler.NewTimerHandler(timerStore, dispatcher, logger.With("component", "timer")),
		rateLimiter: middleware.NewRateLimiter(),
		logger:      logger,
	}
}

// RunTicker starts the periodic active-timer broadcast and blocks until the
// context is cancelled.
func (s *Server) RunTicker(ctx context.Context) {
	s.dispatcher.RunTicker(ctx)
}

// Hub returns the connection registry.
func (s *Server) Hub() *ws.Hub {
	return s.hub
}

func (s *Server) Router() http.Handler {
	outerMux := http.NewServeMux()

	// Public routes (no auth required)
	outerMux.HandleFunc("POST /signup", s.rateLimitedHandler(s.authH.Signup))
	outerMux.HandleFunc("POST /login", s.rateLimitedHandler(s.authH.Login))
	outerMux.HandleFunc("POST /logout", s.authH.Logout)
	outerMux.HandleFunc("GET /health", s.healthHandler)

	// The WebSocket endpoint authenticates in-band via the handshake.
	outerMux.Handle("GET /ws", ws.Handle(s.hub, s.resolver, s.dispatcher, s.logger.With("component", "websocket")))

	// Protected routes — wrapped with RequireAuth middleware
	protectedMux := http.NewServeMux()
	protectedMux.HandleFunc("GET /api/timers", s.timerH.List)
	protectedMux.HandleFunc("POST /api/timers", s.timerH.Create)
	protectedMux.HandleFunc("POST /api/timers/{id}/stop", s.timerH.Stop)

	authMiddleware := middleware.RequireAuth(s.resolver)
	outerMux.Handle("/api/", authMiddleware(protectedMux))

	// Apply request logging middleware
	return middleware.RequestLogger(s.logger.With("component", "http"))(outerMux)
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func (s *Server) rateLimitedHandler(h http.HandlerFunc) http.HandlerFunc {
	keyFunc := func(r *http.Request) string {
		return middleware.RealIP(r)
	}
	rl := middleware.RateLimit(s.rateLimiter, keyFunc, 10, time.Minute)
	return func(w http.ResponseWriter, r *http.Request) {
		rl(http.HandlerFunc(h)).ServeHTTP(w, r)
	}
}
