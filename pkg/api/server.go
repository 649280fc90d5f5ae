// Zapdesk API server. Serves the REST control surface, the WebSocket relay
// endpoint, and the locally cached profile images.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/zapdesk/zapdesk/pkg/auth"
	"github.com/zapdesk/zapdesk/pkg/config"
	"github.com/zapdesk/zapdesk/pkg/directory"
	"github.com/zapdesk/zapdesk/pkg/imagecache"
	"github.com/zapdesk/zapdesk/pkg/logger"
	"github.com/zapdesk/zapdesk/pkg/session"
	"github.com/zapdesk/zapdesk/pkg/store"
)

// Server is the HTTP API server.
type Server struct {
	cfg       *config.Config
	manager   *session.Manager
	directory *directory.Directory
	images    *imagecache.Cache
	authSvc   *auth.Service
	jwtSvc    *auth.JWTService
	cards     *store.CardRepo
	wsHub     *WSHub

	server *http.Server
}

// NewServer wires the API server. The hub must be the one attached to the
// relay bus the manager publishes into.
func NewServer(
	cfg *config.Config,
	manager *session.Manager,
	dir *directory.Directory,
	images *imagecache.Cache,
	authSvc *auth.Service,
	jwtSvc *auth.JWTService,
	cards *store.CardRepo,
	hub *WSHub,
) *Server {
	return &Server{
		cfg:       cfg,
		manager:   manager,
		directory: dir,
		images:    images,
		authSvc:   authSvc,
		jwtSvc:    jwtSvc,
		cards:     cards,
		wsHub:     hub,
	}
}

// Handler builds the full route tree, CORS included.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/health", s.handleHealth)

	// Auth
	mux.HandleFunc("POST /auth/register", s.handleRegister)
	mux.HandleFunc("POST /auth/login", s.handleLogin)

	// WhatsApp control surface
	mux.HandleFunc("POST /api/whatsapp/regenerate-qr", s.handleRegenerateQR)
	mux.HandleFunc("POST /api/whatsapp/disconnect", s.handleDisconnect)
	mux.HandleFunc("GET /api/whatsapp/status", s.handleStatus)
	mux.HandleFunc("GET /api/whatsapp/contacts", s.handleContacts)
	mux.HandleFunc("GET /api/whatsapp/messages/{contactId}", s.handleChatMessages)
	mux.HandleFunc("POST /api/whatsapp/messages", s.handleSendMessage)
	mux.HandleFunc("PUT /api/whatsapp/messages/{messageId}", s.handleEditMessage)
	mux.HandleFunc("DELETE /api/whatsapp/messages/{messageId}", s.handleDeleteMessage)

	// CRM board (JWT-protected)
	crm := http.NewServeMux()
	crm.HandleFunc("POST /api/crm/cards", s.handleCreateCard)
	crm.HandleFunc("GET /api/crm/cards", s.handleListCards)
	crm.HandleFunc("PUT /api/crm/cards/{id}", s.handleUpdateCard)
	crm.HandleFunc("DELETE /api/crm/cards/{id}", s.handleDeleteCard)
	mux.Handle("/api/crm/", auth.Middleware(s.jwtSvc, crm))

	// WebSocket relay
	mux.HandleFunc("GET /api/ws", s.wsHub.HandleWebSocket)

	// Cached profile images
	mux.Handle("GET /images/", http.StripPrefix("/images/",
		http.FileServer(http.Dir(s.images.Dir()))))

	return s.corsMiddleware(mux)
}

// Start begins listening on the configured address. Non-blocking.
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:         s.cfg.Addr(),
		Handler:      s.Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	logger.InfoCF("api", "API server starting", map[string]interface{}{
		"addr": s.cfg.Addr(),
	})

	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.ErrorCF("api", "Server error", map[string]interface{}{
				"error": err.Error(),
			})
		}
	}()

	return nil
}

// Stop gracefully shuts down the server and its WebSocket clients.
func (s *Server) Stop() error {
	s.wsHub.Shutdown()
	if s.server == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.server.Shutdown(ctx)
}

func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin != "" && (origin == s.cfg.AllowedOrigin || isLocalOrigin(origin)) {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Credentials", "true")
		}
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// isLocalOrigin accepts localhost origins regardless of scheme and port.
// Shared by the CORS middleware and the WebSocket origin check.
func isLocalOrigin(origin string) bool {
	for _, prefix := range []string{"http://localhost", "http://127.0.0.1", "https://localhost", "https://127.0.0.1"} {
		if strings.HasPrefix(origin, prefix) {
			return true
		}
	}
	return false
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "ok",
		"session":   string(s.manager.State()),
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// --- response helpers ---

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.ErrorCF("api", "Response encode failed", map[string]interface{}{
			"error": err.Error(),
		})
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeActionError maps domain failures onto HTTP statuses.
func writeActionError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, session.ErrNotInitialized):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, session.ErrMessageNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	default:
		writeError(w, http.StatusBadGateway, err.Error())
	}
}
