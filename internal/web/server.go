package web

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/runixer/ipsi/internal/advisor"
	"github.com/runixer/ipsi/internal/catalog"
	"github.com/runixer/ipsi/internal/config"
	"github.com/runixer/ipsi/internal/yandex"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// getClientIP extracts the real client IP from the request.
// It checks X-Forwarded-For and X-Real-IP headers (set by reverse proxies like traefik),
// falling back to RemoteAddr if no proxy headers are present.
func getClientIP(r *http.Request) string {
	// X-Forwarded-For may contain multiple IPs: "client, proxy1, proxy2"
	// The first one is the original client IP
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if idx := strings.Index(xff, ","); idx != -1 {
			return strings.TrimSpace(xff[:idx])
		}
		return strings.TrimSpace(xff)
	}

	if xrip := r.Header.Get("X-Real-IP"); xrip != "" {
		return xrip
	}

	addr := r.RemoteAddr
	if idx := strings.LastIndex(addr, ":"); idx != -1 {
		return addr[:idx]
	}
	return addr
}

// Advisor runs advising turns.
type Advisor interface {
	NewSession() (*advisor.Session, error)
	Session(id string) (*advisor.Session, error)
	Ask(ctx context.Context, sessionID string, profile advisor.Profile, question string) (advisor.Answer, error)
}

// Catalog serves and rebuilds the option snapshot.
type Catalog interface {
	Snapshot(ctx context.Context) catalog.Snapshot
	Refresh(ctx context.Context) (bool, error)
	Invalidate(ctx context.Context)
}

// StorageMetrics refreshes storage gauges.
type StorageMetrics interface {
	UpdateMetrics(ctx context.Context)
}

// Deps are the services behind the HTTP API. Transcriber and Storage may be nil.
type Deps struct {
	Advisor     Advisor
	Catalog     Catalog
	Transcriber yandex.Transcriber
	Storage     StorageMetrics
}

type Server struct {
	cfg         *config.Config
	advisor     Advisor
	catalog     Catalog
	transcriber yandex.Transcriber
	storage     StorageMetrics
	logger      *slog.Logger
	wg          sync.WaitGroup
}

func NewServer(logger *slog.Logger, cfg *config.Config, deps Deps) *Server {
	return &Server{
		cfg:         cfg,
		advisor:     deps.Advisor,
		catalog:     deps.Catalog,
		transcriber: deps.Transcriber,
		storage:     deps.Storage,
		logger:      logger.With("component", "web_server"),
	}
}

// Handler returns the routed handler with logging and auth middleware.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", instrumentHandler("healthz", s.healthzHandler))
	mux.Handle("GET /metrics", promhttp.Handler())

	mux.HandleFunc("GET /api/options", instrumentHandler("options", s.optionsHandler))
	mux.HandleFunc("POST /api/sessions", instrumentHandler("session_create", s.createSessionHandler))
	mux.HandleFunc("GET /api/sessions/{id}", instrumentHandler("session_get", s.getSessionHandler))
	mux.HandleFunc("POST /api/sessions/{id}/ask", instrumentHandler("ask", s.askHandler))
	mux.HandleFunc("POST /api/sessions/{id}/voice", instrumentHandler("voice", s.voiceHandler))
	mux.HandleFunc("POST /admin/catalog/refresh", instrumentHandler("catalog_refresh", s.refreshCatalogHandler))

	// Chain: Logging -> Auth -> Mux
	handler := s.basicAuthMiddleware(mux)
	return s.loggingMiddleware(handler)
}

func (s *Server) Start(ctx context.Context) error {
	// Check and generate password if needed
	if s.cfg.Server.Auth.Enabled && s.cfg.Server.Auth.Password == "" {
		bytes := make([]byte, 6) // 12 hex chars
		if _, err := rand.Read(bytes); err != nil {
			return fmt.Errorf("failed to generate random password: %w", err)
		}
		s.cfg.Server.Auth.Password = hex.EncodeToString(bytes)
		fmt.Printf("\n⚠️  Admin password not set, generated: %s\n\n", s.cfg.Server.Auth.Password)
		s.logger.Info("Admin password auto-generated (see console output)")
	}

	server := &http.Server{
		Addr:              ":" + s.cfg.Server.ListenPort,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			s.logger.Error("web server shutdown failed", "error", err)
		}
	}()

	if s.storage != nil {
		s.storage.UpdateMetrics(ctx)

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			ticker := time.NewTicker(1 * time.Hour)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					s.storage.UpdateMetrics(ctx)
				}
			}
		}()
	}

	s.logger.Info("Starting web server", "port", s.cfg.Server.ListenPort)
	err := server.ListenAndServe()
	if err != http.ErrServerClosed {
		return err
	}
	s.wg.Wait() // Wait for background goroutines to finish
	return nil
}

func (s *Server) healthzHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := r.URL.Path

		// Log healthz and metrics at debug level, other requests at info level
		if path == "/healthz" || path == "/metrics" {
			s.logger.Debug("Received HTTP request",
				"method", r.Method,
				"path", path,
				"client_ip", getClientIP(r),
			)
		} else {
			s.logger.Info("Received HTTP request",
				"method", r.Method,
				"path", path,
				"client_ip", getClientIP(r),
				"user_agent", r.UserAgent(),
			)
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) basicAuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Only protect /admin/ routes
		if strings.HasPrefix(r.URL.Path, "/admin/") && s.cfg.Server.Auth.Enabled {
			user, pass, ok := r.BasicAuth()
			if !ok || user != s.cfg.Server.Auth.Username || pass != s.cfg.Server.Auth.Password {
				w.Header().Set("WWW-Authenticate", `Basic realm="Restricted"`)
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}
