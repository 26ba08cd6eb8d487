package http

import (
	"context"
	"html/template"
	"io/fs"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"tally/internal/services"
	"tally/internal/session"
	appweb "tally/web"
)

// SessionCookieName carries the opaque session ID on every request.
const SessionCookieName = "tally_session"

type contextKey string

const sessionContextKey contextKey = "session_id"

type Server struct {
	http.Server
	templates    *template.Template
	ledger       *services.LedgerService
	sessions     *session.Manager
	rateLimiter  *rateLimiter
	shutdownOnce sync.Once
}

// NewServer configures routes and templates, returning a ready-to-run http.Server.
func NewServer(addr string, svc *services.LedgerService, sessions *session.Manager) *Server {
	mux := http.NewServeMux()

	s := &Server{
		Server: http.Server{
			Addr:    addr,
			Handler: mux,
		},
		ledger:      svc,
		sessions:    sessions,
		rateLimiter: newRateLimiter(),
	}

	// Parse embedded templates at startup.
	t, err := template.ParseFS(appweb.TemplatesFS, "templates/*.html")
	if err != nil {
		slog.Warn("Failed parsing templates", "error", err)
	}
	s.templates = t

	// Static assets (served from embedded FS)
	if sub, err := fs.Sub(appweb.StaticFS, "static"); err == nil {
		static := http.StripPrefix("/static/", http.FileServer(http.FS(sub)))
		mux.Handle("/static/", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Cache-Control", "public, max-age=3600, immutable")
			static.ServeHTTP(w, r)
		}))
	} else {
		slog.Warn("Failed to mount embedded static FS", "error", err)
	}

	mux.HandleFunc("/healthz", handleHealth)
	mux.HandleFunc("/readyz", handleReady)

	mux.HandleFunc("/", s.withSecurityHeaders(s.withSession(s.handleIndex)))
	mux.HandleFunc("/categories", s.withSecurityHeaders(s.withSession(s.handleAddCategory)))
	mux.HandleFunc("/transactions", s.withSecurityHeaders(s.withSession(s.handleAddTransaction)))
	mux.HandleFunc("/transactions/edit", s.withSecurityHeaders(s.withSession(s.handleEditTransaction)))
	mux.HandleFunc("/transactions/delete", s.withSecurityHeaders(s.withSession(s.handleDeleteTransaction)))
	mux.HandleFunc("/import", s.withSecurityHeaders(s.withSession(s.handleImportCSV)))
	mux.HandleFunc("/export", s.withSecurityHeaders(s.withSession(s.handleExportCSV)))
	// UI partials
	mux.HandleFunc("/ui/categories", s.withSecurityHeaders(s.withSession(s.handleCategoryOptions)))
	mux.HandleFunc("/ui/ledger", s.withSecurityHeaders(s.withSession(s.handleLedgerPartial)))
	mux.HandleFunc("/ui/stats", s.withSecurityHeaders(s.withSession(s.handleStatsPartial)))

	return s
}

// withSession resolves the request's session from its cookie, opening a
// fresh session (and setting the cookie) when the cookie is missing or
// points at an expired session. The session ID ends up in the request
// context.
func (s *Server) withSession(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var sid string
		if c, err := r.Cookie(SessionCookieName); err == nil && c.Value != "" {
			if s.sessions.Touch(r.Context(), c.Value) {
				sid = c.Value
			}
		}

		if sid == "" {
			id, err := s.sessions.Open(r.Context())
			if err != nil {
				slog.ErrorContext(r.Context(), "Failed to open session", "error", err)
				http.Error(w, "service unavailable", http.StatusServiceUnavailable)
				return
			}
			sid = id
			http.SetCookie(w, &http.Cookie{
				Name:     SessionCookieName,
				Value:    sid,
				Path:     "/",
				HttpOnly: true,
				SameSite: http.SameSiteLaxMode,
			})
		}

		ctx := context.WithValue(r.Context(), sessionContextKey, sid)
		next(w, r.WithContext(ctx))
	}
}

// sessionID extracts the session ID placed in the context by withSession.
func sessionID(r *http.Request) string {
	if sid, ok := r.Context().Value(sessionContextKey).(string); ok {
		return sid
	}
	return ""
}

// withSecurityHeaders adds security headers, rate limiting, and request logging to responses
func (s *Server) withSecurityHeaders(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		// Extract client IP (considering proxies)
		clientIP := r.Header.Get("X-Forwarded-For")
		if clientIP == "" {
			clientIP = r.Header.Get("X-Real-IP")
		}
		if clientIP == "" {
			clientIP = r.RemoteAddr
		}

		requestID := generateRequestID()
		ctx := context.WithValue(r.Context(), contextKey("request_id"), requestID)
		r = r.WithContext(ctx)

		slog.InfoContext(ctx, "Request started",
			"request_id", requestID,
			"method", r.Method,
			"url", r.URL.Path,
			"client_ip", clientIP,
			"user_agent", r.Header.Get("User-Agent"))

		// Rate limiting applies to mutations only
		if (r.Method == http.MethodPost || r.Method == http.MethodDelete) && !s.rateLimiter.allow(clientIP) {
			slog.WarnContext(ctx, "Rate limit exceeded", "client_ip", clientIP, "method", r.Method, "url", r.URL.Path)
			w.Header().Set("Retry-After", "60")
			http.Error(w, "Rate limit exceeded. Please try again later.", http.StatusTooManyRequests)
			return
		}

		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("X-XSS-Protection", "1; mode=block")
		w.Header().Set("Content-Security-Policy", "default-src 'self'; script-src 'self' https://unpkg.com 'unsafe-eval'; style-src 'self' 'unsafe-inline'; img-src 'self' data:; connect-src 'self'")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")

		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next(rw, r)

		duration := time.Since(start)
		slog.InfoContext(ctx, "Request completed",
			"request_id", requestID,
			"method", r.Method,
			"url", r.URL.Path,
			"status", rw.statusCode,
			"duration_ms", duration.Milliseconds(),
			"client_ip", clientIP)
	}
}

// responseWriter wraps http.ResponseWriter to capture the status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Shutdown gracefully shuts down the server and cleanup routines
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		if s.rateLimiter != nil {
			s.rateLimiter.stop()
		}
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func handleReady(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}
