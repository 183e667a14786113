package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"moviecatalog/internal/ratelimit"
	"moviecatalog/internal/util"
	"moviecatalog/pkg/domain"
	"moviecatalog/pkg/query"
	"moviecatalog/services/catalog/internal/app"
)

// Config wires required dependencies for the HTTP server.
type Config struct {
	App *app.App
	// Redis backs the login and register rate limits. Nil disables them.
	Redis                      redis.Scripter
	LoginRateLimitPerMinute    int
	RegisterRateLimitPerMinute int
	CORSAllowedOrigins         []string
	TrustedProxyCIDRs          []string
}

// Server exposes the catalog REST API.
type Server struct {
	app             *app.App
	mux             *http.ServeMux
	corsOrigins     []string
	trustedProxies  *util.TrustedProxies
	maxBodyBytes    int64
	loginLimiter    *ratelimit.Limiter
	registerLimiter *ratelimit.Limiter
}

// New constructs the server with routes configured.
func New(cfg Config) (*Server, error) {
	if cfg.App == nil {
		return nil, errors.New("server: app is required")
	}
	trusted, err := util.NewTrustedProxies(cfg.TrustedProxyCIDRs)
	if err != nil {
		return nil, fmt.Errorf("parse trusted proxies: %w", err)
	}
	s := &Server{
		app:            cfg.App,
		mux:            http.NewServeMux(),
		corsOrigins:    cfg.CORSAllowedOrigins,
		trustedProxies: trusted,
		// Room for a poster and a backdrop plus the text fields.
		maxBodyBytes: 2*cfg.App.MaxUploadBytes() + 1<<20,
	}
	if cfg.Redis != nil {
		newLimiter := func(name string, limit, fallback int) (*ratelimit.Limiter, error) {
			if limit <= 0 {
				limit = fallback
			}
			limiter, err := ratelimit.New(cfg.Redis, "catalog:ratelimit:"+name, limit, time.Minute)
			if err != nil {
				return nil, fmt.Errorf("init %s limiter: %w", name, err)
			}
			return limiter, nil
		}
		if s.loginLimiter, err = newLimiter("login", cfg.LoginRateLimitPerMinute, 10); err != nil {
			return nil, err
		}
		if s.registerLimiter, err = newLimiter("register", cfg.RegisterRateLimitPerMinute, 5); err != nil {
			return nil, err
		}
	}
	s.routes()
	return s, nil
}

// Router returns the configured handler with the middleware chain applied.
func (s *Server) Router() http.Handler {
	return util.WithRequestID(util.WithRequestLog("catalog", util.WithSecurityHeaders(util.WithCORS(s.corsOrigins, s.mux))))
}

func (s *Server) routes() {
	admin := []domain.UserRole{domain.RoleAdmin}

	s.mux.HandleFunc("GET /healthz", s.handleHealth)

	// users
	s.mux.HandleFunc("POST /users/register", s.handleRegister)
	s.mux.HandleFunc("POST /users/login", s.handleLogin)
	s.mux.HandleFunc("POST /validate-email", s.handleValidateEmail)
	s.mux.Handle("POST /users/logout", s.authenticated(s.handleLogout))
	s.mux.Handle("GET /users/me", s.authenticated(s.handleMe))
	s.mux.Handle("POST /users", s.authenticated(s.handleCreateUser, admin...))
	s.mux.Handle("GET /users", s.authenticated(s.handleListUsers, admin...))
	s.mux.Handle("GET /users/{id}", s.authenticated(s.handleGetUser, admin...))
	s.mux.Handle("PATCH /users/{id}", s.authenticated(s.handleUpdateUser))
	s.mux.Handle("DELETE /users/{id}", s.authenticated(s.handleDeleteUser, admin...))
	s.mux.Handle("GET /users/{id}/favorites", s.authenticated(s.handleListFavorites))
	s.mux.Handle("PATCH /users/{id}/favorites", s.authenticated(s.handleSetFavorite))

	// actors
	s.mux.HandleFunc("GET /actors", s.handleListActors)
	s.mux.HandleFunc("GET /actors/{id}", s.handleGetActor)
	s.mux.Handle("POST /actors", s.authenticated(s.handleCreateActor, admin...))
	s.mux.Handle("PATCH /actors/{id}", s.authenticated(s.handleUpdateActor, admin...))
	s.mux.Handle("DELETE /actors/{id}", s.authenticated(s.handleDeleteActor, admin...))

	// genres
	s.mux.HandleFunc("GET /genres", s.handleListGenres)
	s.mux.HandleFunc("GET /genres/{id}", s.handleGetGenre)
	s.mux.Handle("POST /genres", s.authenticated(s.handleCreateGenre, admin...))
	s.mux.Handle("PATCH /genres/{id}", s.authenticated(s.handleUpdateGenre, admin...))
	s.mux.Handle("DELETE /genres/{id}", s.authenticated(s.handleDeleteGenre, admin...))

	// movies
	s.mux.HandleFunc("GET /movies", s.handleListMovies)
	s.mux.HandleFunc("GET /movies/{id}", s.handleGetMovie)
	s.mux.HandleFunc("GET /movies/{id}/reviews", s.handleMovieReviews)
	s.mux.Handle("POST /movies", s.authenticated(s.handleCreateMovie, admin...))
	s.mux.Handle("PATCH /movies/{id}", s.authenticated(s.handleUpdateMovie, admin...))
	s.mux.Handle("DELETE /movies/{id}", s.authenticated(s.handleDeleteMovie, admin...))

	// reviews
	s.mux.Handle("POST /reviews", s.authenticated(s.handleCreateReview, domain.RoleUser))
	s.mux.Handle("GET /reviews", s.authenticated(s.handleListReviews, admin...))
	s.mux.Handle("PATCH /reviews/{id}/approval", s.authenticated(s.handleReviewApproval, admin...))
	s.mux.Handle("DELETE /reviews/{id}", s.authenticated(s.handleDeleteReview, admin...))

	s.mux.HandleFunc("/", func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, "Route not found")
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeOK(w, http.StatusOK, "ok", map[string]string{"status": "ok"})
}

// auth wrappers
type authHandler func(http.ResponseWriter, *http.Request, domain.User)

// authenticated resolves the bearer token to an active user and checks the
// user's role against allowed. No roles means any authenticated user.
func (s *Server) authenticated(next authHandler, allowed ...domain.UserRole) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := bearerToken(r)
		if !ok {
			writeError(w, http.StatusUnauthorized, app.ErrUnauthorized.Message)
			return
		}
		user, err := s.app.UserFromToken(r.Context(), token)
		if err != nil {
			s.writeAppError(w, r, err)
			return
		}
		if !authorize(user.Role, allowed...) {
			writeError(w, http.StatusForbidden, app.ErrForbidden.Message)
			return
		}
		next(w, r, user)
	})
}

// authorize reports whether role is one of allowed.
func authorize(role domain.UserRole, allowed ...domain.UserRole) bool {
	if len(allowed) == 0 {
		return true
	}
	for _, a := range allowed {
		if role == a {
			return true
		}
	}
	return false
}

// selfOrAdmin guards per-user resources.
func selfOrAdmin(caller domain.User, userID string) bool {
	return caller.Role == domain.RoleAdmin || caller.ID == userID
}

func bearerToken(r *http.Request) (string, bool) {
	authHeader := r.Header.Get("Authorization")
	if !strings.HasPrefix(authHeader, "Bearer ") {
		return "", false
	}
	token := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
	if token == "" {
		slog.Warn("empty bearer token", "path", r.URL.Path)
		return "", false
	}
	return token, true
}

// allowRate applies limiter to the caller IP. A nil limiter allows everything.
func (s *Server) allowRate(w http.ResponseWriter, r *http.Request, limiter *ratelimit.Limiter) bool {
	if limiter == nil {
		return true
	}
	d := limiter.Allow(r.Context(), util.ClientIP(r, s.trustedProxies))
	if d.Err != nil {
		util.LoggerFromContext(r.Context()).Warn("rate limit unavailable", "path", r.URL.Path, "err", d.Err)
	}
	resetSeconds := max(int(d.Reset.Round(time.Second)/time.Second), 1)
	w.Header().Set("X-RateLimit-Limit", strconv.Itoa(d.Limit))
	w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(d.Remaining))
	w.Header().Set("X-RateLimit-Reset", strconv.Itoa(resetSeconds))
	if d.Allowed {
		return true
	}
	w.Header().Set("Retry-After", strconv.Itoa(resetSeconds))
	writeError(w, http.StatusTooManyRequests, "Too many requests. Please try again later.")
	return false
}

func listParams(r *http.Request) (query.Params, error) {
	p, err := query.ParseParams(r.URL.Query())
	if err != nil {
		return query.Params{}, &app.Error{Kind: app.KindValidation, Message: err.Error(), Err: err}
	}
	return p, nil
}

// envelope is the body of every response.
type envelope struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    any    `json:"data"`
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeOK(w http.ResponseWriter, status int, msg string, data any) {
	writeJSON(w, status, envelope{Success: true, Message: msg, Data: data})
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, envelope{Success: false, Message: msg})
}

// writeAppError maps err onto a status code. Unknown errors are logged and
// reported without detail.
func (s *Server) writeAppError(w http.ResponseWriter, r *http.Request, err error) {
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		writeError(w, http.StatusRequestEntityTooLarge, fmt.Sprintf("Request body exceeds %d bytes.", maxErr.Limit))
		return
	}
	status := http.StatusInternalServerError
	switch app.KindOf(err) {
	case app.KindValidation:
		status = http.StatusBadRequest
	case app.KindNotFound:
		status = http.StatusNotFound
	case app.KindConflict:
		status = http.StatusConflict
	case app.KindUnauthorized:
		status = http.StatusUnauthorized
	case app.KindForbidden:
		status = http.StatusForbidden
	default:
		util.LoggerFromContext(r.Context()).Error("request failed", "method", r.Method, "path", r.URL.Path, "err", err)
		writeError(w, status, "internal error")
		return
	}
	writeError(w, status, err.Error())
}
