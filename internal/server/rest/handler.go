package rest

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/dmitrijs2005/tokenkeeper/internal/common"
	"github.com/dmitrijs2005/tokenkeeper/internal/logging"
	"github.com/dmitrijs2005/tokenkeeper/internal/server/auth"
	"github.com/dmitrijs2005/tokenkeeper/internal/server/metrics"
	"github.com/dmitrijs2005/tokenkeeper/internal/server/models"
	"github.com/dmitrijs2005/tokenkeeper/internal/server/services"
	"github.com/golang-jwt/jwt/v5"
)

// Sessions is the session service as seen by the transport.
type Sessions interface {
	Register(ctx context.Context, username, password string) (*models.User, error)
	Login(ctx context.Context, username, password string) (*services.TokenPair, error)
	Authenticate(ctx context.Context, accessToken string) (*auth.Claims, error)
	Refresh(ctx context.Context, refreshToken string) (string, error)
	Logout(ctx context.Context, refreshToken string) error
}

// Pinger reports whether backing storage is reachable.
type Pinger interface {
	PingContext(ctx context.Context) error
}

type Handler struct {
	sessions Sessions
	ready    Pinger
	log      logging.Logger
	metrics  *metrics.Metrics
}

// NewHandler builds the HTTP surface. ready and m may be nil.
func NewHandler(s Sessions, ready Pinger, log logging.Logger, m *metrics.Metrics) *Handler {
	return &Handler{sessions: s, ready: ready, log: log.With("module", "rest"), metrics: m}
}

type credentialsRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type loginResponse struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

type accessResponse struct {
	AccessToken string `json:"accessToken"`
}

type userInfo struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	IssuedAt int64  `json:"iat"`
	Expires  int64  `json:"exp"`
}

type protectedResponse struct {
	Message string   `json:"message"`
	User    userInfo `json:"user"`
}

// Routes returns the full handler with request logging applied.
func (h *Handler) Routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /register", h.register)
	mux.HandleFunc("POST /login", h.login)
	mux.HandleFunc("GET /protected", h.requireAccessToken(h.protected))
	mux.HandleFunc("POST /token", h.token)
	mux.HandleFunc("POST /logout", h.logout)

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok\n"))
	})
	mux.HandleFunc("GET /readyz", h.readyz)
	mux.Handle("GET /metrics", h.metrics.Handler())

	return h.withRequestLogging(mux)
}

func (h *Handler) register(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeMessage(w, http.StatusBadRequest, "username and password are required")
		return
	}

	_, err := h.sessions.Register(r.Context(), req.Username, req.Password)
	switch {
	case err == nil:
		writeMessage(w, http.StatusCreated, "user registered")
	case errors.Is(err, common.ErrorValidation):
		writeMessage(w, http.StatusBadRequest, "username and password are required")
	case errors.Is(err, common.ErrorAlreadyExists):
		writeMessage(w, http.StatusConflict, "user already exists")
	default:
		writeMessage(w, http.StatusInternalServerError, "could not register user")
	}
}

func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeMessage(w, http.StatusBadRequest, "username and password are required")
		return
	}

	pair, err := h.sessions.Login(r.Context(), req.Username, req.Password)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, loginResponse{AccessToken: pair.AccessToken, RefreshToken: pair.RefreshToken})
	case errors.Is(err, common.ErrorValidation):
		writeMessage(w, http.StatusBadRequest, "username and password are required")
	case errors.Is(err, common.ErrorUnauthorized):
		writeMessage(w, http.StatusUnauthorized, "invalid credentials")
	default:
		writeMessage(w, http.StatusInternalServerError, "could not log in")
	}
}

func (h *Handler) protected(w http.ResponseWriter, r *http.Request) {
	claims, ok := claimsFromContext(r.Context())
	if !ok {
		writeMessage(w, http.StatusUnauthorized, "access token required")
		return
	}

	writeJSON(w, http.StatusOK, protectedResponse{
		Message: fmt.Sprintf("Welcome, %s", claims.UserName),
		User: userInfo{
			ID:       claims.UserID,
			Username: claims.UserName,
			IssuedAt: unix(claims.IssuedAt),
			Expires:  unix(claims.ExpiresAt),
		},
	})
}

// token exchanges a refresh token for a new access token. A missing token is
// 401 here, unlike logout.
func (h *Handler) token(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := decodeJSON(w, r, &req); err != nil || req.RefreshToken == "" {
		writeMessage(w, http.StatusUnauthorized, "refresh token required")
		return
	}

	access, err := h.sessions.Refresh(r.Context(), req.RefreshToken)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, accessResponse{AccessToken: access})
	case errors.Is(err, common.ErrorValidation):
		writeMessage(w, http.StatusUnauthorized, "refresh token required")
	case errors.Is(err, common.ErrorForbidden):
		writeMessage(w, http.StatusForbidden, "invalid or expired refresh token")
	default:
		writeMessage(w, http.StatusInternalServerError, "could not refresh token")
	}
}

func (h *Handler) logout(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeMessage(w, http.StatusBadRequest, "refresh token required")
		return
	}

	err := h.sessions.Logout(r.Context(), req.RefreshToken)
	switch {
	case err == nil:
		writeMessage(w, http.StatusOK, "logged out")
	case errors.Is(err, common.ErrorValidation):
		writeMessage(w, http.StatusBadRequest, "refresh token required")
	default:
		writeMessage(w, http.StatusInternalServerError, "could not log out")
	}
}

func (h *Handler) readyz(w http.ResponseWriter, r *http.Request) {
	if h.ready != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := h.ready.PingContext(ctx); err != nil {
			h.log.Warn(r.Context(), "storage not ready", "error", err)
			http.Error(w, "storage not ready", http.StatusServiceUnavailable)
			return
		}
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready\n"))
}

func unix(d *jwt.NumericDate) int64 {
	if d == nil {
		return 0
	}
	return d.Unix()
}
