package authapi

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/hamdanahmadkhan101-tech/VidTube-sub001/cmd/identity"
	"github.com/hamdanahmadkhan101-tech/VidTube-sub001/cmd/internal/auth/session"
	"github.com/hamdanahmadkhan101-tech/VidTube-sub001/cmd/security/password"
)

// Handler wires HTTP auth endpoints to the identity store and the session
// lifecycle manager.
type Handler struct {
	log *slog.Logger
	cfg Config

	users    identity.Store
	verifier *identity.Verifier
	sessions *session.Manager
	metrics  *Metrics
}

// NewHandler constructs an auth Handler. metrics may be nil.
func NewHandler(log *slog.Logger, cfg Config, users identity.Store, verifier *identity.Verifier, sessions *session.Manager, metrics *Metrics) (*Handler, error) {
	if log == nil {
		log = slog.Default()
	}
	if users == nil || verifier == nil || sessions == nil {
		return nil, errors.New("authapi: nil users, verifier, or sessions")
	}
	return &Handler{
		log:      log,
		cfg:      cfg,
		users:    users,
		verifier: verifier,
		sessions: sessions,
		metrics:  metrics,
	}, nil
}

// Register wires auth routes onto the provided mux.
func (h *Handler) Register(mux *http.ServeMux) {
	if h == nil || mux == nil {
		return
	}
	mux.HandleFunc("/auth/signup", h.handleSignup)
	mux.HandleFunc("/auth/login", h.handleLogin)
	mux.HandleFunc("/auth/refresh", h.handleRefresh)
	mux.HandleFunc("/auth/logout", h.handleLogout)
	mux.HandleFunc("/auth/logout_all", h.handleLogoutAll)
	mux.HandleFunc("/auth/change_password", h.handleChangePassword)
	mux.HandleFunc("/me", h.handleMe)
}

// ---- handlers ----

func (h *Handler) handleSignup(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if !h.cfg.SignupEnabled {
		writeError(w, http.StatusForbidden, "signup_disabled", "signup is disabled")
		return
	}

	var req signupRequest
	if err := decodeJSON(w, r, h.cfg.MaxBodyBytes, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "invalid request body")
		return
	}
	if strings.TrimSpace(req.Username) == "" && strings.TrimSpace(req.Email) == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "username or email is required")
		return
	}

	ctx := r.Context()
	now := time.Now().UTC()

	user, err := h.users.CreateUser(ctx, identity.CreateUserInput{
		Username: req.Username,
		Email:    req.Email,
		Password: req.Password,
		Now:      now,
	})
	if err != nil {
		switch {
		case errors.Is(err, identity.ErrConflict):
			writeError(w, http.StatusConflict, "conflict", "username or email already exists")
		case errors.Is(err, identity.ErrInvalidInput),
			errors.Is(err, password.ErrPasswordTooShort),
			errors.Is(err, password.ErrPasswordTooLong):
			writeError(w, http.StatusBadRequest, "invalid_request", "invalid signup input")
		default:
			h.log.Error("auth.signup.fail", "err", err)
			writeError(w, http.StatusServiceUnavailable, "store_unavailable", "please retry later")
		}
		return
	}

	pair, err := h.sessions.Issue(ctx, now, user.ID, req.Password)
	h.metrics.observe("issue", err)
	if err != nil {
		h.writeLifecycleError(w, r, "auth.signup.issue", err)
		return
	}

	h.respondWithPair(w, loginResponse{User: toUserResponse(user), Session: toSessionResponse(pair)}, pair, req.Platform, false)
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var req loginRequest
	if err := decodeJSON(w, r, h.cfg.MaxBodyBytes, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "invalid request body")
		return
	}

	username := strings.TrimSpace(req.Username)
	email := strings.TrimSpace(req.Email)
	if (username == "" && email == "") || (username != "" && email != "") {
		writeError(w, http.StatusBadRequest, "invalid_request", "exactly one of username or email is required")
		return
	}
	if req.Password == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "password is required")
		return
	}

	ctx := r.Context()
	now := time.Now().UTC()

	// Resolve the identifier to an id; a miss stays an empty id so the
	// credential check still burns a full verify (uniform timing, and a
	// single invalid_credentials answer for unknown user vs wrong password).
	var user identity.User
	userID := ""
	ua, err := h.lookupUserForLogin(ctx, username, email)
	switch {
	case err == nil:
		user = ua.User
		userID = ua.User.ID
	case errors.Is(err, identity.ErrNotFound):
	default:
		h.log.Error("auth.login.lookup.fail", "err", err)
		writeError(w, http.StatusServiceUnavailable, "store_unavailable", "please retry later")
		return
	}

	pair, err := h.sessions.Issue(ctx, now, userID, req.Password)
	h.metrics.observe("issue", err)
	if err != nil {
		if errors.Is(err, session.ErrInvalidCredentials) {
			h.log.Info("auth.login.fail",
				"ip", clientIP(r, h.cfg.TrustProxy),
				"user_agent", strings.TrimSpace(r.UserAgent()))
		}
		h.writeLifecycleError(w, r, "auth.login", err)
		return
	}

	h.respondWithPair(w, loginResponse{User: toUserResponse(user), Session: toSessionResponse(pair)}, pair, req.Platform, false)
}

func (h *Handler) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var req refreshRequest
	if r.ContentLength != 0 {
		if err := decodeJSON(w, r, h.cfg.MaxBodyBytes, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_json", "invalid request body")
			return
		}
	}

	refreshToken := strings.TrimSpace(req.RefreshToken)
	fromCookie := false
	if cookieToken, ok := h.refreshTokenFromCookie(r); ok {
		fromCookie = true
		if refreshToken == "" {
			refreshToken = cookieToken
		}
	}
	if refreshToken == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "refresh_token is required")
		return
	}
	if fromCookie && !h.csrfDoubleSubmitValid(r) {
		writeError(w, http.StatusForbidden, "csrf_invalid", "missing or invalid csrf token")
		return
	}

	ctx := r.Context()
	now := time.Now().UTC()

	pair, err := h.sessions.Rotate(ctx, now, refreshToken)
	h.metrics.observe("rotate", err)
	if err != nil {
		if errors.Is(err, session.ErrTokenReuseOrRevoked) {
			h.log.Warn("auth.refresh.reuse",
				"ip", clientIP(r, h.cfg.TrustProxy),
				"user_agent", strings.TrimSpace(r.UserAgent()))
			h.clearWebSessionCookies(w)
		}
		h.writeLifecycleError(w, r, "auth.refresh", err)
		return
	}

	h.respondWithPair(w, refreshResponse{Session: toSessionResponse(pair)}, pair, req.Platform, fromCookie)
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	claims, ok := h.requireAuth(w, r)
	if !ok {
		return
	}

	var req logoutRequest
	if r.ContentLength != 0 {
		if err := decodeJSON(w, r, h.cfg.MaxBodyBytes, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_json", "invalid request body")
			return
		}
	}
	refreshToken := strings.TrimSpace(req.RefreshToken)
	if refreshToken == "" {
		if cookieToken, ok := h.refreshTokenFromCookie(r); ok {
			refreshToken = cookieToken
		}
	}

	// RevokeOne is scoped to the authenticated identity, so a stolen
	// refresh token in the body cannot log anyone else out.
	err := h.sessions.RevokeOne(r.Context(), claims.Subject, refreshToken)
	h.metrics.observe("revoke_one", err)
	if err != nil {
		h.writeLifecycleError(w, r, "auth.logout", err)
		return
	}

	h.clearWebSessionCookies(w)
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleLogoutAll(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	claims, ok := h.requireAuth(w, r)
	if !ok {
		return
	}

	err := h.sessions.RevokeAll(r.Context(), claims.Subject)
	h.metrics.observe("revoke_all", err)
	if err != nil {
		h.writeLifecycleError(w, r, "auth.logout_all", err)
		return
	}

	h.clearWebSessionCookies(w)
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleChangePassword(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	claims, ok := h.requireAuth(w, r)
	if !ok {
		return
	}

	var req changePasswordRequest
	if err := decodeJSON(w, r, h.cfg.MaxBodyBytes, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "invalid request body")
		return
	}

	ctx := r.Context()

	okPw, err := h.verifier.VerifyPassword(ctx, claims.Subject, req.CurrentPassword)
	if err != nil {
		h.log.Error("auth.change_password.verify.fail", "err", err)
		writeError(w, http.StatusServiceUnavailable, "store_unavailable", "please retry later")
		return
	}
	if !okPw {
		writeError(w, http.StatusUnauthorized, "invalid_credentials", "invalid credentials")
		return
	}

	newHash, err := identity.HashPassword(req.NewPassword)
	if err != nil {
		if errors.Is(err, password.ErrPasswordTooShort) || errors.Is(err, password.ErrPasswordTooLong) {
			writeError(w, http.StatusBadRequest, "invalid_request", "new password does not meet policy")
			return
		}
		h.log.Error("auth.change_password.hash.fail", "err", err)
		writeError(w, http.StatusInternalServerError, "server_error", "internal error")
		return
	}

	if err := h.users.UpdatePasswordHash(ctx, claims.Subject, newHash); err != nil {
		if errors.Is(err, identity.ErrNotFound) {
			writeError(w, http.StatusUnauthorized, "unauthorized", "user not found")
			return
		}
		h.log.Error("auth.change_password.update.fail", "err", err)
		writeError(w, http.StatusServiceUnavailable, "store_unavailable", "please retry later")
		return
	}

	// Credential changed: every session goes, synchronously. If this fails
	// the client must retry; the new password is already in effect.
	err = h.sessions.RevokeAll(ctx, claims.Subject)
	h.metrics.observe("revoke_all", err)
	if err != nil {
		h.writeLifecycleError(w, r, "auth.change_password.revoke", err)
		return
	}

	h.log.Info("auth.change_password.ok", "user_id", claims.Subject)
	h.clearWebSessionCookies(w)
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleMe(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	claims, ok := h.requireAuth(w, r)
	if !ok {
		return
	}

	u, err := h.users.GetUserByID(r.Context(), claims.Subject)
	if err != nil {
		if errors.Is(err, identity.ErrNotFound) {
			writeError(w, http.StatusUnauthorized, "unauthorized", "user not found")
			return
		}
		h.log.Error("auth.me.fail", "err", err)
		writeError(w, http.StatusServiceUnavailable, "store_unavailable", "please retry later")
		return
	}

	writeJSON(w, http.StatusOK, meResponse{User: toUserResponse(u)})
}

// ---- helpers ----

func (h *Handler) requireAuth(w http.ResponseWriter, r *http.Request) (session.Claims, bool) {
	raw := bearerToken(r)
	if raw == "" {
		writeError(w, http.StatusUnauthorized, "unauthorized", "missing bearer token")
		return session.Claims{}, false
	}
	claims, err := h.sessions.VerifyAccess(raw, time.Now().UTC())
	if err != nil {
		code := "invalid_token"
		if errors.Is(err, session.ErrExpiredToken) {
			code = "token_expired"
		}
		writeError(w, http.StatusUnauthorized, code, "invalid token")
		return session.Claims{}, false
	}
	return claims, true
}

func bearerToken(r *http.Request) string {
	raw := strings.TrimSpace(r.Header.Get("Authorization"))
	if raw == "" {
		return ""
	}
	parts := strings.SplitN(raw, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

func (h *Handler) lookupUserForLogin(ctx context.Context, username, email string) (identity.UserAuth, error) {
	if username != "" {
		return h.users.GetUserAuthByUsername(ctx, username)
	}
	return h.users.GetUserAuthByEmail(ctx, email)
}

// respondWithPair writes the success payload, moving the refresh token into
// the cookie transport for web clients. resp must embed the same pair.
func (h *Handler) respondWithPair(w http.ResponseWriter, resp any, pair session.TokenPair, platform string, fromCookie bool) {
	useCookies := fromCookie || h.shouldUseWebCookieTransport(normalizePlatform(platform))
	if useCookies {
		if err := h.setWebSessionCookies(w, pair.RefreshToken, pair.RefreshExpiresAt); err != nil {
			h.log.Error("auth.web_cookie.fail", "err", err)
			writeError(w, http.StatusInternalServerError, "server_error", "internal error")
			return
		}
		switch v := resp.(type) {
		case loginResponse:
			v.Session.RefreshToken = ""
			resp = v
		case refreshResponse:
			v.Session.RefreshToken = ""
			resp = v
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) writeLifecycleError(w http.ResponseWriter, r *http.Request, op string, err error) {
	switch {
	case errors.Is(err, session.ErrStoreUnavailable):
		h.log.Error(op+".store.fail", "err", err)
		writeError(w, http.StatusServiceUnavailable, "store_unavailable", "please retry later")
	case errors.Is(err, session.ErrInvalidCredentials):
		writeError(w, http.StatusUnauthorized, "invalid_credentials", "invalid credentials")
	case errors.Is(err, session.ErrExpiredToken):
		writeError(w, http.StatusUnauthorized, "token_expired", "token expired")
	case errors.Is(err, session.ErrTokenReuseOrRevoked):
		writeError(w, http.StatusUnauthorized, "token_reuse_or_revoked", "refresh token is no longer valid")
	case errors.Is(err, session.ErrInvalidToken):
		writeError(w, http.StatusUnauthorized, "invalid_token", "invalid token")
	default:
		h.log.Error(op+".fail", "err", err)
		writeError(w, http.StatusInternalServerError, "server_error", "internal error")
	}
}

func normalizePlatform(p string) string {
	return strings.ToLower(strings.TrimSpace(p))
}
