package auth

import (
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/NordCoder/Stocker/internal/domain/user"
	"github.com/NordCoder/Stocker/internal/obs"
)

const maxBodyBytes = 1 << 20

type Server struct {
	log        *zap.Logger
	uc         *Usecase
	gate       *Gate
	cookies    CookieConfig
	trustProxy bool
}

type Opts struct {
	Logger  *zap.Logger
	Cookies CookieConfig
	// TrustProxy takes the client address from X-Forwarded-For / X-Real-IP.
	TrustProxy bool
}

func NewServer(uc *Usecase, gate *Gate, o Opts) *Server {
	log := o.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &Server{
		log:        log,
		uc:         uc,
		gate:       gate,
		cookies:    o.Cookies.withDefaults(),
		trustProxy: o.TrustProxy,
	}
}

func (s *Server) Mount(r *mux.Router) {
	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/auth/login", s.Login).Methods(http.MethodPost)
	api.HandleFunc("/auth/refresh", s.Refresh).Methods(http.MethodPost)
	api.HandleFunc("/auth/logout", s.Logout).Methods(http.MethodPost)

	protected := api.NewRoute().Subrouter()
	protected.Use(s.gate.Middleware)
	protected.HandleFunc("/auth/me", s.Me).Methods(http.MethodGet)
	protected.HandleFunc("/profile/password", s.ChangePassword).Methods(http.MethodPut)

	admin := protected.NewRoute().Subrouter()
	admin.Use(RequireRole(user.RoleAdmin))
	admin.HandleFunc("/auth/register", s.Register).Methods(http.MethodPost)
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type sessionResponse struct {
	Message          string    `json:"message"`
	AccessExpiresAt  time.Time `json:"access_expires_at"`
	RefreshExpiresAt time.Time `json:"refresh_expires_at"`
}

func (s *Server) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeErr(w, err)
		return
	}

	pair, err := s.uc.Login(r.Context(), LoginInput{
		Username: req.Username,
		Password: req.Password,
		IP:       s.clientIP(r),
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}

	s.setSessionCookies(w, pair)
	writeJSON(w, http.StatusOK, sessionResponse{
		Message:          "login successful",
		AccessExpiresAt:  pair.AccessExpiresAt,
		RefreshExpiresAt: pair.RefreshExpiresAt,
	})
}

func (s *Server) Refresh(w http.ResponseWriter, r *http.Request) {
	pair, err := s.uc.Refresh(r.Context(), s.refreshToken(r))
	if err != nil {
		s.clearSessionCookies(w)
		s.fail(w, r, err)
		return
	}

	s.setSessionCookies(w, pair)
	writeJSON(w, http.StatusOK, sessionResponse{
		Message:          "session refreshed",
		AccessExpiresAt:  pair.AccessExpiresAt,
		RefreshExpiresAt: pair.RefreshExpiresAt,
	})
}

func (s *Server) Logout(w http.ResponseWriter, r *http.Request) {
	s.uc.Logout(r.Context(), s.refreshToken(r))
	s.clearSessionCookies(w)
	writeJSON(w, http.StatusOK, map[string]string{"message": "logged out"})
}

func (s *Server) Me(w http.ResponseWriter, r *http.Request) {
	id, ok := IdentityFromCtx(r.Context())
	if !ok {
		writeErr(w, ErrUnauthenticated)
		return
	}
	ident, err := s.uc.WhoAmI(r.Context(), id.SubjectID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ident)
}

type registerRequest struct {
	Username string    `json:"username"`
	Password string    `json:"password"`
	Email    string    `json:"email"`
	Role     user.Role `json:"role"`
}

func (s *Server) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeErr(w, err)
		return
	}
	ident, err := s.uc.Register(r.Context(), RegisterInput(req))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, ident)
}

type changePasswordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

func (s *Server) ChangePassword(w http.ResponseWriter, r *http.Request) {
	id, ok := IdentityFromCtx(r.Context())
	if !ok {
		writeErr(w, ErrUnauthenticated)
		return
	}
	var req changePasswordRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeErr(w, err)
		return
	}
	if req.CurrentPassword == "" || req.NewPassword == "" {
		writeErr(w, ErrInvalidInput)
		return
	}
	if err := s.uc.ChangePassword(r.Context(), id.SubjectID, req.CurrentPassword, req.NewPassword); err != nil {
		s.fail(w, r, err)
		return
	}
	// Every refresh token was revoked, including this session's.
	s.clearSessionCookies(w)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) refreshToken(r *http.Request) string {
	if c, err := r.Cookie(s.cookies.RefreshName); err == nil && c.Value != "" {
		return c.Value
	}
	return strings.TrimSpace(r.Header.Get("X-Refresh-Token"))
}

func (s *Server) clientIP(r *http.Request) string {
	if s.trustProxy {
		if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
			first, _, _ := strings.Cut(xff, ",")
			if ip := net.ParseIP(strings.TrimSpace(first)); ip != nil {
				return ip.String()
			}
		}
		if ip := net.ParseIP(strings.TrimSpace(r.Header.Get("X-Real-IP"))); ip != nil {
			return ip.String()
		}
	}
	return obs.RemoteIP(r)
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	if status, _ := classify(err); status == http.StatusInternalServerError {
		obs.WithTrace(r.Context(), s.log).Error("request failed",
			zap.String("path", r.URL.Path), zap.Error(err))
		obs.CaptureError(r.Context(), err)
	}
	writeErr(w, err)
}

type errorBody struct {
	Error            string `json:"error"`
	Message          string `json:"message"`
	RemainingMinutes int    `json:"remaining_minutes,omitempty"`
}

func classify(err error) (int, string) {
	var locked *LockedError
	switch {
	case errors.As(err, &locked):
		return http.StatusTooManyRequests, "account_locked"
	case errors.Is(err, ErrInvalidCredentials):
		return http.StatusUnauthorized, "invalid_credentials"
	case errors.Is(err, ErrAccountInactive):
		return http.StatusForbidden, "account_inactive"
	case errors.Is(err, ErrTokenExpired):
		return http.StatusUnauthorized, "token_expired"
	case errors.Is(err, ErrInvalidToken):
		return http.StatusUnauthorized, "invalid_token"
	case errors.Is(err, ErrTokenRevoked):
		return http.StatusForbidden, "token_revoked"
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden, "forbidden"
	case errors.Is(err, ErrForbiddenRole):
		return http.StatusForbidden, "insufficient_permissions"
	case errors.Is(err, ErrUnauthenticated):
		return http.StatusForbidden, "unauthenticated"
	case errors.Is(err, ErrConflict):
		return http.StatusConflict, "conflict"
	case errors.Is(err, ErrWeakPassword):
		return http.StatusBadRequest, "weak_password"
	case errors.Is(err, ErrInvalidInput):
		return http.StatusBadRequest, "invalid_input"
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound, "not_found"
	default:
		return http.StatusInternalServerError, "internal"
	}
}

func writeErr(w http.ResponseWriter, err error) {
	status, code := classify(err)
	body := errorBody{Error: code, Message: err.Error()}
	if status == http.StatusInternalServerError {
		body.Message = "internal error"
	}
	var locked *LockedError
	if errors.As(err, &locked) {
		body.RemainingMinutes = locked.RemainingMinutes()
		w.Header().Set("Retry-After", strconv.Itoa(int(locked.RetryAfter().Round(time.Second).Seconds())))
	}
	writeJSON(w, status, body)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return fmt.Errorf("%w: malformed JSON body", ErrInvalidInput)
	}
	return nil
}
