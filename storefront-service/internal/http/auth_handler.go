package http

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/fjod/template_store/pkg/logger"
	"github.com/fjod/template_store/storefront-service/domain"
	"github.com/fjod/template_store/storefront-service/internal/service"
	"github.com/fjod/template_store/storefront-service/internal/session"
	"go.uber.org/zap"
)

const (
	msgLoginOK           = "Вход выполнен успешно"
	msgLoginFailed       = "Неверный email или пароль"
	msgRegisterOK        = "Регистрация прошла успешно"
	msgEmailTaken        = "Пользователь с таким email уже существует"
	msgUsernameTaken     = "Пользователь с таким именем уже существует"
	msgMissingFields     = "Пожалуйста, заполните все поля"
	msgNotAuthenticated  = "Пользователь не авторизован"
	maxFormBodySizeBytes = 1 << 20
)

type Authenticator interface {
	Login(ctx context.Context, email, password string) (*domain.User, error)
	Register(ctx context.Context, username, email, password string) (*domain.User, error)
	GetUser(ctx context.Context, id int64) (*domain.User, error)
}

type AuthHandler struct {
	auth     Authenticator
	sessions session.Store
	timeout  time.Duration
	log      *zap.Logger
}

func NewAuthHandler(auth Authenticator, sessions session.Store, timeout time.Duration, log *zap.Logger) *AuthHandler {
	return &AuthHandler{
		auth:     auth,
		sessions: sessions,
		timeout:  timeout,
		log:      log,
	}
}

type UserDTO struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
}

type UserResponse struct {
	Success bool     `json:"success"`
	User    *UserDTO `json:"user,omitempty"`
	Message string   `json:"message,omitempty"`
}

// POST /login (form: email, password)
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	r.Body = http.MaxBytesReader(w, r.Body, maxFormBodySizeBytes)
	if err := r.ParseForm(); err != nil {
		respondError(w, h.log, http.StatusBadRequest, msgBadRequest)
		return
	}

	user, err := h.auth.Login(ctx, r.PostForm.Get("email"), r.PostForm.Get("password"))
	if errors.Is(err, service.ErrInvalidCredentials) {
		respondError(w, h.log, http.StatusUnauthorized, msgLoginFailed)
		return
	}
	if err != nil {
		logger.WithContext(ctx, h.log).Error("login failed", zap.Error(err))
		respondError(w, h.log, http.StatusInternalServerError, msgInternalError)
		return
	}

	if !h.startSession(ctx, w, user) {
		return
	}
	respondJSON(w, h.log, http.StatusOK, StatusResponse{Success: true, Message: msgLoginOK})
}

// POST /register (form: username, email, password)
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	r.Body = http.MaxBytesReader(w, r.Body, maxFormBodySizeBytes)
	if err := r.ParseForm(); err != nil {
		respondError(w, h.log, http.StatusBadRequest, msgBadRequest)
		return
	}

	user, err := h.auth.Register(ctx,
		r.PostForm.Get("username"), r.PostForm.Get("email"), r.PostForm.Get("password"))
	switch {
	case errors.Is(err, service.ErrMissingFields):
		respondError(w, h.log, http.StatusBadRequest, msgMissingFields)
		return
	case errors.Is(err, service.ErrEmailTaken):
		respondError(w, h.log, http.StatusConflict, msgEmailTaken)
		return
	case errors.Is(err, service.ErrUsernameTaken):
		respondError(w, h.log, http.StatusConflict, msgUsernameTaken)
		return
	case err != nil:
		logger.WithContext(ctx, h.log).Error("register failed", zap.Error(err))
		respondError(w, h.log, http.StatusInternalServerError, msgInternalError)
		return
	}

	if !h.startSession(ctx, w, user) {
		return
	}
	respondJSON(w, h.log, http.StatusCreated, StatusResponse{Success: true, Message: msgRegisterOK})
}

// GET /logout clears the session and sends the browser home.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if sess := getSession(r.Context()); sess != nil {
		if err := h.sessions.Delete(r.Context(), sess.Token); err != nil {
			logger.WithContext(r.Context(), h.log).Warn("session delete failed", zap.Error(err))
		}
	}
	clearSessionCookie(w)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// GET /api/user
func (h *AuthHandler) CurrentUser(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	sess := getSession(r.Context())
	if sess == nil {
		respondJSON(w, h.log, http.StatusOK, UserResponse{Success: false, Message: msgNotAuthenticated})
		return
	}

	user, err := h.auth.GetUser(ctx, sess.UserID)
	if errors.Is(err, service.ErrNotAuthorized) {
		respondJSON(w, h.log, http.StatusOK, UserResponse{Success: false, Message: msgNotAuthenticated})
		return
	}
	if err != nil {
		logger.WithContext(ctx, h.log).Error("load user failed", zap.Int64("user_id", sess.UserID), zap.Error(err))
		respondError(w, h.log, http.StatusInternalServerError, msgInternalError)
		return
	}

	respondJSON(w, h.log, http.StatusOK, UserResponse{
		Success: true,
		User: &UserDTO{
			ID:       user.ID,
			Username: user.Username,
			Email:    user.Email,
		},
	})
}

func (h *AuthHandler) startSession(ctx context.Context, w http.ResponseWriter, user *domain.User) bool {
	sess, err := h.sessions.Create(ctx, user.ID, user.Username)
	if err != nil {
		logger.WithContext(ctx, h.log).Error("session create failed", zap.Error(err))
		respondError(w, h.log, http.StatusInternalServerError, msgInternalError)
		return false
	}
	setSessionCookie(w, sess)
	return true
}
