package http

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"
)

const (
	msgNotFound      = "Страница не найдена"
	msgInternalError = "Внутренняя ошибка сервера"
	msgUnauthorized  = "Необходимо авторизоваться"
	msgBadRequest    = "Некорректный запрос"
)

// StatusResponse is the envelope every JSON endpoint answers with.
type StatusResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

func respondJSON(w http.ResponseWriter, log *zap.Logger, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Warn("failed to encode response", zap.Int("status", status), zap.Error(err))
	}
}

func respondError(w http.ResponseWriter, log *zap.Logger, status int, message string) {
	respondJSON(w, log, status, StatusResponse{
		Success: false,
		Message: message,
	})
}

// NotFound answers unknown routes.
func NotFound(log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		respondError(w, log, http.StatusNotFound, msgNotFound)
	}
}

// MethodNotAllowed answers known routes hit with the wrong verb.
func MethodNotAllowed(log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		respondError(w, log, http.StatusMethodNotAllowed, msgNotFound)
	}
}
