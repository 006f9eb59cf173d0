package http

import (
	"crypto/subtle"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
)

// SecretTokenHeader — заголовок, в котором Telegram присылает секрет вебхука.
const SecretTokenHeader = "X-Telegram-Bot-Api-Secret-Token"

var errBadSecret = errors.New("неверный секрет вебхука")

// ErrorResponse описывает ошибку.
type ErrorResponse struct {
	Error     string `json:"error"`
	RequestID string `json:"request_id,omitempty"`
}

// WebhookSecretMiddleware пропускает только запросы с верным секретом.
// Пустой секрет отключает проверку.
func WebhookSecretMiddleware(secret string) func(http.Handler) http.Handler {
	expected := []byte(secret)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if len(expected) > 0 && subtle.ConstantTimeCompare([]byte(r.Header.Get(SecretTokenHeader)), expected) != 1 {
				WriteError(w, r, http.StatusUnauthorized, errBadSecret)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// WriteError отправляет JSON с ошибкой и request ID.
func WriteError(w http.ResponseWriter, r *http.Request, status int, err error) {
	WriteJSON(w, status, ErrorResponse{Error: err.Error(), RequestID: middleware.GetReqID(r.Context())})
}
