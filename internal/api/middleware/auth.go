// auth.go — middleware аутентификации по статическим Bearer-токенам.
// Токены задаются списком в R2X_API_TOKENS; пустой список отключает
// аутентификацию (режим доверенной сети). Health endpoints и /metrics
// всегда открыты — они нужны probes и Prometheus до выдачи токенов.
package middleware

import (
	"crypto/subtle"
	"log/slog"
	"net/http"
	"strings"

	apierrors "github.com/elaunira/r2index/internal/api/errors"
)

// TokenAuth — middleware статической Bearer-аутентификации.
type TokenAuth struct {
	tokens []string
	logger *slog.Logger
}

// NewTokenAuth создаёт middleware аутентификации.
// tokens — допустимые Bearer-токены; пустой срез отключает проверку.
func NewTokenAuth(tokens []string, logger *slog.Logger) *TokenAuth {
	return &TokenAuth{
		tokens: tokens,
		logger: logger.With(slog.String("component", "token_auth")),
	}
}

// isOpenPath — пути, доступные без токена.
func isOpenPath(path string) bool {
	return path == "/metrics" || path == "/health" || strings.HasPrefix(path, "/health/")
}

// Middleware возвращает HTTP middleware проверки Bearer-токена.
func (a *TokenAuth) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if len(a.tokens) == 0 || isOpenPath(r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}

			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				apierrors.Unauthorized(w, "отсутствует заголовок Authorization")
				return
			}

			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
				apierrors.Unauthorized(w, "неверный формат Authorization: ожидается Bearer <token>")
				return
			}

			if !a.tokenValid(parts[1]) {
				a.logger.Warn("Отклонён запрос с недействительным токеном",
					slog.String("remote_addr", r.RemoteAddr),
					slog.String("path", r.URL.Path),
				)
				apierrors.Unauthorized(w, "недействительный токен")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// tokenValid сравнивает предъявленный токен со списком допустимых.
// Сравнение константно по времени для каждого кандидата.
func (a *TokenAuth) tokenValid(token string) bool {
	valid := false
	for _, t := range a.tokens {
		if len(t) == len(token) && subtle.ConstantTimeCompare([]byte(t), []byte(token)) == 1 {
			valid = true
		}
	}
	return valid
}
