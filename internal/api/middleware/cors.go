// cors.go — CORS middleware на основе github.com/rs/cors.
// Список разрешённых origins задаётся конфигурацией (CV_ALLOWED_ORIGINS).
package middleware

import (
	"log/slog"
	"net/http"

	"github.com/rs/cors"
)

// CORS возвращает middleware с allow-list origins.
// "*" в списке разрешает любой origin. Cookies и credentials не передаются.
func CORS(allowedOrigins []string, logger *slog.Logger) func(http.Handler) http.Handler {
	opts := cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"Content-Type", "Authorization", "Origin", "Accept"},
		ExposedHeaders:   []string{"Content-Disposition", "Retry-After"},
		AllowCredentials: false,
		MaxAge:           600,
	}
	c := cors.New(opts)
	logger.Debug("CORS настроен", slog.Any("allowed_origins", allowedOrigins))
	return c.Handler
}
