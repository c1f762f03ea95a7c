// metrics.go — Prometheus HTTP метрики Converter.
// Регистрирует метрики: cv_http_requests_total, cv_http_request_duration_seconds.
// Метрики конвертаций и sweeper-а регистрируются в пакете service.
package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP метрики
var (
	// httpRequestsTotal — общее количество HTTP-запросов.
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cv_http_requests_total",
			Help: "Общее количество HTTP-запросов к Converter",
		},
		[]string{"method", "path", "status"},
	)

	// httpRequestDuration — гистограмма длительности HTTP-запросов.
	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "cv_http_request_duration_seconds",
			Help:    "Длительность HTTP-запросов к Converter в секундах",
			Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 15, 60, 300, 900},
		},
		[]string{"method", "path"},
	)
)

// knownPaths — маршруты без параметров, попадающие в лейбл path как есть.
var knownPaths = map[string]bool{
	"/":                         true,
	"/app.js":                   true,
	"/convert":                  true,
	"/remove-audio":             true,
	"/merge":                    true,
	"/health/live":              true,
	"/health/ready":             true,
	"/metrics":                  true,
	"/api/openapi.json":         true,
	"/api/v1/info":              true,
	"/api/v1/client-config":     true,
	"/api/v1/maintenance/sweep": true,
}

// MetricsMiddleware возвращает HTTP middleware для сбора Prometheus метрик.
// downloadPrefixes — URL-префиксы раздачи артефактов ("/processed", "/downloads").
func MetricsMiddleware(downloadPrefixes ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			// Нормализуем путь для лейблов метрик
			// (имена артефактов заменяются на {filename})
			normalizedPath := normalizePath(r.URL.Path, downloadPrefixes)

			wrapped := newMetricsResponseWriter(w)
			next.ServeHTTP(wrapped, r)

			duration := time.Since(start).Seconds()
			status := strconv.Itoa(wrapped.statusCode)

			httpRequestsTotal.WithLabelValues(r.Method, normalizedPath, status).Inc()
			httpRequestDuration.WithLabelValues(r.Method, normalizedPath).Observe(duration)
		})
	}
}

// metricsResponseWriter — обёртка для перехвата статус-кода.
type metricsResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func newMetricsResponseWriter(w http.ResponseWriter) *metricsResponseWriter {
	return &metricsResponseWriter{ResponseWriter: w, statusCode: http.StatusOK}
}

func (rw *metricsResponseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Unwrap позволяет http.ResponseController получить доступ к оригинальному ResponseWriter.
func (rw *metricsResponseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}

// normalizePath приводит путь к шаблону маршрута для предотвращения
// взрывного роста кардинальности метрик.
// /processed/converted-1712345678901-a1b2c3d4.pdf → /processed/{filename}
func normalizePath(path string, downloadPrefixes []string) string {
	if knownPaths[path] {
		return path
	}
	if strings.HasPrefix(path, "/api/v1/artifacts/") {
		return "/api/v1/artifacts/{filename}"
	}
	for _, prefix := range downloadPrefixes {
		if strings.HasPrefix(path, prefix+"/") {
			return prefix + "/{filename}"
		}
	}
	return "other"
}
