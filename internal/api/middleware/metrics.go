// metrics.go — Prometheus HTTP метрики shipdesk.
// Регистрирует метрики: sd_http_requests_total, sd_http_request_duration_seconds.
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
			Name: "sd_http_requests_total",
			Help: "Общее количество HTTP-запросов к shipdesk",
		},
		[]string{"method", "path", "status"},
	)

	// httpRequestDuration — гистограмма длительности HTTP-запросов.
	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "sd_http_request_duration_seconds",
			Help:    "Длительность HTTP-запросов к shipdesk в секундах",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)
)

// MetricsMiddleware возвращает HTTP middleware для сбора Prometheus метрик.
// Записывает количество запросов и длительность для каждого endpoint.
func MetricsMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			// Нормализуем путь для лейблов метрик
			normalizedPath := normalizePath(r.URL.Path)

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

// normalizePath заменяет идентификаторы в пути на {id}, а пути файлов
// вложений на /uploads/{path} для ограничения кардинальности метрик.
// /api/admin/contacts/a1b2c3d4-.../status → /api/admin/contacts/{id}/status
func normalizePath(path string) string {
	// Статические пути — возвращаем как есть
	switch path {
	case "/health/live", "/health/ready", "/metrics",
		"/api/contacts",
		"/api/contacts/legacy",
		"/api/contacts/status-change",
		"/api/admin/contacts",
		"/api/uploads",
		"/api/users",
		"/api/users/sign-in-admin",
		"/api/users/sign-up",
		"/api/users/change-password",
		"/api/users/reset-password",
		"/api/users/status-change":
		return path
	}

	if strings.HasPrefix(path, "/uploads/") {
		return "/uploads/{path}"
	}

	const contactsPrefix = "/api/admin/contacts/"
	if rest, ok := strings.CutPrefix(path, contactsPrefix); ok && rest != "" {
		if _, suffix, found := strings.Cut(rest, "/"); found {
			if suffix == "status" {
				return contactsPrefix + "{id}/status"
			}
			return contactsPrefix + "{id}/other"
		}
		return contactsPrefix + "{id}"
	}

	return "other"
}
