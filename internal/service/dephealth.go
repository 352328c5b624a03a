// dephealth.go — интеграция с topologymetrics SDK для мониторинга зависимостей.
//
// shipdesk мониторит:
//   - PostgreSQL — SQL checker через существующий pgxpool (connection pool mode, critical)
//   - HTTP API почтовых уведомлений — если настроен (non-critical)
//   - reCAPTCHA siteverify — если задан секрет (non-critical)
//
// Метрики доступны на /metrics вместе с остальными Prometheus-метриками:
//   - app_dependency_health — состояние зависимости (1 = ok, 0 = fail)
//   - app_dependency_latency_seconds — задержка проверки
package service

import (
	"context"
	"database/sql"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/BigKAA/topologymetrics/sdk-go/dephealth"
	_ "github.com/BigKAA/topologymetrics/sdk-go/dephealth/checks/httpcheck" // HTTP checker для внешних API
	"github.com/BigKAA/topologymetrics/sdk-go/dephealth/checks/pgcheck"     // PostgreSQL checker (pool mode)
	"github.com/prometheus/client_golang/prometheus"
)

// Имена зависимостей в метриках.
const (
	depPostgres  = "postgresql"
	depMailAPI   = "mail-api"
	depRecaptcha = "recaptcha"
)

// DephealthConfig — параметры мониторинга зависимостей.
type DephealthConfig struct {
	// ServiceID — имя вершины графа текущего приложения
	ServiceID string
	// Group — имя группы в метриках (SD_DEPHEALTH_GROUP)
	Group string
	// DB — *sql.DB, полученный из pgxpool через stdlib.OpenDBFromPool()
	DB *sql.DB
	// PostgresURL — URL PostgreSQL для лейблов (без пароля)
	PostgresURL string
	// MailAPIURL — URL почтового API (пустой — не мониторится)
	MailAPIURL string
	// RecaptchaURL — URL проверки reCAPTCHA (пустой — не мониторится)
	RecaptchaURL  string
	CheckInterval time.Duration
}

// DephealthService — сервис мониторинга зависимостей через topologymetrics.
type DephealthService struct {
	dh     *dephealth.DepHealth
	names  []string
	logger *slog.Logger
}

// NewDephealthService создаёт сервис мониторинга зависимостей.
// Метрики регистрируются в глобальном Prometheus registry.
func NewDephealthService(cfg DephealthConfig, logger *slog.Logger) (*DephealthService, error) {
	return newDephealthService(cfg, logger)
}

// NewDephealthServiceWithRegisterer создаёт сервис с указанным Prometheus registerer.
// Используется в тестах для изоляции метрик.
func NewDephealthServiceWithRegisterer(cfg DephealthConfig, logger *slog.Logger, registerer prometheus.Registerer) (*DephealthService, error) {
	return newDephealthService(cfg, logger, dephealth.WithRegisterer(registerer))
}

func newDephealthService(cfg DephealthConfig, logger *slog.Logger, extraOpts ...dephealth.Option) (*DephealthService, error) {
	opts := []dephealth.Option{
		dephealth.WithLogger(logger),
		// PostgreSQL — connection pool mode через существующий pgxpool.
		// pgcheck.New + AddDependency напрямую, без contrib/sqldb.
		dephealth.AddDependency(depPostgres, dephealth.TypePostgres,
			pgcheck.New(pgcheck.WithDB(cfg.DB)),
			dephealth.FromURL(cfg.PostgresURL),
			dephealth.CheckInterval(cfg.CheckInterval),
			dephealth.Critical(true),
		),
	}
	names := []string{depPostgres}

	for _, dep := range httpDependencies(cfg) {
		opts = append(opts, dephealth.HTTP(dep.name,
			dephealth.FromURL(dep.url),
			dephealth.WithHTTPHealthPath(healthPath(dep.url)),
			dephealth.CheckInterval(cfg.CheckInterval),
			dephealth.Critical(false),
		))
		names = append(names, dep.name)
	}
	opts = append(opts, extraOpts...)

	dh, err := dephealth.New(cfg.ServiceID, cfg.Group, opts...)
	if err != nil {
		return nil, err
	}

	return &DephealthService{
		dh:     dh,
		names:  names,
		logger: logger.With(slog.String("component", "dephealth")),
	}, nil
}

type httpDependency struct {
	name string
	url  string
}

// httpDependencies — внешние HTTP API, для которых задан URL.
func httpDependencies(cfg DephealthConfig) []httpDependency {
	var deps []httpDependency
	if cfg.MailAPIURL != "" {
		deps = append(deps, httpDependency{name: depMailAPI, url: cfg.MailAPIURL})
	}
	if cfg.RecaptchaURL != "" {
		deps = append(deps, httpDependency{name: depRecaptcha, url: cfg.RecaptchaURL})
	}
	return deps
}

// healthPath — path самого URL API; у внешних сервисов нет /health.
func healthPath(raw string) string {
	parsed, err := url.Parse(raw)
	if err != nil || parsed.Path == "" {
		return "/"
	}
	return parsed.Path
}

// Start запускает периодическую проверку зависимостей.
func (ds *DephealthService) Start(ctx context.Context) error {
	ds.logger.Info("Мониторинг зависимостей запущен",
		slog.String("dependencies", strings.Join(ds.names, ",")),
	)
	return ds.dh.Start(ctx)
}

// Stop останавливает мониторинг зависимостей.
func (ds *DephealthService) Stop() {
	ds.dh.Stop()
	ds.logger.Info("Мониторинг зависимостей остановлен")
}
