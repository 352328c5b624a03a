// Пакет database — пул PostgreSQL, миграции схемы заявок и проверка готовности.
package database

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/bigkaa/shipdesk/internal/config"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

const (
	pingTimeout     = 5 * time.Second
	readyTimeout    = 3 * time.Second
	maxConnIdleTime = 5 * time.Minute
)

// PoolConfig собирает настройки pgxpool из конфигурации сервиса.
func PoolConfig(cfg *config.Config) (*pgxpool.Config, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DatabaseDSN())
	if err != nil {
		return nil, fmt.Errorf("разбор DSN: %w", err)
	}
	poolCfg.MaxConns = int32(cfg.DBMaxConns)
	poolCfg.MinConns = int32(cfg.DBMinConns)
	poolCfg.MaxConnIdleTime = maxConnIdleTime
	poolCfg.ConnConfig.RuntimeParams["application_name"] = "shipdesk"
	return poolCfg, nil
}

// Connect открывает пул и дожидается ответа сервера.
func Connect(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*pgxpool.Pool, error) {
	poolCfg, err := PoolConfig(cfg)
	if err != nil {
		return nil, err
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("создание пула: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("PostgreSQL %s:%d не отвечает: %w", cfg.DBHost, cfg.DBPort, err)
	}

	logger.Info("PostgreSQL подключён",
		slog.String("host", cfg.DBHost),
		slog.Int("port", cfg.DBPort),
		slog.String("database", cfg.DBName),
		slog.Int("max_conns", cfg.DBMaxConns),
	)
	return pool, nil
}

// Migrate доводит схему до последней версии. Повторный запуск ничего не меняет.
func Migrate(cfg *config.Config, logger *slog.Logger) error {
	source, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("источник миграций: %w", err)
	}

	m, err := migrate.NewWithSourceInstance("iofs", source, cfg.MigrateURL())
	if err != nil {
		return fmt.Errorf("инициализация migrate: %w", err)
	}
	defer m.Close()

	upErr := m.Up()
	if upErr != nil && !errors.Is(upErr, migrate.ErrNoChange) {
		return fmt.Errorf("применение миграций: %w", upErr)
	}

	version, dirty, err := m.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return fmt.Errorf("версия схемы: %w", err)
	}
	logger.Info("Схема БД актуальна",
		slog.Uint64("version", uint64(version)),
		slog.Bool("dirty", dirty),
		slog.Bool("changed", upErr == nil),
	)
	return nil
}

// pinger — часть pgxpool.Pool, нужная проверке готовности.
type pinger interface {
	Ping(ctx context.Context) error
}

// ReadinessChecker отвечает на /health/ready за PostgreSQL.
type ReadinessChecker struct {
	db      pinger
	timeout time.Duration
}

func NewReadinessChecker(pool *pgxpool.Pool) *ReadinessChecker {
	return &ReadinessChecker{db: pool, timeout: readyTimeout}
}

// CheckReady пингует базу с коротким таймаутом.
func (c *ReadinessChecker) CheckReady() (string, string) {
	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()

	if err := c.db.Ping(ctx); err != nil {
		return "fail", "PostgreSQL не отвечает: " + err.Error()
	}
	return "ok", ""
}
