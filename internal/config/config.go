// Пакет config — загрузка и валидация конфигурации shipdesk
// из переменных окружения (префикс SD_) и опционального .env файла.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Версия приложения, задаётся при сборке через -ldflags.
var Version = "dev"

// Config содержит все параметры конфигурации shipdesk.
type Config struct {
	// --- Сервер ---

	// Порт HTTP-сервера
	Port int
	// Уровень логирования (debug, info, warn, error)
	LogLevel slog.Level
	// Формат логов (json, text)
	LogFormat string

	// --- PostgreSQL ---

	DBHost     string
	DBPort     int
	DBName     string
	DBUser     string
	DBPassword string
	// Режим SSL: disable, require, verify-ca, verify-full
	DBSSLMode string
	// Размер пула подключений
	DBMaxConns int
	DBMinConns int

	// --- JWT ---

	// Секрет подписи HS256 токенов, выдаваемых sign-in
	JWTSecret string
	// Issuer выдаваемых и принимаемых токенов
	JWTIssuer string
	// Срок жизни токена
	JWTExpire time.Duration
	// Допустимое отклонение часов при проверке exp/nbf
	JWTLeeway time.Duration
	// URL внешнего JWKS (опционально, токены внешнего IdP)
	JWTJWKSURL string
	// Интервал обновления внешнего JWKS
	JWKSRefreshInterval time.Duration
	// Группы внешнего IdP, дающие роль admin (claim groups)
	JWTAdminGroups []string

	// --- Кэш принципалов ---

	// Максимальное число записей в кэше ролей
	PrincipalCacheSize int
	// TTL записи в кэше ролей
	PrincipalCacheTTL time.Duration

	// --- Вложения ---

	// Корневая директория загрузок (файлы лежат в <UploadsDir>/contacts/<id>/)
	UploadsDir string

	// --- reCAPTCHA ---

	// Секретный ключ reCAPTCHA (пустой — legacy-создание всегда отклоняется)
	RecaptchaSecret string
	// URL проверки токена
	RecaptchaVerifyURL string

	// --- Почтовые уведомления ---

	// URL HTTP API отправки писем (пустой — уведомления отключены)
	MailAPIURL string
	// Токен HTTP API отправки писем
	MailAPIToken string
	// Адрес получателя уведомлений о новых заявках
	MailTo string
	// Имя отправителя
	MailFromName string

	// --- Администратор по умолчанию ---

	// E-mail администратора, создаваемого при старте (пустой — не создаётся)
	AdminEmail string
	// Пароль администратора по умолчанию
	AdminPassword string

	// Таймаут исходящих HTTP-запросов (reCAPTCHA, почта, JWKS)
	HTTPClientTimeout time.Duration
	// CA-сертификат для исходящих TLS-соединений (пустой — системный пул)
	CACertPath string

	// --- topologymetrics ---

	DephealthGroup         string
	DephealthCheckInterval time.Duration

	// Таймаут graceful shutdown HTTP-сервера
	ShutdownTimeout time.Duration
}

// Load загружает конфигурацию из переменных окружения, валидирует
// обязательные поля и возвращает Config или ошибку.
// Перед чтением окружения подгружается .env (SD_ENV_FILE), если он существует;
// уже заданные переменные окружения не перезаписываются.
func Load() (*Config, error) {
	if err := loadDotEnv(getEnvDefault("SD_ENV_FILE", ".env")); err != nil {
		return nil, err
	}

	cfg := &Config{}
	var err error

	// --- Сервер ---

	cfg.Port, err = getEnvInt("SD_PORT", 8080)
	if err != nil {
		return nil, fmt.Errorf("SD_PORT: %w", err)
	}
	if cfg.Port < 1 || cfg.Port > 65535 {
		return nil, fmt.Errorf("SD_PORT: значение %d вне допустимого диапазона 1-65535", cfg.Port)
	}

	cfg.LogLevel, err = parseLogLevel(getEnvDefault("SD_LOG_LEVEL", "info"))
	if err != nil {
		return nil, fmt.Errorf("SD_LOG_LEVEL: %w", err)
	}

	cfg.LogFormat = getEnvDefault("SD_LOG_FORMAT", "json")
	if cfg.LogFormat != "json" && cfg.LogFormat != "text" {
		return nil, fmt.Errorf("SD_LOG_FORMAT: недопустимое значение %q, допустимые: json, text", cfg.LogFormat)
	}

	// --- PostgreSQL ---

	cfg.DBHost, err = getEnvRequired("SD_DB_HOST")
	if err != nil {
		return nil, err
	}
	cfg.DBPort, err = getEnvInt("SD_DB_PORT", 5432)
	if err != nil {
		return nil, fmt.Errorf("SD_DB_PORT: %w", err)
	}
	cfg.DBName, err = getEnvRequired("SD_DB_NAME")
	if err != nil {
		return nil, err
	}
	cfg.DBUser, err = getEnvRequired("SD_DB_USER")
	if err != nil {
		return nil, err
	}
	cfg.DBPassword, err = getEnvRequired("SD_DB_PASSWORD")
	if err != nil {
		return nil, err
	}
	cfg.DBSSLMode = getEnvDefault("SD_DB_SSL_MODE", "disable")
	validSSLModes := map[string]bool{
		"disable": true, "require": true, "verify-ca": true, "verify-full": true,
	}
	if !validSSLModes[cfg.DBSSLMode] {
		return nil, fmt.Errorf("SD_DB_SSL_MODE: недопустимое значение %q, допустимые: disable, require, verify-ca, verify-full", cfg.DBSSLMode)
	}
	cfg.DBMaxConns, err = getEnvInt("SD_DB_MAX_CONNS", 10)
	if err != nil {
		return nil, fmt.Errorf("SD_DB_MAX_CONNS: %w", err)
	}
	if cfg.DBMaxConns < 1 {
		return nil, fmt.Errorf("SD_DB_MAX_CONNS: должно быть не меньше 1, получено %d", cfg.DBMaxConns)
	}
	cfg.DBMinConns, err = getEnvInt("SD_DB_MIN_CONNS", 0)
	if err != nil {
		return nil, fmt.Errorf("SD_DB_MIN_CONNS: %w", err)
	}
	if cfg.DBMinConns < 0 || cfg.DBMinConns > cfg.DBMaxConns {
		return nil, fmt.Errorf("SD_DB_MIN_CONNS: %d вне диапазона 0..%d", cfg.DBMinConns, cfg.DBMaxConns)
	}

	// --- JWT ---

	cfg.JWTSecret, err = getEnvRequired("SD_JWT_SECRET")
	if err != nil {
		return nil, err
	}
	if len(cfg.JWTSecret) < 32 {
		return nil, fmt.Errorf("SD_JWT_SECRET: длина секрета %d, минимум 32 байта", len(cfg.JWTSecret))
	}
	cfg.JWTIssuer = getEnvDefault("SD_JWT_ISSUER", "shipdesk")
	cfg.JWTExpire, err = getEnvDuration("SD_JWT_EXPIRE", 24*time.Hour)
	if err != nil {
		return nil, fmt.Errorf("SD_JWT_EXPIRE: %w", err)
	}
	cfg.JWTLeeway, err = getEnvDuration("SD_JWT_LEEWAY", 30*time.Second)
	if err != nil {
		return nil, fmt.Errorf("SD_JWT_LEEWAY: %w", err)
	}
	cfg.JWTJWKSURL = getEnvDefault("SD_JWT_JWKS_URL", "")
	if cfg.JWTJWKSURL != "" {
		if err := validateHTTPURL(cfg.JWTJWKSURL); err != nil {
			return nil, fmt.Errorf("SD_JWT_JWKS_URL: %w", err)
		}
	}
	cfg.JWKSRefreshInterval, err = getEnvDuration("SD_JWKS_REFRESH_INTERVAL", 15*time.Minute)
	if err != nil {
		return nil, fmt.Errorf("SD_JWKS_REFRESH_INTERVAL: %w", err)
	}
	cfg.JWTAdminGroups = parseCSV(getEnvDefault("SD_JWT_ADMIN_GROUPS", "shipdesk-admins"))

	// --- Кэш принципалов ---

	cfg.PrincipalCacheSize, err = getEnvInt("SD_PRINCIPAL_CACHE_SIZE", 1000)
	if err != nil {
		return nil, fmt.Errorf("SD_PRINCIPAL_CACHE_SIZE: %w", err)
	}
	if cfg.PrincipalCacheSize < 1 {
		return nil, fmt.Errorf("SD_PRINCIPAL_CACHE_SIZE: значение %d должно быть положительным", cfg.PrincipalCacheSize)
	}
	cfg.PrincipalCacheTTL, err = getEnvDuration("SD_PRINCIPAL_CACHE_TTL", time.Minute)
	if err != nil {
		return nil, fmt.Errorf("SD_PRINCIPAL_CACHE_TTL: %w", err)
	}

	// --- Вложения ---

	cfg.UploadsDir = getEnvDefault("SD_UPLOADS_DIR", "uploads")

	// --- reCAPTCHA ---

	cfg.RecaptchaSecret = getEnvDefault("SD_RECAPTCHA_SECRET", "")
	cfg.RecaptchaVerifyURL = getEnvDefault("SD_RECAPTCHA_VERIFY_URL", "https://www.google.com/recaptcha/api/siteverify")
	if err := validateHTTPURL(cfg.RecaptchaVerifyURL); err != nil {
		return nil, fmt.Errorf("SD_RECAPTCHA_VERIFY_URL: %w", err)
	}

	// --- Почта ---

	cfg.MailAPIURL = getEnvDefault("SD_MAIL_API_URL", "")
	if cfg.MailAPIURL != "" {
		if err := validateHTTPURL(cfg.MailAPIURL); err != nil {
			return nil, fmt.Errorf("SD_MAIL_API_URL: %w", err)
		}
		cfg.MailTo, err = getEnvRequired("SD_MAIL_TO")
		if err != nil {
			return nil, err
		}
	}
	cfg.MailAPIToken = getEnvDefault("SD_MAIL_API_TOKEN", "")
	cfg.MailFromName = getEnvDefault("SD_MAIL_FROM_NAME", "Shipdesk")

	// --- Администратор по умолчанию ---

	cfg.AdminEmail = getEnvDefault("SD_ADMIN_EMAIL", "")
	cfg.AdminPassword = getEnvDefault("SD_ADMIN_PASSWORD", "")
	if (cfg.AdminEmail == "") != (cfg.AdminPassword == "") {
		return nil, errors.New("SD_ADMIN_EMAIL и SD_ADMIN_PASSWORD задаются только вместе")
	}

	cfg.HTTPClientTimeout, err = getEnvDuration("SD_HTTP_CLIENT_TIMEOUT", 10*time.Second)
	if err != nil {
		return nil, fmt.Errorf("SD_HTTP_CLIENT_TIMEOUT: %w", err)
	}
	cfg.CACertPath = getEnvDefault("SD_CA_CERT_PATH", "")
	if cfg.CACertPath != "" {
		if _, err := os.Stat(cfg.CACertPath); err != nil {
			return nil, fmt.Errorf("SD_CA_CERT_PATH: %w", err)
		}
	}

	// --- topologymetrics ---

	cfg.DephealthGroup = getEnvDefault("SD_DEPHEALTH_GROUP", "shipdesk")
	cfg.DephealthCheckInterval, err = getEnvDuration("SD_DEPHEALTH_CHECK_INTERVAL", 15*time.Second)
	if err != nil {
		return nil, fmt.Errorf("SD_DEPHEALTH_CHECK_INTERVAL: %w", err)
	}

	cfg.ShutdownTimeout, err = getEnvDuration("SD_SHUTDOWN_TIMEOUT", 5*time.Second)
	if err != nil {
		return nil, fmt.Errorf("SD_SHUTDOWN_TIMEOUT: %w", err)
	}

	return cfg, nil
}

// DatabaseDSN возвращает строку подключения к PostgreSQL.
func (c *Config) DatabaseDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d dbname=%s user=%s password=%s sslmode=%s",
		c.DBHost, c.DBPort, c.DBName, c.DBUser, c.DBPassword, c.DBSSLMode,
	)
}

// DatabaseURL возвращает URL PostgreSQL без пароля (для лейблов topologymetrics).
func (c *Config) DatabaseURL() string {
	return fmt.Sprintf("postgres://%s@%s:%d/%s", c.DBUser, c.DBHost, c.DBPort, c.DBName)
}

// MigrateURL возвращает URL для golang-migrate (драйвер pgx5).
func (c *Config) MigrateURL() string {
	u := url.URL{
		Scheme:   "pgx5",
		User:     url.UserPassword(c.DBUser, c.DBPassword),
		Host:     fmt.Sprintf("%s:%d", c.DBHost, c.DBPort),
		Path:     "/" + c.DBName,
		RawQuery: "sslmode=" + c.DBSSLMode,
	}
	return u.String()
}

// SetupLogger настраивает глобальный slog-логгер на основе конфигурации.
func SetupLogger(cfg *Config) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}

	var handler slog.Handler
	if cfg.LogFormat == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

// --- Вспомогательные функции ---

// loadDotEnv подгружает переменные из файла, отсутствие файла ошибкой не считается.
func loadDotEnv(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("чтение %s: %w", path, err)
	}
	return nil
}

func getEnvRequired(key string) (string, error) {
	val := os.Getenv(key)
	if val == "" {
		return "", fmt.Errorf("%s: обязательная переменная окружения не задана", key)
	}
	return val, nil
}

func getEnvDefault(key, defaultVal string) string {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	return val
}

func getEnvInt(key string, defaultVal int) (int, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return 0, fmt.Errorf("некорректное целое число: %q", val)
	}
	return n, nil
}

// getEnvDuration возвращает time.Duration из переменной окружения или значение по умолчанию.
func getEnvDuration(key string, defaultVal time.Duration) (time.Duration, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return 0, fmt.Errorf("некорректная длительность: %q (используйте формат Go: 30s, 1h, 15m)", val)
	}
	return d, nil
}

// parseCSV разбирает строку, разделённую запятыми, в срез строк.
// Пустые элементы отбрасываются, пробелы обрезаются.
func parseCSV(s string) []string {
	parts := strings.Split(s, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			result = append(result, t)
		}
	}
	return result
}

// parseLogLevel преобразует строку уровня логирования в slog.Level.
func parseLogLevel(level string) (slog.Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("недопустимый уровень %q, допустимые: debug, info, warn, error", level)
	}
}

// validateHTTPURL проверяет, что строка — абсолютный http(s) URL.
func validateHTTPURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("некорректный URL %q: %w", raw, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("ожидается http(s) URL, получено %q", raw)
	}
	return nil
}
