// Точка входа shipdesk — приём заявок на обслуживание судов.
// Загружает конфигурацию, применяет миграции, подключается к PostgreSQL,
// собирает сервисный слой (заявки, вложения, пользователи), JWT middleware
// и мониторинг зависимостей, запускает HTTP-сервер с graceful shutdown.
package main

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/jackc/pgx/v5/stdlib"

	"github.com/bigkaa/shipdesk/internal/api/handlers"
	"github.com/bigkaa/shipdesk/internal/api/middleware"
	"github.com/bigkaa/shipdesk/internal/captcha"
	"github.com/bigkaa/shipdesk/internal/config"
	"github.com/bigkaa/shipdesk/internal/database"
	"github.com/bigkaa/shipdesk/internal/notify"
	"github.com/bigkaa/shipdesk/internal/repository"
	"github.com/bigkaa/shipdesk/internal/server"
	"github.com/bigkaa/shipdesk/internal/service"
	"github.com/bigkaa/shipdesk/internal/storage"
)

func main() {
	// 1. Загрузка конфигурации из переменных окружения
	cfg, err := config.Load()
	if err != nil {
		slog.Error("Ошибка загрузки конфигурации", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 2. Настройка логирования
	logger := config.SetupLogger(cfg)
	logger.Info("shipdesk запускается",
		slog.String("version", config.Version),
		slog.Int("port", cfg.Port),
	)

	if os.Getenv("SD_DEPHEALTH_GROUP") == "" {
		logger.Warn("SD_DEPHEALTH_GROUP не задана, используется значение по умолчанию",
			slog.String("default", cfg.DephealthGroup),
		)
	}

	// 3. Применение миграций БД
	logger.Info("Применение миграций БД...")
	if err := database.Migrate(cfg, logger); err != nil {
		logger.Error("Ошибка миграций БД", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 4. Подключение к PostgreSQL (pgxpool)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool, err := database.Connect(ctx, cfg, logger)
	if err != nil {
		logger.Error("Ошибка подключения к PostgreSQL", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer pool.Close()

	// 4.1 Адаптер pgxpool → *sql.DB для topologymetrics (connection pool mode)
	pgDB := stdlib.OpenDBFromPool(pool)
	defer pgDB.Close()

	// 5. Хранилище вложений
	store, err := storage.New(cfg.UploadsDir)
	if err != nil {
		logger.Error("Ошибка инициализации хранилища вложений",
			slog.String("dir", cfg.UploadsDir),
			slog.String("error", err.Error()),
		)
		os.Exit(1)
	}
	logger.Info("Хранилище вложений готово", slog.String("dir", store.Root()))

	// 6. HTTP-клиент для reCAPTCHA, почтового API и JWKS
	httpClient := &http.Client{Timeout: cfg.HTTPClientTimeout}
	if cfg.CACertPath != "" {
		httpClient, err = buildHTTPClientWithCA(cfg.CACertPath, cfg.HTTPClientTimeout)
		if err != nil {
			logger.Error("Ошибка загрузки CA-сертификата", slog.String("path", cfg.CACertPath), slog.String("error", err.Error()))
			os.Exit(1)
		}
		logger.Info("CA-сертификат загружен", slog.String("path", cfg.CACertPath))
	}

	// 7. Внешние сервисы. Незаданный клиент остаётся nil-интерфейсом.
	var captchaVerifier service.CaptchaVerifier
	recaptchaURL := ""
	if cfg.RecaptchaSecret != "" {
		captchaClient := captcha.New(cfg.RecaptchaVerifyURL, cfg.RecaptchaSecret, httpClient, logger)
		captchaVerifier = captchaClient
		recaptchaURL = captchaClient.Endpoint()
	} else {
		logger.Warn("SD_RECAPTCHA_SECRET не задан, legacy-создание заявок отклоняется")
	}

	var notifier service.ContactNotifier
	mailURL := ""
	if cfg.MailAPIURL != "" {
		mailClient := notify.New(cfg.MailAPIURL, cfg.MailAPIToken, cfg.MailTo, cfg.MailFromName, httpClient, logger)
		notifier = mailClient
		mailURL = mailClient.Endpoint()
	} else {
		logger.Info("SD_MAIL_API_URL не задан, уведомления о заявках отключены")
	}

	// 8. Repositories
	contactRepo := repository.NewContactRepository(pool)
	userRepo := repository.NewUserRepository(pool)

	// 9. Services
	tokenIssuer := middleware.NewTokenIssuer(cfg.JWTSecret, cfg.JWTIssuer, cfg.JWTExpire)
	principalCache := service.NewPrincipalCache(userRepo, cfg.PrincipalCacheSize, cfg.PrincipalCacheTTL, logger)

	contactSvc := service.NewContactService(contactRepo, captchaVerifier, notifier, store, logger)
	attachmentSvc := service.NewAttachmentService(store, contactRepo, logger)
	userSvc := service.NewUserService(userRepo, tokenIssuer, principalCache, logger)

	// 10. Администратор по умолчанию
	if cfg.AdminEmail != "" {
		if err := userSvc.SeedAdmin(ctx, cfg.AdminEmail, cfg.AdminPassword); err != nil {
			logger.Error("Ошибка создания администратора", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}

	// 11. JWT middleware
	jwtAuth, err := middleware.NewJWTAuth(ctx, middleware.JWTAuthOptions{
		Issuer:          tokenIssuer,
		JWKSURL:         cfg.JWTJWKSURL,
		RefreshInterval: cfg.JWKSRefreshInterval,
		HTTPClient:      httpClient,
		Resolver:        principalCache,
		AdminGroups:     cfg.JWTAdminGroups,
		Leeway:          cfg.JWTLeeway,
	}, logger)
	if err != nil {
		logger.Error("Ошибка создания JWT middleware", slog.String("error", err.Error()))
		os.Exit(1)
	}
	logger.Info("JWT middleware инициализирован",
		slog.String("issuer", cfg.JWTIssuer),
		slog.String("kid", tokenIssuer.KeyID()),
		slog.String("jwks_url", cfg.JWTJWKSURL),
	)

	// 12. Handlers
	healthHandler := handlers.NewHealthHandler(database.NewReadinessChecker(pool), store)
	apiHandler := handlers.NewAPIHandler(contactSvc, attachmentSvc, userSvc, store, logger)

	// 13. topologymetrics — мониторинг зависимостей
	dephealthSvc, dephealthErr := service.NewDephealthService(service.DephealthConfig{
		ServiceID:     "shipdesk",
		Group:         cfg.DephealthGroup,
		DB:            pgDB,
		PostgresURL:   cfg.DatabaseURL(),
		MailAPIURL:    mailURL,
		RecaptchaURL:  recaptchaURL,
		CheckInterval: cfg.DephealthCheckInterval,
	}, logger)
	if dephealthErr != nil {
		logger.Warn("topologymetrics недоступен, запуск без мониторинга зависимостей",
			slog.String("error", dephealthErr.Error()),
		)
		dephealthSvc = nil
	} else if startErr := dephealthSvc.Start(ctx); startErr != nil {
		logger.Warn("Ошибка запуска topologymetrics",
			slog.String("error", startErr.Error()),
		)
	} else {
		logger.Info("topologymetrics запущен",
			slog.String("group", cfg.DephealthGroup),
			slog.String("check_interval", cfg.DephealthCheckInterval.String()),
		)
	}

	// 14. Создание и запуск HTTP-сервера
	srv := server.New(cfg, logger, apiHandler, healthHandler, jwtAuth)
	if err := srv.Run(); err != nil {
		logger.Error("Ошибка сервера", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 15. Остановка фоновых задач
	if dephealthSvc != nil {
		dephealthSvc.Stop()
	}

	logger.Info("shipdesk остановлен")
}

// buildHTTPClientWithCA создаёт HTTP-клиент с дополнительным CA-сертификатом.
func buildHTTPClientWithCA(caCertPath string, timeout time.Duration) (*http.Client, error) {
	caCert, err := os.ReadFile(caCertPath)
	if err != nil {
		return nil, err
	}

	caCertPool, err := x509.SystemCertPool()
	if err != nil {
		caCertPool = x509.NewCertPool()
	}
	if !caCertPool.AppendCertsFromPEM(caCert) {
		return nil, fmt.Errorf("в %s нет PEM-сертификатов", caCertPath)
	}

	return &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			TLSClientConfig: &tls.Config{
				RootCAs: caCertPool,
			},
		},
	}, nil
}
