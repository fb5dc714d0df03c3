// Точка входа Integration Service — подключение источников данных организаций
// к control plane (Airbyte). Загружает конфигурацию, применяет миграции,
// подключается к PostgreSQL, собирает каталог, хранилище учётных данных,
// журнал аудита и оркестратор, запускает topologymetrics и HTTP-сервер
// с graceful shutdown.
package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"

	"github.com/jackc/pgx/v5/stdlib"

	"github.com/facundoinfinure/infinure/internal/airbyte"
	"github.com/facundoinfinure/infinure/internal/api/handlers"
	"github.com/facundoinfinure/infinure/internal/api/middleware"
	"github.com/facundoinfinure/infinure/internal/api/openapi"
	"github.com/facundoinfinure/infinure/internal/catalog"
	"github.com/facundoinfinure/infinure/internal/config"
	"github.com/facundoinfinure/infinure/internal/database"
	"github.com/facundoinfinure/infinure/internal/repository"
	"github.com/facundoinfinure/infinure/internal/server"
	"github.com/facundoinfinure/infinure/internal/service"
	"github.com/facundoinfinure/infinure/internal/vault"
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
	logger.Info("Integration Service запускается",
		slog.String("version", config.Version),
		slog.Int("port", cfg.Port),
	)

	if os.Getenv("IS_DEPHEALTH_GROUP") == "" {
		logger.Warn("IS_DEPHEALTH_GROUP не задана, используется значение по умолчанию",
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
	ctx := context.Background()
	pool, err := database.Connect(ctx, cfg, logger)
	if err != nil {
		logger.Error("Ошибка подключения к PostgreSQL", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer pool.Close()

	// 4.1 Адаптер pgxpool → *sql.DB для topologymetrics (connection pool mode)
	pgDB := stdlib.OpenDBFromPool(pool)
	defer pgDB.Close()

	// 5. Клиент control plane
	if cfg.PlaintextControlPlane() {
		logger.Warn("Control plane доступен по HTTP вне локального окружения, учётные данные передаются без TLS",
			slog.String("url", cfg.AirbyteAPIURL),
		)
	}
	httpClient, err := airbyte.NewHTTPClient(cfg.AirbyteCACertPath, cfg.ControlPlaneTimeout, logger)
	if err != nil {
		logger.Error("Ошибка создания HTTP-клиента control plane", slog.String("error", err.Error()))
		os.Exit(1)
	}
	cpClient := airbyte.New(cfg.AirbyteAPIURL, airbyte.Options{
		HTTPClient: httpClient,
		Username:   cfg.AirbyteUsername,
		Password:   cfg.AirbytePassword,
		Timeout:    cfg.ControlPlaneTimeout,
	}, logger)
	logger.Info("Клиент control plane создан", slog.String("url", cfg.AirbyteAPIURL))

	// 6. Хранилище учётных данных и каталог коннекторов
	credVault, err := vault.New(cfg.EncryptionMasterKey)
	if err != nil {
		logger.Error("Ошибка инициализации шифрования", slog.String("error", err.Error()))
		os.Exit(1)
	}
	connectors, err := catalog.Load()
	if err != nil {
		logger.Error("Ошибка загрузки каталога коннекторов", slog.String("error", err.Error()))
		os.Exit(1)
	}
	logger.Info("Каталог коннекторов загружен",
		slog.Int("connectors", len(connectors.ListAll())),
		slog.Any("industries", connectors.Industries()),
	)

	// 7. Repositories
	bindingRepo := repository.NewWorkspaceBindingRepository(pool)
	integrationRepo := repository.NewDataIntegrationRepository(pool)
	auditRepo := repository.NewAuditLogRepository(pool)
	txRunner := repository.NewTxRunner(pool)

	// 8. Services
	auditTrail := service.NewAuditTrail(auditRepo, logger)
	resolver, err := service.NewWorkspaceResolver(cpClient, bindingRepo, txRunner, auditTrail, cfg.WorkspaceCacheSize, logger)
	if err != nil {
		logger.Error("Ошибка создания резолвера workspace", slog.String("error", err.Error()))
		os.Exit(1)
	}
	provisioning := service.NewProvisioningService(
		cpClient, resolver, credVault, connectors,
		integrationRepo, txRunner, auditTrail,
		service.DestinationConfig{
			Host:     cfg.DestinationDBHost,
			Port:     cfg.DestinationDBPort,
			Database: cfg.DestinationDBName,
			Username: cfg.DestinationDBUser,
			Password: cfg.DestinationDBPassword,
		},
		logger,
	)

	// 9. Readiness checkers (PostgreSQL + control plane)
	dbReadiness, err := database.NewReadinessChecker(pool)
	if err != nil {
		logger.Error("Ошибка создания проверки готовности БД", slog.String("error", err.Error()))
		os.Exit(1)
	}
	healthHandler := handlers.NewHealthHandler(dbReadiness, cpClient)
	apiHandler := handlers.NewAPIHandler(healthHandler, provisioning, logger)

	// 10. Аутентификация: JWT при заданном JWKS, иначе фиксированная организация
	var auth func(http.Handler) http.Handler
	if cfg.JWTEnabled() {
		jwtAuth, err := middleware.NewJWTAuth(
			cfg.JWTJWKSURL,
			cfg.JWTIssuer,
			cfg.JWTOrgClaim,
			cfg.JWKSClientTimeout,
			cfg.JWKSRefreshInterval,
			cfg.JWTLeeway,
			logger,
		)
		if err != nil {
			logger.Error("Ошибка создания JWT middleware", slog.String("error", err.Error()))
			os.Exit(1)
		}
		auth = jwtAuth.Middleware()
		logger.Info("JWT middleware инициализирован",
			slog.String("jwks_url", cfg.JWTJWKSURL),
			slog.String("issuer", cfg.JWTIssuer),
			slog.String("org_claim", cfg.JWTOrgClaim),
		)
	} else {
		auth = middleware.StaticOrganization(cfg.DefaultOrganizationID)
		logger.Warn("IS_JWT_JWKS_URL не задан, все запросы выполняются от организации по умолчанию",
			slog.String("organization_id", cfg.DefaultOrganizationID),
		)
	}

	// 11. Валидация запросов по OpenAPI контракту
	doc, err := openapi.Load(ctx)
	if err != nil {
		logger.Error("Ошибка загрузки OpenAPI контракта", slog.String("error", err.Error()))
		os.Exit(1)
	}
	validator, err := middleware.RequestValidator(doc)
	if err != nil {
		logger.Error("Ошибка создания валидатора запросов", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 12. topologymetrics — мониторинг зависимостей
	dephealthTargets := service.DephealthTargets{
		DB:                pgDB,
		PostgresURL:       cfg.DatabaseURL(),
		AirbyteURL:        cfg.AirbyteAPIURL,
		AirbyteHealthPath: cpClient.HealthPath(),
	}
	if cfg.JWTEnabled() {
		dephealthTargets.JWKSURL = cfg.JWTJWKSURL
	}
	dephealthSvc, dephealthErr := service.NewDephealthService(
		"integration-service",
		cfg.DephealthGroup,
		dephealthTargets,
		cfg.DephealthCheckInterval,
		logger,
	)
	if dephealthErr != nil {
		logger.Warn("topologymetrics недоступен, запуск без мониторинга зависимостей",
			slog.String("error", dephealthErr.Error()),
		)
		dephealthSvc = nil
	} else if startErr := dephealthSvc.Start(ctx); startErr != nil {
		logger.Warn("Ошибка запуска topologymetrics",
			slog.String("error", startErr.Error()),
		)
		dephealthSvc = nil
	} else {
		logger.Info("topologymetrics запущен",
			slog.String("group", cfg.DephealthGroup),
			slog.String("check_interval", cfg.DephealthCheckInterval.String()),
		)
	}

	// 13. Создание и запуск HTTP-сервера
	srv := server.New(cfg, logger, apiHandler, auth, validator)
	if err := srv.Run(); err != nil {
		logger.Error("Ошибка сервера", slog.String("error", err.Error()))
		os.Exit(1)
	}

	if dephealthSvc != nil {
		dephealthSvc.Stop()
	}

	logger.Info("Integration Service остановлен")
}
