// Пакет config — загрузка и валидация конфигурации Integration Service
// из переменных окружения (префикс IS_).
package config

import (
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

// Версия приложения, задаётся при сборке через -ldflags.
var Version = "dev"

// Config содержит все параметры конфигурации Integration Service.
type Config struct {
	// --- Сервер ---

	// Порт HTTP-сервера
	Port int
	// Уровень логирования (debug, info, warn, error)
	LogLevel slog.Level
	// Формат логов (json, text)
	LogFormat string

	// --- PostgreSQL (собственная БД сервиса) ---

	DBHost     string
	DBPort     int
	DBName     string
	DBUser     string
	DBPassword string
	// Режим SSL: disable, require, verify-ca, verify-full
	DBSSLMode string
	// Максимальный размер пула подключений
	DBMaxConns int
	// Время жизни подключения в пуле
	DBMaxConnLifetime time.Duration

	// --- Control plane (Airbyte) ---

	// Базовый URL API control plane (например, http://localhost:8000/api)
	AirbyteAPIURL string
	// Basic auth для control plane (опционально)
	AirbyteUsername string
	AirbytePassword string
	// Путь к CA-сертификату для TLS-соединений с control plane (опционально)
	AirbyteCACertPath string
	// Таймаут одного вызова control plane
	ControlPlaneTimeout time.Duration

	// --- Шифрование учётных данных ---

	// Мастер-секрет для вывода ключей организаций. Никогда не логируется.
	EncryptionMasterKey string

	// --- Destination (хранилище, куда control plane выгружает данные) ---

	DestinationDBHost     string
	DestinationDBPort     int
	DestinationDBName     string
	DestinationDBUser     string
	DestinationDBPassword string

	// --- Workspace ---

	// Размер in-process кэша привязок организация → workspace
	WorkspaceCacheSize int

	// --- Организация и JWT ---

	// Организация по умолчанию, если JWT-валидация не настроена
	DefaultOrganizationID string
	// URL JWKS endpoint (пусто — JWT не проверяется)
	JWTJWKSURL string
	// Ожидаемый issuer (пусто — не проверяется)
	JWTIssuer string
	// Claim с идентификатором организации
	JWTOrgClaim string
	// Таймаут HTTP-клиента JWKS
	JWKSClientTimeout time.Duration
	// Интервал обновления JWKS
	JWKSRefreshInterval time.Duration
	// Допустимое расхождение часов при проверке exp/nbf
	JWTLeeway time.Duration

	// --- topologymetrics ---

	DephealthGroup         string
	DephealthCheckInterval time.Duration

	// --- Graceful shutdown ---

	ShutdownTimeout time.Duration
}

// Load загружает конфигурацию из переменных окружения, валидирует
// обязательные поля и возвращает Config или ошибку.
func Load() (*Config, error) {
	cfg := &Config{}
	var err error

	// --- Сервер ---

	// IS_PORT — порт HTTP-сервера (по умолчанию 3000)
	cfg.Port, err = getEnvInt("IS_PORT", 3000)
	if err != nil {
		return nil, fmt.Errorf("IS_PORT: %w", err)
	}
	if cfg.Port < 1 || cfg.Port > 65535 {
		return nil, fmt.Errorf("IS_PORT: значение %d вне допустимого диапазона 1-65535", cfg.Port)
	}

	// IS_LOG_LEVEL — уровень логирования (по умолчанию info)
	cfg.LogLevel, err = parseLogLevel(getEnvDefault("IS_LOG_LEVEL", "info"))
	if err != nil {
		return nil, fmt.Errorf("IS_LOG_LEVEL: %w", err)
	}

	// IS_LOG_FORMAT — формат логов (по умолчанию json)
	cfg.LogFormat = getEnvDefault("IS_LOG_FORMAT", "json")
	if cfg.LogFormat != "json" && cfg.LogFormat != "text" {
		return nil, fmt.Errorf("IS_LOG_FORMAT: недопустимое значение %q, допустимые: json, text", cfg.LogFormat)
	}

	// --- PostgreSQL ---

	cfg.DBHost, err = getEnvRequired("IS_DB_HOST")
	if err != nil {
		return nil, err
	}

	cfg.DBPort, err = getEnvInt("IS_DB_PORT", 5432)
	if err != nil {
		return nil, fmt.Errorf("IS_DB_PORT: %w", err)
	}

	cfg.DBName, err = getEnvRequired("IS_DB_NAME")
	if err != nil {
		return nil, err
	}

	cfg.DBUser, err = getEnvRequired("IS_DB_USER")
	if err != nil {
		return nil, err
	}

	cfg.DBPassword, err = getEnvRequired("IS_DB_PASSWORD")
	if err != nil {
		return nil, err
	}

	cfg.DBSSLMode = getEnvDefault("IS_DB_SSL_MODE", "disable")
	validSSLModes := map[string]bool{
		"disable": true, "require": true, "verify-ca": true, "verify-full": true,
	}
	if !validSSLModes[cfg.DBSSLMode] {
		return nil, fmt.Errorf("IS_DB_SSL_MODE: недопустимое значение %q, допустимые: disable, require, verify-ca, verify-full", cfg.DBSSLMode)
	}

	// IS_DB_MAX_CONNS — размер пула (по умолчанию 10)
	cfg.DBMaxConns, err = getEnvInt("IS_DB_MAX_CONNS", 10)
	if err != nil {
		return nil, fmt.Errorf("IS_DB_MAX_CONNS: %w", err)
	}
	if cfg.DBMaxConns < 1 || cfg.DBMaxConns > 1000 {
		return nil, fmt.Errorf("IS_DB_MAX_CONNS: значение %d вне допустимого диапазона 1-1000", cfg.DBMaxConns)
	}
	cfg.DBMaxConnLifetime, err = getEnvDuration("IS_DB_MAX_CONN_LIFETIME", 30*time.Minute)
	if err != nil {
		return nil, fmt.Errorf("IS_DB_MAX_CONN_LIFETIME: %w", err)
	}

	// --- Control plane ---

	// IS_AIRBYTE_API_URL — базовый URL (по умолчанию http://localhost:8000/api)
	cfg.AirbyteAPIURL = strings.TrimRight(getEnvDefault("IS_AIRBYTE_API_URL", "http://localhost:8000/api"), "/")
	u, err := url.Parse(cfg.AirbyteAPIURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("IS_AIRBYTE_API_URL: некорректный URL %q", cfg.AirbyteAPIURL)
	}

	cfg.AirbyteUsername = getEnvDefault("IS_AIRBYTE_USERNAME", "")
	cfg.AirbytePassword = getEnvDefault("IS_AIRBYTE_PASSWORD", "")
	if (cfg.AirbyteUsername == "") != (cfg.AirbytePassword == "") {
		return nil, fmt.Errorf("IS_AIRBYTE_USERNAME и IS_AIRBYTE_PASSWORD задаются только вместе")
	}

	cfg.AirbyteCACertPath = getEnvDefault("IS_AIRBYTE_CA_CERT_PATH", "")

	// IS_CONTROL_PLANE_TIMEOUT — таймаут вызова control plane (по умолчанию 30s)
	cfg.ControlPlaneTimeout, err = getEnvDuration("IS_CONTROL_PLANE_TIMEOUT", 30*time.Second)
	if err != nil {
		return nil, fmt.Errorf("IS_CONTROL_PLANE_TIMEOUT: %w", err)
	}
	if cfg.ControlPlaneTimeout <= 0 {
		return nil, fmt.Errorf("IS_CONTROL_PLANE_TIMEOUT: значение должно быть положительным")
	}

	// --- Шифрование ---

	cfg.EncryptionMasterKey, err = getEnvRequired("IS_ENCRYPTION_MASTER_KEY")
	if err != nil {
		return nil, err
	}

	// --- Destination ---

	cfg.DestinationDBHost = getEnvDefault("IS_DESTINATION_DB_HOST", "db")
	cfg.DestinationDBPort, err = getEnvInt("IS_DESTINATION_DB_PORT", 5432)
	if err != nil {
		return nil, fmt.Errorf("IS_DESTINATION_DB_PORT: %w", err)
	}
	cfg.DestinationDBName = getEnvDefault("IS_DESTINATION_DB_NAME", "infinure")
	cfg.DestinationDBUser = getEnvDefault("IS_DESTINATION_DB_USER", "postgres")
	cfg.DestinationDBPassword = getEnvDefault("IS_DESTINATION_DB_PASSWORD", "postgres")

	// --- Workspace ---

	cfg.WorkspaceCacheSize, err = getEnvInt("IS_WORKSPACE_CACHE_SIZE", 10000)
	if err != nil {
		return nil, fmt.Errorf("IS_WORKSPACE_CACHE_SIZE: %w", err)
	}
	if cfg.WorkspaceCacheSize < 1 || cfg.WorkspaceCacheSize > 1000000 {
		return nil, fmt.Errorf("IS_WORKSPACE_CACHE_SIZE: значение %d вне допустимого диапазона 1-1000000", cfg.WorkspaceCacheSize)
	}

	// --- Организация и JWT ---

	cfg.DefaultOrganizationID = getEnvDefault("IS_DEFAULT_ORGANIZATION_ID", "demo-org")
	cfg.JWTJWKSURL = getEnvDefault("IS_JWT_JWKS_URL", "")
	cfg.JWTIssuer = getEnvDefault("IS_JWT_ISSUER", "")
	cfg.JWTOrgClaim = getEnvDefault("IS_JWT_ORG_CLAIM", "organization_id")

	cfg.JWKSClientTimeout, err = getEnvDuration("IS_JWKS_CLIENT_TIMEOUT", 10*time.Second)
	if err != nil {
		return nil, fmt.Errorf("IS_JWKS_CLIENT_TIMEOUT: %w", err)
	}
	cfg.JWKSRefreshInterval, err = getEnvDuration("IS_JWKS_REFRESH_INTERVAL", 15*time.Minute)
	if err != nil {
		return nil, fmt.Errorf("IS_JWKS_REFRESH_INTERVAL: %w", err)
	}
	cfg.JWTLeeway, err = getEnvDuration("IS_JWT_LEEWAY", 5*time.Second)
	if err != nil {
		return nil, fmt.Errorf("IS_JWT_LEEWAY: %w", err)
	}

	// --- topologymetrics ---

	cfg.DephealthGroup = getEnvDefault("IS_DEPHEALTH_GROUP", "infinure")
	cfg.DephealthCheckInterval, err = getEnvDuration("IS_DEPHEALTH_CHECK_INTERVAL", 15*time.Second)
	if err != nil {
		return nil, fmt.Errorf("IS_DEPHEALTH_CHECK_INTERVAL: %w", err)
	}

	// --- Graceful shutdown ---

	cfg.ShutdownTimeout, err = getEnvDuration("IS_SHUTDOWN_TIMEOUT", 5*time.Second)
	if err != nil {
		return nil, fmt.Errorf("IS_SHUTDOWN_TIMEOUT: %w", err)
	}

	return cfg, nil
}

// DatabaseURL возвращает URL подключения к PostgreSQL в формате pgx5://
// (используется golang-migrate и topologymetrics).
func (c *Config) DatabaseURL() string {
	u := url.URL{
		Scheme:   "pgx5",
		User:     url.UserPassword(c.DBUser, c.DBPassword),
		Host:     fmt.Sprintf("%s:%d", c.DBHost, c.DBPort),
		Path:     "/" + c.DBName,
		RawQuery: "sslmode=" + c.DBSSLMode,
	}
	return u.String()
}

// DatabaseDSN возвращает строку подключения к PostgreSQL для pgxpool.
func (c *Config) DatabaseDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d dbname=%s user=%s password=%s sslmode=%s",
		c.DBHost, c.DBPort, c.DBName, c.DBUser, c.DBPassword, c.DBSSLMode,
	)
}

// JWTEnabled — true, если организация берётся из проверенного JWT.
func (c *Config) JWTEnabled() bool {
	return c.JWTJWKSURL != ""
}

// PlaintextControlPlane — true, если учётные данные уходят в control plane
// по HTTP на нелокальный хост.
func (c *Config) PlaintextControlPlane() bool {
	u, err := url.Parse(c.AirbyteAPIURL)
	if err != nil || u.Scheme != "http" {
		return false
	}
	switch u.Hostname() {
	case "localhost", "127.0.0.1", "::1":
		return false
	}
	return true
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

// getEnvRequired возвращает значение переменной окружения или ошибку, если она не задана.
func getEnvRequired(key string) (string, error) {
	val := os.Getenv(key)
	if val == "" {
		return "", fmt.Errorf("%s: обязательная переменная окружения не задана", key)
	}
	return val, nil
}

// getEnvDefault возвращает значение переменной окружения или значение по умолчанию.
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
