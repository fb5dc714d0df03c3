// Пакет database — пул подключений к собственной БД Integration Service,
// миграции схемы (golang-migrate) и проверка готовности с учётом версии схемы.
package database

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/facundoinfinure/infinure/internal/config"
)

// ApplicationName — имя подключения в pg_stat_activity.
const ApplicationName = "integration-service"

// ErrDirtySchema — предыдущая миграция прервана, схема требует ручного исправления.
var ErrDirtySchema = errors.New("схема БД в состоянии dirty")

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Connect создаёт пул подключений с размером и временем жизни из конфигурации
// и проверяет доступность БД.
func Connect(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DatabaseDSN())
	if err != nil {
		return nil, fmt.Errorf("ошибка парсинга DSN: %w", err)
	}
	poolCfg.MaxConns = int32(cfg.DBMaxConns)
	poolCfg.MaxConnLifetime = cfg.DBMaxConnLifetime
	poolCfg.ConnConfig.RuntimeParams["application_name"] = ApplicationName

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("ошибка создания пула подключений: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ошибка подключения к PostgreSQL %s:%d: %w", cfg.DBHost, cfg.DBPort, err)
	}

	logger.Info("Подключение к PostgreSQL установлено",
		slog.String("host", cfg.DBHost),
		slog.Int("port", cfg.DBPort),
		slog.String("database", cfg.DBName),
		slog.Int("max_conns", cfg.DBMaxConns),
		slog.String("max_conn_lifetime", cfg.DBMaxConnLifetime.String()),
	)

	return pool, nil
}

// Migrate применяет встроенные миграции. Схема в состоянии dirty не
// трогается: возвращается ErrDirtySchema.
func Migrate(cfg *config.Config, logger *slog.Logger) error {
	source, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("ошибка создания источника миграций: %w", err)
	}

	m, err := migrate.NewWithSourceInstance("iofs", source, cfg.DatabaseURL())
	if err != nil {
		return fmt.Errorf("ошибка инициализации миграций: %w", err)
	}
	defer m.Close()

	before, dirty, err := m.Version()
	switch {
	case errors.Is(err, migrate.ErrNilVersion):
	case err != nil:
		return fmt.Errorf("ошибка чтения версии схемы: %w", err)
	case dirty:
		return fmt.Errorf("%w: версия %d", ErrDirtySchema, before)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("ошибка применения миграций: %w", err)
	}

	after, _, err := m.Version()
	if err != nil {
		return fmt.Errorf("ошибка чтения версии схемы: %w", err)
	}
	logger.Info("Миграции применены",
		slog.Uint64("from_version", uint64(before)),
		slog.Uint64("version", uint64(after)),
	)

	return nil
}

// LatestVersion возвращает номер последней встроенной миграции.
func LatestVersion() (uint, error) {
	source, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return 0, fmt.Errorf("ошибка создания источника миграций: %w", err)
	}
	defer source.Close()

	version, err := source.First()
	if err != nil {
		return 0, fmt.Errorf("миграции не найдены: %w", err)
	}
	for {
		next, err := source.Next(version)
		if errors.Is(err, fs.ErrNotExist) {
			return version, nil
		}
		if err != nil {
			return 0, fmt.Errorf("ошибка обхода миграций: %w", err)
		}
		version = next
	}
}

// ReadinessChecker — готовность БД для health endpoint: подключение активно
// и схема мигрирована до версии, с которой собран сервис.
// Реализует интерфейс handlers.ReadinessChecker.
type ReadinessChecker struct {
	pool     *pgxpool.Pool
	expected uint
}

// NewReadinessChecker создаёт проверку готовности, ожидающую LatestVersion.
func NewReadinessChecker(pool *pgxpool.Pool) (*ReadinessChecker, error) {
	expected, err := LatestVersion()
	if err != nil {
		return nil, err
	}
	return &ReadinessChecker{pool: pool, expected: expected}, nil
}

// CheckReady возвращает "fail", если БД недоступна, схема dirty
// или её версия отличается от ожидаемой.
func (c *ReadinessChecker) CheckReady() (status string, message string) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	var version int64
	var dirty bool
	err := c.pool.QueryRow(ctx, `SELECT version, dirty FROM schema_migrations LIMIT 1`).Scan(&version, &dirty)
	if err != nil {
		return "fail", fmt.Sprintf("PostgreSQL недоступен или схема не создана: %v", err)
	}
	if dirty {
		return "fail", fmt.Sprintf("схема версии %d в состоянии dirty", version)
	}
	if version != int64(c.expected) {
		return "fail", fmt.Sprintf("схема версии %d, ожидается %d", version, c.expected)
	}
	return "ok", fmt.Sprintf("схема версии %d", version)
}
