package database

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/facundoinfinure/infinure/internal/config"
)

// setupTestDB запускает PostgreSQL в Docker-контейнере через testcontainers.
// Возвращает конфиг, указывающий на контейнер.
func setupTestDB(t *testing.T) *config.Config {
	t.Helper()

	if os.Getenv("TEST_INTEGRATION") == "" {
		t.Skip("Пропуск интеграционного теста: TEST_INTEGRATION не установлена")
	}

	ctx := context.Background()

	container, err := postgres.Run(ctx,
		"docker.io/postgres:17-alpine",
		postgres.WithDatabase("infinure_test"),
		postgres.WithUsername("infinure"),
		postgres.WithPassword("test-password"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	if err != nil {
		t.Fatalf("Не удалось запустить PostgreSQL контейнер: %v", err)
	}
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("Ошибка остановки контейнера: %v", err)
		}
	})

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("Не удалось получить host контейнера: %v", err)
	}
	port, err := container.MappedPort(ctx, "5432")
	if err != nil {
		t.Fatalf("Не удалось получить port контейнера: %v", err)
	}

	t.Setenv("IS_DB_HOST", host)
	t.Setenv("IS_DB_PORT", port.Port())
	t.Setenv("IS_DB_NAME", "infinure_test")
	t.Setenv("IS_DB_USER", "infinure")
	t.Setenv("IS_DB_PASSWORD", "test-password")
	t.Setenv("IS_DB_SSL_MODE", "disable")
	t.Setenv("IS_ENCRYPTION_MASTER_KEY", "test-master-key")

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("Ошибка загрузки конфигурации: %v", err)
	}

	return cfg
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

// TestMigrate проверяет применение миграций и их идемпотентность.
func TestMigrate(t *testing.T) {
	cfg := setupTestDB(t)
	logger := testLogger()

	if err := Migrate(cfg, logger); err != nil {
		t.Fatalf("Migrate() вернул ошибку: %v", err)
	}
	// Повторное применение — без ошибки (ErrNoChange)
	if err := Migrate(cfg, logger); err != nil {
		t.Fatalf("Повторный Migrate() вернул ошибку: %v", err)
	}

	ctx := context.Background()
	pool, err := Connect(ctx, cfg, logger)
	if err != nil {
		t.Fatalf("Connect() вернул ошибку: %v", err)
	}
	defer pool.Close()

	tables := []string{
		"workspace_bindings",
		"data_integrations",
		"audit_log",
	}

	for _, table := range tables {
		var exists bool
		err := pool.QueryRow(ctx,
			`SELECT EXISTS (
				SELECT FROM information_schema.tables
				WHERE table_schema = 'public' AND table_name = $1
			)`, table).Scan(&exists)
		if err != nil {
			t.Fatalf("Ошибка проверки таблицы %s: %v", table, err)
		}
		if !exists {
			t.Errorf("Таблица %s не создана", table)
		}
	}
}

func TestLatestVersion(t *testing.T) {
	version, err := LatestVersion()
	if err != nil {
		t.Fatalf("LatestVersion() вернул ошибку: %v", err)
	}
	if version != 3 {
		t.Errorf("LatestVersion() = %d, ожидается 3", version)
	}
}

// TestReadinessChecker проверяет готовность до и после миграций.
func TestReadinessChecker(t *testing.T) {
	cfg := setupTestDB(t)
	ctx := context.Background()

	pool, err := Connect(ctx, cfg, testLogger())
	if err != nil {
		t.Fatalf("Connect() вернул ошибку: %v", err)
	}
	defer pool.Close()

	checker, err := NewReadinessChecker(pool)
	if err != nil {
		t.Fatalf("NewReadinessChecker() вернул ошибку: %v", err)
	}

	if status, msg := checker.CheckReady(); status != "fail" {
		t.Errorf("до миграций status = %q (%s), ожидали fail", status, msg)
	}

	if err := Migrate(cfg, testLogger()); err != nil {
		t.Fatalf("Migrate() вернул ошибку: %v", err)
	}
	status, msg := checker.CheckReady()
	if status != "ok" {
		t.Errorf("CheckReady() status = %q, message = %q; ожидали status = %q", status, msg, "ok")
	}

	var appName string
	if err := pool.QueryRow(ctx, `SELECT current_setting('application_name')`).Scan(&appName); err != nil {
		t.Fatalf("чтение application_name: %v", err)
	}
	if appName != ApplicationName {
		t.Errorf("application_name = %q, ожидается %q", appName, ApplicationName)
	}

	pool.Close()
	if status, _ := checker.CheckReady(); status != "fail" {
		t.Errorf("после закрытия пула status = %q, ожидали fail", status)
	}
}

// TestMigrate_DirtySchema проверяет отказ мигрировать прерванную схему.
func TestMigrate_DirtySchema(t *testing.T) {
	cfg := setupTestDB(t)
	ctx := context.Background()

	if err := Migrate(cfg, testLogger()); err != nil {
		t.Fatalf("Migrate() вернул ошибку: %v", err)
	}

	pool, err := Connect(ctx, cfg, testLogger())
	if err != nil {
		t.Fatalf("Connect() вернул ошибку: %v", err)
	}
	defer pool.Close()

	if _, err := pool.Exec(ctx, `UPDATE schema_migrations SET dirty = true`); err != nil {
		t.Fatalf("пометка схемы dirty: %v", err)
	}

	if err := Migrate(cfg, testLogger()); !errors.Is(err, ErrDirtySchema) {
		t.Errorf("Migrate() = %v, ожидалась ErrDirtySchema", err)
	}

	checker, err := NewReadinessChecker(pool)
	if err != nil {
		t.Fatalf("NewReadinessChecker() вернул ошибку: %v", err)
	}
	if status, _ := checker.CheckReady(); status != "fail" {
		t.Errorf("для dirty схемы status = %q, ожидали fail", status)
	}
}
