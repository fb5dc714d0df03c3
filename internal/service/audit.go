// audit.go — журнал аудита действий с интеграциями.
// Записи только добавляются. ID — ULID с монотонной энтропией: сортировка
// по ID повторяет порядок выдачи ID, даже если вставки завершились в другом порядке.
package service

import (
	"context"
	"crypto/rand"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/facundoinfinure/infinure/internal/domain/model"
	"github.com/facundoinfinure/infinure/internal/repository"
)

var auditRecordsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "is_audit_records_total",
		Help: "Количество записей в журнале аудита по действиям",
	},
	[]string{"action"},
)

// AuditTrail — запись событий в журнал аудита.
type AuditTrail struct {
	repo   repository.AuditLogRepository
	logger *slog.Logger

	mu      sync.Mutex
	entropy *ulid.MonotonicEntropy
	now     func() time.Time
}

// NewAuditTrail создаёт журнал аудита поверх репозитория.
func NewAuditTrail(repo repository.AuditLogRepository, logger *slog.Logger) *AuditTrail {
	return &AuditTrail{
		repo:    repo,
		logger:  logger.With(slog.String("component", "audit_trail")),
		entropy: ulid.Monotonic(rand.Reader, 0),
		now:     time.Now,
	}
}

// Record синхронно добавляет запись в журнал и возвращает подтверждение.
// Ошибка хранилища возвращается вызывающему: действие без записи аудита
// не считается успешным.
func (a *AuditTrail) Record(ctx context.Context, entry model.AuditEntry) (*model.AuditRecord, error) {
	rec, err := a.Stage(ctx, a.repo, entry)
	if err != nil {
		return nil, err
	}
	a.Confirm(rec)
	return rec, nil
}

// Stage добавляет запись через repo, обычно репозиторий открытой транзакции.
// Метрика и лог не пишутся: после фиксации транзакции вызывается Confirm.
func (a *AuditTrail) Stage(ctx context.Context, repo repository.AuditLogRepository, entry model.AuditEntry) (*model.AuditRecord, error) {
	rec, err := a.newRecord(entry)
	if err != nil {
		return nil, err
	}
	if err := repo.Append(ctx, rec); err != nil {
		return nil, fmt.Errorf("ошибка записи аудита %s: %w", entry.Action, err)
	}
	return rec, nil
}

// Confirm учитывает сохранённую запись в метриках и логе.
func (a *AuditTrail) Confirm(rec *model.AuditRecord) {
	auditRecordsTotal.WithLabelValues(string(rec.Action)).Inc()

	attrs := []any{
		slog.String("audit_id", rec.ID),
		slog.String("organization_id", rec.OrganizationID),
		slog.String("action", string(rec.Action)),
		slog.Any("metadata", rec.Metadata),
	}
	if rec.ResourceID != nil {
		attrs = append(attrs, slog.String("resource_id", *rec.ResourceID))
	}
	if rec.UserID != nil {
		attrs = append(attrs, slog.String("user_id", *rec.UserID))
	}
	a.logger.Info("Запись аудита", attrs...)
}

// newRecord присваивает записи ID и время. Блокировка держится только
// на время генерации ULID: MonotonicEntropy не потокобезопасна.
func (a *AuditTrail) newRecord(entry model.AuditEntry) (*model.AuditRecord, error) {
	if entry.Metadata == nil {
		entry.Metadata = map[string]any{}
	}
	rec := &model.AuditRecord{AuditEntry: entry}

	a.mu.Lock()
	defer a.mu.Unlock()

	rec.RecordedAt = a.now().UTC()
	id, err := ulid.New(ulid.Timestamp(rec.RecordedAt), a.entropy)
	if err != nil {
		return nil, fmt.Errorf("ошибка генерации ID записи аудита: %w", err)
	}
	rec.ID = id.String()
	return rec, nil
}
