package repository

import (
	"context"
	"fmt"

	"github.com/facundoinfinure/infinure/internal/domain/model"
)

// AuditLogRepository — журнал аудита (таблица audit_log).
// Только добавление: операций изменения и удаления нет.
type AuditLogRepository interface {
	// Append добавляет запись в журнал.
	Append(ctx context.Context, rec *model.AuditRecord) error
}

type auditLogRepo struct {
	db DBTX
}

// NewAuditLogRepository создаёт репозиторий журнала аудита.
func NewAuditLogRepository(db DBTX) AuditLogRepository {
	return &auditLogRepo{db: db}
}

func (r *auditLogRepo) Append(ctx context.Context, rec *model.AuditRecord) error {
	query := `
		INSERT INTO audit_log (id, organization_id, user_id, action, resource_id, metadata, recorded_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	metadata := rec.Metadata
	if metadata == nil {
		metadata = map[string]any{}
	}

	_, err := r.db.Exec(ctx, query,
		rec.ID, rec.OrganizationID, rec.UserID, string(rec.Action), rec.ResourceID,
		metadata, rec.RecordedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: запись аудита %s", ErrConflict, rec.ID)
		}
		return fmt.Errorf("ошибка записи в журнал аудита: %w", err)
	}
	return nil
}
