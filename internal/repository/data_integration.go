package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/facundoinfinure/infinure/internal/domain/model"
)

// DataIntegrationRepository — интерфейс для таблицы data_integrations.
// Записи только создаются: результат подключения источника неизменяем.
type DataIntegrationRepository interface {
	// Create сохраняет запись. Повтор (organization_id, source_id) — ErrConflict.
	Create(ctx context.Context, di *model.DataIntegration) error
	// GetBySourceID возвращает запись организации по id источника или ErrNotFound.
	GetBySourceID(ctx context.Context, orgID, sourceID string) (*model.DataIntegration, error)
}

type dataIntegrationRepo struct {
	db DBTX
}

// NewDataIntegrationRepository создаёт репозиторий подключённых источников.
func NewDataIntegrationRepository(db DBTX) DataIntegrationRepository {
	return &dataIntegrationRepo{db: db}
}

const dataIntegrationColumns = `id, organization_id, name, type, source_id, connection_id,
	encrypted_credentials, sync_frequency, status, note, created_by, created_at`

func (r *dataIntegrationRepo) Create(ctx context.Context, di *model.DataIntegration) error {
	query := `
		INSERT INTO data_integrations (id, organization_id, name, type, source_id, connection_id,
			encrypted_credentials, sync_frequency, status, note, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING created_at`

	err := r.db.QueryRow(ctx, query,
		di.ID, di.OrganizationID, di.Name, di.Type, di.SourceID, di.ConnectionID,
		di.EncryptedCredentials, string(di.SyncFrequency), string(di.Status),
		nullIfEmpty(di.Note), di.CreatedBy,
	).Scan(&di.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: источник %s уже зарегистрирован", ErrConflict, di.SourceID)
		}
		return fmt.Errorf("ошибка создания data_integration: %w", err)
	}
	return nil
}

func (r *dataIntegrationRepo) GetBySourceID(ctx context.Context, orgID, sourceID string) (*model.DataIntegration, error) {
	query := `SELECT ` + dataIntegrationColumns + `
		FROM data_integrations
		WHERE organization_id = $1 AND source_id = $2`

	di, err := scanDataIntegration(r.db.QueryRow(ctx, query, orgID, sourceID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка получения data_integration: %w", err)
	}
	return di, nil
}

func scanDataIntegration(row pgx.Row) (*model.DataIntegration, error) {
	di := &model.DataIntegration{}
	var syncFrequency, status string
	var note *string
	err := row.Scan(
		&di.ID, &di.OrganizationID, &di.Name, &di.Type, &di.SourceID, &di.ConnectionID,
		&di.EncryptedCredentials, &syncFrequency, &status, &note, &di.CreatedBy, &di.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	di.SyncFrequency = model.SyncFrequency(syncFrequency)
	di.Status = model.ProvisionStatus(status)
	di.Note = derefString(note)
	return di, nil
}
