package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/facundoinfinure/infinure/internal/domain/model"
)

// WorkspaceBindingRepository — интерфейс для таблицы workspace_bindings.
type WorkspaceBindingRepository interface {
	// Get возвращает привязку организации или ErrNotFound.
	Get(ctx context.Context, orgID string) (*model.WorkspaceBinding, error)
	// Insert сохраняет привязку, если у организации её ещё нет.
	// Возвращает сохранённую привязку и true, если вставку выполнил этот вызов;
	// иначе — существующую привязку и false.
	Insert(ctx context.Context, b *model.WorkspaceBinding) (*model.WorkspaceBinding, bool, error)
}

type workspaceBindingRepo struct {
	db DBTX
}

// NewWorkspaceBindingRepository создаёт репозиторий привязок workspace.
func NewWorkspaceBindingRepository(db DBTX) WorkspaceBindingRepository {
	return &workspaceBindingRepo{db: db}
}

func (r *workspaceBindingRepo) Get(ctx context.Context, orgID string) (*model.WorkspaceBinding, error) {
	query := `
		SELECT organization_id, workspace_id, created_at
		FROM workspace_bindings
		WHERE organization_id = $1`

	b := &model.WorkspaceBinding{}
	err := r.db.QueryRow(ctx, query, orgID).Scan(&b.OrganizationID, &b.WorkspaceID, &b.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка получения привязки workspace: %w", err)
	}
	return b, nil
}

func (r *workspaceBindingRepo) Insert(ctx context.Context, b *model.WorkspaceBinding) (*model.WorkspaceBinding, bool, error) {
	query := `
		INSERT INTO workspace_bindings (organization_id, workspace_id)
		VALUES ($1, $2)
		ON CONFLICT (organization_id) DO NOTHING
		RETURNING created_at`

	stored := &model.WorkspaceBinding{
		OrganizationID: b.OrganizationID,
		WorkspaceID:    b.WorkspaceID,
	}
	err := r.db.QueryRow(ctx, query, b.OrganizationID, b.WorkspaceID).Scan(&stored.CreatedAt)
	if err == nil {
		return stored, true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, false, fmt.Errorf("ошибка сохранения привязки workspace: %w", err)
	}

	// Привязка уже существует — её создал другой экземпляр или запрос
	existing, err := r.Get(ctx, b.OrganizationID)
	if err != nil {
		return nil, false, err
	}
	return existing, false, nil
}
