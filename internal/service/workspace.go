// workspace.go — привязка организации к workspace в control plane.
// Источник истины — таблица workspace_bindings; перед ней LRU-кэш процесса.
// Конкурентные запросы одной организации объединяются через singleflight,
// поэтому workspace создаётся не более одного раза.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"golang.org/x/sync/singleflight"

	"github.com/facundoinfinure/infinure/internal/domain/model"
	"github.com/facundoinfinure/infinure/internal/repository"
)

var (
	workspaceCacheHitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "is_workspace_cache_hits_total",
		Help: "Общее количество попаданий в кэш привязок workspace.",
	})
	workspaceCacheMissesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "is_workspace_cache_misses_total",
		Help: "Общее количество промахов кэша привязок workspace.",
	})
)

// WorkspaceCreator — создание workspace в control plane.
type WorkspaceCreator interface {
	CreateWorkspace(ctx context.Context, orgID string) (string, error)
}

// WorkspaceResolver — идемпотентное получение workspace организации.
type WorkspaceResolver struct {
	creator WorkspaceCreator
	repo    repository.WorkspaceBindingRepository
	tx      repository.Transactor
	audit   *AuditTrail
	cache   *lru.Cache[string, string]
	group   singleflight.Group
	logger  *slog.Logger
}

// NewWorkspaceResolver создаёт резолвер с кэшем на cacheSize организаций.
// Новая привязка и запись WORKSPACE_CREATED сохраняются в одной транзакции tx.
func NewWorkspaceResolver(
	creator WorkspaceCreator,
	repo repository.WorkspaceBindingRepository,
	tx repository.Transactor,
	audit *AuditTrail,
	cacheSize int,
	logger *slog.Logger,
) (*WorkspaceResolver, error) {
	cache, err := lru.New[string, string](cacheSize)
	if err != nil {
		return nil, fmt.Errorf("ошибка создания кэша workspace: %w", err)
	}

	return &WorkspaceResolver{
		creator: creator,
		repo:    repo,
		tx:      tx,
		audit:   audit,
		cache:   cache,
		logger:  logger.With(slog.String("component", "workspace_resolver")),
	}, nil
}

// Resolve возвращает workspace организации, создавая его при первом обращении.
// Ошибка control plane возвращается как *StepError (шаг resolve_workspace).
func (r *WorkspaceResolver) Resolve(ctx context.Context, orgID string) (string, error) {
	if ws, ok := r.cache.Get(orgID); ok {
		workspaceCacheHitsTotal.Inc()
		return ws, nil
	}
	workspaceCacheMissesTotal.Inc()

	// Общая работа не отменяется, если первый из ожидающих запросов отключился
	shared := context.WithoutCancel(ctx)
	v, err, _ := r.group.Do(orgID, func() (any, error) {
		return r.resolveSlow(shared, orgID)
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

// Forget удаляет организацию из кэша. Привязка в БД не меняется.
func (r *WorkspaceResolver) Forget(orgID string) {
	r.cache.Remove(orgID)
}

func (r *WorkspaceResolver) resolveSlow(ctx context.Context, orgID string) (string, error) {
	if ws, ok := r.cache.Get(orgID); ok {
		return ws, nil
	}

	binding, err := r.repo.Get(ctx, orgID)
	switch {
	case err == nil:
		r.cache.Add(orgID, binding.WorkspaceID)
		return binding.WorkspaceID, nil
	case !errors.Is(err, repository.ErrNotFound):
		return "", fmt.Errorf("ошибка чтения привязки workspace: %w", err)
	}

	created, err := r.creator.CreateWorkspace(ctx, orgID)
	if err != nil {
		return "", stepError(StepResolveWorkspace, err)
	}

	var (
		stored   *model.WorkspaceBinding
		inserted bool
		auditRec *model.AuditRecord
	)
	err = r.tx.WithinTx(ctx, func(repos repository.Repositories) error {
		var err error
		stored, inserted, err = repos.Bindings.Insert(ctx, &model.WorkspaceBinding{
			OrganizationID: orgID,
			WorkspaceID:    created,
		})
		if err != nil {
			return fmt.Errorf("ошибка сохранения привязки workspace: %w", err)
		}
		if !inserted {
			return nil
		}
		resourceID := stored.WorkspaceID
		auditRec, err = r.audit.Stage(ctx, repos.AuditLog, model.AuditEntry{
			OrganizationID: orgID,
			Action:         model.ActionWorkspaceCreated,
			ResourceID:     &resourceID,
		})
		return err
	})
	if err != nil {
		return "", err
	}

	if !inserted {
		// Привязку успел сохранить другой экземпляр сервиса
		r.logger.Warn("Workspace уже привязан к организации, созданный workspace не используется",
			slog.String("organization_id", orgID),
			slog.String("workspace_id", stored.WorkspaceID),
			slog.String("orphan_workspace_id", created),
		)
	} else {
		r.audit.Confirm(auditRec)
		r.logger.Info("Workspace создан",
			slog.String("organization_id", orgID),
			slog.String("workspace_id", stored.WorkspaceID),
		)
	}

	r.cache.Add(orgID, stored.WorkspaceID)
	return stored.WorkspaceID, nil
}
