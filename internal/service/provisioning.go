// provisioning.go — подключение источников данных организации через control plane.
//
// Порядок шагов SetupDataSource:
//  1. получение workspace организации (создаётся при первом обращении);
//  2. шифрование учётных данных для локального хранения;
//  3. создание источника;
//  4. создание destination (Postgres-хранилище организации);
//  5. обнаружение схемы источника;
//  6. создание connection с cron-расписанием.
//
// Ошибка control plane на шагах 1, 3–6 не прерывает запрос: запись сохраняется
// локально со статусом pending_external_connection и заглушками вместо ID.
// Ошибки валидации, шифрования, БД и аудита возвращаются вызывающему.
// Локальная запись и её запись аудита сохраняются в одной транзакции.
package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/facundoinfinure/infinure/internal/airbyte"
	"github.com/facundoinfinure/infinure/internal/catalog"
	"github.com/facundoinfinure/infinure/internal/domain/model"
	"github.com/facundoinfinure/infinure/internal/repository"
	"github.com/facundoinfinure/infinure/internal/vault"
)

// PostgresDestinationDefinitionID — определение Postgres destination в control plane.
const PostgresDestinationDefinitionID = "25c5221d-dce2-4163-ade9-739ef790f503"

// PendingNote — пояснение для источника, сохранённого без control plane.
const PendingNote = "Data source saved locally; creation is pending external synchronization with the control plane"

// ErrSourcePending — источник сохранён локально и ещё не создан в control plane.
var ErrSourcePending = errors.New("источник ещё не создан в control plane")

var (
	provisioningTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "is_provisioning_total",
			Help: "Количество подключений источников по результату",
		},
		[]string{"outcome"},
	)
	stepFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "is_control_plane_step_failures_total",
			Help: "Количество ошибок control plane по шагам подключения",
		},
		[]string{"step"},
	)
	provisioningDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "is_provisioning_duration_seconds",
		Help:    "Длительность подключения источника",
		Buckets: []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
	})
)

// cronByFrequency — расписание синхронизации по частоте.
var cronByFrequency = map[model.SyncFrequency]string{
	model.SyncHourly:  "0 * * * *",
	model.SyncDaily:   "0 2 * * *",
	model.SyncWeekly:  "0 2 * * 0",
	model.SyncMonthly: "0 2 1 * *",
}

// CronExpression возвращает cron-выражение для частоты.
// Пустая или неизвестная частота — ежечасно.
func CronExpression(freq model.SyncFrequency) string {
	if expr, ok := cronByFrequency[freq]; ok {
		return expr
	}
	return cronByFrequency[model.SyncHourly]
}

// ControlPlane — операции control plane, нужные оркестратору.
// Реализуется *airbyte.Client.
type ControlPlane interface {
	WorkspaceCreator
	ListSources(ctx context.Context, workspaceID string) ([]json.RawMessage, error)
	CreateSource(ctx context.Context, req airbyte.SourceCreate) (string, error)
	CreateDestination(ctx context.Context, req airbyte.DestinationCreate) (string, error)
	DiscoverSchema(ctx context.Context, sourceID string) (json.RawMessage, error)
	CreateConnection(ctx context.Context, req airbyte.ConnectionCreate) (string, error)
	TriggerSync(ctx context.Context, connectionID string) (*airbyte.JobInfo, error)
}

// DestinationConfig — параметры Postgres-хранилища, куда control plane выгружает данные.
type DestinationConfig struct {
	Host     string
	Port     int
	Database string
	Username string
	Password string
}

// Outcome — результат подключения источника.
type Outcome string

const (
	// OutcomeConfigured — все шаги control plane выполнены.
	OutcomeConfigured Outcome = "configured"
	// OutcomeDegraded — control plane недоступен, запись сохранена локально.
	OutcomeDegraded Outcome = "degraded"
)

// ProvisionResult — итог SetupDataSource.
// Reason заполняется только для OutcomeDegraded (*StepError).
type ProvisionResult struct {
	Outcome Outcome
	Source  model.ProvisionedSource
	Reason  error
}

// ProvisioningService — оркестратор подключения источников.
type ProvisioningService struct {
	controlPlane ControlPlane
	workspaces   *WorkspaceResolver
	vault        *vault.Vault
	catalog      *catalog.Catalog
	integrations repository.DataIntegrationRepository
	tx           repository.Transactor
	audit        *AuditTrail
	destination  DestinationConfig
	logger       *slog.Logger
}

// NewProvisioningService создаёт оркестратор.
func NewProvisioningService(
	controlPlane ControlPlane,
	workspaces *WorkspaceResolver,
	v *vault.Vault,
	cat *catalog.Catalog,
	integrations repository.DataIntegrationRepository,
	tx repository.Transactor,
	audit *AuditTrail,
	destination DestinationConfig,
	logger *slog.Logger,
) *ProvisioningService {
	return &ProvisioningService{
		controlPlane: controlPlane,
		workspaces:   workspaces,
		vault:        v,
		catalog:      cat,
		integrations: integrations,
		tx:           tx,
		audit:        audit,
		destination:  destination,
		logger:       logger.With(slog.String("component", "provisioning_service")),
	}
}

// SetupDataSource подключает источник данных организации.
// userID — автор запроса (nil, если неизвестен).
func (s *ProvisioningService) SetupDataSource(
	ctx context.Context,
	orgID string,
	userID *string,
	cfg model.SourceConfig,
) (*ProvisionResult, error) {
	start := time.Now()
	defer func() {
		provisioningDuration.Observe(time.Since(start).Seconds())
	}()

	cfg.Name = strings.TrimSpace(cfg.Name)
	cfg.Type = strings.TrimSpace(cfg.Type)
	if err := validateSourceConfig(orgID, cfg); err != nil {
		return nil, err
	}
	if cfg.SyncFrequency == "" {
		cfg.SyncFrequency = model.SyncHourly
	}

	// Шаг 1: workspace
	workspaceID, err := s.workspaces.Resolve(ctx, orgID)
	if err != nil {
		var stepErr *StepError
		if !errors.As(err, &stepErr) {
			return nil, err
		}
		return s.degrade(ctx, orgID, userID, cfg, "", stepErr)
	}

	// Шаг 2: шифрование — ошибка фатальна, деградации нет
	envelope, err := s.vault.Encrypt(cfg.Credentials, orgID)
	if err != nil {
		return nil, fmt.Errorf("ошибка шифрования учётных данных: %w", err)
	}

	// Шаги 3–6
	sourceID, connectionID, stepErr := s.provisionExternal(ctx, orgID, workspaceID, cfg)
	if stepErr != nil {
		return s.degrade(ctx, orgID, userID, cfg, envelope, stepErr)
	}

	source := model.ProvisionedSource{
		SourceID:             sourceID,
		ConnectionID:         connectionID,
		EncryptedCredentials: envelope,
		Status:               model.StatusConfigured,
	}
	if err := s.persist(ctx, orgID, userID, cfg, source, model.AuditEntry{
		OrganizationID: orgID,
		UserID:         userID,
		Action:         model.ActionDataSourceCreated,
		ResourceID:     &sourceID,
		Metadata: map[string]any{
			"connectionId": connectionID,
			"sourceName":   cfg.Name,
		},
	}); err != nil {
		return nil, err
	}

	provisioningTotal.WithLabelValues(string(OutcomeConfigured)).Inc()
	s.logger.Info("Источник данных подключён",
		slog.String("organization_id", orgID),
		slog.String("source_id", sourceID),
		slog.String("connection_id", connectionID),
		slog.String("type", cfg.Type),
	)

	return &ProvisionResult{Outcome: OutcomeConfigured, Source: source}, nil
}

// provisionExternal выполняет шаги 3–6. Любая ошибка — *StepError.
func (s *ProvisioningService) provisionExternal(
	ctx context.Context,
	orgID, workspaceID string,
	cfg model.SourceConfig,
) (string, string, *StepError) {
	definitionID := cfg.Type
	if info, ok := s.catalog.Lookup(cfg.Type); ok {
		definitionID = info.DefinitionID
	}

	sourceID, err := s.controlPlane.CreateSource(ctx, airbyte.SourceCreate{
		WorkspaceID:             workspaceID,
		Name:                    cfg.Name,
		SourceDefinitionID:      definitionID,
		ConnectionConfiguration: cfg.Credentials,
	})
	if err != nil {
		return "", "", &StepError{Step: StepCreateSource, Err: err}
	}

	destinationID, err := s.controlPlane.CreateDestination(ctx, airbyte.DestinationCreate{
		WorkspaceID:             workspaceID,
		Name:                    fmt.Sprintf("org-%s-warehouse", orgID),
		DestinationDefinitionID: PostgresDestinationDefinitionID,
		ConnectionConfiguration: map[string]any{
			"host":     s.destination.Host,
			"port":     s.destination.Port,
			"database": s.destination.Database,
			"username": s.destination.Username,
			"password": s.destination.Password,
			"schema":   DestinationSchema(orgID),
		},
	})
	if err != nil {
		return "", "", &StepError{Step: StepCreateDestination, Err: err}
	}

	syncCatalog, err := s.controlPlane.DiscoverSchema(ctx, sourceID)
	if err != nil {
		return "", "", &StepError{Step: StepDiscoverSchema, Err: err}
	}

	connectionID, err := s.controlPlane.CreateConnection(ctx, airbyte.ConnectionCreate{
		SourceID:      sourceID,
		DestinationID: destinationID,
		SyncCatalog:   syncCatalog,
		Schedule: airbyte.Schedule{
			ScheduleType:   "cron",
			CronExpression: CronExpression(cfg.SyncFrequency),
		},
		NamespaceDefinition: "destination",
		NamespaceFormat:     NamespaceFormat(orgID, cfg.Name),
	})
	if err != nil {
		return "", "", &StepError{Step: StepCreateConnection, Err: err}
	}

	return sourceID, connectionID, nil
}

// degrade сохраняет источник локально с заглушками ID.
// envelope пуст, если сбой произошёл до шага шифрования.
func (s *ProvisioningService) degrade(
	ctx context.Context,
	orgID string,
	userID *string,
	cfg model.SourceConfig,
	envelope string,
	stepErr *StepError,
) (*ProvisionResult, error) {
	stepFailuresTotal.WithLabelValues(stepErr.Step).Inc()
	s.logger.Warn("Control plane недоступен, источник сохранён локально",
		slog.String("organization_id", orgID),
		slog.String("step", stepErr.Step),
		slog.String("error", stepErr.Err.Error()),
	)

	if envelope == "" {
		var err error
		envelope, err = s.vault.Encrypt(cfg.Credentials, orgID)
		if err != nil {
			return nil, fmt.Errorf("ошибка шифрования учётных данных: %w", err)
		}
	}

	source := model.ProvisionedSource{
		SourceID:             "mock-source-" + uuid.New().String(),
		ConnectionID:         "mock-connection-" + uuid.New().String(),
		EncryptedCredentials: envelope,
		Status:               model.StatusPendingExternalConnection,
		Note:                 PendingNote,
	}
	if err := s.persist(ctx, orgID, userID, cfg, source, model.AuditEntry{
		OrganizationID: orgID,
		UserID:         userID,
		Action:         model.ActionDataSourceCreatedMock,
		ResourceID:     &source.SourceID,
		Metadata: map[string]any{
			"sourceName": cfg.Name,
			"failedStep": stepErr.Step,
			"note":       PendingNote,
		},
	}); err != nil {
		return nil, err
	}

	provisioningTotal.WithLabelValues(string(OutcomeDegraded)).Inc()
	return &ProvisionResult{Outcome: OutcomeDegraded, Source: source, Reason: stepErr}, nil
}

// persist сохраняет запись об источнике и событие аудита в одной транзакции.
func (s *ProvisioningService) persist(
	ctx context.Context,
	orgID string,
	userID *string,
	cfg model.SourceConfig,
	source model.ProvisionedSource,
	entry model.AuditEntry,
) error {
	var rec *model.AuditRecord
	err := s.tx.WithinTx(ctx, func(repos repository.Repositories) error {
		err := repos.Integrations.Create(ctx, &model.DataIntegration{
			ID:                   uuid.New().String(),
			OrganizationID:       orgID,
			Name:                 cfg.Name,
			Type:                 cfg.Type,
			SourceID:             source.SourceID,
			ConnectionID:         source.ConnectionID,
			EncryptedCredentials: source.EncryptedCredentials,
			SyncFrequency:        cfg.SyncFrequency,
			Status:               source.Status,
			Note:                 source.Note,
			CreatedBy:            userID,
		})
		if err != nil {
			return fmt.Errorf("ошибка сохранения источника: %w", err)
		}
		rec, err = s.audit.Stage(ctx, repos.AuditLog, entry)
		return err
	})
	if err != nil {
		return err
	}
	s.audit.Confirm(rec)
	return nil
}

// ListSources возвращает источники организации из control plane без изменений.
// Ошибки control plane не маскируются: ErrControlPlaneUnavailable.
func (s *ProvisioningService) ListSources(ctx context.Context, orgID string) ([]json.RawMessage, error) {
	if strings.TrimSpace(orgID) == "" {
		return nil, fmt.Errorf("%w: не задана организация", ErrValidation)
	}

	workspaceID, err := s.workspaces.Resolve(ctx, orgID)
	if err != nil {
		return nil, err
	}

	sources, err := s.controlPlane.ListSources(ctx, workspaceID)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrControlPlaneUnavailable, err)
	}
	return sources, nil
}

// TriggerSync запускает синхронизацию. id — ID источника из локальной записи
// организации; если записи нет, id считается ID connection.
func (s *ProvisioningService) TriggerSync(ctx context.Context, orgID string, userID *string, id string) (*airbyte.JobInfo, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, fmt.Errorf("%w: не задан идентификатор источника", ErrValidation)
	}

	connectionID := id
	rec, err := s.integrations.GetBySourceID(ctx, orgID, id)
	switch {
	case err == nil:
		if rec.Status == model.StatusPendingExternalConnection {
			return nil, fmt.Errorf("%w: %s", ErrSourcePending, id)
		}
		connectionID = rec.ConnectionID
	case !errors.Is(err, repository.ErrNotFound):
		return nil, fmt.Errorf("ошибка поиска источника: %w", err)
	}

	job, err := s.controlPlane.TriggerSync(ctx, connectionID)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrControlPlaneUnavailable, err)
	}

	if _, err := s.audit.Record(ctx, model.AuditEntry{
		OrganizationID: orgID,
		UserID:         userID,
		Action:         model.ActionDataSourceSyncTriggered,
		ResourceID:     &id,
		Metadata: map[string]any{
			"connectionId": connectionID,
			"jobId":        job.JobID,
		},
	}); err != nil {
		return nil, err
	}

	return job, nil
}

// ListConnectors возвращает каталог коннекторов, для отрасли — отфильтрованный.
func (s *ProvisioningService) ListConnectors(industry string) []model.ConnectorInfo {
	if strings.TrimSpace(industry) == "" {
		return s.catalog.ListAll()
	}
	return s.catalog.ListByIndustry(industry)
}

// DestinationSchema — схема хранилища организации: org_<org>.
func DestinationSchema(orgID string) string {
	return "org_" + sanitizeIdentifier(orgID)
}

// NamespaceFormat — namespace connection: org_<org>_<имя источника>.
func NamespaceFormat(orgID, sourceName string) string {
	return "org_" + sanitizeIdentifier(orgID) + "_" + sanitizeIdentifier(sourceName)
}

// sanitizeIdentifier приводит строку к идентификатору Postgres:
// нижний регистр, всё кроме [a-z0-9_] заменяется на '_'.
func sanitizeIdentifier(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '_' {
			b.WriteRune(r)
		} else {
			b.WriteByte('_')
		}
	}
	return b.String()
}

func validateSourceConfig(orgID string, cfg model.SourceConfig) error {
	var problems []string
	if strings.TrimSpace(orgID) == "" {
		problems = append(problems, "не задана организация")
	}
	if cfg.Name == "" {
		problems = append(problems, "name обязателен")
	} else if utf8.RuneCountInString(cfg.Name) > model.MaxSourceNameLength {
		problems = append(problems, fmt.Sprintf("name длиннее %d символов", model.MaxSourceNameLength))
	}
	if cfg.Type == "" {
		problems = append(problems, "type обязателен")
	} else if utf8.RuneCountInString(cfg.Type) > model.MaxSourceTypeLength {
		problems = append(problems, fmt.Sprintf("type длиннее %d символов", model.MaxSourceTypeLength))
	}
	if cfg.Credentials == nil {
		problems = append(problems, "credentials обязательны")
	}
	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrValidation, strings.Join(problems, "; "))
	}
	return nil
}
