// handler.go — основной обработчик API, реализующий generated.ServerInterface.
// Делегирует запросы в сервисный слой и переводит ошибки в HTTP-ответы.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/facundoinfinure/infinure/internal/airbyte"
	apierrors "github.com/facundoinfinure/infinure/internal/api/errors"
	"github.com/facundoinfinure/infinure/internal/domain/model"
	"github.com/facundoinfinure/infinure/internal/service"
	"github.com/facundoinfinure/infinure/internal/vault"
)

// IntegrationService — операции сервисного слоя, доступные через API.
// Реализуется *service.ProvisioningService.
type IntegrationService interface {
	SetupDataSource(ctx context.Context, orgID string, userID *string, cfg model.SourceConfig) (*service.ProvisionResult, error)
	ListSources(ctx context.Context, orgID string) ([]json.RawMessage, error)
	TriggerSync(ctx context.Context, orgID string, userID *string, id string) (*airbyte.JobInfo, error)
	ListConnectors(industry string) []model.ConnectorInfo
}

// APIHandler — основной обработчик API Integration Service.
type APIHandler struct {
	health       *HealthHandler
	integrations IntegrationService
	logger       *slog.Logger
}

// NewAPIHandler создаёт основной обработчик API.
func NewAPIHandler(health *HealthHandler, integrations IntegrationService, logger *slog.Logger) *APIHandler {
	return &APIHandler{
		health:       health,
		integrations: integrations,
		logger:       logger.With(slog.String("component", "api_handler")),
	}
}

// HealthLive — liveness probe (делегируется в HealthHandler).
func (h *APIHandler) HealthLive(w http.ResponseWriter, r *http.Request) {
	h.health.HealthLive(w, r)
}

// HealthReady — readiness probe (делегируется в HealthHandler).
func (h *APIHandler) HealthReady(w http.ResponseWriter, r *http.Request) {
	h.health.HealthReady(w, r)
}

// GetMetrics — Prometheus метрики (делегируется в HealthHandler).
func (h *APIHandler) GetMetrics(w http.ResponseWriter, r *http.Request) {
	h.health.GetMetrics(w, r)
}

// --- Вспомогательные функции ---

// writeJSON записывает JSON-ответ с указанным статусом.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// handleServiceError переводит ошибку сервисного слоя в HTTP-ответ.
func (h *APIHandler) handleServiceError(w http.ResponseWriter, err error, operation string) {
	switch {
	case errors.Is(err, service.ErrValidation):
		apierrors.ValidationError(w, err.Error())
	case errors.Is(err, service.ErrSourcePending):
		apierrors.Conflict(w, err.Error())
	case errors.Is(err, service.ErrControlPlaneUnavailable):
		h.logger.Warn("Ошибка control plane",
			slog.String("operation", operation),
			slog.String("error", err.Error()),
		)
		apierrors.ControlPlaneUnavailable(w, err.Error())
	case errors.Is(err, vault.ErrCryptoIntegrity):
		h.logger.Error("Нарушена целостность учётных данных",
			slog.String("operation", operation),
			slog.String("error", err.Error()),
		)
		apierrors.CryptoIntegrityError(w, "Нарушена целостность учётных данных")
	default:
		h.logger.Error("Внутренняя ошибка",
			slog.String("operation", operation),
			slog.String("error", err.Error()),
		)
		apierrors.InternalError(w, "Внутренняя ошибка сервера")
	}
}
