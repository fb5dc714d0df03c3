// integrations.go — обработчики /api/integrations: источники данных,
// запуск синхронизации и каталог коннекторов.
package handlers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"

	apierrors "github.com/facundoinfinure/infinure/internal/api/errors"
	"github.com/facundoinfinure/infinure/internal/api/generated"
	"github.com/facundoinfinure/infinure/internal/api/middleware"
	"github.com/facundoinfinure/infinure/internal/domain/model"
	"github.com/facundoinfinure/infinure/internal/service"
)

// maxCreateSourceBody — предельный размер тела запроса CreateSource.
const maxCreateSourceBody = 1 << 20

// ListSources возвращает источники организации из control plane без изменений.
// GET /api/integrations/sources
func (h *APIHandler) ListSources(w http.ResponseWriter, r *http.Request) {
	sources, err := h.integrations.ListSources(r.Context(), middleware.OrganizationFromContext(r.Context()))
	if err != nil {
		h.handleServiceError(w, err, "ListSources")
		return
	}
	writeJSON(w, http.StatusOK, sources)
}

// CreateSource подключает источник данных.
// 201 — источник создан в control plane, 202 — сохранён локально до его доступности.
// POST /api/integrations/sources
func (h *APIHandler) CreateSource(w http.ResponseWriter, r *http.Request) {
	var req generated.CreateSourceJSONRequestBody

	// UseNumber сохраняет числа в учётных данных без потери точности
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxCreateSourceBody))
	dec.UseNumber()
	if err := dec.Decode(&req); err != nil {
		apierrors.ValidationError(w, "Некорректное тело запроса")
		return
	}

	creds, err := toCredentials(req.Credentials)
	if err != nil {
		apierrors.ValidationError(w, "Некорректные учётные данные")
		return
	}

	cfg := model.SourceConfig{
		Name:        req.Name,
		Type:        req.Type,
		Credentials: creds,
	}
	if req.SyncFrequency != nil {
		cfg.SyncFrequency = model.SyncFrequency(*req.SyncFrequency)
	}

	ctx := r.Context()
	res, err := h.integrations.SetupDataSource(ctx, middleware.OrganizationFromContext(ctx), middleware.UserFromContext(ctx), cfg)
	if err != nil {
		h.handleServiceError(w, err, "CreateSource")
		return
	}

	status := http.StatusCreated
	if res.Outcome == service.OutcomeDegraded {
		status = http.StatusAccepted
	}
	writeJSON(w, status, provisionedSourceToAPI(res.Source))
}

// TriggerSync запускает синхронизацию по ID источника или connection.
// Ответ control plane возвращается без изменений.
// POST /api/integrations/sources/{id}/sync
func (h *APIHandler) TriggerSync(w http.ResponseWriter, r *http.Request, id generated.SourceId) {
	ctx := r.Context()
	job, err := h.integrations.TriggerSync(ctx, middleware.OrganizationFromContext(ctx), middleware.UserFromContext(ctx), id)
	if err != nil {
		h.handleServiceError(w, err, "TriggerSync")
		return
	}

	body := bytes.TrimSpace(job.Raw)
	if len(body) == 0 || bytes.Equal(body, []byte("null")) {
		body = []byte("{}")
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

// ListConnectors возвращает каталог коннекторов, для отрасли — отфильтрованный.
// GET /api/integrations/connectors?industry=
func (h *APIHandler) ListConnectors(w http.ResponseWriter, r *http.Request, params generated.ListConnectorsParams) {
	industry := ""
	if params.Industry != nil {
		industry = *params.Industry
	}

	connectors := h.integrations.ListConnectors(industry)
	resp := make([]generated.ConnectorInfo, 0, len(connectors))
	for _, c := range connectors {
		resp = append(resp, connectorToAPI(c))
	}
	writeJSON(w, http.StatusOK, resp)
}

// --- Конвертация ---

// toCredentials переводит разобранный JSON-объект в непрозрачные учётные данные.
// nil остаётся nil: отсутствие credentials отклоняет сервисный слой.
func toCredentials(in map[string]interface{}) (model.Credentials, error) {
	if in == nil {
		return nil, nil
	}
	out := make(model.Credentials, len(in))
	for k, v := range in {
		raw, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("поле %s: %w", k, err)
		}
		out[k] = raw
	}
	return out, nil
}

func provisionedSourceToAPI(src model.ProvisionedSource) generated.ProvisionedSource {
	resp := generated.ProvisionedSource{
		SourceId:             src.SourceID,
		ConnectionId:         src.ConnectionID,
		EncryptedCredentials: src.EncryptedCredentials,
		Status:               generated.ProvisionedSourceStatus(src.Status),
	}
	if src.Note != "" {
		note := src.Note
		resp.Note = &note
	}
	return resp
}

func connectorToAPI(c model.ConnectorInfo) generated.ConnectorInfo {
	return generated.ConnectorInfo{
		Key:          c.Key,
		Name:         c.Name,
		Category:     generated.ConnectorInfoCategory(c.Category),
		DefinitionId: c.DefinitionID,
	}
}
