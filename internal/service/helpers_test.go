package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/facundoinfinure/infinure/internal/airbyte"
	"github.com/facundoinfinure/infinure/internal/catalog"
	"github.com/facundoinfinure/infinure/internal/domain/model"
	"github.com/facundoinfinure/infinure/internal/repository"
	"github.com/facundoinfinure/infinure/internal/vault"
)

// testLogger создаёт logger для тестов.
func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

// --- Mock control plane ---

// mockControlPlane — httptest-сервер, имитирующий API control plane.
// failing — пути, на которые отвечает 500.
type mockControlPlane struct {
	mu         sync.Mutex
	calls      map[string]int
	failing    map[string]bool
	connection airbyte.ConnectionCreate
	source     airbyte.SourceCreate
	dest       airbyte.DestinationCreate
	synced     []string
	workspaces int
}

func newMockControlPlane(t *testing.T, failing ...string) (*mockControlPlane, *airbyte.Client) {
	t.Helper()

	m := &mockControlPlane{calls: map[string]int{}, failing: map[string]bool{}}
	for _, p := range failing {
		m.failing[p] = true
	}

	server := httptest.NewServer(http.HandlerFunc(m.handle))
	t.Cleanup(server.Close)

	client := airbyte.New(server.URL+"/api", airbyte.Options{
		HTTPClient: server.Client(),
		Timeout:    2 * time.Second,
	}, testLogger())
	return m, client
}

func (m *mockControlPlane) handle(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Path

	m.mu.Lock()
	m.calls[path]++
	fail := m.failing[path] || m.failing["*"]
	m.mu.Unlock()

	if fail {
		http.Error(w, `{"message":"internal error"}`, http.StatusInternalServerError)
		return
	}

	switch path {
	case "/api/v1/workspaces/create":
		m.mu.Lock()
		m.workspaces++
		n := m.workspaces
		m.mu.Unlock()
		writeTestJSON(w, map[string]any{"workspaceId": fmt.Sprintf("ws-%d", n)})
	case "/api/v1/sources/list":
		writeTestJSON(w, map[string]any{"sources": []map[string]any{
			{"sourceId": "src-1", "name": "Demo Postgres", "extra": map[string]int{"n": 1}},
		}})
	case "/api/v1/sources/create":
		var req airbyte.SourceCreate
		_ = json.NewDecoder(r.Body).Decode(&req)
		m.mu.Lock()
		m.source = req
		m.mu.Unlock()
		writeTestJSON(w, map[string]any{"sourceId": "src-1"})
	case "/api/v1/destinations/create":
		var req airbyte.DestinationCreate
		_ = json.NewDecoder(r.Body).Decode(&req)
		m.mu.Lock()
		m.dest = req
		m.mu.Unlock()
		writeTestJSON(w, map[string]any{"destinationId": "dst-1"})
	case "/api/v1/sources/discover_schema":
		writeTestJSON(w, map[string]any{"catalog": map[string]any{"streams": []any{}}})
	case "/api/v1/connections/create":
		var req airbyte.ConnectionCreate
		_ = json.NewDecoder(r.Body).Decode(&req)
		m.mu.Lock()
		m.connection = req
		m.mu.Unlock()
		writeTestJSON(w, map[string]any{"connectionId": "conn-1"})
	case "/api/v1/connections/sync":
		var req map[string]string
		_ = json.NewDecoder(r.Body).Decode(&req)
		m.mu.Lock()
		m.synced = append(m.synced, req["connectionId"])
		m.mu.Unlock()
		writeTestJSON(w, map[string]any{"job": map[string]any{"id": 42, "status": "running"}})
	default:
		http.NotFound(w, r)
	}
}

func (m *mockControlPlane) count(path string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[path]
}

func (m *mockControlPlane) total() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, c := range m.calls {
		n += c
	}
	return n
}

func writeTestJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

// --- In-memory репозитории ---

type memBindings struct {
	mu     sync.Mutex
	items  map[string]*model.WorkspaceBinding
	getErr error
}

func newMemBindings() *memBindings {
	return &memBindings{items: map[string]*model.WorkspaceBinding{}}
}

func (r *memBindings) Get(_ context.Context, orgID string) (*model.WorkspaceBinding, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.getErr != nil {
		return nil, r.getErr
	}
	b, ok := r.items[orgID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *b
	return &cp, nil
}

func (r *memBindings) Insert(_ context.Context, b *model.WorkspaceBinding) (*model.WorkspaceBinding, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.items[b.OrganizationID]; ok {
		cp := *existing
		return &cp, false, nil
	}
	stored := *b
	stored.CreatedAt = time.Now().UTC()
	r.items[b.OrganizationID] = &stored
	cp := stored
	return &cp, true, nil
}

func (r *memBindings) snapshot() func() {
	r.mu.Lock()
	defer r.mu.Unlock()
	saved := make(map[string]*model.WorkspaceBinding, len(r.items))
	for k, v := range r.items {
		saved[k] = v
	}
	return func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.items = saved
	}
}

type memIntegrations struct {
	mu        sync.Mutex
	items     []*model.DataIntegration
	createErr error
}

func (r *memIntegrations) Create(_ context.Context, di *model.DataIntegration) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.createErr != nil {
		return r.createErr
	}
	for _, it := range r.items {
		if it.OrganizationID == di.OrganizationID && it.SourceID == di.SourceID {
			return repository.ErrConflict
		}
	}
	di.CreatedAt = time.Now().UTC()
	cp := *di
	r.items = append(r.items, &cp)
	return nil
}

func (r *memIntegrations) GetBySourceID(_ context.Context, orgID, sourceID string) (*model.DataIntegration, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, it := range r.items {
		if it.OrganizationID == orgID && it.SourceID == sourceID {
			cp := *it
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *memIntegrations) all() []*model.DataIntegration {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*model.DataIntegration(nil), r.items...)
}

func (r *memIntegrations) snapshot() func() {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := len(r.items)
	return func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.items = r.items[:n]
	}
}

type memAudit struct {
	mu        sync.Mutex
	records   []*model.AuditRecord
	appendErr error
}

func (r *memAudit) Append(_ context.Context, rec *model.AuditRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.appendErr != nil {
		return r.appendErr
	}
	cp := *rec
	r.records = append(r.records, &cp)
	return nil
}

func (r *memAudit) actions() []model.AuditAction {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]model.AuditAction, 0, len(r.records))
	for _, rec := range r.records {
		out = append(out, rec.Action)
	}
	return out
}

func (r *memAudit) snapshot() func() {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := len(r.records)
	return func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.records = r.records[:n]
	}
}

func (r *memAudit) all() []*model.AuditRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*model.AuditRecord(nil), r.records...)
}

// memTx — транзакции поверх in-memory репозиториев: при ошибке fn
// состояние репозиториев возвращается к снимку на начало транзакции.
// Транзакции выполняются последовательно.
type memTx struct {
	mu    sync.Mutex
	repos repository.Repositories
}

func newMemTx(bindings repository.WorkspaceBindingRepository, integrations repository.DataIntegrationRepository, audit repository.AuditLogRepository) *memTx {
	return &memTx{repos: repository.Repositories{
		Bindings:     bindings,
		Integrations: integrations,
		AuditLog:     audit,
	}}
}

func (m *memTx) WithinTx(_ context.Context, fn func(repos repository.Repositories) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	type snapshotter interface{ snapshot() func() }
	var restore []func()
	for _, r := range []any{m.repos.Bindings, m.repos.Integrations, m.repos.AuditLog} {
		if s, ok := r.(snapshotter); ok {
			restore = append(restore, s.snapshot())
		}
	}

	if err := fn(m.repos); err != nil {
		for _, undo := range restore {
			undo()
		}
		return err
	}
	return nil
}

// --- Сборка сервиса ---

type testEnv struct {
	cp           *mockControlPlane
	bindings     *memBindings
	integrations *memIntegrations
	audit        *memAudit
	vault        *vault.Vault
	svc          *ProvisioningService
}

func setupTestEnv(t *testing.T, failing ...string) *testEnv {
	t.Helper()

	cp, client := newMockControlPlane(t, failing...)
	env := &testEnv{
		cp:           cp,
		bindings:     newMemBindings(),
		integrations: &memIntegrations{},
		audit:        &memAudit{},
	}

	v, err := vault.New("test-master-key-for-integration-service")
	if err != nil {
		t.Fatalf("vault.New: %v", err)
	}
	env.vault = v

	cat, err := catalog.Load()
	if err != nil {
		t.Fatalf("catalog.Load: %v", err)
	}

	tx := newMemTx(env.bindings, env.integrations, env.audit)
	trail := NewAuditTrail(env.audit, testLogger())
	resolver, err := NewWorkspaceResolver(client, env.bindings, tx, trail, 16, testLogger())
	if err != nil {
		t.Fatalf("NewWorkspaceResolver: %v", err)
	}

	env.svc = NewProvisioningService(client, resolver, v, cat, env.integrations, tx, trail, DestinationConfig{
		Host:     "warehouse",
		Port:     5432,
		Database: "infinure",
		Username: "postgres",
		Password: "postgres",
	}, testLogger())
	return env
}

func demoPostgresConfig() model.SourceConfig {
	return model.SourceConfig{
		Name: "Demo Postgres",
		Type: "postgres",
		Credentials: model.Credentials{
			"host":     json.RawMessage(`"db"`),
			"port":     json.RawMessage(`5432`),
			"password": json.RawMessage(`"s3cr3t-value"`),
		},
		SyncFrequency: model.SyncDaily,
	}
}
