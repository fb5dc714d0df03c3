// client.go — HTTP-клиент к Airbyte Config API (control plane).
// Каждый вызов ограничен собственным таймаутом поверх контекста вызывающего.
// Операции: CreateWorkspace, ListSources, CreateSource, CreateDestination,
// DiscoverSchema, CreateConnection, TriggerSync, CheckReady.
package airbyte

import (
	"bytes"
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ErrMissingIdentifier — успешный ответ control plane не содержит ожидаемого поля
// (workspaceId, sourceId, destinationId, connectionId, catalog).
var ErrMissingIdentifier = errors.New("ответ control plane не содержит ожидаемого идентификатора")

// APIError — control plane вернул статус вне диапазона 2xx.
type APIError struct {
	Operation  string
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s: control plane вернул статус %d: %s", e.Operation, e.StatusCode, e.Body)
}

// maxErrorBody — сколько байт тела ошибки сохраняется в APIError.
const maxErrorBody = 4096

var requestDuration = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "is_control_plane_request_duration_seconds",
		Help:    "Длительность запросов к control plane",
		Buckets: prometheus.DefBuckets,
	},
	[]string{"operation", "outcome"},
)

// Options — параметры клиента.
type Options struct {
	// HTTPClient — HTTP-клиент (может содержать TLS-конфигурацию). nil — клиент по умолчанию.
	HTTPClient *http.Client
	// Username, Password — basic auth (пусто — без авторизации).
	Username string
	Password string
	// Timeout — ограничение на один вызов. 0 — 30 секунд.
	Timeout time.Duration
}

// Client — HTTP-клиент к Airbyte Config API.
type Client struct {
	baseURL  string
	username string
	password string
	timeout  time.Duration

	httpClient *http.Client
	logger     *slog.Logger
}

// New создаёт клиент control plane.
// baseURL — базовый URL API (например, http://localhost:8000/api).
func New(baseURL string, opts Options, logger *slog.Logger) *Client {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: timeout}
	}

	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		username:   opts.Username,
		password:   opts.Password,
		timeout:    timeout,
		httpClient: httpClient,
		logger:     logger.With(slog.String("component", "airbyte_client")),
	}
}

// NewHTTPClient создаёт HTTP-клиент для control plane.
// caCertPath — путь к CA-сертификату (пустая строка — системный пул).
func NewHTTPClient(caCertPath string, timeout time.Duration, logger *slog.Logger) (*http.Client, error) {
	httpClient := &http.Client{Timeout: timeout}

	if caCertPath != "" {
		tlsConfig, err := buildTLSConfig(caCertPath)
		if err != nil {
			return nil, fmt.Errorf("загрузка CA-сертификата control plane: %w", err)
		}
		httpClient.Transport = &http.Transport{
			TLSClientConfig: tlsConfig,
		}
		logger.Info("CA-сертификат control plane добавлен в пул доверия",
			slog.String("ca_cert", caCertPath),
		)
	}

	return httpClient, nil
}

func buildTLSConfig(caCertPath string) (*tls.Config, error) {
	caCert, err := os.ReadFile(caCertPath)
	if err != nil {
		return nil, fmt.Errorf("чтение CA-сертификата: %w", err)
	}

	caCertPool, err := x509.SystemCertPool()
	if err != nil {
		caCertPool = x509.NewCertPool()
	}
	if !caCertPool.AppendCertsFromPEM(caCert) {
		return nil, fmt.Errorf("файл %s не содержит PEM-сертификатов", caCertPath)
	}

	return &tls.Config{
		RootCAs:    caCertPool,
		MinVersion: tls.VersionTLS12,
	}, nil
}

// --- Workspaces ---

// CreateWorkspace создаёт workspace для организации и возвращает его ID.
func (c *Client) CreateWorkspace(ctx context.Context, orgID string) (string, error) {
	req := WorkspaceCreate{
		Name:                    "org-" + orgID,
		DisplayName:             "Organization " + orgID,
		Email:                   fmt.Sprintf("admin@org-%s.infinure.local", orgID),
		AnonymousDataCollection: false,
		News:                    false,
		SecurityUpdates:         true,
	}

	var resp workspaceRead
	if err := c.post(ctx, "CreateWorkspace", "/v1/workspaces/create", req, &resp); err != nil {
		return "", err
	}
	if resp.WorkspaceID == "" {
		return "", fmt.Errorf("CreateWorkspace: %w (workspaceId)", ErrMissingIdentifier)
	}
	return resp.WorkspaceID, nil
}

// --- Sources ---

// ListSources возвращает источники workspace без преобразования.
func (c *Client) ListSources(ctx context.Context, workspaceID string) ([]json.RawMessage, error) {
	var resp sourceList
	body := map[string]string{"workspaceId": workspaceID}
	if err := c.post(ctx, "ListSources", "/v1/sources/list", body, &resp); err != nil {
		return nil, err
	}
	if resp.Sources == nil {
		return []json.RawMessage{}, nil
	}
	return resp.Sources, nil
}

// CreateSource создаёт источник и возвращает его ID.
func (c *Client) CreateSource(ctx context.Context, req SourceCreate) (string, error) {
	var resp sourceRead
	if err := c.post(ctx, "CreateSource", "/v1/sources/create", req, &resp); err != nil {
		return "", err
	}
	if resp.SourceID == "" {
		return "", fmt.Errorf("CreateSource: %w (sourceId)", ErrMissingIdentifier)
	}
	return resp.SourceID, nil
}

// DiscoverSchema запускает обнаружение схемы источника и возвращает каталог потоков.
// Ответ без каталога считается ошибкой.
func (c *Client) DiscoverSchema(ctx context.Context, sourceID string) (json.RawMessage, error) {
	var resp discoverSchemaRead
	body := map[string]string{"sourceId": sourceID}
	if err := c.post(ctx, "DiscoverSchema", "/v1/sources/discover_schema", body, &resp); err != nil {
		return nil, err
	}
	if len(resp.Catalog) == 0 || string(resp.Catalog) == "null" {
		return nil, fmt.Errorf("DiscoverSchema: %w (catalog)", ErrMissingIdentifier)
	}
	return resp.Catalog, nil
}

// --- Destinations ---

// CreateDestination создаёт destination и возвращает его ID.
func (c *Client) CreateDestination(ctx context.Context, req DestinationCreate) (string, error) {
	var resp destinationRead
	if err := c.post(ctx, "CreateDestination", "/v1/destinations/create", req, &resp); err != nil {
		return "", err
	}
	if resp.DestinationID == "" {
		return "", fmt.Errorf("CreateDestination: %w (destinationId)", ErrMissingIdentifier)
	}
	return resp.DestinationID, nil
}

// --- Connections ---

// CreateConnection создаёт connection и возвращает его ID.
func (c *Client) CreateConnection(ctx context.Context, req ConnectionCreate) (string, error) {
	var resp connectionRead
	if err := c.post(ctx, "CreateConnection", "/v1/connections/create", req, &resp); err != nil {
		return "", err
	}
	if resp.ConnectionID == "" {
		return "", fmt.Errorf("CreateConnection: %w (connectionId)", ErrMissingIdentifier)
	}
	return resp.ConnectionID, nil
}

// TriggerSync запускает синхронизацию connection.
func (c *Client) TriggerSync(ctx context.Context, connectionID string) (*JobInfo, error) {
	var raw json.RawMessage
	body := map[string]string{"connectionId": connectionID}
	if err := c.post(ctx, "TriggerSync", "/v1/connections/sync", body, &raw); err != nil {
		return nil, err
	}

	info := &JobInfo{Raw: raw}
	var job jobInfoRead
	if err := json.Unmarshal(raw, &job); err == nil {
		info.JobID = job.Job.ID
		info.Status = job.Job.Status
	}
	return info, nil
}

// --- Readiness checker ---

// CheckReady проверяет доступность control plane через /v1/health.
// Реализует handlers.ReadinessChecker.
func (c *Client) CheckReady() (string, string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/v1/health", nil)
	if err != nil {
		return "fail", fmt.Sprintf("создание запроса: %v", err)
	}
	c.authorize(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "fail", fmt.Sprintf("control plane недоступен: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "fail", fmt.Sprintf("control plane вернул статус %d", resp.StatusCode)
	}

	var health healthRead
	if err := json.NewDecoder(resp.Body).Decode(&health); err != nil {
		return "degraded", "некорректный ответ health endpoint"
	}
	if !health.Available {
		return "degraded", "control plane сообщает о недоступности"
	}
	return "ok", "control plane доступен"
}

// HealthPath возвращает путь health endpoint относительно хоста
// (для HTTP-проверки topologymetrics).
func (c *Client) HealthPath() string {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return "/v1/health"
	}
	return u.Path + "/v1/health"
}

// --- HTTP helpers ---

func (c *Client) authorize(req *http.Request) {
	if c.username != "" {
		req.SetBasicAuth(c.username, c.password)
	}
}

// post выполняет POST-запрос с JSON-телом и декодирует JSON-ответ в target.
// Статус вне 2xx возвращается как *APIError.
func (c *Client) post(ctx context.Context, operation, path string, body, target any) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	outcome := "error"
	defer func() {
		requestDuration.WithLabelValues(operation, outcome).Observe(time.Since(start).Seconds())
	}()

	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("%s: сериализация тела запроса: %w", operation, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("%s: создание запроса: %w", operation, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	c.authorize(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s: запрос к control plane: %w", operation, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		errBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &APIError{
			Operation:  operation,
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(errBody)),
		}
	}

	if err := json.NewDecoder(resp.Body).Decode(target); err != nil {
		return fmt.Errorf("%s: декодирование ответа control plane: %w", operation, err)
	}

	outcome = "ok"
	c.logger.Debug("Запрос к control plane выполнен",
		slog.String("operation", operation),
		slog.Duration("duration", time.Since(start)),
	)
	return nil
}
