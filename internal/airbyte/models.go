// models.go — структуры запросов и ответов Airbyte Config API.
// В ответах разбираются только поля, нужные оркестратору; остальное
// передаётся дальше как есть (json.RawMessage).
package airbyte

import (
	"encoding/json"

	"github.com/facundoinfinure/infinure/internal/domain/model"
)

// WorkspaceCreate — тело POST /v1/workspaces/create.
type WorkspaceCreate struct {
	Name                    string `json:"name"`
	DisplayName             string `json:"displayName"`
	Email                   string `json:"email"`
	AnonymousDataCollection bool   `json:"anonymousDataCollection"`
	News                    bool   `json:"news"`
	SecurityUpdates         bool   `json:"securityUpdates"`
}

type workspaceRead struct {
	WorkspaceID string `json:"workspaceId"`
}

type sourceList struct {
	Sources []json.RawMessage `json:"sources"`
}

// SourceCreate — тело POST /v1/sources/create.
// ConnectionConfiguration передаётся в control plane в открытом виде.
type SourceCreate struct {
	WorkspaceID             string            `json:"workspaceId"`
	Name                    string            `json:"name"`
	SourceDefinitionID      string            `json:"sourceDefinitionId"`
	ConnectionConfiguration model.Credentials `json:"connectionConfiguration"`
}

type sourceRead struct {
	SourceID string `json:"sourceId"`
}

// DestinationCreate — тело POST /v1/destinations/create.
type DestinationCreate struct {
	WorkspaceID             string         `json:"workspaceId"`
	Name                    string         `json:"name"`
	DestinationDefinitionID string         `json:"destinationDefinitionId"`
	ConnectionConfiguration map[string]any `json:"connectionConfiguration"`
}

type destinationRead struct {
	DestinationID string `json:"destinationId"`
}

type discoverSchemaRead struct {
	Catalog json.RawMessage `json:"catalog"`
}

// Schedule — расписание синхронизации connection.
type Schedule struct {
	ScheduleType   string `json:"scheduleType"`
	CronExpression string `json:"cronExpression"`
}

// ConnectionCreate — тело POST /v1/connections/create.
type ConnectionCreate struct {
	SourceID            string          `json:"sourceId"`
	DestinationID       string          `json:"destinationId"`
	SyncCatalog         json.RawMessage `json:"syncCatalog"`
	Schedule            Schedule        `json:"schedule"`
	NamespaceDefinition string          `json:"namespaceDefinition"`
	NamespaceFormat     string          `json:"namespaceFormat"`
}

type connectionRead struct {
	ConnectionID string `json:"connectionId"`
}

// JobInfo — ответ на запуск синхронизации. Raw — тело ответа целиком.
type JobInfo struct {
	JobID  int64
	Status string
	Raw    json.RawMessage
}

type jobInfoRead struct {
	Job struct {
		ID     int64  `json:"id"`
		Status string `json:"status"`
	} `json:"job"`
}

type healthRead struct {
	Available bool `json:"available"`
}
