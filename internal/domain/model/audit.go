package model

import "time"

// AuditAction — действие, фиксируемое в журнале аудита.
type AuditAction string

const (
	ActionWorkspaceCreated        AuditAction = "WORKSPACE_CREATED"
	ActionDataSourceCreated       AuditAction = "DATA_SOURCE_CREATED"
	ActionDataSourceCreatedMock   AuditAction = "DATA_SOURCE_CREATED_MOCK"
	ActionDataSourceSyncTriggered AuditAction = "DATA_SOURCE_SYNC_TRIGGERED"
)

// AuditEntry — запись для журнала аудита. UserID и ResourceID необязательны.
// Metadata не должна содержать учётных данных и секретов.
type AuditEntry struct {
	OrganizationID string
	UserID         *string
	Action         AuditAction
	ResourceID     *string
	Metadata       map[string]any
}

// AuditRecord — подтверждение записи в журнал: присвоенный ID (ULID,
// монотонный в пределах процесса) и время записи.
type AuditRecord struct {
	ID         string
	RecordedAt time.Time
	AuditEntry
}
