package model

import "time"

// WorkspaceBinding — привязка организации к workspace в control plane.
// Не более одной на организацию (таблица workspace_bindings).
type WorkspaceBinding struct {
	OrganizationID string
	WorkspaceID    string
	CreatedAt      time.Time
}
