// Пакет model — доменные модели Integration Service.
package model

import (
	"encoding/json"
	"time"
)

// Credentials — учётные данные источника. Для ядра непрозрачны:
// сериализуются целиком (encoding/json сортирует ключи), значения не интерпретируются.
type Credentials map[string]json.RawMessage

// SyncFrequency — частота синхронизации, задаваемая пользователем.
type SyncFrequency string

const (
	SyncHourly  SyncFrequency = "hourly"
	SyncDaily   SyncFrequency = "daily"
	SyncWeekly  SyncFrequency = "weekly"
	SyncMonthly SyncFrequency = "monthly"
)

// Лимиты длины полей конфигурации источника (совпадают с колонками data_integrations).
const (
	MaxSourceNameLength = 255
	MaxSourceTypeLength = 100
)

// SourceConfig — запрос на подключение источника данных.
type SourceConfig struct {
	// Name — отображаемое имя источника (обязательно)
	Name string
	// Type — ключ коннектора из каталога или definitionId control plane (обязательно)
	Type string
	// Credentials — учётные данные (обязательно, может быть пустым объектом)
	Credentials Credentials
	// SyncFrequency — частота синхронизации; пусто трактуется как hourly
	SyncFrequency SyncFrequency
}

// ProvisionStatus — итоговый статус подключения источника.
type ProvisionStatus string

const (
	// StatusConfigured — источник и connection созданы в control plane.
	StatusConfigured ProvisionStatus = "configured"
	// StatusPendingExternalConnection — control plane недоступен, запись сохранена локально.
	StatusPendingExternalConnection ProvisionStatus = "pending_external_connection"
)

// ProvisionedSource — результат подключения источника. После создания не изменяется.
type ProvisionedSource struct {
	SourceID             string          `json:"sourceId"`
	ConnectionID         string          `json:"connectionId"`
	EncryptedCredentials string          `json:"encryptedCredentials"`
	Status               ProvisionStatus `json:"status"`
	Note                 string          `json:"note,omitempty"`
}

// DataIntegration — локальная запись о подключённом источнике
// (таблица data_integrations). Только вставка.
type DataIntegration struct {
	// ID — UUID записи
	ID string
	// OrganizationID — организация-владелец
	OrganizationID string
	Name           string
	Type           string
	// SourceID — id источника в control plane или mock-source-<uuid>
	SourceID string
	// ConnectionID — id connection в control plane или mock-connection-<uuid>
	ConnectionID string
	// EncryptedCredentials — конверт iv:tag:ciphertext
	EncryptedCredentials string
	SyncFrequency        SyncFrequency
	Status               ProvisionStatus
	Note                 string
	// CreatedBy — пользователь, создавший запись (nil для анонимных запросов)
	CreatedBy *string
	CreatedAt time.Time
}
