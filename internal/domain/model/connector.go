package model

// ConnectorInfo — коннектор из каталога.
type ConnectorInfo struct {
	// Key — ключ коннектора (postgres, stripe, google-analytics, ...)
	Key string `json:"key"`
	// Name — отображаемое имя, выводится из ключа
	Name string `json:"name"`
	// Category — databases, dataWarehouses, saas, files
	Category string `json:"category"`
	// DefinitionID — идентификатор определения коннектора в control plane
	DefinitionID string `json:"definitionId"`
}
