// Пакет openapi — встроенный OpenAPI-контракт Integration Service.
// Используется middleware валидации запросов и генератором internal/api/generated.
package openapi

import (
	"context"
	_ "embed"
	"fmt"

	"github.com/getkin/kin-openapi/openapi3"
)

//go:embed openapi.yaml
var spec []byte

// Raw возвращает контракт в исходном YAML.
func Raw() []byte {
	return spec
}

// Load разбирает и проверяет встроенный контракт.
func Load(ctx context.Context) (*openapi3.T, error) {
	loader := openapi3.NewLoader()
	loader.Context = ctx

	doc, err := loader.LoadFromData(spec)
	if err != nil {
		return nil, fmt.Errorf("ошибка разбора OpenAPI: %w", err)
	}
	if err := doc.Validate(ctx); err != nil {
		return nil, fmt.Errorf("некорректный OpenAPI: %w", err)
	}
	return doc, nil
}
