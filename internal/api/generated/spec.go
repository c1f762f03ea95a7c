package generated

import (
	"context"
	_ "embed"
	"fmt"

	"github.com/getkin/kin-openapi/openapi3"
)

//go:embed openapi.yaml
var openapiYAML []byte

// SpecYAML возвращает встроенный OpenAPI документ в исходном виде.
func SpecYAML() []byte {
	return openapiYAML
}

// GetSwagger загружает и валидирует встроенный OpenAPI документ.
func GetSwagger() (*openapi3.T, error) {
	loader := openapi3.NewLoader()
	doc, err := loader.LoadFromData(openapiYAML)
	if err != nil {
		return nil, fmt.Errorf("ошибка загрузки OpenAPI документа: %w", err)
	}
	if err := doc.Validate(context.Background()); err != nil {
		return nil, fmt.Errorf("OpenAPI документ невалиден: %w", err)
	}
	return doc, nil
}
