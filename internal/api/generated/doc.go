package generated

//go:generate oapi-codegen --config=oapi-codegen.yaml ../openapi/openapi.yaml
