// validation.go — проверка входящих запросов по OpenAPI-контракту (kin-openapi).
// Запросы к путям вне контракта пропускаются без проверки: их обрабатывает роутер.
package middleware

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/getkin/kin-openapi/openapi3filter"
	"github.com/getkin/kin-openapi/routers"
	"github.com/getkin/kin-openapi/routers/gorillamux"

	apierrors "github.com/facundoinfinure/infinure/internal/api/errors"
)

// RequestValidator возвращает middleware проверки параметров и тела запроса.
// Аутентификация контрактом не проверяется: её выполняет JWTAuth.
func RequestValidator(doc *openapi3.T) (func(http.Handler) http.Handler, error) {
	router, err := gorillamux.NewRouter(doc)
	if err != nil {
		return nil, fmt.Errorf("создание OpenAPI роутера: %w", err)
	}

	options := &openapi3filter.Options{
		AuthenticationFunc: openapi3filter.NoopAuthenticationFunc,
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			route, pathParams, err := router.FindRoute(r)
			if err != nil {
				// Маршрут вне контракта (404/405 от chi)
				if errors.Is(err, routers.ErrPathNotFound) || errors.Is(err, routers.ErrMethodNotAllowed) {
					next.ServeHTTP(w, r)
					return
				}
				apierrors.ValidationError(w, "Некорректный запрос")
				return
			}

			input := &openapi3filter.RequestValidationInput{
				Request:    r,
				PathParams: pathParams,
				Route:      route,
				Options:    options,
			}
			if err := openapi3filter.ValidateRequest(r.Context(), input); err != nil {
				apierrors.ValidationError(w, validationMessage(err))
				return
			}

			next.ServeHTTP(w, r)
		})
	}, nil
}

// validationMessage формирует сообщение без значений полей:
// тело запроса содержит учётные данные.
func validationMessage(err error) string {
	var reqErr *openapi3filter.RequestError
	if !errors.As(err, &reqErr) {
		return "Некорректный запрос"
	}

	var schemaErr *openapi3.SchemaError
	if errors.As(err, &schemaErr) {
		field := strings.Join(schemaErr.JSONPointer(), ".")
		if reqErr.Parameter != nil {
			field = reqErr.Parameter.Name
		}
		if field == "" {
			return "Некорректное тело запроса: " + schemaErr.Reason
		}
		return fmt.Sprintf("Поле %s: %s", field, schemaErr.Reason)
	}

	if reqErr.Parameter != nil {
		return fmt.Sprintf("Параметр %s: %s", reqErr.Parameter.Name, reqErr.Reason)
	}
	if reqErr.RequestBody != nil {
		if reqErr.Reason != "" {
			return "Некорректное тело запроса: " + reqErr.Reason
		}
		return "Некорректное тело запроса"
	}
	return "Некорректный запрос"
}
