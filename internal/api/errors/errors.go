// Пакет errors — конструкторы стандартных ошибок Integration Service.
// Единый формат: {"error": {"code": "...", "message": "..."}}.
// Все HTTP-ответы с ошибками должны использовать WriteError.
package errors

import (
	"encoding/json"
	"net/http"
)

// Коды ошибок, определённые в OpenAPI контракте.
const (
	CodeValidationError         = "VALIDATION_ERROR"
	CodeUnauthorized            = "UNAUTHORIZED"
	CodeConflict                = "CONFLICT"
	CodeControlPlaneUnavailable = "CONTROL_PLANE_UNAVAILABLE"
	CodeCryptoIntegrityError    = "CRYPTO_INTEGRITY_ERROR"
	CodeInternalError           = "INTERNAL_ERROR"
)

// errorBody — структура тела ответа ошибки.
type errorBody struct {
	Error errorDetail `json:"error"`
}

// errorDetail — детали ошибки.
type errorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// WriteError записывает ответ ошибки в стандартном формате.
// statusCode — HTTP статус-код, code — машиночитаемый код, message — описание.
func WriteError(w http.ResponseWriter, statusCode int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(errorBody{
		Error: errorDetail{
			Code:    code,
			Message: message,
		},
	})
}

// --- Конструкторы для типичных ошибок ---

// ValidationError — 400 некорректные входные данные.
func ValidationError(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusBadRequest, CodeValidationError, message)
}

// Unauthorized — 401 требуется аутентификация.
func Unauthorized(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusUnauthorized, CodeUnauthorized, message)
}

// Conflict — 409 состояние ресурса не допускает операцию.
func Conflict(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusConflict, CodeConflict, message)
}

// ControlPlaneUnavailable — 502 control plane недоступен или ответил ошибкой.
func ControlPlaneUnavailable(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusBadGateway, CodeControlPlaneUnavailable, message)
}

// CryptoIntegrityError — 500 конверт учётных данных повреждён или чужой.
func CryptoIntegrityError(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusInternalServerError, CodeCryptoIntegrityError, message)
}

// InternalError — 500 внутренняя ошибка.
func InternalError(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusInternalServerError, CodeInternalError, message)
}
