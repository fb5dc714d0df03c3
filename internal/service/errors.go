// errors.go — ошибки бизнес-логики сервисного слоя.
package service

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation — ошибка валидации входных данных. Возвращается до любых внешних вызовов.
	ErrValidation = errors.New("ошибка валидации")
	// ErrControlPlaneUnavailable — сетевая/HTTP-ошибка control plane или ответ
	// без ожидаемого идентификатора.
	ErrControlPlaneUnavailable = errors.New("control plane недоступен")
)

// Шаги подключения источника, обращающиеся к control plane.
const (
	StepResolveWorkspace  = "resolve_workspace"
	StepCreateSource      = "create_source"
	StepCreateDestination = "create_destination"
	StepDiscoverSchema    = "discover_schema"
	StepCreateConnection  = "create_connection"
)

// StepError — ошибка конкретного шага подключения. Всегда оборачивает
// ErrControlPlaneUnavailable и исходную причину.
type StepError struct {
	Step string
	Err  error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("шаг %s: %v: %v", e.Step, ErrControlPlaneUnavailable, e.Err)
}

// Unwrap позволяет errors.Is/As находить и ErrControlPlaneUnavailable, и причину.
func (e *StepError) Unwrap() []error {
	return []error{ErrControlPlaneUnavailable, e.Err}
}

func stepError(step string, err error) error {
	return &StepError{Step: step, Err: err}
}
