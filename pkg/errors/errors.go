package errors

import "fmt"

var (
	// Токены и аутентификация в CRM
	ErrNoToken      = fmt.Errorf("не удалось получить токен доступа CRM")
	ErrTokenMissing = fmt.Errorf("ответ аутентификации не содержит access_token")
	ErrUnauthorized = fmt.Errorf("CRM отклонила запрос: токен недействителен")

	// Circuit breaker
	ErrCircuitOpen = fmt.Errorf("цепь разомкнута: запросы к сервису временно заблокированы")

	// Внешние API
	ErrUnexpectedResponse = fmt.Errorf("неожиданный формат ответа внешнего API")
	ErrObjectNotFound     = fmt.Errorf("объект не найден")

	// Общие
	ErrNotFound   = fmt.Errorf("запись не найдена")
	ErrBadRequest = fmt.Errorf("неверный запрос")
	ErrForbidden  = fmt.Errorf("доступ запрещён")
)

// ApiError - ошибка внешнего API с HTTP-статусом и фрагментом тела ответа.
type ApiError struct {
	Status int
	Body   string
}

func (e *ApiError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("внешний API вернул статус %d", e.Status)
	}
	return fmt.Sprintf("внешний API вернул статус %d: %s", e.Status, e.Body)
}

func NewApiError(status int, body string) error {
	const limit = 200
	if len(body) > limit {
		body = body[:limit]
	}
	return &ApiError{Status: status, Body: body}
}

// InvalidInputError - ошибка валидации входных данных.
type InvalidInputError struct {
	Message string
}

func (e *InvalidInputError) Error() string { return e.Message }

func NewInvalidInputError(format string, args ...interface{}) error {
	return &InvalidInputError{Message: fmt.Sprintf(format, args...)}
}
