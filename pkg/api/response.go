package api

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	apperrors "ticket-bot/pkg/errors"
)

type Response[T any] struct {
	Status  bool   `json:"status"`
	Message string `json:"message"`
	Body    T      `json:"body,omitempty"`
}

// SuccessOne — для возврата одного объекта
func SuccessOne[T any](c echo.Context, code int, message string, data T) error {
	return c.JSON(code, Response[T]{
		Status:  true,
		Message: message,
		Body:    data,
	})
}

// ErrorResponse переводит доменные ошибки в HTTP-коды. Наружу уходит только
// текст ошибки, без технических деталей.
func ErrorResponse(c echo.Context, err error) error {
	code := http.StatusInternalServerError

	var invalidInput *apperrors.InvalidInputError
	switch {
	case errors.Is(err, apperrors.ErrNotFound), errors.Is(err, apperrors.ErrObjectNotFound):
		code = http.StatusNotFound
	case errors.Is(err, apperrors.ErrForbidden):
		code = http.StatusForbidden
	case errors.Is(err, apperrors.ErrBadRequest), errors.As(err, &invalidInput):
		code = http.StatusBadRequest
	case errors.Is(err, apperrors.ErrCircuitOpen):
		code = http.StatusServiceUnavailable
	}

	return c.JSON(code, Response[any]{
		Status:  false,
		Message: err.Error(),
	})
}
