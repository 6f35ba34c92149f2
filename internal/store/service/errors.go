package service

import (
	"errors"
	"fmt"
)

// ErrNoOrder hides both absence and foreign ownership of an order, so a
// caller cannot probe for other accounts' orders.
var ErrNoOrder = errors.New("no such order")

// OrderError is a structured engine failure carrying an HTTP-class code.
type OrderError struct {
	Message string
	Code    int
}

func (e *OrderError) Error() string {
	return fmt.Sprintf("order error %d: %s", e.Code, e.Message)
}

func NewOrderError(code int, message string) *OrderError {
	return &OrderError{
		Code:    code,
		Message: message,
	}
}
