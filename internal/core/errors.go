// Package core предоставляет систему типизированных ошибок сервиса.
package core

import (
	"errors"
	"fmt"
)

// Коды ошибок сервиса
const (
	CodeInvalidState         = "INVALID_STATE"
	CodeConcurrencyConflict  = "CONCURRENCY_CONFLICT"
	CodeStoreUnavailable     = "STORE_UNAVAILABLE"
	CodeAuthenticationFailed = "AUTHENTICATION_FAILED"
	CodeDeliveryFailed       = "DELIVERY_FAILED"
	CodeNotFound             = "NOT_FOUND"
	CodeInvalidConfig        = "INVALID_CONFIG"
)

// DomainError базовый тип ошибки сервиса с кодом
type DomainError struct {
	Code    string
	Message string
	Cause   error
}

// Error реализует интерфейс error
func (e *DomainError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap возвращает причину ошибки
func (e *DomainError) Unwrap() error {
	return e.Cause
}

// Is проверяет, соответствует ли ошибка коду
func (e *DomainError) Is(target error) bool {
	if t, ok := target.(*DomainError); ok {
		return e.Code == t.Code
	}
	return false
}

// NewError создает новую ошибку с кодом
func NewError(code, format string, args ...interface{}) *DomainError {
	return &DomainError{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	}
}

// Wrap оборачивает существующую ошибку кодом
func Wrap(err error, code, message string) *DomainError {
	if err == nil {
		return nil
	}
	return &DomainError{
		Code:    code,
		Message: message,
		Cause:   err,
	}
}

// CodeOf возвращает код ошибки или пустую строку
func CodeOf(err error) string {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Code
	}
	return ""
}

// HasCode проверяет, несет ли ошибка указанный код
func HasCode(err error, code string) bool {
	return CodeOf(err) == code
}

// IsInvalidState проверяет ошибку недопустимого перехода состояния
func IsInvalidState(err error) bool { return HasCode(err, CodeInvalidState) }

// IsConcurrencyConflict проверяет конфликт оптимистичных версий
func IsConcurrencyConflict(err error) bool { return HasCode(err, CodeConcurrencyConflict) }

// IsStoreUnavailable проверяет транспортную ошибку хранилища событий
func IsStoreUnavailable(err error) bool { return HasCode(err, CodeStoreUnavailable) }

// IsAuthenticationFailed проверяет отказ провайдера токенов
func IsAuthenticationFailed(err error) bool { return HasCode(err, CodeAuthenticationFailed) }

// IsDeliveryFailed проверяет ошибку доставки нотификации
func IsDeliveryFailed(err error) bool { return HasCode(err, CodeDeliveryFailed) }

// IsNotFound проверяет промах запроса по read-модели
func IsNotFound(err error) bool { return HasCode(err, CodeNotFound) }
