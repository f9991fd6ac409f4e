package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

type ErrorCode string

const (
	ErrCodeNotFound           ErrorCode = "NOT_FOUND"
	ErrCodeUnauthorized       ErrorCode = "UNAUTHORIZED"
	ErrCodeForbidden          ErrorCode = "FORBIDDEN"
	ErrCodeBadRequest         ErrorCode = "BAD_REQUEST"
	ErrCodeConflict           ErrorCode = "CONFLICT"
	ErrCodeInternal           ErrorCode = "INTERNAL_ERROR"
	ErrCodeValidation         ErrorCode = "VALIDATION_ERROR"
	ErrCodeDatabaseError      ErrorCode = "DATABASE_ERROR"
	ErrCodeInvalidState       ErrorCode = "INVALID_STATE"
	ErrCodeAlreadyExists      ErrorCode = "ALREADY_EXISTS"
	ErrCodePayeeNotReady      ErrorCode = "PAYEE_NOT_READY"
	ErrCodeNoEscrowFound      ErrorCode = "NO_ESCROW_FOUND"
	ErrCodeGatewayUnavailable ErrorCode = "GATEWAY_UNAVAILABLE"
	ErrCodeInvalidSignature   ErrorCode = "INVALID_SIGNATURE"
	ErrCodePaymentDeclined    ErrorCode = "PAYMENT_DECLINED"
)

type AppError struct {
	Code       ErrorCode
	Message    string
	HTTPStatus int
	Cause      error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

func New(code ErrorCode, message string) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: codeToHTTPStatus(code),
	}
}

func Wrap(err error, code ErrorCode, message string) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: codeToHTTPStatus(code),
		Cause:      err,
	}
}

func codeToHTTPStatus(code ErrorCode) int {
	switch code {
	case ErrCodeNotFound:
		return http.StatusNotFound
	case ErrCodeUnauthorized:
		return http.StatusUnauthorized
	case ErrCodeForbidden:
		return http.StatusForbidden
	case ErrCodeBadRequest, ErrCodeValidation, ErrCodeInvalidSignature:
		return http.StatusBadRequest
	case ErrCodeConflict, ErrCodeInvalidState, ErrCodeAlreadyExists, ErrCodeNoEscrowFound:
		return http.StatusConflict
	case ErrCodePayeeNotReady:
		return http.StatusUnprocessableEntity
	case ErrCodePaymentDeclined:
		return http.StatusPaymentRequired
	case ErrCodeGatewayUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// CodeOf возвращает код ошибки или INTERNAL_ERROR для неизвестных ошибок.
func CodeOf(err error) ErrorCode {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ErrCodeInternal
}

func Is(err error, code ErrorCode) bool {
	var appErr *AppError
	return errors.As(err, &appErr) && appErr.Code == code
}

func IsNotFound(err error) bool {
	return Is(err, ErrCodeNotFound)
}

func IsForbidden(err error) bool {
	return Is(err, ErrCodeForbidden)
}

func IsValidation(err error) bool {
	return Is(err, ErrCodeValidation)
}

func IsInvalidState(err error) bool {
	return Is(err, ErrCodeInvalidState)
}

// IsRetryable сообщает, можно ли безопасно повторить операцию.
func IsRetryable(err error) bool {
	return Is(err, ErrCodeGatewayUnavailable)
}

var (
	ErrProjectNotFound     = New(ErrCodeNotFound, "проект не найден")
	ErrApplicationNotFound = New(ErrCodeNotFound, "отклик не найден")
	ErrContractNotFound    = New(ErrCodeNotFound, "контракт не найден")
	ErrPaymentNotFound     = New(ErrCodeNotFound, "платёж не найден")
	ErrUnauthorized        = New(ErrCodeUnauthorized, "требуется авторизация")
	ErrForbidden           = New(ErrCodeForbidden, "недостаточно прав")
	ErrApplicationExists   = New(ErrCodeAlreadyExists, "вы уже откликнулись на этот проект")
	ErrPayeeNotReady       = New(ErrCodePayeeNotReady, "у исполнителя не подключён счёт для выплат")
	ErrNoEscrowFound       = New(ErrCodeNoEscrowFound, "для контракта нет средств в escrow")
	ErrGatewayUnavailable  = New(ErrCodeGatewayUnavailable, "платёжный провайдер временно недоступен, повторите позже")
	ErrInvalidSignature    = New(ErrCodeInvalidSignature, "неверная подпись вебхука")
)
