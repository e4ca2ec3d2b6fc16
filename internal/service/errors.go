package service

import (
	"errors"
	"fmt"
)

// Stable machine-readable error codes returned to API clients.
const (
	CodeEmptyCart                 = "EmptyCart"
	CodeCartExpired               = "CartExpired"
	CodeIncompleteDeliveryAddress = "IncompleteDeliveryAddress"
	CodeItemsUnavailable          = "ItemsUnavailable"
	CodeMealPriceMismatch         = "MealPriceMismatch"
	CodeChefMismatch              = "ChefMismatch"
	CodeItemNotFound              = "ItemNotFound"
	CodeInsufficientAvailability  = "InsufficientAvailability"
	CodeInvalidStatusTransition   = "InvalidStatusTransition"
	CodeOrderNotCancellable       = "OrderNotCancellable"
	CodeOrderNotEligible          = "OrderNotEligible"
	CodeAmountMismatch            = "AmountMismatch"
	CodePaymentIncomplete         = "PaymentIncomplete"
	CodeInvalidPaymentStatus      = "InvalidPaymentStatus"
	CodeInvalidRefundAmount       = "InvalidRefundAmount"
	CodePaymentAlreadySuccessful  = "PaymentAlreadySuccessful"
	CodePaymentGatewayError       = "PaymentGatewayError"
	CodePaymentGatewayTimeout     = "PaymentGatewayTimeout"
	CodeOrderNotFound             = "OrderNotFound"
	CodeValidation                = "ValidationError"
	CodeInternal                  = "InternalError"
)

// DomainError is a business-rule failure with a stable code. Anything that
// is not a *DomainError is treated by the HTTP layer as an internal error
// and its text is never surfaced to clients.
type DomainError struct {
	Code    string
	Message string
	Details any
}

func (e *DomainError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func Errf(code, format string, args ...any) *DomainError {
	return &DomainError{Code: code, Message: fmt.Sprintf(format, args...)}
}

func ErrWithDetails(code, message string, details any) *DomainError {
	return &DomainError{Code: code, Message: message, Details: details}
}

// IsCode reports whether err is a DomainError with the given code.
func IsCode(err error, code string) bool {
	var de *DomainError
	return errors.As(err, &de) && de.Code == code
}
