package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Domain errors
var (
	ErrInvalidOrExpiredCode = errors.New("invalid or expired code")
	ErrAccountNotEligible   = errors.New("account not found or already verified")
	ErrCooldownActive       = errors.New("please wait before requesting another code")
	ErrWeakPassword         = errors.New("password must be at least 6 characters long")
	ErrDuplicateEmail       = errors.New("email already registered")
	ErrInvalidPhoneFormat   = errors.New("invalid phone number format")
	ErrToolUnavailable      = errors.New("humanize tool unavailable")
	ErrHumanizationFailed   = errors.New("humanization failed")
	ErrDeliveryFailed       = errors.New("code delivery failed")
	ErrGenerationFailed     = errors.New("text generation failed")
	ErrStore                = errors.New("store error")

	ErrNotFound           = errors.New("resource not found")
	ErrBadRequest         = errors.New("bad request")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrInvalidCredentials = errors.New("invalid credentials")
)

// Error codes returned to API clients.
const (
	CodeInvalidOrExpiredCode = "INVALID_OR_EXPIRED_CODE"
	CodeAccountNotEligible   = "ACCOUNT_NOT_ELIGIBLE"
	CodeCooldownActive       = "COOLDOWN_ACTIVE"
	CodeWeakPassword         = "WEAK_PASSWORD"
	CodeDuplicateEmail       = "DUPLICATE_EMAIL"
	CodeInvalidPhoneFormat   = "INVALID_PHONE_FORMAT"
	CodeToolUnavailable      = "TOOL_UNAVAILABLE"
	CodeHumanizationFailed   = "HUMANIZATION_FAILED"
	CodeDeliveryFailed       = "DELIVERY_FAILED"
	CodeGenerationFailed     = "GENERATION_FAILED"
	CodeStoreError           = "STORE_ERROR"
	CodeNotFound             = "NOT_FOUND"
	CodeBadRequest           = "BAD_REQUEST"
	CodeUnauthorized         = "UNAUTHORIZED"
	CodeInvalidCredentials   = "INVALID_CREDENTIALS"
	CodeInternal             = "INTERNAL_ERROR"
)

// AppError represents application error with HTTP status
type AppError struct {
	Status  int    `json:"-"`
	Code    string `json:"code"`
	Message string `json:"message"`
	Err     error  `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return e.Err.Error()
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// NewAppError creates a new app error
func NewAppError(status int, code, message string, err error) *AppError {
	return &AppError{
		Status:  status,
		Code:    code,
		Message: message,
		Err:     err,
	}
}

func NotFound(message string) *AppError {
	return NewAppError(http.StatusNotFound, CodeNotFound, message, ErrNotFound)
}

func BadRequest(message string) *AppError {
	return NewAppError(http.StatusBadRequest, CodeBadRequest, message, ErrBadRequest)
}

func Unauthorized(message string) *AppError {
	return NewAppError(http.StatusUnauthorized, CodeUnauthorized, message, ErrUnauthorized)
}

func InternalError(err error) *AppError {
	return NewAppError(http.StatusInternalServerError, CodeInternal, "internal server error", err)
}

// StoreError wraps a driver error so callers can match ErrStore.
func StoreError(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %v", ErrStore, err)
}

// DeliveryError wraps a notification failure.
func DeliveryError(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %v", ErrDeliveryFailed, err)
}

// HumanizationError carries the pipeline stage that failed.
type HumanizationError struct {
	Stage  string
	Reason string
	// Unavailable marks failures reaching the tool (launch, navigation, input control).
	Unavailable bool
	Err         error
}

func (e *HumanizationError) Error() string {
	msg := fmt.Sprintf("humanize %s: %s", e.Stage, e.Reason)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Is matches ErrToolUnavailable or ErrHumanizationFailed depending on the failure kind.
func (e *HumanizationError) Is(target error) bool {
	if e.Unavailable {
		return target == ErrToolUnavailable
	}
	return target == ErrHumanizationFailed
}

func (e *HumanizationError) Unwrap() error {
	return e.Err
}

type mapping struct {
	target  error
	status  int
	code    string
	message string
}

var mappings = []mapping{
	{ErrInvalidOrExpiredCode, http.StatusBadRequest, CodeInvalidOrExpiredCode, "Invalid or expired code"},
	{ErrAccountNotEligible, http.StatusBadRequest, CodeAccountNotEligible, "User not found or already verified"},
	{ErrCooldownActive, http.StatusTooManyRequests, CodeCooldownActive, "Please wait before requesting another code"},
	{ErrWeakPassword, http.StatusBadRequest, CodeWeakPassword, "Password must be at least 6 characters long"},
	{ErrDuplicateEmail, http.StatusConflict, CodeDuplicateEmail, "Email already registered"},
	{ErrInvalidPhoneFormat, http.StatusBadRequest, CodeInvalidPhoneFormat, "Invalid phone number format"},
	{ErrInvalidCredentials, http.StatusUnauthorized, CodeInvalidCredentials, "Invalid email or password"},
	{ErrUnauthorized, http.StatusUnauthorized, CodeUnauthorized, "Unauthorized"},
	{ErrNotFound, http.StatusNotFound, CodeNotFound, "User not found"},
	{ErrBadRequest, http.StatusBadRequest, CodeBadRequest, "Bad request"},
	{ErrToolUnavailable, http.StatusServiceUnavailable, CodeToolUnavailable, "Humanize tool is unavailable. Please try again later."},
	{ErrHumanizationFailed, http.StatusBadGateway, CodeHumanizationFailed, "Failed to humanize content. Please try again later."},
	{ErrDeliveryFailed, http.StatusBadGateway, CodeDeliveryFailed, "Failed to send code email"},
	{ErrGenerationFailed, http.StatusBadGateway, CodeGenerationFailed, "Failed to generate text"},
	{ErrStore, http.StatusInternalServerError, CodeStoreError, "internal server error"},
}

// FromError maps any error onto an AppError for the HTTP layer.
func FromError(err error) *AppError {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	for _, m := range mappings {
		if errors.Is(err, m.target) {
			return NewAppError(m.status, m.code, m.message, err)
		}
	}
	return InternalError(err)
}
