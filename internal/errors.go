package internal

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

type ErrorType string

const (
	ErrorTypeValidation   ErrorType = "VALIDATION_ERROR"
	ErrorTypeNotFound     ErrorType = "NOT_FOUND"
	ErrorTypeUnauthorized ErrorType = "UNAUTHORIZED"
	ErrorTypeForbidden    ErrorType = "FORBIDDEN"
	ErrorTypeConflict     ErrorType = "CONFLICT"
	ErrorTypeInternal     ErrorType = "INTERNAL_ERROR"
)

type ErrorCode string

const (
	ErrCodeValidationFailed ErrorCode = "VALIDATION_FAILED"
	ErrCodeInvalidAmount    ErrorCode = "INVALID_AMOUNT"
	ErrCodeInvalidCurrency  ErrorCode = "INVALID_CURRENCY"
	ErrCodeInvalidType      ErrorCode = "INVALID_EXPENSE_TYPE"
	ErrCodeInvalidDate      ErrorCode = "INVALID_DATE"

	ErrCodeExpenseNotFound  ErrorCode = "EXPENSE_NOT_FOUND"
	ErrCodeRuleNotFound     ErrorCode = "RULE_NOT_FOUND"
	ErrCodeApproverNotFound ErrorCode = "APPROVER_NOT_FOUND"
	ErrCodeUserNotFound     ErrorCode = "USER_NOT_FOUND"
	ErrCodeOrgNotFound      ErrorCode = "ORGANIZATION_NOT_FOUND"
	ErrCodeNotifNotFound    ErrorCode = "NOTIFICATION_NOT_FOUND"

	ErrCodeUnauthorizedAccess ErrorCode = "UNAUTHORIZED_ACCESS"
	ErrCodeNotOnApprovalRule  ErrorCode = "NOT_ON_APPROVAL_RULE"
	ErrCodeManagerRequired    ErrorCode = "MANAGER_ROLE_REQUIRED"

	ErrCodeAlreadyApproved    ErrorCode = "ALREADY_APPROVED"
	ErrCodeSequentialOrder    ErrorCode = "SEQUENTIAL_ORDER_VIOLATION"
	ErrCodeExpenseResolved    ErrorCode = "EXPENSE_ALREADY_RESOLVED"
	ErrCodeVersionConflict    ErrorCode = "CONCURRENT_UPDATE_CONFLICT"
	ErrCodeDuplicateRule      ErrorCode = "DUPLICATE_APPROVAL_RULE"
	ErrCodeCommentRequired    ErrorCode = "COMMENT_REQUIRED"
	ErrCodeRuleHasNoApprovers ErrorCode = "RULE_HAS_NO_APPROVERS"

	ErrCodeInvalidCredentials ErrorCode = "INVALID_CREDENTIALS"
	ErrCodeUserInactive       ErrorCode = "USER_INACTIVE"
	ErrCodeInvalidToken       ErrorCode = "INVALID_TOKEN"
	ErrCodeTokenExpired       ErrorCode = "TOKEN_EXPIRED"
	ErrCodeDuplicateEmail     ErrorCode = "DUPLICATE_EMAIL"
)

type AppError struct {
	Type       ErrorType   `json:"type"`
	Code       ErrorCode   `json:"code"`
	Message    string      `json:"message"`
	Details    interface{} `json:"details,omitempty"`
	StatusCode int         `json:"-"`
	Cause      error       `json:"-"`
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

func (e *AppError) WithCause(cause error) *AppError {
	clone := *e
	clone.Cause = cause
	return &clone
}

func (e *AppError) WithDetails(details interface{}) *AppError {
	clone := *e
	clone.Details = details
	return &clone
}

type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

type ValidationErrors struct {
	Errors []ValidationError `json:"errors"`
}

func (v ValidationErrors) Messages() string {
	msgs := make([]string, len(v.Errors))
	for i, e := range v.Errors {
		msgs[i] = e.Message
	}
	return strings.Join(msgs, "; ")
}

func NewValidationError(message string, code ErrorCode) *AppError {
	return &AppError{
		Type:       ErrorTypeValidation,
		Code:       code,
		Message:    message,
		StatusCode: http.StatusBadRequest,
	}
}

func NewValidationFieldError(field, message string, code ErrorCode) *AppError {
	return &AppError{
		Type:       ErrorTypeValidation,
		Code:       ErrCodeValidationFailed,
		Message:    "Validation failed",
		StatusCode: http.StatusBadRequest,
		Details: ValidationErrors{
			Errors: []ValidationError{
				{Field: field, Message: message, Code: string(code)},
			},
		},
	}
}

func NewNotFoundError(message string, code ErrorCode) *AppError {
	return &AppError{
		Type:       ErrorTypeNotFound,
		Code:       code,
		Message:    message,
		StatusCode: http.StatusNotFound,
	}
}

func NewUnauthorizedError(message string, code ErrorCode) *AppError {
	return &AppError{
		Type:       ErrorTypeUnauthorized,
		Code:       code,
		Message:    message,
		StatusCode: http.StatusUnauthorized,
	}
}

func NewForbiddenError(message string, code ErrorCode) *AppError {
	return &AppError{
		Type:       ErrorTypeForbidden,
		Code:       code,
		Message:    message,
		StatusCode: http.StatusForbidden,
	}
}

func NewConflictError(message string, code ErrorCode) *AppError {
	return &AppError{
		Type:       ErrorTypeConflict,
		Code:       code,
		Message:    message,
		StatusCode: http.StatusConflict,
	}
}

func NewInternalError(message string, cause error) *AppError {
	return &AppError{
		Type:       ErrorTypeInternal,
		Code:       "INTERNAL_ERROR",
		Message:    message,
		StatusCode: http.StatusInternalServerError,
		Cause:      cause,
	}
}

var (
	ErrExpenseNotFound  = NewNotFoundError("expense not found", ErrCodeExpenseNotFound)
	ErrRuleNotFound     = NewNotFoundError("no approval rule applies to this expense", ErrCodeRuleNotFound)
	ErrApproverNotFound = NewNotFoundError("approver not found", ErrCodeApproverNotFound)
	ErrUserNotFound     = NewNotFoundError("user not found", ErrCodeUserNotFound)
	ErrOrgNotFound      = NewNotFoundError("organization not found", ErrCodeOrgNotFound)

	ErrNotificationNotFound = NewNotFoundError("notification not found", ErrCodeNotifNotFound)

	ErrUnauthorizedAccess = NewForbiddenError("unauthorized access to expense", ErrCodeUnauthorizedAccess)
	ErrManagerRequired    = NewForbiddenError("manager or admin role required", ErrCodeManagerRequired)
	ErrNotOnApprovalRule  = NewForbiddenError("not authorized to approve this expense", ErrCodeNotOnApprovalRule)

	ErrAlreadyApproved = NewValidationError("approver has already approved this expense", ErrCodeAlreadyApproved)
	ErrCommentRequired = NewValidationError("a comment is required when rejecting an expense", ErrCodeCommentRequired)
	ErrExpenseResolved = NewConflictError("expense has already been resolved", ErrCodeExpenseResolved)
	ErrVersionConflict = NewConflictError("expense was modified concurrently, retry the action", ErrCodeVersionConflict)
	ErrDuplicateRule   = NewConflictError("an approval rule already exists for this user", ErrCodeDuplicateRule)

	ErrInvalidCredentials = NewUnauthorizedError("invalid email or password", ErrCodeInvalidCredentials)
	ErrUserInactive       = NewForbiddenError("user account is inactive", ErrCodeUserInactive)
	ErrInvalidToken       = NewUnauthorizedError("invalid token", ErrCodeInvalidToken)
	ErrTokenExpired       = NewUnauthorizedError("token has expired", ErrCodeTokenExpired)
)

// NewSequentialOrderError reports an out-of-order approval attempt, naming the
// predecessor whose approval is still missing so the client can render
// "waiting for X".
func NewSequentialOrderError(waitingForID int64, waitingForName string) *AppError {
	return &AppError{
		Type:       ErrorTypeValidation,
		Code:       ErrCodeSequentialOrder,
		Message:    fmt.Sprintf("cannot approve yet: waiting for %s to approve first", waitingForName),
		StatusCode: http.StatusBadRequest,
		Details: map[string]interface{}{
			"waiting_for_id":   waitingForID,
			"waiting_for_name": waitingForName,
		},
	}
}

func IsAppError(err error) (*AppError, bool) {
	if appErr, ok := err.(*AppError); ok {
		return appErr, true
	}
	return nil, false
}

type Response struct {
	Error *AppError `json:"error"`
}

func (e *AppError) ToHTTPResponse() (int, interface{}) {
	return e.StatusCode, Response{Error: e}
}

func (e *AppError) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Type    ErrorType   `json:"type"`
		Code    ErrorCode   `json:"code"`
		Message string      `json:"message"`
		Details interface{} `json:"details,omitempty"`
	}{
		Type:    e.Type,
		Code:    e.Code,
		Message: e.Message,
		Details: e.Details,
	})
}
