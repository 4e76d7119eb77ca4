package client

import (
	"errors"
	"fmt"
	"strings"
)

const (
	// CodeNetwork is returned for transport failures and timeouts.
	CodeNetwork = "NETWORK"
	// CodeAuthExpired is returned for 401-equivalent responses.
	CodeAuthExpired = "AUTH_EXPIRED"
	// CodeValidation is returned for 4xx responses carrying field detail.
	CodeValidation = "VALIDATION"
	// CodeNotFound is returned for 404 on a resource expected to exist.
	CodeNotFound = "NOT_FOUND"
	// CodeServer is returned for 5xx responses.
	CodeServer = "SERVER"
	// CodeDecode is returned when a success response cannot be decoded.
	CodeDecode = "DECODE"
)

// APIError is a structured remote-call error that flows from the client
// through the stores to the caller without losing its machine-readable
// class or field-level detail.
type APIError struct {
	Code      string            `json:"code"`
	Message   string            `json:"message"`
	Status    int               `json:"status,omitempty"`
	Fields    map[string]string `json:"fields,omitempty"`
	Retryable bool              `json:"retryable"`
	Cause     error             `json:"-"`
}

func (e *APIError) Error() string {
	if e == nil {
		return ""
	}
	code := strings.TrimSpace(e.Code)
	msg := strings.TrimSpace(e.Message)
	switch {
	case code == "" && msg == "":
		return CodeServer
	case code == "":
		return msg
	case msg == "":
		return code
	default:
		return fmt.Sprintf("%s: %s", code, msg)
	}
}

// Unwrap exposes the wrapped cause for errors.Is/errors.As.
func (e *APIError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

func newAPIError(code, message string, retryable bool, cause error) *APIError {
	cleanMsg := strings.TrimSpace(message)
	if cleanMsg == "" && cause != nil {
		cleanMsg = cause.Error()
	}
	return &APIError{
		Code:      code,
		Message:   cleanMsg,
		Retryable: retryable,
		Cause:     cause,
	}
}

// errorCode extracts the APIError code from err, or "".
func errorCode(err error) string {
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr != nil {
		return apiErr.Code
	}
	return ""
}

// AsAPIError extracts the APIError from err's chain, for callers that
// need the field-level detail rather than just the class.
func AsAPIError(err error, target **APIError) bool {
	return errors.As(err, target)
}

// IsNetwork reports whether err is a transport failure or timeout.
func IsNetwork(err error) bool { return errorCode(err) == CodeNetwork }

// IsAuthExpired reports whether err is a 401-equivalent rejection.
func IsAuthExpired(err error) bool { return errorCode(err) == CodeAuthExpired }

// IsValidation reports whether err carries server-side validation detail.
func IsValidation(err error) bool { return errorCode(err) == CodeValidation }

// IsNotFound reports whether err is a 404 on an expected resource.
func IsNotFound(err error) bool { return errorCode(err) == CodeNotFound }

// IsServer reports whether err is a 5xx server failure.
func IsServer(err error) bool { return errorCode(err) == CodeServer }

// IsRetryable reports whether retrying the call may succeed.
func IsRetryable(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr != nil {
		return apiErr.Retryable
	}
	return false
}
