package utils

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"strings"
)

// --- Sentinel Errors for Categorization ---
var (
	ErrBadStatus        = errors.New("bad status")                      // Non-200 response, wraps status text
	ErrImageTooLarge    = errors.New("image exceeds max size")          // Body larger than max_image_size_bytes
	ErrIncorrectFile    = errors.New("incorrect file")                  // Manual target could not be classified
	ErrTargetNotFound   = errors.New("target source not exists")        // Input path missing
	ErrUnknownTarget    = errors.New("unknown target")                  // Neither an html file nor a directory
	ErrNoSources        = errors.New("no source types enabled")         // Auto mode with every include flag off
	ErrParsing          = errors.New("parsing error")                   // Wraps HTML/date parsing failures
	ErrFilesystem       = errors.New("filesystem error")                // Wraps os errors
	ErrSemaphoreTimeout = errors.New("timeout acquiring semaphore")
	ErrRequestCreation  = errors.New("failed to create HTTP request")
	ErrResponseBodyRead = errors.New("failed to read response body")
	ErrConfigValidation = errors.New("configuration validation error")
)

// StatusError reports a response whose status was not 200 OK
type StatusError struct {
	StatusCode int
	Status     string // e.g. "404 Not Found"
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: %s", ErrBadStatus, e.Status)
}

// Unwrap lets errors.Is(err, ErrBadStatus) match
func (e *StatusError) Unwrap() error { return ErrBadStatus }

// WrapErrorf wraps err with a formatted message, returning nil if err is nil
func WrapErrorf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}

// CategorizeError maps an error to a predefined category string for logging and the summary breakdown.
func CategorizeError(err error) string {
	if err == nil {
		return "None"
	}

	switch {
	case errors.Is(err, ErrBadStatus):
		var statusErr *StatusError
		if !errors.As(err, &statusErr) {
			return "HTTP_OtherStatus"
		}
		switch code := statusErr.StatusCode; {
		case code == 401, code == 403, code == 404, code == 410, code == 429:
			return fmt.Sprintf("HTTP_%d", code)
		case code >= 500:
			return "HTTP_5xx"
		case code >= 400:
			return "HTTP_4xx"
		}
		return "HTTP_OtherStatus"
	case errors.Is(err, ErrImageTooLarge):
		return "Policy_MaxSize"
	case errors.Is(err, ErrIncorrectFile):
		return "Input_IncorrectFile"
	case errors.Is(err, ErrTargetNotFound):
		return "Input_TargetNotFound"
	case errors.Is(err, ErrUnknownTarget):
		return "Input_UnknownTarget"
	case errors.Is(err, ErrNoSources):
		return "Config_NoSources"
	case errors.Is(err, ErrParsing):
		errMsg := err.Error()
		if strings.Contains(errMsg, "date") {
			return "Content_ParsingDate"
		}
		if strings.Contains(errMsg, "HTML") {
			return "Content_ParsingHTML"
		}
		return "Content_ParsingOther"
	case errors.Is(err, ErrFilesystem):
		if errors.Is(err, os.ErrPermission) {
			return "Filesystem_Permission"
		}
		if errors.Is(err, os.ErrNotExist) {
			return "Filesystem_NotExist"
		}
		if errors.Is(err, os.ErrExist) {
			return "Filesystem_Exist"
		}
		return "Filesystem_Other"
	case errors.Is(err, ErrSemaphoreTimeout):
		return "Resource_SemaphoreTimeout"
	case errors.Is(err, ErrRequestCreation):
		return "Internal_RequestCreation"
	case errors.Is(err, ErrResponseBodyRead):
		return "Network_BodyRead"
	case errors.Is(err, ErrConfigValidation):
		return "Config_Validation"
	}

	// --- Fallback checks for common underlying error types/strings ---
	if errors.Is(err, context.Canceled) {
		return "System_ContextCanceled"
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return "System_ContextDeadlineExceeded"
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "Network_Timeout"
	}

	lowerErrMsg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(lowerErrMsg, "timeout"):
		return "Network_TimeoutGeneric"
	case strings.Contains(lowerErrMsg, "connection refused"):
		return "Network_ConnectionRefused"
	case strings.Contains(lowerErrMsg, "no such host"):
		return "Network_DNSLookup"
	case strings.Contains(lowerErrMsg, "tls") || strings.Contains(lowerErrMsg, "certificate"):
		return "Network_TLS"
	case strings.Contains(lowerErrMsg, "reset by peer"):
		return "Network_ConnectionReset"
	case strings.Contains(lowerErrMsg, "broken pipe"):
		return "Network_BrokenPipe"
	}

	return "Unknown"
}
