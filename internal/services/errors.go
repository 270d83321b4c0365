package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrExternalTool   = errors.New("external tool error")
	ErrValidation     = errors.New("validation error")
	ErrInvalidPath    = errors.New("invalid path")
	ErrConfiguration  = errors.New("configuration error")
	ErrNotFound       = errors.New("not found")
	ErrSessionExpired = errors.New("session expired")
	ErrTimeout        = errors.New("timeout")
	ErrTransient      = errors.New("transient failure")
)

// Stable reason strings surfaced to API clients and error events.
const (
	ReasonInvalidInput   = "INVALID_INPUT"
	ReasonInvalidPath    = "INVALID_PATH"
	ReasonNotFound       = "NOT_FOUND"
	ReasonSessionExpired = "SESSION_EXPIRED"
	ReasonTimeout        = "TIMEOUT"
	ReasonUpstream       = "UPSTREAM_ERROR"
	ReasonConfiguration  = "CONFIGURATION"
	ReasonInternal       = "INTERNAL"
)

// Wrap builds an error message that includes stage context while tagging it with
// the provided marker for later classification. The marker should be one of the
// exported sentinel errors above.
func Wrap(marker error, stage, operation, message string, err error) error {
	detail := buildDetail(stage, operation, message)
	if marker == nil {
		marker = ErrTransient
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// ReasonCode maps an error to the machine-readable reason string clients key on.
func ReasonCode(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInvalidPath):
		return ReasonInvalidPath
	case errors.Is(err, ErrValidation):
		return ReasonInvalidInput
	case errors.Is(err, ErrSessionExpired):
		return ReasonSessionExpired
	case errors.Is(err, ErrNotFound):
		return ReasonNotFound
	case errors.Is(err, ErrTimeout):
		return ReasonTimeout
	case errors.Is(err, ErrExternalTool):
		return ReasonUpstream
	case errors.Is(err, ErrConfiguration):
		return ReasonConfiguration
	default:
		return ReasonInternal
	}
}

// IsClientError reports whether err was caused by caller input rather than the service.
func IsClientError(err error) bool {
	return errors.Is(err, ErrValidation) || errors.Is(err, ErrInvalidPath)
}

func buildDetail(stage, operation, message string) string {
	parts := make([]string, 0, 3)
	if stage = strings.TrimSpace(stage); stage != "" {
		parts = append(parts, stage)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
