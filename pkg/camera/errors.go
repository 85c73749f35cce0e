package camera

import (
	"errors"
	"strings"
)

// Session error taxonomy. Callers match with errors.Is.
var (
	// ErrMultipleInstances indicates another session already holds the
	// process-wide capture hardware.
	ErrMultipleInstances = errors.New("another capture session is already running")
	// ErrUnsupportedHardware indicates the dual-stream capability is unavailable.
	ErrUnsupportedHardware = errors.New("dual-stream capture is not supported on this hardware")
	// ErrPermissionDenied indicates the permission collaborator denied camera access.
	ErrPermissionDenied = errors.New("camera permission denied")
	// ErrConfigurationFailed wraps failures while configuring a hardware feed.
	ErrConfigurationFailed = errors.New("capture session configuration failed")
	// ErrInterrupted indicates the session was torn down mid-start.
	ErrInterrupted = errors.New("capture session interrupted")
)

type configError struct {
	message string
}

func (e *configError) Error() string {
	return e.message
}

func (e *configError) Is(target error) bool {
	return target == ErrConfigurationFailed
}

func newConfigError(message string) error {
	trimmed := strings.TrimSpace(message)
	if trimmed == "" {
		trimmed = ErrConfigurationFailed.Error()
	}
	return &configError{message: trimmed}
}
