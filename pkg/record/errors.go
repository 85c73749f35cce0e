package record

import (
	"errors"
	"strings"
)

// Recording error taxonomy. Callers match with errors.Is.
var (
	// ErrRecordingInProgress is returned by Start while a recording is active.
	ErrRecordingInProgress = errors.New("recording already in progress")
	// ErrNoRecordingInProgress is returned by Stop with no active recording.
	ErrNoRecordingInProgress = errors.New("no recording in progress")
	// ErrSinkCreation wraps failures constructing the output sink.
	ErrSinkCreation = errors.New("sink creation failed")
	// ErrSinkConfiguration wraps failures opening or configuring the sink.
	ErrSinkConfiguration = errors.New("sink configuration failed")
	// ErrNotImplemented marks the raw dual-stream recording mode.
	ErrNotImplemented = errors.New("raw dual-stream recording is not implemented")
	// ErrUnknownDimensions indicates the frame source produced no usable geometry.
	ErrUnknownDimensions = errors.New("unknown source dimensions")
)

type sinkError struct {
	kind    error
	message string
}

func (e *sinkError) Error() string {
	return e.message
}

func (e *sinkError) Is(target error) bool {
	return target == e.kind
}

func newSinkCreationError(message string) error {
	return newSinkError(ErrSinkCreation, message)
}

func newSinkConfigurationError(message string) error {
	return newSinkError(ErrSinkConfiguration, message)
}

func newSinkError(kind error, message string) error {
	trimmed := strings.TrimSpace(message)
	if trimmed == "" {
		trimmed = kind.Error()
	}
	return &sinkError{kind: kind, message: trimmed}
}
