package model

import (
	"context"
	"errors"
)

// Error taxonomy of the acquisition pipeline
var (
	ErrInvalidInput       = errors.New("invalid input")
	ErrResolutionFailed   = errors.New("resolution failed")
	ErrDownloadFailed     = errors.New("download failed")
	ErrPlacementFailed    = errors.New("placement failed")
	ErrStorageUnavailable = errors.New("storage unavailable")
)

// Reason is the machine readable failure classification of an outcome
type Reason string

const (
	ReasonInvalidInput       Reason = "invalid_input"
	ReasonResolutionFailed   Reason = "resolution_failed"
	ReasonDownloadFailed     Reason = "download_failed"
	ReasonPlacementFailed    Reason = "placement_failed"
	ReasonStorageUnavailable Reason = "storage_unavailable"
	ReasonCanceled           Reason = "canceled"
	ReasonInternal           Reason = "internal"
)

// Failure is the classification of an error for the front-end
type Failure struct {
	Reason    Reason
	Retryable bool
}

// FailureFor maps an error onto the taxonomy. Unknown errors are internal and retryable.
func FailureFor(err error) Failure {
	switch {
	case err == nil:
		return Failure{}
	case errors.Is(err, ErrInvalidInput):
		return Failure{Reason: ReasonInvalidInput}
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return Failure{Reason: ReasonCanceled, Retryable: true}
	case errors.Is(err, ErrResolutionFailed):
		return Failure{Reason: ReasonResolutionFailed, Retryable: true}
	case errors.Is(err, ErrDownloadFailed):
		return Failure{Reason: ReasonDownloadFailed, Retryable: true}
	case errors.Is(err, ErrPlacementFailed):
		return Failure{Reason: ReasonPlacementFailed, Retryable: true}
	case errors.Is(err, ErrStorageUnavailable):
		return Failure{Reason: ReasonStorageUnavailable, Retryable: true}
	default:
		return Failure{Reason: ReasonInternal, Retryable: true}
	}
}
