package core

import (
	"errors"
	"fmt"
)

// ErrDiffUnavailable means every diff acquisition strategy produced empty or
// erroring output. Fatal for the run: no partial review is posted.
var ErrDiffUnavailable = errors.New("diff unavailable: all acquisition strategies failed")

// ErrInsufficientCredits is returned by credit deduction when the user's
// balance does not cover the charge. Never fatal to a review.
var ErrInsufficientCredits = errors.New("insufficient credits")

// ProvisioningError wraps a sandbox provisioning failure with the upstream
// provider's message attached.
type ProvisioningError struct {
	Op  string
	Err error
}

func (e *ProvisioningError) Error() string {
	return fmt.Sprintf("sandbox provisioning failed (%s): %v", e.Op, e.Err)
}

func (e *ProvisioningError) Unwrap() error {
	return e.Err
}
