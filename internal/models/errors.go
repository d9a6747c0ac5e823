package models

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound         = errors.New("not found")
	ErrInsufficientData = errors.New("insufficient data")
	ErrRiskDenied       = errors.New("risk limit exceeded")
	ErrUpstream         = errors.New("upstream failure")
	ErrInvalidOrder     = errors.New("invalid order")
	ErrInvalidStrategy  = errors.New("invalid strategy")
)

// RiskDeniedError carries the gate's human-readable reason.
type RiskDeniedError struct {
	Reason string
}

func (e *RiskDeniedError) Error() string {
	return fmt.Sprintf("%s: %s", ErrRiskDenied, e.Reason)
}

func (e *RiskDeniedError) Unwrap() error {
	return ErrRiskDenied
}
