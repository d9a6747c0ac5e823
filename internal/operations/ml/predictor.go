// Package ml serves direction predictions from trained model artifacts.
package ml

import (
	"context"
	"errors"
)

var ErrModelNotFound = errors.New("model not found")

// Predictor returns 1 for an expected rise and 0 for a fall.
type Predictor interface {
	Predict(ctx context.Context, userID, modelID uint, features []float64) (int, error)
}

// Decide maps a model score to a direction.
func Decide(score float32) int {
	if score >= 0.5 {
		return 1
	}
	return 0
}
