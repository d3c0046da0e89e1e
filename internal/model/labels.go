package model

import (
	"errors"
	"fmt"
)

// DefaultClasses is the output order of the potato leaf classifier.
var DefaultClasses = []string{"Early Blight", "Late Blight", "Healthy"}

var ErrEmptyPrediction = errors.New("empty prediction vector")

// Labels maps positions of a prediction vector to class names.
type Labels []string

func (l Labels) Label(index int) (string, error) {
	if index < 0 || index >= len(l) {
		return "", fmt.Errorf("class index %d out of range [0, %d)", index, len(l))
	}
	return l[index], nil
}

// Argmax returns the position and value of the largest score. Ties go to
// the lowest index.
func Argmax(scores []float32) (int, float32, error) {
	if len(scores) == 0 {
		return 0, 0, ErrEmptyPrediction
	}

	maxIdx := 0
	maxVal := scores[0]
	for i, val := range scores {
		if val > maxVal {
			maxVal = val
			maxIdx = i
		}
	}
	return maxIdx, maxVal, nil
}

// Map picks the winning class of one prediction vector. The confidence is
// the raw score, not re-normalized.
func (l Labels) Map(scores []float32) (*PredictionResponse, error) {
	if len(scores) != len(l) {
		return nil, fmt.Errorf("model returned %d scores for %d classes", len(scores), len(l))
	}

	idx, val, err := Argmax(scores)
	if err != nil {
		return nil, err
	}

	class, err := l.Label(idx)
	if err != nil {
		return nil, err
	}

	return &PredictionResponse{
		Class:      class,
		Confidence: val,
	}, nil
}
