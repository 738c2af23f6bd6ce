// Package model holds the fitted state and the serializable parameter
// snapshot of a kernel logit model.
package model

import (
	"sync"

	"github.com/YuminosukeSato/gklr/pkg/errors"
)

// StateManager tracks whether a model has been fitted, in a thread-safe manner.
type StateManager struct {
	Fitted bool // Public for gob encoding
	mu     sync.RWMutex

	NSamples      int
	NAlternatives int
	NParams       int
}

// NewStateManager creates a new StateManager instance.
func NewStateManager() *StateManager {
	return &StateManager{}
}

// IsFitted returns whether the model has been fitted.
func (s *StateManager) IsFitted() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.Fitted
}

// SetFitted marks the model as fitted with the given dimensions.
func (s *StateManager) SetFitted(nSamples, nAlternatives, nParams int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Fitted = true
	s.NSamples = nSamples
	s.NAlternatives = nAlternatives
	s.NParams = nParams
}

// Reset clears the fitted state.
func (s *StateManager) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Fitted = false
	s.NSamples = 0
	s.NAlternatives = 0
	s.NParams = 0
}

// GetDimensions returns the dimensions recorded by SetFitted.
func (s *StateManager) GetDimensions() (nSamples, nAlternatives, nParams int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.NSamples, s.NAlternatives, s.NParams
}

// RequireFitted returns a PreconditionError naming op if the model has not
// been fitted.
func (s *StateManager) RequireFitted(op string) error {
	if !s.IsFitted() {
		return errors.NewPreconditionError(op, "Fit")
	}
	return nil
}
