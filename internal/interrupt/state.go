// Package interrupt implements the suspend/resume state machine an agent
// invocation uses when a hook requests human or external input mid-turn.
package interrupt

import (
	"encoding/json"
	"fmt"

	"github.com/agentcore/runtime/pkg/models"
)

// TypeError is returned by Resume when the input slice does not have the
// shape {interruptId, response}[] the state machine requires.
type TypeError struct {
	Message string
}

func (e *TypeError) Error() string { return e.Message }

// UnknownInterruptIDError is returned by Resume when an input element
// references an interrupt ID this state does not know about.
type UnknownInterruptIDError struct {
	ID string
}

func (e *UnknownInterruptIDError) Error() string {
	return fmt.Sprintf("interrupt: unknown interrupt id %q", e.ID)
}

// DuplicateInterruptNameError is raised when two interrupts are activated in
// the same invocation under the same name, since a resume payload would have
// no way to disambiguate which one it answers.
type DuplicateInterruptNameError struct {
	Name string
}

func (e *DuplicateInterruptNameError) Error() string {
	return fmt.Sprintf("interrupt: duplicate interrupt name %q", e.Name)
}

// State tracks the set of outstanding interrupts for one suspended
// invocation, plus any free-form context a conversation manager or hook
// wants to preserve across the suspend boundary (e.g. the retry flag).
type State struct {
	interrupts map[string]*models.Interrupt
	order      []string
	context    map[string]any
	activated  bool
}

// New returns an empty, inactive interrupt state.
func New() *State {
	return &State{
		interrupts: make(map[string]*models.Interrupt),
		context:    make(map[string]any),
	}
}

// Activate marks this state as holding unresolved interrupts. Called when
// the loop is about to suspend.
func (s *State) Activate() { s.activated = true }

// Deactivate clears the activated flag once every interrupt has a response.
// It does not clear the interrupts themselves; call Reset for that.
func (s *State) Deactivate() { s.activated = false }

// Activated reports whether this state currently represents a suspended
// invocation.
func (s *State) Activated() bool { return s.activated }

// Add registers a new outstanding interrupt. Returns DuplicateInterruptNameError
// if another still-unresolved interrupt already holds this name.
func (s *State) Add(id, name, reason string) error {
	for _, existing := range s.interrupts {
		if existing.Name == name && existing.Response == nil {
			return &DuplicateInterruptNameError{Name: name}
		}
	}
	s.interrupts[id] = &models.Interrupt{ID: id, Name: name, Reason: reason}
	s.order = append(s.order, id)
	return nil
}

// Get returns the interrupt registered under id, if any.
func (s *State) Get(id string) (*models.Interrupt, bool) {
	ix, ok := s.interrupts[id]
	return ix, ok
}

// Pending returns the still-unanswered interrupts, in the order they were
// added.
func (s *State) Pending() []*models.Interrupt {
	var out []*models.Interrupt
	for _, id := range s.order {
		if ix := s.interrupts[id]; ix != nil && ix.Response == nil {
			out = append(out, ix)
		}
	}
	return out
}

// Context returns the mutable side-channel map carried across suspension,
// used for example to remember that a retry was requested before the
// interrupt fired.
func (s *State) Context() map[string]any { return s.context }

// Resume applies a slice of interrupt responses. Every element must be a
// map with string keys "interrupt_id" and "response"; anything else is a
// TypeError. Every interrupt_id must name a known interrupt; an unknown id
// is an UnknownInterruptIDError and aborts before any response is applied.
func (s *State) Resume(input []models.InterruptResponse) error {
	if len(input) == 0 {
		return &TypeError{Message: "interrupt: resume input must be a non-empty slice of {interrupt_id, response}"}
	}
	for _, item := range input {
		if item.InterruptID == "" {
			return &TypeError{Message: "interrupt: resume input element missing interrupt_id"}
		}
		if _, ok := s.interrupts[item.InterruptID]; !ok {
			return &UnknownInterruptIDError{ID: item.InterruptID}
		}
	}
	for _, item := range input {
		s.interrupts[item.InterruptID].Response = item.Response
	}
	s.context["responses"] = input
	if len(s.Pending()) == 0 {
		s.Deactivate()
	}
	return nil
}

// dict is the JSON-serializable mirror of State used by ToDict/FromDict so
// a suspended invocation can be persisted and restored byte-identically.
type dict struct {
	Interrupts map[string]*models.Interrupt `json:"interrupts"`
	Order      []string                     `json:"order"`
	Context    map[string]any                `json:"context"`
	Activated  bool                          `json:"activated"`
}

// ToDict returns a plain-data snapshot suitable for JSON serialization.
func (s *State) ToDict() map[string]any {
	return map[string]any{
		"interrupts": s.interrupts,
		"order":      s.order,
		"context":    s.context,
		"activated":  s.activated,
	}
}

// FromDict rebuilds a State from a snapshot produced by ToDict, by routing
// it through the same JSON shape so the roundtrip does not depend on map
// iteration order or on the caller's representation of interim values.
func FromDict(d map[string]any) (*State, error) {
	raw, err := marshalThenUnmarshal(d)
	if err != nil {
		return nil, err
	}
	s := New()
	if raw.Interrupts != nil {
		s.interrupts = raw.Interrupts
	}
	s.order = raw.Order
	if raw.Context != nil {
		s.context = raw.Context
	}
	s.activated = raw.Activated
	return s, nil
}

func marshalThenUnmarshal(d map[string]any) (*dict, error) {
	buf, err := json.Marshal(d)
	if err != nil {
		return nil, fmt.Errorf("interrupt: encoding snapshot: %w", err)
	}
	var raw dict
	if err := json.Unmarshal(buf, &raw); err != nil {
		return nil, fmt.Errorf("interrupt: decoding snapshot: %w", err)
	}
	return &raw, nil
}
