package intake

import (
	"fmt"

	"github.com/fieldstamp/fieldstamp/internal/session"
)

// ValidationError reports a rejected answer. The session step is left
// unchanged so the caller re-asks the same question.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

// Result is the outcome of a successful advance: either the next prompt
// or completion of the whole sequence.
type Result struct {
	Done   bool
	Prompt string
}

// Machine advances sessions through the field sequence. It is stateless
// itself; all per-user state lives on the Session, so one Machine serves
// every user concurrently.
type Machine struct {
	fields []FieldSpec
}

// NewMachine creates a state machine over the given ordered field specs.
func NewMachine(fields []FieldSpec) *Machine {
	return &Machine{fields: fields}
}

// FirstPrompt returns the prompt for a freshly created session.
func (m *Machine) FirstPrompt() string {
	return m.fields[0].Prompt
}

// NumFields returns the number of questions in the sequence.
func (m *Machine) NumFields() int {
	return len(m.fields)
}

// Advance validates raw against the session's current field. On success
// the value is stored, the step advances and the next prompt (or Done)
// is returned. On failure a *ValidationError is returned and the session
// is untouched. Must be called with the session linearized by its store.
func (m *Machine) Advance(s *session.Session, raw string) (Result, error) {
	if s.Step < 0 || s.Step >= len(m.fields) {
		return Result{}, fmt.Errorf("session step %d out of range", s.Step)
	}

	field := m.fields[s.Step]
	value, err := field.Validate(raw)
	if err != nil {
		return Result{}, &ValidationError{Field: field.Name, Message: err.Error()}
	}

	s.Collected[field.Name] = value
	s.Step++

	if s.Step == len(m.fields) {
		return Result{Done: true}, nil
	}
	return Result{Prompt: m.fields[s.Step].Prompt}, nil
}
