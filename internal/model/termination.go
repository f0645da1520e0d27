package model

import (
	"encoding/json"
	"fmt"
)

// Termination describes why a crawl session stopped.
type Termination int

const (
	// TerminationNone means the session has not terminated yet.
	TerminationNone Termination = iota

	// TerminationDrained means the frontier became empty.
	TerminationDrained

	// TerminationBudgetExhausted means the page budget was reached
	// while URLs were still queued or could still be discovered.
	TerminationBudgetExhausted

	// TerminationStopped means the crawl was cancelled by the caller.
	TerminationStopped
)

// String returns the lower-case name used in reports and the database.
func (t Termination) String() string {
	switch t {
	case TerminationDrained:
		return "drained"
	case TerminationBudgetExhausted:
		return "budget_exhausted"
	case TerminationStopped:
		return "stopped"
	default:
		return "none"
	}
}

// ParseTermination converts the String form back to a Termination.
func ParseTermination(s string) (Termination, error) {
	switch s {
	case "drained":
		return TerminationDrained, nil
	case "budget_exhausted":
		return TerminationBudgetExhausted, nil
	case "stopped":
		return TerminationStopped, nil
	case "none", "":
		return TerminationNone, nil
	default:
		return TerminationNone, fmt.Errorf("unknown termination %q", s)
	}
}

// MarshalJSON encodes the termination as its string form.
func (t Termination) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

// UnmarshalJSON decodes the string form produced by MarshalJSON.
func (t *Termination) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseTermination(s)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}
