package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/pfrederiksen/bamf-monitor/internal/exam"
)

// OutputFormat specifies the output format
type OutputFormat string

const (
	FormatText OutputFormat = "text"
	FormatJSON OutputFormat = "json"
)

// StatusReport describes the persisted state for the status command
type StatusReport struct {
	StateFile            string     `json:"state_file"`
	TargetDate           string     `json:"target_date"`
	Phase                exam.Phase `json:"phase"`
	LastDate             *string    `json:"last_date"`
	TargetFoundAt        *time.Time `json:"target_found_at"`
	Deadline             *time.Time `json:"deadline,omitempty"`
	TerminationAfterDays int        `json:"termination_after_days"`
	Terminated           bool       `json:"terminated"`
}

// NewStatusReport derives a report from state and rules
func NewStatusReport(path string, state *exam.State, rules exam.Rules) *StatusReport {
	r := &StatusReport{
		StateFile:            path,
		TargetDate:           rules.TargetDate,
		Phase:                state.Phase(),
		LastDate:             state.LastDate,
		TerminationAfterDays: rules.TerminationAfterDays,
		Terminated:           state.Terminated,
	}
	if state.TargetFoundAt != nil {
		found := state.TargetFoundAt.UTC()
		deadline := rules.Deadline(state).UTC()
		r.TargetFoundAt = &found
		r.Deadline = &deadline
	}
	return r
}

// ParseFormat validates an output format flag
func ParseFormat(s string) (OutputFormat, error) {
	switch f := OutputFormat(s); f {
	case FormatText, FormatJSON:
		return f, nil
	default:
		return "", fmt.Errorf("invalid format: %s (must be 'text' or 'json')", s)
	}
}

// WriteStatus writes the report in the specified format
func WriteStatus(w io.Writer, report *StatusReport, format OutputFormat) error {
	switch format {
	case FormatJSON:
		return writeJSON(w, report)
	case FormatText:
		return writeText(w, report)
	default:
		return fmt.Errorf("unknown format: %s", format)
	}
}

// writeJSON outputs the report as JSON
func writeJSON(w io.Writer, report *StatusReport) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(report)
}

// writeText outputs the report as human-readable text
func writeText(w io.Writer, r *StatusReport) error {
	lastDate := "none"
	if r.LastDate != nil {
		lastDate = *r.LastDate
	}

	fmt.Fprintf(w, "State file:  %s\n", r.StateFile)
	fmt.Fprintf(w, "Target date: %s\n", r.TargetDate)
	fmt.Fprintf(w, "Phase:       %s\n", r.Phase)
	fmt.Fprintf(w, "Last date:   %s\n", lastDate)

	if r.TargetFoundAt != nil {
		fmt.Fprintf(w, "Found at:    %s\n", r.TargetFoundAt.Format(time.RFC3339))
	}
	if r.Deadline != nil {
		fmt.Fprintf(w, "Deadline:    %s (%d days after target appeared)\n", r.Deadline.Format(time.RFC3339), r.TerminationAfterDays)
	}
	return nil
}
