package exam

import (
	"encoding/json"
	"fmt"
	"time"
)

// DateLayout is the DD.MM.YYYY layout used on the page.
const DateLayout = "02.01.2006"

// Phase is the monitoring phase derived from a State.
type Phase string

const (
	PhaseNotYetFound Phase = "not-yet-found"
	PhaseMonitoring  Phase = "found-and-monitoring"
	PhaseTerminated  Phase = "terminated"
)

// State is the single persisted monitoring record.
type State struct {
	LastDate      *string    `json:"last_date"`
	TargetFoundAt *Timestamp `json:"target_found_at"`
	Terminated    bool       `json:"terminated"`
}

// NewState returns the first-run defaults.
func NewState() *State {
	return &State{}
}

// Phase reports which monitoring phase the state is in.
func (s *State) Phase() Phase {
	switch {
	case s.Terminated:
		return PhaseTerminated
	case s.TargetFoundAt != nil:
		return PhaseMonitoring
	default:
		return PhaseNotYetFound
	}
}

// LastDateString returns LastDate or "" when unset.
func (s *State) LastDateString() string {
	if s.LastDate == nil {
		return ""
	}
	return *s.LastDate
}

// Clone returns a deep copy.
func (s State) Clone() State {
	out := State{Terminated: s.Terminated}
	if s.LastDate != nil {
		d := *s.LastDate
		out.LastDate = &d
	}
	if s.TargetFoundAt != nil {
		ts := *s.TargetFoundAt
		out.TargetFoundAt = &ts
	}
	return out
}

// Timestamp is an instant stored as an ISO-8601 string. Timestamps without a
// zone offset are read as UTC.
type Timestamp struct {
	time.Time
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
}

// NewTimestamp wraps t in UTC.
func NewTimestamp(t time.Time) *Timestamp {
	return &Timestamp{Time: t.UTC()}
}

// MarshalJSON writes RFC 3339 in UTC.
func (t Timestamp) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.UTC().Format(time.RFC3339Nano))
}

// UnmarshalJSON accepts RFC 3339 and zone-less ISO-8601.
func (t *Timestamp) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("timestamp must be a string: %w", err)
	}
	parsed, err := ParseTimestamp(s)
	if err != nil {
		return err
	}
	t.Time = parsed
	return nil
}

// ParseTimestamp parses an ISO-8601 timestamp, defaulting to UTC.
func ParseTimestamp(s string) (time.Time, error) {
	for _, layout := range timestampLayouts {
		if parsed, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return parsed.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid timestamp: %q", s)
}

// ParseDate validates a DD.MM.YYYY string as a real calendar date.
func ParseDate(s string) (time.Time, error) {
	if !datePattern.MatchString(s) || len(s) != len(DateLayout) {
		return time.Time{}, fmt.Errorf("invalid date %q: want DD.MM.YYYY", s)
	}
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: %w", s, err)
	}
	return t, nil
}
