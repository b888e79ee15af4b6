package exam

import "time"

// Kind identifies which rule produced a Notice.
type Kind string

const (
	KindTargetAppeared Kind = "target_appeared"
	KindDateChanged    Kind = "date_changed"
	KindTerminated     Kind = "terminated"
)

// Rules configures Evaluate.
type Rules struct {
	TargetDate           string
	TerminationAfterDays int
}

// TerminationWindow is the monitoring window after the target first appeared.
func (r Rules) TerminationWindow() time.Duration {
	return time.Duration(r.TerminationAfterDays) * 24 * time.Hour
}

// Deadline returns when monitoring stops, or the zero time if the target has
// not appeared yet.
func (r Rules) Deadline(s *State) time.Time {
	if s.TargetFoundAt == nil {
		return time.Time{}
	}
	return s.TargetFoundAt.Add(r.TerminationWindow())
}

// Notice describes one notification to deliver.
type Notice struct {
	Kind                 Kind
	TargetDate           string
	StatusDate           string
	PreviousDate         string
	TargetFoundAt        time.Time
	TerminationAfterDays int
}

// Evaluate applies the notification rules to prev given the status date seen
// in this run. It returns the next state and the notices to deliver, in order.
// prev is not modified.
//
// The target-appeared and date-changed rules are exclusive within a run; the
// termination rule is checked on every run.
func Evaluate(prev State, statusDate string, now time.Time, rules Rules) (State, []Notice) {
	next := prev.Clone()
	if next.Terminated || statusDate == "" {
		return next, nil
	}

	var notices []Notice
	newNotice := func(kind Kind, previous string) Notice {
		n := Notice{
			Kind:                 kind,
			TargetDate:           rules.TargetDate,
			StatusDate:           statusDate,
			PreviousDate:         previous,
			TerminationAfterDays: rules.TerminationAfterDays,
		}
		if next.TargetFoundAt != nil {
			n.TargetFoundAt = next.TargetFoundAt.Time
		}
		return n
	}

	if statusDate == rules.TargetDate && next.TargetFoundAt == nil {
		previous := next.LastDateString()
		next.TargetFoundAt = NewTimestamp(now)
		target := rules.TargetDate
		next.LastDate = &target
		notices = append(notices, newNotice(KindTargetAppeared, previous))
	} else if rules.TargetDate != "" && next.LastDateString() == rules.TargetDate && statusDate != rules.TargetDate {
		previous := next.LastDateString()
		changed := statusDate
		next.LastDate = &changed
		notices = append(notices, newNotice(KindDateChanged, previous))
	}

	if next.TargetFoundAt != nil && !now.Before(rules.Deadline(&next)) {
		next.Terminated = true
		notices = append(notices, newNotice(KindTerminated, ""))
	}

	return next, notices
}
