package notifier

import (
	"fmt"
	"strings"

	"github.com/pfrederiksen/bamf-monitor/internal/exam"
)

const (
	SubjectTargetAppeared = "BAMF Update: Target Date Appeared"
	SubjectDateChanged    = "BAMF Update: Date Changed"
	SubjectTerminated     = "BAMF Monitor Terminated"
)

// Composer renders notices into messages.
type Composer struct {
	// SourceURL is linked from every message.
	SourceURL string
	// RecipientName personalizes the greeting; empty means "Hello,".
	RecipientName string
}

// Compose renders the message for n.
func (c Composer) Compose(n exam.Notice) Message {
	var b strings.Builder
	b.WriteString(c.greeting())
	b.WriteString("\n\n")

	var subject string
	switch n.Kind {
	case exam.KindTargetAppeared:
		subject = SubjectTargetAppeared
		fmt.Fprintf(&b, "The official BAMF status now shows:\n\n")
		fmt.Fprintf(&b, "%s %s\n\n", exam.Marker, n.TargetDate)
		fmt.Fprintf(&b, "Monitoring will continue for %d days.\n\n", n.TerminationAfterDays)
		c.writeLink(&b)

	case exam.KindDateChanged:
		subject = SubjectDateChanged
		fmt.Fprintf(&b, "The previously detected target date %s\n", n.TargetDate)
		fmt.Fprintf(&b, "has changed to:\n\n")
		fmt.Fprintf(&b, "%s\n\n", n.StatusDate)
		c.writeLink(&b)

	case exam.KindTerminated:
		subject = SubjectTerminated
		fmt.Fprintf(&b, "Monitoring service has now been terminated.\n\n")
		fmt.Fprintf(&b, "Reason:\n%d days passed after\ntarget date %s appeared.\n\n", n.TerminationAfterDays, n.TargetDate)
		fmt.Fprintf(&b, "No further checks will be performed.\n\n")
		fmt.Fprintf(&b, "Regards,\nBAMF Monitor\n")

	default:
		subject = fmt.Sprintf("BAMF Update: %s", n.Kind)
		fmt.Fprintf(&b, "Current status date: %s\n\n", n.StatusDate)
		c.writeLink(&b)
	}

	return Message{Subject: subject, Body: b.String()}
}

func (c Composer) greeting() string {
	if name := strings.TrimSpace(c.RecipientName); name != "" {
		return fmt.Sprintf("Hello %s,", name)
	}
	return "Hello,"
}

func (c Composer) writeLink(b *strings.Builder) {
	if c.SourceURL == "" {
		return
	}
	fmt.Fprintf(b, "Link:\n%s\n", c.SourceURL)
}
