package notifier

import (
	"context"
	"fmt"
	"io"
)

// DryRunNotifier prints what would be emailed without actually sending
type DryRunNotifier struct {
	out   io.Writer
	count int
}

// NewDryRunNotifier creates a dry-run notifier writing to w
func NewDryRunNotifier(w io.Writer) *DryRunNotifier {
	return &DryRunNotifier{out: w}
}

// Notify prints the message that would be sent
func (n *DryRunNotifier) Notify(_ context.Context, msg Message) error {
	n.count++
	fmt.Fprintf(n.out, "--- Email %d ---\n", n.count)
	fmt.Fprintf(n.out, "Subject: %s\n\n", msg.Subject)
	fmt.Fprintln(n.out, msg.Body)
	return nil
}
