package notifier

import "context"

// Message is a plain-text notification.
type Message struct {
	Subject string
	Body    string
}

// Notifier defines the interface for delivering notifications
type Notifier interface {
	// Notify delivers a single message
	Notify(ctx context.Context, msg Message) error
}
