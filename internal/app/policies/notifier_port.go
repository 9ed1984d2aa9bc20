package policies

import "context"

// Message is what the notification sink receives: who to tell, about which
// booking, with which template.
type Message struct {
	Reference string
	Recipient string
	Template  string
	DedupKey  string
}

type Notifier interface {
	Send(ctx context.Context, msg Message) error
}
