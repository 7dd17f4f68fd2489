// Package notify delivers purely informational events to the user.
// Notifications have no causal role in the core's invariants: they are
// fire-and-forget and failures are only logged.
package notify

import (
	"context"
	"log"
)

// #region event

// Event is one informational notification.
type Event struct {
	UserID  string
	Kind    string // adaptation_suggested, adaptation_accepted, ...
	Subject string // entity id
	Message string
}

// #endregion event

// #region notifier

// Notifier is the delivery contract. Implementations must not block the
// caller beyond returning; errors are advisory.
type Notifier interface {
	Notify(ctx context.Context, ev Event) error
}

// LogNotifier writes notifications to the process log. The default
// collaborator when no delivery channel is configured.
type LogNotifier struct{}

func (LogNotifier) Notify(_ context.Context, ev Event) error {
	log.Printf("[NOTIFY] user=%s kind=%s subject=%s: %s", ev.UserID, ev.Kind, ev.Subject, ev.Message)
	return nil
}

// Discard drops all notifications. Used in tests.
type Discard struct{}

func (Discard) Notify(context.Context, Event) error { return nil }

// #endregion notifier

// BestEffort sends via n when non-nil, logging delivery failures.
func BestEffort(ctx context.Context, n Notifier, ev Event) {
	if n == nil {
		return
	}
	if err := n.Notify(ctx, ev); err != nil {
		log.Printf("[NOTIFY] delivery failed for %s/%s: %v", ev.Kind, ev.Subject, err)
	}
}
