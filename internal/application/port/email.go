package port

import "context"

// EmailSender delivers outbound notification email. Implementations are
// best-effort; callers never let a delivery failure roll back a transition.
type EmailSender interface {
	Send(ctx context.Context, to, subject, body string) error
}
