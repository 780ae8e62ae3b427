package notify

import "context"

// Sink accepts a subject/body/recipient triple for best-effort delivery.
// Callers treat delivery as a side effect: failures are logged and
// swallowed, never propagated into the surrounding workflow.
type Sink interface {
	Send(ctx context.Context, subject, body, recipient string) error
}
