package mail

import (
	"context"
	"time"

	"github.com/sony/gobreaker/v2"
	"go.uber.org/zap"
)

// Mailer is the notification sink. Delivery is a development-grade console
// write (structured log), wrapped in a circuit breaker so a misbehaving
// transport degrades to fast failures instead of piling up timeouts.
// Callers treat every error as non-fatal.
type Mailer struct {
	log     *zap.Logger
	breaker *gobreaker.CircuitBreaker[struct{}]
}

func NewMailer(log *zap.Logger) *Mailer {
	settings := gobreaker.Settings{
		Name:    "mailer",
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	}
	return &Mailer{
		log:     log.With(zap.String("component", "mailer")),
		breaker: gobreaker.NewCircuitBreaker[struct{}](settings),
	}
}

// Send emits the message. The context carries the caller's bounded
// timeout; an expired context counts as a delivery failure.
func (m *Mailer) Send(ctx context.Context, subject, body, recipient string) error {
	_, err := m.breaker.Execute(func() (struct{}, error) {
		if err := ctx.Err(); err != nil {
			return struct{}{}, err
		}
		m.log.Info("mail_sent",
			zap.String("to", recipient),
			zap.String("subject", subject),
			zap.String("body", body),
		)
		return struct{}{}, nil
	})
	return err
}
