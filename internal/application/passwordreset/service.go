package passwordreset

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/mossvale/marketplace/internal/domain/identity"
	"github.com/mossvale/marketplace/internal/domain/notify"
	"github.com/mossvale/marketplace/internal/infrastructure/metrics"
	"github.com/mossvale/marketplace/internal/pkg/logging"
)

const tracerName = "passwordreset"

type IDGenerator interface {
	NewID() string
}

// Service is the reset-token authority: it issues, validates and retires
// single-use password-reset tokens.
type Service struct {
	users  identity.Repository
	sink   notify.Sink
	idGen  IDGenerator
	met    *metrics.Metrics
	tracer trace.Tracer

	ttl         time.Duration
	baseURL     string
	mailTimeout time.Duration
	now         func() time.Time
}

func NewService(
	users identity.Repository,
	sink notify.Sink,
	idGen IDGenerator,
	met *metrics.Metrics,
	ttl time.Duration,
	baseURL string,
	mailTimeout time.Duration,
) *Service {
	return &Service{
		users:       users,
		sink:        sink,
		idGen:       idGen,
		met:         met,
		tracer:      otel.Tracer(tracerName),
		ttl:         ttl,
		baseURL:     baseURL,
		mailTimeout: mailTimeout,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// Issue creates a fresh token for the account behind email and mails the
// reset link. The raw secret lives only in that link; storage holds its
// hash. identity.ErrUnknownEmail is internal — the outward response stays
// uniform, the caller decides what to reveal.
func (s *Service) Issue(ctx context.Context, email string) (err error) {
	logger := logging.FromContext(ctx).With(zap.String("component", "passwordreset_service"))

	ctx, span := s.tracer.Start(ctx, "UC.ResetIssue")
	defer func() {
		outcome := "success"
		if err != nil {
			outcome = "error"
			if errors.Is(err, identity.ErrUnknownEmail) {
				outcome = "unknown_email"
			}
			span.RecordError(err)
			span.SetStatus(codes.Error, outcome)
		} else {
			span.SetStatus(codes.Ok, "OK")
		}
		span.End()
		s.met.ResetTotal.WithLabelValues("issue", outcome).Inc()
	}()

	user, err := s.users.UserByEmail(ctx, email)
	if err != nil {
		return fmt.Errorf("passwordreset: issue: %w", err)
	}

	raw, err := identity.NewRawToken()
	if err != nil {
		return fmt.Errorf("passwordreset: issue: %w", err)
	}

	token := identity.NewResetToken(
		s.idGen.NewID(),
		user.ID,
		identity.HashToken(raw),
		s.now().Add(s.ttl),
	)
	if err := s.users.CreateResetToken(ctx, token); err != nil {
		return fmt.Errorf("passwordreset: issue: %w", err)
	}

	logger.Info("reset_token_issued",
		zap.String("user_id", user.ID),
		zap.Time("expires_at", token.ExpiresAt),
	)

	subject := "Password Reset"
	body := fmt.Sprintf(
		"Hi %s,\n\nUse this link to reset your password (expires in %d minutes):\n%s/reset-password/%s\n",
		user.Username, int(s.ttl.Minutes()), s.baseURL, raw,
	)

	sendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.mailTimeout)
	go func() {
		defer cancel()
		if sendErr := s.sink.Send(sendCtx, subject, body, user.Email); sendErr != nil {
			s.met.MailFailures.Inc()
			logger.Warn("reset_mail_failed", zap.String("user_id", user.ID), zap.Error(sendErr))
		}
	}()

	return nil
}

// BeginRedeem verifies a presented raw token and returns the session
// binding that carries the redemption into the confirm step without
// re-transmitting the secret. Tokens observed past their horizon are
// retired eagerly.
func (s *Service) BeginRedeem(ctx context.Context, raw string) (_ *identity.ResetBinding, err error) {
	ctx, span := s.tracer.Start(ctx, "UC.ResetBegin")
	defer func() {
		outcome := "success"
		if err != nil {
			outcome = redeemOutcome(err)
			span.RecordError(err)
			span.SetStatus(codes.Error, outcome)
		} else {
			span.SetStatus(codes.Ok, "OK")
		}
		span.End()
		s.met.ResetTotal.WithLabelValues("begin", outcome).Inc()
	}()

	hash := identity.HashToken(raw)
	token, err := s.users.ResetTokenByHash(ctx, hash)
	if err != nil {
		return nil, fmt.Errorf("passwordreset: begin: %w", err)
	}

	if token.ExpiredAt(s.now()) {
		_ = token.Expire()
		if delErr := s.users.DeleteResetToken(ctx, token.ID); delErr != nil {
			logging.FromContext(ctx).Warn("expired_token_delete_failed", zap.Error(delErr))
		}
		return nil, fmt.Errorf("passwordreset: begin: %w", identity.ErrTokenExpired)
	}

	return &identity.ResetBinding{UserID: token.UserID, TokenHash: hash}, nil
}

// CompleteRedeem finishes the redemption: it requires a matching
// confirmation, then atomically flips the token and sets the new
// credential. Of two racing completions exactly one wins; the loser sees
// ErrAlreadyUsed or ErrTokenExpired. On a password mismatch the binding
// stays valid for retry.
func (s *Service) CompleteRedeem(ctx context.Context, binding *identity.ResetBinding, newPassword, confirmation string) (err error) {
	ctx, span := s.tracer.Start(ctx, "UC.ResetComplete")
	defer func() {
		outcome := "success"
		if err != nil {
			outcome = redeemOutcome(err)
			span.RecordError(err)
			span.SetStatus(codes.Error, outcome)
		} else {
			span.SetStatus(codes.Ok, "OK")
		}
		span.End()
		s.met.ResetTotal.WithLabelValues("complete", outcome).Inc()
	}()

	if binding == nil {
		return fmt.Errorf("passwordreset: complete: %w", identity.ErrInvalidToken)
	}
	if newPassword == "" || newPassword != confirmation {
		return fmt.Errorf("passwordreset: complete: %w", identity.ErrPasswordMismatch)
	}

	passwordHash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("passwordreset: complete: %w", err)
	}

	if err := s.users.RedeemToken(ctx, binding.TokenHash, s.now(), passwordHash); err != nil {
		return fmt.Errorf("passwordreset: complete: %w", err)
	}

	logging.FromContext(ctx).Info("password_reset_completed",
		zap.String("user_id", binding.UserID),
	)
	return nil
}

func redeemOutcome(err error) string {
	switch {
	case errors.Is(err, identity.ErrInvalidToken):
		return "invalid_token"
	case errors.Is(err, identity.ErrTokenExpired):
		return "token_expired"
	case errors.Is(err, identity.ErrAlreadyUsed):
		return "already_used"
	case errors.Is(err, identity.ErrPasswordMismatch):
		return "password_mismatch"
	default:
		return "error"
	}
}
