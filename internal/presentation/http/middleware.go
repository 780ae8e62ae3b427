package httppresentation

import (
	"context"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	domain "github.com/mossvale/marketplace/internal/domain/session"
	"github.com/mossvale/marketplace/internal/pkg/logging"
)

const sessionCookie = "market_session"

type sessionKey struct{}

// withSession resolves the caller's session from the cookie, creating a
// fresh one on first interaction, and stashes it in the request context.
func (h *Handler) withSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		var sess *domain.Session
		if cookie, err := r.Cookie(sessionCookie); err == nil {
			if found, getErr := h.sessions.Get(ctx, cookie.Value); getErr == nil {
				sess = found
			}
		}

		if sess == nil {
			sess = domain.New(h.idGen.NewID())
			if err := h.sessions.Create(ctx, sess); err != nil {
				writeError(w, http.StatusInternalServerError, err)
				return
			}
			http.SetCookie(w, &http.Cookie{
				Name:     sessionCookie,
				Value:    sess.ID,
				Path:     "/",
				HttpOnly: true,
				SameSite: http.SameSiteLaxMode,
			})
		}

		next.ServeHTTP(w, r.WithContext(context.WithValue(ctx, sessionKey{}, sess)))
	})
}

func sessionFrom(ctx context.Context) *domain.Session {
	sess, _ := ctx.Value(sessionKey{}).(*domain.Session)
	return sess
}

// withRequestLogger binds a request-scoped logger carrying the request id
// into the context and emits one access-log line per request.
func (h *Handler) withRequestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = h.idGen.NewID()
		}

		logger := h.log.With(zap.String("request_id", requestID))
		ctx := logging.ContextWithLogger(r.Context(), logger)

		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r.WithContext(ctx))

		logger.Info("http_request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", rec.status),
			zap.Duration("latency", time.Since(start)),
		)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

var errAuthRequired = errors.New("http: authentication required")
