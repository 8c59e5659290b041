package http

import (
	"bytes"
	"context"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/robertarktes/hotel-booking/internal/idempotency"
	"github.com/robertarktes/hotel-booking/internal/observability"
	"github.com/robertarktes/hotel-booking/internal/rateLimit"
	"github.com/robertarktes/hotel-booking/internal/session"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	otelhttp "go.opentelemetry.io/otel/propagation"
)

type loggerKey struct{}

func RequestIDMiddleware(next http.Handler) http.Handler {
	return middleware.RequestID(next)
}

func LoggerMiddleware(logger observability.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			reqID := middleware.GetReqID(r.Context())
			entry := logger.WithField("request_id", reqID)
			ctx := context.WithValue(r.Context(), loggerKey{}, entry)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// LoggerFrom returns the request-scoped logger, or fallback outside a request.
func LoggerFrom(ctx context.Context, fallback observability.Logger) observability.Logger {
	if l, ok := ctx.Value(loggerKey{}).(observability.Logger); ok {
		return l
	}
	return fallback
}

func MetricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		observability.RequestsTotal.WithLabelValues(route, strconv.Itoa(status), r.Method).Inc()
	})
}

func TracingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := otel.GetTextMapPropagator().Extract(r.Context(), otelhttp.HeaderCarrier(r.Header))
		tracer := otel.Tracer("http")
		ctx, span := tracer.Start(ctx, r.Method+" "+r.URL.Path)
		defer span.End()

		span.SetAttributes(
			attribute.String("http.method", r.Method),
			attribute.String("http.url", r.URL.String()),
		)

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// SessionMiddleware builds the session from the bearer token when one is
// sent. Routes that need a user are wrapped with RequireSession.
func SessionMiddleware(b *session.Builder) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := session.FromHeader(r.Header.Get("Authorization"))
			if token == "" {
				next.ServeHTTP(w, r)
				return
			}
			s, err := b.Build(r.Context(), token)
			if err != nil {
				writeError(w, r, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(session.NewContext(r.Context(), s)))
		})
	}
}

func RequireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := session.FromContext(r.Context()); !ok {
			writeJSON(w, http.StatusUnauthorized, errorBody{Error: "authentication required"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s, ok := session.FromContext(r.Context())
		if !ok {
			writeJSON(w, http.StatusUnauthorized, errorBody{Error: "authentication required"})
			return
		}
		if !s.IsAdmin() {
			writeJSON(w, http.StatusForbidden, errorBody{Error: "admin access required"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

type RateLimits struct {
	PerUser int
	PerIP   int
	Period  time.Duration
}

func RateLimitMiddleware(rl *rateLimit.RateLimiter, limits RateLimits) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip, _, err := net.SplitHostPort(r.RemoteAddr)
			if err != nil {
				ip = r.RemoteAddr
			}
			allowed := rl.Allow(r.Context(), "ip:"+ip, limits.PerIP, limits.Period)
			if s, ok := session.FromContext(r.Context()); ok && allowed {
				allowed = rl.Allow(r.Context(), "user:"+s.User.Email, limits.PerUser, limits.Period)
			}
			if !allowed {
				w.Header().Set("Retry-After", strconv.Itoa(int(limits.Period.Seconds())))
				writeJSON(w, http.StatusTooManyRequests, errorBody{Error: "rate limit exceeded"})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// IdempotencyMiddleware replays the first answer to a POST that carries an
// Idempotency-Key. Requests without the header are not deduplicated.
func IdempotencyMiddleware(idemp *idempotency.Idempotency) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			clientKey := r.Header.Get("Idempotency-Key")
			if r.Method != http.MethodPost || clientKey == "" {
				next.ServeHTTP(w, r)
				return
			}

			scope := r.Method + " " + r.URL.Path
			if s, ok := session.FromContext(r.Context()); ok {
				scope = s.User.Email + " " + scope
			}
			key, err := idempotency.Key(scope, clientKey)
			if err != nil {
				writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid Idempotency-Key"})
				return
			}

			stored, err := idemp.Begin(r.Context(), key)
			switch {
			case errors.Is(err, idempotency.ErrInFlight):
				writeJSON(w, http.StatusConflict, errorBody{Error: err.Error()})
				return
			case err != nil:
				writeError(w, r, err)
				return
			case stored != nil:
				if stored.ContentType != "" {
					w.Header().Set("Content-Type", stored.ContentType)
				}
				w.Header().Set("Idempotent-Replayed", "true")
				w.WriteHeader(stored.Status)
				_, _ = w.Write(stored.Result)
				return
			}

			var body bytes.Buffer
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			ww.Tee(&body)
			next.ServeHTTP(ww, r)

			ctx := context.WithoutCancel(r.Context())
			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			if status >= http.StatusInternalServerError {
				_ = idemp.Abort(ctx, key)
				return
			}
			resp := idempotency.Response{Status: status, ContentType: ww.Header().Get("Content-Type"), Result: body.Bytes()}
			if err := idemp.Set(ctx, key, resp); err != nil {
				LoggerFrom(r.Context(), observability.NewNopLogger()).Warn("store idempotent response: ", err)
			}
		})
	}
}
