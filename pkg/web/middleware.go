package web

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/abgdnv/storefront/pkg/auth"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
)

const (
	// XSessionID lets non-browser clients pick their cart session explicitly.
	XSessionID = "X-Session-Id"
	// SessionCookie carries the anonymous cart session of browser clients.
	SessionCookie = "cart_session"

	sessionCookieMaxAge = 30 * 24 * time.Hour
	userSessionPrefix   = "user:"
)

// RequestIDInjector creates a middleware that injects request id
func RequestIDInjector(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := middleware.GetReqID(r.Context())
		if reqID == "" {
			reqID = uuid.NewString()
		}
		ctx := WithRequestID(r.Context(), reqID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// SessionMiddleware resolves the cart session of the request and stores it in the context.
// Resolution order: bearer token subject (only when verifier is not nil), X-Session-Id header,
// session cookie. A new anonymous session cookie is issued when none of them is present.
func SessionMiddleware(verifier auth.Verifier, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			if authHeader := r.Header.Get("Authorization"); authHeader != "" && verifier != nil {
				tokenString := strings.TrimPrefix(authHeader, "Bearer ")
				if tokenString == authHeader {
					RespondError(w, logger, http.StatusUnauthorized, "Bearer token is required")
					return
				}
				token, err := verifier.Verify(ctx, tokenString)
				if err != nil {
					logger.WarnContext(ctx, "Rejected bearer token", "error", err)
					RespondError(w, logger, http.StatusUnauthorized, "Invalid token")
					return
				}
				subject, ok := token.Subject()
				if !ok || subject == "" {
					RespondError(w, logger, http.StatusUnauthorized, "no claim `sub`")
					return
				}
				next.ServeHTTP(w, r.WithContext(WithSessionID(ctx, userSessionPrefix+subject)))
				return
			}

			if headerID := r.Header.Get(XSessionID); headerID != "" {
				if _, err := uuid.Parse(headerID); err != nil {
					RespondError(w, logger, http.StatusBadRequest, "Invalid "+XSessionID+" header")
					return
				}
				next.ServeHTTP(w, r.WithContext(WithSessionID(ctx, headerID)))
				return
			}

			if cookie, err := r.Cookie(SessionCookie); err == nil {
				if _, err := uuid.Parse(cookie.Value); err == nil {
					next.ServeHTTP(w, r.WithContext(WithSessionID(ctx, cookie.Value)))
					return
				}
			}

			sessionID := uuid.NewString()
			http.SetCookie(w, &http.Cookie{
				Name:     SessionCookie,
				Value:    sessionID,
				Path:     "/",
				MaxAge:   int(sessionCookieMaxAge.Seconds()),
				HttpOnly: true,
				SameSite: http.SameSiteLaxMode,
			})
			w.Header().Set(XSessionID, sessionID)
			next.ServeHTTP(w, r.WithContext(WithSessionID(ctx, sessionID)))
		})
	}
}

// StructuredLogger creates a middleware that logs HTTP requests in a structured format.
func StructuredLogger(logger *slog.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		fn := func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()

			defer func() {
				logger.InfoContext(r.Context(), "Request completed",
					"method", r.Method,
					"path", r.URL.Path,
					"status", ww.Status(),
					"bytes_written", ww.BytesWritten(),
					"duration_ms", float64(time.Since(start).Nanoseconds())/1e6,
					"remote_addr", r.RemoteAddr,
					"user_agent", r.UserAgent(),
				)
			}()
			next.ServeHTTP(ww, r)
		}
		return http.HandlerFunc(fn)
	}
}

// Recoverer is a middleware that recovers from panics and logs them using the provided logger.
func Recoverer(logger *slog.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		fn := func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rvr := recover(); rvr != nil {
					if rvr == http.ErrAbortHandler {
						panic(rvr)
					}
					logger.ErrorContext(r.Context(), "Panic recovered", "panic", rvr)
					http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
				}
			}()
			next.ServeHTTP(w, r)
		}
		return http.HandlerFunc(fn)
	}
}
