package handler

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/golang-jwt/jwt/v5"

	"github.com/wadjakorntonsri/ngo-site-api/pkg/logging"
	"github.com/wadjakorntonsri/ngo-site-api/pkg/metrics"
)

const authCookie = "auth_token"

type subjectKey struct{}

type Middleware struct {
	jwtSecret []byte
}

func NewMiddleware(jwtSecret string) *Middleware {
	return &Middleware{
		jwtSecret: []byte(jwtSecret),
	}
}

// AuthMiddleware verifies an HS256 token from the Authorization header or the
// auth_token cookie.
func (m *Middleware) AuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tokenString := bearerToken(r)
		if tokenString == "" {
			writeError(w, r, http.StatusUnauthorized, "Unauthorized", nil, false)
			return
		}

		claims := &jwt.RegisteredClaims{}
		token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
			return m.jwtSecret, nil
		}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))

		if err != nil || !token.Valid {
			logging.Ctx(r.Context()).Debug().Err(err).Msg("rejected admin token")
			writeError(w, r, http.StatusUnauthorized, "Unauthorized", nil, false)
			return
		}

		ctx := context.WithValue(r.Context(), subjectKey{}, claims.Subject)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// SubjectFromContext returns the authenticated admin, if any.
func SubjectFromContext(ctx context.Context) string {
	subject, _ := ctx.Value(subjectKey{}).(string)
	return subject
}

func bearerToken(r *http.Request) string {
	if header := r.Header.Get("Authorization"); header != "" {
		scheme, token, ok := strings.Cut(header, " ")
		if ok && strings.EqualFold(scheme, "Bearer") {
			return strings.TrimSpace(token)
		}
		return ""
	}
	if cookie, err := r.Cookie(authCookie); err == nil {
		return cookie.Value
	}
	return ""
}

// RequestLogger tags every request with an ID, then logs and measures it once
// the handler returns.
func RequestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = logging.GenerateRequestID()
		}
		w.Header().Set("X-Request-ID", requestID)
		r = r.WithContext(logging.ContextWithRequestID(r.Context(), requestID))

		ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		duration := time.Since(start)
		metrics.RecordHTTPRequest(r.Method, route, strconv.Itoa(status), duration)

		logging.Ctx(r.Context()).Info().
			Str("method", r.Method).
			Str("route", route).
			Int("status", status).
			Dur("duration", duration).
			Msg("request")
	})
}
