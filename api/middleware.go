/*
middleware.go - Authentication and request logging middleware

PURPOSE:
  Resolves the caller before any handler runs. The API never trusts
  client-supplied identifiers; the bearer token is the only source of
  identity, and the resolved leave.Identity travels in the request context.

TOKEN FORMAT:
  HS256 JWTs signed with the shared secret. The "sub" claim carries the
  identity provider's opaque key, which maps to a member's ExternalID.

TWO LEVELS:
  VerifyToken:  signature and expiry only. Used by the enrollment routes,
                where the caller is authenticated upstream but has no
                member record yet.
  Authenticate: VerifyToken plus member lookup. Produces the Identity the
                engine operates on. 401 when the subject has no member.

SEE ALSO:
  - server.go: which routes use which level
  - leave/types.go: the Identity type
*/
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"

	"github.com/warp/leave-engine/leave"
)

type contextKey int

const (
	identityContextKey contextKey = iota
	subjectContextKey
)

// IdentityFromContext extracts the authenticated caller. The zero Identity
// means the request did not pass Authenticate.
func IdentityFromContext(ctx context.Context) leave.Identity {
	id, _ := ctx.Value(identityContextKey).(leave.Identity)
	return id
}

// SubjectFromContext extracts the verified token subject. Empty means the
// request did not pass VerifyToken.
func SubjectFromContext(ctx context.Context) string {
	sub, _ := ctx.Value(subjectContextKey).(string)
	return sub
}

// Authenticator verifies bearer tokens and resolves members.
type Authenticator struct {
	secret []byte
	store  leave.MemberStore
	log    zerolog.Logger
}

func NewAuthenticator(secret string, store leave.MemberStore, log zerolog.Logger) *Authenticator {
	return &Authenticator{secret: []byte(secret), store: store, log: log}
}

// VerifyToken checks the token signature and expiry and stores the subject
// in the context. No member lookup.
func (a *Authenticator) VerifyToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sub, err := a.subject(r)
		if err != nil {
			a.log.Warn().Err(err).Str("path", r.URL.Path).Msg("token rejected")
			writeError(w, leave.ErrAuthentication)
			return
		}
		ctx := context.WithValue(r.Context(), subjectContextKey, sub)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// Authenticate verifies the token and resolves the subject to a member,
// placing the full Identity in the context.
func (a *Authenticator) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sub, err := a.subject(r)
		if err != nil {
			a.log.Warn().Err(err).Str("path", r.URL.Path).Msg("token rejected")
			writeError(w, leave.ErrAuthentication)
			return
		}

		member, err := a.store.GetMemberByExternalID(r.Context(), sub)
		if err != nil {
			// An unknown subject is an authentication failure, not a 404;
			// the caller simply is not enrolled.
			if leave.IsNotFound(err) {
				err = leave.ErrAuthentication
			}
			writeError(w, err)
			return
		}

		ctx := context.WithValue(r.Context(), subjectContextKey, sub)
		ctx = context.WithValue(ctx, identityContextKey, leave.IdentityOf(member))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (a *Authenticator) subject(r *http.Request) (string, error) {
	tokenString := extractBearerToken(r)
	if tokenString == "" {
		return "", errors.New("missing bearer token")
	}

	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return a.secret, nil
	})
	if err != nil {
		return "", err
	}
	if !token.Valid {
		return "", errors.New("invalid token")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", errors.New("invalid claims")
	}
	sub, ok := claims["sub"].(string)
	if !ok || sub == "" {
		return "", errors.New("missing sub claim")
	}
	return sub, nil
}

// extractBearerToken extracts the JWT from the Authorization header.
func extractBearerToken(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return ""
	}

	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
		return ""
	}

	return parts[1]
}

// RequestLogger emits one structured line per request.
func RequestLogger(log zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			log.Info().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", ww.Status()).
				Dur("duration", time.Since(start)).
				Str("request_id", middleware.GetReqID(r.Context())).
				Msg("request")
		})
	}
}
