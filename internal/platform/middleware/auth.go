package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/stellarnodeN/recrusearch/pkg/domain"
)

// JWTValidator validates participant bearer tokens.
type JWTValidator interface {
	ValidateToken(tokenString string) (domain.ParticipantID, error)
}

type contextKeyParticipantID struct{}

// GetParticipantID retrieves the authenticated pseudonymous identity from
// the context. Zero value means the request never passed RequireAuth.
func GetParticipantID(ctx context.Context) domain.ParticipantID {
	id, _ := ctx.Value(contextKeyParticipantID{}).(domain.ParticipantID)
	return id
}

// RequireAuth rejects requests without a valid bearer token and installs the
// participant identity in the request context.
func RequireAuth(validator JWTValidator, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !ok {
				unauthorized(w)
				return
			}
			participantID, err := validator.ValidateToken(token)
			if err != nil {
				logger.WarnContext(r.Context(), "rejected invalid token",
					"request_id", GetRequestID(r.Context()),
					"error", err,
				)
				unauthorized(w)
				return
			}
			ctx := context.WithValue(r.Context(), contextKeyParticipantID{}, participantID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func unauthorized(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = w.Write([]byte(`{"error":"unauthorized","error_description":"Invalid or expired token"}`))
}

// HMACValidator validates HS256 participant tokens whose subject claim is
// the participant identity. Identity issuance is external; this core only
// verifies what the issuer signed.
type HMACValidator struct {
	key []byte
}

func NewHMACValidator(signingKey string) *HMACValidator {
	return &HMACValidator{key: []byte(signingKey)}
}

func (v *HMACValidator) ValidateToken(tokenString string) (domain.ParticipantID, error) {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return v.key, nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	if err != nil {
		return domain.ParticipantID{}, fmt.Errorf("parse token: %w", err)
	}

	subject, err := token.Claims.GetSubject()
	if err != nil || subject == "" {
		return domain.ParticipantID{}, fmt.Errorf("token has no subject")
	}
	return domain.ParseParticipantID(subject)
}

// IssueToken mints a participant token. Exists for development and tests;
// production identities come from the external credential issuer.
func (v *HMACValidator) IssueToken(participantID domain.ParticipantID, ttl time.Duration) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   participantID.String(),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	})
	return token.SignedString(v.key)
}
