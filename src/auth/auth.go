// Package auth resolves the caller's user id from a bearer token.
package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	fbauth "firebase.google.com/go/v4/auth"
	jwtmiddleware "github.com/auth0/go-jwt-middleware/v2"
	"github.com/auth0/go-jwt-middleware/v2/jwks"
	"github.com/auth0/go-jwt-middleware/v2/validator"
	"go.uber.org/zap"
)

var ErrNoClaims = errors.New("request carries no validated claims")

// TokenVerifier is the subset of the Firebase auth client used here.
type TokenVerifier interface {
	VerifyIDToken(ctx context.Context, idToken string) (*fbauth.Token, error)
}

// FirebaseValidator adapts Firebase ID tokens to the claims shape the middleware stores.
func FirebaseValidator(verifier TokenVerifier) jwtmiddleware.ValidateToken {
	return func(ctx context.Context, token string) (interface{}, error) {
		idToken, err := verifier.VerifyIDToken(ctx, token)
		if err != nil {
			return nil, err
		}
		return &validator.ValidatedClaims{
			RegisteredClaims: validator.RegisteredClaims{
				Issuer:   idToken.Issuer,
				Subject:  idToken.UID,
				Audience: []string{idToken.Audience},
				Expiry:   idToken.Expires,
				IssuedAt: idToken.IssuedAt,
			},
		}, nil
	}
}

// Auth0Validator checks RS256 tokens against the tenant's cached JWKS.
func Auth0Validator(domain string, audience string) (jwtmiddleware.ValidateToken, error) {
	issuerURL, err := url.Parse("https://" + domain + "/")
	if err != nil {
		return nil, fmt.Errorf("parse issuer url: %w", err)
	}

	provider := jwks.NewCachingProvider(issuerURL, 5*time.Minute)
	jwtValidator, err := validator.New(
		provider.KeyFunc,
		validator.RS256,
		issuerURL.String(),
		[]string{audience},
		validator.WithAllowedClockSkew(time.Minute),
	)
	if err != nil {
		return nil, fmt.Errorf("set up jwt validator: %w", err)
	}
	return jwtValidator.ValidateToken, nil
}

// Middleware rejects requests without a valid bearer token and stores the claims on the context.
func Middleware(validate jwtmiddleware.ValidateToken, logger *zap.Logger) func(http.Handler) http.Handler {
	errorHandler := func(w http.ResponseWriter, r *http.Request, err error) {
		logger.Info("rejected request", zap.String("path", r.URL.Path), zap.Error(err))
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":"unauthorized"}`))
	}
	middleware := jwtmiddleware.New(validate, jwtmiddleware.WithErrorHandler(errorHandler))
	return middleware.CheckJWT
}

// Subject returns the user id the middleware validated for r.
func Subject(r *http.Request) (string, error) {
	claims, ok := r.Context().Value(jwtmiddleware.ContextKey{}).(*validator.ValidatedClaims)
	if !ok || claims.RegisteredClaims.Subject == "" {
		return "", ErrNoClaims
	}
	return claims.RegisteredClaims.Subject, nil
}

// WithSubject returns a copy of r carrying claims for userID, as the middleware would leave them.
func WithSubject(r *http.Request, userID string) *http.Request {
	claims := &validator.ValidatedClaims{RegisteredClaims: validator.RegisteredClaims{Subject: userID}}
	return r.WithContext(context.WithValue(r.Context(), jwtmiddleware.ContextKey{}, claims))
}
