package httpapi

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	apperrors "github.com/terrachain/registry/internal/platform/errors"
)

// accountHeader carries the caller account when token auth is disabled.
const accountHeader = "X-Registry-Account"

// authenticator resolves the calling ledger account from a request.
type authenticator interface {
	account(r *http.Request) (string, error)
}

func newAuthenticator(jwtSecret []byte) authenticator {
	if len(jwtSecret) > 0 {
		return tokenAuth{secret: jwtSecret}
	}
	return headerAuth{}
}

// headerAuth trusts the account header set by an upstream gateway.
type headerAuth struct{}

func (headerAuth) account(r *http.Request) (string, error) {
	account := strings.TrimSpace(r.Header.Get(accountHeader))
	if account == "" {
		return "", apperrors.New(apperrors.CodeAccountEmpty, fmt.Sprintf("%s header is required", accountHeader))
	}
	return account, nil
}

// tokenAuth validates a bearer token and reads the account from its subject.
type tokenAuth struct {
	secret []byte
}

func (a tokenAuth) account(r *http.Request) (string, error) {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if header == "" {
		return "", apperrors.New(apperrors.CodeUnauthorized, "authorization header is required")
	}
	raw, found := strings.CutPrefix(header, "Bearer ")
	if !found {
		return "", apperrors.New(apperrors.CodeUnauthorized, "authorization header must use the Bearer scheme")
	}

	token, err := jwt.Parse(raw, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return a.secret, nil
	})
	if err != nil || !token.Valid {
		return "", apperrors.Wrap(apperrors.CodeUnauthorized, "invalid bearer token", err)
	}
	subject, err := token.Claims.GetSubject()
	if err != nil || strings.TrimSpace(subject) == "" {
		return "", apperrors.New(apperrors.CodeUnauthorized, "bearer token has no subject")
	}
	return strings.TrimSpace(subject), nil
}
