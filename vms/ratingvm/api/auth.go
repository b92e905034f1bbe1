// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/luxfi/ids"
)

const (
	bearerPrefix = "Bearer "
	tokenIssuer  = "ratingvm"
)

var (
	ErrMissingToken = errors.New("missing bearer token")
	ErrInvalidToken = errors.New("invalid bearer token")
)

// Authenticator binds JSON-RPC callers to identities with HS256 JWTs. The
// token subject is the caller's short ID.
type Authenticator struct {
	secret []byte
}

func NewAuthenticator(secret []byte) *Authenticator {
	return &Authenticator{secret: secret}
}

// Issue returns a token for caller that expires after ttl. A zero ttl
// issues a token without expiry.
func (a *Authenticator) Issue(caller ids.ShortID, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Issuer:   tokenIssuer,
		Subject:  caller.String(),
		IssuedAt: jwt.NewNumericDate(now),
	}
	if ttl > 0 {
		claims.ExpiresAt = jwt.NewNumericDate(now.Add(ttl))
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
}

// Caller returns the identity carried by the request's bearer token.
func (a *Authenticator) Caller(r *http.Request) (ids.ShortID, error) {
	header := r.Header.Get("Authorization")
	if !strings.HasPrefix(header, bearerPrefix) {
		return ids.ShortEmpty, ErrMissingToken
	}
	return a.Verify(strings.TrimPrefix(header, bearerPrefix))
}

// Verify parses token and returns its subject.
func (a *Authenticator) Verify(token string) (ids.ShortID, error) {
	claims := &jwt.RegisteredClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %s", t.Header["alg"])
		}
		return a.secret, nil
	})
	if err != nil {
		return ids.ShortEmpty, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	if !parsed.Valid || claims.Issuer != tokenIssuer {
		return ids.ShortEmpty, ErrInvalidToken
	}
	caller, err := ids.ShortFromString(claims.Subject)
	if err != nil {
		return ids.ShortEmpty, fmt.Errorf("%w: subject: %w", ErrInvalidToken, err)
	}
	return caller, nil
}
