// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package api

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/stretchr/testify/require"

	"github.com/luxfi/ids"
)

func TestAuthenticatorRoundTrip(t *testing.T) {
	require := require.New(t)

	auth := NewAuthenticator([]byte("secret"))
	caller := ids.GenerateTestShortID()

	token, err := auth.Issue(caller, time.Minute)
	require.NoError(err)

	r := httptest.NewRequest(http.MethodPost, "/rpc", nil)
	r.Header.Set("Authorization", bearerPrefix+token)
	got, err := auth.Caller(r)
	require.NoError(err)
	require.Equal(caller, got)

	// tokens without expiry are accepted
	token, err = auth.Issue(caller, 0)
	require.NoError(err)
	got, err = auth.Verify(token)
	require.NoError(err)
	require.Equal(caller, got)
}

func TestAuthenticatorRejects(t *testing.T) {
	auth := NewAuthenticator([]byte("secret"))
	caller := ids.GenerateTestShortID()

	foreign, err := NewAuthenticator([]byte("other")).Issue(caller, time.Minute)
	require.NoError(t, err)

	expired, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Issuer:    tokenIssuer,
		Subject:   caller.String(),
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
	}).SignedString([]byte("secret"))
	require.NoError(t, err)

	wrongIssuer, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Issuer:  "someone-else",
		Subject: caller.String(),
	}).SignedString([]byte("secret"))
	require.NoError(t, err)

	badSubject, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Issuer:  tokenIssuer,
		Subject: "not-an-id",
	}).SignedString([]byte("secret"))
	require.NoError(t, err)

	unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.RegisteredClaims{
		Issuer:  tokenIssuer,
		Subject: caller.String(),
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	tests := []struct {
		name  string
		token string
	}{
		{name: "foreign secret", token: foreign},
		{name: "expired", token: expired},
		{name: "wrong issuer", token: wrongIssuer},
		{name: "bad subject", token: badSubject},
		{name: "unsigned", token: unsigned},
		{name: "garbage", token: "abc.def.ghi"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := auth.Verify(tt.token)
			require.ErrorIs(t, err, ErrInvalidToken)
		})
	}
}

func TestAuthenticatorMissingHeader(t *testing.T) {
	auth := NewAuthenticator([]byte("secret"))

	r := httptest.NewRequest(http.MethodPost, "/rpc", nil)
	_, err := auth.Caller(r)
	require.ErrorIs(t, err, ErrMissingToken)

	r.Header.Set("Authorization", "Basic dXNlcjpwYXNz")
	_, err = auth.Caller(r)
	require.ErrorIs(t, err, ErrMissingToken)
}
