// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Haven Contributors

// Package token mints and parses the HS256 session tokens issued on
// successful login. Parsing is exported as the shared verification
// contract: downstream services holding the same key validate tokens
// themselves, this service never sees them again.
package token

import (
	"encoding/base64"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/samber/oops"
)

// Issuer value for the iss claim.
const Issuer = "haven"

// Claims are the session token claims. The identity id travels in the
// registered subject claim; no secret material is ever embedded.
type Claims struct {
	jwt.RegisteredClaims
}

// HS256Issuer mints signed, time-bounded session tokens.
// The signing key is process-wide configuration, set once at startup.
type HS256Issuer struct {
	key []byte
	ttl time.Duration
}

// NewHS256Issuer creates an issuer with the given signing key and
// validity window.
func NewHS256Issuer(key []byte, ttl time.Duration) (*HS256Issuer, error) {
	if len(key) == 0 {
		return nil, oops.Code("TOKEN_EMPTY_KEY").Errorf("signing key cannot be empty")
	}
	if ttl <= 0 {
		return nil, oops.Code("TOKEN_INVALID_TTL").With("ttl", ttl).Errorf("token ttl must be positive")
	}
	return &HS256Issuer{key: key, ttl: ttl}, nil
}

// Issue mints a token embedding the identity id and an absolute expiry.
func (i *HS256Issuer) Issue(identityID string) (string, error) {
	if identityID == "" {
		return "", oops.Code("TOKEN_EMPTY_SUBJECT").Errorf("identity id cannot be empty")
	}

	now := time.Now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    Issuer,
			Subject:   identityID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.ttl)),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.key)
	if err != nil {
		return "", oops.Code("TOKEN_SIGN_FAILED").Wrap(err)
	}
	return signed, nil
}

// KeyPrefixBase64 marks a signing key encoded as unpadded url-safe
// base64, the form `havend keygen` emits.
const KeyPrefixBase64 = "base64:"

// DecodeKey turns a configured signing key string into key bytes.
// A "base64:" prefix selects unpadded url-safe base64 decoding; any
// other string is used verbatim, even when it happens to look like
// base64. Every verifier sharing the key must see the same string,
// prefix included.
func DecodeKey(s string) ([]byte, error) {
	encoded, found := strings.CutPrefix(s, KeyPrefixBase64)
	if !found {
		return []byte(s), nil
	}
	b, err := base64.RawURLEncoding.DecodeString(encoded)
	if err != nil {
		return nil, oops.Code("TOKEN_INVALID_KEY").Wrap(err)
	}
	return b, nil
}

// Parse validates a token's signature and expiry and returns its claims.
// This is the contract downstream verifiers honor; any alteration of the
// token invalidates the signature, and expired tokens are rejected.
func Parse(key []byte, tokenString string) (*Claims, error) {
	parsed, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, oops.Code("TOKEN_BAD_ALG").Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return key, nil
	}, jwt.WithExpirationRequired())
	if err != nil {
		return nil, oops.Code("TOKEN_INVALID").Wrap(err)
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, oops.Code("TOKEN_INVALID").Errorf("invalid token")
	}
	return claims, nil
}
