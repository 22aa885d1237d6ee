// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Haven Contributors

package identity

import "errors"

// Error taxonomy surfaced to the HTTP boundary. Callers classify with
// errors.Is; the oops wrapping above each sentinel carries machine codes
// and context for logs only.
var (
	// ErrInvalidInput is returned for malformed emails or unacceptable passwords.
	ErrInvalidInput = errors.New("invalid input")

	// ErrDuplicateIdentity is returned when the normalized email is already registered.
	ErrDuplicateIdentity = errors.New("email already registered")

	// ErrInvalidCredentials is returned for both unknown emails and wrong
	// passwords, deliberately indistinguishable to prevent account enumeration.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrStoreUnavailable is returned when persistence, hashing, or token
	// issuance fails for internal reasons. Retryable.
	ErrStoreUnavailable = errors.New("credential store unavailable")

	// ErrNotFound is returned by CredentialStore lookups for absent identities.
	ErrNotFound = errors.New("not found")
)
