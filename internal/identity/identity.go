// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Haven Contributors

package identity

import (
	"context"
	"regexp"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// Email validation constraints.
const (
	// MaxEmailLength caps stored emails at the RFC 5321 mailbox limit.
	MaxEmailLength = 254
)

// emailRegex matches a basic local@domain shape. Anything stricter
// rejects real addresses; deliverability is the client's problem.
var emailRegex = regexp.MustCompile(`^[^@\s]+@[^@\s]+$`)

// Identity is a registered user's durable credential record.
type Identity struct {
	ID         ulid.ULID
	Email      string // normalized: trimmed, lowercased
	SecretHash string // argon2id PHC string, never the plaintext
	CreatedAt  time.Time
}

// NewIdentity creates a validated Identity with a fresh id.
// email must already be normalized; secretHash must be a computed hash.
func NewIdentity(email, secretHash string) (*Identity, error) {
	if err := ValidateEmail(email); err != nil {
		return nil, err
	}
	if secretHash == "" {
		return nil, oops.Code("IDENTITY_EMPTY_HASH").Errorf("secret hash cannot be empty")
	}
	return &Identity{
		ID:         ulid.Make(),
		Email:      email,
		SecretHash: secretHash,
		CreatedAt:  time.Now(),
	}, nil
}

// NormalizeEmail returns the canonical form of an email used as the
// uniqueness key: surrounding whitespace stripped, lowercased.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// ValidateEmail validates a normalized email against the local@domain
// shape and the length cap.
func ValidateEmail(email string) error {
	if email == "" {
		return oops.Code("IDENTITY_INVALID_EMAIL").
			Wrapf(ErrInvalidInput, "email cannot be empty")
	}
	if len(email) > MaxEmailLength {
		return oops.Code("IDENTITY_INVALID_EMAIL").
			With("max", MaxEmailLength).
			Wrapf(ErrInvalidInput, "email must be at most %d characters", MaxEmailLength)
	}
	if !emailRegex.MatchString(email) {
		return oops.Code("IDENTITY_INVALID_EMAIL").
			Wrapf(ErrInvalidInput, "email must have a local@domain shape")
	}
	return nil
}

// CredentialStore manages Identity persistence, keyed by normalized email.
//
// Implementations enforce email uniqueness atomically: two concurrent
// Insert calls for the same email must not both succeed, and the losing
// call returns ErrDuplicateIdentity. There is no update or delete; an
// Identity is absent until inserted and present forever after.
type CredentialStore interface {
	// FindByEmail retrieves an Identity by normalized email.
	// Returns ErrNotFound if no Identity has the given email.
	FindByEmail(ctx context.Context, email string) (*Identity, error)

	// Insert stores a new Identity.
	// Returns ErrDuplicateIdentity if the email is already taken.
	Insert(ctx context.Context, identity *Identity) error
}
