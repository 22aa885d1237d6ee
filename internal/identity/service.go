// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Haven Contributors

package identity

import (
	"context"
	"errors"

	"github.com/samber/oops"
)

// TokenIssuer mints a session token for an authenticated identity.
// The concrete implementation lives in internal/token.
type TokenIssuer interface {
	Issue(identityID string) (string, error)
}

// Service provides the registration and login operations.
type Service struct {
	store          CredentialStore
	hasher         PasswordHasher
	issuer         TokenIssuer
	minPasswordLen int
}

// dummyHash is verified against when no identity exists for the email,
// so that lookup misses and password mismatches take the same time.
// This is NOT a real credential - it can never match any password.
//
//nolint:gosec // G101: intentionally fake hash for timing attack prevention, not a credential.
const dummyHash = "$argon2id$v=19$m=65536,t=1,p=4$AAAAAAAAAAAAAAAAAAAAAA$AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA"

// NewService creates a new Service. minPasswordLen below 1 is raised to 1;
// a password must always be non-empty.
func NewService(store CredentialStore, hasher PasswordHasher, issuer TokenIssuer, minPasswordLen int) (*Service, error) {
	if store == nil {
		return nil, oops.Code("SERVICE_INVALID_DEPS").Errorf("credential store is required")
	}
	if hasher == nil {
		return nil, oops.Code("SERVICE_INVALID_DEPS").Errorf("password hasher is required")
	}
	if issuer == nil {
		return nil, oops.Code("SERVICE_INVALID_DEPS").Errorf("token issuer is required")
	}
	if minPasswordLen < 1 {
		minPasswordLen = 1
	}
	return &Service{
		store:          store,
		hasher:         hasher,
		issuer:         issuer,
		minPasswordLen: minPasswordLen,
	}, nil
}

// Register normalizes the email, hashes the password, and persists a new
// Identity. Uniqueness is enforced by the store in a single atomic insert;
// there is no check-then-act window. The returned Identity carries the
// secret hash and must not be serialized to any client.
func (s *Service) Register(ctx context.Context, email, password string) (*Identity, error) {
	email = NormalizeEmail(email)
	if err := ValidateEmail(email); err != nil {
		return nil, err
	}
	if len(password) < s.minPasswordLen {
		return nil, oops.Code("AUTH_INVALID_PASSWORD").
			With("min", s.minPasswordLen).
			Wrapf(ErrInvalidInput, "password must be at least %d characters", s.minPasswordLen)
	}

	secretHash, err := s.hasher.Hash(password)
	if err != nil {
		return nil, oops.Code("AUTH_HASH_FAILED").
			With("operation", "hash password").
			Wrapf(errors.Join(ErrStoreUnavailable, err), "hashing failed")
	}

	ident, err := NewIdentity(email, secretHash)
	if err != nil {
		return nil, err
	}

	if err := s.store.Insert(ctx, ident); err != nil {
		if errors.Is(err, ErrDuplicateIdentity) {
			return nil, oops.Code("AUTH_DUPLICATE_IDENTITY").
				With("operation", "insert identity").
				Wrap(err)
		}
		return nil, oops.Code("AUTH_STORE_FAILED").
			With("operation", "insert identity").
			Wrapf(errors.Join(ErrStoreUnavailable, err), "insert failed")
	}

	return ident, nil
}

// Login verifies the credentials and mints a session token on success.
// Unknown emails and wrong passwords return the same error after the
// same amount of work: a hash verification always runs, against a dummy
// hash when the identity does not exist.
func (s *Service) Login(ctx context.Context, email, password string) (string, error) {
	email = NormalizeEmail(email)

	ident, lookupErr := s.store.FindByEmail(ctx, email)

	targetHash := dummyHash
	exists := false
	switch {
	case lookupErr == nil:
		targetHash = ident.SecretHash
		exists = true
	case errors.Is(lookupErr, ErrNotFound):
		// Verify against the dummy hash below to keep timing flat.
	default:
		return "", oops.Code("AUTH_STORE_FAILED").
			With("operation", "find identity by email").
			Wrapf(errors.Join(ErrStoreUnavailable, lookupErr), "lookup failed")
	}

	valid, verifyErr := s.hasher.Verify(password, targetHash)
	if verifyErr != nil {
		if !exists {
			return "", oops.Code("AUTH_INVALID_CREDENTIALS").Wrap(ErrInvalidCredentials)
		}
		return "", oops.Code("AUTH_HASH_FAILED").
			With("operation", "verify password").
			Wrapf(errors.Join(ErrStoreUnavailable, verifyErr), "verification failed")
	}

	if !exists || !valid {
		return "", oops.Code("AUTH_INVALID_CREDENTIALS").Wrap(ErrInvalidCredentials)
	}

	tok, err := s.issuer.Issue(ident.ID.String())
	if err != nil {
		return "", oops.Code("AUTH_TOKEN_ISSUE_FAILED").
			With("operation", "issue session token").
			Wrapf(errors.Join(ErrStoreUnavailable, err), "token issuance failed")
	}

	return tok, nil
}
