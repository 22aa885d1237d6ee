// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Haven Contributors

package identity

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/samber/oops"
	"golang.org/x/crypto/argon2"
)

// OWASP-recommended argon2id parameters.
const (
	argon2Time    = 1         // iterations
	argon2Memory  = 64 * 1024 // 64 MB
	argon2Threads = 4         // parallelism
	argon2SaltLen = 16        // salt length in bytes
	argon2KeyLen  = 32        // output length in bytes
)

// ErrEmptyPassword is returned when attempting to hash an empty password.
var ErrEmptyPassword = oops.Code("HASH_EMPTY_PASSWORD").Errorf("password cannot be empty")

// PasswordHasher provides password hashing and verification.
type PasswordHasher interface {
	// Hash produces a salted argon2id hash of the password. The salt is
	// generated fresh per call and embedded in the returned string.
	Hash(password string) (string, error)

	// Verify checks if the password matches the hash.
	// Returns (true, nil) on match, (false, nil) on mismatch, or error on invalid hash.
	Verify(password, hash string) (bool, error)
}

// Argon2idHasher implements PasswordHasher using argon2id.
type Argon2idHasher struct{}

// NewArgon2idHasher creates a new Argon2idHasher.
func NewArgon2idHasher() *Argon2idHasher {
	return &Argon2idHasher{}
}

// Hash produces an argon2id hash of the password in PHC string format:
// $argon2id$v=19$m=65536,t=1,p=4$<salt>$<hash>
func (h *Argon2idHasher) Hash(password string) (string, error) {
	if password == "" {
		return "", ErrEmptyPassword
	}

	salt := make([]byte, argon2SaltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", oops.Code("HASH_SALT_FAILED").Wrap(err)
	}

	key := argon2.IDKey([]byte(password), salt, argon2Time, argon2Memory, argon2Threads, argon2KeyLen)

	encoded := fmt.Sprintf(
		"$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version,
		argon2Memory,
		argon2Time,
		argon2Threads,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key),
	)

	return encoded, nil
}

// Verify checks if the password matches the hash. The parameters are
// read back from the PHC string, so hashes survive future parameter bumps.
func (h *Argon2idHasher) Verify(password, encodedHash string) (bool, error) {
	salt, expected, params, err := decodePHC(encodedHash)
	if err != nil {
		return false, err
	}

	computed := argon2.IDKey([]byte(password), salt, params.time, params.memory, params.threads, uint32(len(expected)))

	return subtle.ConstantTimeCompare(computed, expected) == 1, nil
}

type argon2Params struct {
	memory  uint32
	time    uint32
	threads uint8
}

// decodePHC parses a $argon2id$ PHC string into salt, key, and parameters.
func decodePHC(encodedHash string) ([]byte, []byte, argon2Params, error) {
	var p argon2Params

	parts := strings.Split(encodedHash, "$")
	if len(parts) != 6 {
		return nil, nil, p, oops.Code("HASH_INVALID").Errorf("invalid hash format")
	}
	if parts[1] != "argon2id" {
		return nil, nil, p, oops.Code("HASH_INVALID").Errorf("unsupported hash algorithm: %s", parts[1])
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil {
		return nil, nil, p, oops.Code("HASH_INVALID").Wrap(err)
	}

	var memory, time, threads uint32
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &memory, &time, &threads); err != nil {
		return nil, nil, p, oops.Code("HASH_INVALID").Wrap(err)
	}
	// Threads must fit in uint8 for argon2.IDKey; reject silent truncation.
	if threads > 255 {
		return nil, nil, p, oops.Code("HASH_INVALID").Errorf("threads value %d exceeds uint8 max", threads)
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return nil, nil, p, oops.Code("HASH_INVALID").Wrap(err)
	}

	key, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil {
		return nil, nil, p, oops.Code("HASH_INVALID").Wrap(err)
	}
	if len(key) == 0 || len(key) > 1<<30 {
		return nil, nil, p, oops.Code("HASH_INVALID").Errorf("invalid hash key length: %d", len(key))
	}

	p.memory = memory
	p.time = time
	p.threads = uint8(threads)
	return salt, key, p, nil
}
