// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Haven Contributors

// Package identity provides credential registration and verification for
// the Haven account service.
//
// # Domain Types
//
// An Identity is the durable record of a registered user: an opaque id,
// a normalized email used as the login key, and an argon2id hash of the
// chosen password. Identities are created through NewIdentity, which
// validates its inputs; direct struct initialization bypasses validation
// and may create invalid state.
//
// # Services
//
// Service coordinates the two operations exposed over HTTP:
//   - Register - normalize, hash, and persist a new Identity
//   - Login - verify credentials and mint a session token
//
// Service is created with NewService, which validates dependencies.
// The CredentialStore implementation lives in the postgres subpackage.
package identity
