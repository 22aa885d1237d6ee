// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Haven Contributors

package httpapi

// DTOs for the JSON payloads consumed by the mobile client's api wrapper.
// The wire contract is frozen: the deployed clients parse exactly these
// shapes. Unknown request fields (the legacy client still posts a
// username on register) are accepted and ignored.

// credentialsRequest is the body of both /api/register and /api/login.
type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// messageResponse is every non-login response, success and failure alike.
type messageResponse struct {
	Message string `json:"message"`
}

// loginResponse carries the session token on successful login.
type loginResponse struct {
	Token   string `json:"token"`
	Message string `json:"message"`
}
