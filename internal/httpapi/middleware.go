// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Haven Contributors

package httpapi

import (
	"mime"
	"net/http"
)

// withCORS opens the API to all origins. The mobile client has no fixed
// origin, so the policy is deliberately permissive; credentials never
// travel in cookies.
func withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// requireJSON rejects request bodies that are not declared as JSON.
func requireJSON(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ct := r.Header.Get("Content-Type")
		mediaType, _, err := mime.ParseMediaType(ct)
		if err != nil || mediaType != "application/json" {
			writeJSON(w, http.StatusBadRequest, messageResponse{Message: "Request body must be JSON"})
			return
		}
		next(w, r)
	}
}
