// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Haven Contributors

package main

import (
	"crypto/rand"
	"encoding/base64"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/havenwell/haven/internal/token"
)

const signingKeyBytes = 32

// NewKeygenCmd creates the keygen subcommand.
func NewKeygenCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "keygen",
		Short: "Generate a token signing key",
		Long: `Generate a random 256-bit signing key, printed as unpadded
url-safe base64 with the "base64:" prefix the loader expects. Set it as
HAVEN_TOKEN_KEY (or token.signing_key in the config file) on every
service that issues or verifies session tokens.`,
		RunE: runKeygen,
	}
}

func runKeygen(cmd *cobra.Command, _ []string) error {
	key, err := generateSigningKey()
	if err != nil {
		return err
	}
	cmd.Println(key)
	return nil
}

// generateSigningKey returns a fresh random key in the encoding
// DecodeKey accepts.
func generateSigningKey() (string, error) {
	buf := make([]byte, signingKeyBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", oops.Code("KEYGEN_FAILED").Wrap(err)
	}
	return token.KeyPrefixBase64 + base64.RawURLEncoding.EncodeToString(buf), nil
}
