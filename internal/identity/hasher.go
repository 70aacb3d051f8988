// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Koinonia Contributors

// Package identity provides accounts, credentials, and sessions for
// Koinonia.
package identity

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"

	"github.com/samber/oops"
	"golang.org/x/crypto/pbkdf2"
)

// PBKDF2-SHA256 parameters for newly created credentials.
const (
	pbkdf2Iterations = 200000
	pbkdf2SaltLen    = 16 // salt length in bytes
	pbkdf2KeyLen     = 32 // derived key length in bytes
)

// pbkdf2Prefix tags hashes produced by the strong scheme. Stored hashes
// without it are treated as legacy SHA-256 digests.
const pbkdf2Prefix = "pbkdf2_sha256$"

// ErrEmptyPassword is returned when attempting to hash an empty password.
var ErrEmptyPassword = oops.Code("IDENTITY_EMPTY_PASSWORD").Errorf("password cannot be empty")

// VerifyResult is the outcome of a credential check.
type VerifyResult struct {
	// Match is true when the plaintext matches the stored hash under
	// whichever scheme the hash encodes.
	Match bool

	// NeedsUpgrade is true when the match was made against a legacy
	// hash and the credential should be re-hashed with the strong
	// scheme on this login.
	NeedsUpgrade bool
}

// Hasher provides credential hashing and verification.
type Hasher interface {
	// Hash produces a strong-scheme hash of the password.
	Hash(password string) (string, error)

	// Verify checks the password against a stored hash. A malformed
	// stored hash verifies as a non-match, never as an error the
	// caller could surface distinctly.
	Verify(password, stored string) VerifyResult
}

// PBKDF2Hasher implements Hasher using PBKDF2-SHA256 with a
// backward-compatible path for legacy bare SHA-256 hashes.
type PBKDF2Hasher struct{}

// NewPBKDF2Hasher creates a new PBKDF2Hasher.
func NewPBKDF2Hasher() *PBKDF2Hasher {
	return &PBKDF2Hasher{}
}

// Hash produces a strong hash of the password. The stored form encodes
// scheme, iteration count, salt, and derived key so verification is
// self-describing and the iteration count can be raised later without
// breaking existing hashes:
//
//	pbkdf2_sha256$<iterations>$<salt-hex>$<key-hex>
func (h *PBKDF2Hasher) Hash(password string) (string, error) {
	if password == "" {
		return "", ErrEmptyPassword
	}

	salt := make([]byte, pbkdf2SaltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", oops.Code("IDENTITY_SALT_FAILED").Wrap(err)
	}

	key := pbkdf2.Key([]byte(password), salt, pbkdf2Iterations, pbkdf2KeyLen, sha256.New)

	return fmt.Sprintf("%s%d$%s$%s",
		pbkdf2Prefix,
		pbkdf2Iterations,
		hex.EncodeToString(salt),
		hex.EncodeToString(key),
	), nil
}

// Verify checks the password against a stored hash, dispatching on the
// scheme the hash encodes. Both paths finish with a constant-time
// comparison, and malformed hashes fall through to a non-match so the
// caller cannot enumerate hash formats from the response.
func (h *PBKDF2Hasher) Verify(password, stored string) VerifyResult {
	if strings.HasPrefix(stored, pbkdf2Prefix) {
		return VerifyResult{Match: h.verifyStrong(password, stored)}
	}
	match := verifyLegacy(password, stored)
	return VerifyResult{Match: match, NeedsUpgrade: match}
}

func (h *PBKDF2Hasher) verifyStrong(password, stored string) bool {
	rest := strings.TrimPrefix(stored, pbkdf2Prefix)
	parts := strings.SplitN(rest, "$", 3)
	if len(parts) != 3 {
		return false
	}

	iterations, err := strconv.Atoi(parts[0])
	if err != nil || iterations <= 0 {
		return false
	}
	salt, err := hex.DecodeString(parts[1])
	if err != nil {
		return false
	}
	expected, err := hex.DecodeString(parts[2])
	if err != nil || len(expected) == 0 {
		return false
	}

	computed := pbkdf2.Key([]byte(password), salt, iterations, len(expected), sha256.New)
	return subtle.ConstantTimeCompare(computed, expected) == 1
}

// verifyLegacy checks the password against a pre-migration bare SHA-256
// hex digest. Retained only so existing accounts keep working until
// their first successful login re-hashes them.
func verifyLegacy(password, stored string) bool {
	sum := sha256.Sum256([]byte(password))
	computed := hex.EncodeToString(sum[:])
	return subtle.ConstantTimeCompare([]byte(computed), []byte(stored)) == 1
}
