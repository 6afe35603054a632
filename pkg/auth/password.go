// Package auth implements credential handling for the chat server.
//
// Passwords are hashed under one of two schemes selected by
// configuration:
//
//   - md5: hex MD5 digests, compatible with databases written by
//     earlier deployments
//   - bcrypt: adaptive cost hashing, recommended for new installations
//
// Verification is scheme-agnostic: bcrypt hashes are recognised by
// their prefix, so an operator can switch the configured scheme without
// invalidating stored credentials. Accounts without a stored hash never
// verify; they authenticate by email alone at the protocol layer.
package auth

import (
	"crypto/md5"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// Scheme identifies a password hash algorithm.
type Scheme string

const (
	// SchemeMD5 stores hex MD5 digests.
	SchemeMD5 Scheme = "md5"

	// SchemeBcrypt stores bcrypt hashes at the default cost.
	SchemeBcrypt Scheme = "bcrypt"
)

// ErrUnknownScheme is returned for a scheme outside the supported set.
var ErrUnknownScheme = errors.New("unknown password hash scheme")

// Hasher hashes and verifies passwords under a configured scheme.
type Hasher struct {
	scheme Scheme
}

// NewHasher returns a hasher for the given scheme. An empty scheme
// falls back to md5.
func NewHasher(scheme Scheme) (*Hasher, error) {
	switch scheme {
	case "":
		return &Hasher{scheme: SchemeMD5}, nil
	case SchemeMD5, SchemeBcrypt:
		return &Hasher{scheme: scheme}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownScheme, scheme)
	}
}

// Scheme returns the configured hash scheme.
func (h *Hasher) Scheme() Scheme {
	return h.scheme
}

// Hash returns the stored form of a password under the configured
// scheme.
func (h *Hasher) Hash(password string) (string, error) {
	switch h.scheme {
	case SchemeBcrypt:
		hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
		if err != nil {
			return "", fmt.Errorf("hashing password: %w", err)
		}
		return string(hash), nil
	default:
		sum := md5.Sum([]byte(password))
		return hex.EncodeToString(sum[:]), nil
	}
}

// Verify reports whether password matches the stored hash. The hash
// format decides the algorithm, not the configured scheme, so databases
// written under either scheme keep verifying after a switch.
func (h *Hasher) Verify(hash, password string) bool {
	if hash == "" {
		return false
	}
	if strings.HasPrefix(hash, "$2") {
		return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
	}
	sum := md5.Sum([]byte(password))
	digest := hex.EncodeToString(sum[:])
	return subtle.ConstantTimeCompare([]byte(digest), []byte(hash)) == 1
}
