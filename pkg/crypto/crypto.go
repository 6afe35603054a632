// Package crypto implements the primitive operations of the secure
// transport: AES-256-GCM sealing of application packets, RSA-OAEP
// wrapping of session keys, RSA-PSS signatures over key material, and
// the minting of session ids, message ids and AEAD nonces.
package crypto

import (
	"crypto"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	// SessionKeySize is the AES-256 key length in bytes.
	SessionKeySize = 32

	// NonceSize is the AES-GCM nonce length in bytes (96 bits).
	NonceSize = 12

	// pssSaltLength matches the handshake signature parameters; verify
	// accepts any salt so clients are free to use auto-detection.
	pssSaltLength = 32
)

// ErrDecrypt is returned when an AEAD open fails. The cause (wrong key,
// truncation, tamper) is deliberately not distinguished.
var ErrDecrypt = errors.New("invalid key or message")

// NewSessionID mints a 128-bit random session identifier, lowercase hex.
func NewSessionID() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("minting session id: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// NewID mints a UUIDv4-based identifier: 32 hex chars, no dashes.
// Message, user and room ids all use this form.
func NewID() string {
	return strings.ReplaceAll(uuid.New().String(), "-", "")
}

// NewSessionKey mints a 256-bit AES session key.
func NewSessionKey() ([]byte, error) {
	key := make([]byte, SessionKeySize)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("minting session key: %w", err)
	}
	return key, nil
}

// NewNonce mints a 96-bit AEAD nonce: the current Unix time in
// nanoseconds in the upper 64 bits and 32 random bits below, big-endian.
// The layout makes collisions vanishingly unlikely, but uniqueness is
// guaranteed only by the nonce ledger, never assumed here.
func NewNonce() ([]byte, error) {
	var suffix [4]byte
	if _, err := rand.Read(suffix[:]); err != nil {
		return nil, fmt.Errorf("minting nonce: %w", err)
	}
	nonce := make([]byte, NonceSize)
	binary.BigEndian.PutUint64(nonce[:8], uint64(time.Now().UnixNano()))
	copy(nonce[8:], suffix[:])
	return nonce, nil
}

// Seal encrypts plaintext with AES-256-GCM. The tag is appended to the
// ciphertext; no associated data is used.
func Seal(key, nonce, plaintext []byte) ([]byte, error) {
	aead, err := newGCM(key)
	if err != nil {
		return nil, err
	}
	if len(nonce) != NonceSize {
		return nil, fmt.Errorf("sealing: nonce must be %d bytes, got %d", NonceSize, len(nonce))
	}
	return aead.Seal(nil, nonce, plaintext, nil), nil
}

// Open decrypts and authenticates a Seal output. Any failure reports
// ErrDecrypt.
func Open(key, nonce, ciphertext []byte) ([]byte, error) {
	aead, err := newGCM(key)
	if err != nil {
		return nil, err
	}
	if len(nonce) != NonceSize {
		return nil, ErrDecrypt
	}
	plaintext, err := aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, ErrDecrypt
	}
	return plaintext, nil
}

func newGCM(key []byte) (cipher.AEAD, error) {
	if len(key) != SessionKeySize {
		return nil, fmt.Errorf("session key must be %d bytes, got %d", SessionKeySize, len(key))
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("initialising cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("initialising GCM: %w", err)
	}
	return aead, nil
}

// WrapKey encrypts a session key under the client's public key with
// RSA-OAEP (SHA-256 for both the hash and MGF1, no label).
func WrapKey(clientPub *rsa.PublicKey, key []byte) ([]byte, error) {
	wrapped, err := rsa.EncryptOAEP(sha256.New(), rand.Reader, clientPub, key, nil)
	if err != nil {
		return nil, fmt.Errorf("wrapping session key: %w", err)
	}
	return wrapped, nil
}

// UnwrapKey reverses WrapKey with the holder's private key.
func UnwrapKey(priv *rsa.PrivateKey, wrapped []byte) ([]byte, error) {
	key, err := rsa.DecryptOAEP(sha256.New(), rand.Reader, priv, wrapped, nil)
	if err != nil {
		return nil, fmt.Errorf("unwrapping session key: %w", err)
	}
	return key, nil
}

// Sign produces an RSA-PSS signature over data with SHA-256 and a
// 32-byte salt.
func Sign(priv *rsa.PrivateKey, data []byte) ([]byte, error) {
	digest := sha256.Sum256(data)
	sig, err := rsa.SignPSS(rand.Reader, priv, crypto.SHA256, digest[:], &rsa.PSSOptions{
		SaltLength: pssSaltLength,
		Hash:       crypto.SHA256,
	})
	if err != nil {
		return nil, fmt.Errorf("signing: %w", err)
	}
	return sig, nil
}

// Verify checks an RSA-PSS signature over data, detecting the salt
// length from the signature itself.
func Verify(pub *rsa.PublicKey, data, sig []byte) error {
	digest := sha256.Sum256(data)
	err := rsa.VerifyPSS(pub, crypto.SHA256, digest[:], sig, &rsa.PSSOptions{
		SaltLength: rsa.PSSSaltLengthAuto,
		Hash:       crypto.SHA256,
	})
	if err != nil {
		return fmt.Errorf("verifying signature: %w", err)
	}
	return nil
}
