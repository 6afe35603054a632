// Package keys manages the server's long-lived RSA identity: a 2048-bit
// keypair persisted as PEM files under the storage directory, plus the
// SHA-256 fingerprint of the public key that clients pin.
package keys

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/hex"
	"encoding/pem"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

const (
	// PrivateKeyFile is the on-disk name of the PKCS#8 private key.
	PrivateKeyFile = "server_private_key.pem"

	// PublicKeyFile is the on-disk name of the SPKI public key.
	PublicKeyFile = "server_public_key.pem"

	keyBits = 2048
)

// ErrPartialKeyPair is returned when exactly one of the two key files
// exists; regenerating silently would change the server identity behind
// the operator's back.
var ErrPartialKeyPair = errors.New("one key file present without its pair")

// Identity is the server's RSA keypair with derived material cached.
type Identity struct {
	Private     *rsa.PrivateKey
	Public      *rsa.PublicKey
	PublicDER   []byte
	Fingerprint string
}

// LoadOrCreate returns the identity stored in dir, generating and
// persisting a fresh 2048-bit pair when neither file exists. The
// directory is created on demand; the private key file is written 0600.
func LoadOrCreate(dir string) (*Identity, error) {
	privPath := filepath.Join(dir, PrivateKeyFile)
	pubPath := filepath.Join(dir, PublicKeyFile)

	privExists := fileExists(privPath)
	pubExists := fileExists(pubPath)

	switch {
	case privExists && pubExists:
		return load(privPath, pubPath)
	case privExists != pubExists:
		return nil, fmt.Errorf("loading server keys from %s: %w", dir, ErrPartialKeyPair)
	}

	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("creating key directory %s: %w", dir, err)
	}

	priv, err := rsa.GenerateKey(rand.Reader, keyBits)
	if err != nil {
		return nil, fmt.Errorf("generating server key: %w", err)
	}

	privDER, err := x509.MarshalPKCS8PrivateKey(priv)
	if err != nil {
		return nil, fmt.Errorf("encoding private key: %w", err)
	}
	pubDER, err := x509.MarshalPKIXPublicKey(&priv.PublicKey)
	if err != nil {
		return nil, fmt.Errorf("encoding public key: %w", err)
	}

	privPEM := pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: privDER})
	pubPEM := pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: pubDER})

	if err := writeFileAtomic(privPath, privPEM, 0o600); err != nil {
		return nil, fmt.Errorf("writing private key: %w", err)
	}
	if err := writeFileAtomic(pubPath, pubPEM, 0o644); err != nil {
		return nil, fmt.Errorf("writing public key: %w", err)
	}

	return newIdentity(priv, pubDER), nil
}

func load(privPath, pubPath string) (*Identity, error) {
	privPEM, err := os.ReadFile(privPath)
	if err != nil {
		return nil, fmt.Errorf("reading private key: %w", err)
	}
	block, _ := pem.Decode(privPEM)
	if block == nil {
		return nil, fmt.Errorf("parsing %s: no PEM block found", privPath)
	}
	parsed, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("parsing private key: %w", err)
	}
	priv, ok := parsed.(*rsa.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("parsing private key: not an RSA key")
	}

	// The public file is authoritative for the published identity; it
	// must match the private key rather than be derived from it.
	pubPEM, err := os.ReadFile(pubPath)
	if err != nil {
		return nil, fmt.Errorf("reading public key: %w", err)
	}
	block, _ = pem.Decode(pubPEM)
	if block == nil {
		return nil, fmt.Errorf("parsing %s: no PEM block found", pubPath)
	}
	pub, err := ParsePublicDER(block.Bytes)
	if err != nil {
		return nil, err
	}
	if pub.N.Cmp(priv.N) != 0 || pub.E != priv.E {
		return nil, fmt.Errorf("key files in %s do not form a pair", filepath.Dir(privPath))
	}

	return newIdentity(priv, block.Bytes), nil
}

func newIdentity(priv *rsa.PrivateKey, pubDER []byte) *Identity {
	return &Identity{
		Private:     priv,
		Public:      &priv.PublicKey,
		PublicDER:   pubDER,
		Fingerprint: FingerprintDER(pubDER),
	}
}

// FingerprintDER computes the lowercase hex SHA-256 of a DER-encoded
// SubjectPublicKeyInfo.
func FingerprintDER(der []byte) string {
	sum := sha256.Sum256(der)
	return hex.EncodeToString(sum[:])
}

// ParsePublicDER parses a DER SubjectPublicKeyInfo into an RSA public key.
func ParsePublicDER(der []byte) (*rsa.PublicKey, error) {
	parsed, err := x509.ParsePKIXPublicKey(der)
	if err != nil {
		return nil, fmt.Errorf("parsing public key: %w", err)
	}
	pub, ok := parsed.(*rsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("parsing public key: not an RSA key")
	}
	return pub, nil
}

// ParseClientKey decodes the handshake client_key field: base64 of a
// DER SubjectPublicKeyInfo.
func ParseClientKey(b64 string) (*rsa.PublicKey, error) {
	der, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		return nil, fmt.Errorf("decoding client key: %w", err)
	}
	return ParsePublicDER(der)
}

// MarshalPublicDER encodes an RSA public key as DER SubjectPublicKeyInfo.
func MarshalPublicDER(pub *rsa.PublicKey) ([]byte, error) {
	der, err := x509.MarshalPKIXPublicKey(pub)
	if err != nil {
		return nil, fmt.Errorf("encoding public key: %w", err)
	}
	return der, nil
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// writeFileAtomic writes via a temp file and rename so a crash cannot
// leave a truncated key on disk.
func writeFileAtomic(path string, data []byte, perm os.FileMode) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".key-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if err := tmp.Chmod(perm); err != nil {
		tmp.Close()
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}
