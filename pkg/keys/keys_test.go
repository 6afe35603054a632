package keys

import (
	"encoding/base64"
	"errors"
	"os"
	"path/filepath"
	"regexp"
	"testing"
)

func TestLoadOrCreate(t *testing.T) {
	dir := t.TempDir()

	ident, err := LoadOrCreate(dir)
	if err != nil {
		t.Fatalf("failed to create identity: %v", err)
	}
	if ident.Private == nil || ident.Public == nil {
		t.Fatal("expected key material")
	}
	if !regexp.MustCompile(`^[0-9a-f]{64}$`).MatchString(ident.Fingerprint) {
		t.Errorf("fingerprint %q is not 64 hex chars", ident.Fingerprint)
	}

	t.Run("files written with private key protected", func(t *testing.T) {
		info, err := os.Stat(filepath.Join(dir, PrivateKeyFile))
		if err != nil {
			t.Fatalf("private key file missing: %v", err)
		}
		if perm := info.Mode().Perm(); perm != 0o600 {
			t.Errorf("expected mode 0600, got %o", perm)
		}
		if _, err := os.Stat(filepath.Join(dir, PublicKeyFile)); err != nil {
			t.Errorf("public key file missing: %v", err)
		}
	})

	t.Run("reload returns same identity", func(t *testing.T) {
		again, err := LoadOrCreate(dir)
		if err != nil {
			t.Fatalf("failed to reload identity: %v", err)
		}
		if again.Fingerprint != ident.Fingerprint {
			t.Errorf("fingerprint changed across reload: %s != %s", again.Fingerprint, ident.Fingerprint)
		}
	})

	t.Run("missing public half refuses to regenerate", func(t *testing.T) {
		if err := os.Remove(filepath.Join(dir, PublicKeyFile)); err != nil {
			t.Fatal(err)
		}
		if _, err := LoadOrCreate(dir); !errors.Is(err, ErrPartialKeyPair) {
			t.Errorf("expected ErrPartialKeyPair, got %v", err)
		}
	})
}

func TestParseClientKey(t *testing.T) {
	ident, err := LoadOrCreate(t.TempDir())
	if err != nil {
		t.Fatalf("failed to create identity: %v", err)
	}

	b64 := base64.StdEncoding.EncodeToString(ident.PublicDER)
	pub, err := ParseClientKey(b64)
	if err != nil {
		t.Fatalf("failed to parse client key: %v", err)
	}
	if pub.N.Cmp(ident.Public.N) != 0 {
		t.Error("parsed key does not match original")
	}

	t.Run("garbage rejected", func(t *testing.T) {
		if _, err := ParseClientKey("not base64!!"); err == nil {
			t.Error("expected error for invalid base64")
		}
		if _, err := ParseClientKey(base64.StdEncoding.EncodeToString([]byte("not der"))); err == nil {
			t.Error("expected error for invalid DER")
		}
	})
}

func TestFingerprintDER(t *testing.T) {
	// SHA-256 of the empty string, a fixed vector.
	if got := FingerprintDER(nil); got != "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855" {
		t.Errorf("unexpected fingerprint for empty input: %s", got)
	}
}
