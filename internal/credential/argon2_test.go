package credential

import (
	"strings"
	"testing"
)

var testHashParams = HashParams{Time: 1, Memory: 64, Threads: 1, KeyLen: 16, SaltLen: 8}

func TestHasher_Format(t *testing.T) {
	t.Parallel()

	hash, err := NewHasher(DefaultHashParams).Hash("correct horse battery")
	if err != nil {
		t.Fatalf("Hash failed: %v", err)
	}

	parts := strings.Split(hash, "$")
	if len(parts) != 6 {
		t.Fatalf("Hash should have 6 parts, got: %d", len(parts))
	}
	if parts[1] != "argon2id" {
		t.Errorf("Expected argon2id algorithm, got: %s", parts[1])
	}
	if parts[3] != "m=65536,t=3,p=4" {
		t.Errorf("Expected m=65536,t=3,p=4, got: %s", parts[3])
	}
}

func TestHasher_Verify(t *testing.T) {
	t.Parallel()

	h := NewHasher(testHashParams)
	hash, err := h.Hash("s3cret-password")
	if err != nil {
		t.Fatalf("Hash failed: %v", err)
	}

	tests := []struct {
		name     string
		password string
		want     bool
	}{
		{"correct", "s3cret-password", true},
		{"wrong", "s3cret-passwore", false},
		{"empty", "", false},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			ok, err := h.Verify(tt.password, hash)
			if err != nil {
				t.Fatalf("Verify failed: %v", err)
			}
			if ok != tt.want {
				t.Errorf("Verify(%q) = %v, want %v", tt.password, ok, tt.want)
			}
		})
	}
}

func TestHasher_VerifyUsesStoredParams(t *testing.T) {
	t.Parallel()

	hash, err := NewHasher(testHashParams).Hash("pw-12345678")
	if err != nil {
		t.Fatalf("Hash failed: %v", err)
	}

	// A hasher configured with different costs still verifies older hashes.
	ok, err := NewHasher(DefaultHashParams).Verify("pw-12345678", hash)
	if err != nil || !ok {
		t.Fatalf("Verify = %v, %v; want true, nil", ok, err)
	}
}

func TestHasher_InvalidHash(t *testing.T) {
	t.Parallel()

	h := NewHasher(testHashParams)
	for _, bad := range []string{
		"",
		"plaintext",
		"$argon2i$v=19$m=64,t=1,p=1$c2FsdA$aGFzaA",
		"$argon2id$v=19$m=64,t=1,p=1$!!!$aGFzaA",
	} {
		if _, err := h.Verify("x", bad); err != ErrInvalidHash {
			t.Errorf("Verify(%q) err = %v, want ErrInvalidHash", bad, err)
		}
	}

	if _, err := h.Verify("x", "$argon2id$v=16$m=64,t=1,p=1$c2FsdA$aGFzaA"); err != ErrIncompatibleVersion {
		t.Errorf("old version err = %v, want ErrIncompatibleVersion", err)
	}
}
