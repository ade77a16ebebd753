package vault_test

import (
	"errors"
	"testing"

	"github.com/ruralhealth/screening-api/internal/domain"
	"github.com/ruralhealth/screening-api/internal/vault"
)

func newVault(t *testing.T) *vault.Vault {
	t.Helper()
	key, err := vault.GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	v, err := vault.New(key)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return v
}

func TestRoundTrip(t *testing.T) {
	v := newVault(t)

	const seed = "JBSWY3DPEHPK3PXP"
	ciphertext, err := v.Encrypt(seed)
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	if string(ciphertext) == seed {
		t.Fatal("ciphertext must not equal plaintext")
	}

	got, err := v.Decrypt(ciphertext)
	if err != nil {
		t.Fatalf("Decrypt: %v", err)
	}
	if got != seed {
		t.Errorf("Decrypt = %q, want %q", got, seed)
	}
}

func TestDecryptWithWrongKey(t *testing.T) {
	a := newVault(t)
	b := newVault(t)

	ciphertext, err := a.Encrypt("JBSWY3DPEHPK3PXP")
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}

	if _, err := b.Decrypt(ciphertext); !errors.Is(err, domain.ErrSecretIntegrity) {
		t.Errorf("Decrypt with wrong key = %v, want ErrSecretIntegrity", err)
	}
}

func TestDecryptCorruptCiphertext(t *testing.T) {
	v := newVault(t)

	ciphertext, err := v.Encrypt("JBSWY3DPEHPK3PXP")
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	ciphertext[len(ciphertext)/2] ^= 0xff

	if _, err := v.Decrypt(ciphertext); !errors.Is(err, domain.ErrSecretIntegrity) {
		t.Errorf("Decrypt of corrupt ciphertext = %v, want ErrSecretIntegrity", err)
	}
}

func TestNewRejectsBadKeys(t *testing.T) {
	if _, err := vault.New(""); err == nil {
		t.Error("New(\"\") should fail")
	}
	if _, err := vault.New("not-a-fernet-key"); err == nil {
		t.Error("New with malformed key should fail")
	}
}
