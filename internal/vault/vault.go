// Package vault encrypts and decrypts TOTP seeds at rest. Seeds never leave
// this package in ciphertext form and never reach the store in plaintext.
package vault

import (
	"fmt"
	"time"

	"github.com/fernet/fernet-go"

	"github.com/ruralhealth/screening-api/internal/domain"
)

// seedTTL disables fernet's freshness check: seeds are long-lived and do not
// age out (a negative TTL skips the timestamp comparison).
const seedTTL = time.Duration(-1)

type Vault struct {
	key *fernet.Key
}

// New loads the process-wide fernet key. A missing or malformed key is a
// startup failure, not a per-request condition.
func New(encodedKey string) (*Vault, error) {
	if encodedKey == "" {
		return nil, fmt.Errorf("fernet key is required")
	}
	key, err := fernet.DecodeKey(encodedKey)
	if err != nil {
		return nil, fmt.Errorf("invalid fernet key: %w", err)
	}
	return &Vault{key: key}, nil
}

// Encrypt seals a seed for storage.
func (v *Vault) Encrypt(seed string) ([]byte, error) {
	tok, err := fernet.EncryptAndSign([]byte(seed), v.key)
	if err != nil {
		return nil, fmt.Errorf("encrypt seed: %w", err)
	}
	return tok, nil
}

// Decrypt opens a stored seed. Failure here means the ciphertext or the key
// is wrong; it is an integrity fault and must never be reported as a bad code.
func (v *Vault) Decrypt(ciphertext []byte) (string, error) {
	msg := fernet.VerifyAndDecrypt(ciphertext, seedTTL, []*fernet.Key{v.key})
	if msg == nil {
		return "", domain.ErrSecretIntegrity
	}
	return string(msg), nil
}

// GenerateKey mints a fresh fernet key, for provisioning new deployments.
func GenerateKey() (string, error) {
	var key fernet.Key
	if err := key.Generate(); err != nil {
		return "", err
	}
	return key.Encode(), nil
}
