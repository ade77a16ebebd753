// Package otp wraps time-based one-time-password generation and validation.
// Codes are 6 digits over 30-second steps with a ±1 step drift window.
package otp

import (
	"crypto/rand"
	"encoding/base32"
	"fmt"
	"time"

	otplib "github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"

	"github.com/ruralhealth/screening-api/internal/domain"
)

const (
	// StepSeconds is the duration of one time step.
	StepSeconds = 30
	// DriftWindow is the number of adjacent steps tolerated on validation.
	DriftWindow = 1
	// Digits is the required code length.
	Digits = 6

	seedBytes = 20
)

var validateOpts = totp.ValidateOpts{
	Period:    StepSeconds,
	Skew:      DriftWindow,
	Digits:    otplib.DigitsSix,
	Algorithm: otplib.AlgorithmSHA1,
}

// NewSeed generates a random base32 seed compatible with authenticator apps.
func NewSeed() (string, error) {
	buf := make([]byte, seedBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("could not generate seed: %w", err)
	}
	return base32.StdEncoding.WithPadding(base32.NoPadding).EncodeToString(buf), nil
}

// Timestep is the discrete unit of code validity: floor(unix / 30).
func Timestep(now time.Time) int64 {
	return now.Unix() / StepSeconds
}

// ProvisioningURI builds the otpauth:// enrollment URI handed to the
// person's device exactly once, at provisioning time.
func ProvisioningURI(seed, label, issuer string) (string, error) {
	raw, err := base32.StdEncoding.WithPadding(base32.NoPadding).DecodeString(seed)
	if err != nil {
		return "", fmt.Errorf("malformed seed: %w", err)
	}
	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      issuer,
		AccountName: label,
		Period:      StepSeconds,
		Secret:      raw,
		Digits:      otplib.DigitsSix,
		Algorithm:   otplib.AlgorithmSHA1,
	})
	if err != nil {
		return "", fmt.Errorf("build provisioning uri: %w", err)
	}
	return key.String(), nil
}

// Verify checks a submitted code against the seed at the given wall-clock
// time. Malformed codes are rejected before any cryptographic comparison;
// the comparison itself is constant-time across the whole drift window.
func Verify(seed, code string, now time.Time) error {
	if !wellFormed(code) {
		return domain.ErrInvalidCode
	}
	ok, err := totp.ValidateCustom(code, seed, now, validateOpts)
	if err != nil {
		return fmt.Errorf("validate code: %w", err)
	}
	if !ok {
		return domain.ErrInvalidCode
	}
	return nil
}

// GenerateCode computes the code for the step containing t. Used by
// provisioning QA and tests; never exposed over the API.
func GenerateCode(seed string, t time.Time) (string, error) {
	return totp.GenerateCodeCustom(seed, t, validateOpts)
}

func wellFormed(code string) bool {
	if len(code) != Digits {
		return false
	}
	for i := 0; i < len(code); i++ {
		if code[i] < '0' || code[i] > '9' {
			return false
		}
	}
	return true
}
