package domain

import "errors"

// Sentinel errors returned by repositories and services. Handlers translate
// these into HTTP status codes; everything else surfaces as a 500.
var (
	ErrNotFound           = errors.New("not found")
	ErrInvalidCredentials = errors.New("invalid credentials")

	// TOTP verification
	ErrNotProvisioned     = errors.New("totp not provisioned")
	ErrInvalidCode        = errors.New("invalid code")
	ErrEncounterMismatch  = errors.New("invalid encounter")
	ErrReplayDetected     = errors.New("replay detected")
	ErrSecretIntegrity    = errors.New("secret ciphertext integrity failure")

	// Encounter lifecycle
	ErrAlreadySubmitted = errors.New("encounter already submitted")
	ErrNotUnverified    = errors.New("encounter not unverified")
	ErrTokenInvalid     = errors.New("invalid verification token")
	ErrTokenExpired     = errors.New("verification token expired")
)
