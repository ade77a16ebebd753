package domain

import "time"

// TOTPSecret is a person's one-time-password seed at rest. The seed is only
// ever stored encrypted; LastVerifiedTimestep is the replay-guard watermark
// and may only grow.
type TOTPSecret struct {
	PersonID             int64     `json:"person_id"`
	SecretEncrypted      []byte    `json:"-"`
	ProvisioningDone     bool      `json:"provisioning_done"`
	LastVerifiedTimestep int64     `json:"last_verified_timestep"`
	CreatedAt            time.Time `json:"created_at"`
	UpdatedAt            time.Time `json:"updated_at"`
}

// VerificationToken is the short-lived, single-use credential minted after a
// successful code verification and consumed by encounter submission.
type VerificationToken struct {
	ID          int64     `json:"id"`
	EncounterID int64     `json:"encounter_id"`
	Token       string    `json:"token"`
	ExpiresAt   time.Time `json:"expires_at"`
	Used        bool      `json:"used"`
	CreatedAt   time.Time `json:"created_at"`
}
