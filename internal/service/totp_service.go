package service

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/ruralhealth/screening-api/internal/domain"
	"github.com/ruralhealth/screening-api/internal/otp"
	"github.com/ruralhealth/screening-api/internal/repository"
	"github.com/ruralhealth/screening-api/internal/vault"
	"github.com/ruralhealth/screening-api/pkg/config"
	"github.com/ruralhealth/screening-api/pkg/events"
	"github.com/ruralhealth/screening-api/pkg/logger"
)

const tokenBytes = 32

// ProvisionResult carries the enrollment material for the person's device.
type ProvisionResult struct {
	PersonID        int64  `json:"person_id"`
	ProvisioningURI string `json:"provisioning_uri"`
}

// VerifyResult carries the single-use token minted after a good code.
type VerifyResult struct {
	Verified          bool      `json:"verified"`
	VerificationToken string    `json:"verification_token"`
	ExpiresAt         time.Time `json:"expires_at"`
}

type TOTPService struct {
	people     repository.PersonRepository
	encounters repository.EncounterRepository
	secrets    repository.VerifyRepository
	audit      repository.AuditRepository
	vault      *vault.Vault
	publisher  events.Publisher
	cfg        *config.Config
	now        func() time.Time
}

func NewTOTPService(
	people repository.PersonRepository,
	encounters repository.EncounterRepository,
	secrets repository.VerifyRepository,
	audit repository.AuditRepository,
	v *vault.Vault,
	publisher events.Publisher,
	cfg *config.Config,
) *TOTPService {
	return &TOTPService{
		people:     people,
		encounters: encounters,
		secrets:    secrets,
		audit:      audit,
		vault:      v,
		publisher:  publisher,
		cfg:        cfg,
		now:        time.Now,
	}
}

// Provision enrolls a person for code-based verification. It is idempotent:
// re-provisioning an already enrolled person returns a URI for the existing
// seed instead of rotating it, so a device re-scan never invalidates codes.
func (s *TOTPService) Provision(ctx context.Context, personID int64, actorWorkerID int64) (*ProvisionResult, error) {
	person, err := s.people.FindByID(ctx, personID)
	if err != nil {
		return nil, fmt.Errorf("look up person: %w", err)
	}
	if person == nil {
		return nil, domain.ErrNotFound
	}

	label := fmt.Sprintf("person-%d", personID)

	secret, err := s.secrets.GetSecret(ctx, personID)
	if err != nil {
		return nil, fmt.Errorf("look up secret: %w", err)
	}

	var seed string
	if secret == nil {
		seed, err = otp.NewSeed()
		if err != nil {
			return nil, err
		}
		encrypted, err := s.vault.Encrypt(seed)
		if err != nil {
			return nil, err
		}
		if err := s.secrets.CreateSecret(ctx, personID, encrypted); err != nil {
			return nil, fmt.Errorf("store secret: %w", err)
		}
	} else {
		seed, err = s.vault.Decrypt(secret.SecretEncrypted)
		if err != nil {
			logger.ErrorContext(ctx, "stored seed failed integrity check", "person_id", personID, "error", err)
			return nil, err
		}
		if !secret.ProvisioningDone {
			if err := s.secrets.MarkProvisioned(ctx, personID); err != nil {
				return nil, fmt.Errorf("mark provisioned: %w", err)
			}
		}
	}

	uri, err := otp.ProvisioningURI(seed, label, s.cfg.App.Name)
	if err != nil {
		return nil, err
	}

	s.writeAudit(ctx, domain.AuditEntry{
		ActorWorkerID: &actorWorkerID,
		Action:        "totp.provision",
		Entity:        "person",
		EntityID:      personID,
	})
	s.publish(ctx, events.TOTPProvisioned, events.TOTPProvisionedEvent{
		PersonID:      personID,
		ProvisionedAt: s.now(),
	})

	return &ProvisionResult{PersonID: personID, ProvisioningURI: uri}, nil
}

// VerifyCode checks a person's code against the current clock and, on
// success, advances the replay watermark and mints a single-use verification
// token bound to the encounter. The watermark uses the current wall-clock
// step, not the step the code matched at, so a code accepted via drift
// tolerance still burns the present step.
func (s *TOTPService) VerifyCode(ctx context.Context, personID, encounterID int64, code string, actorWorkerID int64) (*VerifyResult, error) {
	person, err := s.people.FindByID(ctx, personID)
	if err != nil {
		return nil, fmt.Errorf("look up person: %w", err)
	}
	if person == nil {
		return nil, domain.ErrNotFound
	}

	encounter, err := s.encounters.FindByID(ctx, encounterID)
	if err != nil {
		return nil, fmt.Errorf("look up encounter: %w", err)
	}
	if encounter == nil || encounter.PersonID != personID {
		return nil, domain.ErrEncounterMismatch
	}

	secret, err := s.secrets.GetSecret(ctx, personID)
	if err != nil {
		return nil, fmt.Errorf("look up secret: %w", err)
	}
	if secret == nil || !secret.ProvisioningDone {
		return nil, domain.ErrNotProvisioned
	}

	seed, err := s.vault.Decrypt(secret.SecretEncrypted)
	if err != nil {
		logger.ErrorContext(ctx, "stored seed failed integrity check", "person_id", personID, "error", err)
		return nil, err
	}

	now := s.now()
	if err := otp.Verify(seed, code, now); err != nil {
		return nil, err
	}

	token, err := newToken()
	if err != nil {
		return nil, err
	}
	expiresAt := now.Add(s.cfg.Auth.VerificationTokenTTL)

	err = s.secrets.RecordVerification(ctx, personID, otp.Timestep(now), encounterID, token, expiresAt)
	if errors.Is(err, domain.ErrReplayDetected) {
		logger.WarnContext(ctx, "replayed verification code", "person_id", personID, "encounter_id", encounterID)
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("record verification: %w", err)
	}

	s.writeAudit(ctx, domain.AuditEntry{
		ActorWorkerID: &actorWorkerID,
		Action:        "totp.verify",
		Entity:        "encounter",
		EntityID:      encounterID,
		Meta:          map[string]any{"person_id": personID},
	})
	s.publish(ctx, events.PersonVerified, events.PersonVerifiedEvent{
		PersonID:    personID,
		EncounterID: encounterID,
		VerifiedAt:  now,
	})

	return &VerifyResult{Verified: true, VerificationToken: token, ExpiresAt: expiresAt}, nil
}

func (s *TOTPService) writeAudit(ctx context.Context, entry domain.AuditEntry) {
	if err := s.audit.Insert(ctx, entry); err != nil {
		logger.ErrorContext(ctx, "audit write failed", "action", entry.Action, "error", err)
	}
}

func (s *TOTPService) publish(ctx context.Context, subject string, payload any) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, subject, payload); err != nil {
		logger.ErrorContext(ctx, "event publish failed", "subject", subject, "error", err)
	}
}

func newToken() (string, error) {
	buf := make([]byte, tokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("could not generate token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
