package service

import (
	"context"
	"sync"
	"time"

	"github.com/ruralhealth/screening-api/internal/domain"
)

// ---------- Mocks ----------

type mockPersonRepo struct {
	people map[int64]*domain.Person
}

func (m *mockPersonRepo) FindByID(_ context.Context, id int64) (*domain.Person, error) {
	return m.people[id], nil
}

type mockWorkerRepo struct {
	byUsername map[string]*domain.Worker
	byID       map[int64]*domain.Worker
}

func (m *mockWorkerRepo) FindByUsername(_ context.Context, username string) (*domain.Worker, error) {
	w := m.byUsername[username]
	if w != nil && !w.IsActive {
		return nil, nil
	}
	return w, nil
}

func (m *mockWorkerRepo) FindByID(_ context.Context, id int64) (*domain.Worker, error) {
	return m.byID[id], nil
}

type storedToken struct {
	encounterID int64
	expiresAt   time.Time
	used        bool
}

type mockVerifyRepo struct {
	mu      sync.Mutex
	secrets map[int64]*domain.TOTPSecret
	tokens  map[string]*storedToken
}

func newMockVerifyRepo() *mockVerifyRepo {
	return &mockVerifyRepo{
		secrets: make(map[int64]*domain.TOTPSecret),
		tokens:  make(map[string]*storedToken),
	}
}

func (m *mockVerifyRepo) GetSecret(_ context.Context, personID int64) (*domain.TOTPSecret, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.secrets[personID], nil
}

func (m *mockVerifyRepo) CreateSecret(_ context.Context, personID int64, encrypted []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.secrets[personID] = &domain.TOTPSecret{
		PersonID:         personID,
		SecretEncrypted:  encrypted,
		ProvisioningDone: true,
	}
	return nil
}

func (m *mockVerifyRepo) MarkProvisioned(_ context.Context, personID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s := m.secrets[personID]; s != nil {
		s.ProvisioningDone = true
	}
	return nil
}

func (m *mockVerifyRepo) RecordVerification(_ context.Context, personID, timestep, encounterID int64, token string, expiresAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.secrets[personID]
	if s == nil || s.LastVerifiedTimestep >= timestep {
		return domain.ErrReplayDetected
	}
	s.LastVerifiedTimestep = timestep
	m.tokens[token] = &storedToken{encounterID: encounterID, expiresAt: expiresAt}
	return nil
}

type mockEncounterRepo struct {
	mu         sync.Mutex
	nextID     int64
	encounters map[int64]*domain.Encounter
	verify     *mockVerifyRepo

	lastVitals  *domain.Vitals
	lastDerived *domain.DerivedResult

	queue      []domain.QueueItem
	unverified []domain.QueueItem
}

func newMockEncounterRepo(verify *mockVerifyRepo) *mockEncounterRepo {
	return &mockEncounterRepo{
		nextID:     1,
		encounters: make(map[int64]*domain.Encounter),
		verify:     verify,
	}
}

func (m *mockEncounterRepo) Create(_ context.Context, personID int64, campID *int64, workerID int64, clientCreatedAt *time.Time) (*domain.Encounter, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e := &domain.Encounter{
		ID:                m.nextID,
		PersonID:          personID,
		CampID:            campID,
		StartedByWorkerID: workerID,
		Status:            domain.EncounterDraft,
		ClientCreatedAt:   clientCreatedAt,
		CreatedAt:         time.Now(),
		UpdatedAt:         time.Now(),
	}
	m.nextID++
	m.encounters[e.ID] = e
	return e, nil
}

func (m *mockEncounterRepo) FindByID(_ context.Context, id int64) (*domain.Encounter, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.encounters[id], nil
}

func (m *mockEncounterRepo) Submit(_ context.Context, id int64, token *string, vitals *domain.Vitals, tests *domain.Tests, derived *domain.DerivedResult, now time.Time) (*domain.Encounter, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e := m.encounters[id]
	if e == nil {
		return nil, domain.ErrNotFound
	}
	if e.Status != domain.EncounterDraft {
		return nil, domain.ErrAlreadySubmitted
	}

	status := domain.EncounterUnverified
	var verifiedAt *time.Time
	if token != nil {
		m.verify.mu.Lock()
		st := m.verify.tokens[*token]
		if st == nil || st.used || st.encounterID != id {
			m.verify.mu.Unlock()
			return nil, domain.ErrTokenInvalid
		}
		if st.expiresAt.Before(now) {
			m.verify.mu.Unlock()
			return nil, domain.ErrTokenExpired
		}
		st.used = true
		m.verify.mu.Unlock()
		status = domain.EncounterVerified
		verifiedAt = &now
	}

	e.Status = status
	e.VerifiedAt = verifiedAt
	e.SubmittedAt = &now
	m.lastVitals = vitals
	m.lastDerived = derived
	return e, nil
}

func (m *mockEncounterRepo) Approve(_ context.Context, id int64, now time.Time) error {
	return m.review(id, domain.EncounterVerified, &now)
}

func (m *mockEncounterRepo) Reject(_ context.Context, id int64) error {
	return m.review(id, domain.EncounterRejected, nil)
}

func (m *mockEncounterRepo) review(id int64, to domain.EncounterStatus, verifiedAt *time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e := m.encounters[id]
	if e == nil {
		return domain.ErrNotFound
	}
	if e.Status != domain.EncounterUnverified {
		return domain.ErrNotUnverified
	}
	e.Status = to
	if verifiedAt != nil {
		e.VerifiedAt = verifiedAt
	}
	return nil
}

func (m *mockEncounterRepo) ListByRAG(_ context.Context, rag string, limit int) ([]domain.QueueItem, error) {
	return m.queue, nil
}

func (m *mockEncounterRepo) ListUnverified(_ context.Context, limit int) ([]domain.QueueItem, error) {
	return m.unverified, nil
}

type mockAuditRepo struct {
	mu      sync.Mutex
	entries []domain.AuditEntry
}

func (m *mockAuditRepo) Insert(_ context.Context, entry domain.AuditEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, entry)
	return nil
}

func (m *mockAuditRepo) actions() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.entries))
	for _, e := range m.entries {
		out = append(out, e.Action)
	}
	return out
}

type mockPublisher struct {
	mu       sync.Mutex
	subjects []string
}

func (m *mockPublisher) Publish(_ context.Context, subject string, _ interface{}) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.subjects = append(m.subjects, subject)
	return nil
}

func (m *mockPublisher) Close() error { return nil }

func (m *mockPublisher) published(subject string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.subjects {
		if s == subject {
			return true
		}
	}
	return false
}
