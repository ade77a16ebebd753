package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ruralhealth/screening-api/internal/domain"
	"github.com/ruralhealth/screening-api/pkg/events"
)

type encounterFixture struct {
	svc     *EncounterService
	repo    *mockEncounterRepo
	secrets *mockVerifyRepo
	audit   *mockAuditRepo
	bus     *mockPublisher
	clock   time.Time
}

func newEncounterFixture(t *testing.T) *encounterFixture {
	t.Helper()

	people := &mockPersonRepo{people: map[int64]*domain.Person{
		1: {ID: 1, FullName: "Asha Devi", Phone: "9876543210"},
	}}
	secrets := newMockVerifyRepo()
	repo := newMockEncounterRepo(secrets)
	audit := &mockAuditRepo{}
	bus := &mockPublisher{}

	f := &encounterFixture{
		svc:     NewEncounterService(repo, people, audit, bus),
		repo:    repo,
		secrets: secrets,
		audit:   audit,
		bus:     bus,
		clock:   time.Unix(1_700_000_015, 0),
	}
	f.svc.now = func() time.Time { return f.clock }
	return f
}

func intp(v int) *int           { return &v }
func floatp(v float64) *float64 { return &v }

func submitInput(token *string) *SubmitInput {
	return &SubmitInput{
		VerificationToken: token,
		Vitals: domain.Vitals{
			SBP1: intp(140), DBP1: intp(90),
			SBP2: intp(144), DBP2: intp(92),
			Weight: floatp(82), Height: floatp(1.68),
			Consent: true,
		},
		Derived: domain.DerivedResult{RAG: "AMBER"},
	}
}

func TestStartEncounter(t *testing.T) {
	f := newEncounterFixture(t)

	enc, err := f.svc.Start(context.Background(), 1, nil, 10, nil)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if enc.Status != domain.EncounterDraft {
		t.Errorf("Status = %s, want DRAFT", enc.Status)
	}
	if enc.StartedByWorkerID != 10 {
		t.Errorf("StartedByWorkerID = %d, want 10", enc.StartedByWorkerID)
	}
	if !f.bus.published(events.EncounterStarted) {
		t.Error("encounter.started event not published")
	}
}

func TestStartEncounterUnknownPerson(t *testing.T) {
	f := newEncounterFixture(t)

	if _, err := f.svc.Start(context.Background(), 99, nil, 10, nil); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("Start = %v, want ErrNotFound", err)
	}
}

func TestSubmitWithoutToken(t *testing.T) {
	f := newEncounterFixture(t)
	enc, _ := f.svc.Start(context.Background(), 1, nil, 10, nil)

	got, err := f.svc.Submit(context.Background(), enc.ID, submitInput(nil), 10)
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if got.Status != domain.EncounterUnverified {
		t.Errorf("Status = %s, want UNVERIFIED", got.Status)
	}
	if got.VerifiedAt != nil {
		t.Error("VerifiedAt must be nil without a token")
	}
	if !f.bus.published(events.EncounterSubmitted) {
		t.Error("encounter.submitted event not published")
	}
}

func TestSubmitWithToken(t *testing.T) {
	f := newEncounterFixture(t)
	enc, _ := f.svc.Start(context.Background(), 1, nil, 10, nil)

	token := "tok-abc"
	f.secrets.tokens[token] = &storedToken{encounterID: enc.ID, expiresAt: f.clock.Add(time.Minute)}

	got, err := f.svc.Submit(context.Background(), enc.ID, submitInput(&token), 10)
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if got.Status != domain.EncounterVerified {
		t.Errorf("Status = %s, want VERIFIED", got.Status)
	}
	if got.VerifiedAt == nil {
		t.Error("VerifiedAt must be set")
	}
	if !f.secrets.tokens[token].used {
		t.Error("token must be consumed")
	}
}

func TestSubmitRecomputesDerivedVitals(t *testing.T) {
	f := newEncounterFixture(t)
	enc, _ := f.svc.Start(context.Background(), 1, nil, 10, nil)

	in := submitInput(nil)
	in.Vitals.SBPAvg = intp(999) // client-sent values are overwritten
	in.Vitals.BMI = floatp(1)

	if _, err := f.svc.Submit(context.Background(), enc.ID, in, 10); err != nil {
		t.Fatalf("Submit: %v", err)
	}

	v := f.repo.lastVitals
	if v.SBPAvg == nil || *v.SBPAvg != 142 {
		t.Errorf("SBPAvg = %v, want 142", v.SBPAvg)
	}
	if v.DBPAvg == nil || *v.DBPAvg != 91 {
		t.Errorf("DBPAvg = %v, want 91", v.DBPAvg)
	}
	if v.BMI == nil || *v.BMI != 29.05 {
		t.Errorf("BMI = %v, want 29.05", v.BMI)
	}
}

func TestSubmitTwice(t *testing.T) {
	f := newEncounterFixture(t)
	enc, _ := f.svc.Start(context.Background(), 1, nil, 10, nil)

	if _, err := f.svc.Submit(context.Background(), enc.ID, submitInput(nil), 10); err != nil {
		t.Fatalf("first Submit: %v", err)
	}
	if _, err := f.svc.Submit(context.Background(), enc.ID, submitInput(nil), 10); !errors.Is(err, domain.ErrAlreadySubmitted) {
		t.Errorf("second Submit = %v, want ErrAlreadySubmitted", err)
	}
}

func TestSubmitTokenFailures(t *testing.T) {
	f := newEncounterFixture(t)
	enc, _ := f.svc.Start(context.Background(), 1, nil, 10, nil)
	other, _ := f.svc.Start(context.Background(), 1, nil, 10, nil)

	f.secrets.tokens["expired"] = &storedToken{encounterID: enc.ID, expiresAt: f.clock.Add(-time.Second)}
	f.secrets.tokens["used"] = &storedToken{encounterID: enc.ID, expiresAt: f.clock.Add(time.Minute), used: true}
	f.secrets.tokens["other"] = &storedToken{encounterID: other.ID, expiresAt: f.clock.Add(time.Minute)}

	cases := []struct {
		name  string
		token string
		want  error
	}{
		{"unknown token", "no-such-token", domain.ErrTokenInvalid},
		{"expired token", "expired", domain.ErrTokenExpired},
		{"used token", "used", domain.ErrTokenInvalid},
		{"token for another encounter", "other", domain.ErrTokenInvalid},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			token := tc.token
			if _, err := f.svc.Submit(context.Background(), enc.ID, submitInput(&token), 10); !errors.Is(err, tc.want) {
				t.Errorf("Submit = %v, want %v", err, tc.want)
			}
		})
	}

	// The failed attempts must not have moved the encounter out of DRAFT.
	got, _ := f.repo.FindByID(context.Background(), enc.ID)
	if got.Status != domain.EncounterDraft {
		t.Errorf("Status = %s, want DRAFT after failed submissions", got.Status)
	}
}

func TestApproveAndReject(t *testing.T) {
	f := newEncounterFixture(t)

	enc, _ := f.svc.Start(context.Background(), 1, nil, 10, nil)
	if _, err := f.svc.Submit(context.Background(), enc.ID, submitInput(nil), 10); err != nil {
		t.Fatalf("Submit: %v", err)
	}

	if err := f.svc.Approve(context.Background(), enc.ID, 20); err != nil {
		t.Fatalf("Approve: %v", err)
	}
	got, _ := f.repo.FindByID(context.Background(), enc.ID)
	if got.Status != domain.EncounterVerified {
		t.Errorf("Status = %s, want VERIFIED", got.Status)
	}
	if !f.bus.published(events.EncounterApproved) {
		t.Error("encounter.approved event not published")
	}

	// A second review of the same encounter must fail.
	if err := f.svc.Reject(context.Background(), enc.ID, 20); !errors.Is(err, domain.ErrNotUnverified) {
		t.Errorf("Reject after approve = %v, want ErrNotUnverified", err)
	}

	enc2, _ := f.svc.Start(context.Background(), 1, nil, 10, nil)
	if _, err := f.svc.Submit(context.Background(), enc2.ID, submitInput(nil), 10); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if err := f.svc.Reject(context.Background(), enc2.ID, 20); err != nil {
		t.Fatalf("Reject: %v", err)
	}
	got2, _ := f.repo.FindByID(context.Background(), enc2.ID)
	if got2.Status != domain.EncounterRejected {
		t.Errorf("Status = %s, want REJECTED", got2.Status)
	}
	if !f.bus.published(events.EncounterRejected) {
		t.Error("encounter.rejected event not published")
	}
}

func TestReviewDraftEncounter(t *testing.T) {
	f := newEncounterFixture(t)
	enc, _ := f.svc.Start(context.Background(), 1, nil, 10, nil)

	if err := f.svc.Approve(context.Background(), enc.ID, 20); !errors.Is(err, domain.ErrNotUnverified) {
		t.Errorf("Approve of DRAFT = %v, want ErrNotUnverified", err)
	}
	if err := f.svc.Approve(context.Background(), 999, 20); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("Approve of missing = %v, want ErrNotFound", err)
	}
}

func TestQueueNeverNil(t *testing.T) {
	f := newEncounterFixture(t)

	items, err := f.svc.Queue(context.Background(), "RED")
	if err != nil {
		t.Fatalf("Queue: %v", err)
	}
	if items == nil {
		t.Error("Queue must return an empty slice, not nil")
	}

	items, err = f.svc.Unverified(context.Background())
	if err != nil {
		t.Fatalf("Unverified: %v", err)
	}
	if items == nil {
		t.Error("Unverified must return an empty slice, not nil")
	}
}
