package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/alexedwards/argon2id"

	"github.com/ruralhealth/screening-api/internal/domain"
	"github.com/ruralhealth/screening-api/internal/repository"
	"github.com/ruralhealth/screening-api/pkg/auth"
	"github.com/ruralhealth/screening-api/pkg/config"
	"github.com/ruralhealth/screening-api/pkg/logger"
)

// LoginResult is what a successful login hands back to the client.
type LoginResult struct {
	AccessToken string      `json:"access_token"`
	TokenType   string      `json:"token_type"`
	Role        domain.Role `json:"role"`
	DisplayName string      `json:"display_name"`
	WorkerID    *int64      `json:"worker_id,omitempty"`
	PersonID    *int64      `json:"person_id,omitempty"`
}

// Profile describes the authenticated caller for /me.
type Profile struct {
	Subject      string      `json:"subject"`
	Role         domain.Role `json:"role"`
	DisplayName  string      `json:"display_name"`
	WorkerID     *int64      `json:"worker_id,omitempty"`
	PersonID     *int64      `json:"person_id,omitempty"`
	Capabilities []string    `json:"capabilities"`
}

type AuthService struct {
	workers repository.WorkerRepository
	people  repository.PersonRepository
	cfg     *config.Config
}

func NewAuthService(workers repository.WorkerRepository, people repository.PersonRepository, cfg *config.Config) *AuthService {
	return &AuthService{workers: workers, people: people, cfg: cfg}
}

// Login authenticates either a staff account (username + argon2id hash) or,
// for field demos, a patient (numeric username = person id, password = last
// four digits of the registered phone). Every failure is the same
// ErrInvalidCredentials so the response cannot be used to probe accounts.
func (s *AuthService) Login(ctx context.Context, username, password string) (*LoginResult, error) {
	worker, err := s.workers.FindByUsername(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("look up worker: %w", err)
	}
	if worker != nil {
		match, err := argon2id.ComparePasswordAndHash(password, worker.PasswordHash)
		if err != nil || !match {
			return nil, domain.ErrInvalidCredentials
		}
		token, err := auth.NewAccessToken(worker.Username, string(worker.Role), &worker.ID, nil,
			s.cfg.Auth.JWTSecret, s.cfg.Auth.AccessTokenTTL)
		if err != nil {
			return nil, fmt.Errorf("sign access token: %w", err)
		}
		return &LoginResult{
			AccessToken: token,
			TokenType:   "bearer",
			Role:        worker.Role,
			DisplayName: worker.DisplayName,
			WorkerID:    &worker.ID,
		}, nil
	}

	if personID, ok := numericID(username); ok {
		return s.patientLogin(ctx, personID, password)
	}
	return nil, domain.ErrInvalidCredentials
}

func (s *AuthService) patientLogin(ctx context.Context, personID int64, password string) (*LoginResult, error) {
	person, err := s.people.FindByID(ctx, personID)
	if err != nil {
		return nil, fmt.Errorf("look up person: %w", err)
	}
	if person == nil || len(person.Phone) < 4 {
		return nil, domain.ErrInvalidCredentials
	}
	if password != person.Phone[len(person.Phone)-4:] {
		return nil, domain.ErrInvalidCredentials
	}

	token, err := auth.NewAccessToken(strconv.FormatInt(person.ID, 10), string(domain.RolePatient),
		nil, &person.ID, s.cfg.Auth.JWTSecret, s.cfg.Auth.AccessTokenTTL)
	if err != nil {
		return nil, fmt.Errorf("sign access token: %w", err)
	}

	logger.InfoContext(ctx, "patient login", "person_id", person.ID)
	return &LoginResult{
		AccessToken: token,
		TokenType:   "bearer",
		Role:        domain.RolePatient,
		DisplayName: person.FullName,
		PersonID:    &person.ID,
	}, nil
}

// Me resolves the caller's profile from verified token claims.
func (s *AuthService) Me(ctx context.Context, subject string, role domain.Role, workerID, personID *int64) (*Profile, error) {
	p := &Profile{
		Subject:      subject,
		Role:         role,
		WorkerID:     workerID,
		PersonID:     personID,
		Capabilities: domain.Capabilities(role),
	}

	switch {
	case workerID != nil:
		worker, err := s.workers.FindByID(ctx, *workerID)
		if err != nil {
			return nil, fmt.Errorf("look up worker: %w", err)
		}
		if worker == nil || !worker.IsActive {
			return nil, domain.ErrNotFound
		}
		p.DisplayName = worker.DisplayName
	case personID != nil:
		person, err := s.people.FindByID(ctx, *personID)
		if err != nil {
			return nil, fmt.Errorf("look up person: %w", err)
		}
		if person == nil {
			return nil, domain.ErrNotFound
		}
		p.DisplayName = person.FullName
	}
	return p, nil
}

func numericID(s string) (int64, bool) {
	if s == "" || strings.TrimLeft(s, "0123456789") != "" {
		return 0, false
	}
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, false
	}
	return id, true
}
