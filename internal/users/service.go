package users

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
)

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

type CreateParams struct {
	Email        string
	PasswordHash string
	DisplayName  string
	Timezone     string
}

func (s *Service) Create(ctx context.Context, p CreateParams) (*User, error) {
	now := time.Now()

	displayName := strings.TrimSpace(p.DisplayName)
	if displayName == "" {
		// Local part of the email is a friendlier default than a UUID.
		displayName = strings.SplitN(p.Email, "@", 2)[0]
	}

	tz := p.Timezone
	if tz == "" {
		tz = "UTC"
	}

	user := &User{
		ID:           uuid.New(),
		Email:        p.Email,
		PasswordHash: p.PasswordHash,
		DisplayName:  displayName,
		Timezone:     tz,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.repo.Create(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

func (s *Service) GetByEmail(ctx context.Context, email string) (*User, error) {
	return s.repo.GetByEmail(ctx, email)
}

func (s *Service) GetByID(ctx context.Context, id uuid.UUID) (*User, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	return s.repo.ExistsByEmail(ctx, email)
}
