package repositories

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Service contains business logic for repository references.
type Service struct {
	Repo Repo
}

// Create validates and stores a new repository reference for a user.
func (s *Service) Create(ctx context.Context, userID, owner, name, defaultBranch string) (Repository, error) {
	if userID == "" {
		return Repository{}, errors.New("userID is required")
	}
	owner = strings.TrimSpace(owner)
	name = strings.TrimSpace(name)
	if owner == "" || name == "" {
		return Repository{}, fmt.Errorf("owner and name are required")
	}
	if defaultBranch = strings.TrimSpace(defaultBranch); defaultBranch == "" {
		defaultBranch = "main"
	}

	now := time.Now().UTC()
	repo := Repository{
		ID:            uuid.NewString(),
		UserID:        userID,
		Owner:         owner,
		Name:          name,
		DefaultBranch: defaultBranch,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.Repo.Create(ctx, repo); err != nil {
		return Repository{}, err
	}
	return repo, nil
}

// Get returns a repository the user owns.
func (s *Service) Get(ctx context.Context, userID, repositoryID string) (Repository, error) {
	repo, err := s.Repo.GetByID(ctx, repositoryID)
	if err != nil {
		return Repository{}, err
	}
	if repo.UserID != userID {
		return Repository{}, ErrAccessDenied
	}
	return repo, nil
}

// List returns the user's repositories.
func (s *Service) List(ctx context.Context, userID string) ([]Repository, error) {
	if userID == "" {
		return nil, errors.New("userID is required")
	}
	return s.Repo.ListByUser(ctx, userID)
}

// Delete removes a repository reference owned by the user.
func (s *Service) Delete(ctx context.Context, userID, repositoryID string) error {
	return s.Repo.SoftDelete(ctx, userID, repositoryID)
}
