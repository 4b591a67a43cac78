package rubrics

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Service contains business logic for rubric management.
type Service struct {
	Repo Repo
}

// ItemInput is the authoring payload for one rubric item.
type ItemInput struct {
	Name           string     `json:"name"`
	Description    string     `json:"description"`
	EvaluationKind string     `json:"evaluationKind"`
	Config         ItemConfig `json:"config"`
}

// Create validates and stores a new rubric owned by the user.
func (s *Service) Create(ctx context.Context, userID, name, description string, items []ItemInput) (Rubric, error) {
	if userID == "" {
		return Rubric{}, errors.New("userID is required")
	}

	now := time.Now().UTC()
	rubric := Rubric{
		ID:          uuid.NewString(),
		UserID:      userID,
		Name:        name,
		Description: description,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	rubric.Items = buildItems(rubric.ID, items, now)

	if err := ValidateRubric(rubric); err != nil {
		return Rubric{}, err
	}
	if err := s.Repo.Create(ctx, rubric); err != nil {
		return Rubric{}, err
	}
	return rubric, nil
}

// Get returns a rubric the user owns or a shared template.
func (s *Service) Get(ctx context.Context, userID, rubricID string) (Rubric, error) {
	rubric, err := s.Repo.GetByID(ctx, rubricID)
	if err != nil {
		return Rubric{}, err
	}
	if rubric.UserID != userID && !rubric.IsTemplate {
		return Rubric{}, ErrAccessDenied
	}
	return rubric, nil
}

// List returns the user's rubrics plus shared templates.
func (s *Service) List(ctx context.Context, userID string) ([]Rubric, error) {
	if userID == "" {
		return nil, errors.New("userID is required")
	}
	return s.Repo.ListByUser(ctx, userID)
}

// Update replaces a rubric's fields and items. Templates are read-only.
func (s *Service) Update(ctx context.Context, userID, rubricID, name, description string, items []ItemInput) (Rubric, error) {
	existing, err := s.Repo.GetByID(ctx, rubricID)
	if err != nil {
		return Rubric{}, err
	}
	if existing.UserID != userID || existing.IsTemplate {
		return Rubric{}, ErrAccessDenied
	}

	now := time.Now().UTC()
	rubric := Rubric{
		ID:          rubricID,
		UserID:      userID,
		Name:        name,
		Description: description,
		CreatedAt:   existing.CreatedAt,
		UpdatedAt:   now,
	}
	rubric.Items = buildItems(rubricID, items, now)

	if err := ValidateRubric(rubric); err != nil {
		return Rubric{}, err
	}
	if err := s.Repo.Update(ctx, rubric); err != nil {
		return Rubric{}, err
	}
	return rubric, nil
}

// Delete soft-deletes a rubric owned by the user.
func (s *Service) Delete(ctx context.Context, userID, rubricID string) error {
	return s.Repo.SoftDelete(ctx, userID, rubricID)
}

func buildItems(rubricID string, inputs []ItemInput, now time.Time) []Item {
	items := make([]Item, 0, len(inputs))
	for i, in := range inputs {
		items = append(items, Item{
			ID:             uuid.NewString(),
			RubricID:       rubricID,
			Position:       i,
			Name:           in.Name,
			Description:    in.Description,
			EvaluationKind: in.EvaluationKind,
			Config:         in.Config,
			CreatedAt:      now,
			UpdatedAt:      now,
		})
	}
	return items
}
