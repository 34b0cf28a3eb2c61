package service

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"time"

	"github.com/frontsight/frontsight/internal/models"
	"github.com/frontsight/frontsight/internal/store"
)

// ProjectService handles project CRUD and API-key issuance. Keys are opaque
// 32-byte URL-safe tokens; rotation invalidates the old key immediately.
type ProjectService struct {
	projects store.ProjectStore
}

func NewProjectService(projects store.ProjectStore) *ProjectService {
	return &ProjectService{projects: projects}
}

func generateAPIKey() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate api key: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

func (s *ProjectService) Create(ctx context.Context, in models.ProjectCreate) (models.Project, error) {
	key, err := generateAPIKey()
	if err != nil {
		return models.Project{}, err
	}
	return s.projects.CreateProject(ctx, models.Project{
		Name:        in.Name,
		Description: in.Description,
		APIKey:      key,
	})
}

func (s *ProjectService) Get(ctx context.Context, id int64) (models.Project, error) {
	return s.projects.GetProject(ctx, id)
}

// GetByKey resolves the project owning an API key. Every event operation is
// scoped through this or Get before touching the event store.
func (s *ProjectService) GetByKey(ctx context.Context, apiKey string) (models.Project, error) {
	return s.projects.GetProjectByKey(ctx, apiKey)
}

func (s *ProjectService) List(ctx context.Context) ([]models.Project, error) {
	return s.projects.ListProjects(ctx)
}

// Update applies a partial update: only fields present in the patch change.
// A present-but-null name is rejected since name is required; a
// present-but-null description clears it.
func (s *ProjectService) Update(ctx context.Context, id int64, patch models.ProjectPatch) (models.Project, error) {
	p, err := s.projects.GetProject(ctx, id)
	if err != nil {
		return models.Project{}, err
	}
	if patch.NameSet {
		if patch.Name == nil || *patch.Name == "" {
			return models.Project{}, fmt.Errorf("name must not be empty: %w", ErrInvalidArgument)
		}
		p.Name = *patch.Name
	}
	if patch.DescriptionSet {
		p.Description = patch.Description
	}
	p.UpdatedAt = time.Now().UTC()
	if err := s.projects.UpdateProject(ctx, p); err != nil {
		return models.Project{}, err
	}
	return p, nil
}

// RotateKey issues a fresh API key. The previous key stops resolving as
// soon as the update commits.
func (s *ProjectService) RotateKey(ctx context.Context, id int64) (models.Project, error) {
	p, err := s.projects.GetProject(ctx, id)
	if err != nil {
		return models.Project{}, err
	}
	key, err := generateAPIKey()
	if err != nil {
		return models.Project{}, err
	}
	p.APIKey = key
	p.UpdatedAt = time.Now().UTC()
	if err := s.projects.UpdateProject(ctx, p); err != nil {
		return models.Project{}, err
	}
	return p, nil
}

// Delete removes the project and all of its events.
func (s *ProjectService) Delete(ctx context.Context, id int64) error {
	return s.projects.DeleteProject(ctx, id)
}
