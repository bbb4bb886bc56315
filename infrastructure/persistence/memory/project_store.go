package memory

import (
	"context"
	"sort"
	"sync"

	"qdesign-backend/domain/project"
	apperrors "qdesign-backend/pkg/errors"
)

// ProjectStore provides an in-memory implementation of ports.ProjectStore.
// Documents are cloned on the way in and out so callers never share
// memory with the stored copy.
type ProjectStore struct {
	mu        sync.RWMutex
	projects  map[string]*project.Project
	joinCodes map[string]string
}

// NewProjectStore creates an empty store
func NewProjectStore() *ProjectStore {
	return &ProjectStore{
		projects:  make(map[string]*project.Project),
		joinCodes: make(map[string]string),
	}
}

// Create inserts a new project
func (s *ProjectStore) Create(ctx context.Context, p *project.Project) error {
	if p == nil || p.ID == "" {
		return apperrors.NewValidation("project id is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.projects[p.ID]; exists {
		return apperrors.NewConflict("project already exists")
	}
	if _, taken := s.joinCodes[p.JoinCode]; taken {
		return apperrors.NewConflict("join code already in use")
	}

	s.projects[p.ID] = p.Clone()
	s.joinCodes[p.JoinCode] = p.ID
	return nil
}

// Save replaces the stored document
func (s *ProjectStore) Save(ctx context.Context, p *project.Project) error {
	if p == nil || p.ID == "" {
		return apperrors.NewValidation("project id is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	current, exists := s.projects[p.ID]
	if !exists {
		return apperrors.NewNotFound("project not found")
	}
	if current.JoinCode != p.JoinCode {
		if owner, taken := s.joinCodes[p.JoinCode]; taken && owner != p.ID {
			return apperrors.NewConflict("join code already in use")
		}
		delete(s.joinCodes, current.JoinCode)
		s.joinCodes[p.JoinCode] = p.ID
	}

	s.projects[p.ID] = p.Clone()
	return nil
}

// GetByID retrieves a project by its ID
func (s *ProjectStore) GetByID(ctx context.Context, id string) (*project.Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, exists := s.projects[id]
	if !exists {
		return nil, apperrors.NewNotFound("project not found")
	}
	return p.Clone(), nil
}

// GetByJoinCode retrieves a project by its join code
func (s *ProjectStore) GetByJoinCode(ctx context.Context, joinCode string) (*project.Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, exists := s.joinCodes[project.NormalizeJoinCode(joinCode)]
	if !exists {
		return nil, apperrors.NewNotFound("no project with that join code")
	}
	return s.projects[id].Clone(), nil
}

// ListByMember returns the user's projects, most recently updated first
func (s *ProjectStore) ListByMember(ctx context.Context, userID string) ([]*project.Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []*project.Project{}
	for _, p := range s.projects {
		if _, ok := p.FindMember(userID); ok {
			out = append(out, p.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].UpdatedAt.After(out[j].UpdatedAt)
	})
	return out, nil
}

// Delete removes a project
func (s *ProjectStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, exists := s.projects[id]
	if !exists {
		return apperrors.NewNotFound("project not found")
	}
	delete(s.joinCodes, p.JoinCode)
	delete(s.projects, id)
	return nil
}
