// Package project holds the shared research project document: its members,
// data pool, knowledge graph, co-scientist steps and checkpoints, together
// with the invariants every mutation has to respect.
package project

import (
	"strings"
	"time"

	"github.com/google/uuid"

	apperrors "qdesign-backend/pkg/errors"
)

// Project is the root aggregate shared by every member of a workspace
type Project struct {
	ID                  string            `json:"id"`
	Name                string            `json:"name"`
	Description         string            `json:"description,omitempty"`
	MainObjective       string            `json:"mainObjective"`
	SecondaryObjectives []string          `json:"secondaryObjectives"`
	Constraints         []string          `json:"constraints"`
	Notes               string            `json:"notes,omitempty"`
	JoinCode            string            `json:"joinCode"`
	Owner               UserRef           `json:"owner"`
	Members             []Member          `json:"members"`
	CurrentMode         Mode              `json:"currentMode"`
	DataPool            []DataPoolItem    `json:"dataPool"`
	KnowledgeGraph      KnowledgeGraph    `json:"knowledgeGraph"`
	CoScientistSteps    []CoScientistStep `json:"coScientistSteps"`
	Checkpoints         []Checkpoint      `json:"checkpoints"`
	CreatedAt           time.Time         `json:"createdAt"`
	UpdatedAt           time.Time         `json:"updatedAt"`
}

// Member grants a user a role on the project
type Member struct {
	User     UserRef   `json:"user"`
	Role     Role      `json:"role"`
	JoinedAt time.Time `json:"joinedAt"`
}

// NewID returns a fresh identifier for any entity in the document
func NewID() string {
	return uuid.NewString()
}

// New creates a project owned by owner; the owner is its only member
func New(name, mainObjective string, owner UserRef, joinCode string, now time.Time) (*Project, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, apperrors.NewValidation("project name is required")
	}
	if owner.IsZero() {
		return nil, apperrors.NewValidation("project owner is required")
	}
	code := NormalizeJoinCode(joinCode)
	if !IsValidJoinCode(code) {
		return nil, apperrors.NewValidationf("invalid join code %q", joinCode)
	}

	return &Project{
		ID:                  NewID(),
		Name:                name,
		MainObjective:       strings.TrimSpace(mainObjective),
		SecondaryObjectives: []string{},
		Constraints:         []string{},
		JoinCode:            code,
		Owner:               owner,
		Members:             []Member{{User: owner, Role: RoleOwner, JoinedAt: now}},
		CurrentMode:         ModePool,
		DataPool:            []DataPoolItem{},
		KnowledgeGraph:      NewKnowledgeGraph(),
		CoScientistSteps:    []CoScientistStep{},
		Checkpoints:         []Checkpoint{},
		CreatedAt:           now,
		UpdatedAt:           now,
	}, nil
}

// FindMember returns the membership record for userID
func (p *Project) FindMember(userID string) (Member, bool) {
	for _, m := range p.Members {
		if m.User.Is(userID) {
			return m, true
		}
	}
	return Member{}, false
}

// AddMember appends a membership; a user appears at most once
func (p *Project) AddMember(user UserRef, role Role, now time.Time) error {
	if user.IsZero() {
		return apperrors.NewValidation("member user is required")
	}
	if !role.IsValid() || role == RoleOwner {
		return apperrors.NewValidationf("invalid member role %q", role)
	}
	if _, ok := p.FindMember(user.ID); ok {
		return apperrors.NewConflict("user is already a member of this project")
	}
	p.Members = append(p.Members, Member{User: user, Role: role, JoinedAt: now})
	return nil
}

// MemberIDs lists the canonical ids of every member
func (p *Project) MemberIDs() []string {
	ids := make([]string, 0, len(p.Members))
	for _, m := range p.Members {
		ids = append(ids, m.User.ID)
	}
	return ids
}

// Touch records a mutation time
func (p *Project) Touch(now time.Time) {
	p.UpdatedAt = now
}

// Patch is the allow-list of fields a client may overwrite through update.
// Nil fields are left untouched on the loaded server copy.
type Patch struct {
	Name                *string            `json:"name,omitempty"`
	MainObjective       *string            `json:"mainObjective,omitempty"`
	SecondaryObjectives *[]string          `json:"secondaryObjectives,omitempty"`
	Constraints         *[]string          `json:"constraints,omitempty"`
	Notes               *string            `json:"notes,omitempty"`
	Description         *string            `json:"description,omitempty"`
	CurrentMode         *Mode              `json:"currentMode,omitempty"`
	DataPool            *[]DataPoolItem    `json:"dataPool,omitempty"`
	KnowledgeGraph      *KnowledgeGraph    `json:"knowledgeGraph,omitempty"`
	CoScientistSteps    *[]CoScientistStep `json:"coScientistSteps,omitempty"`
}

// IsEmpty reports whether the patch changes nothing
func (p Patch) IsEmpty() bool {
	return p.Name == nil && p.MainObjective == nil && p.SecondaryObjectives == nil &&
		p.Constraints == nil && p.Notes == nil && p.Description == nil &&
		p.CurrentMode == nil && p.DataPool == nil && p.KnowledgeGraph == nil &&
		p.CoScientistSteps == nil
}

// Validate checks every provided field without touching the project
func (p Patch) Validate() error {
	if p.Name != nil && strings.TrimSpace(*p.Name) == "" {
		return apperrors.NewValidation("project name cannot be empty")
	}
	if p.CurrentMode != nil && !p.CurrentMode.IsValid() {
		return apperrors.NewValidationf("invalid mode %q", *p.CurrentMode)
	}
	if p.DataPool != nil {
		if err := ValidateDataPool(*p.DataPool); err != nil {
			return err
		}
	}
	if p.KnowledgeGraph != nil {
		if err := p.KnowledgeGraph.Validate(); err != nil {
			return err
		}
	}
	if p.CoScientistSteps != nil {
		if err := ValidateSteps(*p.CoScientistSteps); err != nil {
			return err
		}
	}
	return nil
}

// Apply validates the patch and then copies the provided fields onto the
// project. Nothing is modified when validation fails.
func (p *Project) Apply(patch Patch, now time.Time) error {
	if err := patch.Validate(); err != nil {
		return err
	}

	if patch.Name != nil {
		p.Name = strings.TrimSpace(*patch.Name)
	}
	if patch.MainObjective != nil {
		p.MainObjective = *patch.MainObjective
	}
	if patch.SecondaryObjectives != nil {
		p.SecondaryObjectives = cloneStrings(*patch.SecondaryObjectives)
	}
	if patch.Constraints != nil {
		p.Constraints = cloneStrings(*patch.Constraints)
	}
	if patch.Notes != nil {
		p.Notes = *patch.Notes
	}
	if patch.Description != nil {
		p.Description = *patch.Description
	}
	if patch.CurrentMode != nil {
		p.CurrentMode = *patch.CurrentMode
	}
	if patch.DataPool != nil {
		p.DataPool = cloneDataPool(*patch.DataPool)
	}
	if patch.KnowledgeGraph != nil {
		p.KnowledgeGraph = patch.KnowledgeGraph.Clone()
	}
	if patch.CoScientistSteps != nil {
		p.CoScientistSteps = cloneSteps(*patch.CoScientistSteps)
	}

	p.Touch(now)
	return nil
}
