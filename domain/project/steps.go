package project

import (
	"strings"
	"time"

	apperrors "qdesign-backend/pkg/errors"
)

// CoScientistStep is one step of the AI-assisted reasoning trail
type CoScientistStep struct {
	ID          string       `json:"id"`
	Type        StepType     `json:"type"`
	Title       string       `json:"title"`
	Content     string       `json:"content"`
	Attachments []Attachment `json:"attachments"`
	Comments    []Comment    `json:"comments"`
	Status      StepStatus   `json:"status"`
	CreatedAt   time.Time    `json:"createdAt"`
}

// Attachment links a step to supporting material
type Attachment struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Type string `json:"type,omitempty"`
	Ref  string `json:"ref,omitempty"`
}

// Validate checks a step's own fields
func (s CoScientistStep) Validate() error {
	if s.ID == "" {
		return apperrors.NewValidation("step id is required")
	}
	if !s.Type.IsValid() {
		return apperrors.NewValidationf("invalid step type %q", s.Type)
	}
	if strings.TrimSpace(s.Title) == "" {
		return apperrors.NewValidation("step title is required")
	}
	if !s.Status.IsValid() {
		return apperrors.NewValidationf("invalid step status %q", s.Status)
	}
	return nil
}

// ValidateSteps checks every step and id uniqueness
func ValidateSteps(steps []CoScientistStep) error {
	seen := make(map[string]struct{}, len(steps))
	for _, s := range steps {
		if err := s.Validate(); err != nil {
			return err
		}
		if _, dup := seen[s.ID]; dup {
			return apperrors.NewValidationf("duplicate step id %q", s.ID)
		}
		seen[s.ID] = struct{}{}
	}
	return nil
}

// Step returns the step with the given id
func (p *Project) Step(stepID string) (*CoScientistStep, error) {
	for i := range p.CoScientistSteps {
		if p.CoScientistSteps[i].ID == stepID {
			return &p.CoScientistSteps[i], nil
		}
	}
	return nil, apperrors.NewNotFound("step not found")
}

// AddStep appends a step; new steps start pending
func (p *Project) AddStep(step CoScientistStep) error {
	if step.Status == "" {
		step.Status = StepPending
	}
	if step.Attachments == nil {
		step.Attachments = []Attachment{}
	}
	if step.Comments == nil {
		step.Comments = []Comment{}
	}
	if err := step.Validate(); err != nil {
		return err
	}
	if _, err := p.Step(step.ID); err == nil {
		return apperrors.NewConflict("step already exists")
	}
	p.CoScientistSteps = append(p.CoScientistSteps, step)
	return nil
}

// CanTransition reports whether a step may move from one status to another.
// Only pending (or modified) steps can be decided; re-applying the current
// decision is allowed.
func CanTransition(from, to StepStatus) bool {
	if to != StepApproved && to != StepRejected {
		return false
	}
	switch from {
	case StepPending, StepModified:
		return true
	case StepApproved, StepRejected:
		return from == to
	}
	return false
}

// SetStepStatus approves or rejects a step
func (p *Project) SetStepStatus(stepID string, status StepStatus) (*CoScientistStep, error) {
	if status != StepApproved && status != StepRejected {
		return nil, apperrors.NewValidationf("invalid target status %q", status)
	}
	step, err := p.Step(stepID)
	if err != nil {
		return nil, err
	}
	if !CanTransition(step.Status, status) {
		return nil, apperrors.NewConflict("step has already been " + string(step.Status))
	}
	step.Status = status
	return step, nil
}

// AddStepComment appends a comment to a step
func (p *Project) AddStepComment(stepID string, comment Comment) error {
	step, err := p.Step(stepID)
	if err != nil {
		return err
	}
	step.Comments = append(step.Comments, comment)
	return nil
}
