package services

import (
	"context"
	"time"

	"go.uber.org/zap"

	"qdesign-backend/domain/access"
	"qdesign-backend/domain/project"
)

// StepService manages the co-scientist reasoning trail
type StepService struct {
	docs   *Documents
	logger *zap.Logger
}

// NewStepService creates a new step service
func NewStepService(docs *Documents, logger *zap.Logger) *StepService {
	return &StepService{docs: docs, logger: logger.With(zap.String("service", "steps"))}
}

// AddStep appends a step; it starts pending
func (s *StepService) AddStep(ctx context.Context, caller Caller, projectID string, step project.CoScientistStep) (project.CoScientistStep, error) {
	if step.ID == "" {
		step.ID = project.NewID()
	}
	step.Status = ""
	var added project.CoScientistStep
	_, err := s.docs.Mutate(ctx, "StepService.AddStep", caller, projectID, access.Edit,
		func(p *project.Project, now time.Time) error {
			step.CreatedAt = now
			if err := p.AddStep(step); err != nil {
				return err
			}
			st, err := p.Step(step.ID)
			if err != nil {
				return err
			}
			added = st.Clone()
			return nil
		})
	return added, err
}

// SetStatus approves or rejects a step. Re-applying the current decision
// succeeds; reversing it is a Conflict.
func (s *StepService) SetStatus(ctx context.Context, caller Caller, projectID, stepID string, status project.StepStatus) (project.CoScientistStep, error) {
	var updated project.CoScientistStep
	_, err := s.docs.Mutate(ctx, "StepService.SetStatus", caller, projectID, access.Edit,
		func(p *project.Project, _ time.Time) error {
			st, err := p.SetStepStatus(stepID, status)
			if err != nil {
				return err
			}
			updated = st.Clone()
			return nil
		})
	return updated, err
}

// AddComment attaches a comment to a step
func (s *StepService) AddComment(ctx context.Context, caller Caller, projectID, stepID, text string) (project.Comment, error) {
	var comment project.Comment
	_, err := s.docs.Mutate(ctx, "StepService.AddComment", caller, projectID, access.Edit,
		func(p *project.Project, now time.Time) error {
			var err error
			if comment, err = project.NewComment(caller.Ref(), text, now); err != nil {
				return err
			}
			return p.AddStepComment(stepID, comment)
		})
	return comment, err
}
