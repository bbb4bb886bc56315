package services

import (
	"context"
	"time"

	"go.uber.org/zap"

	"qdesign-backend/application/ports"
	"qdesign-backend/domain/access"
	"qdesign-backend/domain/events"
	"qdesign-backend/domain/project"
	apperrors "qdesign-backend/pkg/errors"
	"qdesign-backend/pkg/observability"
)

const joinCodeAttempts = 5

// ProjectService owns project lifecycle: create, list, get, update, delete
// and join by code
type ProjectService struct {
	docs      *Documents
	notifier  ports.RoomNotifier
	publisher ports.EventPublisher
	logger    *zap.Logger

	generateJoinCode func() (string, error)
}

// NewProjectService creates a new project service. A nil notifier or
// publisher disables the corresponding side channel.
func NewProjectService(
	docs *Documents,
	notifier ports.RoomNotifier,
	publisher ports.EventPublisher,
	logger *zap.Logger,
) *ProjectService {
	if notifier == nil {
		notifier = nopNotifier{}
	}
	if publisher == nil {
		publisher = nopPublisher{}
	}
	return &ProjectService{
		docs:             docs,
		notifier:         notifier,
		publisher:        publisher,
		logger:           logger.With(zap.String("service", "project")),
		generateJoinCode: project.GenerateJoinCode,
	}
}

// CreateProjectInput carries the creation fields
type CreateProjectInput struct {
	Name                string
	Description         string
	MainObjective       string
	SecondaryObjectives []string
	Constraints         []string
	Notes               string
}

// Create makes a project owned by the caller with a fresh join code. Join
// code collisions are retried a few times before giving up.
func (s *ProjectService) Create(ctx context.Context, caller Caller, in CreateProjectInput) (p *project.Project, err error) {
	ctx, span := s.docs.span(ctx, "ProjectService.Create", "", caller)
	defer func() { observability.EndSpan(span, err) }()

	now := s.docs.now()
	for attempt := 1; attempt <= joinCodeAttempts; attempt++ {
		code, genErr := s.generateJoinCode()
		if genErr != nil {
			return nil, apperrors.NewInternal("failed to generate join code", genErr)
		}

		p, err = project.New(in.Name, in.MainObjective, caller.Ref(), code, now)
		if err != nil {
			return nil, err
		}
		p.Description = in.Description
		p.Notes = in.Notes
		if in.SecondaryObjectives != nil {
			p.SecondaryObjectives = append([]string{}, in.SecondaryObjectives...)
		}
		if in.Constraints != nil {
			p.Constraints = append([]string{}, in.Constraints...)
		}

		start := time.Now()
		err = s.docs.store.Create(ctx, p)
		s.docs.metrics.ObserveStore("create", time.Since(start), err)
		if err == nil {
			break
		}
		if !apperrors.IsConflict(err) || attempt == joinCodeAttempts {
			return nil, err
		}
		s.logger.Debug("Join code collision, retrying", zap.Int("attempt", attempt))
	}

	s.logger.Info("Project created",
		zap.String("projectID", p.ID),
		zap.String("ownerID", caller.UserID))
	publish(ctx, s.publisher, s.logger, events.NewProjectCreated(p.ID, p.Name, caller.UserID, now))
	return p, nil
}

// List returns the projects the caller belongs to
func (s *ProjectService) List(ctx context.Context, caller Caller) (out []*project.Project, err error) {
	ctx, span := s.docs.span(ctx, "ProjectService.List", "", caller)
	defer func() { observability.EndSpan(span, err) }()

	start := time.Now()
	out, err = s.docs.store.ListByMember(ctx, caller.UserID)
	s.docs.metrics.ObserveStore("list", time.Since(start), err)
	return out, err
}

// Get returns the project if the caller is a member
func (s *ProjectService) Get(ctx context.Context, caller Caller, projectID string) (*project.Project, error) {
	return s.docs.Read(ctx, "ProjectService.Get", caller, projectID)
}

// Update applies the allow-listed fields present in patch to the stored
// copy. Absent fields keep whatever the store holds.
func (s *ProjectService) Update(ctx context.Context, caller Caller, projectID string, patch project.Patch) (*project.Project, error) {
	if patch.IsEmpty() {
		return nil, apperrors.NewValidation("no updatable fields provided")
	}
	return s.docs.Mutate(ctx, "ProjectService.Update", caller, projectID, access.Edit,
		func(p *project.Project, now time.Time) error {
			return p.Apply(patch, now)
		})
}

// Delete removes the project. Only the owner may do it; the room is told
// and then closed.
func (s *ProjectService) Delete(ctx context.Context, caller Caller, projectID string) (err error) {
	ctx, span := s.docs.span(ctx, "ProjectService.Delete", projectID, caller)
	defer func() { observability.EndSpan(span, err) }()

	p, err := s.docs.get(ctx, projectID)
	if err != nil {
		return err
	}
	if _, err = access.RequireOwner(p, caller.UserID); err != nil {
		return err
	}

	start := time.Now()
	err = s.docs.store.Delete(ctx, projectID)
	s.docs.metrics.ObserveStore("delete", time.Since(start), err)
	if err != nil {
		return err
	}

	s.notifier.Broadcast(projectID, events.ProjectDeleted, events.ProjectDeletedData{DeletedBy: caller.UserID}, caller.origin())
	s.notifier.CloseRoom(projectID)

	s.logger.Info("Project deleted", zap.String("projectID", projectID), zap.String("userID", caller.UserID))
	publish(ctx, s.publisher, s.logger, events.NewProjectDeleted(projectID, caller.UserID, s.docs.now()))
	return nil
}

// Join adds the caller as an editor of the project behind joinCode. The
// code is matched case-insensitively.
func (s *ProjectService) Join(ctx context.Context, caller Caller, joinCode string) (p *project.Project, err error) {
	ctx, span := s.docs.span(ctx, "ProjectService.Join", "", caller)
	defer func() { observability.EndSpan(span, err) }()

	code := project.NormalizeJoinCode(joinCode)
	if !project.IsValidJoinCode(code) {
		return nil, apperrors.NewValidation("join code must be 8 alphanumeric characters")
	}

	start := time.Now()
	p, err = s.docs.store.GetByJoinCode(ctx, code)
	s.docs.metrics.ObserveStore("get_by_join_code", time.Since(start), err)
	if err != nil {
		return nil, err
	}

	if err = access.CanJoin(p, caller.UserID); err != nil {
		return nil, err
	}
	now := s.docs.now()
	if err = p.AddMember(caller.Ref(), project.RoleEditor, now); err != nil {
		return nil, err
	}
	p.Touch(now)
	if err = s.docs.save(ctx, p); err != nil {
		return nil, err
	}

	s.logger.Info("Member joined",
		zap.String("projectID", p.ID),
		zap.String("userID", caller.UserID))
	publish(ctx, s.publisher, s.logger, events.NewMemberJoined(p.ID, caller.UserID, string(project.RoleEditor), now))
	return p, nil
}
