package services

import (
	"context"
	"time"

	"go.uber.org/zap"

	"qdesign-backend/application/ports"
	"qdesign-backend/domain/access"
	"qdesign-backend/domain/events"
	"qdesign-backend/domain/project"
)

// CheckpointService snapshots and restores a project's mutable state.
// The checkpoint list only ever grows.
type CheckpointService struct {
	docs      *Documents
	notifier  ports.RoomNotifier
	publisher ports.EventPublisher
	logger    *zap.Logger
}

// NewCheckpointService creates a new checkpoint service
func NewCheckpointService(
	docs *Documents,
	notifier ports.RoomNotifier,
	publisher ports.EventPublisher,
	logger *zap.Logger,
) *CheckpointService {
	if notifier == nil {
		notifier = nopNotifier{}
	}
	if publisher == nil {
		publisher = nopPublisher{}
	}
	return &CheckpointService{
		docs:      docs,
		notifier:  notifier,
		publisher: publisher,
		logger:    logger.With(zap.String("service", "checkpoint")),
	}
}

// Create captures the current pool, graph and steps and returns the updated
// project together with the new checkpoint
func (s *CheckpointService) Create(ctx context.Context, caller Caller, projectID, name, description string) (*project.Project, project.Checkpoint, error) {
	var cp project.Checkpoint
	p, err := s.docs.Mutate(ctx, "CheckpointService.Create", caller, projectID, access.Edit,
		func(p *project.Project, now time.Time) error {
			var err error
			cp, err = p.CreateCheckpoint(name, description, caller.Ref(), now)
			return err
		})
	if err != nil {
		return nil, project.Checkpoint{}, err
	}

	s.docs.metrics.CheckpointOperation("create")
	s.logger.Info("Checkpoint created",
		zap.String("projectID", projectID),
		zap.String("checkpointID", cp.ID))
	publish(ctx, s.publisher, s.logger, events.NewCheckpointCreated(projectID, cp.ID, cp.Name, caller.UserID, cp.CreatedAt))
	return p, cp, nil
}

// Restore overwrites the live mode, pool, graph and steps with the
// checkpoint's copies and tells the room to reload
func (s *CheckpointService) Restore(ctx context.Context, caller Caller, projectID, checkpointID string) (*project.Project, error) {
	var cp project.Checkpoint
	p, err := s.docs.Mutate(ctx, "CheckpointService.Restore", caller, projectID, access.Edit,
		func(p *project.Project, now time.Time) error {
			var err error
			cp, err = p.RestoreCheckpoint(checkpointID, now)
			return err
		})
	if err != nil {
		return nil, err
	}

	s.docs.metrics.CheckpointOperation("restore")
	s.notifier.Broadcast(projectID, events.CheckpointRestored, events.CheckpointRestoredData{
		Checkpoint: cp.Summary(),
		Mode:       p.CurrentMode,
	}, caller.origin())

	s.logger.Info("Checkpoint restored",
		zap.String("projectID", projectID),
		zap.String("checkpointID", checkpointID))
	publish(ctx, s.publisher, s.logger, events.NewCheckpointRestored(projectID, cp.ID, cp.Name, caller.UserID, p.UpdatedAt))
	return p, nil
}

// List returns checkpoint metadata, oldest first
func (s *CheckpointService) List(ctx context.Context, caller Caller, projectID string) ([]project.CheckpointSummary, error) {
	p, err := s.docs.Read(ctx, "CheckpointService.List", caller, projectID)
	if err != nil {
		return nil, err
	}
	return p.CheckpointSummaries(), nil
}
