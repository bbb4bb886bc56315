package services

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"qdesign-backend/application/ports"
	"qdesign-backend/domain/access"
	"qdesign-backend/domain/events"
	"qdesign-backend/domain/project"
	"qdesign-backend/pkg/auth"
	"qdesign-backend/pkg/observability"
	"qdesign-backend/pkg/utils"
)

// Caller is the authenticated user behind an operation, plus the realtime
// session to exclude from server notices if the request came from one
type Caller struct {
	UserID    string
	Name      string
	Email     string
	SessionID string
}

// CallerFromUser builds a caller out of the request's user context
func CallerFromUser(u *auth.UserContext, sessionID string) Caller {
	return Caller{UserID: u.UserID, Name: u.Name, Email: u.Email, SessionID: sessionID}
}

// Ref is the reference stored on documents the caller authors
func (c Caller) Ref() project.UserRef {
	return project.UserRef{ID: c.UserID, Name: c.Name, Email: c.Email}
}

func (c Caller) origin() ports.Origin {
	name := c.Name
	if name == "" {
		name = c.UserID
	}
	return ports.Origin{SessionID: c.SessionID, UserID: c.UserID, UserName: name}
}

// Documents is the load, check, mutate, save cycle every write path runs.
// Access and validation happen on an in-memory copy before the save, so a
// rejected operation never reaches the store.
type Documents struct {
	store   ports.ProjectStore
	metrics *observability.Collector
	tracer  trace.Tracer
	logger  *zap.Logger
	now     func() time.Time
}

// NewDocuments creates the shared document helper
func NewDocuments(store ports.ProjectStore, metrics *observability.Collector, tracer *observability.TracerProvider, logger *zap.Logger) *Documents {
	return &Documents{
		store:   store,
		metrics: metrics,
		tracer:  tracer.Tracer(),
		logger:  logger,
		now:     utils.Now,
	}
}

func (d *Documents) span(ctx context.Context, op, projectID string, caller Caller) (context.Context, trace.Span) {
	return d.tracer.Start(ctx, op, trace.WithAttributes(
		attribute.String("project.id", projectID),
		attribute.String("user.id", caller.UserID),
	))
}

func (d *Documents) get(ctx context.Context, projectID string) (*project.Project, error) {
	start := time.Now()
	p, err := d.store.GetByID(ctx, projectID)
	d.metrics.ObserveStore("get", time.Since(start), err)
	return p, err
}

func (d *Documents) save(ctx context.Context, p *project.Project) error {
	start := time.Now()
	err := d.store.Save(ctx, p)
	d.metrics.ObserveStore("save", time.Since(start), err)
	return err
}

// Read loads a project the caller is a member of
func (d *Documents) Read(ctx context.Context, op string, caller Caller, projectID string) (*project.Project, error) {
	return d.Load(ctx, op, caller, projectID, access.Read)
}

// Load fetches a project after checking the caller holds level on it
func (d *Documents) Load(ctx context.Context, op string, caller Caller, projectID string, level access.Level) (p *project.Project, err error) {
	ctx, span := d.span(ctx, op, projectID, caller)
	defer func() { observability.EndSpan(span, err) }()

	p, err = d.get(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if _, err = access.Require(p, caller.UserID, level); err != nil {
		return nil, err
	}
	return p, nil
}

// Mutate loads the project, checks the caller holds level, runs fn on the
// loaded copy and saves the result. fn returning an error aborts the save.
func (d *Documents) Mutate(
	ctx context.Context,
	op string,
	caller Caller,
	projectID string,
	level access.Level,
	fn func(p *project.Project, now time.Time) error,
) (p *project.Project, err error) {
	ctx, span := d.span(ctx, op, projectID, caller)
	defer func() { observability.EndSpan(span, err) }()

	p, err = d.get(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if _, err = access.Require(p, caller.UserID, level); err != nil {
		return nil, err
	}

	now := d.now()
	if err = fn(p, now); err != nil {
		return nil, err
	}
	p.Touch(now)

	if err = d.save(ctx, p); err != nil {
		d.logger.Error("Failed to save project",
			zap.String("op", op),
			zap.String("projectID", projectID),
			zap.Error(err))
		return nil, err
	}
	return p, nil
}

type nopNotifier struct{}

func (nopNotifier) Broadcast(string, events.Type, interface{}, ports.Origin) {}
func (nopNotifier) CloseRoom(string) {}

type nopPublisher struct{}

func (nopPublisher) Publish(context.Context, events.DomainEvent) error { return nil }
func (nopPublisher) PublishBatch(context.Context, []events.DomainEvent) error { return nil }

func publish(ctx context.Context, publisher ports.EventPublisher, logger *zap.Logger, event events.DomainEvent) {
	if err := publisher.Publish(ctx, event); err != nil {
		logger.Warn("Failed to publish lifecycle event",
			zap.String("eventType", event.GetEventType()),
			zap.String("projectID", event.GetAggregateID()),
			zap.Error(err))
	}
}
