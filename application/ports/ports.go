package ports

import (
	"context"
	"io"
	"time"

	"qdesign-backend/domain/events"
	"qdesign-backend/domain/project"
)

// ProjectStore persists whole project documents.
// This is a port in hexagonal architecture - the domain doesn't know about the implementation
type ProjectStore interface {
	// Create inserts a new project. Fails with Conflict when the id or join
	// code is already taken.
	Create(ctx context.Context, p *project.Project) error

	// Save replaces the stored document. Last writer wins.
	Save(ctx context.Context, p *project.Project) error

	// GetByID returns the project or NotFound
	GetByID(ctx context.Context, id string) (*project.Project, error)

	// GetByJoinCode looks a project up by its normalized join code
	GetByJoinCode(ctx context.Context, joinCode string) (*project.Project, error)

	// ListByMember returns every project the user is a member of
	ListByMember(ctx context.Context, userID string) ([]*project.Project, error)

	// Delete removes the project and its join code reservation
	Delete(ctx context.Context, id string) error
}

// BlobObject describes stored artifact content
type BlobObject struct {
	Key         string
	ContentType string
	Size        int64
}

// BlobStore keeps large artifact content out of the project document
type BlobStore interface {
	// Put stores content under key and returns the reference kept on the item
	Put(ctx context.Context, key string, contentType string, r io.Reader) (string, error)

	// Get opens the content behind a reference returned by Put
	Get(ctx context.Context, ref string) (io.ReadCloser, BlobObject, error)

	// Delete removes the content; missing refs are not an error
	Delete(ctx context.Context, ref string) error
}

// RoomNotifier pushes server-initiated events into a project's room
type RoomNotifier interface {
	// Broadcast delivers to every session in the room except origin.SessionID.
	// Delivery is best effort.
	Broadcast(projectID string, eventType events.Type, data interface{}, origin Origin)

	// CloseRoom detaches every session from the room
	CloseRoom(projectID string)
}

// Origin identifies who caused a notification
type Origin struct {
	SessionID string
	UserID    string
	UserName  string
}

// EventPublisher defines the interface for publishing lifecycle events
type EventPublisher interface {
	// Publish sends a single event
	Publish(ctx context.Context, event events.DomainEvent) error

	// PublishBatch sends multiple events
	PublishBatch(ctx context.Context, events []events.DomainEvent) error
}

// RetrievalJobState is the upstream state of a retrieval job
type RetrievalJobState string

const (
	JobPending   RetrievalJobState = "pending"
	JobRunning   RetrievalJobState = "running"
	JobCompleted RetrievalJobState = "completed"
	JobFailed    RetrievalJobState = "failed"
)

// RetrievalQuery is what the caller asks the retrieval service for
type RetrievalQuery struct {
	Query      string   `json:"query"`
	Sources    []string `json:"sources,omitempty"`
	MaxResults int      `json:"maxResults,omitempty"`
}

// RetrievalResult is one document found upstream
type RetrievalResult struct {
	Title   string  `json:"title"`
	Source  string  `json:"source,omitempty"`
	URL     string  `json:"url,omitempty"`
	Summary string  `json:"summary,omitempty"`
	Content string  `json:"content,omitempty"`
	Kind    string  `json:"kind,omitempty"`
	Score   float64 `json:"score,omitempty"`
}

// RetrievalStatus is a snapshot of an upstream job
type RetrievalStatus struct {
	JobID     string            `json:"jobId"`
	State     RetrievalJobState `json:"state"`
	Progress  float64           `json:"progress,omitempty"`
	Error     string            `json:"error,omitempty"`
	Results   []RetrievalResult `json:"results,omitempty"`
	UpdatedAt time.Time         `json:"updatedAt,omitempty"`
}

// RetrievalClient talks to the external retrieval and analysis service
type RetrievalClient interface {
	// Submit starts a job and returns its upstream id
	Submit(ctx context.Context, q RetrievalQuery) (string, error)

	// Status reports the job's current state
	Status(ctx context.Context, jobID string) (RetrievalStatus, error)
}
