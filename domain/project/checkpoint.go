package project

import (
	"strings"
	"time"

	apperrors "qdesign-backend/pkg/errors"
)

// Checkpoint is an immutable snapshot of the project's mutable subtree.
// Its collections never share memory with the live project.
type Checkpoint struct {
	ID               string            `json:"id"`
	Name             string            `json:"name"`
	Description      string            `json:"description,omitempty"`
	Mode             Mode              `json:"mode"`
	DataPool         []DataPoolItem    `json:"dataPool"`
	KnowledgeGraph   KnowledgeGraph    `json:"knowledgeGraph"`
	CoScientistSteps []CoScientistStep `json:"coScientistSteps"`
	CreatedBy        UserRef           `json:"createdBy"`
	CreatedAt        time.Time         `json:"createdAt"`
}

// CheckpointSummary is the checkpoint metadata without the captured state
type CheckpointSummary struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Mode        Mode      `json:"mode"`
	CreatedBy   UserRef   `json:"createdBy"`
	CreatedAt   time.Time `json:"createdAt"`
	PoolItems   int       `json:"poolItems"`
	Nodes       int       `json:"nodes"`
	Edges       int       `json:"edges"`
	Steps       int       `json:"steps"`
}

// Summary drops the captured state
func (c Checkpoint) Summary() CheckpointSummary {
	return CheckpointSummary{
		ID:          c.ID,
		Name:        c.Name,
		Description: c.Description,
		Mode:        c.Mode,
		CreatedBy:   c.CreatedBy,
		CreatedAt:   c.CreatedAt,
		PoolItems:   len(c.DataPool),
		Nodes:       len(c.KnowledgeGraph.Nodes),
		Edges:       len(c.KnowledgeGraph.Edges),
		Steps:       len(c.CoScientistSteps),
	}
}

// CreateCheckpoint captures a deep copy of the live state and appends it to
// the checkpoint log
func (p *Project) CreateCheckpoint(name, description string, by UserRef, now time.Time) (Checkpoint, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Checkpoint{}, apperrors.NewValidation("checkpoint name is required")
	}

	cp := Checkpoint{
		ID:               NewID(),
		Name:             name,
		Description:      description,
		Mode:             p.CurrentMode,
		DataPool:         cloneDataPool(p.DataPool),
		KnowledgeGraph:   p.KnowledgeGraph.Clone(),
		CoScientistSteps: cloneSteps(p.CoScientistSteps),
		CreatedBy:        by,
		CreatedAt:        now,
	}
	p.Checkpoints = append(p.Checkpoints, cp)
	p.Touch(now)
	return cp.Clone(), nil
}

// Checkpoint returns the checkpoint with the given id
func (p *Project) Checkpoint(checkpointID string) (*Checkpoint, error) {
	for i := range p.Checkpoints {
		if p.Checkpoints[i].ID == checkpointID {
			return &p.Checkpoints[i], nil
		}
	}
	return nil, apperrors.NewNotFound("checkpoint not found")
}

// RestoreCheckpoint overwrites the live mode, data pool, knowledge graph and
// steps with copies of the checkpoint's captured state. The checkpoint log
// itself is left as it is.
func (p *Project) RestoreCheckpoint(checkpointID string, now time.Time) (Checkpoint, error) {
	cp, err := p.Checkpoint(checkpointID)
	if err != nil {
		return Checkpoint{}, err
	}

	if cp.Mode != "" {
		p.CurrentMode = cp.Mode
	}
	p.DataPool = cloneDataPool(cp.DataPool)
	p.KnowledgeGraph = cp.KnowledgeGraph.Clone()
	p.CoScientistSteps = cloneSteps(cp.CoScientistSteps)
	p.Touch(now)
	return cp.Clone(), nil
}

// CheckpointSummaries lists checkpoint metadata in creation order
func (p *Project) CheckpointSummaries() []CheckpointSummary {
	out := make([]CheckpointSummary, 0, len(p.Checkpoints))
	for _, cp := range p.Checkpoints {
		out = append(out, cp.Summary())
	}
	return out
}
