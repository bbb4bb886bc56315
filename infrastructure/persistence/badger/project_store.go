// Package badger stores project documents in an embedded BadgerDB. It is
// the single-node durable option when no DynamoDB table is available.
//
// Key layout:
//
//	project/<id>             JSON document
//	joincode/<CODE>          project id
//	member/<userID>/<id>     membership index, empty value
package badger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"
	"go.uber.org/zap"

	"qdesign-backend/domain/project"
	apperrors "qdesign-backend/pkg/errors"
)

const (
	projectPrefix  = "project/"
	joinCodePrefix = "joincode/"
	memberPrefix   = "member/"

	// optimistic transactions can collide under concurrent writers
	maxTxnRetries = 3
)

// Options configures the embedded database
type Options struct {
	Path           string
	InMemory       bool
	SyncWrites     bool
	GCInterval     time.Duration
	GCDiscardRatio float64
}

// zapLogger adapts zap to badger.Logger
type zapLogger struct {
	s *zap.SugaredLogger
}

func (l zapLogger) Errorf(format string, args ...interface{})   { l.s.Errorf(format, args...) }
func (l zapLogger) Warningf(format string, args ...interface{}) { l.s.Warnf(format, args...) }
func (l zapLogger) Infof(format string, args ...interface{})    { l.s.Debugf(format, args...) }
func (l zapLogger) Debugf(format string, args ...interface{})   { l.s.Debugf(format, args...) }

// ProjectStore implements ports.ProjectStore on BadgerDB
type ProjectStore struct {
	db     *badger.DB
	logger *zap.Logger

	stopGC chan struct{}
	gcDone chan struct{}
	once   sync.Once
}

// Open opens (or creates) the database described by opts
func Open(opts Options, logger *zap.Logger) (*ProjectStore, error) {
	if !opts.InMemory && opts.Path == "" {
		return nil, errors.New("badger path is required for a persistent store")
	}

	var bopts badger.Options
	if opts.InMemory {
		bopts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(opts.Path, 0o750); err != nil {
			return nil, fmt.Errorf("create badger directory %s: %w", opts.Path, err)
		}
		bopts = badger.DefaultOptions(opts.Path)
	}
	bopts = bopts.
		WithSyncWrites(opts.SyncWrites).
		WithNumVersionsToKeep(1).
		WithLogger(zapLogger{s: logger.Named("badger").Sugar()})

	db, err := badger.Open(bopts)
	if err != nil {
		return nil, fmt.Errorf("open badger database: %w", err)
	}

	s := &ProjectStore{
		db:     db,
		logger: logger.With(zap.String("component", "badger_store")),
		stopGC: make(chan struct{}),
		gcDone: make(chan struct{}),
	}
	if opts.GCInterval > 0 && !opts.InMemory {
		ratio := opts.GCDiscardRatio
		if ratio <= 0 || ratio >= 1 {
			ratio = 0.5
		}
		go s.runGC(opts.GCInterval, ratio)
	} else {
		close(s.gcDone)
	}
	return s, nil
}

func (s *ProjectStore) runGC(interval time.Duration, ratio float64) {
	defer close(s.gcDone)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-s.stopGC:
			return
		case <-ticker.C:
			if err := s.db.RunValueLogGC(ratio); err != nil && !errors.Is(err, badger.ErrNoRewrite) {
				s.logger.Warn("Value log GC failed", zap.Error(err))
			}
		}
	}
}

// Close stops GC and closes the database
func (s *ProjectStore) Close() error {
	var err error
	s.once.Do(func() {
		close(s.stopGC)
		<-s.gcDone
		err = s.db.Close()
	})
	return err
}

func projectKey(id string) []byte { return []byte(projectPrefix + id) }

func joinCodeKey(code string) []byte { return []byte(joinCodePrefix + code) }

func memberKey(userID, projectID string) []byte {
	return []byte(memberPrefix + userID + "/" + projectID)
}

func (s *ProjectStore) update(fn func(txn *badger.Txn) error) error {
	var err error
	for attempt := 0; attempt < maxTxnRetries; attempt++ {
		err = s.db.Update(fn)
		if !errors.Is(err, badger.ErrConflict) {
			return err
		}
	}
	return apperrors.NewConflict("concurrent update, try again")
}

func readProject(txn *badger.Txn, id string) (*project.Project, error) {
	item, err := txn.Get(projectKey(id))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, apperrors.NewNotFound("project not found")
	}
	if err != nil {
		return nil, apperrors.NewInternal("failed to read project", err)
	}

	var p project.Project
	if err := item.Value(func(val []byte) error {
		return json.Unmarshal(val, &p)
	}); err != nil {
		return nil, apperrors.NewInternal("failed to decode project", err)
	}
	return &p, nil
}

func writeProject(txn *badger.Txn, p *project.Project) error {
	data, err := json.Marshal(p)
	if err != nil {
		return apperrors.NewInternal("failed to encode project", err)
	}
	return txn.Set(projectKey(p.ID), data)
}

func exists(txn *badger.Txn, key []byte) (bool, error) {
	_, err := txn.Get(key)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return false, nil
	}
	return err == nil, err
}

// Create inserts a new project with its join code and membership entries
func (s *ProjectStore) Create(ctx context.Context, p *project.Project) error {
	if p == nil || p.ID == "" {
		return apperrors.NewValidation("project id is required")
	}

	return s.update(func(txn *badger.Txn) error {
		if found, err := exists(txn, projectKey(p.ID)); err != nil {
			return err
		} else if found {
			return apperrors.NewConflict("project already exists")
		}
		if found, err := exists(txn, joinCodeKey(p.JoinCode)); err != nil {
			return err
		} else if found {
			return apperrors.NewConflict("join code already in use")
		}

		if err := writeProject(txn, p); err != nil {
			return err
		}
		if err := txn.Set(joinCodeKey(p.JoinCode), []byte(p.ID)); err != nil {
			return err
		}
		for _, id := range p.MemberIDs() {
			if err := txn.Set(memberKey(id, p.ID), nil); err != nil {
				return err
			}
		}
		return nil
	})
}

// Save replaces the stored document and keeps the indexes in step with it
func (s *ProjectStore) Save(ctx context.Context, p *project.Project) error {
	if p == nil || p.ID == "" {
		return apperrors.NewValidation("project id is required")
	}

	return s.update(func(txn *badger.Txn) error {
		current, err := readProject(txn, p.ID)
		if err != nil {
			return err
		}

		if current.JoinCode != p.JoinCode {
			if found, err := exists(txn, joinCodeKey(p.JoinCode)); err != nil {
				return err
			} else if found {
				return apperrors.NewConflict("join code already in use")
			}
			if err := txn.Delete(joinCodeKey(current.JoinCode)); err != nil {
				return err
			}
			if err := txn.Set(joinCodeKey(p.JoinCode), []byte(p.ID)); err != nil {
				return err
			}
		}

		added, removed := diffMembers(current.MemberIDs(), p.MemberIDs())
		for _, id := range added {
			if err := txn.Set(memberKey(id, p.ID), nil); err != nil {
				return err
			}
		}
		for _, id := range removed {
			if err := txn.Delete(memberKey(id, p.ID)); err != nil {
				return err
			}
		}
		return writeProject(txn, p)
	})
}

// GetByID retrieves a project by its ID
func (s *ProjectStore) GetByID(ctx context.Context, id string) (*project.Project, error) {
	var p *project.Project
	err := s.db.View(func(txn *badger.Txn) error {
		var err error
		p, err = readProject(txn, id)
		return err
	})
	return p, err
}

// GetByJoinCode retrieves a project by its join code
func (s *ProjectStore) GetByJoinCode(ctx context.Context, joinCode string) (*project.Project, error) {
	var p *project.Project
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(joinCodeKey(project.NormalizeJoinCode(joinCode)))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return apperrors.NewNotFound("no project with that join code")
		}
		if err != nil {
			return apperrors.NewInternal("failed to read join code", err)
		}
		id, err := item.ValueCopy(nil)
		if err != nil {
			return apperrors.NewInternal("failed to read join code", err)
		}
		p, err = readProject(txn, string(id))
		return err
	})
	return p, err
}

// ListByMember returns the user's projects, most recently updated first
func (s *ProjectStore) ListByMember(ctx context.Context, userID string) ([]*project.Project, error) {
	out := []*project.Project{}
	err := s.db.View(func(txn *badger.Txn) error {
		prefix := []byte(memberPrefix + userID + "/")
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = prefix

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			projectID := string(it.Item().Key()[len(prefix):])
			p, err := readProject(txn, projectID)
			if apperrors.IsNotFound(err) {
				s.logger.Warn("Dangling membership index entry",
					zap.String("userID", userID),
					zap.String("projectID", projectID))
				continue
			}
			if err != nil {
				return err
			}
			out = append(out, p)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].UpdatedAt.After(out[j].UpdatedAt)
	})
	return out, nil
}

// Delete removes a project and its index entries
func (s *ProjectStore) Delete(ctx context.Context, id string) error {
	return s.update(func(txn *badger.Txn) error {
		current, err := readProject(txn, id)
		if err != nil {
			return err
		}
		for _, userID := range current.MemberIDs() {
			if err := txn.Delete(memberKey(userID, id)); err != nil {
				return err
			}
		}
		if err := txn.Delete(joinCodeKey(current.JoinCode)); err != nil {
			return err
		}
		return txn.Delete(projectKey(id))
	})
}

func diffMembers(before, after []string) (added, removed []string) {
	prev := make(map[string]struct{}, len(before))
	for _, id := range before {
		prev[id] = struct{}{}
	}
	next := make(map[string]struct{}, len(after))
	for _, id := range after {
		next[id] = struct{}{}
		if _, ok := prev[id]; !ok {
			added = append(added, id)
		}
	}
	for _, id := range before {
		if _, ok := next[id]; !ok {
			removed = append(removed, id)
		}
	}
	return added, removed
}
