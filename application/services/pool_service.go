package services

import (
	"bytes"
	"context"
	"io"
	"strings"
	"time"

	"go.uber.org/zap"

	"qdesign-backend/application/ports"
	"qdesign-backend/domain/access"
	"qdesign-backend/domain/project"
	apperrors "qdesign-backend/pkg/errors"
)

// DefaultInlineThreshold is the largest content kept inside the document
const DefaultInlineThreshold int64 = 10 << 20

// PoolService manages data pool items and their comments
type PoolService struct {
	docs            *Documents
	blobs           ports.BlobStore
	inlineThreshold int64
	logger          *zap.Logger
}

// NewPoolService creates a pool service. Without a blob store every
// payload is kept inline regardless of size.
func NewPoolService(docs *Documents, blobs ports.BlobStore, inlineThreshold int64, logger *zap.Logger) *PoolService {
	if inlineThreshold <= 0 {
		inlineThreshold = DefaultInlineThreshold
	}
	return &PoolService{
		docs:            docs,
		blobs:           blobs,
		inlineThreshold: inlineThreshold,
		logger:          logger.With(zap.String("service", "pool")),
	}
}

// NewPoolItem carries the fields of an item to upload
type NewPoolItem struct {
	ID          string
	Type        project.ItemType
	Name        string
	Description string
	Content     string
	ContentType string
}

func blobKey(projectID, itemID string) string {
	return "projects/" + projectID + "/pool/" + itemID
}

// offload moves oversized content to the blob store and returns the new
// ref, or "" when the content stays inline
func (s *PoolService) offload(ctx context.Context, projectID string, item *project.DataPoolItem) (string, error) {
	size := int64(len(item.Content))
	item.Size = size
	if s.blobs == nil || size <= s.inlineThreshold {
		return "", nil
	}

	ref, err := s.blobs.Put(ctx, blobKey(projectID, item.ID), item.ContentType, strings.NewReader(item.Content))
	if err != nil {
		return "", apperrors.NewInternal("failed to store artifact content", err)
	}
	item.FileRef = ref
	item.Content = ""
	return ref, nil
}

func (s *PoolService) discard(ctx context.Context, refs []string) {
	if s.blobs == nil {
		return
	}
	for _, ref := range refs {
		if err := s.blobs.Delete(ctx, ref); err != nil {
			s.logger.Warn("Failed to remove orphaned artifact", zap.String("ref", ref), zap.Error(err))
		}
	}
}

// AddItems appends items to the pool in one save
func (s *PoolService) AddItems(ctx context.Context, caller Caller, projectID string, in []NewPoolItem) ([]project.DataPoolItem, error) {
	var (
		added []project.DataPoolItem
		refs  []string
	)
	_, err := s.docs.Mutate(ctx, "PoolService.AddItems", caller, projectID, access.Edit,
		func(p *project.Project, now time.Time) error {
			for _, n := range in {
				item := project.DataPoolItem{
					ID:          n.ID,
					Type:        n.Type,
					Name:        strings.TrimSpace(n.Name),
					Description: n.Description,
					Content:     n.Content,
					ContentType: n.ContentType,
					UploadedBy:  caller.Ref(),
					UploadedAt:  now,
					Comments:    []project.Comment{},
				}
				if item.ID == "" {
					item.ID = project.NewID()
				}
				if err := item.Validate(); err != nil {
					return err
				}
				if _, err := p.PoolItem(item.ID); err == nil {
					return apperrors.NewConflict("data pool item already exists")
				}
				ref, err := s.offload(ctx, projectID, &item)
				if err != nil {
					return err
				}
				if ref != "" {
					refs = append(refs, ref)
				}
				if err := p.AddPoolItem(item); err != nil {
					return err
				}
				added = append(added, item)
			}
			return nil
		})
	if err != nil {
		s.discard(ctx, refs)
		return nil, err
	}
	return added, nil
}

// AddItem uploads one item
func (s *PoolService) AddItem(ctx context.Context, caller Caller, projectID string, in NewPoolItem) (project.DataPoolItem, error) {
	items, err := s.AddItems(ctx, caller, projectID, []NewPoolItem{in})
	if err != nil {
		return project.DataPoolItem{}, err
	}
	return items[0], nil
}

// UpdateItem renames, redescribes or replaces the content of an item
func (s *PoolService) UpdateItem(ctx context.Context, caller Caller, projectID, itemID string, patch project.PoolItemPatch) (project.DataPoolItem, error) {
	var (
		updated project.DataPoolItem
		newRef  string
		oldRef  string
	)
	_, err := s.docs.Mutate(ctx, "PoolService.UpdateItem", caller, projectID, access.Edit,
		func(p *project.Project, _ time.Time) error {
			content := patch.Content
			patch.Content = nil
			item, err := p.UpdatePoolItem(itemID, patch)
			if err != nil {
				return err
			}
			if content != nil {
				oldRef = item.FileRef
				item.Content = *content
				item.FileRef = ""
				if newRef, err = s.offload(ctx, projectID, item); err != nil {
					return err
				}
			}
			updated = item.Clone()
			return nil
		})
	if err != nil {
		if newRef != "" {
			s.discard(ctx, []string{newRef})
		}
		return project.DataPoolItem{}, err
	}
	if oldRef != "" && oldRef != newRef {
		s.discard(ctx, []string{oldRef})
	}
	return updated, nil
}

// RemoveItem deletes an item and its stored content
func (s *PoolService) RemoveItem(ctx context.Context, caller Caller, projectID, itemID string) error {
	var removed project.DataPoolItem
	_, err := s.docs.Mutate(ctx, "PoolService.RemoveItem", caller, projectID, access.Edit,
		func(p *project.Project, _ time.Time) error {
			var err error
			removed, err = p.RemovePoolItem(itemID)
			return err
		})
	if err != nil {
		return err
	}
	if removed.FileRef != "" {
		s.discard(ctx, []string{removed.FileRef})
	}
	return nil
}

// ItemContent opens an item's content, inline or from the blob store
func (s *PoolService) ItemContent(ctx context.Context, caller Caller, projectID, itemID string) (io.ReadCloser, ports.BlobObject, error) {
	p, err := s.docs.Read(ctx, "PoolService.ItemContent", caller, projectID)
	if err != nil {
		return nil, ports.BlobObject{}, err
	}
	item, err := p.PoolItem(itemID)
	if err != nil {
		return nil, ports.BlobObject{}, err
	}

	if item.FileRef == "" {
		obj := ports.BlobObject{Key: item.ID, ContentType: item.ContentType, Size: int64(len(item.Content))}
		return io.NopCloser(bytes.NewReader([]byte(item.Content))), obj, nil
	}
	if s.blobs == nil {
		return nil, ports.BlobObject{}, apperrors.NewNotFound("artifact content is not available")
	}
	return s.blobs.Get(ctx, item.FileRef)
}

// AddComment attaches a comment to an item
func (s *PoolService) AddComment(ctx context.Context, caller Caller, projectID, itemID, text string) (project.Comment, error) {
	var comment project.Comment
	_, err := s.docs.Mutate(ctx, "PoolService.AddComment", caller, projectID, access.Edit,
		func(p *project.Project, now time.Time) error {
			var err error
			if comment, err = project.NewComment(caller.Ref(), text, now); err != nil {
				return err
			}
			return p.AddPoolComment(itemID, comment)
		})
	if err != nil {
		return project.Comment{}, err
	}
	return comment, nil
}

// DeleteComment removes a comment. Only its author may do so, whatever
// role they hold.
func (s *PoolService) DeleteComment(ctx context.Context, caller Caller, projectID, itemID, commentID string) error {
	_, err := s.docs.Mutate(ctx, "PoolService.DeleteComment", caller, projectID, access.Read,
		func(p *project.Project, _ time.Time) error {
			comment, err := p.PoolComment(itemID, commentID)
			if err != nil {
				return err
			}
			if err := access.CanDeleteComment(comment.Author, caller.UserID); err != nil {
				return err
			}
			return p.RemovePoolComment(itemID, commentID)
		})
	return err
}
