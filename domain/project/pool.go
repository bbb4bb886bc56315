package project

import (
	"strings"
	"time"

	apperrors "qdesign-backend/pkg/errors"
)

// DataPoolItem is an uploaded artifact. Small payloads live in Content;
// large ones are kept in the blob store and referenced through FileRef.
type DataPoolItem struct {
	ID          string    `json:"id"`
	Type        ItemType  `json:"type"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Content     string    `json:"content,omitempty"`
	FileRef     string    `json:"fileRef,omitempty"`
	ContentType string    `json:"contentType,omitempty"`
	Size        int64     `json:"size,omitempty"`
	UploadedBy  UserRef   `json:"uploadedBy"`
	UploadedAt  time.Time `json:"uploadedAt"`
	Comments    []Comment `json:"comments"`
}

// Comment is a remark on a data pool item or a co-scientist step
type Comment struct {
	ID        string    `json:"id"`
	Author    UserRef   `json:"author"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"createdAt"`
}

// NewComment builds a comment authored by author
func NewComment(author UserRef, text string, now time.Time) (Comment, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return Comment{}, apperrors.NewValidation("comment text is required")
	}
	return Comment{ID: NewID(), Author: author, Text: text, CreatedAt: now}, nil
}

// Validate checks the item's own fields
func (i DataPoolItem) Validate() error {
	if i.ID == "" {
		return apperrors.NewValidation("data pool item id is required")
	}
	if !i.Type.IsValid() {
		return apperrors.NewValidationf("invalid data pool item type %q", i.Type)
	}
	if strings.TrimSpace(i.Name) == "" {
		return apperrors.NewValidation("data pool item name is required")
	}
	return nil
}

// ValidateDataPool checks every item and id uniqueness
func ValidateDataPool(items []DataPoolItem) error {
	seen := make(map[string]struct{}, len(items))
	for _, item := range items {
		if err := item.Validate(); err != nil {
			return err
		}
		if _, dup := seen[item.ID]; dup {
			return apperrors.NewValidationf("duplicate data pool item id %q", item.ID)
		}
		seen[item.ID] = struct{}{}
	}
	return nil
}

// PoolItem returns the item with the given id
func (p *Project) PoolItem(itemID string) (*DataPoolItem, error) {
	for i := range p.DataPool {
		if p.DataPool[i].ID == itemID {
			return &p.DataPool[i], nil
		}
	}
	return nil, apperrors.NewNotFound("data pool item not found")
}

// AddPoolItem appends an item to the data pool
func (p *Project) AddPoolItem(item DataPoolItem) error {
	if item.Comments == nil {
		item.Comments = []Comment{}
	}
	if err := item.Validate(); err != nil {
		return err
	}
	if _, err := p.PoolItem(item.ID); err == nil {
		return apperrors.NewConflict("data pool item already exists")
	}
	p.DataPool = append(p.DataPool, item)
	return nil
}

// PoolItemPatch lists the mutable fields of a data pool item
type PoolItemPatch struct {
	Name        *string `json:"name,omitempty"`
	Description *string `json:"description,omitempty"`
	Content     *string `json:"content,omitempty"`
}

// UpdatePoolItem applies the patch to an existing item
func (p *Project) UpdatePoolItem(itemID string, patch PoolItemPatch) (*DataPoolItem, error) {
	item, err := p.PoolItem(itemID)
	if err != nil {
		return nil, err
	}
	if patch.Name != nil && strings.TrimSpace(*patch.Name) == "" {
		return nil, apperrors.NewValidation("data pool item name cannot be empty")
	}

	if patch.Name != nil {
		item.Name = strings.TrimSpace(*patch.Name)
	}
	if patch.Description != nil {
		item.Description = *patch.Description
	}
	if patch.Content != nil {
		item.Content = *patch.Content
		item.FileRef = ""
		item.Size = int64(len(*patch.Content))
	}
	return item, nil
}

// RemovePoolItem deletes an item and returns it
func (p *Project) RemovePoolItem(itemID string) (DataPoolItem, error) {
	for i := range p.DataPool {
		if p.DataPool[i].ID == itemID {
			removed := p.DataPool[i]
			p.DataPool = append(p.DataPool[:i], p.DataPool[i+1:]...)
			return removed, nil
		}
	}
	return DataPoolItem{}, apperrors.NewNotFound("data pool item not found")
}

// AddPoolComment appends a comment to an item
func (p *Project) AddPoolComment(itemID string, comment Comment) error {
	item, err := p.PoolItem(itemID)
	if err != nil {
		return err
	}
	item.Comments = append(item.Comments, comment)
	return nil
}

// PoolComment looks up a comment on an item
func (p *Project) PoolComment(itemID, commentID string) (Comment, error) {
	item, err := p.PoolItem(itemID)
	if err != nil {
		return Comment{}, err
	}
	for _, c := range item.Comments {
		if c.ID == commentID {
			return c, nil
		}
	}
	return Comment{}, apperrors.NewNotFound("comment not found")
}

// RemovePoolComment deletes a comment from an item
func (p *Project) RemovePoolComment(itemID, commentID string) error {
	item, err := p.PoolItem(itemID)
	if err != nil {
		return err
	}
	for i, c := range item.Comments {
		if c.ID == commentID {
			item.Comments = append(item.Comments[:i], item.Comments[i+1:]...)
			return nil
		}
	}
	return apperrors.NewNotFound("comment not found")
}
