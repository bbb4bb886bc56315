package project

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// UserRef points at a user. Documents carry it either as a bare id
// ("u-123") or as a populated record ({"id": "u-123", "name": "Ada"});
// both decode to the same value so comparisons only ever look at ID.
type UserRef struct {
	ID    string
	Name  string
	Email string
}

// Ref builds a reference from a user id and an optional display name
func Ref(id, name string) UserRef {
	return UserRef{ID: strings.TrimSpace(id), Name: name}
}

// Is reports whether the reference points at userID
func (r UserRef) Is(userID string) bool {
	id := strings.TrimSpace(userID)
	return id != "" && r.ID == id
}

// IsZero reports whether the reference is empty
func (r UserRef) IsZero() bool {
	return r.ID == ""
}

type populatedRef struct {
	ID       string `json:"id,omitempty"`
	MongoID  string `json:"_id,omitempty"`
	UserID   string `json:"userId,omitempty"`
	Name     string `json:"name,omitempty"`
	Email    string `json:"email,omitempty"`
	Username string `json:"username,omitempty"`
}

// MarshalJSON writes a bare id when nothing but the id is known
func (r UserRef) MarshalJSON() ([]byte, error) {
	if r.Name == "" && r.Email == "" {
		return json.Marshal(r.ID)
	}
	return json.Marshal(populatedRef{ID: r.ID, Name: r.Name, Email: r.Email})
}

// UnmarshalJSON accepts both the bare and the populated representation
func (r *UserRef) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*r = UserRef{}
		return nil
	}

	if data[0] == '"' {
		var id string
		if err := json.Unmarshal(data, &id); err != nil {
			return err
		}
		*r = UserRef{ID: strings.TrimSpace(id)}
		return nil
	}

	var p populatedRef
	if err := json.Unmarshal(data, &p); err != nil {
		return fmt.Errorf("user reference: %w", err)
	}

	id := p.ID
	if id == "" {
		id = p.MongoID
	}
	if id == "" {
		id = p.UserID
	}
	name := p.Name
	if name == "" {
		name = p.Username
	}

	*r = UserRef{ID: strings.TrimSpace(id), Name: name, Email: p.Email}
	return nil
}
