package workflow

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Document is the typed form of a workflow JSON file. Absent fields take their
// zero value; Nodes and Tags are never nil after ParseDocument.
type Document struct {
	ID          FlexibleID                 `json:"id"`
	Name        string                     `json:"name"`
	Active      bool                       `json:"active"`
	Nodes       []Node                     `json:"nodes"`
	Connections map[string]json.RawMessage `json:"connections"`
	Tags        []Tag                      `json:"tags"`
	CreatedAt   string                     `json:"createdAt"`
	UpdatedAt   string                     `json:"updatedAt"`
}

// Node is a single step of a workflow
type Node struct {
	ID          FlexibleID      `json:"id"`
	Name        string          `json:"name"`
	Type        string          `json:"type"`
	TypeVersion float64         `json:"typeVersion"`
	Parameters  json.RawMessage `json:"parameters,omitempty"`
}

// FlexibleID accepts either a JSON string or a JSON number
type FlexibleID string

// UnmarshalJSON implements json.Unmarshaler
func (id *FlexibleID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = FlexibleID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("id must be a string or number: %w", err)
	}
	*id = FlexibleID(n.String())
	return nil
}

// Tag is a document tag. Sources use either plain strings or objects with
// id and name fields; both normalize to Name.
type Tag struct {
	ID   string
	Name string
}

// UnmarshalJSON implements json.Unmarshaler
func (t *Tag) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return errors.New("empty tag")
	}

	switch data[0] {
	case '"':
		return json.Unmarshal(data, &t.Name)
	case '{':
		var obj struct {
			ID   FlexibleID `json:"id"`
			Name string     `json:"name"`
		}
		if err := json.Unmarshal(data, &obj); err != nil {
			return err
		}
		t.ID = string(obj.ID)
		t.Name = obj.Name
		if t.Name == "" {
			t.Name = t.ID
		}
		return nil
	case 'n':
		*t = Tag{}
		return nil
	default:
		// numbers and booleans are kept as their literal text
		t.Name = string(data)
		return nil
	}
}

// MarshalJSON implements json.Marshaler
func (t Tag) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.Name)
}

// ParseDocument decodes a workflow document and applies defaults
func ParseDocument(data []byte) (*Document, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil, errors.New("document is not a JSON object")
	}

	var doc Document
	if err := json.Unmarshal(trimmed, &doc); err != nil {
		return nil, err
	}

	if doc.Nodes == nil {
		doc.Nodes = []Node{}
	}
	if doc.Connections == nil {
		doc.Connections = map[string]json.RawMessage{}
	}
	if doc.Tags == nil {
		doc.Tags = []Tag{}
	}
	return &doc, nil
}

// TagNames returns the non-empty tag names in document order
func (d *Document) TagNames() []string {
	names := make([]string, 0, len(d.Tags))
	for _, tag := range d.Tags {
		name := strings.TrimSpace(tag.Name)
		if name == "" {
			continue
		}
		names = append(names, name)
	}
	return names
}
