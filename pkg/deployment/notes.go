package deployment

import (
	"bytes"
	"encoding/json"
)

// Note is one entry of the testing notes log.
type Note struct {
	// ID is kept verbatim; clients send both numeric and string ids.
	ID        json.RawMessage `json:"id"`
	Author    string          `json:"author"`
	Content   string          `json:"content"`
	Timestamp string          `json:"timestamp"`
}

// ParseNotes validates the testing.notes value. It accepts the same shapes
// as ParseSteps; every note needs id, author, content and a string timestamp.
func ParseNotes(raw []byte) ([]Note, error) {
	objs, err := parseObjects(raw, NotesField, true)
	if err != nil {
		return nil, err
	}

	notes := make([]Note, 0, len(objs))
	for i, obj := range objs {
		for _, key := range []string{"id", "author", "content", "timestamp"} {
			if _, ok := obj[key]; !ok {
				return nil, invalid(NotesField, "note %d missing required field: %s", i, key)
			}
		}
		ts, ok := obj["timestamp"].(string)
		if !ok {
			return nil, invalid(NotesField, "note %d: timestamp must be an ISO date string", i)
		}
		author, ok := obj["author"].(string)
		if !ok {
			return nil, invalid(NotesField, "note %d: author must be a string", i)
		}
		content, ok := obj["content"].(string)
		if !ok {
			return nil, invalid(NotesField, "note %d: content must be a string", i)
		}
		id, err := json.Marshal(obj["id"])
		if err != nil || bytes.Equal(id, []byte("null")) {
			return nil, invalid(NotesField, "note %d: id must be set", i)
		}
		notes = append(notes, Note{ID: id, Author: author, Content: content, Timestamp: ts})
	}
	return notes, nil
}
