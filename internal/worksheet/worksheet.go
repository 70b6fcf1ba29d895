// Package worksheet manages SQL worksheets and which of them are open as editor tabs.
package worksheet

import (
	"time"
)

// Worksheet is an editable SQL document.
type Worksheet struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Content      string    `json:"content"`
	ConnectionID string    `json:"connectionId,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// Partial describes a worksheet to create. Empty fields get defaults.
type Partial struct {
	ID           string
	Name         string
	Content      string
	ConnectionID string
}

// State is a point-in-time copy of the registry, also its persisted form.
type State struct {
	Worksheets []Worksheet `json:"worksheets"`
	OpenIDs    []string    `json:"openIds"`
	ActiveID   string      `json:"activeId"`
}

// IsOpen reports whether id is in the open tab sequence.
func (s State) IsOpen(id string) bool {
	return indexOf(s.OpenIDs, id) >= 0
}

// CopySuffix is appended to the name of a duplicated worksheet.
const CopySuffix = " (Copy)"

// defaultName derives a worksheet name from t.
func defaultName(t time.Time) string {
	return "Worksheet " + t.Format("2006-01-02 15:04:05")
}

func indexOf(ids []string, id string) int {
	for i, v := range ids {
		if v == id {
			return i
		}
	}
	return -1
}

func remove(ids []string, i int) []string {
	out := make([]string, 0, len(ids)-1)
	out = append(out, ids[:i]...)
	return append(out, ids[i+1:]...)
}
