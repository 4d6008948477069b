package quota

import "fmt"

// WorkItem is one topic eligible for an engagement action.
type WorkItem struct {
	ID   int64
	Slug string
}

// Path is the topic page path relative to the forum root.
func (w WorkItem) Path() string {
	if w.Slug == "" {
		return fmt.Sprintf("/t/%d", w.ID)
	}
	return fmt.Sprintf("/t/%s/%d", w.Slug, w.ID)
}

func (w WorkItem) String() string {
	return fmt.Sprintf("topic=%d", w.ID)
}
