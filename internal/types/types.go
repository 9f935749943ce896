// Package types defines the backend-neutral data model shared by the
// tracker adapters and the workflow engine.
package types

import (
	"strings"
	"time"
)

// Status is the normalized lifecycle state of a tracker item.
type Status string

// Status constants. Every backend state maps onto exactly one of these.
const (
	StatusUnstarted Status = "unstarted"
	StatusStarted   Status = "started"
	StatusFinished  Status = "finished"
	StatusRejected  Status = "rejected"
	StatusOther     Status = "other"
)

// IsValid reports whether s is one of the known statuses.
func (s Status) IsValid() bool {
	switch s {
	case StatusUnstarted, StatusStarted, StatusFinished, StatusRejected, StatusOther:
		return true
	}
	return false
}

// Startable reports whether an item in this status may be started.
// Rejected items go back into the queue, so they are startable too.
func (s Status) Startable() bool {
	return s == StatusUnstarted || s == StatusRejected
}

// Rank orders statuses along the forward lifecycle. Rejected ranks with
// unstarted; other has no position and returns -1.
func (s Status) Rank() int {
	switch s {
	case StatusUnstarted, StatusRejected:
		return 0
	case StatusStarted:
		return 1
	case StatusFinished:
		return 2
	}
	return -1
}

// Item kinds used as branch prefixes.
const (
	KindIssue = "issue"
	KindStory = "story"
)

// Task is one checklist entry belonging to a tracker item.
type Task struct {
	Number      int    `json:"number"`
	ID          string `json:"id,omitempty"`
	Description string `json:"description"`
	Done        bool   `json:"done"`
}

// TrackerItem is the normalized view of an issue or story.
type TrackerItem struct {
	ID          string    `json:"id"`
	Key         string    `json:"key"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	URL         string    `json:"url,omitempty"`
	Status      Status    `json:"status"`
	RawStatus   string    `json:"raw_status,omitempty"`
	Kind        string    `json:"kind"`
	Type        string    `json:"type,omitempty"`
	Assignee    string    `json:"assignee,omitempty"`
	AssigneeID  string    `json:"assignee_id,omitempty"`
	Requester   string    `json:"requester,omitempty"`
	Estimate    *float64  `json:"estimate,omitempty"`
	Labels      []string  `json:"labels,omitempty"`
	Milestone   string    `json:"milestone,omitempty"`
	Tasks       []Task    `json:"tasks,omitempty"`
	CreatedAt   time.Time `json:"created_at,omitempty"`
	UpdatedAt   time.Time `json:"updated_at,omitempty"`
}

// Assigned reports whether anyone owns the item.
func (i *TrackerItem) Assigned() bool {
	return i.Assignee != "" || i.AssigneeID != ""
}

// AssignedTo reports whether u owns the item.
func (i *TrackerItem) AssignedTo(u *User) bool {
	if u == nil {
		return false
	}
	if i.AssigneeID != "" && u.ID != "" && i.AssigneeID == u.ID {
		return true
	}
	return u.Matches(i.Assignee)
}

// HasLabel reports whether the item carries the label, ignoring case.
func (i *TrackerItem) HasLabel(name string) bool {
	for _, l := range i.Labels {
		if strings.EqualFold(l, name) {
			return true
		}
	}
	return false
}

// Clone returns a deep copy of the item.
func (i *TrackerItem) Clone() *TrackerItem {
	c := *i
	if i.Labels != nil {
		c.Labels = append([]string(nil), i.Labels...)
	}
	if i.Tasks != nil {
		c.Tasks = append([]Task(nil), i.Tasks...)
	}
	if i.Estimate != nil {
		e := *i.Estimate
		c.Estimate = &e
	}
	return &c
}

// User identifies the operator (or any account) on a backend.
type User struct {
	ID    string `json:"id,omitempty"`
	Login string `json:"login,omitempty"`
	Name  string `json:"name,omitempty"`
	Email string `json:"email,omitempty"`
}

// Matches compares an assignee string against every identity field.
func (u *User) Matches(assignee string) bool {
	if u == nil || assignee == "" {
		return false
	}
	for _, v := range []string{u.ID, u.Login, u.Name, u.Email} {
		if v != "" && strings.EqualFold(v, assignee) {
			return true
		}
	}
	return false
}

// String returns the most human-friendly identity available.
func (u *User) String() string {
	switch {
	case u == nil:
		return ""
	case u.Login != "":
		return u.Login
	case u.Name != "":
		return u.Name
	case u.Email != "":
		return u.Email
	}
	return u.ID
}

// Comment is a note attached to a tracker item.
type Comment struct {
	Author    string    `json:"author"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at,omitempty"`
}

// Filter narrows candidate listings.
type Filter struct {
	// AssignedToCurrentUser keeps only items owned by the operator.
	AssignedToCurrentUser bool
	// UnstartedOnly keeps only startable items. When false every open
	// (not finished) item is returned.
	UnstartedOnly bool
}
