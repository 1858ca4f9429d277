// Package activity defines the activity domain types and the backing service
// interface consumed by the sync engine.
package activity

import (
	"slices"
	"time"
)

// Activity is a shareable event together with its attendees and comments.
// IsHost and IsGoing are derived relative to the current user, see Decorate.
type Activity struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Category    string     `json:"category"`
	Date        time.Time  `json:"date"`
	City        string     `json:"city"`
	Venue       string     `json:"venue"`
	IsHost      bool       `json:"isHost"`
	IsGoing     bool       `json:"isGoing"`
	Attendees   []Attendee `json:"attendees"`
	Comments    []Comment  `json:"comments"`
}

// Attendee is a user attending an activity. Username is unique within an
// activity's attendee list.
type Attendee struct {
	Username    string `json:"username"`
	DisplayName string `json:"displayName"`
	IsHost      bool   `json:"isHost"`
	Image       string `json:"image,omitempty"`
}

// Comment is an immutable message attached to an activity.
type Comment struct {
	ID          string    `json:"id"`
	Body        string    `json:"body"`
	Username    string    `json:"username"`
	DisplayName string    `json:"displayName"`
	Image       string    `json:"image,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
}

// Clone returns a deep copy of the activity.
func (a Activity) Clone() Activity {
	a.Attendees = slices.Clone(a.Attendees)
	a.Comments = slices.Clone(a.Comments)
	return a
}

// Attendee returns the attendee with the given username.
func (a *Activity) Attendee(username string) (Attendee, bool) {
	for _, at := range a.Attendees {
		if at.Username == username {
			return at, true
		}
	}
	return Attendee{}, false
}

// HasAttendee reports whether username is in the attendee list.
func (a *Activity) HasAttendee(username string) bool {
	_, ok := a.Attendee(username)
	return ok
}

// AddAttendee appends at unless an attendee with the same username exists.
// It returns false when the attendee was already present.
func (a *Activity) AddAttendee(at Attendee) bool {
	if a.HasAttendee(at.Username) {
		return false
	}
	a.Attendees = append(a.Attendees, at)
	return true
}

// RemoveAttendee removes username from the attendee list and reports whether
// it was present.
func (a *Activity) RemoveAttendee(username string) bool {
	n := len(a.Attendees)
	a.Attendees = slices.DeleteFunc(a.Attendees, func(at Attendee) bool {
		return at.Username == username
	})
	return len(a.Attendees) != n
}

// HasComment reports whether a comment with the given id is present.
func (a *Activity) HasComment(id string) bool {
	return slices.ContainsFunc(a.Comments, func(c Comment) bool {
		return c.ID == id
	})
}

// Host returns the hosting attendee, if any.
func (a *Activity) Host() (Attendee, bool) {
	for _, at := range a.Attendees {
		if at.IsHost {
			return at, true
		}
	}
	return Attendee{}, false
}

// Decorate recomputes IsGoing and IsHost for the given username.
func (a *Activity) Decorate(username string) {
	at, ok := a.Attendee(username)
	a.IsGoing = ok && username != ""
	a.IsHost = a.IsGoing && at.IsHost
}
