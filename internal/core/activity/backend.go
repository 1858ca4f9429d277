package activity

import (
	"context"
	"errors"

	"github.com/hay-kot/huddle/internal/core/query"
)

// ErrNotFound is returned when an activity does not exist.
var ErrNotFound = errors.New("activity not found")

// Envelope is one page of a list call.
type Envelope struct {
	Activities    []Activity `json:"activities"`
	ActivityCount int        `json:"activityCount"`
}

// Backend is the remote service that owns activities.
type Backend interface {
	// List returns one page of activities matching q along with the total
	// number of matching activities.
	List(ctx context.Context, q query.Query) (Envelope, error)
	// Details returns a single activity. Returns ErrNotFound if it does not exist.
	Details(ctx context.Context, id string) (Activity, error)
	// Create stores a new activity. The id is generated by the client.
	Create(ctx context.Context, a Activity) error
	// Update replaces the editable fields of an existing activity.
	Update(ctx context.Context, a Activity) error
	// Delete removes an activity.
	Delete(ctx context.Context, id string) error
	// Attend adds the current user to the activity's attendees.
	Attend(ctx context.Context, id string) error
	// Unattend removes the current user from the activity's attendees.
	Unattend(ctx context.Context, id string) error
}
