package realtime

import (
	"context"
	"encoding/json"
)

// Hub method and event names.
const (
	MethodAddToGroup      = "AddToGroup"
	MethodRemoveFromGroup = "RemoveFromGroup"
	MethodSendComment     = "SendComment"
	EventReceiveComment   = "ReceiveComment"
)

// Event is a server-to-client invocation.
type Event struct {
	Target string
	Args   []json.RawMessage
}

// Conn is one connection to the hub.
type Conn interface {
	// Invoke calls a hub method and waits for its completion.
	Invoke(ctx context.Context, target string, args ...any) error
	// Send calls a hub method without waiting for a result.
	Send(ctx context.Context, target string, args ...any) error
	// Events delivers server invocations in arrival order. The channel is
	// closed when the connection ends.
	Events() <-chan Event
	// Err returns the reason the connection ended, if it has.
	Err() error
	Close() error
}

// Transport opens hub connections.
type Transport interface {
	Dial(ctx context.Context) (Conn, error)
}

// TokenProvider returns the bearer token used to authenticate a connection.
type TokenProvider func(ctx context.Context) (string, error)

// CommentPayload is the argument of SendComment.
type CommentPayload struct {
	ActivityID string `json:"activityId"`
	Body       string `json:"body"`
}
