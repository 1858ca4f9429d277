package signalr

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// recordSeparator terminates every JSON hub protocol message.
const recordSeparator = 0x1e

// Hub protocol message types.
const (
	typeInvocation = 1
	typeCompletion = 3
	typePing       = 6
	typeClose      = 7
)

var handshakeRequest = []byte(`{"protocol":"json","version":1}` + "\x1e")

// message is the union of the hub messages the client reads.
type message struct {
	Type         int               `json:"type"`
	InvocationID string            `json:"invocationId,omitempty"`
	Target       string            `json:"target,omitempty"`
	Arguments    []json.RawMessage `json:"arguments,omitempty"`
	Result       json.RawMessage   `json:"result,omitempty"`
	Error        string            `json:"error,omitempty"`
}

// invocation is a client-to-server call. An empty InvocationID asks the
// server not to send a completion.
type invocation struct {
	Type         int    `json:"type"`
	InvocationID string `json:"invocationId,omitempty"`
	Target       string `json:"target"`
	Arguments    []any  `json:"arguments"`
}

type ping struct {
	Type int `json:"type"`
}

type handshakeResponse struct {
	Error string `json:"error,omitempty"`
}

// encodeFrame marshals v and appends the record separator.
func encodeFrame(v any) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode message: %w", err)
	}
	return append(data, recordSeparator), nil
}

// splitFrames splits a websocket payload into individual messages. A
// payload may carry several messages; empty records are dropped.
func splitFrames(data []byte) [][]byte {
	var frames [][]byte
	for _, f := range bytes.Split(data, []byte{recordSeparator}) {
		if len(bytes.TrimSpace(f)) > 0 {
			frames = append(frames, f)
		}
	}
	return frames
}
