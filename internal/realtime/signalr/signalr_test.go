package signalr

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hay-kot/huddle/internal/core/activity"
	"github.com/hay-kot/huddle/internal/core/registry"
	"github.com/hay-kot/huddle/internal/realtime"
)

// fakeHub is a minimal SignalR hub: it answers the handshake, completes
// AddToGroup and RemoveFromGroup, rejects groups named "forbidden" and
// echoes SendComment back as ReceiveComment.
type fakeHub struct {
	t *testing.T

	mu      sync.Mutex
	tokens  []string
	targets []string
	conns   []*websocket.Conn

	rejectHandshake bool
}

func (h *fakeHub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	h.tokens = append(h.tokens, r.URL.Query().Get("access_token"))
	h.mu.Unlock()

	ws, err := websocket.Accept(w, r, nil)
	if err != nil {
		return
	}
	defer ws.CloseNow()

	h.mu.Lock()
	h.conns = append(h.conns, ws)
	h.mu.Unlock()

	ctx := r.Context()

	_, data, err := ws.Read(ctx)
	if err != nil {
		return
	}
	if !strings.Contains(string(data), `"protocol":"json"`) {
		return
	}
	if h.rejectHandshake {
		_ = ws.Write(ctx, websocket.MessageText, []byte(`{"error":"unsupported protocol"}`+"\x1e"))
		return
	}
	if err := ws.Write(ctx, websocket.MessageText, []byte("{}\x1e")); err != nil {
		return
	}

	comments := 0
	for {
		_, data, err := ws.Read(ctx)
		if err != nil {
			return
		}
		for _, frame := range splitFrames(data) {
			var msg message
			if err := json.Unmarshal(frame, &msg); err != nil {
				return
			}
			if msg.Type != typeInvocation {
				continue
			}

			h.mu.Lock()
			h.targets = append(h.targets, msg.Target)
			h.mu.Unlock()

			var reply []byte
			switch msg.Target {
			case realtime.MethodAddToGroup, realtime.MethodRemoveFromGroup:
				var group string
				_ = json.Unmarshal(msg.Arguments[0], &group)
				if group == "forbidden" {
					reply, _ = encodeFrame(map[string]any{"type": typeCompletion, "invocationId": msg.InvocationID, "error": "not allowed"})
				} else {
					reply, _ = encodeFrame(map[string]any{"type": typeCompletion, "invocationId": msg.InvocationID})
				}
			case realtime.MethodSendComment:
				var p realtime.CommentPayload
				_ = json.Unmarshal(msg.Arguments[0], &p)
				comments++
				c := activity.Comment{
					ID:          p.ActivityID + "-" + string(rune('0'+comments)),
					Body:        p.Body,
					Username:    "alice",
					DisplayName: "Alice",
					CreatedAt:   time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC),
				}
				reply, _ = encodeFrame(map[string]any{"type": typeInvocation, "target": realtime.EventReceiveComment, "arguments": []any{c}})
			}
			if reply != nil {
				if err := ws.Write(ctx, websocket.MessageText, reply); err != nil {
					return
				}
			}
		}
	}
}

func (h *fakeHub) seenTargets() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.targets...)
}

func newHub(t *testing.T) (*fakeHub, *httptest.Server) {
	t.Helper()
	hub := &fakeHub{t: t}
	srv := httptest.NewServer(hub)
	t.Cleanup(srv.Close)
	return hub, srv
}

func staticToken(token string) realtime.TokenProvider {
	return func(context.Context) (string, error) { return token, nil }
}

func TestEndpoint(t *testing.T) {
	tests := []struct {
		name    string
		url     string
		token   string
		want    string
		wantErr bool
	}{
		{name: "http", url: "http://localhost:5000/chat", token: "abc", want: "ws://localhost:5000/chat?access_token=abc"},
		{name: "https", url: "https://example.com/chat", token: "abc", want: "wss://example.com/chat?access_token=abc"},
		{name: "ws without token", url: "ws://example.com/chat", want: "ws://example.com/chat"},
		{name: "unsupported", url: "ftp://example.com/chat", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Endpoint(tt.url, tt.token)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSplitFrames(t *testing.T) {
	frames := splitFrames([]byte("{\"type\":6}\x1e{\"type\":1}\x1e\x1e"))
	require.Len(t, frames, 2)
	assert.JSONEq(t, `{"type":6}`, string(frames[0]))
	assert.JSONEq(t, `{"type":1}`, string(frames[1]))

	assert.Empty(t, splitFrames([]byte("\x1e")))
}

func TestEncodeFrame_Invocation(t *testing.T) {
	data, err := encodeFrame(invocation{Type: typeInvocation, InvocationID: "1", Target: "AddToGroup", Arguments: []any{"A1"}})
	require.NoError(t, err)
	require.Equal(t, byte(recordSeparator), data[len(data)-1])
	assert.JSONEq(t, `{"type":1,"invocationId":"1","target":"AddToGroup","arguments":["A1"]}`, string(data[:len(data)-1]))

	data, err = encodeFrame(invocation{Type: typeInvocation, Target: "SendComment", Arguments: nonNil(nil)})
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":1,"target":"SendComment","arguments":[]}`, string(data[:len(data)-1]))
}

func TestTransport_InvokeAndEvents(t *testing.T) {
	hub, srv := newHub(t)
	tr := New(srv.URL+"/chat", staticToken("secret"), zerolog.Nop())
	ctx := context.Background()

	conn, err := tr.Dial(ctx)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.Invoke(ctx, realtime.MethodAddToGroup, "A1"))
	require.NoError(t, conn.Send(ctx, realtime.MethodSendComment, realtime.CommentPayload{ActivityID: "A1", Body: "hello"}))

	select {
	case ev := <-conn.Events():
		assert.Equal(t, realtime.EventReceiveComment, ev.Target)
		require.Len(t, ev.Args, 1)
		var c activity.Comment
		require.NoError(t, json.Unmarshal(ev.Args[0], &c))
		assert.Equal(t, "hello", c.Body)
		assert.Equal(t, "alice", c.Username)
	case <-time.After(2 * time.Second):
		t.Fatal("no event received")
	}

	hub.mu.Lock()
	assert.Equal(t, []string{"secret"}, hub.tokens)
	hub.mu.Unlock()
	assert.Equal(t, []string{realtime.MethodAddToGroup, realtime.MethodSendComment}, hub.seenTargets())
}

func TestTransport_InvokeError(t *testing.T) {
	_, srv := newHub(t)
	tr := New(srv.URL, nil, zerolog.Nop())
	ctx := context.Background()

	conn, err := tr.Dial(ctx)
	require.NoError(t, err)
	defer conn.Close()

	err = conn.Invoke(ctx, realtime.MethodAddToGroup, "forbidden")
	var hubErr *HubError
	require.ErrorAs(t, err, &hubErr)
	assert.Equal(t, "not allowed", hubErr.Message)
}

func TestTransport_HandshakeRejected(t *testing.T) {
	hub, srv := newHub(t)
	hub.rejectHandshake = true

	_, err := New(srv.URL, nil, zerolog.Nop()).Dial(context.Background())
	require.ErrorIs(t, err, ErrHandshake)
}

func TestTransport_TokenError(t *testing.T) {
	_, srv := newHub(t)
	boom := errors.New("no token")
	tr := New(srv.URL, func(context.Context) (string, error) { return "", boom }, zerolog.Nop())

	_, err := tr.Dial(context.Background())
	require.ErrorIs(t, err, boom)
}

func TestTransport_CloseEndsEvents(t *testing.T) {
	_, srv := newHub(t)
	conn, err := New(srv.URL, nil, zerolog.Nop()).Dial(context.Background())
	require.NoError(t, err)

	require.NoError(t, conn.Close())

	select {
	case _, ok := <-conn.Events():
		assert.False(t, ok)
	case <-time.After(2 * time.Second):
		t.Fatal("events channel not closed")
	}
	assert.ErrorIs(t, conn.Err(), ErrClosed)
	assert.Error(t, conn.Invoke(context.Background(), realtime.MethodAddToGroup, "A1"))
}

func TestTransport_WithManager(t *testing.T) {
	_, srv := newHub(t)
	reg := registry.New()
	reg.Put(activity.Activity{ID: "A1"})
	reg.Put(activity.Activity{ID: "A2"})

	m := realtime.NewManager(New(srv.URL, staticToken("tok"), zerolog.Nop()), reg, zerolog.Nop(), realtime.Options{})
	ctx := context.Background()

	require.NoError(t, m.Open(ctx, "A1"))
	require.NoError(t, m.Send(ctx, "hello"))

	require.Eventually(t, func() bool {
		a, _ := reg.Get("A1")
		return len(a.Comments) == 1
	}, 2*time.Second, 10*time.Millisecond)

	a1, _ := reg.Get("A1")
	assert.Equal(t, "hello", a1.Comments[0].Body)
	a2, _ := reg.Get("A2")
	assert.Empty(t, a2.Comments)

	require.NoError(t, m.Close(ctx))
	assert.Equal(t, realtime.StateDisconnected, m.State())
}
