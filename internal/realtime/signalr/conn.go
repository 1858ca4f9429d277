package signalr

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/coder/websocket"
	"github.com/rs/zerolog"

	"github.com/hay-kot/huddle/internal/realtime"
)

// ErrClosed is returned by calls on a connection that has ended.
var ErrClosed = errors.New("hub connection closed")

const eventBuffer = 64

// HubError is a failed completion returned by the hub.
type HubError struct {
	Target  string
	Message string
}

func (e *HubError) Error() string {
	return fmt.Sprintf("hub method %s failed: %s", e.Target, e.Message)
}

type completion struct {
	err string
}

type conn struct {
	ws  *websocket.Conn
	log zerolog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	nextID atomic.Int64

	mu      sync.Mutex
	pending map[string]chan completion
	err     error

	events    chan realtime.Event
	done      chan struct{}
	closeOnce sync.Once
}

func newConn(ws *websocket.Conn, log zerolog.Logger, keepAlive time.Duration, initial [][]byte) *conn {
	ctx, cancel := context.WithCancel(context.Background())
	c := &conn{
		ws:      ws,
		log:     log,
		ctx:     ctx,
		cancel:  cancel,
		pending: make(map[string]chan completion),
		events:  make(chan realtime.Event, eventBuffer),
		done:    make(chan struct{}),
	}

	go c.readLoop(initial)
	go c.keepAlive(keepAlive)
	return c
}

func (c *conn) Invoke(ctx context.Context, target string, args ...any) error {
	id := strconv.FormatInt(c.nextID.Add(1), 10)
	ch := make(chan completion, 1)

	c.mu.Lock()
	if c.err != nil {
		c.mu.Unlock()
		return ErrClosed
	}
	c.pending[id] = ch
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		delete(c.pending, id)
		c.mu.Unlock()
	}()

	if err := c.write(ctx, invocation{Type: typeInvocation, InvocationID: id, Target: target, Arguments: nonNil(args)}); err != nil {
		return err
	}

	select {
	case res := <-ch:
		if res.err != "" {
			return &HubError{Target: target, Message: res.err}
		}
		return nil
	case <-c.done:
		return fmt.Errorf("invoke %s: %w", target, ErrClosed)
	case <-ctx.Done():
		return fmt.Errorf("invoke %s: %w", target, ctx.Err())
	}
}

func (c *conn) Send(ctx context.Context, target string, args ...any) error {
	return c.write(ctx, invocation{Type: typeInvocation, Target: target, Arguments: nonNil(args)})
}

func (c *conn) Events() <-chan realtime.Event {
	return c.events
}

func (c *conn) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

func (c *conn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		err = c.ws.Close(websocket.StatusNormalClosure, "")
		c.cancel()
	})
	return err
}

func (c *conn) write(ctx context.Context, v any) error {
	data, err := encodeFrame(v)
	if err != nil {
		return err
	}
	if err := c.ws.Write(ctx, websocket.MessageText, data); err != nil {
		return fmt.Errorf("write message: %w", err)
	}
	return nil
}

func (c *conn) readLoop(initial [][]byte) {
	defer close(c.events)

	for _, f := range initial {
		if !c.handle(f) {
			return
		}
	}

	for {
		_, data, err := c.ws.Read(c.ctx)
		if err != nil {
			c.finish(err)
			return
		}
		for _, f := range splitFrames(data) {
			if !c.handle(f) {
				return
			}
		}
	}
}

// handle processes one message and reports whether reading should continue.
func (c *conn) handle(frame []byte) bool {
	var msg message
	if err := json.Unmarshal(frame, &msg); err != nil {
		c.log.Warn().Err(err).Msg("failed to decode hub message")
		return true
	}

	switch msg.Type {
	case typeInvocation:
		select {
		case c.events <- realtime.Event{Target: msg.Target, Args: msg.Arguments}:
		case <-c.ctx.Done():
			c.finish(ErrClosed)
			return false
		}
	case typeCompletion:
		c.mu.Lock()
		ch, ok := c.pending[msg.InvocationID]
		c.mu.Unlock()
		if ok {
			ch <- completion{err: msg.Error}
		}
	case typePing:
	case typeClose:
		err := ErrClosed
		if msg.Error != "" {
			err = fmt.Errorf("%w: %s", ErrClosed, msg.Error)
		}
		c.finish(err)
		_ = c.Close()
		return false
	default:
		c.log.Debug().Int("type", msg.Type).Msg("ignoring hub message")
	}
	return true
}

func (c *conn) finish(err error) {
	if websocket.CloseStatus(err) == websocket.StatusNormalClosure {
		err = ErrClosed
	}

	c.mu.Lock()
	if c.err == nil {
		c.err = err
	}
	c.mu.Unlock()

	select {
	case <-c.done:
	default:
		close(c.done)
	}
	c.cancel()
}

func (c *conn) keepAlive(every time.Duration) {
	t := time.NewTicker(every)
	defer t.Stop()

	for {
		select {
		case <-c.ctx.Done():
			return
		case <-t.C:
			if err := c.write(c.ctx, ping{Type: typePing}); err != nil {
				c.log.Debug().Err(err).Msg("keep-alive ping failed")
				return
			}
		}
	}
}

func nonNil(args []any) []any {
	if args == nil {
		return []any{}
	}
	return args
}
