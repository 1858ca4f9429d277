// Package realtime manages the push channel that streams comments for the
// activity currently in detail view.
package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/hay-kot/huddle/internal/core/activity"
	"github.com/hay-kot/huddle/internal/core/fault"
)

// Defaults applied to zero Options values.
const (
	DefaultJoinTimeout = 10 * time.Second
	DefaultBackoff     = 500 * time.Millisecond
	DefaultMaxBackoff  = 10 * time.Second
)

// CommentSink receives pushed comments for the joined activity.
type CommentSink interface {
	AppendComment(activityID string, c activity.Comment) bool
}

// Options configures a Manager.
type Options struct {
	// JoinTimeout bounds the AddToGroup call.
	JoinTimeout time.Duration
	// MaxRetries is the number of extra dial attempts, and enables
	// reconnecting after the connection drops while joined. Zero disables
	// both.
	MaxRetries int
	Backoff    time.Duration
	MaxBackoff time.Duration

	OnStateChange func(State)
	// OnComment is called for every pushed comment with whether the sink
	// accepted it.
	OnComment func(activityID string, c activity.Comment, applied bool)
}

// Manager owns at most one hub connection joined to at most one activity
// group.
type Manager struct {
	transport Transport
	sink      CommentSink
	log       zerolog.Logger
	opts      Options
	sleep     func(ctx context.Context, d time.Duration) error

	// lifecycle serializes Open, Close and reconnects.
	lifecycle sync.Mutex

	mu              sync.RWMutex
	state           State
	group           string
	conn            Conn
	gen             uint64
	cancelReconnect context.CancelFunc
}

func NewManager(transport Transport, sink CommentSink, log zerolog.Logger, opts Options) *Manager {
	if opts.JoinTimeout <= 0 {
		opts.JoinTimeout = DefaultJoinTimeout
	}
	if opts.Backoff <= 0 {
		opts.Backoff = DefaultBackoff
	}
	if opts.MaxBackoff <= 0 {
		opts.MaxBackoff = DefaultMaxBackoff
	}
	if opts.MaxRetries < 0 {
		opts.MaxRetries = 0
	}

	return &Manager{
		transport: transport,
		sink:      sink,
		log:       log,
		opts:      opts,
		sleep:     sleepCtx,
	}
}

// State returns the current channel state.
func (m *Manager) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// GroupID returns the activity id the channel is bound to, or "" when no
// group is joined or being joined.
func (m *Manager) GroupID() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.group
}

// Open connects and joins the group of activityID. If another group is
// joined it is left and the connection replaced first. Opening the group
// that is already joined does nothing.
func (m *Manager) Open(ctx context.Context, activityID string) error {
	if activityID == "" {
		return fmt.Errorf("open channel: empty activity id: %w", fault.ErrValidation)
	}

	m.stopReconnect()
	m.lifecycle.Lock()
	defer m.lifecycle.Unlock()

	m.mu.RLock()
	state, group := m.state, m.group
	m.mu.RUnlock()

	if state == StateJoined && group == activityID {
		return nil
	}
	if state == StateJoined {
		m.leave(ctx)
	}
	m.teardown()

	return m.connectAndJoin(ctx, activityID)
}

// Close leaves the joined group, if any, and disconnects.
func (m *Manager) Close(ctx context.Context) error {
	m.stopReconnect()
	m.lifecycle.Lock()
	defer m.lifecycle.Unlock()

	if m.State() == StateJoined {
		m.leave(ctx)
	}
	m.teardown()
	return nil
}

// Send posts a comment to the joined group. The comment is not added
// locally; it arrives through ReceiveComment like any other.
func (m *Manager) Send(ctx context.Context, body string) error {
	m.mu.RLock()
	state, group, conn := m.state, m.group, m.conn
	m.mu.RUnlock()

	if state != StateJoined || conn == nil {
		return fmt.Errorf("send comment: channel is %s: %w", state, fault.ErrState)
	}

	err := conn.Send(ctx, MethodSendComment, CommentPayload{ActivityID: group, Body: body})
	if err != nil {
		return fmt.Errorf("send comment: %w: %w", fault.ErrChannel, err)
	}
	return nil
}

// connectAndJoin must be called with lifecycle held and no live connection.
func (m *Manager) connectAndJoin(ctx context.Context, activityID string) error {
	log := m.log.With().Str("group", activityID).Logger()

	m.setState(StateConnecting)
	conn, err := m.dial(ctx)
	if err != nil {
		m.setState(StateFailed)
		log.Error().Err(err).Msg("failed to connect")
		return fmt.Errorf("connect: %w: %w", fault.ErrChannel, err)
	}

	m.mu.Lock()
	m.gen++
	gen := m.gen
	m.conn = conn
	m.mu.Unlock()
	m.setState(StateConnected)

	go m.receive(conn, gen)

	m.mu.Lock()
	m.group = activityID
	m.mu.Unlock()
	m.setState(StateJoining)

	jctx, cancel := context.WithTimeout(ctx, m.opts.JoinTimeout)
	err = conn.Invoke(jctx, MethodAddToGroup, activityID)
	cancel()
	if err != nil {
		m.teardown()
		m.setState(StateFailed)
		log.Error().Err(err).Msg("failed to join group")
		return fmt.Errorf("join group %s: %w: %w", activityID, fault.ErrChannel, err)
	}

	if !m.markJoined(conn, gen) {
		m.teardown()
		m.setState(StateFailed)
		log.Error().Err(conn.Err()).Msg("connection lost while joining group")
		return fmt.Errorf("join group %s: connection lost: %w", activityID, fault.ErrChannel)
	}
	log.Info().Msg("joined group")
	return nil
}

// markJoined moves to Joined only if conn of generation gen is still the
// live connection. The check and the transition share the lock taken by
// the receive loop when the connection drops.
func (m *Manager) markJoined(conn Conn, gen uint64) bool {
	m.mu.Lock()
	if gen != m.gen || m.conn != conn {
		m.mu.Unlock()
		return false
	}
	prev := m.state
	m.state = StateJoined
	m.mu.Unlock()

	m.stateChanged(prev, StateJoined)
	return true
}

func (m *Manager) dial(ctx context.Context) (Conn, error) {
	backoff := m.opts.Backoff
	for attempt := 0; ; attempt++ {
		conn, err := m.transport.Dial(ctx)
		if err == nil {
			return conn, nil
		}
		if attempt >= m.opts.MaxRetries || ctx.Err() != nil {
			return nil, err
		}

		m.log.Warn().Err(err).Int("attempt", attempt+1).Dur("backoff", backoff).Msg("dial failed, retrying")
		if err := m.sleep(ctx, backoff); err != nil {
			return nil, err
		}
		backoff = min(backoff*2, m.opts.MaxBackoff)
	}
}

// leave removes the connection from its group. Errors are logged; the
// connection is torn down afterwards regardless.
func (m *Manager) leave(ctx context.Context) {
	m.mu.RLock()
	conn, group := m.conn, m.group
	m.mu.RUnlock()

	m.setState(StateLeaving)
	if conn == nil {
		return
	}
	if err := conn.Invoke(ctx, MethodRemoveFromGroup, group); err != nil {
		m.log.Warn().Err(err).Str("group", group).Msg("failed to leave group")
	}
}

// teardown closes the connection and moves to Disconnected. The receive
// loop of the closed connection sees a newer generation and stops quietly.
func (m *Manager) teardown() {
	m.mu.Lock()
	conn := m.conn
	m.conn = nil
	m.group = ""
	m.gen++
	m.mu.Unlock()

	if conn != nil {
		if err := conn.Close(); err != nil {
			m.log.Debug().Err(err).Msg("close connection")
		}
	}
	m.setState(StateDisconnected)
}

func (m *Manager) receive(conn Conn, gen uint64) {
	for ev := range conn.Events() {
		if ev.Target != EventReceiveComment {
			m.log.Debug().Str("target", ev.Target).Msg("ignoring hub event")
			continue
		}

		m.mu.RLock()
		live := gen == m.gen && m.state == StateJoined
		group := m.group
		m.mu.RUnlock()
		if !live {
			continue
		}

		if len(ev.Args) == 0 {
			m.log.Warn().Msg("comment event without payload")
			continue
		}
		var c activity.Comment
		if err := json.Unmarshal(ev.Args[0], &c); err != nil {
			m.log.Warn().Err(err).Msg("failed to decode comment")
			continue
		}

		applied := m.sink.AppendComment(group, c)
		m.log.Debug().Str("group", group).Str("comment_id", c.ID).Bool("applied", applied).Msg("comment received")
		if m.opts.OnComment != nil {
			m.opts.OnComment(group, c, applied)
		}
	}

	m.mu.Lock()
	if gen != m.gen {
		m.mu.Unlock()
		return
	}
	wasJoined := m.state == StateJoined
	group := m.group
	m.conn = nil
	m.group = ""
	m.mu.Unlock()

	m.log.Warn().Err(conn.Err()).Str("group", group).Msg("connection lost")
	m.setState(StateDisconnected)

	if wasJoined && m.opts.MaxRetries > 0 {
		go m.reconnect(group, gen)
	}
}

// reconnect rejoins group after the connection of generation gen dropped.
// It gives up if Open or Close ran in the meantime.
func (m *Manager) reconnect(group string, gen uint64) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	m.mu.Lock()
	if gen != m.gen {
		m.mu.Unlock()
		return
	}
	m.cancelReconnect = cancel
	m.mu.Unlock()

	defer func() {
		m.mu.Lock()
		m.cancelReconnect = nil
		m.mu.Unlock()
	}()

	m.lifecycle.Lock()
	defer m.lifecycle.Unlock()

	m.mu.RLock()
	stale := gen != m.gen || m.conn != nil
	m.mu.RUnlock()
	if stale || ctx.Err() != nil {
		return
	}

	m.log.Info().Str("group", group).Msg("reconnecting")
	if err := m.sleep(ctx, m.opts.Backoff); err != nil {
		return
	}
	if err := m.connectAndJoin(ctx, group); err != nil {
		m.log.Error().Err(err).Str("group", group).Msg("reconnect failed")
	}
}

func (m *Manager) stopReconnect() {
	m.mu.Lock()
	cancel := m.cancelReconnect
	m.cancelReconnect = nil
	m.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

func (m *Manager) setState(s State) {
	m.mu.Lock()
	prev := m.state
	m.state = s
	m.mu.Unlock()

	m.stateChanged(prev, s)
}

func (m *Manager) stateChanged(prev, s State) {
	if prev == s {
		return
	}
	m.log.Debug().Str("from", prev.String()).Str("state", s.String()).Msg("channel state")
	if m.opts.OnStateChange != nil {
		m.opts.OnStateChange(s)
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
