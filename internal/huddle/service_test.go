package huddle

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hay-kot/huddle/internal/core/activity"
	"github.com/hay-kot/huddle/internal/core/auth"
	"github.com/hay-kot/huddle/internal/core/fault"
	"github.com/hay-kot/huddle/internal/core/query"
	"github.com/hay-kot/huddle/internal/core/registry"
	"github.com/hay-kot/huddle/internal/metrics"
)

var errBackend = fmt.Errorf("backend unavailable: %w", fault.ErrTransport)

// fakeBackend implements activity.Backend over an in-memory list. Calls to
// List can be held open with gate to simulate slow responses.
type fakeBackend struct {
	mu         sync.Mutex
	activities []activity.Activity
	errs       map[string]error
	calls      []string
	queries    []query.Query

	gate    func(q query.Query) chan struct{}
	started chan query.Query
}

func newFakeBackend(activities ...activity.Activity) *fakeBackend {
	return &fakeBackend{activities: activities, errs: map[string]error{}}
}

func (f *fakeBackend) record(op string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, op)
	return f.errs[op]
}

func (f *fakeBackend) callCount(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if c == op {
			n++
		}
	}
	return n
}

func (f *fakeBackend) List(_ context.Context, q query.Query) (activity.Envelope, error) {
	f.mu.Lock()
	f.queries = append(f.queries, q)
	gate := f.gate
	started := f.started
	f.mu.Unlock()

	if started != nil {
		started <- q
	}
	if gate != nil {
		if ch := gate(q); ch != nil {
			<-ch
		}
	}

	if err := f.record("list"); err != nil {
		return activity.Envelope{}, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	host := q.Values().Get(query.KeyHost) == "true"
	var matched []activity.Activity
	for _, a := range f.activities {
		if host {
			if h, ok := a.Host(); !ok || h.Username != "alice" {
				continue
			}
		}
		matched = append(matched, a.Clone())
	}

	env := activity.Envelope{ActivityCount: len(matched)}
	end := min(q.Offset+q.Limit, len(matched))
	if q.Offset < len(matched) {
		env.Activities = matched[q.Offset:end]
	}
	return env, nil
}

func (f *fakeBackend) Details(_ context.Context, id string) (activity.Activity, error) {
	if err := f.record("details"); err != nil {
		return activity.Activity{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, a := range f.activities {
		if a.ID == id {
			return a.Clone(), nil
		}
	}
	return activity.Activity{}, activity.ErrNotFound
}

func (f *fakeBackend) Create(_ context.Context, a activity.Activity) error {
	if err := f.record("create"); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.activities = append(f.activities, a.Clone())
	return nil
}

func (f *fakeBackend) Update(_ context.Context, _ activity.Activity) error { return f.record("update") }
func (f *fakeBackend) Delete(_ context.Context, _ string) error            { return f.record("delete") }
func (f *fakeBackend) Attend(_ context.Context, _ string) error            { return f.record("attend") }
func (f *fakeBackend) Unattend(_ context.Context, _ string) error          { return f.record("unattend") }

type recordingNotifier struct {
	mu   sync.Mutex
	msgs []string
}

func (n *recordingNotifier) Notify(msg string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.msgs = append(n.msgs, msg)
}

func (n *recordingNotifier) messages() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.msgs...)
}

type recordingNavigator struct {
	ids []string
}

func (n *recordingNavigator) ShowActivity(id string) { n.ids = append(n.ids, id) }

var alice = auth.User{Username: "alice", DisplayName: "Alice", Token: "tok"}

func seedActivities(n int) []activity.Activity {
	base := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	out := make([]activity.Activity, 0, n)
	for i := range n {
		host := "bob"
		if i%2 == 0 {
			host = "alice"
		}
		out = append(out, activity.Activity{
			ID:    fmt.Sprintf("a%d", i+1),
			Title: fmt.Sprintf("Activity %d", i+1),
			Date:  base.AddDate(0, 0, i),
			Attendees: []activity.Attendee{
				{Username: host, DisplayName: host, IsHost: true},
			},
		})
	}
	return out
}

type testEnv struct {
	svc      *Service
	backend  *fakeBackend
	registry *registry.Registry
	notifier *recordingNotifier
	nav      *recordingNavigator
	metrics  *metrics.Metrics
}

func newTestService(t *testing.T, backend *fakeBackend, user auth.User) testEnv {
	t.Helper()
	env := testEnv{
		backend:  backend,
		registry: registry.New(),
		notifier: &recordingNotifier{},
		nav:      &recordingNavigator{},
		metrics:  metrics.New(),
	}
	env.svc = New(backend, env.registry, user, zerolog.Nop(), Options{
		PageSize:  2,
		Notifier:  env.notifier,
		Navigator: env.nav,
		Metrics:   env.metrics,
	})
	return env
}

func registryIDs(r *registry.Registry) []string {
	var out []string
	for a := range r.Values() {
		out = append(out, a.ID)
	}
	sort.Strings(out)
	return out
}

func TestService_LoadActivities_Pages(t *testing.T) {
	env := newTestService(t, newFakeBackend(seedActivities(5)...), alice)
	ctx := context.Background()

	require.NoError(t, env.svc.LoadActivities(ctx))
	assert.Equal(t, 3, env.svc.TotalPages())
	assert.Equal(t, 5, env.svc.TotalCount())
	assert.Equal(t, []string{"a1", "a2"}, registryIDs(env.registry))

	more, err := env.svc.NextPage(ctx)
	require.NoError(t, err)
	assert.True(t, more)

	more, err = env.svc.NextPage(ctx)
	require.NoError(t, err)
	assert.True(t, more)
	assert.Equal(t, 2, env.svc.Page())
	assert.Equal(t, []string{"a1", "a2", "a3", "a4", "a5"}, registryIDs(env.registry))

	more, err = env.svc.NextPage(ctx)
	require.NoError(t, err)
	assert.False(t, more, "no page after the last one")
	assert.Equal(t, 2, env.svc.Page())

	assert.False(t, env.svc.Status().LoadingInitial)
	assert.False(t, env.svc.Status().LoadingNext)
}

func TestService_LoadActivities_Decorates(t *testing.T) {
	env := newTestService(t, newFakeBackend(seedActivities(2)...), alice)
	require.NoError(t, env.svc.LoadActivities(context.Background()))

	a1, _ := env.registry.Get("a1")
	assert.True(t, a1.IsHost)
	assert.True(t, a1.IsGoing)

	a2, _ := env.registry.Get("a2")
	assert.False(t, a2.IsHost)
	assert.False(t, a2.IsGoing)
}

func TestService_LoadActivities_Failure(t *testing.T) {
	backend := newFakeBackend(seedActivities(3)...)
	backend.errs["list"] = errBackend
	env := newTestService(t, backend, alice)

	err := env.svc.LoadActivities(context.Background())
	require.ErrorIs(t, err, fault.ErrTransport)

	assert.Equal(t, 0, env.registry.Len())
	assert.False(t, env.svc.Status().LoadingInitial)
	assert.Empty(t, env.notifier.messages(), "list failures are not notified")
	assert.InDelta(t, 1, testutil.ToFloat64(env.metrics.Requests.WithLabelValues("list", metrics.OutcomeError)), 0)
}

func TestService_SetPage(t *testing.T) {
	env := newTestService(t, newFakeBackend(seedActivities(5)...), alice)
	ctx := context.Background()

	require.NoError(t, env.svc.SetPage(ctx, 2))
	assert.Equal(t, []string{"a5"}, registryIDs(env.registry))

	require.ErrorIs(t, env.svc.SetPage(ctx, -1), fault.ErrValidation)
}

func TestService_SetPredicate_ResetsPageAndClears(t *testing.T) {
	env := newTestService(t, newFakeBackend(seedActivities(5)...), alice)
	ctx := context.Background()

	require.NoError(t, env.svc.LoadActivities(ctx))
	_, err := env.svc.NextPage(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, env.svc.Page())

	release := make(chan struct{})
	env.backend.gate = func(query.Query) chan struct{} { return release }
	env.backend.started = make(chan query.Query, 1)

	done := make(chan error, 1)
	go func() {
		done <- env.svc.SetPredicate(ctx, query.Predicate{query.KeyHost: true})
	}()

	q := <-env.backend.started
	assert.Equal(t, 0, q.Page(), "new predicate loads from the first page")
	assert.Equal(t, 0, env.svc.Page())
	assert.Equal(t, 0, env.registry.Len(), "registry is cleared before the new page arrives")
	assert.Equal(t, 0, env.svc.TotalPages(), "total of the old predicate is dropped")

	close(release)
	require.NoError(t, <-done)
	assert.Equal(t, []string{"a1", "a3"}, registryIDs(env.registry))
}

func TestService_SetPredicate_FailedReloadForgetsTotal(t *testing.T) {
	backend := newFakeBackend(seedActivities(5)...)
	env := newTestService(t, backend, alice)
	ctx := context.Background()

	require.NoError(t, env.svc.LoadActivities(ctx))
	require.Equal(t, 3, env.svc.TotalPages())

	backend.mu.Lock()
	backend.errs["list"] = errBackend
	backend.mu.Unlock()

	err := env.svc.SetPredicate(ctx, query.Predicate{query.KeyHost: true})
	require.ErrorIs(t, err, fault.ErrTransport)
	assert.Equal(t, 0, env.registry.Len())
	assert.Equal(t, 0, env.svc.TotalPages())
	assert.Equal(t, 0, env.svc.TotalCount())

	backend.mu.Lock()
	delete(backend.errs, "list")
	backend.mu.Unlock()

	more, err := env.svc.NextPage(ctx)
	require.NoError(t, err)
	assert.False(t, more, "no next page before the first page of the new filter loaded")
	assert.Equal(t, 0, env.svc.Page())

	require.NoError(t, env.svc.LoadActivities(ctx))
	assert.Equal(t, []string{"a1", "a3"}, registryIDs(env.registry))
}

func TestService_SetPredicate_EqualIsNoop(t *testing.T) {
	env := newTestService(t, newFakeBackend(seedActivities(3)...), alice)
	ctx := context.Background()

	require.NoError(t, env.svc.SetPredicate(ctx, query.Predicate{query.KeyHost: true}))
	calls := env.backend.callCount("list")

	require.NoError(t, env.svc.SetPredicate(ctx, query.Predicate{query.KeyHost: true}))
	assert.Equal(t, calls, env.backend.callCount("list"))
	assert.Equal(t, 2, env.registry.Len())
}

func TestService_SetPredicate_Invalid(t *testing.T) {
	env := newTestService(t, newFakeBackend(), alice)
	now := time.Now()

	err := env.svc.SetPredicate(context.Background(), query.Predicate{"from": now, "to": now})
	require.ErrorIs(t, err, fault.ErrValidation)
	assert.Empty(t, env.svc.Predicate())
}

func TestService_SetPredicate_DiscardsStaleResponse(t *testing.T) {
	env := newTestService(t, newFakeBackend(seedActivities(5)...), alice)
	ctx := context.Background()

	release := make(chan struct{})
	env.backend.started = make(chan query.Query, 2)
	env.backend.gate = func(q query.Query) chan struct{} {
		if len(q.Params) == 0 {
			return release
		}
		return nil
	}

	stale := make(chan error, 1)
	go func() { stale <- env.svc.LoadActivities(ctx) }()
	<-env.backend.started

	require.NoError(t, env.svc.SetPredicate(ctx, query.Predicate{query.KeyHost: true}))
	<-env.backend.started
	assert.Equal(t, []string{"a1", "a3"}, registryIDs(env.registry))

	close(release)
	require.NoError(t, <-stale)

	assert.Equal(t, []string{"a1", "a3"}, registryIDs(env.registry), "stale page must not be committed")
	assert.Equal(t, 3, env.svc.TotalCount())
	assert.InDelta(t, 1, testutil.ToFloat64(env.metrics.StaleResponses), 0)
}

func TestService_SetFilterAndStartDate(t *testing.T) {
	env := newTestService(t, newFakeBackend(seedActivities(3)...), alice)
	ctx := context.Background()
	date := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, env.svc.SetStartDate(ctx, date))
	require.NoError(t, env.svc.SetFilter(ctx, query.KeyGoing))
	assert.Equal(t, query.Predicate{query.KeyStartDate: date, query.KeyGoing: true}, env.svc.Predicate())

	require.NoError(t, env.svc.SetFilter(ctx, query.KeyAll))
	assert.Equal(t, query.Predicate{query.KeyStartDate: date}, env.svc.Predicate())

	require.NoError(t, env.svc.SetStartDate(ctx, time.Time{}))
	assert.Empty(t, env.svc.Predicate())
}

func TestService_LoadActivity(t *testing.T) {
	env := newTestService(t, newFakeBackend(seedActivities(3)...), alice)
	ctx := context.Background()

	a, err := env.svc.LoadActivity(ctx, "a3")
	require.NoError(t, err)
	assert.Equal(t, "a3", a.ID)
	assert.True(t, a.IsHost)
	assert.Equal(t, 1, env.backend.callCount("details"))

	_, err = env.svc.LoadActivity(ctx, "a3")
	require.NoError(t, err)
	assert.Equal(t, 1, env.backend.callCount("details"), "cached activity is not fetched again")

	cur, ok := env.svc.Current()
	require.True(t, ok)
	assert.Equal(t, "a3", cur.ID)

	env.svc.ClearActivity()
	_, ok = env.svc.Current()
	assert.False(t, ok)

	_, err = env.svc.LoadActivity(ctx, "missing")
	require.ErrorIs(t, err, activity.ErrNotFound)

	_, err = env.svc.LoadActivity(ctx, "")
	require.ErrorIs(t, err, fault.ErrValidation)
}

func TestService_GroupByDate(t *testing.T) {
	env := newTestService(t, newFakeBackend(seedActivities(2)...), alice)
	require.NoError(t, env.svc.LoadActivities(context.Background()))

	groups := env.svc.GroupByDate()
	require.Len(t, groups, 2)
	assert.Equal(t, "2024-06-01", groups[0].Date)
	assert.Equal(t, "2024-06-02", groups[1].Date)
}

func TestService_Create(t *testing.T) {
	env := newTestService(t, newFakeBackend(), alice)

	a, err := env.svc.Create(context.Background(), activity.Activity{
		Title:    "Picnic",
		Category: "food",
		Comments: []activity.Comment{{ID: "ignored"}},
	})
	require.NoError(t, err)

	assert.NotEmpty(t, a.ID)
	assert.True(t, a.IsHost)
	assert.True(t, a.IsGoing)
	assert.Empty(t, a.Comments)
	require.Len(t, a.Attendees, 1)
	assert.Equal(t, activity.Attendee{Username: "alice", DisplayName: "Alice", IsHost: true}, a.Attendees[0])

	cached, ok := env.registry.Get(a.ID)
	require.True(t, ok)
	assert.Equal(t, a, cached)
	assert.Equal(t, []string{a.ID}, env.nav.ids)
	assert.False(t, env.svc.Status().Submitting)
}

func TestService_Create_Failure(t *testing.T) {
	backend := newFakeBackend()
	backend.errs["create"] = errBackend
	env := newTestService(t, backend, alice)

	_, err := env.svc.Create(context.Background(), activity.Activity{ID: "new", Title: "Picnic"})
	require.ErrorIs(t, err, fault.ErrTransport)

	_, ok := env.registry.Get("new")
	assert.False(t, ok)
	assert.False(t, env.svc.Status().Submitting)
	assert.Equal(t, []string{MsgSubmitFailed}, env.notifier.messages())
	assert.Empty(t, env.nav.ids)
}

func TestService_Create_RequiresLogin(t *testing.T) {
	env := newTestService(t, newFakeBackend(), auth.User{})

	_, err := env.svc.Create(context.Background(), activity.Activity{Title: "Picnic"})
	require.ErrorIs(t, err, fault.ErrState)
	require.ErrorIs(t, err, auth.ErrNotLoggedIn)
	assert.Equal(t, 0, env.backend.callCount("create"))
}

func TestService_Edit(t *testing.T) {
	env := newTestService(t, newFakeBackend(seedActivities(1)...), alice)
	ctx := context.Background()
	require.NoError(t, env.svc.LoadActivities(ctx))
	env.registry.AppendComment("a1", activity.Comment{ID: "c1", Body: "hi"})

	edited, err := env.svc.Edit(ctx, activity.Activity{ID: "a1", Title: "Renamed"})
	require.NoError(t, err)
	assert.Equal(t, "Renamed", edited.Title)
	assert.True(t, edited.IsHost, "attendees are carried over from the cached copy")
	require.Len(t, edited.Comments, 1)

	cached, _ := env.registry.Get("a1")
	assert.Equal(t, "Renamed", cached.Title)
	assert.Equal(t, []string{"a1"}, env.nav.ids)
}

func TestService_Edit_FailureLeavesRegistry(t *testing.T) {
	backend := newFakeBackend(seedActivities(1)...)
	env := newTestService(t, backend, alice)
	ctx := context.Background()
	require.NoError(t, env.svc.LoadActivities(ctx))

	backend.errs["update"] = errBackend
	_, err := env.svc.Edit(ctx, activity.Activity{ID: "a1", Title: "Renamed"})
	require.ErrorIs(t, err, fault.ErrTransport)

	cached, _ := env.registry.Get("a1")
	assert.Equal(t, "Activity 1", cached.Title)
	assert.False(t, env.svc.Status().Submitting)
	assert.Empty(t, env.notifier.messages())

	_, err = env.svc.Edit(ctx, activity.Activity{Title: "no id"})
	require.ErrorIs(t, err, fault.ErrValidation)
}

func TestService_Delete(t *testing.T) {
	backend := newFakeBackend(seedActivities(2)...)
	env := newTestService(t, backend, alice)
	ctx := context.Background()
	require.NoError(t, env.svc.LoadActivities(ctx))
	_, err := env.svc.LoadActivity(ctx, "a1")
	require.NoError(t, err)

	require.NoError(t, env.svc.Delete(ctx, "a1"))
	assert.Equal(t, []string{"a2"}, registryIDs(env.registry))
	_, ok := env.svc.Current()
	assert.False(t, ok)
	assert.Equal(t, Status{}, env.svc.Status())

	require.ErrorIs(t, env.svc.Delete(ctx, "a1"), fault.ErrState)

	backend.errs["delete"] = errBackend
	require.ErrorIs(t, env.svc.Delete(ctx, "a2"), fault.ErrTransport)
	assert.Equal(t, []string{"a2"}, registryIDs(env.registry))
	assert.Equal(t, Status{}, env.svc.Status())
}

func TestService_AttendUnattend(t *testing.T) {
	env := newTestService(t, newFakeBackend(seedActivities(2)...), alice)
	ctx := context.Background()
	require.NoError(t, env.svc.LoadActivities(ctx))

	require.ErrorIs(t, env.svc.Attend(ctx, "a2"), fault.ErrState, "activity must be current")

	_, err := env.svc.LoadActivity(ctx, "a2")
	require.NoError(t, err)

	require.NoError(t, env.svc.Attend(ctx, "a2"))
	a2, _ := env.registry.Get("a2")
	assert.True(t, a2.IsGoing)
	assert.False(t, a2.IsHost)
	require.Len(t, a2.Attendees, 2)
	assert.Equal(t, "alice", a2.Attendees[1].Username)
	assert.False(t, a2.Attendees[1].IsHost)

	require.ErrorIs(t, env.svc.Attend(ctx, "a2"), fault.ErrState, "attending twice is rejected")
	a2, _ = env.registry.Get("a2")
	assert.Len(t, a2.Attendees, 2)

	require.NoError(t, env.svc.Unattend(ctx, "a2"))
	a2, _ = env.registry.Get("a2")
	assert.False(t, a2.IsGoing)
	assert.False(t, a2.HasAttendee("alice"))

	require.ErrorIs(t, env.svc.Unattend(ctx, "a2"), fault.ErrState)
	assert.False(t, env.svc.Status().Loading)
}

func TestService_Attend_Failure(t *testing.T) {
	backend := newFakeBackend(seedActivities(2)...)
	backend.errs["attend"] = errBackend
	env := newTestService(t, backend, alice)
	ctx := context.Background()

	_, err := env.svc.LoadActivity(ctx, "a2")
	require.NoError(t, err)

	require.ErrorIs(t, env.svc.Attend(ctx, "a2"), fault.ErrTransport)
	a2, _ := env.registry.Get("a2")
	assert.False(t, a2.IsGoing)
	assert.False(t, a2.HasAttendee("alice"))
	assert.False(t, env.svc.Status().Loading)
	assert.Equal(t, []string{MsgAttendFailed}, env.notifier.messages())
}

func TestService_Unattend_Failure(t *testing.T) {
	backend := newFakeBackend(seedActivities(1)...)
	backend.errs["unattend"] = errBackend
	env := newTestService(t, backend, alice)
	ctx := context.Background()

	_, err := env.svc.LoadActivity(ctx, "a1")
	require.NoError(t, err)

	require.ErrorIs(t, env.svc.Unattend(ctx, "a1"), fault.ErrTransport)
	a1, _ := env.registry.Get("a1")
	assert.True(t, a1.IsGoing)
	assert.Equal(t, []string{MsgUnattendFailed}, env.notifier.messages())
}

type fakeChannel struct {
	opened []string
	sent   []string
	closed int
	err    error
}

func (c *fakeChannel) Open(_ context.Context, id string) error {
	c.opened = append(c.opened, id)
	return c.err
}

func (c *fakeChannel) Close(context.Context) error {
	c.closed++
	return nil
}

func (c *fakeChannel) Send(_ context.Context, body string) error {
	c.sent = append(c.sent, body)
	return c.err
}

func TestService_Comments(t *testing.T) {
	ch := &fakeChannel{}
	svc := New(newFakeBackend(), registry.New(), alice, zerolog.Nop(), Options{Channel: ch})
	ctx := context.Background()

	require.NoError(t, svc.OpenChannel(ctx, "A1"))
	require.NoError(t, svc.AddComment(ctx, "hello"))
	require.ErrorIs(t, svc.AddComment(ctx, "   "), fault.ErrValidation)
	require.NoError(t, svc.CloseChannel(ctx))

	assert.Equal(t, []string{"A1"}, ch.opened)
	assert.Equal(t, []string{"hello"}, ch.sent)
	assert.Equal(t, 1, ch.closed)

	ch.err = errors.New("boom")
	require.Error(t, svc.AddComment(ctx, "again"))
}

func TestService_Comments_NoChannel(t *testing.T) {
	svc := New(newFakeBackend(), registry.New(), alice, zerolog.Nop(), Options{})
	ctx := context.Background()

	require.ErrorIs(t, svc.OpenChannel(ctx, "A1"), fault.ErrState)
	require.ErrorIs(t, svc.AddComment(ctx, "hi"), fault.ErrState)
	require.NoError(t, svc.CloseChannel(ctx))
}
