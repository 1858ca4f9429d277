// Package registry is the in-memory cache of activity snapshots shared by the
// list loaders, the mutation paths and the real-time channel.
package registry

import (
	"iter"
	"slices"
	"sync"

	"github.com/hay-kot/huddle/internal/core/activity"
)

// dayLayout groups activities by calendar day.
const dayLayout = "2006-01-02"

// subscriberBuffer is the per-subscriber channel capacity.
const subscriberBuffer = 64

// Op identifies the kind of registry change.
type Op string

const (
	OpPut     Op = "put"
	OpDelete  Op = "delete"
	OpClear   Op = "clear"
	OpComment Op = "comment"
)

// Change describes a single registry mutation. ID is empty for OpClear.
type Change struct {
	Op Op
	ID string
}

// DateGroup holds the activities falling on one calendar day.
type DateGroup struct {
	Date       string
	Activities []activity.Activity
}

// Registry maps activity ids to snapshots. Values are copied on the way in and
// out, so callers never share memory with the cache. Iteration follows
// insertion order; replacing an existing id keeps its position.
type Registry struct {
	mu    sync.RWMutex
	items map[string]activity.Activity
	order []string

	subMu sync.Mutex
	subs  map[chan Change]struct{}
}

func New() *Registry {
	return &Registry{
		items: make(map[string]activity.Activity),
		subs:  make(map[chan Change]struct{}),
	}
}

// Get returns the snapshot for id.
func (r *Registry) Get(id string) (activity.Activity, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	a, ok := r.items[id]
	if !ok {
		return activity.Activity{}, false
	}
	return a.Clone(), true
}

// Put inserts or replaces the snapshot stored under a.ID.
func (r *Registry) Put(a activity.Activity) {
	r.mu.Lock()
	r.putLocked(a.Clone())
	r.mu.Unlock()

	r.publish(Change{Op: OpPut, ID: a.ID})
}

func (r *Registry) putLocked(a activity.Activity) {
	if _, ok := r.items[a.ID]; !ok {
		r.order = append(r.order, a.ID)
	}
	r.items[a.ID] = a
}

// Delete removes id. Deleting a missing id is a no-op.
func (r *Registry) Delete(id string) {
	r.mu.Lock()
	_, ok := r.items[id]
	if ok {
		delete(r.items, id)
		r.order = slices.DeleteFunc(r.order, func(s string) bool { return s == id })
	}
	r.mu.Unlock()

	if ok {
		r.publish(Change{Op: OpDelete, ID: id})
	}
}

// Clear evicts every snapshot.
func (r *Registry) Clear() {
	r.mu.Lock()
	clear(r.items)
	r.order = nil
	r.mu.Unlock()

	r.publish(Change{Op: OpClear})
}

// Len returns the number of cached activities.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.items)
}

// Values iterates over a snapshot of the registry taken when iteration
// starts. The sequence can be ranged over again to observe later changes.
func (r *Registry) Values() iter.Seq[activity.Activity] {
	return func(yield func(activity.Activity) bool) {
		for _, a := range r.snapshot() {
			if !yield(a) {
				return
			}
		}
	}
}

func (r *Registry) snapshot() []activity.Activity {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]activity.Activity, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.items[id].Clone())
	}
	return out
}

// GroupByDate sorts activities by date ascending and groups them by the
// calendar day of each date in its own location.
func (r *Registry) GroupByDate() []DateGroup {
	all := r.snapshot()
	slices.SortStableFunc(all, func(a, b activity.Activity) int {
		return a.Date.Compare(b.Date)
	})

	var groups []DateGroup
	index := make(map[string]int)
	for _, a := range all {
		day := a.Date.Format(dayLayout)
		i, ok := index[day]
		if !ok {
			i = len(groups)
			index[day] = i
			groups = append(groups, DateGroup{Date: day})
		}
		groups[i].Activities = append(groups[i].Activities, a)
	}
	return groups
}

// Update applies fn to the snapshot stored under id and stores the result.
// It returns false when id is not cached. fn must not change the id.
func (r *Registry) Update(id string, fn func(*activity.Activity)) bool {
	r.mu.Lock()
	a, ok := r.items[id]
	if ok {
		a = a.Clone()
		fn(&a)
		a.ID = id
		r.items[id] = a
	}
	r.mu.Unlock()

	if ok {
		r.publish(Change{Op: OpPut, ID: id})
	}
	return ok
}

// AppendComment appends c to the comments of activity id. A comment whose id
// is already present is skipped. It reports whether the comment was added.
func (r *Registry) AppendComment(id string, c activity.Comment) bool {
	r.mu.Lock()
	a, ok := r.items[id]
	if ok && c.ID != "" && a.HasComment(c.ID) {
		ok = false
	}
	if ok {
		a.Comments = append(slices.Clone(a.Comments), c)
		r.items[id] = a
	}
	r.mu.Unlock()

	if ok {
		r.publish(Change{Op: OpComment, ID: id})
	}
	return ok
}

// Subscribe returns a channel receiving every subsequent change and a func
// that ends the subscription. Changes are dropped for subscribers whose
// buffer is full.
func (r *Registry) Subscribe() (<-chan Change, func()) {
	ch := make(chan Change, subscriberBuffer)

	r.subMu.Lock()
	r.subs[ch] = struct{}{}
	r.subMu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			r.subMu.Lock()
			delete(r.subs, ch)
			r.subMu.Unlock()
			close(ch)
		})
	}
}

func (r *Registry) publish(c Change) {
	r.subMu.Lock()
	defer r.subMu.Unlock()

	for ch := range r.subs {
		select {
		case ch <- c:
		default:
			// subscriber is behind, drop
		}
	}
}
