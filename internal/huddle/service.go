// Package huddle is the activity sync engine: it loads pages of activities
// into the registry, reacts to filter changes, commits mutations after the
// backend confirms them and forwards comments to the real-time channel.
package huddle

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/hay-kot/huddle/internal/core/activity"
	"github.com/hay-kot/huddle/internal/core/auth"
	"github.com/hay-kot/huddle/internal/core/fault"
	"github.com/hay-kot/huddle/internal/core/paging"
	"github.com/hay-kot/huddle/internal/core/query"
	"github.com/hay-kot/huddle/internal/core/registry"
	"github.com/hay-kot/huddle/internal/metrics"
)

// Notifier shows a transient message to the user.
type Notifier interface {
	Notify(msg string)
}

// Navigator moves the user to an activity's detail view.
type Navigator interface {
	ShowActivity(id string)
}

// Channel is the real-time comment channel for the activity in view.
type Channel interface {
	Open(ctx context.Context, activityID string) error
	Close(ctx context.Context) error
	Send(ctx context.Context, body string) error
}

// Status reports the busy flags of the engine.
type Status struct {
	LoadingInitial bool
	LoadingNext    bool
	Submitting     bool
	Loading        bool
	// Target is the id of the activity being deleted.
	Target string
}

// Options configures optional collaborators of a Service.
type Options struct {
	PageSize  int
	Notifier  Notifier
	Navigator Navigator
	Channel   Channel
	Metrics   *metrics.Metrics
}

// Service orchestrates the activity registry, the backend and the comment
// channel for one user.
type Service struct {
	backend  activity.Backend
	registry *registry.Registry
	user     auth.User
	log      zerolog.Logger

	notifier  Notifier
	navigator Navigator
	channel   Channel
	metrics   *metrics.Metrics

	mu         sync.Mutex
	pager      *paging.Controller
	predicate  query.Predicate
	epoch      uint64
	current    activity.Activity
	hasCurrent bool

	listing     int
	listingMore int
	submitting  bool
	loading     bool
	target      string
}

// New creates a new Service.
func New(
	backend activity.Backend,
	reg *registry.Registry,
	user auth.User,
	log zerolog.Logger,
	opts Options,
) *Service {
	return &Service{
		backend:   backend,
		registry:  reg,
		user:      user,
		log:       log,
		notifier:  opts.Notifier,
		navigator: opts.Navigator,
		channel:   opts.Channel,
		metrics:   opts.Metrics,
		pager:     paging.New(opts.PageSize),
		predicate: query.Predicate{},
	}
}

// Registry returns the activity registry the service writes to.
func (s *Service) Registry() *registry.Registry {
	return s.registry
}

// User returns the user the service acts for.
func (s *Service) User() auth.User {
	return s.user
}

// Status returns a snapshot of the busy flags.
func (s *Service) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	return Status{
		LoadingInitial: s.listing > 0,
		LoadingNext:    s.listingMore > 0,
		Submitting:     s.submitting,
		Loading:        s.loading,
		Target:         s.target,
	}
}

// Predicate returns a copy of the current filter.
func (s *Service) Predicate() query.Predicate {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.predicate.Clone()
}

// Page returns the current page index.
func (s *Service) Page() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pager.Page()
}

// TotalPages returns the page count derived from the latest list response.
func (s *Service) TotalPages() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pager.TotalPages()
}

// TotalCount returns the latest total reported by the backend.
func (s *Service) TotalCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pager.TotalCount()
}

// GroupByDate returns the cached activities grouped by day.
func (s *Service) GroupByDate() []registry.DateGroup {
	return s.registry.GroupByDate()
}

// LoadActivities fetches the current page for the current predicate and
// merges the results into the registry. A response that arrives after the
// predicate changed is discarded.
func (s *Service) LoadActivities(ctx context.Context) error {
	return s.load(ctx, false)
}

// NextPage advances to the next page and loads it. It returns false when
// the current page is the last one.
func (s *Service) NextPage(ctx context.Context) (bool, error) {
	s.mu.Lock()
	if !s.pager.HasNext() {
		s.mu.Unlock()
		return false, nil
	}
	err := s.pager.SetPage(s.pager.Page() + 1)
	s.mu.Unlock()
	if err != nil {
		return false, err
	}

	if err := s.load(ctx, true); err != nil {
		return true, err
	}
	return true, nil
}

// SetPage jumps to page n and loads it.
func (s *Service) SetPage(ctx context.Context, n int) error {
	s.mu.Lock()
	err := s.pager.SetPage(n)
	s.mu.Unlock()
	if err != nil {
		return err
	}
	return s.load(ctx, false)
}

func (s *Service) load(ctx context.Context, more bool) error {
	s.mu.Lock()
	q, err := query.Build(s.predicate, s.pager.Page(), s.pager.PageSize())
	if err != nil {
		s.mu.Unlock()
		return fmt.Errorf("build query: %w", err)
	}
	epoch := s.epoch
	if more {
		s.listingMore++
	} else {
		s.listing++
	}
	s.mu.Unlock()

	s.log.Debug().Str("query", q.Encode()).Uint64("epoch", epoch).Msg("loading activities")

	var env activity.Envelope
	err = s.track("list", func() error {
		var err error
		env, err = s.backend.List(ctx, q)
		return err
	})

	s.mu.Lock()
	defer s.mu.Unlock()

	if more {
		s.listingMore--
	} else {
		s.listing--
	}

	if err != nil {
		s.log.Error().Err(err).Str("query", q.Encode()).Msg("failed to load activities")
		return fmt.Errorf("list activities: %w", err)
	}

	if epoch != s.epoch {
		s.log.Debug().Uint64("epoch", epoch).Uint64("current_epoch", s.epoch).Msg("discarding stale list response")
		if s.metrics != nil {
			s.metrics.StaleResponses.Inc()
		}
		return nil
	}

	for _, a := range env.Activities {
		a.Decorate(s.user.Username)
		s.registry.Put(a)
	}
	if err := s.pager.SetTotalCount(env.ActivityCount); err != nil {
		return fmt.Errorf("list activities: %w", err)
	}
	s.observeRegistry()

	s.log.Debug().Int("count", len(env.Activities)).Int("total", env.ActivityCount).Msg("activities loaded")
	return nil
}

// LoadActivity returns the activity with the given id, fetching it from the
// backend when it is not cached, and makes it the current activity.
func (s *Service) LoadActivity(ctx context.Context, id string) (activity.Activity, error) {
	if id == "" {
		return activity.Activity{}, fmt.Errorf("load activity: empty id: %w", fault.ErrValidation)
	}

	if a, ok := s.registry.Get(id); ok {
		s.setCurrent(a)
		return a, nil
	}

	s.mu.Lock()
	epoch := s.epoch
	s.listing++
	s.mu.Unlock()

	var a activity.Activity
	err := s.track("details", func() error {
		var err error
		a, err = s.backend.Details(ctx, id)
		return err
	})

	s.mu.Lock()
	defer s.mu.Unlock()
	s.listing--

	if err != nil {
		s.log.Error().Err(err).Str("activity_id", id).Msg("failed to load activity")
		return activity.Activity{}, fmt.Errorf("load activity %s: %w", id, err)
	}

	a.Decorate(s.user.Username)
	s.current = a.Clone()
	s.hasCurrent = true

	if epoch != s.epoch {
		s.log.Debug().Str("activity_id", id).Msg("not caching stale activity details")
		if s.metrics != nil {
			s.metrics.StaleResponses.Inc()
		}
		return a, nil
	}

	s.registry.Put(a)
	s.observeRegistry()
	return a, nil
}

// Current returns the activity in detail view. The registry copy is
// preferred so pushed comments are visible.
func (s *Service) Current() (activity.Activity, bool) {
	s.mu.Lock()
	cur, ok := s.current, s.hasCurrent
	s.mu.Unlock()

	if !ok {
		return activity.Activity{}, false
	}
	if a, found := s.registry.Get(cur.ID); found {
		return a, true
	}
	return cur.Clone(), true
}

// ClearActivity unsets the current activity.
func (s *Service) ClearActivity() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current = activity.Activity{}
	s.hasCurrent = false
}

func (s *Service) setCurrent(a activity.Activity) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current = a.Clone()
	s.hasCurrent = true
}

// track runs a backend call and records its latency and outcome.
func (s *Service) track(op string, fn func() error) error {
	timer := metrics.NewTimer()
	err := fn()
	if err != nil {
		s.log.Debug().Err(err).Str("op", op).Str("kind", fault.Kind(err)).Msg("backend call failed")
	}
	if s.metrics != nil {
		s.metrics.ObserveRequest(op, timer.Duration(), err)
	}
	return err
}

func (s *Service) observeRegistry() {
	if s.metrics != nil {
		s.metrics.RegistrySize.Set(float64(s.registry.Len()))
	}
}
