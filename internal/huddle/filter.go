package huddle

import (
	"context"
	"fmt"
	"time"

	"github.com/hay-kot/huddle/internal/core/query"
)

// SetPredicate replaces the filter. When p differs from the current
// predicate the page is reset, the registry is cleared and in-flight list
// responses are invalidated before the first page of the new filter is
// loaded. Setting an equal predicate does nothing.
func (s *Service) SetPredicate(ctx context.Context, p query.Predicate) error {
	if err := p.Validate(); err != nil {
		return fmt.Errorf("set predicate: %w", err)
	}

	s.mu.Lock()
	if p.Equal(s.predicate) {
		s.mu.Unlock()
		return nil
	}
	s.predicate = p.Clone()
	s.pager.Reset()
	s.registry.Clear()
	s.epoch++
	epoch := s.epoch
	s.mu.Unlock()

	s.observeRegistry()
	s.log.Debug().Interface("predicate", p).Uint64("epoch", epoch).Msg("predicate changed")

	return s.LoadActivities(ctx)
}

// SetFilter selects one of the boolean filters (query.KeyAll, KeyGoing,
// KeyHost) while keeping the start date.
func (s *Service) SetFilter(ctx context.Context, key string) error {
	return s.SetPredicate(ctx, s.Predicate().WithFlag(key))
}

// SetStartDate filters activities from t onward. A zero t removes the
// date filter.
func (s *Service) SetStartDate(ctx context.Context, t time.Time) error {
	return s.SetPredicate(ctx, s.Predicate().WithStartDate(t))
}
