package huddle

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/hay-kot/huddle/internal/core/activity"
	"github.com/hay-kot/huddle/internal/core/auth"
	"github.com/hay-kot/huddle/internal/core/fault"
)

// Notification messages shown when a mutation fails.
const (
	MsgSubmitFailed   = "problem submitting data"
	MsgAttendFailed   = "problem signing up to activity"
	MsgUnattendFailed = "problem cancelling attendance"
)

// Create stores a new activity hosted by the current user. The registry is
// only written after the backend accepts it.
func (s *Service) Create(ctx context.Context, a activity.Activity) (activity.Activity, error) {
	if !s.user.LoggedIn() {
		return activity.Activity{}, fmt.Errorf("create activity: %w: %w", fault.ErrState, auth.ErrNotLoggedIn)
	}

	a = a.Clone()
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	a.Comments = nil
	a.Attendees = []activity.Attendee{{
		Username:    s.user.Username,
		DisplayName: s.user.DisplayName,
		Image:       s.user.Image,
		IsHost:      true,
	}}
	a.IsHost = true
	a.IsGoing = true

	s.log.Info().Str("activity_id", a.ID).Str("title", a.Title).Msg("creating activity")

	s.setSubmitting(true, "")
	err := s.track("create", func() error { return s.backend.Create(ctx, a) })
	s.setSubmitting(false, "")

	if err != nil {
		s.log.Error().Err(err).Str("activity_id", a.ID).Msg("failed to create activity")
		s.notify(MsgSubmitFailed)
		return activity.Activity{}, fmt.Errorf("create activity: %w", err)
	}

	s.registry.Put(a)
	s.setCurrent(a)
	s.observeRegistry()
	s.navigate(a.ID)

	return a, nil
}

// Edit replaces an existing activity. Attendees and comments missing from a
// are taken from the cached copy. On failure the registry is left untouched.
func (s *Service) Edit(ctx context.Context, a activity.Activity) (activity.Activity, error) {
	if a.ID == "" {
		return activity.Activity{}, fmt.Errorf("edit activity: empty id: %w", fault.ErrValidation)
	}

	a = a.Clone()
	if cached, ok := s.registry.Get(a.ID); ok {
		if a.Attendees == nil {
			a.Attendees = cached.Attendees
		}
		a.Comments = cached.Comments
	}
	a.Decorate(s.user.Username)

	s.log.Info().Str("activity_id", a.ID).Msg("editing activity")

	s.setSubmitting(true, "")
	err := s.track("update", func() error { return s.backend.Update(ctx, a) })
	s.setSubmitting(false, "")

	if err != nil {
		s.log.Error().Err(err).Str("activity_id", a.ID).Msg("failed to edit activity")
		return activity.Activity{}, fmt.Errorf("edit activity %s: %w", a.ID, err)
	}

	s.registry.Put(a)
	s.setCurrent(a)
	s.navigate(a.ID)

	return a, nil
}

// Delete removes a cached activity from the backend and then the registry.
func (s *Service) Delete(ctx context.Context, id string) error {
	if _, ok := s.registry.Get(id); !ok {
		return fmt.Errorf("delete activity %s: not loaded: %w", id, fault.ErrState)
	}

	s.log.Info().Str("activity_id", id).Msg("deleting activity")

	s.setSubmitting(true, id)
	err := s.track("delete", func() error { return s.backend.Delete(ctx, id) })
	s.setSubmitting(false, "")

	if err != nil {
		s.log.Error().Err(err).Str("activity_id", id).Msg("failed to delete activity")
		return fmt.Errorf("delete activity %s: %w", id, err)
	}

	s.registry.Delete(id)
	s.observeRegistry()

	s.mu.Lock()
	if s.hasCurrent && s.current.ID == id {
		s.current = activity.Activity{}
		s.hasCurrent = false
	}
	s.mu.Unlock()

	return nil
}

// Attend signs the current user up for the current activity.
func (s *Service) Attend(ctx context.Context, id string) error {
	if !s.user.LoggedIn() {
		return fmt.Errorf("attend activity: %w: %w", fault.ErrState, auth.ErrNotLoggedIn)
	}
	cur, err := s.requireCurrent(id)
	if err != nil {
		return fmt.Errorf("attend activity: %w", err)
	}
	if cur.HasAttendee(s.user.Username) {
		return fmt.Errorf("attend activity %s: already attending: %w", id, fault.ErrState)
	}

	me := activity.Attendee{
		Username:    s.user.Username,
		DisplayName: s.user.DisplayName,
		Image:       s.user.Image,
	}

	return s.changeAttendance(ctx, id, "attend", MsgAttendFailed, s.backend.Attend, func(a *activity.Activity) {
		a.AddAttendee(me)
		a.IsGoing = true
	})
}

// Unattend removes the current user from the current activity's attendees.
func (s *Service) Unattend(ctx context.Context, id string) error {
	cur, err := s.requireCurrent(id)
	if err != nil {
		return fmt.Errorf("unattend activity: %w", err)
	}
	if !cur.HasAttendee(s.user.Username) {
		return fmt.Errorf("unattend activity %s: not attending: %w", id, fault.ErrState)
	}

	username := s.user.Username
	return s.changeAttendance(ctx, id, "unattend", MsgUnattendFailed, s.backend.Unattend, func(a *activity.Activity) {
		a.RemoveAttendee(username)
		a.IsGoing = false
		a.IsHost = false
	})
}

func (s *Service) changeAttendance(
	ctx context.Context,
	id, op, failMsg string,
	call func(context.Context, string) error,
	apply func(*activity.Activity),
) error {
	s.setLoading(true)
	err := s.track(op, func() error { return call(ctx, id) })
	s.setLoading(false)

	if err != nil {
		s.log.Error().Err(err).Str("activity_id", id).Str("op", op).Msg("failed to change attendance")
		s.notify(failMsg)
		return fmt.Errorf("%s activity %s: %w", op, id, err)
	}

	s.mu.Lock()
	if s.hasCurrent && s.current.ID == id {
		s.current = s.current.Clone()
		apply(&s.current)
	}
	s.mu.Unlock()

	s.registry.Update(id, apply)
	s.log.Info().Str("activity_id", id).Str("op", op).Msg("attendance changed")
	return nil
}

// requireCurrent returns the current activity when its id matches.
func (s *Service) requireCurrent(id string) (activity.Activity, error) {
	cur, ok := s.Current()
	if !ok || cur.ID != id {
		return activity.Activity{}, fmt.Errorf("activity %s is not loaded: %w", id, fault.ErrState)
	}
	return cur, nil
}

func (s *Service) setSubmitting(v bool, target string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.submitting = v
	s.target = target
}

func (s *Service) setLoading(v bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loading = v
}

func (s *Service) notify(msg string) {
	if s.notifier != nil {
		s.notifier.Notify(msg)
	}
}

func (s *Service) navigate(id string) {
	if s.navigator != nil {
		s.navigator.ShowActivity(id)
	}
}
