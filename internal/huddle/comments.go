package huddle

import (
	"context"
	"fmt"
	"strings"

	"github.com/hay-kot/huddle/internal/core/fault"
)

// OpenChannel joins the comment group of activity id. Any previously joined
// group is left first.
func (s *Service) OpenChannel(ctx context.Context, id string) error {
	if s.channel == nil {
		return fmt.Errorf("open channel: no channel configured: %w", fault.ErrState)
	}
	if id == "" {
		return fmt.Errorf("open channel: empty id: %w", fault.ErrValidation)
	}
	return s.channel.Open(ctx, id)
}

// CloseChannel leaves the joined group and disconnects.
func (s *Service) CloseChannel(ctx context.Context) error {
	if s.channel == nil {
		return nil
	}
	return s.channel.Close(ctx)
}

// AddComment sends body to the joined activity. The comment reaches the
// registry when the channel pushes it back.
func (s *Service) AddComment(ctx context.Context, body string) error {
	if s.channel == nil {
		return fmt.Errorf("add comment: no channel configured: %w", fault.ErrState)
	}
	if strings.TrimSpace(body) == "" {
		return fmt.Errorf("add comment: empty body: %w", fault.ErrValidation)
	}
	return s.channel.Send(ctx, body)
}
