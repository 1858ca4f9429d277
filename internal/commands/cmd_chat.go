package commands

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v3"
	"golang.org/x/sync/errgroup"

	"github.com/hay-kot/huddle/internal/core/activity"
	"github.com/hay-kot/huddle/internal/core/registry"
	"github.com/hay-kot/huddle/internal/huddle"
	"github.com/hay-kot/huddle/internal/printer"
	"github.com/hay-kot/huddle/internal/styles"
)

const closeTimeout = 5 * time.Second

type ChatCmd struct {
	flags       *Flags
	metricsAddr string
}

// NewChatCmd creates a new chat command
func NewChatCmd(flags *Flags) *ChatCmd {
	return &ChatCmd{flags: flags}
}

// Register adds the chat command to the application
func (cmd *ChatCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:      "chat",
		Usage:     "Join an activity's comments",
		UsageText: "huddle chat <id> [--metrics-addr <addr>]",
		Description: `Joins the live comment group of an activity. Comments from other users
are printed as they arrive and every line typed on stdin is sent as a
comment. Press Ctrl+D or Ctrl+C to leave.

Example:
  huddle chat 3f2a
  huddle chat 3f2a --metrics-addr 127.0.0.1:9464`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "metrics-addr",
				Usage:       "serve prometheus metrics on this address while chatting",
				Sources:     cli.EnvVars("HUDDLE_METRICS_ADDR"),
				Destination: &cmd.metricsAddr,
			},
		},
		Action: cmd.run,
	})

	return app
}

func (cmd *ChatCmd) run(ctx context.Context, c *cli.Command) error {
	if err := cmd.flags.requireLogin(); err != nil {
		return err
	}

	id, err := activityArg(c, "chat")
	if err != nil {
		return err
	}

	addr := cmd.metricsAddr
	if addr == "" && cmd.flags.Config != nil {
		addr = cmd.flags.Config.MetricsAddr
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	session := &chatSession{
		svc: cmd.flags.Service,
		id:  id,
		in:  os.Stdin,
		r:   newRenderer(c.Root().Writer),
		p:   printer.Ctx(ctx),
	}
	if addr != "" && cmd.flags.Metrics != nil {
		session.serve = func(ctx context.Context) error {
			return serveMetrics(ctx, addr, cmd.flags.Metrics.Handler())
		}
	}

	return session.run(ctx)
}

// chatSession streams the comments of one activity and sends input lines
// as new comments.
type chatSession struct {
	svc   *huddle.Service
	id    string
	in    io.Reader
	r     *renderer
	p     *printer.Printer
	serve func(ctx context.Context) error

	seen map[string]struct{}
}

func (s *chatSession) run(ctx context.Context) error {
	a, err := s.svc.LoadActivity(ctx, s.id)
	if err != nil {
		return fmt.Errorf("chat: %w", err)
	}

	_, _ = fmt.Fprintln(s.r.w, s.r.style(styles.BannerStyle, styles.Banner))
	_, _ = fmt.Fprintln(s.r.w, s.r.style(styles.TitleStyle, a.Title))
	s.r.divider()

	s.seen = make(map[string]struct{}, len(a.Comments))
	for i, c := range a.Comments {
		s.seen[commentKey(i, c)] = struct{}{}
		s.r.comment(c)
	}

	changes, unsubscribe := s.svc.Registry().Subscribe()
	defer unsubscribe()

	if err := s.svc.OpenChannel(ctx, s.id); err != nil {
		return fmt.Errorf("chat: %w", err)
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), closeTimeout)
		defer cancel()
		if err := s.svc.CloseChannel(closeCtx); err != nil {
			log.Warn().Err(err).Str("activity_id", s.id).Msg("failed to close comment channel")
		}
	}()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	lines := readLines(ctx, s.in)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s.watch(gctx, changes)
		return nil
	})
	g.Go(func() error {
		for {
			select {
			case <-gctx.Done():
				return nil
			case line, ok := <-lines:
				if !ok {
					cancel()
					return nil
				}
				s.send(gctx, line)
			}
		}
	})
	if s.serve != nil {
		g.Go(func() error { return s.serve(gctx) })
	}

	return g.Wait()
}

// watch prints comments pushed to the activity until ctx is done, then
// prints whatever is still queued.
func (s *chatSession) watch(ctx context.Context, changes <-chan registry.Change) {
	for {
		select {
		case <-ctx.Done():
			for {
				select {
				case ch := <-changes:
					s.handle(ch)
				default:
					return
				}
			}
		case ch := <-changes:
			s.handle(ch)
		}
	}
}

func (s *chatSession) handle(ch registry.Change) {
	if ch.Op != registry.OpComment || ch.ID != s.id {
		return
	}
	a, ok := s.svc.Registry().Get(s.id)
	if !ok {
		return
	}
	for i, c := range a.Comments {
		key := commentKey(i, c)
		if _, dup := s.seen[key]; dup {
			continue
		}
		s.seen[key] = struct{}{}
		s.r.comment(c)
	}
}

// commentKey identifies a comment for de-duplication. Comments pushed
// without an id are keyed by their position, which is stable because the
// registry only appends.
func commentKey(i int, c activity.Comment) string {
	if c.ID != "" {
		return c.ID
	}
	return fmt.Sprintf("#%d", i)
}

func (s *chatSession) send(ctx context.Context, line string) {
	line = strings.TrimSpace(line)
	if line == "" {
		return
	}
	if err := s.svc.AddComment(ctx, line); err != nil {
		s.p.Errorf("send comment: %v", err)
	}
}

// readLines delivers lines from r until EOF or ctx is done. The channel is
// closed at EOF.
func readLines(ctx context.Context, r io.Reader) <-chan string {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(r)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()
	return lines
}

// serveMetrics serves h on addr until ctx is done.
func serveMetrics(ctx context.Context, addr string, h http.Handler) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", h)

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), closeTimeout)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Info().Str("addr", addr).Msg("serving metrics")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serve metrics: %w", err)
	}
	return nil
}
