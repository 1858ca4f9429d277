package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v3"

	"github.com/hay-kot/huddle/internal/backend/httpapi"
	"github.com/hay-kot/huddle/internal/commands"
	"github.com/hay-kot/huddle/internal/core/activity"
	"github.com/hay-kot/huddle/internal/core/auth"
	"github.com/hay-kot/huddle/internal/core/config"
	"github.com/hay-kot/huddle/internal/core/registry"
	"github.com/hay-kot/huddle/internal/huddle"
	"github.com/hay-kot/huddle/internal/metrics"
	"github.com/hay-kot/huddle/internal/printer"
	"github.com/hay-kot/huddle/internal/realtime"
	"github.com/hay-kot/huddle/internal/realtime/signalr"
	"github.com/hay-kot/huddle/internal/store/jsonfile"
)

var (
	// Build information. Populated at build-time via -ldflags flag.
	version = "dev"
	commit  = "HEAD"
	date    = "now"
)

func build() string {
	short := commit
	if len(commit) > 7 {
		short = commit[:7]
	}

	return fmt.Sprintf("%s (%s) %s", version, short, date)
}

func main() {
	if err := setupLogger("info", ""); err != nil {
		panic(err)
	}

	var (
		p     = printer.New(os.Stderr)
		ctx   = printer.NewContext(context.Background(), p)
		flags = &commands.Flags{}
	)

	app := &cli.Command{
		Name:      "huddle",
		Usage:     "Browse, host and chat about activities",
		UsageText: "huddle [global options] command [command options]",
		Description: `Huddle is a client for a shared activities service.

List upcoming activities page by page, sign up for the ones you like,
host your own, and follow an activity's comments live.

Run 'huddle login' first to store your credentials.
Run 'huddle ls' to see what is coming up.`,
		Version: build(),
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "log-level",
				Usage:       "log level (debug, info, warn, error, fatal, panic)",
				Sources:     cli.EnvVars("HUDDLE_LOG_LEVEL"),
				Value:       "warn",
				Destination: &flags.LogLevel,
			},
			&cli.StringFlag{
				Name:        "log-file",
				Usage:       "path to log file (optional)",
				Sources:     cli.EnvVars("HUDDLE_LOG_FILE"),
				Destination: &flags.LogFile,
			},
			&cli.StringFlag{
				Name:        "config",
				Aliases:     []string{"c"},
				Usage:       "path to config file",
				Sources:     cli.EnvVars("HUDDLE_CONFIG"),
				Value:       commands.DefaultConfigPath(),
				Destination: &flags.ConfigPath,
			},
			&cli.StringFlag{
				Name:        "data-dir",
				Usage:       "path to data directory",
				Sources:     cli.EnvVars("HUDDLE_DATA_DIR"),
				Value:       commands.DefaultDataDir(),
				Destination: &flags.DataDir,
			},
		},
		Before: func(ctx context.Context, c *cli.Command) (context.Context, error) {
			if err := setupLogger(flags.LogLevel, flags.LogFile); err != nil {
				return ctx, err
			}

			cfg, err := config.Load(flags.ConfigPath, flags.DataDir)
			if err != nil {
				return ctx, fmt.Errorf("load config: %w", err)
			}
			flags.Config = cfg

			flags.Users = jsonfile.NewUserStore(cfg.CredentialsFile())
			user, err := flags.Users.Load(ctx)
			if err != nil && !errors.Is(err, auth.ErrNotLoggedIn) {
				return ctx, fmt.Errorf("load credentials: %w", err)
			}

			flags.Metrics = metrics.New()
			flags.Service, err = newService(ctx, cfg, flags.Users, user, flags.Metrics)
			if err != nil {
				return ctx, err
			}
			return ctx, nil
		},
	}

	app = commands.NewLoginCmd(flags).Register(app)
	app = commands.NewLsCmd(flags).Register(app)
	app = commands.NewShowCmd(flags).Register(app)
	app = commands.NewNewCmd(flags).Register(app)
	app = commands.NewEditCmd(flags).Register(app)
	app = commands.NewRmCmd(flags).Register(app)
	app = commands.NewAttendCmd(flags).Register(app)
	app = commands.NewChatCmd(flags).Register(app)
	app = commands.NewConfigValidateCmd(flags).Register(app)

	exitCode := 0
	if err := app.Run(ctx, os.Args); err != nil {
		fmt.Println()
		printer.Ctx(ctx).FatalError(err)
		exitCode = 1
	}

	os.Exit(exitCode)
}

// newService wires the HTTP backend, the comment hub and the registry into
// a sync engine for user.
func newService(
	ctx context.Context,
	cfg *config.Config,
	users auth.Store,
	user auth.User,
	m *metrics.Metrics,
) (*huddle.Service, error) {
	var (
		tokens = auth.TokenProvider(users)
		reg    = registry.New()
	)

	backend, err := httpapi.New(httpapi.Config{
		BaseURL: cfg.APIURL,
		Timeout: cfg.RequestTimeout,
		Tokens:  tokens,
		Log:     log.With().Str("component", "httpapi").Logger(),
	})
	if err != nil {
		return nil, fmt.Errorf("create api client: %w", err)
	}

	transport := signalr.New(
		cfg.HubURL,
		realtime.TokenProvider(tokens),
		log.With().Str("component", "signalr").Logger(),
	)

	channel := realtime.NewManager(transport, reg, log.With().Str("component", "realtime").Logger(), realtime.Options{
		JoinTimeout: cfg.Realtime.JoinTimeout,
		MaxRetries:  cfg.Realtime.MaxRetries,
		Backoff:     cfg.Realtime.Backoff,
		MaxBackoff:  cfg.Realtime.MaxBackoff,
		OnStateChange: func(s realtime.State) {
			m.SetChannelState(s.String(), realtime.StateNames())
		},
		OnComment: func(_ string, _ activity.Comment, applied bool) {
			if applied {
				m.CommentsReceived.Inc()
			}
		},
	})

	p := printer.Ctx(ctx)
	return huddle.New(backend, reg, user, log.With().Str("component", "huddle").Logger(), huddle.Options{
		PageSize:  cfg.PageSize,
		Notifier:  p,
		Navigator: commands.NewNavigator(p),
		Channel:   channel,
		Metrics:   m,
	}), nil
}

func setupLogger(level string, logFile string) error {
	parsedLevel, err := zerolog.ParseLevel(level)
	if err != nil {
		return fmt.Errorf("failed to parse log level: %w", err)
	}

	var output io.Writer = zerolog.ConsoleWriter{Out: os.Stderr}

	if logFile != "" {
		// Create log directory if it doesn't exist
		logDir := filepath.Dir(logFile)
		if err := os.MkdirAll(logDir, 0o755); err != nil {
			return fmt.Errorf("failed to create log directory: %w", err)
		}

		file, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return fmt.Errorf("failed to open log file: %w", err)
		}

		// Write to both console and file
		output = io.MultiWriter(
			zerolog.ConsoleWriter{Out: os.Stderr},
			file,
		)
	}

	log.Logger = log.Output(output).Level(parsedLevel)

	return nil
}
