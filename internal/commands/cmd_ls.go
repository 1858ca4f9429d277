package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/hay-kot/huddle/internal/core/query"
	"github.com/hay-kot/huddle/internal/core/validate"
	"github.com/hay-kot/huddle/internal/printer"
)

type LsCmd struct {
	flags     *Flags
	going     bool
	hosting   bool
	all       bool
	startDate string
	pages     int
}

// NewLsCmd creates a new ls command
func NewLsCmd(flags *Flags) *LsCmd {
	return &LsCmd{flags: flags}
}

// Register adds the ls command to the application
func (cmd *LsCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:      "ls",
		Usage:     "List activities",
		UsageText: "huddle ls [options]",
		Description: `Loads activities page by page and prints them grouped by day.

Each additional page is appended to the list, the same way scrolling
further down loads more results.

Example:
  huddle ls --going
  huddle ls --start-date 2024-06-01 --pages 3`,
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:        "all",
				Usage:       "show all activities",
				Destination: &cmd.all,
			},
			&cli.BoolFlag{
				Name:        "going",
				Usage:       "only activities you attend",
				Destination: &cmd.going,
			},
			&cli.BoolFlag{
				Name:        "hosting",
				Usage:       "only activities you host",
				Destination: &cmd.hosting,
			},
			&cli.StringFlag{
				Name:        "start-date",
				Usage:       "only activities on or after this date (YYYY-MM-DD)",
				Destination: &cmd.startDate,
			},
			&cli.IntFlag{
				Name:        "pages",
				Aliases:     []string{"n"},
				Usage:       "number of pages to load",
				Value:       1,
				Destination: &cmd.pages,
			},
		},
		Action: cmd.run,
	})

	return app
}

func (cmd *LsCmd) run(ctx context.Context, c *cli.Command) error {
	p := printer.Ctx(ctx)
	svc := cmd.flags.Service

	pred, err := cmd.predicate(time.Local)
	if err != nil {
		return err
	}
	if cmd.pages < 1 {
		return fmt.Errorf("--pages must be at least 1, got %d", cmd.pages)
	}

	if len(pred) > 0 {
		err = svc.SetPredicate(ctx, pred)
	} else {
		err = svc.LoadActivities(ctx)
	}
	if err != nil {
		return fmt.Errorf("list activities: %w", err)
	}

	for range cmd.pages - 1 {
		more, err := svc.NextPage(ctx)
		if err != nil {
			return fmt.Errorf("list activities: %w", err)
		}
		if !more {
			break
		}
	}

	groups := svc.GroupByDate()
	if len(groups) == 0 {
		p.Infof("No activities found")
		return nil
	}

	newRenderer(c.Root().Writer).activityList(groups)

	p.Infof("Page %d of %d, %d activities", svc.Page()+1, svc.TotalPages(), svc.TotalCount())
	return nil
}

// predicate builds the filter from the command flags.
func (cmd *LsCmd) predicate(loc *time.Location) (query.Predicate, error) {
	flags := 0
	pred := query.Predicate{}
	for key, set := range map[string]bool{
		query.KeyAll:   cmd.all,
		query.KeyGoing: cmd.going,
		query.KeyHost:  cmd.hosting,
	} {
		if set {
			flags++
			pred = pred.WithFlag(key)
		}
	}
	if flags > 1 {
		return nil, fmt.Errorf("--all, --going and --hosting are mutually exclusive")
	}

	if cmd.startDate != "" {
		t, err := validate.ParseDate(cmd.startDate, loc)
		if err != nil {
			return nil, fmt.Errorf("--start-date: %w", err)
		}
		pred = pred.WithStartDate(t)
	}

	return pred, nil
}
