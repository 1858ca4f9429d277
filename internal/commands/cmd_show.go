package commands

import (
	"context"
	"fmt"

	"github.com/hay-kot/criterio"
	"github.com/urfave/cli/v3"

	"github.com/hay-kot/huddle/internal/core/validate"
)

type ShowCmd struct {
	flags *Flags
}

// NewShowCmd creates a new show command
func NewShowCmd(flags *Flags) *ShowCmd {
	return &ShowCmd{flags: flags}
}

// Register adds the show command to the application
func (cmd *ShowCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:        "show",
		Usage:       "Show an activity with its attendees and comments",
		UsageText:   "huddle show <id>",
		Description: "Fetches a single activity and prints its details. Descriptions are rendered as markdown on a terminal.",
		Action:      cmd.run,
	})

	return app
}

func (cmd *ShowCmd) run(ctx context.Context, c *cli.Command) error {
	id, err := activityArg(c, "show")
	if err != nil {
		return err
	}

	a, err := cmd.flags.Service.LoadActivity(ctx, id)
	if err != nil {
		return fmt.Errorf("show activity: %w", err)
	}

	newRenderer(c.Root().Writer).activity(a)
	return nil
}

// activityArg returns the single activity id argument of command name.
func activityArg(c *cli.Command, name string) (string, error) {
	if c.Args().Len() != 1 {
		return "", fmt.Errorf("activity id required\n\nUsage: huddle %s <id>", name)
	}
	id := c.Args().First()
	if err := validate.ActivityID(id); err != nil {
		return "", criterio.NewFieldErrors("id", err)
	}
	return id, nil
}
