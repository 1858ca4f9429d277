package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/hay-kot/huddle/internal/printer"
)

type EditCmd struct {
	flags *Flags
	input activityInput
}

// NewEditCmd creates a new edit command
func NewEditCmd(flags *Flags) *EditCmd {
	return &EditCmd{flags: flags}
}

// Register adds the edit command to the application
func (cmd *EditCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:      "edit",
		Usage:     "Edit an activity you host",
		UsageText: "huddle edit <id> [--title <title>] [--date <date>] ...",
		Description: `Updates the given fields of an activity. Fields that are not passed keep
their current value.

Example:
  huddle edit 3f2a --venue "Regent's Park"`,
		Flags:  cmd.input.cliFlags(),
		Action: cmd.run,
	})

	return app
}

func (cmd *EditCmd) run(ctx context.Context, c *cli.Command) error {
	if err := cmd.flags.requireLogin(); err != nil {
		return err
	}

	id, err := activityArg(c, "edit")
	if err != nil {
		return err
	}

	svc := cmd.flags.Service
	a, err := svc.LoadActivity(ctx, id)
	if err != nil {
		return fmt.Errorf("edit activity: %w", err)
	}

	if err := cmd.input.apply(&a, c.IsSet, time.Local); err != nil {
		return invalidActivity(err)
	}

	if _, err := svc.Edit(ctx, a); err != nil {
		return fmt.Errorf("edit activity: %w", err)
	}

	printer.Ctx(ctx).Success("Activity updated", id)
	return nil
}
