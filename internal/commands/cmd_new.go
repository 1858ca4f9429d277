package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/hay-kot/huddle/internal/core/activity"
	"github.com/hay-kot/huddle/internal/printer"
)

type NewCmd struct {
	flags *Flags
	input activityInput
}

// NewNewCmd creates a new new command
func NewNewCmd(flags *Flags) *NewCmd {
	return &NewCmd{flags: flags}
}

// Register adds the new command to the application
func (cmd *NewCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:      "new",
		Usage:     "Create an activity",
		UsageText: "huddle new --title <title> --category <category> --date <date> ...",
		Description: `Creates an activity hosted by you. Every field is required.

Example:
  huddle new --title "Picnic" --category food --date "2024-06-01 12:00" \
    --description "Bring snacks" --city London --venue "Hyde Park"`,
		Flags:  cmd.input.cliFlags(),
		Action: cmd.run,
	})

	return app
}

func (cmd *NewCmd) run(ctx context.Context, _ *cli.Command) error {
	if err := cmd.flags.requireLogin(); err != nil {
		return err
	}

	var a activity.Activity
	if err := cmd.input.apply(&a, allSet, time.Local); err != nil {
		return invalidActivity(err)
	}

	created, err := cmd.flags.Service.Create(ctx, a)
	if err != nil {
		return fmt.Errorf("create activity: %w", err)
	}

	printer.Ctx(ctx).Success("Activity created", created.ID)
	return nil
}
