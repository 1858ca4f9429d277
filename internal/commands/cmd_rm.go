package commands

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/hay-kot/huddle/internal/printer"
)

type RmCmd struct {
	flags *Flags
}

// NewRmCmd creates a new rm command
func NewRmCmd(flags *Flags) *RmCmd {
	return &RmCmd{flags: flags}
}

// Register adds the rm command to the application
func (cmd *RmCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:        "rm",
		Usage:       "Delete an activity you host",
		UsageText:   "huddle rm <id>",
		Description: "Deletes the activity from the server.",
		Action:      cmd.run,
	})

	return app
}

func (cmd *RmCmd) run(ctx context.Context, c *cli.Command) error {
	if err := cmd.flags.requireLogin(); err != nil {
		return err
	}

	id, err := activityArg(c, "rm")
	if err != nil {
		return err
	}

	svc := cmd.flags.Service
	if _, err := svc.LoadActivity(ctx, id); err != nil {
		return fmt.Errorf("delete activity: %w", err)
	}

	if err := svc.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete activity: %w", err)
	}

	printer.Ctx(ctx).Successf("Activity %s deleted", id)
	return nil
}
