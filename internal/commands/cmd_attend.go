package commands

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/hay-kot/huddle/internal/printer"
)

type AttendCmd struct {
	flags *Flags
}

// NewAttendCmd creates the attend and unattend commands
func NewAttendCmd(flags *Flags) *AttendCmd {
	return &AttendCmd{flags: flags}
}

// Register adds the attend and unattend commands to the application
func (cmd *AttendCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands,
		&cli.Command{
			Name:        "attend",
			Usage:       "Sign up for an activity",
			UsageText:   "huddle attend <id>",
			Description: "Adds you to the activity's attendees.",
			Action:      cmd.attend,
		},
		&cli.Command{
			Name:        "unattend",
			Usage:       "Cancel your attendance",
			UsageText:   "huddle unattend <id>",
			Description: "Removes you from the activity's attendees.",
			Action:      cmd.unattend,
		},
	)

	return app
}

func (cmd *AttendCmd) attend(ctx context.Context, c *cli.Command) error {
	id, err := cmd.load(ctx, c, "attend")
	if err != nil {
		return err
	}

	if err := cmd.flags.Service.Attend(ctx, id); err != nil {
		return fmt.Errorf("attend activity: %w", err)
	}

	printer.Ctx(ctx).Successf("You are going to %s", cmd.title(id))
	return nil
}

func (cmd *AttendCmd) unattend(ctx context.Context, c *cli.Command) error {
	id, err := cmd.load(ctx, c, "unattend")
	if err != nil {
		return err
	}

	if err := cmd.flags.Service.Unattend(ctx, id); err != nil {
		return fmt.Errorf("cancel attendance: %w", err)
	}

	printer.Ctx(ctx).Successf("You are no longer going to %s", cmd.title(id))
	return nil
}

// load makes the activity named by the argument the current one.
func (cmd *AttendCmd) load(ctx context.Context, c *cli.Command, name string) (string, error) {
	if err := cmd.flags.requireLogin(); err != nil {
		return "", err
	}

	id, err := activityArg(c, name)
	if err != nil {
		return "", err
	}

	if _, err := cmd.flags.Service.LoadActivity(ctx, id); err != nil {
		return "", fmt.Errorf("%s: %w", name, err)
	}
	return id, nil
}

func (cmd *AttendCmd) title(id string) string {
	if a, ok := cmd.flags.Service.Current(); ok && a.ID == id {
		return a.Title
	}
	return id
}
