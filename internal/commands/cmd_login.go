package commands

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/hay-kot/criterio"
	"github.com/urfave/cli/v3"
	"golang.org/x/term"

	"github.com/hay-kot/huddle/internal/core/auth"
	"github.com/hay-kot/huddle/internal/core/validate"
	"github.com/hay-kot/huddle/internal/printer"
)

type LoginCmd struct {
	flags       *Flags
	username    string
	displayName string
	image       string
	token       string
}

// NewLoginCmd creates a new login command
func NewLoginCmd(flags *Flags) *LoginCmd {
	return &LoginCmd{flags: flags}
}

// Register adds the login and logout commands to the application
func (cmd *LoginCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands,
		&cli.Command{
			Name:      "login",
			Usage:     "Store credentials for the activities API",
			UsageText: "huddle login --username <name> [--token <token>]",
			Description: `Saves the username and bearer token used for API requests and the
comment hub. When --token is omitted the token is read from stdin, or
prompted for without echo when stdin is a terminal.

Example:
  huddle login --username bob --display-name Bob
  echo "$TOKEN" | huddle login --username bob`,
			Flags: []cli.Flag{
				&cli.StringFlag{
					Name:        "username",
					Aliases:     []string{"u"},
					Usage:       "account username",
					Sources:     cli.EnvVars("HUDDLE_USERNAME"),
					Destination: &cmd.username,
				},
				&cli.StringFlag{
					Name:        "display-name",
					Usage:       "name shown to other users (defaults to username)",
					Destination: &cmd.displayName,
				},
				&cli.StringFlag{
					Name:        "image",
					Usage:       "avatar URL",
					Destination: &cmd.image,
				},
				&cli.StringFlag{
					Name:        "token",
					Usage:       "bearer token (read from stdin when omitted)",
					Sources:     cli.EnvVars("HUDDLE_TOKEN"),
					Destination: &cmd.token,
				},
			},
			Action: cmd.run,
		},
		&cli.Command{
			Name:        "logout",
			Usage:       "Remove stored credentials",
			UsageText:   "huddle logout",
			Description: "Deletes the stored username and token.",
			Action:      cmd.logout,
		},
	)

	return app
}

func (cmd *LoginCmd) run(ctx context.Context, c *cli.Command) error {
	p := printer.Ctx(ctx)

	token := cmd.token
	if token == "" {
		var err error
		token, err = readToken(os.Stdin, c.Root().ErrWriter)
		if err != nil {
			return err
		}
	}

	user := auth.User{
		Username:    strings.TrimSpace(cmd.username),
		DisplayName: strings.TrimSpace(cmd.displayName),
		Image:       strings.TrimSpace(cmd.image),
		Token:       token,
	}
	if user.DisplayName == "" {
		user.DisplayName = user.Username
	}

	if err := validateUser(user); err != nil {
		return fmt.Errorf("invalid credentials: %w", err)
	}

	if err := cmd.flags.Users.Save(ctx, user); err != nil {
		return fmt.Errorf("save credentials: %w", err)
	}

	p.Success("Logged in as "+user.Username, cmd.flags.Users.Path())
	return nil
}

func (cmd *LoginCmd) logout(ctx context.Context, _ *cli.Command) error {
	if err := cmd.flags.Users.Clear(ctx); err != nil {
		return fmt.Errorf("clear credentials: %w", err)
	}
	printer.Ctx(ctx).Successf("Logged out")
	return nil
}

func validateUser(u auth.User) error {
	var errs criterio.FieldErrorsBuilder
	if err := validate.Required(u.Username); err != nil {
		errs = errs.Append("username", err)
	}
	if err := validate.Required(u.Token); err != nil {
		errs = errs.Append("token", err)
	}
	return errs.ToError()
}

// readToken reads the token from in. A terminal is prompted without echo,
// anything else is read up to the first newline.
func readToken(in io.Reader, prompt io.Writer) (string, error) {
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		_, _ = fmt.Fprint(prompt, "Token: ")
		b, err := term.ReadPassword(int(f.Fd()))
		_, _ = fmt.Fprintln(prompt)
		if err != nil {
			return "", fmt.Errorf("read token: %w", err)
		}
		return strings.TrimSpace(string(b)), nil
	}

	scanner := bufio.NewScanner(in)
	if scanner.Scan() {
		return strings.TrimSpace(scanner.Text()), nil
	}
	if err := scanner.Err(); err != nil {
		return "", fmt.Errorf("read token: %w", err)
	}
	return "", nil
}
