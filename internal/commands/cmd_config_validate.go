package commands

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/hay-kot/criterio"
	"github.com/urfave/cli/v3"

	"github.com/hay-kot/huddle/internal/core/auth"
	"github.com/hay-kot/huddle/internal/core/config"
	"github.com/hay-kot/huddle/internal/printer"
)

type ConfigValidateCmd struct {
	flags  *Flags
	format string
}

// NewConfigValidateCmd creates a new config validate command.
func NewConfigValidateCmd(flags *Flags) *ConfigValidateCmd {
	return &ConfigValidateCmd{flags: flags}
}

// Register adds the config validate command to the application.
func (cmd *ConfigValidateCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:  "config",
		Usage: "Configuration management commands",
		Commands: []*cli.Command{
			{
				Name:      "validate",
				Usage:     "Validate configuration file",
				UsageText: "huddle config validate [options]",
				Description: `Validates the configuration file and the stored credentials, checking
endpoint URLs, timeouts, reconnect settings, and the data directory.`,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:        "format",
						Usage:       "output format (text, json)",
						Value:       "text",
						Destination: &cmd.format,
					},
				},
				Action: cmd.run,
			},
		},
	})

	return app
}

// validationReport is the result of checking the configuration.
type validationReport struct {
	Valid     bool                       `json:"valid"`
	APIURL    string                     `json:"api_url"`
	HubURL    string                     `json:"hub_url"`
	User      string                     `json:"user,omitempty"`
	Errors    []reportError              `json:"errors,omitempty"`
	Warnings  []config.ValidationWarning `json:"warnings,omitempty"`
	fieldErrs criterio.FieldErrors
}

type reportError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (cmd *ConfigValidateCmd) run(ctx context.Context, c *cli.Command) error {
	cfg := cmd.flags.Config
	if cfg == nil {
		return fmt.Errorf("configuration not loaded")
	}

	err := cfg.ValidateDeep(cmd.flags.ConfigPath)

	var user auth.User
	if cmd.flags.Users != nil {
		var loadErr error
		user, loadErr = cmd.flags.Users.Load(ctx)
		if loadErr != nil && !errors.Is(loadErr, auth.ErrNotLoggedIn) {
			err = errors.Join(err, criterio.NewFieldErrors("credentials", loadErr))
		}
	}

	report := newReport(cfg, user, err)

	if cmd.format == "json" {
		return writeReportJSON(c.Root().Writer, report)
	}

	return writeReportText(printer.Ctx(ctx), report)
}

func newReport(cfg *config.Config, user auth.User, validationErr error) validationReport {
	r := validationReport{
		Valid:     validationErr == nil,
		APIURL:    cfg.APIURL,
		HubURL:    cfg.HubURL,
		User:      user.Username,
		Warnings:  cfg.Warnings(),
		fieldErrs: extractFieldErrors(validationErr),
	}
	for _, fe := range r.fieldErrs {
		r.Errors = append(r.Errors, reportError{Field: fe.Field, Message: fe.Err.Error()})
	}
	return r
}

func writeReportJSON(w io.Writer, r validationReport) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(r)
}

// extractFieldErrors flattens err into field errors. Errors joined with
// errors.Join contribute each of their parts.
func extractFieldErrors(err error) criterio.FieldErrors {
	if err == nil {
		return nil
	}

	if fe, ok := err.(criterio.FieldErrors); ok { //nolint:errorlint // checked before the join below
		return fe
	}

	if joined, ok := err.(interface{ Unwrap() []error }); ok { //nolint:errorlint // only the top-level join is flattened
		var out criterio.FieldErrors
		for _, e := range joined.Unwrap() {
			out = append(out, extractFieldErrors(e)...)
		}
		return out
	}

	var fieldErrs criterio.FieldErrors
	if errors.As(err, &fieldErrs) {
		return fieldErrs
	}
	return criterio.FieldErrors{{Err: err}}
}

func writeReportText(p *printer.Printer, r validationReport) error {
	p.Printf("Endpoints")
	p.Printf("  %s api: %s", printer.Dot, r.APIURL)
	p.Printf("  %s hub: %s", printer.Dot, r.HubURL)
	if r.User != "" {
		p.Printf("  %s logged in as %s", printer.Dot, r.User)
	} else {
		p.Printf("  %s not logged in", printer.Dot)
	}

	if len(r.fieldErrs) > 0 {
		p.Printf("")
		p.Printf("Errors")
		for _, fe := range r.fieldErrs {
			if fe.Field != "" {
				p.Printf("  %s %s: %s", printer.Cross, fe.Field, fe.Err.Error())
			} else {
				p.Printf("  %s %s", printer.Cross, fe.Err.Error())
			}
		}
	}

	if len(r.Warnings) > 0 {
		p.Printf("")
		p.Printf("Warnings")
		for _, warn := range r.Warnings {
			msg := warn.Message
			if warn.Item != "" {
				msg = warn.Item + ": " + msg
			}
			p.Printf("  %s %s: %s", printer.Dot, warn.Category, msg)
		}
	}

	p.Printf("")
	if r.Valid {
		if len(r.Warnings) > 0 {
			p.Successf("Configuration is valid (%d warning(s))", len(r.Warnings))
		} else {
			p.Successf("Configuration is valid")
		}
		return nil
	}

	p.Errorf("%d error(s), %d warning(s)", len(r.fieldErrs), len(r.Warnings))
	return cli.Exit("", 1)
}
