package commands

import (
	"fmt"
	"strings"
	"time"

	"github.com/hay-kot/criterio"
	"github.com/urfave/cli/v3"

	"github.com/hay-kot/huddle/internal/core/activity"
	"github.com/hay-kot/huddle/internal/core/validate"
)

// activityInput holds the editable activity fields given on the command
// line.
type activityInput struct {
	title       string
	description string
	category    string
	date        string
	city        string
	venue       string
}

func (in *activityInput) cliFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "title", Aliases: []string{"t"}, Usage: "activity title", Destination: &in.title},
		&cli.StringFlag{Name: "description", Aliases: []string{"d"}, Usage: "description (markdown)", Destination: &in.description},
		&cli.StringFlag{
			Name:        "category",
			Usage:       "one of " + strings.Join(validate.Categories, ", "),
			Destination: &in.category,
		},
		&cli.StringFlag{Name: "date", Usage: "date and time (YYYY-MM-DD HH:MM)", Destination: &in.date},
		&cli.StringFlag{Name: "city", Usage: "city", Destination: &in.city},
		&cli.StringFlag{Name: "venue", Usage: "venue", Destination: &in.venue},
	}
}

// apply copies the fields for which isSet returns true onto a and validates
// the result. Dates without a zone are read in loc.
func (in *activityInput) apply(a *activity.Activity, isSet func(name string) bool, loc *time.Location) error {
	var errs criterio.FieldErrorsBuilder

	set := func(name string, dst *string, v string) {
		if isSet(name) {
			*dst = strings.TrimSpace(v)
		}
	}
	set("title", &a.Title, in.title)
	set("description", &a.Description, in.description)
	set("category", &a.Category, strings.ToLower(in.category))
	set("city", &a.City, in.city)
	set("venue", &a.Venue, in.venue)

	if isSet("date") {
		t, err := validate.ParseDate(in.date, loc)
		if err != nil {
			errs = errs.Append("date", err)
		} else {
			a.Date = t
		}
	}

	if err := errs.ToError(); err != nil {
		return err
	}
	return validate.Activity(*a)
}

// allSet reports every field as set.
func allSet(string) bool { return true }

func invalidActivity(err error) error {
	return fmt.Errorf("invalid activity: %w", err)
}
