// Package validate provides shared validation functions for user input.
package validate

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/hay-kot/criterio"

	"github.com/hay-kot/huddle/internal/core/activity"
)

// Categories lists the accepted activity categories.
var Categories = []string{"culture", "drinks", "film", "food", "music", "travel"}

// dateLayouts are tried in order by ParseDate.
var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04",
	"2006-01-02T15:04",
	"2006-01-02",
}

// Required checks that value is non-empty after trimming whitespace.
func Required(value string) error {
	if strings.TrimSpace(value) == "" {
		return fmt.Errorf("is required")
	}
	return nil
}

// ActivityID validates an activity id is non-empty and safe to use as a
// single URL path segment.
func ActivityID(id string) error {
	if err := Required(id); err != nil {
		return err
	}
	if strings.ContainsAny(id, "/ \t\n") {
		return fmt.Errorf("invalid id %q: must not contain slashes or whitespace", id)
	}
	return nil
}

// Category validates c is one of Categories.
func Category(c string) error {
	if !slices.Contains(Categories, c) {
		return fmt.Errorf("unknown category %q, expected one of %s", c, strings.Join(Categories, ", "))
	}
	return nil
}

// ParseDate parses a date given on the command line. Inputs without a zone
// are interpreted in loc.
func ParseDate(s string, loc *time.Location) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid date %q, expected YYYY-MM-DD or YYYY-MM-DD HH:MM", s)
}

// Activity checks the user-editable fields of a. The returned error is a
// criterio.FieldErrors.
func Activity(a activity.Activity) error {
	var errs criterio.FieldErrorsBuilder

	if a.ID != "" {
		if err := ActivityID(a.ID); err != nil {
			errs = errs.Append("id", err)
		}
	}
	if err := Required(a.Title); err != nil {
		errs = errs.Append("title", err)
	}
	if err := Required(a.Description); err != nil {
		errs = errs.Append("description", err)
	}
	if err := Category(a.Category); err != nil {
		errs = errs.Append("category", err)
	}
	if a.Date.IsZero() {
		errs = errs.Append("date", fmt.Errorf("is required"))
	}
	if err := Required(a.City); err != nil {
		errs = errs.Append("city", err)
	}
	if err := Required(a.Venue); err != nil {
		errs = errs.Append("venue", err)
	}

	return errs.ToError()
}
