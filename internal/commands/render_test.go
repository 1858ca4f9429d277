package commands

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hay-kot/huddle/internal/core/activity"
	"github.com/hay-kot/huddle/internal/core/registry"
)

func renderActivities() []activity.Activity {
	return []activity.Activity{
		{
			ID:          "a1",
			Title:       "Picnic",
			Description: "Bring **snacks**",
			Category:    "food",
			Date:        time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC),
			City:        "London",
			Venue:       "Hyde Park",
			IsHost:      true,
			IsGoing:     true,
			Attendees: []activity.Attendee{
				{Username: "bob", DisplayName: "Bob", IsHost: true},
				{Username: "tom", DisplayName: "Tom"},
			},
			Comments: []activity.Comment{
				{ID: "c1", Body: "see you there", Username: "tom", DisplayName: "Tom", CreatedAt: time.Date(2024, 5, 30, 9, 15, 0, 0, time.UTC)},
			},
		},
		{
			ID:       "a2",
			Title:    "Concert",
			Category: "music",
			Date:     time.Date(2024, 6, 2, 18, 30, 0, 0, time.UTC),
			City:     "London",
			Venue:    "O2",
			IsGoing:  true,
		},
	}
}

func TestRenderer_ActivityList(t *testing.T) {
	var buf bytes.Buffer
	r := newRenderer(&buf)

	acts := renderActivities()
	r.activityList([]registry.DateGroup{
		{Date: "2024-06-01", Activities: acts[:1]},
		{Date: "2024-06-02", Activities: acts[1:]},
	})

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	require.Len(t, lines, 5)

	assert.Equal(t, "Sat, 01 Jun 2024", lines[0])
	assert.Regexp(t, `^  12:00\s+Picnic\s+food\s+Hyde Park, London\s+hosting\s+a1$`, lines[1])
	assert.Empty(t, lines[2])
	assert.Equal(t, "Sun, 02 Jun 2024", lines[3])
	assert.Regexp(t, `^  18:30\s+Concert\s+music\s+O2, London\s+going\s+a2$`, lines[4])
}

func TestRenderer_Activity(t *testing.T) {
	var buf bytes.Buffer
	r := newRenderer(&buf)

	r.activity(renderActivities()[0])
	out := buf.String()

	assert.True(t, strings.HasPrefix(out, "Picnic\nfood · Sat, 01 Jun 2024 12:00 · Hyde Park, London\n"))
	assert.Contains(t, out, "Hosted by Bob  hosting\n")
	assert.Contains(t, out, "Bring **snacks**\n", "markdown is left as-is when not a terminal")
	assert.Contains(t, out, "Attendees (2)\n  • Bob (host)\n  • Tom\n")
	assert.Contains(t, out, "Comments (1)\n  2024-05-30 09:15 Tom: see you there\n")
}

func TestPlace(t *testing.T) {
	assert.Equal(t, "Hyde Park, London", place(activity.Activity{Venue: "Hyde Park", City: "London"}))
	assert.Equal(t, "London", place(activity.Activity{City: "London"}))
	assert.Equal(t, "Hyde Park", place(activity.Activity{Venue: "Hyde Park"}))
}

func TestDayHeading(t *testing.T) {
	assert.Equal(t, "Sat, 01 Jun 2024", dayHeading("2024-06-01"))
	assert.Equal(t, "someday", dayHeading("someday"))
}
