package commands

import (
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"

	"github.com/hay-kot/huddle/internal/core/activity"
	"github.com/hay-kot/huddle/internal/core/registry"
	"github.com/hay-kot/huddle/internal/printer"
	"github.com/hay-kot/huddle/internal/styles"
)

const (
	defaultWidth = 80
	dayFormat    = "Mon, 02 Jan 2006"
	timeFormat   = "15:04"
	stampFormat  = "2006-01-02 15:04"
)

// renderer writes activities to a writer, styling them only when the
// writer is a terminal.
type renderer struct {
	w     io.Writer
	tty   bool
	width int
}

func newRenderer(w io.Writer) *renderer {
	r := &renderer{w: w, tty: printer.IsTerminal(w), width: defaultWidth}
	if f, ok := w.(*os.File); ok && r.tty {
		if cols, _, err := term.GetSize(int(f.Fd())); err == nil && cols > 0 {
			r.width = cols
		}
	}
	return r
}

func (r *renderer) style(s lipgloss.Style, text string) string {
	if !r.tty {
		return text
	}
	return s.Render(text)
}

// activityList prints activities grouped under a heading per day.
func (r *renderer) activityList(groups []registry.DateGroup) {
	for i, g := range groups {
		if i > 0 {
			_, _ = fmt.Fprintln(r.w)
		}
		_, _ = fmt.Fprintln(r.w, r.style(styles.DateHeaderStyle, dayHeading(g.Date)))

		tw := tabwriter.NewWriter(r.w, 0, 0, 2, ' ', 0)
		for _, a := range g.Activities {
			_, _ = fmt.Fprintf(tw, "  %s\t%s\t%s\t%s\t%s\t%s\n",
				a.Date.Format(timeFormat),
				r.style(styles.TitleStyle, a.Title),
				r.style(styles.CategoryStyle, a.Category),
				place(a),
				r.badge(a),
				r.style(styles.MutedStyle, a.ID),
			)
		}
		_ = tw.Flush()
	}
}

// activity prints the detail view of a.
func (r *renderer) activity(a activity.Activity) {
	_, _ = fmt.Fprintln(r.w, r.style(styles.TitleStyle, a.Title))
	_, _ = fmt.Fprintf(r.w, "%s · %s · %s\n",
		r.style(styles.CategoryStyle, a.Category),
		a.Date.Format(dayFormat+" "+timeFormat),
		place(a),
	)

	hostLine := "No host"
	if host, ok := a.Host(); ok {
		hostLine = "Hosted by " + host.DisplayName
	}
	if badge := r.badge(a); badge != "" {
		hostLine += "  " + badge
	}
	_, _ = fmt.Fprintln(r.w, r.style(styles.MutedStyle, hostLine))

	if a.Description != "" {
		_, _ = fmt.Fprintln(r.w)
		_, _ = fmt.Fprintln(r.w, r.markdown(a.Description))
	}

	_, _ = fmt.Fprintln(r.w)
	_, _ = fmt.Fprintf(r.w, "Attendees (%d)\n", len(a.Attendees))
	for _, at := range a.Attendees {
		line := "  " + printer.Dot + " " + at.DisplayName
		if at.IsHost {
			line += " " + r.style(styles.HostBadgeStyle, "(host)")
		}
		_, _ = fmt.Fprintln(r.w, line)
	}

	_, _ = fmt.Fprintln(r.w)
	_, _ = fmt.Fprintf(r.w, "Comments (%d)\n", len(a.Comments))
	for _, c := range a.Comments {
		r.comment(c)
	}
}

// comment prints a single comment line.
func (r *renderer) comment(c activity.Comment) {
	name := c.DisplayName
	if name == "" {
		name = c.Username
	}
	_, _ = fmt.Fprintf(r.w, "  %s %s: %s\n",
		r.style(styles.MutedStyle, c.CreatedAt.Format(stampFormat)),
		r.style(styles.AuthorStyle, name),
		c.Body,
	)
}

func (r *renderer) divider() {
	_, _ = fmt.Fprintln(r.w, r.style(styles.DividerStyle, strings.Repeat("─", min(r.width, defaultWidth))))
}

func (r *renderer) badge(a activity.Activity) string {
	switch {
	case a.IsHost:
		return r.style(styles.HostBadgeStyle, "hosting")
	case a.IsGoing:
		return r.style(styles.GoingBadgeStyle, "going")
	default:
		return ""
	}
}

// markdown renders text with glamour on a terminal and returns it unchanged
// otherwise.
func (r *renderer) markdown(text string) string {
	if !r.tty {
		return text
	}

	md, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle("tokyo-night"),
		glamour.WithWordWrap(min(r.width, defaultWidth)),
	)
	if err != nil {
		return text
	}

	rendered, err := md.Render(text)
	if err != nil {
		return text
	}
	return strings.Trim(rendered, "\n")
}

func place(a activity.Activity) string {
	switch {
	case a.Venue != "" && a.City != "":
		return a.Venue + ", " + a.City
	case a.Venue != "":
		return a.Venue
	default:
		return a.City
	}
}

// dayHeading formats a registry day key for display.
func dayHeading(day string) string {
	t, err := time.Parse("2006-01-02", day)
	if err != nil {
		return day
	}
	return t.Format(dayFormat)
}
