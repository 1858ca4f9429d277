// Package styles provides shared lipgloss styles for CLI output.
package styles

import (
	"github.com/charmbracelet/lipgloss"
)

// Tokyo Night color palette.
var (
	ColorGreen  = lipgloss.Color("#9ece6a")
	ColorYellow = lipgloss.Color("#e0af68")
	ColorBlue   = lipgloss.Color("#7aa2f7")
	ColorPurple = lipgloss.Color("#bb9af7")
	ColorGray   = lipgloss.Color("#565f89")
	ColorWhite  = lipgloss.Color("#c0caf5")
)

// Banner ASCII art for the chat header.
const Banner = `
 ╦ ╦╦ ╦╔╦╗╔╦╗╦  ╔═╗
 ╠═╣║ ║ ║║ ║║║  ║╣
 ╩ ╩╚═╝═╩╝═╩╝╩═╝╚═╝`

// BannerStyle styles the ASCII art banner.
var BannerStyle = lipgloss.NewStyle().
	Foreground(ColorBlue).
	Bold(true)

// DateHeaderStyle styles the day headings of grouped activity lists.
var DateHeaderStyle = lipgloss.NewStyle().
	Foreground(ColorBlue).
	Bold(true)

// TitleStyle styles activity titles.
var TitleStyle = lipgloss.NewStyle().
	Foreground(ColorWhite).
	Bold(true)

// CategoryStyle styles activity categories.
var CategoryStyle = lipgloss.NewStyle().
	Foreground(ColorPurple)

// MutedStyle styles secondary details such as venue and timestamps.
var MutedStyle = lipgloss.NewStyle().
	Foreground(ColorGray)

// HostBadgeStyle marks activities hosted by the current user.
var HostBadgeStyle = lipgloss.NewStyle().
	Foreground(ColorYellow).
	Bold(true)

// GoingBadgeStyle marks activities the current user attends.
var GoingBadgeStyle = lipgloss.NewStyle().
	Foreground(ColorGreen)

// AuthorStyle styles comment authors.
var AuthorStyle = lipgloss.NewStyle().
	Foreground(ColorBlue)

// DividerStyle styles horizontal dividers.
var DividerStyle = lipgloss.NewStyle().
	Foreground(ColorGray)
