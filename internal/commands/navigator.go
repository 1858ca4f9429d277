package commands

import "github.com/hay-kot/huddle/internal/printer"

// Navigator points the user at the show command for an activity that was
// just created or edited.
type Navigator struct {
	p *printer.Printer
}

func NewNavigator(p *printer.Printer) *Navigator {
	return &Navigator{p: p}
}

func (n *Navigator) ShowActivity(id string) {
	n.p.Infof("View it with 'huddle show %s'", id)
}
