package tui

import (
	"sync"

	tea "github.com/charmbracelet/bubbletea"
)

// Navigator delivers API redirects to a running program as ReauthMsg.
// Redirects before Attach or after Detach are dropped.
type Navigator struct {
	mu      sync.Mutex
	program *tea.Program
}

// NewNavigator creates a detached navigator.
func NewNavigator() *Navigator {
	return &Navigator{}
}

// Attach starts forwarding redirects to p.
func (n *Navigator) Attach(p *tea.Program) {
	n.mu.Lock()
	n.program = p
	n.mu.Unlock()
}

// Detach stops forwarding.
func (n *Navigator) Detach() {
	n.Attach(nil)
}

// Redirect implements api.Navigator.
func (n *Navigator) Redirect(route string) {
	n.mu.Lock()
	p := n.program
	n.mu.Unlock()
	if p != nil {
		p.Send(ReauthMsg{Route: route})
	}
}
