// Package tui renders the panel in a terminal with Bubble Tea.
package tui

import (
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/yegors/overhead/internal/display"
	"github.com/yegors/overhead/internal/flight"
)

type panelMsg display.Panel

var (
	frameStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("75")).
			Padding(1, 3).
			Width(48).
			Align(lipgloss.Center)
	titleStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("255"))
	subtitleStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("246"))
	routeStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("86"))
	labelStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	valueStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("255"))
	helpStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	overrideStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("214")).Bold(true)
)

// badgeColors follows the panel palette: blue commercial, green private, red military
var badgeColors = map[flight.OpClass]lipgloss.Color{
	flight.OpCommercial: lipgloss.Color("33"),
	flight.OpPrivate:    lipgloss.Color("42"),
	flight.OpMilitary:   lipgloss.Color("196"),
}

// Model is the Bubble Tea model holding the panel on screen
type Model struct {
	panel display.Panel
}

// NewModel starts with the connecting splash
func NewModel() Model {
	return Model{panel: display.SplashPanel("Connecting...", "")}
}

// Init implements tea.Model
func (m Model) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		}
	case panelMsg:
		m.panel = display.Panel(msg)
	}
	return m, nil
}

// View implements tea.Model
func (m Model) View() string {
	p := m.panel
	var b strings.Builder

	if color, ok := badgeColors[p.OpClass]; ok {
		badge := lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("0")).
			Background(color).
			Padding(0, 1).
			Render(string(p.OpClass))
		b.WriteString(badge)
		b.WriteString("\n\n")
	}

	b.WriteString(titleStyle.Render(p.Title))
	b.WriteString("\n")
	if p.Subtitle != "" {
		b.WriteString(subtitleStyle.Render(p.Subtitle))
		b.WriteString("\n")
	}
	b.WriteString("\n")
	b.WriteString(routeStyle.Render(p.Route))
	b.WriteString("\n\n")

	cells := make([]string, 0, len(p.Metrics))
	for _, metric := range p.Metrics {
		cells = append(cells, lipgloss.JoinVertical(lipgloss.Center,
			valueStyle.Render(metric.Value),
			labelStyle.Render(metric.Label)))
	}
	b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, spaced(cells)...))

	if p.Override {
		b.WriteString("\n\n")
		b.WriteString(overrideStyle.Render("TEST OVERRIDE"))
	}

	return frameStyle.Render(b.String()) + "\n" + helpStyle.Render("q: quit") + "\n"
}

func spaced(cells []string) []string {
	out := make([]string, 0, len(cells)*2)
	for i, c := range cells {
		if i > 0 {
			out = append(out, "   ")
		}
		out = append(out, c)
	}
	return out
}

// Renderer forwards panels to a running Bubble Tea program
type Renderer struct {
	program *tea.Program
}

// NewProgram creates the terminal program and a renderer feeding it
func NewProgram(opts ...tea.ProgramOption) (*tea.Program, *Renderer) {
	p := tea.NewProgram(NewModel(), opts...)
	return p, &Renderer{program: p}
}

// Render implements display.Renderer
func (r *Renderer) Render(_ flight.Flight, p display.Panel) {
	r.program.Send(panelMsg(p))
}

// RenderNoData implements display.Renderer
func (r *Renderer) RenderNoData(p display.Panel) {
	r.program.Send(panelMsg(p))
}

// RenderSplash implements display.Renderer
func (r *Renderer) RenderSplash(p display.Panel) {
	r.program.Send(panelMsg(p))
}
