package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	keyStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#98FB98"))

	kindStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#87CEEB"))

	selectedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666"))
)

type modelState int

const (
	stateBrowse modelState = iota
	stateFilter
	stateDetail
)

// chrome is the number of lines the list view uses besides the list
const chrome = 6

type inspectModel struct {
	roots    []string
	nodes    []nodeInfo
	visible  []int
	filter   textinput.Model
	selected int
	offset   int
	height   int
	state    modelState
}

func newInspectModel(roots []string, nodes []nodeInfo) *inspectModel {
	ti := textinput.New()
	ti.Prompt = "/"
	ti.Placeholder = "filter by name"
	ti.Width = 40
	m := &inspectModel{
		roots:  roots,
		nodes:  nodes,
		filter: ti,
		height: 24,
		state:  stateBrowse,
	}
	m.applyFilter()
	return m
}

func (m *inspectModel) Init() tea.Cmd {
	return nil
}

func (m *inspectModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.height = msg.Height
		m.scroll()
		return m, nil

	case tea.KeyMsg:
		if m.state == stateFilter {
			return m.updateFilter(msg)
		}
		switch msg.String() {
		case "ctrl+c", "q":
			return m, tea.Quit

		case "up", "k":
			if m.state == stateBrowse && m.selected > 0 {
				m.selected--
			}

		case "down", "j":
			if m.state == stateBrowse && m.selected < len(m.visible)-1 {
				m.selected++
			}

		case "pgup":
			if m.state == stateBrowse {
				m.selected = max(0, m.selected-m.page())
			}

		case "pgdown":
			if m.state == stateBrowse {
				m.selected = max(0, min(len(m.visible)-1, m.selected+m.page()))
			}

		case "/":
			if m.state == stateBrowse {
				m.state = stateFilter
				return m, m.filter.Focus()
			}

		case "enter":
			switch m.state {
			case stateBrowse:
				if len(m.visible) > 0 {
					m.state = stateDetail
				}
			case stateDetail:
				m.state = stateBrowse
			}

		case "esc", "backspace":
			if m.state == stateDetail {
				m.state = stateBrowse
			}
		}
		m.scroll()
	}
	return m, nil
}

func (m *inspectModel) updateFilter(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c":
		return m, tea.Quit
	case "enter":
		m.filter.Blur()
		m.state = stateBrowse
		return m, nil
	case "esc":
		m.filter.Blur()
		m.filter.SetValue("")
		m.applyFilter()
		m.state = stateBrowse
		return m, nil
	}
	var cmd tea.Cmd
	m.filter, cmd = m.filter.Update(msg)
	m.applyFilter()
	return m, cmd
}

// applyFilter keeps the nodes whose key contains the filter text
func (m *inspectModel) applyFilter() {
	q := strings.ToLower(m.filter.Value())
	m.visible = m.visible[:0]
	for i, n := range m.nodes {
		if q == "" || strings.Contains(strings.ToLower(n.key), q) {
			m.visible = append(m.visible, i)
		}
	}
	m.selected = 0
	m.offset = 0
}

func (m *inspectModel) page() int {
	return max(1, m.height-chrome)
}

// scroll keeps the selection inside the visible window
func (m *inspectModel) scroll() {
	if m.selected < m.offset {
		m.offset = m.selected
	}
	if m.selected >= m.offset+m.page() {
		m.offset = m.selected - m.page() + 1
	}
}

func (m *inspectModel) current() (nodeInfo, bool) {
	if m.selected >= len(m.visible) {
		return nodeInfo{}, false
	}
	return m.nodes[m.visible[m.selected]], true
}

func (m *inspectModel) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("winrt-bindgen"))
	b.WriteString(" ")
	b.WriteString(strings.Join(m.roots, ", "))
	b.WriteString("\n\n")

	if m.state == stateDetail {
		if n, ok := m.current(); ok {
			m.viewDetail(&b, n)
		}
		b.WriteString("\n")
		b.WriteString(helpStyle.Render("enter/esc back • q quit"))
		return b.String()
	}

	if m.state == stateFilter || m.filter.Value() != "" {
		b.WriteString(m.filter.View())
	}
	b.WriteString(fmt.Sprintf("  %d of %d nodes\n\n", len(m.visible), len(m.nodes)))

	end := min(len(m.visible), m.offset+m.page())
	for i := m.offset; i < end; i++ {
		line := m.formatNode(m.nodes[m.visible[i]])
		if i == m.selected {
			b.WriteString(selectedStyle.Render("> " + line))
		} else {
			b.WriteString("  " + line)
		}
		b.WriteString("\n")
	}
	b.WriteString("\n")
	if m.state == stateFilter {
		b.WriteString(helpStyle.Render("enter apply • esc clear"))
	} else {
		b.WriteString(helpStyle.Render("↑/↓ select • / filter • enter details • q quit"))
	}
	return b.String()
}

func (m *inspectModel) viewDetail(b *strings.Builder, n nodeInfo) {
	b.WriteString(keyStyle.Render(n.key))
	b.WriteString(" ")
	b.WriteString(kindStyle.Render(n.kind))
	b.WriteString("\n\n")
	fmt.Fprintf(b, "state:    %s\n", n.state)
	fmt.Fprintf(b, "exported: %t\n", n.exported)
	if n.pkg != "" {
		fmt.Fprintf(b, "binding:  %s\n", n.pkg)
	}
	if n.iid != "" {
		fmt.Fprintf(b, "iid:      %s\n", n.iid)
	}
	section := func(title string, lines []string) {
		if len(lines) == 0 {
			return
		}
		fmt.Fprintf(b, "\n%s:\n", title)
		for _, l := range lines {
			b.WriteString("  " + l + "\n")
		}
	}
	section("members", n.members)
	section("references", n.edges)
	for _, e := range n.errs {
		b.WriteString(errorStyle.Render("! "+e) + "\n")
	}
}

func (m *inspectModel) formatNode(n nodeInfo) string {
	key := keyStyle.Render(n.key)
	if n.rejected {
		key = errorStyle.Render(n.key)
	}
	if n.root {
		key += " *"
	}
	return key + " " + kindStyle.Render(n.kind)
}

func runInteractive(roots []string, nodes []nodeInfo) error {
	p := tea.NewProgram(newInspectModel(roots, nodes), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
