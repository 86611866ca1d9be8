package dashboard

import (
	"context"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/quickbite/api/internal/client"
	"github.com/quickbite/api/internal/enum"
)

var (
	titleStyle    = lipgloss.NewStyle().Bold(true)
	activeTab     = lipgloss.NewStyle().Bold(true).Underline(true)
	inactiveTab   = lipgloss.NewStyle().Faint(true)
	selectedRow   = lipgloss.NewStyle().Reverse(true)
	faintStyle    = lipgloss.NewStyle().Faint(true)
	errorStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	statusColours = map[enum.OrderStatus]lipgloss.Style{
		enum.OrderStatusPending:   lipgloss.NewStyle().Foreground(lipgloss.Color("11")),
		enum.OrderStatusPreparing: lipgloss.NewStyle().Foreground(lipgloss.Color("12")),
		enum.OrderStatusReady:     lipgloss.NewStyle().Foreground(lipgloss.Color("10")),
		enum.OrderStatusCompleted: lipgloss.NewStyle().Faint(true),
	}
)

// updatedMsg is delivered whenever the dashboard list may have changed.
type updatedMsg struct{}

// actionMsg reports the outcome of a key-triggered action.
type actionMsg struct {
	text string
	err  error
}

// Model is the bubbletea model for the staff dashboard.
type Model struct {
	ctx     context.Context
	dash    *Dashboard
	updates <-chan struct{}

	cursor  int
	width   int
	message string
	msgErr  bool
}

// NewModel creates the TUI model. updates signals that the dashboard was
// refreshed in the background; it may be nil.
func NewModel(ctx context.Context, d *Dashboard, updates <-chan struct{}) Model {
	return Model{ctx: ctx, dash: d, updates: updates, width: 80}
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.refresh(), waitForUpdate(m.updates))
}

func waitForUpdate(updates <-chan struct{}) tea.Cmd {
	if updates == nil {
		return nil
	}
	return func() tea.Msg {
		if _, ok := <-updates; !ok {
			return nil
		}
		return updatedMsg{}
	}
}

func (m Model) refresh() tea.Cmd {
	return func() tea.Msg {
		if err := m.dash.Refresh(m.ctx); err != nil {
			return actionMsg{err: err}
		}
		return actionMsg{text: "refreshed"}
	}
}

func (m Model) advance(o client.Order) tea.Cmd {
	return func() tea.Msg {
		updated, err := m.dash.Advance(m.ctx, o.ID)
		if err != nil {
			return actionMsg{err: fmt.Errorf("%s: %w", o.Token, err)}
		}
		return actionMsg{text: fmt.Sprintf("%s → %s", updated.Token, updated.Status)}
	}
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil

	case updatedMsg:
		m.clampCursor()
		return m, waitForUpdate(m.updates)

	case actionMsg:
		m.clampCursor()
		if msg.err != nil {
			m.message, m.msgErr = msg.err.Error(), true
		} else {
			m.message, m.msgErr = msg.text, false
		}
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case "tab":
			m.dash.SetFilter(m.dash.Filter().Next())
			m.cursor = 0
		case "up", "k":
			if m.cursor > 0 {
				m.cursor--
			}
		case "down", "j":
			if m.cursor < len(m.rows())-1 {
				m.cursor++
			}
		case "r":
			return m, m.refresh()
		case "enter":
			rows := m.rows()
			if m.cursor < len(rows) {
				return m, m.advance(rows[m.cursor])
			}
		}
	}
	return m, nil
}

// rows is the display order: grouped by status under the all filter,
// newest first otherwise.
func (m Model) rows() []client.Order {
	orders := m.dash.Orders()
	if m.dash.Filter() != FilterAll {
		return orders
	}
	rows := make([]client.Order, 0, len(orders))
	for _, g := range GroupByStatus(orders) {
		rows = append(rows, g.Orders...)
	}
	return rows
}

func (m *Model) clampCursor() {
	n := len(m.rows())
	if m.cursor >= n {
		m.cursor = n - 1
	}
	if m.cursor < 0 {
		m.cursor = 0
	}
}

// View implements tea.Model.
func (m Model) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("QuickBite · " + m.dash.Location().DisplayName()))
	b.WriteString("\n")

	counts := m.dash.Counts()
	b.WriteString(fmt.Sprintf("%d pending  %d preparing  %d ready\n\n",
		counts[enum.OrderStatusPending], counts[enum.OrderStatusPreparing], counts[enum.OrderStatusReady]))

	tabs := make([]string, 0, len(Filters))
	for _, f := range Filters {
		label := string(f)
		if f == m.dash.Filter() {
			tabs = append(tabs, activeTab.Render(label))
		} else {
			tabs = append(tabs, inactiveTab.Render(label))
		}
	}
	b.WriteString(strings.Join(tabs, "  "))
	b.WriteString("\n\n")

	orders := m.dash.Orders()
	if len(orders) == 0 {
		b.WriteString(faintStyle.Render("No orders"))
		b.WriteString("\n")
	}
	groups := []Group{{Orders: orders}}
	if m.dash.Filter() == FilterAll {
		groups = GroupByStatus(orders)
	}
	i := 0
	for _, g := range groups {
		if g.Status != "" {
			b.WriteString(faintStyle.Render(fmt.Sprintf("%s (%d)", g.Status, len(g.Orders))))
			b.WriteString("\n")
		}
		for _, o := range g.Orders {
			row := renderRow(o)
			if i == m.cursor {
				row = selectedRow.Render(row)
			}
			b.WriteString(row)
			b.WriteString("\n")
			i++
		}
	}

	b.WriteString("\n")
	if m.message != "" {
		if m.msgErr {
			b.WriteString(errorStyle.Render(m.message))
		} else {
			b.WriteString(m.message)
		}
		b.WriteString("\n")
	}
	if err := m.dash.Err(); err != nil {
		b.WriteString(errorStyle.Render("refresh failed: " + err.Error()))
		b.WriteString("\n")
	}
	footer := "tab filter  ↑/↓ select  enter advance  r refresh  q quit"
	if last := m.dash.LastRefresh(); !last.IsZero() {
		footer = "updated " + last.Format("15:04:05") + "  " + footer
	}
	b.WriteString(faintStyle.Render(footer))
	return b.String()
}

func renderRow(o client.Order) string {
	table := "-"
	if o.TableNumber != nil && *o.TableNumber != "" {
		table = *o.TableNumber
	}
	status := string(o.Status)
	if st, ok := statusColours[o.Status]; ok {
		status = st.Render(fmt.Sprintf("%-9s", o.Status))
	}
	return fmt.Sprintf("%-8s %-16s %-4s %s %8s  %s",
		o.Token, truncate(o.ClientName, 16), table, status,
		o.TotalAmount.StringFixed(2), age(o.CreatedAt))
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

func age(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	d := time.Since(t).Round(time.Minute)
	if d < time.Minute {
		return "just now"
	}
	return d.String() + " ago"
}
