// Package tui renders the interactive room dashboard.
package tui

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/roomlink/bridge-client/internal/bridge"
)

const maxEvents = 8

type (
	statusMsg bridge.ConnectionState
	stateMsg  map[string]any
	tickMsg   time.Time
)

type event struct {
	at   time.Time
	text string
}

// App is the dashboard model
type App struct {
	manager *bridge.Manager
	theme   *Theme
	keys    KeyMap
	spinner spinner.Model

	status bridge.ConnectionState
	snap   map[string]any
	health bridge.HealthSnapshot
	comps  []bridge.ComponentRecord
	roles  map[string]string
	events []event

	width    int
	quitting bool
}

func newApp(m *bridge.Manager) *App {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = DefaultTheme.Spinner

	return &App{
		manager: m,
		theme:   DefaultTheme,
		keys:    DefaultKeyMap,
		spinner: sp,
		status:  m.State(),
		roles:   map[string]string{},
		width:   80,
	}
}

// Run starts the dashboard against an already-built manager and drives
// the connection in the background.
func Run(m *bridge.Manager) error {
	app := newApp(m)
	p := tea.NewProgram(app, tea.WithAltScreen())

	m.OnStatusChange(func(s bridge.ConnectionState) {
		p.Send(statusMsg(s))
	})
	m.OnStateChange(func(snap map[string]any) {
		p.Send(stateMsg(snap))
	})
	go m.ConnectWithRetry(m.ReconnectPolicy())

	_, err := p.Run()
	return err
}

func tick() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (a *App) Init() tea.Cmd {
	return tea.Batch(a.spinner.Tick, tick())
}

func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.width = msg.Width
		return a, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, a.keys.Quit):
			a.quitting = true
			return a, tea.Quit
		case key.Matches(msg, a.keys.Reconnect):
			a.addEvent("manual reconnect requested")
			go a.manager.Reconnect()
			return a, nil
		case key.Matches(msg, a.keys.Refresh):
			go a.manager.GetState()
			return a, nil
		}
		return a, nil

	case statusMsg:
		a.status = bridge.ConnectionState(msg)
		a.addEvent("connection " + a.status.String())
		a.refresh()
		return a, nil

	case stateMsg:
		a.snap = map[string]any(msg)
		return a, nil

	case tickMsg:
		a.refresh()
		return a, tick()

	case spinner.TickMsg:
		var cmd tea.Cmd
		a.spinner, cmd = a.spinner.Update(msg)
		return a, cmd
	}
	return a, nil
}

// refresh pulls the manager-side snapshots the render reads from.
func (a *App) refresh() {
	a.health = a.manager.Health()
	a.comps = a.manager.Components()
	a.roles = a.manager.Roles()
}

func (a *App) addEvent(text string) {
	a.events = append(a.events, event{at: time.Now(), text: text})
	if len(a.events) > maxEvents {
		a.events = a.events[len(a.events)-maxEvents:]
	}
}

func (a *App) View() string {
	if a.quitting {
		return ""
	}

	var b strings.Builder
	b.WriteString(a.renderHeader())
	b.WriteString("\n")
	b.WriteString(a.renderStatus())
	b.WriteString("\n")
	b.WriteString(a.renderComponents())
	b.WriteString("\n")
	b.WriteString(a.renderState())
	b.WriteString("\n")
	b.WriteString(a.renderEvents())
	b.WriteString("\n")
	b.WriteString(a.renderFooter())
	return b.String()
}

func (a *App) renderHeader() string {
	logo := a.theme.Logo.Render("room") + a.theme.LogoDot.Render("link")
	return logo + "  " + a.theme.ValueMuted.Render("room control gateway")
}

func (a *App) renderStatus() string {
	t := a.theme

	healthy := a.status == bridge.Ready || a.status == bridge.Degraded
	var state string
	switch a.status {
	case bridge.Ready:
		state = t.StatusSuccess.Render(a.status.String())
	case bridge.Degraded:
		state = t.StatusWarning.Render(a.status.String())
	case bridge.Disconnected:
		state = t.StatusError.Render(a.status.String())
	default:
		state = a.spinner.View() + t.StatusInfo.Render(a.status.String())
	}

	lines := []string{StatusDot(healthy) + " " + state}

	if id := a.manager.Identity(); id != nil {
		lines = append(lines,
			t.Label.Render("session ")+t.Value.Render(id.SessionID),
			t.Label.Render("uptime  ")+t.Value.Render(time.Since(id.ConnectedAt).Round(time.Second).String()),
		)
	}
	lines = append(lines,
		t.Label.Render("latency ")+t.Value.Render(a.health.AverageLatency.Round(time.Millisecond).String()),
		t.Label.Render("missed  ")+t.Value.Render(fmt.Sprintf("%d/%d pongs", a.health.ConsecutiveMissedPongs, a.health.MaxMissedPongs)),
	)

	return t.Panel.Render(strings.Join(lines, "\n"))
}

func (a *App) renderComponents() string {
	t := a.theme

	lines := []string{t.Title.Render(fmt.Sprintf("Components (%d)", len(a.comps)))}
	if len(a.comps) == 0 {
		lines = append(lines, t.ValueMuted.Render("none discovered"))
	} else {
		lines = append(lines, t.TableHeader.Render(fmt.Sprintf("%-24s %-20s %s", "NAME", "ID", "CONTROLS")))
		for _, c := range a.comps {
			row := fmt.Sprintf("%-24s %-20s %d", truncate(c.DisplayName, 24), truncate(c.ID, 20), len(c.Controls))
			lines = append(lines, t.TableRow.Render(row))
		}
	}

	if len(a.roles) > 0 {
		roles := make([]string, 0, len(a.roles))
		for role, id := range a.roles {
			roles = append(roles, role+"→"+id)
		}
		sort.Strings(roles)
		lines = append(lines, t.ValueMuted.Render("roles: "+strings.Join(roles, "  ")))
	}

	return t.Panel.Render(strings.Join(lines, "\n"))
}

func (a *App) renderState() string {
	t := a.theme

	lines := []string{t.Title.Render("Room State")}
	if len(a.snap) == 0 {
		lines = append(lines, t.ValueMuted.Render("no updates yet"))
	} else {
		keys := make([]string, 0, len(a.snap))
		for k := range a.snap {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			lines = append(lines, t.Label.Render(fmt.Sprintf("%-18s", k))+t.Value.Render(formatValue(a.snap[k])))
		}
		if age := a.manager.StateAge(); age < time.Hour {
			lines = append(lines, t.ValueMuted.Render("updated "+age.Round(time.Second).String()+" ago"))
		}
	}
	return t.Panel.Render(strings.Join(lines, "\n"))
}

func (a *App) renderEvents() string {
	t := a.theme

	lines := []string{t.Title.Render("Events")}
	if len(a.events) == 0 {
		lines = append(lines, t.ValueMuted.Render("quiet so far"))
	}
	for i := len(a.events) - 1; i >= 0; i-- {
		ev := a.events[i]
		lines = append(lines, t.EventTime.Render(ev.at.Format("15:04:05"))+t.EventText.Render(ev.text))
	}
	return t.Panel.Render(strings.Join(lines, "\n"))
}

func (a *App) renderFooter() string {
	return lipgloss.JoinHorizontal(lipgloss.Top,
		RenderKeyHelp("r", "reconnect"), "  ",
		RenderKeyHelp("s", "refresh"), "  ",
		RenderKeyHelp("q", "quit"),
	)
}

func formatValue(v any) string {
	switch v := v.(type) {
	case []any:
		if len(v) == 0 {
			return "(none)"
		}
		parts := make([]string, len(v))
		for i, p := range v {
			parts[i] = fmt.Sprintf("%v", p)
		}
		return strings.Join(parts, ", ")
	case float64:
		if v == float64(int64(v)) {
			return fmt.Sprintf("%d", int64(v))
		}
		return fmt.Sprintf("%.2f", v)
	default:
		return fmt.Sprintf("%v", v)
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	if n <= 1 {
		return s[:n]
	}
	return s[:n-1] + "…"
}
