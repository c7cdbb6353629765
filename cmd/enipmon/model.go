package main

import (
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

// model is the enipmon dashboard: a read-only poll loop over an enipd
// metrics listener, rendered as a single occupancy box.
type model struct {
	addr     string
	interval time.Duration

	latest   stats
	lastErr  error
	polled   int
	quitting bool
}

func newModel(addr string, interval time.Duration) model {
	return model{addr: addr, interval: interval}
}

func (m model) Init() tea.Cmd {
	return m.pollCmd()
}

type statsMsg struct {
	s   stats
	err error
}

type tickMsg time.Time

func (m model) pollCmd() tea.Cmd {
	return func() tea.Msg {
		s, err := fetchStats(m.addr, 2*time.Second)
		return statsMsg{s: s, err: err}
	}
}

func (m model) tickCmd() tea.Cmd {
	return tea.Tick(m.interval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			m.quitting = true
			return m, tea.Quit
		}
		return m, nil

	case statsMsg:
		m.polled++
		if msg.err != nil {
			m.lastErr = msg.err
		} else {
			m.lastErr = nil
			m.latest = msg.s
		}
		return m, m.tickCmd()

	case tickMsg:
		return m, m.pollCmd()
	}
	return m, nil
}

func (m model) View() string {
	if m.quitting {
		return ""
	}

	title := titleStyle.Render("enipmon") + labelStyle.Render(" — "+m.addr)

	var body string
	if m.lastErr != nil {
		body = errorStyle.Render(fmt.Sprintf("unreachable: %v", m.lastErr))
	} else {
		body = fmt.Sprintf(
			"%s %s\n%s %s\n%s %s\n%s %s\n%s %s",
			labelStyle.Render("sessions:"), valueStyle.Render(fmt.Sprintf("%d / %d", m.latest.sessions, m.latest.sessionCapacity)),
			labelStyle.Render("connections:"), valueStyle.Render(fmt.Sprintf("%d", m.latest.connections)),
			labelStyle.Render("delayed replies:"), valueStyle.Render(fmt.Sprintf("%d / %d", m.latest.delayedReplies, m.latest.delayedCapacity)),
			labelStyle.Render("ticks processed:"), valueStyle.Render(fmt.Sprintf("%d", m.latest.ticksProcessed)),
			labelStyle.Render("polls:"), okStyle.Render(fmt.Sprintf("%d", m.polled)),
		)
	}

	footer := labelStyle.Render("q to quit")

	return boxStyle.Render(title + "\n\n" + body + "\n\n" + footer)
}
