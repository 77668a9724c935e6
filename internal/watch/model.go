package watch

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"

	"github.com/lox/holdemtables/internal/game"
	"github.com/lox/holdemtables/poker"
)

const maxHistory = 5

// DialFunc opens a watching connection. Replaced in tests.
type DialFunc func(ctx context.Context) (*Client, error)

type connectedMsg struct{ client *Client }

type disconnectedMsg struct{ err error }

// Model is the bubbletea model of the spectator view.
type Model struct {
	tableID string
	dial    DialFunc
	logger  *log.Logger

	spinner  spinner.Model
	client   *Client
	snap     *game.Snapshot
	tick     int
	history  []string
	lastErr  string
	closed   error
	quitting bool
	width    int
}

// NewModel creates a spectator for tableID that connects with dial.
func NewModel(tableID string, dial DialFunc, logger *log.Logger) *Model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("#7D56F4"))

	return &Model{
		tableID: tableID,
		dial:    dial,
		logger:  logger.WithPrefix("watch"),
		spinner: sp,
		tick:    -1,
	}
}

// Init starts connecting.
func (m *Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.connect())
}

func (m *Model) connect() tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		client, err := m.dial(ctx)
		if err != nil {
			return disconnectedMsg{err}
		}
		return connectedMsg{client}
	}
}

// next waits for the following server event.
func (m *Model) next() tea.Cmd {
	client := m.client
	return func() tea.Msg {
		ev, ok := <-client.Events()
		if !ok {
			return disconnectedMsg{client.Err()}
		}
		return ev
	}
}

// Update handles messages
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "esc", "q":
			m.quitting = true
			if m.client != nil {
				_ = m.client.Close()
			}
			return m, tea.Quit
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width

	case spinner.TickMsg:
		if m.client != nil {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case connectedMsg:
		m.client = msg.client
		m.logger.Debug("Connected", "table", m.tableID)
		return m, m.next()

	case disconnectedMsg:
		m.closed = msg.err
		if m.closed == nil {
			m.closed = fmt.Errorf("connection closed")
		}
		return m, tea.Quit

	case SnapshotEvent:
		snap := msg.Snapshot
		if m.snap == nil || m.snap.HandID != snap.HandID || m.snap.ActingPlayerID != snap.ActingPlayerID {
			m.tick = -1
		}
		m.snap = &snap
		return m, m.next()

	case TickEvent:
		m.tick = msg.Tick.SecondsRemaining
		return m, m.next()

	case ResultEvent:
		m.history = append(m.history, describeResult(msg.Result))
		if len(m.history) > maxHistory {
			m.history = m.history[len(m.history)-maxHistory:]
		}
		return m, m.next()

	case ErrorEvent:
		m.lastErr = msg.Err.Code + ": " + msg.Err.Message
		return m, m.next()
	}
	return m, nil
}

// View renders the spectator screen
func (m *Model) View() string {
	if m.quitting {
		return ""
	}
	if m.closed != nil && m.snap == nil {
		return ErrorStyle.Render("Disconnected: "+m.closed.Error()) + "\n"
	}
	if m.snap == nil {
		return fmt.Sprintf("%s Watching table %s...\n", m.spinner.View(), m.tableID)
	}

	var b strings.Builder
	b.WriteString(RenderTable(*m.snap, m.tick))
	if len(m.history) > 0 {
		b.WriteString("\n")
		b.WriteString(InfoStyle.Render("Recent hands"))
		b.WriteString("\n")
		for _, line := range m.history {
			b.WriteString("  " + line + "\n")
		}
	}
	if m.lastErr != "" {
		b.WriteString(ErrorStyle.Render(m.lastErr) + "\n")
	}
	if m.closed != nil {
		b.WriteString(ErrorStyle.Render("Disconnected: "+m.closed.Error()) + "\n")
	}
	b.WriteString(InfoStyle.Render("q to quit") + "\n")
	return b.String()
}

// Err returns why the connection ended, if it has.
func (m *Model) Err() error { return m.closed }

// RenderTable draws a snapshot. tick is the acting player's remaining
// seconds, or negative when unknown.
func RenderTable(s game.Snapshot, tick int) string {
	var b strings.Builder

	header := fmt.Sprintf("Table %s  %d/%d", s.TableID, s.SmallBlind, s.BigBlind)
	if s.HandNumber > 0 {
		header += fmt.Sprintf("  hand #%d", s.HandNumber)
	}
	b.WriteString(HeaderStyle.Render(header))
	b.WriteString("\n")

	board := make([]string, 0, 5)
	for _, c := range s.Board {
		board = append(board, renderCard(c.String()))
	}
	for len(board) < 5 {
		board = append(board, HiddenCardStyle.Render("--"))
	}
	status := fmt.Sprintf("%s  %s", strings.ToUpper(s.Phase.String()), PotStyle.Render(fmt.Sprintf("Pot: %d", s.Pot)))
	b.WriteString(BoardStyle.Render(strings.Join(board, " ") + "\n" + status))
	b.WriteString("\n")

	for i, seat := range s.Seats {
		marker := "  "
		if i == s.Button {
			marker = "D "
		}
		cards := make([]string, len(seat.HoleCards))
		for j, c := range seat.HoleCards {
			cards[j] = renderCard(c)
		}
		line := fmt.Sprintf("%s%-12s %6d", marker, seat.Name, seat.Stack)
		if seat.Wager > 0 {
			line += fmt.Sprintf("  bet %d", seat.Wager)
		}
		if len(cards) > 0 {
			line += "  " + strings.Join(cards, " ")
		}

		switch {
		case seat.Folded:
			line = FoldedStyle.Render(line)
		case i == s.Acting:
			if tick >= 0 {
				line += fmt.Sprintf("  %ds", tick)
			}
			line = ActingStyle.Render(line + "  <")
		}
		var flags []string
		if seat.AllIn {
			flags = append(flags, "all-in")
		}
		if seat.Disconnected {
			flags = append(flags, "away")
		}
		if len(flags) > 0 {
			line += InfoStyle.Render(" (" + strings.Join(flags, ", ") + ")")
		}
		b.WriteString(line)
		b.WriteString("\n")
	}

	for _, w := range s.LastWinners {
		b.WriteString(WinnerStyle.Render(describeWinner(w)))
		b.WriteString("\n")
	}
	return b.String()
}

func renderCard(s string) string {
	if s == game.HiddenCard {
		return HiddenCardStyle.Render(s)
	}
	c, err := poker.ParseCard(s)
	if err != nil {
		return s
	}
	if c.Suit() == poker.Hearts || c.Suit() == poker.Diamonds {
		return RedCardStyle.Render(s)
	}
	return BlackCardStyle.Render(s)
}

func describeWinner(w game.Winner) string {
	if w.Hand != "" {
		return fmt.Sprintf("%s wins %d with %s", w.Name, w.Amount, w.Hand)
	}
	return fmt.Sprintf("%s wins %d", w.Name, w.Amount)
}

func describeResult(r game.HandResult) string {
	if r.Abandoned {
		return fmt.Sprintf("#%d abandoned, bets returned", r.HandNumber)
	}
	parts := make([]string, 0, len(r.Winners))
	for _, w := range r.Winners {
		parts = append(parts, describeWinner(w))
	}
	return fmt.Sprintf("#%d %s", r.HandNumber, strings.Join(parts, "; "))
}
