package watch

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/log"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lox/holdemtables/internal/game"
	"github.com/lox/holdemtables/internal/server"
	"github.com/lox/holdemtables/poker"
)

func flopSnapshot() game.Snapshot {
	return game.Snapshot{
		TableID:        "main",
		HandNumber:     3,
		Phase:          game.Flop,
		SmallBlind:     5,
		BigBlind:       10,
		Board:          poker.MustParseCards("Ah 7c 2d"),
		Pot:            40,
		Button:         0,
		Acting:         1,
		ActingPlayerID: "bob",
		Seats: []game.SeatView{
			{PlayerID: "alice", Name: "alice", Stack: 80, HoleCards: []string{game.HiddenCard, game.HiddenCard}, InHand: true},
			{PlayerID: "bob", Name: "bob", Stack: 80, HoleCards: []string{game.HiddenCard, game.HiddenCard}, InHand: true},
			{PlayerID: "carol", Name: "carol", Stack: 100, Folded: true, Disconnected: true},
		},
	}
}

func TestRenderTable(t *testing.T) {
	t.Parallel()
	out := RenderTable(flopSnapshot(), 12)

	for _, want := range []string{"Table main", "5/10", "hand #3", "FLOP", "Pot: 40", "Ah", "7c", "2d", "alice", "??", "12s", "away"} {
		assert.Contains(t, out, want)
	}
	assert.Equal(t, 2, strings.Count(out, "--"), "two board cards still to come")
}

func TestRenderTableShowsWinners(t *testing.T) {
	t.Parallel()
	s := flopSnapshot()
	s.Phase = game.Showdown
	s.Acting = -1
	s.LastWinners = []game.Winner{{PlayerID: "bob", Name: "bob", Amount: 40, Hand: "Pair of Aces"}}

	out := RenderTable(s, -1)
	assert.Contains(t, out, "bob wins 40 with Pair of Aces")
	assert.NotContains(t, out, "<")
}

func TestModelTracksEvents(t *testing.T) {
	t.Parallel()
	m := NewModel("main", nil, log.New(io.Discard))
	assert.Contains(t, m.View(), "Watching table main")

	m.Update(SnapshotEvent{flopSnapshot()})
	m.Update(TickEvent{server.TimerTickData{TableID: "main", PlayerID: "bob", SecondsRemaining: 9}})
	assert.Contains(t, m.View(), "9s")

	// A new actor resets the countdown until the next tick.
	next := flopSnapshot()
	next.Acting = 0
	next.ActingPlayerID = "alice"
	m.Update(SnapshotEvent{next})
	assert.NotContains(t, m.View(), "9s")

	for i := 1; i <= 7; i++ {
		m.Update(ResultEvent{game.HandResult{HandNumber: i, Winners: []game.Winner{{Name: "alice", Amount: 15}}}})
	}
	assert.Len(t, m.history, maxHistory)
	assert.Equal(t, "#7 alice wins 15", m.history[maxHistory-1])

	m.Update(ErrorEvent{server.ErrorData{Code: "table_not_found", Message: "gone"}})
	assert.Contains(t, m.View(), "table_not_found: gone")
}

func TestModelQuitsOnDisconnect(t *testing.T) {
	t.Parallel()
	m := NewModel("main", nil, log.New(io.Discard))

	_, cmd := m.Update(disconnectedMsg{})
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())
	assert.Error(t, m.Err())
	assert.Contains(t, m.View(), "Disconnected")
}

func TestDescribeAbandonedHand(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "#4 abandoned, bets returned", describeResult(game.HandResult{HandNumber: 4, Abandoned: true}))
}

// fakeServer answers a watch request with a fixed script of messages.
func fakeServer(t *testing.T, script ...*server.Message) string {
	t.Helper()
	upgrader := websocket.Upgrader{}
	hs := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		var req server.Message
		if err := conn.ReadJSON(&req); err != nil || req.Type != server.MessageTypeWatch {
			return
		}
		var data server.WatchData
		if json.Unmarshal(req.Data, &data) != nil || data.TableID != "main" {
			return
		}
		for _, msg := range script {
			_ = conn.WriteJSON(msg)
		}
		_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		_, _, _ = conn.ReadMessage()
	}))
	t.Cleanup(hs.Close)
	return "ws" + strings.TrimPrefix(hs.URL, "http")
}

func mustMessage(t *testing.T, typ server.MessageType, data any) *server.Message {
	t.Helper()
	msg, err := server.NewMessage(typ, data)
	require.NoError(t, err)
	return msg
}

func TestClientDecodesEvents(t *testing.T) {
	t.Parallel()
	url := fakeServer(t,
		mustMessage(t, server.MessageTypeTableSnapshot, flopSnapshot()),
		mustMessage(t, server.MessageTypeTableList, server.TableListData{}),
		mustMessage(t, server.MessageTypeTimerTick, server.TimerTickData{TableID: "main", PlayerID: "bob", SecondsRemaining: 20}),
		mustMessage(t, server.MessageTypeHandResult, game.HandResult{TableID: "main", HandNumber: 3, Pot: 40}),
	)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	client, err := Dial(ctx, url, "main", log.New(io.Discard))
	require.NoError(t, err)
	defer client.Close()

	var events []Event
	for ev := range client.Events() {
		events = append(events, ev)
	}
	require.Len(t, events, 3, "unrelated messages are skipped")

	snap, ok := events[0].(SnapshotEvent)
	require.True(t, ok)
	assert.Equal(t, game.Flop, snap.Snapshot.Phase)
	assert.Equal(t, "Ah", snap.Snapshot.Board[0].String())

	assert.Equal(t, TickEvent{server.TimerTickData{TableID: "main", PlayerID: "bob", SecondsRemaining: 20}}, events[1])

	res, ok := events[2].(ResultEvent)
	require.True(t, ok)
	assert.Equal(t, 40, res.Result.Pot)

	assert.NoError(t, client.Err())
}
