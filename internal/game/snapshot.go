package game

import (
	"slices"

	"github.com/lox/holdemtables/poker"
)

// HiddenCard replaces hole cards the viewer may not see.
const HiddenCard = "??"

// Observer receives table events. Calls are made with the table lock held,
// so implementations must not block or call back into the table.
type Observer interface {
	TableUpdated(snap Snapshot)
	TimerTick(tableID, playerID string, secondsRemaining int)
	HandEnded(result HandResult)
}

// NopObserver discards all events.
type NopObserver struct{}

func (NopObserver) TableUpdated(Snapshot)         {}
func (NopObserver) TimerTick(string, string, int) {}
func (NopObserver) HandEnded(HandResult)          {}

// Winner is one payout of a finished hand.
type Winner struct {
	PlayerID string       `json:"playerId"`
	Name     string       `json:"name"`
	Amount   int          `json:"amount"`
	Hand     string       `json:"hand,omitempty"`
	Cards    []poker.Card `json:"cards,omitempty"`
}

// HandResult is the record of a finished or abandoned hand.
type HandResult struct {
	TableID    string       `json:"tableId"`
	HandID     string       `json:"handId"`
	HandNumber int          `json:"handNumber"`
	Board      []poker.Card `json:"board"`
	Pot        int          `json:"pot"`
	Winners    []Winner     `json:"winners"`
	Showdown   bool         `json:"showdown"`
	Abandoned  bool         `json:"abandoned"`

	// Refunds holds the returned commitments of seats that left before an
	// abandoned hand was unwound. The caller owes these to the wallet.
	Refunds map[string]int `json:"refunds,omitempty"`
}

// SeatView is the public form of a Seat.
type SeatView struct {
	PlayerID     string   `json:"playerId"`
	Name         string   `json:"name"`
	Stack        int      `json:"stack"`
	Wager        int      `json:"wager"`
	HoleCards    []string `json:"holeCards"`
	InHand       bool     `json:"inHand"`
	Folded       bool     `json:"folded"`
	Acted        bool     `json:"acted"`
	AllIn        bool     `json:"allIn"`
	Disconnected bool     `json:"disconnected"`

	cards []poker.Card
}

// Snapshot is a point-in-time copy of the table. Snapshots built by the
// table hold every hole card; use ViewFor before sending one anywhere.
type Snapshot struct {
	TableID        string       `json:"tableId"`
	HandID         string       `json:"handId,omitempty"`
	HandNumber     int          `json:"handNumber"`
	Phase          Phase        `json:"phase"`
	SmallBlind     int          `json:"smallBlind"`
	BigBlind       int          `json:"bigBlind"`
	Board          []poker.Card `json:"board"`
	Pot            int          `json:"pot"`
	HighestWager   int          `json:"highestWager"`
	Button         int          `json:"button"`
	Acting         int          `json:"acting"`
	ActingPlayerID string       `json:"actingPlayerId,omitempty"`
	TimeRemaining  int          `json:"timeRemaining"`
	Seats          []SeatView   `json:"seats"`
	LastWinners    []Winner     `json:"lastWinners,omitempty"`
	Viewer         string       `json:"viewer,omitempty"`

	revealed bool
}

// ViewFor returns a copy of the snapshot as playerID is allowed to see it:
// their own hole cards, plus every contesting seat's cards after a
// showdown. An empty playerID gives the spectator view.
func (s Snapshot) ViewFor(playerID string) Snapshot {
	out := s
	out.Viewer = playerID
	out.Board = slices.Clone(s.Board)
	out.LastWinners = slices.Clone(s.LastWinners)
	out.Seats = make([]SeatView, len(s.Seats))
	for i, seat := range s.Seats {
		v := seat
		v.HoleCards = make([]string, len(seat.cards))
		show := (playerID != "" && seat.PlayerID == playerID) ||
			(s.revealed && seat.InHand && !seat.Folded)
		for j, c := range seat.cards {
			if show {
				v.HoleCards[j] = c.String()
			} else {
				v.HoleCards[j] = HiddenCard
			}
		}
		v.cards = nil
		out.Seats[i] = v
	}
	return out
}

// Seat returns the view of playerID's seat, if present.
func (s Snapshot) Seat(playerID string) (SeatView, bool) {
	for _, v := range s.Seats {
		if v.PlayerID == playerID {
			return v, true
		}
	}
	return SeatView{}, false
}
