package evaluator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lox/holdemtables/poker"
)

func rank(t *testing.T, e *Evaluator, cards string) HandRank {
	t.Helper()
	r, err := e.Rank(poker.MustParseCards(cards))
	require.NoError(t, err)
	return r
}

func TestRankOrdering(t *testing.T) {
	t.Parallel()
	e := New()

	// Strongest first.
	hands := []struct {
		name  string
		cards string
	}{
		{"royal flush", "As Ks Qs Js Ts 9h 8h"},
		{"straight flush", "9s 8s 7s 6s 5s 4h 3h"},
		{"four of a kind", "As Ah Ad Ac Ks 2h 3h"},
		{"full house", "As Ah Ad Ks Kh 2h 3h"},
		{"flush", "As Ks Qs 8s 6s 4h 3h"},
		{"straight", "Ks Qh Jd Tc 9s 3h 2h"},
		{"wheel", "As 2h 3d 4c 5s 9h Jh"},
		{"three of a kind", "As Ah Ad Ks 9c 7h 5h"},
		{"two pair", "As Ah Kd Ks 9c 7h 5h"},
		{"one pair", "As Ah Kd Qs 9c 7h 5h"},
		{"high card", "As Kh Qd 9s 7c 5h 3h"},
	}

	var prev HandRank
	for i, h := range hands {
		r := rank(t, e, h.cards)
		assert.NotEmpty(t, r.Description, h.name)
		if i > 0 {
			assert.Equal(t, -1, r.Compare(prev), "%s should lose to %s", h.name, hands[i-1].name)
		}
		prev = r
	}
}

func TestRankAcceptsFiveToSevenCards(t *testing.T) {
	t.Parallel()
	e := New()

	five := rank(t, e, "As Ks Qs Js Ts")
	six := rank(t, e, "As Ks Qs Js Ts 2c")
	seven := rank(t, e, "As Ks Qs Js Ts 2c 3d")
	assert.Equal(t, five.Score, six.Score)
	assert.Equal(t, five.Score, seven.Score)

	_, err := e.Rank(poker.MustParseCards("As Ks Qs Js"))
	assert.ErrorIs(t, err, ErrCardCount)

	_, err = e.Rank(poker.MustParseCards("As Ks Qs Js Ts 9s 8s 7s"))
	assert.ErrorIs(t, err, ErrCardCount)
}

func TestBestOf(t *testing.T) {
	t.Parallel()
	e := New()
	board := "2c 7d 9h Js Kd"

	pairAces := rank(t, e, "Ah Ac "+board)
	pairAcesOther := rank(t, e, "As Ad "+board)
	pairQueens := rank(t, e, "Qh Qc "+board)

	t.Run("single winner", func(t *testing.T) {
		assert.Equal(t, []int{1}, e.BestOf([]HandRank{pairQueens, pairAces}))
	})

	t.Run("split", func(t *testing.T) {
		assert.Equal(t, []int{0, 2}, e.BestOf([]HandRank{pairAces, pairQueens, pairAcesOther}))
	})

	t.Run("empty", func(t *testing.T) {
		assert.Nil(t, e.BestOf(nil))
	})
}

func TestBoardPlays(t *testing.T) {
	t.Parallel()
	e := New()
	board := "As Ks Qs Js Ts"

	a := rank(t, e, "2c 3d "+board)
	b := rank(t, e, "4h 5h "+board)
	assert.Equal(t, 0, a.Compare(b))
}
