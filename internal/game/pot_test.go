package game

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func committed(amounts ...int) []*Seat {
	ss := seats(make([]int, len(amounts))...)
	for i, a := range amounts {
		ss[i].Committed = a
	}
	return ss
}

func TestBuildPotsSingleLevel(t *testing.T) {
	t.Parallel()
	pots := BuildPots(committed(20, 20, 20))
	assert.Equal(t, []Pot{{Amount: 60, Eligible: []int{0, 1, 2}}}, pots)
}

func TestBuildPotsSidePots(t *testing.T) {
	t.Parallel()
	ss := committed(10, 50, 100, 100)
	ss[0].AllIn = true
	ss[1].AllIn = true

	pots := BuildPots(ss)
	assert.Equal(t, []Pot{
		{Amount: 40, Eligible: []int{0, 1, 2, 3}},
		{Amount: 120, Eligible: []int{1, 2, 3}},
		{Amount: 100, Eligible: []int{2, 3}},
	}, pots)
}

func TestBuildPotsFoldedChipsAreDeadMoney(t *testing.T) {
	t.Parallel()
	ss := committed(30, 20, 50)
	ss[0].Folded = true
	ss[1].AllIn = true

	pots := BuildPots(ss)
	assert.Equal(t, []Pot{
		{Amount: 60, Eligible: []int{1, 2}},
		{Amount: 40, Eligible: []int{2}},
	}, pots)
}

func TestBuildPotsMergesEqualEligibility(t *testing.T) {
	t.Parallel()
	// The folded seat adds no level of its own.
	ss := committed(40, 40, 60)
	ss[1].Folded = true

	pots := BuildPots(ss)
	assert.Equal(t, []Pot{
		{Amount: 120, Eligible: []int{0, 2}},
		{Amount: 20, Eligible: []int{2}},
	}, pots)
}

func TestBuildPotsNothingCommitted(t *testing.T) {
	t.Parallel()
	assert.Nil(t, BuildPots(committed(0, 0)))
}

func TestBuildPotsSumsToTotal(t *testing.T) {
	t.Parallel()
	ss := committed(7, 13, 25, 25, 3)
	ss[0].AllIn = true
	ss[1].Folded = true
	ss[4].Folded = true

	sum := 0
	for _, p := range BuildPots(ss) {
		sum += p.Amount
	}
	assert.Equal(t, 73, sum)
}

func TestSplitPotOddChips(t *testing.T) {
	t.Parallel()
	assert.Equal(t, map[int]int{2: 34, 0: 33, 1: 33}, splitPot(100, []int{2, 0, 1}))
	assert.Equal(t, map[int]int{1: 5}, splitPot(5, []int{1}))
	assert.Empty(t, splitPot(5, nil))
}

func TestOrderFromButton(t *testing.T) {
	t.Parallel()
	// Button at 2: seat 3 is first, then wrap.
	assert.Equal(t, []int{3, 0, 1, 2}, orderFromButton([]int{0, 1, 2, 3}, 2, 4))
	assert.Equal(t, []int{0, 2}, orderFromButton([]int{2, 0}, 3, 4))
}
