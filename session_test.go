/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func mkCard(id string, strength, speed int) Card {
	return Card{
		ID:   id,
		Name: strings.ToUpper(id[:1]) + id[1:],
		Categories: map[string]int{
			"strength": strength,
			"speed":    speed,
		},
	}
}

// activeSession builds a two-player session with fixed hands, slot 0 to act.
func activeSession(h0, h1 []Card) *Session {
	s := newSession("sess-test", "p0")
	_ = s.joinLocked("p1")
	s.Hands = [2][]Card{h0, h1}
	s.State = StateActive
	s.CurrentTurn = 0
	return s
}

func TestHigherValueWinsRound(t *testing.T) {
	assert := assert.New(t)

	h0 := []Card{mkCard("a", 8, 1), mkCard("b", 2, 2), mkCard("c", 3, 3), mkCard("d", 4, 4), mkCard("e", 5, 5)}
	h1 := []Card{mkCard("f", 3, 1), mkCard("g", 2, 2), mkCard("h", 3, 3), mkCard("i", 4, 4), mkCard("j", 5, 5)}
	s := activeSession(h0, h1)

	res, err := s.selectCategoryLocked("p0", "strength")

	assert.NoError(err)
	assert.Equal(0, res.WinnerSlot)
	assert.Equal([2]int{8, 3}, res.Values)
	assert.False(res.GameOver)

	assert.Equal(6, len(s.Hands[0]))
	assert.Equal(4, len(s.Hands[1]))
	assert.Equal(0, len(s.TiePile))
	assert.Equal(0, s.CurrentTurn)
	assert.Equal(StateActive, s.State)
	assert.Empty(s.SelectedCategory)
}

func TestLowerValueLosesRoundAndTurnPasses(t *testing.T) {
	assert := assert.New(t)

	h0 := []Card{mkCard("a", 2, 1), mkCard("b", 5, 5)}
	h1 := []Card{mkCard("f", 9, 1), mkCard("g", 5, 5)}
	s := activeSession(h0, h1)

	res, err := s.selectCategoryLocked("p0", "strength")

	assert.NoError(err)
	assert.Equal(1, res.WinnerSlot)
	assert.Equal(1, len(s.Hands[0]))
	assert.Equal(3, len(s.Hands[1]))
	assert.Equal(1, s.CurrentTurn)
}

func TestEqualValuesFeedTiePile(t *testing.T) {
	assert := assert.New(t)

	h0 := []Card{mkCard("a", 5, 1), mkCard("b", 6, 2)}
	h1 := []Card{mkCard("f", 5, 9), mkCard("g", 6, 8)}
	s := activeSession(h0, h1)

	res, err := s.selectCategoryLocked("p0", "strength")

	assert.NoError(err)
	assert.Equal(winnerNone, res.WinnerSlot)
	assert.Equal(1, len(s.Hands[0]))
	assert.Equal(1, len(s.Hands[1]))
	assert.Equal(2, len(s.TiePile))
	assert.Equal(0, s.CurrentTurn, "acting player chooses again after a tie")
	assert.Equal(StateActive, s.State)
}

func TestWinnerCollectsTiePile(t *testing.T) {
	assert := assert.New(t)

	h0 := []Card{mkCard("a", 5, 1), mkCard("b", 9, 2), mkCard("c", 1, 1)}
	h1 := []Card{mkCard("f", 5, 9), mkCard("g", 2, 8), mkCard("h", 1, 1)}
	s := activeSession(h0, h1)

	_, err := s.selectCategoryLocked("p0", "strength")
	assert.NoError(err)
	assert.Equal(2, len(s.TiePile))

	res, err := s.selectCategoryLocked("p0", "strength")
	assert.NoError(err)
	assert.Equal(0, res.WinnerSlot)

	// Winner's hand: its remaining card plus both drawn cards plus the pile.
	assert.Equal(5, len(s.Hands[0]))
	assert.Equal(1, len(s.Hands[1]))
	assert.Equal(0, len(s.TiePile))
}

func TestFirstToZeroCardsLoses(t *testing.T) {
	assert := assert.New(t)

	h0 := []Card{mkCard("a", 1, 1)}
	h1 := []Card{mkCard("f", 9, 1), mkCard("g", 2, 8)}
	s := activeSession(h0, h1)

	res, err := s.selectCategoryLocked("p0", "strength")

	assert.NoError(err)
	assert.True(res.GameOver)
	assert.Equal(StateCompleted, s.State)
	assert.Equal(1, s.WinnerSlot)

	// Completed is terminal: further moves are validation failures.
	_, err = s.selectCategoryLocked("p1", "strength")
	assert.ErrorIs(err, ErrGameNotActive)
}

func TestSimultaneousExhaustionIsDraw(t *testing.T) {
	assert := assert.New(t)

	h0 := []Card{mkCard("a", 5, 1)}
	h1 := []Card{mkCard("f", 5, 9)}
	s := activeSession(h0, h1)

	res, err := s.selectCategoryLocked("p0", "strength")

	assert.NoError(err)
	assert.True(res.GameOver)
	assert.Equal(StateCompleted, s.State)
	assert.Equal(winnerNone, s.WinnerSlot)

	for slot := range s.Slots {
		view := s.viewForLocked(slot)
		assert.True(view.GameOver)
		assert.Empty(view.Winner, "a drawn game has no winner for slot %d", slot)
	}
}

// cardCounts tallies card IDs across both hands and the tie pile.
func cardCounts(s *Session) map[string]int {
	counts := make(map[string]int)
	for i := range s.Hands {
		for _, card := range s.Hands[i] {
			counts[card.ID]++
		}
	}
	for _, card := range s.TiePile {
		counts[card.ID]++
	}
	return counts
}

func TestCardConservationAcrossFullGame(t *testing.T) {
	assert := assert.New(t)

	catalog, err := loadCatalog()
	assert.NoError(err)

	s := newSession("sess-test", "p0")
	assert.NoError(s.joinLocked("p1"))
	s.startLocked(catalog)

	total := s.dealtTotalLocked()
	assert.Equal(len(catalog)/2*2, total)

	dealt := cardCounts(s)
	for id, count := range dealt {
		assert.Equal(1, count, "card %s dealt more than once", id)
	}

	players := [2]string{"p0", "p1"}
	for rounds := 0; s.State == StateActive && rounds < 10000; rounds++ {
		category := aiPickCategory(s.Hands[s.CurrentTurn][0])
		_, err := s.selectCategoryLocked(players[s.CurrentTurn], category)
		assert.NoError(err)
		assert.Equal(total, s.dealtTotalLocked(), "hands plus tie pile must equal the dealt total")
		// Identity, not just count: every dealt card is still exactly
		// where some hand or the pile says it is.
		assert.Equal(dealt, cardCounts(s), "every dealt card must appear exactly once")
	}

	assert.Equal(StateCompleted, s.State)
}

func TestRoundWinLeavesOpponentHandIntact(t *testing.T) {
	assert := assert.New(t)

	catalog, err := loadCatalog()
	assert.NoError(err)

	hands := dealHands(catalog)
	hands[0][0] = mkCard("sure-win", 999, 999)
	tail := append([]Card(nil), hands[1][1:]...)

	s := newSession("sess-test", "p0")
	assert.NoError(s.joinLocked("p1"))
	s.Hands = hands
	s.State = StateActive
	s.CurrentTurn = 0

	res, err := s.selectCategoryLocked("p0", "strength")

	assert.NoError(err)
	assert.Equal(0, res.WinnerSlot)
	assert.Equal(tail, s.Hands[1], "collecting a win must not rewrite the loser's remaining cards")
}

func TestSelectCategoryValidation(t *testing.T) {
	assert := assert.New(t)

	h0 := []Card{mkCard("a", 5, 1)}
	h1 := []Card{mkCard("f", 3, 9)}
	s := activeSession(h0, h1)

	_, err := s.selectCategoryLocked("p1", "strength")
	assert.ErrorIs(err, ErrNotYourTurn)

	_, err = s.selectCategoryLocked("intruder", "strength")
	assert.ErrorIs(err, ErrNotOccupant)

	_, err = s.selectCategoryLocked("p0", "charisma")
	assert.ErrorIs(err, ErrInvalidCategory)

	// None of the rejected calls may have mutated state.
	assert.Equal(1, len(s.Hands[0]))
	assert.Equal(1, len(s.Hands[1]))
	assert.Equal(0, len(s.TiePile))
	assert.Equal(StateActive, s.State)
}

func TestWaitingSessionRejectsMoves(t *testing.T) {
	s := newSession("sess-test", "p0")

	_, err := s.selectCategoryLocked("p0", "strength")
	assert.ErrorIs(t, err, ErrGameNotActive)
}

func TestDeterministicResolution(t *testing.T) {
	assert := assert.New(t)

	build := func() *Session {
		return activeSession(
			[]Card{mkCard("a", 7, 2), mkCard("b", 1, 1)},
			[]Card{mkCard("f", 4, 6), mkCard("g", 9, 9)},
		)
	}

	first := build()
	second := build()

	resA, _ := first.selectCategoryLocked("p0", "speed")
	resB, _ := second.selectCategoryLocked("p0", "speed")

	assert.Equal(resA, resB)
	assert.Equal(first.Hands, second.Hands)
	assert.Equal(first.CurrentTurn, second.CurrentTurn)
	assert.Equal(first.TiePile, second.TiePile)
}

func TestProjectionPerspectives(t *testing.T) {
	assert := assert.New(t)

	h0 := []Card{mkCard("a", 8, 1), mkCard("b", 2, 2)}
	h1 := []Card{mkCard("f", 3, 1), mkCard("g", 4, 4), mkCard("h", 1, 1)}
	s := activeSession(h0, h1)

	view0 := s.viewForLocked(0)
	view1 := s.viewForLocked(1)

	assert.True(view0.IsMyTurn)
	assert.False(view1.IsMyTurn, "slot projections must never both claim the turn")

	assert.Equal(2, len(view0.OwnHand))
	assert.Equal(3, view0.OpponentHandCount)
	assert.Equal(3, len(view1.OwnHand))
	assert.Equal(2, view1.OpponentHandCount)

	// Opponent's top card shows identity only, never category values.
	assert.Equal("f", view0.OpponentTopCard.ID)
	assert.Equal("a", view1.OpponentTopCard.ID)

	// Own cards keep their categories visible.
	assert.Equal(8, view0.OwnHand[0].Categories["strength"])
}

func TestProjectionWinnerInversion(t *testing.T) {
	assert := assert.New(t)

	for winner := 0; winner < 2; winner++ {
		s := activeSession(
			[]Card{mkCard("a", 5, 1)},
			[]Card{mkCard("f", 3, 9)},
		)
		s.State = StateCompleted
		s.WinnerSlot = winner

		winnerView := s.viewForLocked(winner)
		loserView := s.viewForLocked(1 - winner)

		assert.Equal("me", winnerView.Winner, "winner slot %d", winner)
		assert.Equal("opponent", loserView.Winner, "winner slot %d", winner)
	}
}

func TestDealHandsSplitsEvenly(t *testing.T) {
	assert := assert.New(t)

	catalog, err := loadCatalog()
	assert.NoError(err)

	hands := dealHands(catalog)

	assert.Equal(len(catalog)/2, len(hands[0]))
	assert.Equal(len(catalog)/2, len(hands[1]))

	seen := make(map[string]int)
	for i := range hands {
		for _, card := range hands[i] {
			seen[card.ID]++
		}
	}
	for id, count := range seen {
		assert.Equal(1, count, "card %s dealt more than once", id)
	}
}

func TestDealtHandsGrowIndependently(t *testing.T) {
	assert := assert.New(t)

	catalog, err := loadCatalog()
	assert.NoError(err)

	hands := dealHands(catalog)
	before := append([]Card(nil), hands[1]...)

	hands[0] = append(hands[0], mkCard("extra", 1, 1))

	assert.Equal(before, hands[1], "growing one hand must not touch the other")
}

func TestAIPickCategoryIsBestStat(t *testing.T) {
	assert := assert.New(t)

	assert.Equal("strength", aiPickCategory(mkCard("a", 9, 3)))
	assert.Equal("speed", aiPickCategory(mkCard("b", 2, 7)))
	// Equal values break ties by name, deterministically.
	assert.Equal("speed", aiPickCategory(mkCard("c", 5, 5)))
}
