/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

// HiddenCard is an opponent's top card with its category values withheld.
type HiddenCard struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// SessionView is the perspective-relative state sent to one occupant. Own
// cards are fully visible; the opponent contributes only counts and the
// identity of their top card.
type SessionView struct {
	SessionID         string      `json:"sessionId"`
	State             string      `json:"state"`
	OwnHand           []Card      `json:"ownHand"`
	OpponentHandCount int         `json:"opponentHandCount"`
	OpponentTopCard   *HiddenCard `json:"opponentTopCard,omitempty"`
	OpponentConnected bool        `json:"opponentConnected"`
	TiePileCount      int         `json:"tiePileCount"`
	IsMyTurn          bool        `json:"isMyTurn"`
	GameOver          bool        `json:"gameOver"`
	Winner            string      `json:"winner,omitempty"` // "me" or "opponent"; empty when undecided or drawn
}

// viewForLocked builds the outbound view for one slot. The me/opponent
// mapping is computed per slot, so the same session yields two different
// views; winner and turn must invert between them.
func (s *Session) viewForLocked(slot int) SessionView {
	opp := 1 - slot

	view := SessionView{
		SessionID:         s.ID,
		State:             s.State.String(),
		OwnHand:           append([]Card(nil), s.Hands[slot]...),
		OpponentHandCount: len(s.Hands[opp]),
		OpponentConnected: s.Slots[opp].State == SlotOccupied,
		TiePileCount:      len(s.TiePile),
		IsMyTurn:          s.State == StateActive && s.CurrentTurn == slot,
		GameOver:          s.State == StateCompleted,
	}

	if s.State == StateActive && len(s.Hands[opp]) > 0 {
		top := s.Hands[opp][0]
		view.OpponentTopCard = &HiddenCard{ID: top.ID, Name: top.Name}
	}

	if s.State == StateCompleted && s.WinnerSlot != winnerNone {
		if s.WinnerSlot == slot {
			view.Winner = "me"
		} else {
			view.Winner = "opponent"
		}
	}

	return view
}
