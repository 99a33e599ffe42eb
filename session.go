/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"fmt"
	"sync"
	"time"
)

// SessionState tracks a session through its lifecycle. Completed is terminal.
type SessionState int

const (
	StateWaiting SessionState = iota
	StateActive
	StateCompleted
)

func (s SessionState) String() string {
	switch s {
	case StateWaiting:
		return "waiting"
	case StateActive:
		return "active"
	case StateCompleted:
		return "completed"
	default:
		return "unknown"
	}
}

type SlotState int

const (
	SlotEmpty SlotState = iota
	SlotOccupied
	SlotDisconnected
)

// Slot is one of the two player positions in a session.
type Slot struct {
	State    SlotState
	PlayerID string
	Since    time.Time // set while disconnected
}

// winnerNone marks an undecided game, a tied round, or a drawn game.
const winnerNone = -1

// Session holds the authoritative state of one two-player match. Each
// session is its own lock domain: every transition happens under mu, and
// no network I/O happens while mu is held.
type Session struct {
	ID         string
	InviteCode string
	VsAI       bool

	mu sync.Mutex

	State            SessionState
	Slots            [2]Slot
	Hands            [2][]Card
	TiePile          []Card
	CurrentTurn      int
	SelectedCategory string
	WinnerSlot       int
	Abandoned        bool

	CreatedAt      time.Time
	LastActivityAt time.Time

	// Grace timer for a disconnected slot. graceGen invalidates a fired
	// timer that lost the race against cancellation.
	graceTimer   *time.Timer
	graceGen     int
	cleanupTimer *time.Timer
}

func newSession(id, creatorID string) *Session {
	now := time.Now()

	s := &Session{
		ID:             id,
		State:          StateWaiting,
		WinnerSlot:     winnerNone,
		CreatedAt:      now,
		LastActivityAt: now,
	}
	s.Slots[0] = Slot{State: SlotOccupied, PlayerID: creatorID}

	return s
}

func (s *Session) lock()   { s.mu.Lock() }
func (s *Session) unlock() { s.mu.Unlock() }

// occupantLocked returns the slot index bound to playerID, or -1.
func (s *Session) occupantLocked(playerID string) int {
	for i := range s.Slots {
		if s.Slots[i].State != SlotEmpty && s.Slots[i].PlayerID == playerID {
			return i
		}
	}
	return -1
}

// joinLocked seats playerID in the first empty slot.
func (s *Session) joinLocked(playerID string) error {
	if s.State != StateWaiting {
		return ErrGameNotActive
	}
	if s.occupantLocked(playerID) != -1 {
		return nil
	}

	for i := range s.Slots {
		if s.Slots[i].State == SlotEmpty {
			s.Slots[i] = Slot{State: SlotOccupied, PlayerID: playerID}
			s.LastActivityAt = time.Now()
			return nil
		}
	}

	return ErrLobbyFull
}

func (s *Session) occupantCountLocked() int {
	count := 0
	for i := range s.Slots {
		if s.Slots[i].State != SlotEmpty {
			count++
		}
	}
	return count
}

func (s *Session) bothVacantLocked() bool {
	for i := range s.Slots {
		if s.Slots[i].State == SlotOccupied {
			return false
		}
	}
	return true
}

// startLocked deals cards and activates the session. Dealing happens here
// and only here, regardless of how the two occupants arrived.
func (s *Session) startLocked(catalog []Card) {
	if s.State != StateWaiting {
		return
	}

	s.Hands = dealHands(catalog)
	s.TiePile = nil
	s.CurrentTurn = 0
	s.State = StateActive
	s.LastActivityAt = time.Now()
}

func (s *Session) dealtTotalLocked() int {
	return len(s.Hands[0]) + len(s.Hands[1]) + len(s.TiePile)
}

// roundResult describes one resolved round, for outbound delivery after
// the session lock is released.
type roundResult struct {
	Category   string
	Drawn      [2]Card
	Values     [2]int
	WinnerSlot int // winnerNone on a tied round
	GameOver   bool
}

// selectCategoryLocked validates a category pick by playerID and, on
// success, resolves the round immediately.
func (s *Session) selectCategoryLocked(playerID, category string) (roundResult, error) {
	if s.State != StateActive {
		return roundResult{}, ErrGameNotActive
	}

	slot := s.occupantLocked(playerID)
	if slot == -1 {
		return roundResult{}, ErrNotOccupant
	}
	if slot != s.CurrentTurn {
		return roundResult{}, ErrNotYourTurn
	}

	if _, ok := s.Hands[slot][0].Categories[category]; !ok {
		return roundResult{}, ErrInvalidCategory
	}

	s.SelectedCategory = category

	return s.resolveLocked(), nil
}

// resolveLocked advances the session by one round. This is the only place
// round outcomes are decided; the lobby, quick-match, and AI paths all
// funnel through it.
func (s *Session) resolveLocked() roundResult {
	category := s.SelectedCategory
	before := s.dealtTotalLocked()

	drawn := [2]Card{s.Hands[0][0], s.Hands[1][0]}
	s.Hands[0] = s.Hands[0][1:]
	s.Hands[1] = s.Hands[1][1:]

	res := roundResult{
		Category:   category,
		Drawn:      drawn,
		Values:     [2]int{drawn[0].Categories[category], drawn[1].Categories[category]},
		WinnerSlot: winnerNone,
	}

	switch {
	case res.Values[0] > res.Values[1]:
		res.WinnerSlot = 0
	case res.Values[1] > res.Values[0]:
		res.WinnerSlot = 1
	}

	if res.WinnerSlot == winnerNone {
		// Tied round: both cards feed the tie pile, same player picks again.
		s.TiePile = append(s.TiePile, drawn[0], drawn[1])
	} else {
		s.Hands[res.WinnerSlot] = append(s.Hands[res.WinnerSlot], drawn[0], drawn[1])
		s.Hands[res.WinnerSlot] = append(s.Hands[res.WinnerSlot], s.TiePile...)
		s.TiePile = nil
		s.CurrentTurn = res.WinnerSlot
	}

	s.SelectedCategory = ""
	s.LastActivityAt = time.Now()

	if got := s.dealtTotalLocked(); got != before {
		panic(fmt.Sprintf("session %s: card conservation broken (%d dealt, %d after round)", s.ID, before, got))
	}

	// First to zero cards loses. Both emptying at once is a draw.
	empty0 := len(s.Hands[0]) == 0
	empty1 := len(s.Hands[1]) == 0

	if empty0 || empty1 {
		s.State = StateCompleted
		res.GameOver = true

		switch {
		case empty0 && empty1:
			// draw, WinnerSlot stays winnerNone
		case empty0:
			s.WinnerSlot = 1
		default:
			s.WinnerSlot = 0
		}
	}

	return res
}

// markDisconnectedLocked flips playerID's slot to Disconnected and returns
// its index, or -1 if the player does not occupy a slot.
func (s *Session) markDisconnectedLocked(playerID string, now time.Time) int {
	slot := s.occupantLocked(playerID)
	if slot == -1 || s.Slots[slot].State != SlotOccupied {
		return -1
	}

	s.Slots[slot].State = SlotDisconnected
	s.Slots[slot].Since = now
	s.LastActivityAt = now

	return slot
}

// reoccupyLocked restores playerID's disconnected slot. Safe to call
// redundantly: re-occupying an already occupied slot is a no-op.
func (s *Session) reoccupyLocked(playerID string) (int, error) {
	slot := s.occupantLocked(playerID)
	if slot == -1 {
		return -1, ErrSessionExpired
	}

	if s.Slots[slot].State == SlotDisconnected {
		s.Slots[slot].State = SlotOccupied
		s.Slots[slot].Since = time.Time{}
		s.LastActivityAt = time.Now()
	}

	return slot, nil
}

// vacateLocked permanently empties a slot.
func (s *Session) vacateLocked(slot int) {
	s.Slots[slot] = Slot{}
	s.LastActivityAt = time.Now()
}

// completeAbandonedLocked ends the session in favor of the surviving slot,
// if one remains.
func (s *Session) completeAbandonedLocked(leftSlot int) {
	if s.State == StateCompleted {
		s.Abandoned = true
		return
	}

	s.State = StateCompleted
	s.Abandoned = true

	other := 1 - leftSlot
	if s.Slots[other].State != SlotEmpty {
		s.WinnerSlot = other
	}
}

// scheduleGraceLocked arms the reconnection timer, superseding any previous
// one, and returns a generation token. The fire callback must re-check the
// token under the session lock; this keeps cancellation effective even when
// the timer has already fired and is waiting on the lock.
func (s *Session) scheduleGraceLocked(d time.Duration, fire func(gen int)) int {
	s.graceGen++
	gen := s.graceGen

	if s.graceTimer != nil {
		s.graceTimer.Stop()
	}
	s.graceTimer = time.AfterFunc(d, func() {
		fire(gen)
	})

	return gen
}

// cancelGraceLocked stops the pending grace timer, if any, and invalidates
// its generation.
func (s *Session) cancelGraceLocked() {
	if s.graceTimer != nil {
		s.graceTimer.Stop()
		s.graceTimer = nil
	}
	s.graceGen++
}

func (s *Session) graceCurrentLocked(gen int) bool {
	return gen == s.graceGen
}
