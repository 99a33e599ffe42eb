/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"github.com/google/uuid"
)

// queueEntry is one identity waiting for quick match, along with the
// session pre-allocated when it enqueued.
type queueEntry struct {
	playerID  string
	sessionID string
}

// matchPair is two validated queue entries ready to be bound into the
// first entry's session.
type matchPair struct {
	host  queueEntry
	guest queueEntry
}

// QuickMatch enqueues the caller for anonymous pairing. Any stale prior
// enqueue of the same identity is replaced, and a match pass runs
// immediately.
func (c *Coordinator) QuickMatch(playerID string) ([]outbound, error) {
	c.mu.Lock()

	p := c.players[playerID]
	if p == nil {
		c.mu.Unlock()
		return nil, ErrNotFound
	}

	c.removeFromQueueLocked(playerID)

	id := uuid.NewString()
	s := newSession(id, playerID)
	c.sessions[id] = s
	p.CurrentSessionID = id

	c.queue = append(c.queue, queueEntry{playerID: playerID, sessionID: id})

	pairs := c.matchPassLocked()
	c.mu.Unlock()

	logf(c.cfg, "MATCH: Player %s queued for quick match", shortID(playerID))

	return c.bindMatches(pairs), nil
}

// removeFromQueueLocked cancels a pending queue entry and its
// pre-allocated session, if still unused. Caller holds c.mu.
func (c *Coordinator) removeFromQueueLocked(playerID string) {
	dst := c.queue[:0]

	for _, e := range c.queue {
		if e.playerID != playerID {
			dst = append(dst, e)
			continue
		}

		if s, ok := c.sessions[e.sessionID]; ok && s.State == StateWaiting {
			delete(c.sessions, e.sessionID)
		}
		if p, ok := c.players[playerID]; ok && p.CurrentSessionID == e.sessionID {
			p.CurrentSessionID = ""
		}
	}

	c.queue = dst
}

// matchPassLocked pops and validates pairs as one atomic step under c.mu,
// so a concurrent enqueue cannot interleave between liveness validation
// and session binding. When one popped entry is dead, the still-live one
// goes back to the front of the queue instead of losing its place.
func (c *Coordinator) matchPassLocked() []matchPair {
	var pairs []matchPair

	for len(c.queue) >= 2 {
		a, b := c.queue[0], c.queue[1]
		c.queue = c.queue[2:]

		aliveA := c.entryAliveLocked(a)
		aliveB := c.entryAliveLocked(b)

		switch {
		case aliveA && aliveB:
			// Bind b into a's pre-allocated session; b's own goes away.
			if s, ok := c.sessions[b.sessionID]; ok && s.State == StateWaiting {
				delete(c.sessions, b.sessionID)
			}
			if p, ok := c.players[b.playerID]; ok {
				p.CurrentSessionID = a.sessionID
			}
			pairs = append(pairs, matchPair{host: a, guest: b})
		case aliveA:
			c.discardEntryLocked(b)
			c.queue = append([]queueEntry{a}, c.queue...)
		case aliveB:
			c.discardEntryLocked(a)
			c.queue = append([]queueEntry{b}, c.queue...)
		default:
			c.discardEntryLocked(a)
			c.discardEntryLocked(b)
		}
	}

	return pairs
}

func (c *Coordinator) entryAliveLocked(e queueEntry) bool {
	if _, connected := c.clients[e.playerID]; !connected {
		return false
	}
	if _, known := c.players[e.playerID]; !known {
		return false
	}
	s, ok := c.sessions[e.sessionID]
	return ok && s.State == StateWaiting
}

func (c *Coordinator) discardEntryLocked(e queueEntry) {
	if s, ok := c.sessions[e.sessionID]; ok && s.State == StateWaiting {
		delete(c.sessions, e.sessionID)
	}
}

// bindMatches performs the session transitions for each matched pair,
// outside the registry lock. Each pair is re-validated against the
// connected-client set first: a disconnect can land between the match
// pass and here, and a ghost must never be seated into an Active game.
// A survivor goes back to the front of the queue, and any pairs a fresh
// match pass produces join the work list.
func (c *Coordinator) bindMatches(pairs []matchPair) []outbound {
	var out []outbound

	for len(pairs) > 0 {
		pair := pairs[0]
		pairs = pairs[1:]

		c.mu.Lock()
		s := c.sessions[pair.host.sessionID]
		_, hostAlive := c.clients[pair.host.playerID]
		_, guestAlive := c.clients[pair.guest.playerID]

		if s == nil || !hostAlive || !guestAlive {
			if s != nil && hostAlive {
				c.requeueFrontLocked(pair.host)
			} else if s != nil {
				delete(c.sessions, pair.host.sessionID)
			}
			if guestAlive {
				c.requeueFrontLocked(queueEntry{playerID: pair.guest.playerID})
			}
			pairs = append(pairs, c.matchPassLocked()...)
			c.mu.Unlock()
			continue
		}
		c.mu.Unlock()

		s.lock()
		if err := s.joinLocked(pair.guest.playerID); err != nil {
			s.unlock()
			continue
		}
		s.startLocked(c.catalog)
		out = append(out, c.startBroadcastLocked(s)...)
		s.unlock()

		c.mu.Lock()
		if p, ok := c.players[pair.host.playerID]; ok {
			p.CurrentSessionID = pair.host.sessionID
		}
		if p, ok := c.players[pair.guest.playerID]; ok {
			p.CurrentSessionID = pair.host.sessionID
		}
		c.mu.Unlock()

		logf(c.cfg, "MATCH: Paired %s and %s into session %s",
			shortID(pair.host.playerID),
			shortID(pair.guest.playerID),
			shortID(pair.host.sessionID),
		)
	}

	return out
}

// requeueFrontLocked puts a still-connected player back at the head of
// the queue, allocating a fresh waiting session when the entry's old one
// is gone. Caller holds c.mu.
func (c *Coordinator) requeueFrontLocked(e queueEntry) {
	if s, ok := c.sessions[e.sessionID]; !ok || s.State != StateWaiting {
		e.sessionID = uuid.NewString()
		c.sessions[e.sessionID] = newSession(e.sessionID, e.playerID)
	}
	if p, ok := c.players[e.playerID]; ok {
		p.CurrentSessionID = e.sessionID
	}

	c.queue = append([]queueEntry{e}, c.queue...)
}
