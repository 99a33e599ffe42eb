/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Player is one currently known identity and its whereabouts.
type Player struct {
	ID               string
	Username         string
	CurrentSessionID string
	InLobby          bool
	LastDisconnectAt time.Time
	LastSessionID    string
}

// outbound pairs a recipient with a message, for delivery after all locks
// are released.
type outbound struct {
	playerID string
	msg      any
}

// Coordinator owns the session, player, and lobby registries, the
// matchmaking queue, and the set of connected clients. The registry maps
// are guarded by mu with short-lived critical sections; each Session
// carries its own lock for state transitions, and mu is never held while
// a session lock is taken.
type Coordinator struct {
	cfg     *Config
	catalog []Card

	mu       sync.Mutex
	sessions map[string]*Session
	players  map[string]*Player
	lobbies  map[string]*Lobby // keyed by invite code
	queue    []queueEntry
	clients  map[string]*Client
}

func newCoordinator(cfg *Config, catalog []Card) *Coordinator {
	c := &Coordinator{
		cfg:      cfg,
		catalog:  catalog,
		sessions: make(map[string]*Session),
		players:  make(map[string]*Player),
		lobbies:  make(map[string]*Lobby),
		clients:  make(map[string]*Client),
	}

	if cfg.idleTimeout > 0 {
		go c.reaperLoop()
	}

	return c
}

// register binds a connected client, creating or refreshing its player
// record. A second connection with the same identity supersedes the first.
func (c *Coordinator) register(client *Client, username string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if old, ok := c.clients[client.playerID]; ok && old != client {
		close(old.send)
	}
	c.clients[client.playerID] = client

	p, ok := c.players[client.playerID]
	if !ok {
		p = &Player{ID: client.playerID}
		c.players[client.playerID] = p
	}
	if username != "" {
		p.Username = username
	}
	if p.Username == "" {
		p.Username = "player-" + shortID(client.playerID)
	}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// deliver pushes messages onto client send buffers. It holds mu so a
// concurrent disconnect cannot close a channel mid-send; the actual
// network writes happen in each client's writePump.
func (c *Coordinator) deliver(msgs []outbound) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, m := range msgs {
		client, ok := c.clients[m.playerID]
		if !ok {
			continue
		}

		select {
		case client.send <- m.msg:
		default:
			logf(c.cfg, "WS: Dropping message to slow client %s", m.playerID)
		}
	}
}

// handleDisconnect runs when a client's read loop exits. Depending on
// where the identity currently sits, it leaves the lobby, abandons the
// matchmaking queue, or starts the reconnection grace window.
func (c *Coordinator) handleDisconnect(client *Client) {
	now := time.Now()

	c.mu.Lock()
	if c.clients[client.playerID] != client {
		// Superseded by a newer connection for the same identity.
		c.mu.Unlock()
		return
	}
	delete(c.clients, client.playerID)
	close(client.send)

	p := c.players[client.playerID]
	if p == nil {
		c.mu.Unlock()
		return
	}

	c.removeFromQueueLocked(p.ID)

	inLobby := p.InLobby
	s := c.sessions[p.CurrentSessionID]
	p.LastDisconnectAt = now
	p.LastSessionID = p.CurrentSessionID
	c.mu.Unlock()

	if inLobby {
		if out, err := c.LeaveLobby(p.ID); err == nil {
			c.deliver(out)
		}
		c.evictPlayer(p.ID)
		return
	}

	if s == nil {
		c.evictPlayer(p.ID)
		return
	}

	s.lock()

	if s.State != StateActive {
		if slot := s.occupantLocked(p.ID); slot != -1 {
			s.vacateLocked(slot)
		}
		empty := s.occupantCountLocked() == 0
		s.unlock()

		if empty {
			c.dropSession(s.ID)
		}
		c.evictPlayer(p.ID)
		return
	}

	slot := s.markDisconnectedLocked(p.ID, now)
	if slot == -1 {
		s.unlock()
		c.evictPlayer(p.ID)
		return
	}

	// Only one outstanding grace timer per session: if the peer is already
	// disconnected (or gone), nobody is left to wait for.
	other := 1 - slot
	if s.Slots[other].State != SlotOccupied {
		s.cancelGraceLocked()
		peer := s.Slots[other].PlayerID
		s.unlock()

		c.dropSession(s.ID)
		c.evictPlayer(p.ID)
		if peer != "" {
			c.evictPlayer(peer)
		}
		return
	}

	s.scheduleGraceLocked(c.cfg.gracePeriod, func(gen int) {
		c.graceExpired(s, p.ID, gen)
	})

	out := []outbound{{s.Slots[other].PlayerID, GameStateMessage{Type: "game_state", SessionView: s.viewForLocked(other)}}}
	s.unlock()

	logf(c.cfg, "GAMES: Player %s disconnected from session %s, grace window %s", shortID(p.ID), shortID(s.ID), c.cfg.gracePeriod)
	c.deliver(out)
}

// graceExpired fires when a disconnected player's reconnection window
// elapses. The generation token rejects timers that lost the race against
// a successful rejoin.
func (c *Coordinator) graceExpired(s *Session, playerID string, gen int) {
	s.lock()

	if !s.graceCurrentLocked(gen) {
		s.unlock()
		return
	}

	slot := s.occupantLocked(playerID)
	if slot == -1 || s.Slots[slot].State != SlotDisconnected {
		s.unlock()
		return
	}

	s.vacateLocked(slot)
	s.completeAbandonedLocked(slot)

	empty := s.bothVacantLocked() || s.VsAI

	var out []outbound
	if !empty {
		for i := range s.Slots {
			if s.Slots[i].State == SlotOccupied {
				out = append(out, outbound{s.Slots[i].PlayerID, GameStateMessage{Type: "game_state", SessionView: s.viewForLocked(i)}})
			}
		}
	}
	s.unlock()

	c.evictPlayer(playerID)

	if empty {
		c.dropSession(s.ID)
	} else {
		c.scheduleRetention(s)
	}

	logf(c.cfg, "GAMES: Reconnection window expired for %s in session %s", shortID(playerID), shortID(s.ID))
	c.deliver(out)
}

// Rejoin re-binds an identity to the session it remembers. This is the
// only path that rebuilds full client state, so it is idempotent: calling
// it while already occupying the slot just resends the snapshot.
func (c *Coordinator) Rejoin(playerID, sessionID string) ([]outbound, error) {
	c.mu.Lock()
	s := c.sessions[sessionID]
	p := c.players[playerID]
	c.mu.Unlock()

	if s == nil || p == nil {
		return nil, ErrSessionExpired
	}

	s.lock()

	if s.State == StateCompleted {
		s.unlock()
		return nil, ErrGraceExpired
	}

	slot, err := s.reoccupyLocked(playerID)
	if err != nil {
		s.unlock()
		return nil, err
	}
	s.cancelGraceLocked()

	out := []outbound{{playerID, GameStateMessage{Type: "reconnect_state", SessionView: s.viewForLocked(slot)}}}

	other := 1 - slot
	if s.Slots[other].State == SlotOccupied && !s.VsAI {
		out = append(out, outbound{s.Slots[other].PlayerID, GameStateMessage{Type: "game_state", SessionView: s.viewForLocked(other)}})
	}
	s.unlock()

	c.mu.Lock()
	p.CurrentSessionID = s.ID
	p.LastSessionID = s.ID
	c.mu.Unlock()

	logf(c.cfg, "GAMES: Player %s rejoined session %s", shortID(playerID), shortID(s.ID))

	return out, nil
}

// SelectCategory is the single entry point for gameplay moves. When the
// session is against the AI, the AI's replies resolve inline through the
// same transition function.
func (c *Coordinator) SelectCategory(playerID, sessionID, category string) ([]outbound, error) {
	c.mu.Lock()
	s := c.sessions[sessionID]
	c.mu.Unlock()

	if s == nil {
		return nil, ErrNotFound
	}

	s.lock()

	slot := s.occupantLocked(playerID)
	res, err := s.selectCategoryLocked(playerID, category)
	if err != nil {
		s.unlock()
		return nil, err
	}

	var out []outbound

	other := 1 - slot
	if s.Slots[other].State != SlotEmpty && !s.VsAI {
		out = append(out, outbound{s.Slots[other].PlayerID, OpponentMoveMessage{Type: "opponent_move", Category: res.Category}})
	}
	out = append(out, c.stateBroadcastLocked(s)...)

	// Let the AI take its turns until play returns to the human or the
	// game ends.
	for s.VsAI && s.State == StateActive && s.CurrentTurn == 1 {
		aiID := s.Slots[1].PlayerID
		pick := aiPickCategory(s.Hands[1][0])

		if _, err := s.selectCategoryLocked(aiID, pick); err != nil {
			break
		}

		out = append(out, outbound{s.Slots[0].PlayerID, OpponentMoveMessage{Type: "opponent_move", Category: pick}})
		out = append(out, outbound{s.Slots[0].PlayerID, GameStateMessage{Type: "game_state", SessionView: s.viewForLocked(0)}})
	}

	completed := s.State == StateCompleted
	s.unlock()

	if completed {
		c.scheduleRetention(s)
	}

	return out, nil
}

// aiPickCategory is the single-player heuristic: highest value on the top
// card, ties broken by category name for determinism.
func aiPickCategory(card Card) string {
	best := ""
	bestValue := -1

	for name, value := range card.Categories {
		if value > bestValue || (value == bestValue && name < best) {
			best = name
			bestValue = value
		}
	}

	return best
}

// CreateAIGame starts a session against the built-in opponent.
func (c *Coordinator) CreateAIGame(playerID string) ([]outbound, error) {
	c.mu.Lock()
	p := c.players[playerID]
	if p == nil {
		c.mu.Unlock()
		return nil, ErrNotFound
	}

	c.removeFromQueueLocked(playerID)

	id := uuid.NewString()
	s := newSession(id, playerID)
	s.VsAI = true
	c.sessions[id] = s
	p.CurrentSessionID = id
	c.mu.Unlock()

	aiID := "ai:" + uuid.NewString()

	s.lock()
	if err := s.joinLocked(aiID); err != nil {
		s.unlock()
		return nil, err
	}
	s.startLocked(c.catalog)

	out := []outbound{
		{playerID, GameStartedMessage{Type: "game_started", SessionID: id}},
		{playerID, GameStateMessage{Type: "game_state", SessionView: s.viewForLocked(0)}},
	}
	s.unlock()

	logf(c.cfg, "GAMES: Player %s started AI session %s", shortID(playerID), shortID(id))

	return out, nil
}

// JoinGame seats the caller in a specific waiting session. Sessions
// wrapped by a lobby are only reachable through their invite code.
func (c *Coordinator) JoinGame(playerID, sessionID string) ([]outbound, error) {
	c.mu.Lock()
	s := c.sessions[sessionID]
	p := c.players[playerID]

	if s == nil || p == nil || s.InviteCode != "" {
		c.mu.Unlock()
		return nil, ErrNotFound
	}

	c.removeFromQueueLocked(playerID)
	c.mu.Unlock()

	s.lock()
	if err := s.joinLocked(playerID); err != nil {
		s.unlock()
		return nil, err
	}

	var out []outbound
	if s.occupantCountLocked() == 2 {
		s.startLocked(c.catalog)
		out = c.startBroadcastLocked(s)
	} else {
		out = []outbound{{playerID, GameStateMessage{Type: "game_state", SessionView: s.viewForLocked(s.occupantLocked(playerID))}}}
	}
	s.unlock()

	c.mu.Lock()
	p.CurrentSessionID = sessionID
	c.mu.Unlock()

	return out, nil
}

// LeaveGame vacates the caller's slot for good. An active game ends in
// favor of the remaining occupant.
func (c *Coordinator) LeaveGame(playerID, sessionID string) ([]outbound, error) {
	c.mu.Lock()
	s := c.sessions[sessionID]
	p := c.players[playerID]
	c.mu.Unlock()

	if s == nil {
		return nil, ErrNotFound
	}

	s.lock()

	slot := s.occupantLocked(playerID)
	if slot == -1 {
		s.unlock()
		return nil, ErrNotOccupant
	}

	wasActive := s.State == StateActive
	s.vacateLocked(slot)
	s.cancelGraceLocked()

	if wasActive {
		s.completeAbandonedLocked(slot)
	}

	empty := s.bothVacantLocked() || s.VsAI

	var out []outbound
	if !empty {
		for i := range s.Slots {
			if s.Slots[i].State == SlotOccupied {
				out = append(out, outbound{s.Slots[i].PlayerID, GameStateMessage{Type: "game_state", SessionView: s.viewForLocked(i)}})
			}
		}
	}
	completed := s.State == StateCompleted
	s.unlock()

	c.mu.Lock()
	c.removeFromQueueLocked(playerID)
	if p != nil && p.CurrentSessionID == sessionID {
		p.CurrentSessionID = ""
	}
	c.mu.Unlock()

	if empty {
		c.dropSession(sessionID)
	} else if completed {
		c.scheduleRetention(s)
	}

	logf(c.cfg, "GAMES: Player %s left session %s", shortID(playerID), shortID(sessionID))

	return out, nil
}

// stateBroadcastLocked builds per-slot projections for every connected
// human occupant. Caller holds the session lock.
func (c *Coordinator) stateBroadcastLocked(s *Session) []outbound {
	var out []outbound

	for i := range s.Slots {
		if s.Slots[i].State != SlotOccupied {
			continue
		}
		if s.VsAI && i == 1 {
			continue
		}
		out = append(out, outbound{s.Slots[i].PlayerID, GameStateMessage{Type: "game_state", SessionView: s.viewForLocked(i)}})
	}

	return out
}

// startBroadcastLocked announces game start to both occupants, followed by
// each one's initial projection.
func (c *Coordinator) startBroadcastLocked(s *Session) []outbound {
	var out []outbound

	for i := range s.Slots {
		if s.Slots[i].State != SlotOccupied {
			continue
		}
		if s.VsAI && i == 1 {
			continue
		}
		out = append(out,
			outbound{s.Slots[i].PlayerID, GameStartedMessage{Type: "game_started", SessionID: s.ID}},
			outbound{s.Slots[i].PlayerID, GameStateMessage{Type: "game_state", SessionView: s.viewForLocked(i)}},
		)
	}

	return out
}

// scheduleRetention arms the deletion timer for a finished session, so
// late UI queries still find it for a short window.
func (c *Coordinator) scheduleRetention(s *Session) {
	s.lock()
	defer s.unlock()

	if s.cleanupTimer != nil {
		return
	}

	id := s.ID
	s.cleanupTimer = time.AfterFunc(c.cfg.sessionRetention, func() {
		c.dropSession(id)
	})
}

// dropSession removes a session, its wrapping lobby, and any dangling
// player back-references.
func (c *Coordinator) dropSession(id string) {
	c.mu.Lock()
	s, ok := c.sessions[id]
	if !ok {
		c.mu.Unlock()
		return
	}
	delete(c.sessions, id)

	if s.InviteCode != "" {
		delete(c.lobbies, s.InviteCode)
	}

	for _, p := range c.players {
		if p.CurrentSessionID == id {
			p.CurrentSessionID = ""
			p.InLobby = false
		}
	}
	c.mu.Unlock()

	s.lock()
	s.cancelGraceLocked()
	if s.cleanupTimer != nil {
		s.cleanupTimer.Stop()
	}
	s.unlock()

	logf(c.cfg, "GAMES: Removed session %s", shortID(id))
}

// evictPlayer drops a player record unless the identity is connected again.
func (c *Coordinator) evictPlayer(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, connected := c.clients[id]; connected {
		return
	}
	delete(c.players, id)
}

// reaperLoop periodically removes sessions that have been idle longer
// than the configured idle timeout.
func (c *Coordinator) reaperLoop() {
	ticker := time.NewTicker(c.cfg.idleTimeout / 2)
	for range ticker.C {
		cutoff := time.Now().Add(-c.cfg.idleTimeout)

		c.mu.Lock()
		var stale []string
		for id, s := range c.sessions {
			s.lock()
			last := s.LastActivityAt
			s.unlock()

			if last.Before(cutoff) {
				stale = append(stale, id)
			}
		}
		c.mu.Unlock()

		for _, id := range stale {
			logf(c.cfg, "GAMES: Reaping idle session %s", shortID(id))
			c.dropSession(id)
		}
	}
}
