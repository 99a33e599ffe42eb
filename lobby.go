/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"strings"

	"github.com/google/uuid"
)

// Lobby is a named, optionally password-protected pre-game room wrapping a
// waiting session, reachable through its invite code.
type Lobby struct {
	InviteCode      string
	Name            string
	CreatorPlayerID string
	SessionID       string
	Password        string
	MaxPlayers      int
	Players         []string // ordered, creator first
}

// Invite codes skip visually ambiguous characters (0/O, 1/I/l).
const (
	inviteAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
	inviteLength   = 6
)

// newInviteCodeLocked generates a fresh invite code, retrying on the
// (unlikely) collision with a live lobby. Caller holds c.mu.
func (c *Coordinator) newInviteCodeLocked() string {
	for {
		out := make([]byte, inviteLength)
		for i := range out {
			out[i] = inviteAlphabet[randomIndex(len(inviteAlphabet))]
		}
		code := string(out)

		if _, exists := c.lobbies[code]; !exists {
			return code
		}
	}
}

func (c *Coordinator) rosterLocked(l *Lobby) []string {
	roster := make([]string, 0, len(l.Players))
	for _, id := range l.Players {
		if p, ok := c.players[id]; ok {
			roster = append(roster, p.Username)
		}
	}
	return roster
}

func (c *Coordinator) lobbyExists(code string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	_, ok := c.lobbies[code]
	return ok
}

func (c *Coordinator) lobbyOfLocked(playerID string) *Lobby {
	for _, l := range c.lobbies {
		for _, id := range l.Players {
			if id == playerID {
				return l
			}
		}
	}
	return nil
}

// CreateLobby allocates a waiting session, wraps it in a new lobby, and
// seats the creator.
func (c *Coordinator) CreateLobby(playerID, name, password string) ([]outbound, error) {
	c.mu.Lock()

	p := c.players[playerID]
	if p == nil {
		c.mu.Unlock()
		return nil, ErrNotFound
	}

	c.removeFromQueueLocked(playerID)

	if name == "" {
		name = p.Username + "'s game"
	}

	code := c.newInviteCodeLocked()
	id := uuid.NewString()

	s := newSession(id, playerID)
	s.InviteCode = code
	c.sessions[id] = s

	l := &Lobby{
		InviteCode:      code,
		Name:            name,
		CreatorPlayerID: playerID,
		SessionID:       id,
		Password:        password,
		MaxPlayers:      2,
		Players:         []string{playerID},
	}
	c.lobbies[code] = l

	p.CurrentSessionID = id
	p.InLobby = true

	roster := c.rosterLocked(l)
	c.mu.Unlock()

	logf(c.cfg, "LOBBY: Player %s created lobby %s (%q)", shortID(playerID), code, name)

	return []outbound{{playerID, LobbyMessage{
		Type:       "lobby_created",
		SessionID:  id,
		InviteCode: code,
		Roster:     roster,
	}}}, nil
}

// JoinLobbyByCode seats the caller in a lobby. Filling the second slot is
// itself the trigger for game start.
func (c *Coordinator) JoinLobbyByCode(playerID, code, password string) ([]outbound, error) {
	code = strings.ToUpper(strings.TrimSpace(code))

	c.mu.Lock()

	l := c.lobbies[code]
	p := c.players[playerID]
	if l == nil || p == nil {
		c.mu.Unlock()
		return nil, ErrNotFound
	}
	if l.Password != "" && l.Password != password {
		c.mu.Unlock()
		return nil, ErrWrongPassword
	}

	member := false
	for _, id := range l.Players {
		if id == playerID {
			member = true
			break
		}
	}
	if !member && len(l.Players) >= l.MaxPlayers {
		c.mu.Unlock()
		return nil, ErrLobbyFull
	}

	s := c.sessions[l.SessionID]
	if s == nil {
		delete(c.lobbies, code)
		c.mu.Unlock()
		return nil, ErrNotFound
	}

	c.removeFromQueueLocked(playerID)

	if !member {
		l.Players = append(l.Players, playerID)
	}
	p.CurrentSessionID = l.SessionID
	p.InLobby = true

	roster := c.rosterLocked(l)
	others := make([]string, 0, len(l.Players))
	for _, id := range l.Players {
		if id != playerID {
			others = append(others, id)
		}
	}
	full := len(l.Players) == l.MaxPlayers
	c.mu.Unlock()

	s.lock()
	if err := s.joinLocked(playerID); err != nil {
		s.unlock()
		return nil, err
	}

	out := []outbound{{playerID, LobbyMessage{
		Type:       "joined_lobby",
		SessionID:  s.ID,
		InviteCode: code,
		Roster:     roster,
	}}}

	for _, id := range others {
		out = append(out, outbound{id, LobbyMessage{Type: "player_joined_lobby", Roster: roster}})
	}

	if full {
		s.startLocked(c.catalog)
		out = append(out, c.startBroadcastLocked(s)...)
	}
	s.unlock()

	if full {
		c.mu.Lock()
		for _, id := range l.Players {
			if occupant, ok := c.players[id]; ok {
				occupant.InLobby = false
			}
		}
		c.mu.Unlock()

		logf(c.cfg, "LOBBY: Lobby %s is full, game %s started", code, shortID(s.ID))
	}

	return out, nil
}

// LeaveLobby removes the caller from their lobby, promoting the next
// occupant to creator or deleting the lobby when it empties.
func (c *Coordinator) LeaveLobby(playerID string) ([]outbound, error) {
	c.mu.Lock()

	p := c.players[playerID]
	if p == nil || !p.InLobby {
		c.mu.Unlock()
		return nil, ErrNotFound
	}

	l := c.lobbyOfLocked(playerID)
	if l == nil {
		p.InLobby = false
		c.mu.Unlock()
		return nil, ErrNotFound
	}

	dst := l.Players[:0]
	for _, id := range l.Players {
		if id != playerID {
			dst = append(dst, id)
		}
	}
	l.Players = dst

	if l.CreatorPlayerID == playerID && len(l.Players) > 0 {
		l.CreatorPlayerID = l.Players[0]
	}

	p.InLobby = false
	p.CurrentSessionID = ""

	deleted := len(l.Players) == 0
	if deleted {
		delete(c.lobbies, l.InviteCode)
	}

	roster := c.rosterLocked(l)
	remaining := append([]string(nil), l.Players...)
	s := c.sessions[l.SessionID]
	c.mu.Unlock()

	if s != nil {
		s.lock()
		if slot := s.occupantLocked(playerID); slot != -1 {
			s.vacateLocked(slot)
		}
		s.unlock()
	}

	if deleted {
		if s != nil {
			c.dropSession(s.ID)
		}
		logf(c.cfg, "LOBBY: Lobby %s deleted", l.InviteCode)
		return nil, nil
	}

	out := make([]outbound, 0, len(remaining))
	for _, id := range remaining {
		out = append(out, outbound{id, LobbyMessage{Type: "player_left_lobby", Roster: roster}})
	}

	logf(c.cfg, "LOBBY: Player %s left lobby %s", shortID(playerID), l.InviteCode)

	return out, nil
}

// StartLobbyGame is the creator's manual start. Starting short-handed is
// rejected; a full lobby has already started automatically.
func (c *Coordinator) StartLobbyGame(playerID, code string) ([]outbound, error) {
	code = strings.ToUpper(strings.TrimSpace(code))

	c.mu.Lock()

	l := c.lobbies[code]
	if l == nil {
		c.mu.Unlock()
		return nil, ErrNotFound
	}
	if l.CreatorPlayerID != playerID {
		c.mu.Unlock()
		return nil, ErrNotCreator
	}
	if len(l.Players) < 2 {
		c.mu.Unlock()
		return nil, ErrNotEnoughPlayers
	}

	s := c.sessions[l.SessionID]
	members := append([]string(nil), l.Players...)
	c.mu.Unlock()

	if s == nil {
		return nil, ErrSessionExpired
	}

	s.lock()
	if s.State != StateWaiting {
		s.unlock()
		return nil, ErrGameNotActive
	}
	s.startLocked(c.catalog)
	out := c.startBroadcastLocked(s)
	s.unlock()

	c.mu.Lock()
	for _, id := range members {
		if member, ok := c.players[id]; ok {
			member.InLobby = false
		}
	}
	c.mu.Unlock()

	logf(c.cfg, "LOBBY: Creator started game %s from lobby %s", shortID(s.ID), code)

	return out, nil
}
