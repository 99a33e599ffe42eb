/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func testConfig() *Config {
	return &Config{
		gracePeriod:      time.Second,
		sessionRetention: time.Second,
	}
}

func newTestCoordinator(t *testing.T, cfg *Config) *Coordinator {
	t.Helper()

	catalog, err := loadCatalog()
	assert.NoError(t, err)

	return newCoordinator(cfg, catalog)
}

// connect registers a fake client so deliver has somewhere to push
// messages; tests read them straight off the send buffer.
func connect(c *Coordinator, playerID, username string) *Client {
	client := &Client{
		send:     make(chan any, 64),
		playerID: playerID,
	}
	c.register(client, username)

	return client
}

func drain(client *Client) []any {
	var msgs []any
	for {
		select {
		case m, ok := <-client.send:
			if !ok {
				return msgs
			}
			msgs = append(msgs, m)
		default:
			return msgs
		}
	}
}

func msgType(m any) string {
	switch v := m.(type) {
	case LobbyMessage:
		return v.Type
	case GameStartedMessage:
		return v.Type
	case GameStateMessage:
		return v.Type
	case OpponentMoveMessage:
		return v.Type
	case ErrorMessage:
		return v.Type
	default:
		return ""
	}
}

func msgTypes(msgs []any) []string {
	types := make([]string, 0, len(msgs))
	for _, m := range msgs {
		types = append(types, msgType(m))
	}
	return types
}

// quickPair matches two connected players and returns their shared session.
func quickPair(t *testing.T, c *Coordinator, a, b string) *Session {
	t.Helper()

	out, err := c.QuickMatch(a)
	assert.NoError(t, err)
	c.deliver(out)

	out, err = c.QuickMatch(b)
	assert.NoError(t, err)
	c.deliver(out)

	c.mu.Lock()
	defer c.mu.Unlock()

	assert.Len(t, c.sessions, 1)
	for _, s := range c.sessions {
		return s
	}
	return nil
}

func TestReconnectWithinGraceRestoresSlot(t *testing.T) {
	assert := assert.New(t)

	c := newTestCoordinator(t, testConfig())
	alice := connect(c, "alice", "Alice")
	connect(c, "bob", "Bob")

	s := quickPair(t, c, "alice", "bob")
	assert.NotNil(s)

	s.lock()
	slot := s.occupantLocked("alice")
	handBefore := append([]Card(nil), s.Hands[slot]...)
	s.unlock()

	c.handleDisconnect(alice)

	s.lock()
	assert.Equal(SlotDisconnected, s.Slots[slot].State)
	assert.Equal(StateActive, s.State, "disconnect alone must not end the game")
	s.unlock()

	// Same identity comes back on a fresh connection.
	alice2 := connect(c, "alice", "Alice")
	out, err := c.Rejoin("alice", s.ID)
	assert.NoError(err)
	c.deliver(out)

	s.lock()
	assert.Equal(SlotOccupied, s.Slots[slot].State)
	assert.Equal(handBefore, s.Hands[slot], "hand must survive a reconnect unchanged")
	s.unlock()

	var snapshot *GameStateMessage
	for _, m := range drain(alice2) {
		if gs, ok := m.(GameStateMessage); ok && gs.Type == "reconnect_state" {
			snapshot = &gs
			break
		}
	}
	assert.NotNil(snapshot, "rejoin must deliver a full state snapshot")
	assert.Equal(len(handBefore), len(snapshot.OwnHand))

	// Redundant rejoin is safe and resends the snapshot.
	out, err = c.Rejoin("alice", s.ID)
	assert.NoError(err)
	assert.NotEmpty(out)
}

func TestReconnectAfterGraceExpiryIsRejected(t *testing.T) {
	assert := assert.New(t)

	cfg := testConfig()
	cfg.gracePeriod = 20 * time.Millisecond
	cfg.sessionRetention = time.Minute

	c := newTestCoordinator(t, cfg)
	alice := connect(c, "alice", "Alice")
	bob := connect(c, "bob", "Bob")

	s := quickPair(t, c, "alice", "bob")
	bobSlot := func() int {
		s.lock()
		defer s.unlock()
		return s.occupantLocked("bob")
	}()

	c.handleDisconnect(alice)

	assert.Eventually(func() bool {
		s.lock()
		defer s.unlock()
		return s.State == StateCompleted
	}, time.Second, 5*time.Millisecond, "grace expiry must abandon the session")

	s.lock()
	assert.True(s.Abandoned)
	assert.Equal(bobSlot, s.WinnerSlot, "the remaining occupant takes the abandoned game")
	s.unlock()

	// Bob heard about it.
	heard := false
	for _, m := range drain(bob) {
		if gs, ok := m.(GameStateMessage); ok && gs.GameOver {
			heard = true
			assert.Equal("me", gs.Winner)
		}
	}
	assert.True(heard)

	connect(c, "alice", "Alice")
	_, err := c.Rejoin("alice", s.ID)
	assert.ErrorIs(err, ErrGraceExpired)
	assert.True(isCritical(err))
}

func TestFinishedSessionRetention(t *testing.T) {
	assert := assert.New(t)

	cfg := testConfig()
	cfg.gracePeriod = 10 * time.Millisecond
	cfg.sessionRetention = 20 * time.Millisecond

	c := newTestCoordinator(t, cfg)
	alice := connect(c, "alice", "Alice")
	connect(c, "bob", "Bob")

	s := quickPair(t, c, "alice", "bob")
	c.handleDisconnect(alice)

	// The abandoned session lingers briefly for late queries, then goes away.
	assert.Eventually(func() bool {
		c.mu.Lock()
		defer c.mu.Unlock()
		_, ok := c.sessions[s.ID]
		return !ok
	}, time.Second, 5*time.Millisecond)

	connect(c, "alice", "Alice")
	_, err := c.Rejoin("alice", s.ID)
	assert.ErrorIs(err, ErrSessionExpired)
}

func TestRejoinUnknownSessionIsCritical(t *testing.T) {
	assert := assert.New(t)

	c := newTestCoordinator(t, testConfig())
	connect(c, "alice", "Alice")

	_, err := c.Rejoin("alice", "no-such-session")
	assert.ErrorIs(err, ErrSessionExpired)
	assert.True(isCritical(err))
}

func TestBothSlotsGoneTearsDownImmediately(t *testing.T) {
	assert := assert.New(t)

	c := newTestCoordinator(t, testConfig())
	alice := connect(c, "alice", "Alice")
	bob := connect(c, "bob", "Bob")

	s := quickPair(t, c, "alice", "bob")

	c.handleDisconnect(alice)
	c.handleDisconnect(bob)

	c.mu.Lock()
	_, ok := c.sessions[s.ID]
	c.mu.Unlock()
	assert.False(ok, "a session with no occupants left waits for nobody")
}

func TestLeaveGameEndsActiveSession(t *testing.T) {
	assert := assert.New(t)

	c := newTestCoordinator(t, testConfig())
	connect(c, "alice", "Alice")
	bob := connect(c, "bob", "Bob")

	s := quickPair(t, c, "alice", "bob")

	out, err := c.LeaveGame("alice", s.ID)
	assert.NoError(err)
	c.deliver(out)

	s.lock()
	assert.Equal(StateCompleted, s.State)
	assert.Equal(s.occupantLocked("bob"), s.WinnerSlot)
	s.unlock()

	won := false
	for _, m := range drain(bob) {
		if gs, ok := m.(GameStateMessage); ok && gs.Winner == "me" {
			won = true
		}
	}
	assert.True(won)
}

func TestAIGamePlaysBackImmediately(t *testing.T) {
	assert := assert.New(t)

	c := newTestCoordinator(t, testConfig())
	alice := connect(c, "alice", "Alice")

	out, err := c.CreateAIGame("alice")
	assert.NoError(err)
	c.deliver(out)

	types := msgTypes(drain(alice))
	assert.Contains(types, "game_started")
	assert.Contains(types, "game_state")

	c.mu.Lock()
	var s *Session
	for _, sess := range c.sessions {
		s = sess
	}
	c.mu.Unlock()
	assert.NotNil(s)

	s.lock()
	assert.True(s.VsAI)
	assert.Equal(0, s.CurrentTurn, "the human acts first")
	category := aiPickCategory(s.Hands[0][0])
	s.unlock()

	out, err = c.SelectCategory("alice", s.ID, category)
	assert.NoError(err)
	c.deliver(out)

	s.lock()
	// The AI resolves its own turns inline: play is back with the human,
	// or the game ended.
	assert.True(s.State == StateCompleted || s.CurrentTurn == 0)
	s.unlock()
}

func TestSelectCategoryUnknownSession(t *testing.T) {
	c := newTestCoordinator(t, testConfig())
	connect(c, "alice", "Alice")

	_, err := c.SelectCategory("alice", "missing", "strength")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.False(t, isCritical(err))
}
