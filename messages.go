/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

// Messages coming from clients
type ClientMessage struct {
	Type       string `json:"type"`                 // see readPump for the accepted set
	Name       string `json:"name,omitempty"`       // create_lobby
	Password   string `json:"password,omitempty"`   // create_lobby / join_lobby_by_code
	InviteCode string `json:"inviteCode,omitempty"` // join_lobby_by_code / start_game_from_lobby
	SessionID  string `json:"sessionId,omitempty"`  // join_game / select_category / rejoin_game / leave_game
	Category   string `json:"category,omitempty"`   // select_category
}

// LobbyMessage answers create_lobby and join_lobby_by_code, and carries
// roster updates to the remaining occupants.
type LobbyMessage struct {
	Type       string   `json:"type"` // "lobby_created", "joined_lobby", "player_joined_lobby", "player_left_lobby"
	SessionID  string   `json:"sessionId,omitempty"`
	InviteCode string   `json:"inviteCode,omitempty"`
	Roster     []string `json:"roster"` // usernames, creator first
}

type GameStartedMessage struct {
	Type      string `json:"type"` // "game_started"
	SessionID string `json:"sessionId"`
}

// GameStateMessage wraps a projection for one occupant. Type is
// "game_state" for normal play and "reconnect_state" for the full snapshot
// sent on a successful rejoin.
type GameStateMessage struct {
	Type string `json:"type"`
	SessionView
}

// OpponentMoveMessage tells the non-acting occupant which category was
// chosen, without exposing the acting player's card value.
type OpponentMoveMessage struct {
	Type     string `json:"type"` // "opponent_move"
	Category string `json:"category"`
}

// ErrorMessage reports a failure to the requesting connection. Critical
// errors should send the client back to the main menu instead of retrying.
type ErrorMessage struct {
	Type     string `json:"type"` // "error"
	Message  string `json:"message"`
	Critical bool   `json:"critical"`
}

func errorMessage(err error) ErrorMessage {
	return ErrorMessage{
		Type:     "error",
		Message:  err.Error(),
		Critical: isCritical(err),
	}
}
