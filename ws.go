/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"log"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/julienschmidt/httprouter"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

const playerCookieName = "topdeck_id"

// getOrSetPlayerID keeps the logical identity stable across reconnects of
// the same browser, which is what lets a dropped client reclaim its slot.
func getOrSetPlayerID(w http.ResponseWriter, r *http.Request) string {
	if c, err := r.Cookie(playerCookieName); err == nil && c.Value != "" {
		return c.Value
	}

	id := uuid.NewString()

	http.SetCookie(w, &http.Cookie{
		Name:     playerCookieName,
		Value:    id,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	return id
}

type Client struct {
	conn     *websocket.Conn
	send     chan any
	playerID string
}

func serveWS(cfg *Config, coord *Coordinator) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		playerID := getOrSetPlayerID(w, r)

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Println("upgrade error:", err)
			return
		}

		client := &Client{
			conn:     conn,
			send:     make(chan any, 8),
			playerID: playerID,
		}

		coord.register(client, r.URL.Query().Get("username"))
		logf(cfg, "WS: Player %s connected from %s", shortID(playerID), realIP(r))

		go client.writePump()
		client.readPump(coord)
	}
}

func (c *Client) readPump(coord *Coordinator) {
	defer func() {
		coord.handleDisconnect(c)
		_ = c.conn.Close()
	}()

	for {
		var msg ClientMessage
		if err := c.conn.ReadJSON(&msg); err != nil {
			return
		}

		coord.dispatch(c, msg)
	}
}

func (c *Client) writePump() {
	defer c.conn.Close()

	for msg := range c.send {
		if err := c.conn.WriteJSON(msg); err != nil {
			return
		}
	}
}

// dispatch routes one client request. Validation failures go back to the
// requesting connection only; successful transitions fan out to every
// affected occupant.
func (c *Coordinator) dispatch(client *Client, msg ClientMessage) {
	var (
		out []outbound
		err error
	)

	switch msg.Type {
	case "create_lobby":
		out, err = c.CreateLobby(client.playerID, msg.Name, msg.Password)
	case "join_lobby_by_code":
		out, err = c.JoinLobbyByCode(client.playerID, msg.InviteCode, msg.Password)
	case "leave_lobby":
		out, err = c.LeaveLobby(client.playerID)
	case "start_game_from_lobby":
		out, err = c.StartLobbyGame(client.playerID, msg.InviteCode)
	case "create_game":
		out, err = c.QuickMatch(client.playerID)
	case "create_ai_game":
		out, err = c.CreateAIGame(client.playerID)
	case "join_game":
		out, err = c.JoinGame(client.playerID, msg.SessionID)
	case "select_category":
		out, err = c.SelectCategory(client.playerID, msg.SessionID, msg.Category)
	case "rejoin_game":
		out, err = c.Rejoin(client.playerID, msg.SessionID)
	case "leave_game":
		out, err = c.LeaveGame(client.playerID, msg.SessionID)
	default:
		// ignore unknown types
		return
	}

	if err != nil {
		c.deliver([]outbound{{client.playerID, errorMessage(err)}})
		return
	}

	c.deliver(out)
}
