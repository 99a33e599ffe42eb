/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"errors"
	"log"
	"time"
)

// Validation failures: reported to the requesting connection only, no state mutated.
var (
	ErrNotFound         = errors.New("no such session or lobby")
	ErrWrongPassword    = errors.New("incorrect lobby password")
	ErrLobbyFull        = errors.New("lobby is full")
	ErrNotYourTurn      = errors.New("it is not your turn")
	ErrInvalidCategory  = errors.New("category not present on your top card")
	ErrGameNotActive    = errors.New("game is not active")
	ErrNotOccupant      = errors.New("you are not part of this session")
	ErrNotCreator       = errors.New("only the lobby creator can start the game")
	ErrNotEnoughPlayers = errors.New("at least two players are required to start")
)

// Lifecycle failures: reported as critical so the client falls back to the
// main menu instead of retrying.
var (
	ErrSessionExpired = errors.New("session no longer exists")
	ErrGraceExpired   = errors.New("reconnection window has expired")
)

// isCritical reports whether an error should force the client to a neutral screen.
func isCritical(err error) bool {
	return errors.Is(err, ErrSessionExpired) || errors.Is(err, ErrGraceExpired)
}

func logf(cfg *Config, format string, args ...any) {
	if !cfg.verbose {
		return
	}

	log.Printf("%s | "+format, append([]any{time.Now().Format(logDate)}, args...)...)
}
