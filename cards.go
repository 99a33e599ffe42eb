/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"crypto/rand"
	_ "embed"
	"encoding/binary"
	"encoding/json"
	"fmt"
)

//go:embed cards/catalog.json
var catalogJSON []byte

// Card is one immutable catalog entry. The top card of a hand is index 0.
type Card struct {
	ID         string         `json:"id"`
	Name       string         `json:"name"`
	Categories map[string]int `json:"categories"`
}

func loadCatalog() ([]Card, error) {
	var cards []Card
	if err := json.Unmarshal(catalogJSON, &cards); err != nil {
		return nil, fmt.Errorf("parsing card catalog: %w", err)
	}
	if len(cards) < 2 {
		return nil, fmt.Errorf("card catalog needs at least 2 cards, got %d", len(cards))
	}
	return cards, nil
}

// randomIndex returns a uniform random int in [0, n) using crypto/rand,
// rejecting draws that would introduce modulo bias.
func randomIndex(n int) int {
	if n <= 1 {
		return 0
	}

	limit := ^uint32(0) - ^uint32(0)%uint32(n)
	var buf [4]byte

	for {
		if _, err := rand.Read(buf[:]); err != nil {
			panic("crypto/rand failure: " + err.Error())
		}
		v := binary.BigEndian.Uint32(buf[:])
		if v < limit {
			return int(v % uint32(n))
		}
	}
}

// shuffledDeck returns a Fisher-Yates shuffled copy of the catalog.
func shuffledDeck(catalog []Card) []Card {
	deck := make([]Card, len(catalog))
	copy(deck, catalog)

	for i := len(deck) - 1; i > 0; i-- {
		j := randomIndex(i + 1)
		deck[i], deck[j] = deck[j], deck[i]
	}

	return deck
}

// dealHands shuffles the catalog and splits it into two equal halves.
// An odd card out is left undealt. Each hand gets its own backing array
// so growing one hand during play can never write into the other.
func dealHands(catalog []Card) [2][]Card {
	deck := shuffledDeck(catalog)
	half := len(deck) / 2

	return [2][]Card{
		append([]Card(nil), deck[:half]...),
		append([]Card(nil), deck[half:2*half]...),
	}
}
