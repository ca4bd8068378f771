// Package fingerprint identifies card content independently of card IDs.
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"github.com/conorfennell/studydeck/internal/domain"
)

// Normalize joins the card's front, back and context after lowercasing,
// trimming and normalizing line endings in each.
func Normalize(card domain.Card) string {
	parts := []string{card.Front, card.Back, card.Context}
	for i, p := range parts {
		p = strings.ReplaceAll(p, "\r\n", "\n")
		parts[i] = strings.ToLower(strings.TrimSpace(p))
	}
	// Newline separation keeps "ab"+"c" distinct from "a"+"bc".
	return strings.Join(parts, "\n")
}

// Of returns the hex SHA-256 of the normalized card.
func Of(card domain.Card) string {
	sum := sha256.Sum256([]byte(Normalize(card)))
	return hex.EncodeToString(sum[:])
}

// Stamp returns cards with Hash filled in.
func Stamp(cards []domain.Card) []domain.Card {
	out := make([]domain.Card, len(cards))
	for i, c := range cards {
		c.Hash = Of(c)
		out[i] = c
	}
	return out
}
