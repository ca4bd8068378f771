// Package export writes and reads portable JSON copies of a deck.
package export

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"

	"github.com/conorfennell/studydeck/internal/domain"
)

// DefaultPrefix names exported deck files.
const DefaultPrefix = "flashcard-deck"

type document struct {
	Deck domain.Deck `json:"deck"`
}

// FileName returns the export file name for prefix.
func FileName(prefix string) string {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return prefix + ".json"
}

// WriteDeck writes {"deck": [...]} indented by two spaces.
func WriteDeck(w io.Writer, deck domain.Deck) error {
	if deck == nil {
		deck = domain.Deck{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(document{Deck: deck}); err != nil {
		return fmt.Errorf("failed to write deck: %w", err)
	}
	return nil
}

// ReadDeck reads an export document, or a bare JSON array of cards.
func ReadDeck(r io.Reader) (domain.Deck, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read deck: %w", err)
	}
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '[' {
		return domain.UnmarshalDeck(data)
	}

	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: export: %v", domain.ErrInvalidFormat, err)
	}
	return doc.Deck, nil
}
