package parser

import (
	"bufio"
	"io"
	"os"
	"strings"

	"github.com/conorfennell/studydeck/internal/domain"
)

// Line prefixes of the markdown card format:
//
//	Q: front of the card
//	A: back of the card,
//	   possibly over several lines
//	C: optional context
//	---
type field int

const (
	fieldNone field = iota
	fieldFront
	fieldBack
	fieldContext
)

var prefixes = []struct {
	prefix string
	field  field
}{
	{"Q:", fieldFront},
	{"A:", fieldBack},
	{"C:", fieldContext},
}

const separator = "---"

// ParseFile reads a file from the given path and extracts all cards.
func ParseFile(path string) ([]domain.Card, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	return Parse(file)
}

// Parse reads from an io.Reader and extracts all cards. A card needs a front;
// cards without one are dropped. The returned cards carry no ID.
func Parse(r io.Reader) ([]domain.Card, error) {
	p := &cardBuilder{}
	scanner := bufio.NewScanner(r)

	for scanner.Scan() {
		line := scanner.Text()

		if line == separator {
			p.finishCard()
			continue
		}

		if f, rest, ok := matchPrefix(line); ok {
			p.flush()
			if f == fieldFront && p.started() {
				p.finishCard()
			}
			p.field = f
			p.block = append(p.block, rest)
			continue
		}

		if p.field != fieldNone {
			p.block = append(p.block, line)
		}
	}
	p.finishCard()

	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return p.cards, nil
}

func matchPrefix(line string) (field, string, bool) {
	for _, pf := range prefixes {
		if rest, ok := strings.CutPrefix(line, pf.prefix); ok {
			return pf.field, strings.TrimPrefix(rest, " "), true
		}
	}
	return fieldNone, "", false
}

type cardBuilder struct {
	cards []domain.Card
	card  domain.Card
	field field
	block []string
}

func (b *cardBuilder) started() bool {
	return b.card.Front != "" || b.card.Back != "" || b.card.Context != ""
}

// flush stores the pending block into the field it belongs to.
func (b *cardBuilder) flush() {
	if len(b.block) == 0 {
		return
	}
	content := strings.TrimRight(strings.Join(b.block, "\n"), "\n")
	switch b.field {
	case fieldFront:
		b.card.Front = content
	case fieldBack:
		b.card.Back = content
	case fieldContext:
		b.card.Context = content
	}
	b.block = nil
}

func (b *cardBuilder) finishCard() {
	b.flush()
	if b.card.Front != "" {
		b.cards = append(b.cards, b.card)
	}
	b.card = domain.Card{}
	b.field = fieldNone
}
