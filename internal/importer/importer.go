// Package importer adds authored cards to the deck from markdown folders,
// git repositories and JSON exports.
package importer

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"path/filepath"
	"runtime"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/conorfennell/studydeck/internal/domain"
	"github.com/conorfennell/studydeck/internal/export"
	"github.com/conorfennell/studydeck/internal/fingerprint"
	"github.com/conorfennell/studydeck/internal/gitsource"
	"github.com/conorfennell/studydeck/internal/parser"
)

// Deck is the part of the review controller the importer writes through.
type Deck interface {
	Deck() domain.Deck
	AddCards(ctx context.Context, cards ...domain.Card) (domain.Deck, error)
}

// Result summarizes one import.
type Result struct {
	Files   int
	Parsed  int
	Added   int
	Skipped int     // already in the deck, matched by content
	Errors  []error // per-file problems that did not stop the import
}

// Importer reconciles card sources into a deck. Importing the same source
// twice adds nothing the second time.
type Importer struct {
	deck     Deck
	reposDir string
	progress io.Writer
	logger   *slog.Logger
	gitLog   *slog.Logger
}

// New returns an importer cloning git sources under reposDir. progress, which
// may be nil, receives git transfer output.
func New(deck Deck, reposDir string, progress io.Writer, logger *slog.Logger) *Importer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Importer{
		deck:     deck,
		reposDir: reposDir,
		progress: progress,
		logger:   logger.With("component", "importer"),
		gitLog:   logger.With("component", "gitsource"),
	}
}

// Import reads cards from a local directory or file, or from a git URL which
// is cloned (or pulled) first.
func (im *Importer) Import(ctx context.Context, src string) (Result, error) {
	path := src
	if gitsource.IsURL(src) {
		local, err := gitsource.LocalPath(im.reposDir, src)
		if err != nil {
			return Result{}, err
		}
		if err := gitsource.Sync(ctx, src, local, im.progress, im.gitLog); err != nil {
			return Result{}, err
		}
		path = local
	}
	return im.importPath(ctx, path)
}

func (im *Importer) importPath(ctx context.Context, root string) (Result, error) {
	var res Result
	var paths []string

	walkErr := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if d.Name() == ".git" {
				return filepath.SkipDir
			}
			return nil
		}
		if strings.HasSuffix(strings.ToLower(d.Name()), ".md") {
			paths = append(paths, path)
		}
		return nil
	})
	if walkErr != nil {
		return res, fmt.Errorf("error walking %s: %w", root, walkErr)
	}
	res.Files = len(paths)

	files, err := parseFiles(ctx, paths)
	if err != nil {
		return res, err
	}

	var parsed []domain.Card
	for _, f := range files {
		res.Errors = append(res.Errors, f.errs...)
		parsed = append(parsed, f.cards...)
	}
	res.Parsed = len(parsed)

	if err := im.add(ctx, parsed, &res); err != nil {
		return res, err
	}

	im.logger.Info("import complete",
		"path", root,
		"files", res.Files,
		"parsed_cards", res.Parsed,
		"added", res.Added,
		"skipped", res.Skipped,
		"errors", len(res.Errors),
	)
	return res, nil
}

type parsedFile struct {
	cards []domain.Card
	errs  []error
}

// parseFiles parses paths concurrently. Results keep the order of paths.
func parseFiles(ctx context.Context, paths []string) ([]parsedFile, error) {
	out := make([]parsedFile, len(paths))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))

	for i, path := range paths {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			cards, err := parser.ParseFile(path)
			if err != nil {
				out[i].errs = append(out[i].errs, fmt.Errorf("parsing %s: %w", path, err))
				return nil
			}
			for _, c := range cards {
				if err := c.Validate(); err != nil {
					out[i].errs = append(out[i].errs, fmt.Errorf("%s: %w", path, err))
					continue
				}
				out[i].cards = append(out[i].cards, c)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// ImportJSON adds the cards of a JSON export, keeping their scheduling.
func (im *Importer) ImportJSON(ctx context.Context, r io.Reader) (Result, error) {
	deck, err := export.ReadDeck(r)
	if err != nil {
		return Result{}, err
	}
	res := Result{Files: 1, Parsed: len(deck)}
	if err := im.add(ctx, deck, &res); err != nil {
		return res, err
	}
	im.logger.Info("json import complete", "added", res.Added, "skipped", res.Skipped)
	return res, nil
}

// add appends the cards whose content is not in the deck yet. AddCards
// replaces any ID that is already taken.
func (im *Importer) add(ctx context.Context, cards []domain.Card, res *Result) error {
	current := im.deck.Deck()
	seen := make(map[string]bool, len(current))
	for _, c := range current {
		seen[fingerprint.Of(c)] = true
	}

	var fresh []domain.Card
	for _, c := range fingerprint.Stamp(cards) {
		if seen[c.Hash] {
			res.Skipped++
			continue
		}
		seen[c.Hash] = true
		fresh = append(fresh, c)
	}

	if len(fresh) == 0 {
		return nil
	}
	if _, err := im.deck.AddCards(ctx, fresh...); err != nil {
		return err
	}
	res.Added = len(fresh)
	return nil
}
