package importer

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conorfennell/studydeck/internal/domain"
	"github.com/conorfennell/studydeck/internal/review"
	"github.com/conorfennell/studydeck/internal/srs"
	"github.com/conorfennell/studydeck/internal/storage"
)

func newController(t *testing.T) *review.Controller {
	t.Helper()
	c := review.NewController(storage.NewMemory(), review.Options{})
	require.NoError(t, c.Load(context.Background()))
	return c
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestImportDirectory(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "a.md"), "Q: One\nA: 1\n---\nQ: Two\nA: 2\n")
	writeFile(t, filepath.Join(dir, "nested", "b.MD"), "Q: Three\nA: 3\nC: numbers\n")
	writeFile(t, filepath.Join(dir, "notes.txt"), "Q: Ignored\nA: x\n")

	ctrl := newController(t)
	im := New(ctrl, t.TempDir(), nil, nil)

	res, err := im.Import(context.Background(), dir)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Files)
	assert.Equal(t, 3, res.Parsed)
	assert.Equal(t, 3, res.Added)
	assert.Zero(t, res.Skipped)
	assert.Empty(t, res.Errors)

	deck := ctrl.Deck()
	require.Len(t, deck, 3)
	for _, c := range deck {
		assert.NotEmpty(t, c.ID)
		assert.NotEmpty(t, c.Hash)
		assert.Nil(t, c.Scheduling)
	}
}

func TestImportTwiceAddsNothing(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "a.md"), "Q: One\nA: 1\n")

	ctrl := newController(t)
	im := New(ctrl, t.TempDir(), nil, nil)
	ctx := context.Background()

	_, err := im.Import(ctx, dir)
	require.NoError(t, err)
	res, err := im.Import(ctx, dir)
	require.NoError(t, err)
	assert.Zero(t, res.Added)
	assert.Equal(t, 1, res.Skipped)
	assert.Len(t, ctrl.Deck(), 1)
}

func TestImportSkipsDuplicatesWithinBatch(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "a.md"), "Q: One\nA: 1\n")
	writeFile(t, filepath.Join(dir, "b.md"), "Q:  one \nA: 1\n")

	ctrl := newController(t)
	res, err := New(ctrl, "", nil, nil).Import(context.Background(), dir)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Added)
	assert.Equal(t, 1, res.Skipped)
}

func TestImportMatchesCardsAddedByHand(t *testing.T) {
	ctx := context.Background()
	ctrl := newController(t)
	card, err := domain.NewCard("One", "1")
	require.NoError(t, err)
	_, err = ctrl.AddCards(ctx, card)
	require.NoError(t, err)

	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "a.md"), "Q: One\nA: 1\n")
	res, err := New(ctrl, "", nil, nil).Import(ctx, dir)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Skipped)
	assert.Len(t, ctrl.Deck(), 1)
}

func TestImportReportsIncompleteCards(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "a.md"), "Q: No answer\n---\nQ: Good\nA: yes\n")

	ctrl := newController(t)
	res, err := New(ctrl, "", nil, nil).Import(context.Background(), dir)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Added)
	require.Len(t, res.Errors, 1)
	assert.ErrorIs(t, res.Errors[0], domain.ErrValidation)
}

func TestImportMissingPath(t *testing.T) {
	ctrl := newController(t)
	_, err := New(ctrl, "", nil, nil).Import(context.Background(), filepath.Join(t.TempDir(), "missing"))
	assert.Error(t, err)
}

func TestImportGitRepository(t *testing.T) {
	origin := t.TempDir()
	repo, err := git.PlainInit(origin, false)
	require.NoError(t, err)
	writeFile(t, filepath.Join(origin, "deck.md"), "Q: Capital of France?\nA: Paris\n")
	wt, err := repo.Worktree()
	require.NoError(t, err)
	_, err = wt.Add("deck.md")
	require.NoError(t, err)
	_, err = wt.Commit("cards", &git.CommitOptions{
		Author: &object.Signature{Name: "test", Email: "test@example.com", When: time.Now()},
	})
	require.NoError(t, err)

	// A file:// URL is treated as a remote and cloned under reposDir.
	reposDir := t.TempDir()
	ctrl := newController(t)
	res, err := New(ctrl, reposDir, nil, nil).Import(context.Background(), "file://"+origin)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Added)
	assert.Equal(t, "Paris", ctrl.Deck()[0].Back)
}

func TestImportJSONKeepsScheduling(t *testing.T) {
	ctx := context.Background()
	ctrl := newController(t)
	existing, err := domain.NewCard("Old", "card")
	require.NoError(t, err)
	_, err = ctrl.AddCards(ctx, existing)
	require.NoError(t, err)

	doc := `{"deck": [
		{"id": "` + existing.ID + `", "front": "Clashing id", "back": "x"},
		{"id": "fresh", "front": "Scheduled", "back": "y",
		 "scheduling": {"interval": 6, "easeFactor": 2.6, "dueDate": "2026-10-24T00:00:00Z"}},
		{"front": "Old", "back": "card"}
	]}`

	res, err := New(ctrl, "", nil, nil).ImportJSON(ctx, strings.NewReader(doc))
	require.NoError(t, err)
	assert.Equal(t, 2, res.Added)
	assert.Equal(t, 1, res.Skipped)

	deck := ctrl.Deck()
	require.Len(t, deck, 3)
	assert.NotEqual(t, existing.ID, deck[1].ID)
	assert.NotEmpty(t, deck[1].ID)
	assert.Equal(t, "fresh", deck[2].ID)
	require.NotNil(t, deck[2].Scheduling)
	assert.Equal(t, 6, deck[2].Scheduling.Interval)
}

func TestImportJSONRepeatedIDs(t *testing.T) {
	ctx := context.Background()
	ctrl := newController(t)
	doc := `{"deck": [
		{"id": "x", "front": "A", "back": "1"},
		{"id": "x", "front": "B", "back": "2"}
	]}`

	res, err := New(ctrl, "", nil, nil).ImportJSON(ctx, strings.NewReader(doc))
	require.NoError(t, err)
	assert.Equal(t, 2, res.Added)

	deck := ctrl.Deck()
	require.Len(t, deck, 2)
	assert.NotEqual(t, deck[0].ID, deck[1].ID)

	s := ctrl.StartSession()
	for !s.Done() {
		_, err := ctrl.Grade(ctx, s, srs.Good)
		require.NoError(t, err)
	}
	for _, c := range ctrl.Deck() {
		assert.NotNil(t, c.Scheduling, c.Front)
	}
	assert.Empty(t, ctrl.Due())
}

func TestImportJSONInvalid(t *testing.T) {
	ctrl := newController(t)
	_, err := New(ctrl, "", nil, nil).ImportJSON(context.Background(), strings.NewReader("nope"))
	assert.ErrorIs(t, err, domain.ErrInvalidFormat)
}
