package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/mattn/go-runewidth"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/conorfennell/studydeck/internal/domain"
	"github.com/conorfennell/studydeck/internal/export"
	"github.com/conorfennell/studydeck/internal/importer"
	"github.com/conorfennell/studydeck/internal/stats"
	"github.com/conorfennell/studydeck/internal/tui"
)

func newReviewCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "review",
		Short: "Review the cards due today",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			session := a.control.StartSession()
			if session.Done() {
				fmt.Fprintln(cmd.OutOrStdout(), "Nothing due today.")
				return nil
			}
			if !isTerminal(cmd.InOrStdin()) {
				return errors.New("review needs an interactive terminal; use \"due\" to list cards")
			}

			model := tui.NewModel(cmd.Context(), a.control, session)
			program := tea.NewProgram(model,
				tea.WithAltScreen(),
				tea.WithContext(cmd.Context()),
				tea.WithInput(cmd.InOrStdin()),
				tea.WithOutput(cmd.OutOrStdout()),
			)
			if _, err := program.Run(); err != nil {
				return fmt.Errorf("failed to run review: %w", err)
			}
			if err := model.Err(); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), model.Summary())
			return nil
		},
	}
}

func newDueCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "due",
		Short: "List the cards due today",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			due := a.control.Due()
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%d of %d card(s) due.\n", len(due), len(a.control.Deck()))
			for _, c := range due {
				when := "new"
				if c.Scheduling != nil {
					when = c.Scheduling.DueDate.Format("2006-01-02")
				}
				fmt.Fprintf(out, "- %s (%s)\n", runewidth.Truncate(firstLine(c.Front), maxFrontWidth, "..."), when)
			}
			return nil
		},
	}
}

func newAddCmd(a *app) *cobra.Command {
	var front, back, note string
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a single card",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			card, err := domain.NewCard(front, back)
			if err != nil {
				return err
			}
			card.Context = note
			deck, err := a.control.AddCards(cmd.Context(), card)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Added card %s (%d in deck).\n", card.ID, len(deck))
			return nil
		},
	}
	cmd.Flags().StringVar(&front, "front", "", "question side")
	cmd.Flags().StringVar(&back, "back", "", "answer side")
	cmd.Flags().StringVar(&note, "context", "", "optional note shown with the answer")
	_ = cmd.MarkFlagRequired("front")
	_ = cmd.MarkFlagRequired("back")
	return cmd
}

func newImportCmd(a *app) *cobra.Command {
	var jsonPath string
	cmd := &cobra.Command{
		Use:   "import [path-or-git-url]",
		Short: "Import markdown cards from a folder or git repository, or a JSON export",
		Args: func(cmd *cobra.Command, args []string) error {
			if jsonPath != "" {
				return cobra.NoArgs(cmd, args)
			}
			return cobra.ExactArgs(1)(cmd, args)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			im := importer.New(a.control, a.cfg.ReposDir, cmd.ErrOrStderr(), a.logger)

			var (
				res importer.Result
				err error
			)
			if jsonPath != "" {
				f, openErr := os.Open(jsonPath)
				if openErr != nil {
					return fmt.Errorf("failed to open %s: %w", jsonPath, openErr)
				}
				defer f.Close()
				res, err = im.ImportJSON(cmd.Context(), f)
			} else {
				res, err = im.Import(cmd.Context(), args[0])
			}
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Found %d cards in %d file(s): %d added, %d already in deck, %d errors.\n",
				res.Parsed, res.Files, res.Added, res.Skipped, len(res.Errors))
			if len(res.Errors) > 0 {
				fmt.Fprintln(out, "\nErrors:")
				for _, e := range res.Errors {
					fmt.Fprintf(out, "- %s\n", e)
				}
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&jsonPath, "json", "", "import a JSON deck export instead")
	return cmd
}

func newExportCmd(a *app) *cobra.Command {
	var outPath string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write the deck to a JSON file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			deck := a.control.Deck()
			if outPath == "-" {
				return export.WriteDeck(cmd.OutOrStdout(), deck)
			}
			f, err := os.Create(outPath)
			if err != nil {
				return fmt.Errorf("failed to create %s: %w", outPath, err)
			}
			if err := export.WriteDeck(f, deck); err != nil {
				f.Close()
				return err
			}
			if err := f.Close(); err != nil {
				return fmt.Errorf("failed to write %s: %w", outPath, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Exported %d card(s) to %s.\n", len(deck), outPath)
			return nil
		},
	}
	cmd.Flags().StringVarP(&outPath, "out", "o", export.FileName(""), "output file, or - for stdout")
	return cmd
}

func newResetCmd(a *app) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Delete every card in the deck",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			n := len(a.control.Deck())
			if !yes {
				ok, err := confirm(cmd.InOrStdin(), cmd.OutOrStdout(),
					fmt.Sprintf("Delete all %d card(s)? This cannot be undone. [y/N] ", n))
				if err != nil {
					return err
				}
				if !ok {
					fmt.Fprintln(cmd.OutOrStdout(), "Aborted.")
					return nil
				}
			}
			if err := a.control.RemoveAll(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %d card(s).\n", n)
			return nil
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "skip the confirmation prompt")
	return cmd
}

func newStatsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show study statistics and badges",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := a.stats.Get(cmd.Context())
			if err != nil {
				return err
			}
			printStats(cmd.OutOrStdout(), s)
			return nil
		},
	}
	cmd.AddCommand(newStatsQuizCmd(a))
	cmd.AddCommand(newStatsTaskCmd(a))
	return cmd
}

func newStatsQuizCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "quiz <score> <total>",
		Short: "Record a finished quiz",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			score, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("invalid score %q: %w", args[0], err)
			}
			total, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("invalid total %q: %w", args[1], err)
			}
			return a.stats.RecordQuiz(cmd.Context(), score, total)
		},
	}
}

func newStatsTaskCmd(a *app) *cobra.Command {
	var undo bool
	cmd := &cobra.Command{
		Use:   "task",
		Short: "Record a completed study task",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.stats.RecordTask(cmd.Context(), !undo)
		},
	}
	cmd.Flags().BoolVar(&undo, "undo", false, "mark a task as not completed")
	return cmd
}

func printStats(w io.Writer, s stats.Stats) {
	last := s.LastActivityDate
	if last == "" {
		last = "never"
	}
	fmt.Fprintf(w, "Streak:              %d day(s) (last active %s)\n", s.Streak, last)
	fmt.Fprintf(w, "Flashcards reviewed: %d\n", s.FlashcardsReviewed)
	fmt.Fprintf(w, "Quizzes completed:   %d (average %.0f%%)\n", s.QuizzesCompleted, s.AvgScore)
	fmt.Fprintf(w, "Tasks completed:     %d\n", s.TasksCompleted)
	fmt.Fprintln(w, "\nBadges:")
	for _, b := range stats.Badges(s) {
		mark := " "
		if b.Unlocked {
			mark = "x"
		}
		fmt.Fprintf(w, "  [%s] %s\n", mark, b.Label)
	}
}

func confirm(in io.Reader, out io.Writer, prompt string) (bool, error) {
	fmt.Fprint(out, prompt)
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return false, fmt.Errorf("failed to read answer: %w", err)
	}
	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "y" || answer == "yes", nil
}

// maxFrontWidth bounds card fronts in listings, in terminal cells.
const maxFrontWidth = 60

func isTerminal(r io.Reader) bool {
	f, ok := r.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

func firstLine(s string) string {
	line, _, _ := strings.Cut(s, "\n")
	return line
}
