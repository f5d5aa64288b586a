package main

import (
	"fmt"
	"io"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"studyrag/internal/domain"
	"studyrag/internal/generator"
	"studyrag/internal/session"
	"studyrag/internal/tui"
)

func newChatCmd(opts *rootOptions) *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "chat [files...]",
		Short: "Interactive study chat over the given documents",
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := generator.ParseFormat(format)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			sess, err := opts.openSession(ctx, cmd, args)
			if err != nil {
				return err
			}
			_, err = tea.NewProgram(tui.New(ctx, sess, f), tea.WithAltScreen()).Run()
			return err
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", "full", "answer format: "+formatList())
	return cmd
}

func newAskCmd(opts *rootOptions) *cobra.Command {
	var (
		format string
		doc    string
		topK   int
	)
	cmd := &cobra.Command{
		Use:   "ask <question> <files...>",
		Short: "Answer one question from the given documents",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := generator.ParseFormat(format)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			sess, err := opts.openSession(ctx, cmd, args[1:])
			if err != nil {
				return err
			}
			askOpts := []session.AskOption{session.WithFormat(f), session.WithTopK(topK)}
			if doc != "" {
				d, err := sess.Document(doc)
				if err != nil {
					return err
				}
				askOpts = append(askOpts, session.InDocument(d.ID))
			}
			ans, err := sess.Ask(ctx, args[0], askOpts...)
			if err != nil {
				return err
			}
			printAnswer(cmd.OutOrStdout(), ans)
			return nil
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", "full", "answer format: "+formatList())
	cmd.Flags().StringVar(&doc, "doc", "", "restrict retrieval to one document (id or file name)")
	cmd.Flags().IntVarP(&topK, "top-k", "k", 0, "passages to retrieve (0 uses the configured value)")
	return cmd
}

func newSearchCmd(opts *rootOptions) *cobra.Command {
	var topK int
	cmd := &cobra.Command{
		Use:   "search <query> <files...>",
		Short: "Show the passages most similar to a query",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			sess, err := opts.openSession(ctx, cmd, args[1:])
			if err != nil {
				return err
			}
			res, err := sess.Retrieve(ctx, domain.Query{Text: args[0]}, session.WithTopK(topK))
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			if res.Empty() {
				fmt.Fprintln(w, "No results found.")
				return nil
			}
			for i, it := range res.Items {
				headingColor.Fprintf(w, "%d. %s", i+1, sourceLabel(it.Passage))
				sourceColor.Fprintf(w, "  score=%.3f\n", it.Score)
				fmt.Fprintf(w, "%s\n\n", strings.TrimSpace(it.Passage.Text))
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&topK, "top-k", "k", 0, "passages to show (0 uses the configured value)")
	return cmd
}

func newNotesCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "notes <topic> <files...>",
		Short: "Write study notes on a topic",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			sess, err := opts.openSession(ctx, cmd, args[1:])
			if err != nil {
				return err
			}
			n, err := sess.Notes(ctx, args[0])
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			headingColor.Fprintf(w, "Notes: %s\n", n.Topic)
			fmt.Fprintln(w, n.Text)
			printCitations(w, n.Citations)
			return nil
		},
	}
}

func newFlashcardsCmd(opts *rootOptions) *cobra.Command {
	var (
		count int
		doc   string
	)
	cmd := &cobra.Command{
		Use:   "flashcards <files...>",
		Short: "Generate flashcards from documents",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			sess, err := opts.openSession(ctx, cmd, args)
			if err != nil {
				return err
			}
			id := ""
			if doc != "" {
				d, err := sess.Document(doc)
				if err != nil {
					return err
				}
				id = d.ID
			}
			cards, err := sess.Flashcards(ctx, id, count)
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			if len(cards) == 0 {
				fmt.Fprintln(w, "No flashcards could be generated.")
				return nil
			}
			for i, c := range cards {
				headingColor.Fprintf(w, "Flashcard %d\n", i+1)
				fmt.Fprintf(w, "  Q: %s\n  A: %s\n\n", c.Question, c.Answer)
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&count, "count", "n", 5, "number of flashcards")
	cmd.Flags().StringVar(&doc, "doc", "", "only use one document (id or file name)")
	return cmd
}

func newSummaryCmd(opts *rootOptions) *cobra.Command {
	var sentences int
	cmd := &cobra.Command{
		Use:   "summary <file>",
		Short: "Summarize a document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := opts.openSession(cmd.Context(), cmd, args)
			if err != nil {
				return err
			}
			docs := sess.Documents()
			if len(docs) == 0 {
				return fmt.Errorf("could not load %s", args[0])
			}
			text, err := sess.Summary(docs[0].ID, sentences)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), text)
			return nil
		},
	}
	cmd.Flags().IntVarP(&sentences, "sentences", "s", 5, "maximum sentences")
	return cmd
}

func printAnswer(w io.Writer, a domain.Answer) {
	if a.LowConfidence {
		warnColor.Fprintln(w, "No supporting passages were found.")
	}
	fmt.Fprintln(w, a.Text)
	printCitations(w, a.Citations)
}

func printCitations(w io.Writer, cs []domain.Citation) {
	if len(cs) == 0 {
		return
	}
	fmt.Fprintln(w)
	headingColor.Fprintln(w, "Sources")
	for i, c := range cs {
		sourceColor.Fprintf(w, "  [%d] %s (%.2f)\n", i+1, sourceLabel(c.Passage), c.Score)
	}
}

func sourceLabel(p domain.Passage) string {
	if p.Label != "" {
		return p.DocumentName + ", " + p.Label
	}
	return p.DocumentName
}

func formatList() string {
	names := make([]string, 0, len(generator.Formats()))
	for _, f := range generator.Formats() {
		names = append(names, string(f))
	}
	return strings.Join(names, ", ")
}
