package main

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"studyrag/internal/config"
	"studyrag/internal/logger"
	"studyrag/internal/progress"
	"studyrag/internal/session"
)

type rootOptions struct {
	cfgFile string
	verbose bool
}

var (
	headingColor = color.New(color.FgCyan, color.Bold)
	sourceColor  = color.New(color.FgHiBlack)
	warnColor    = color.New(color.FgYellow)
)

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:   "studyrag",
		Short: "Ask questions about your study material",
		Long: `studyrag loads lecture notes, textbooks and slides (text, PDF, DOCX,
spreadsheets and images), indexes them locally and answers questions,
writes notes and builds flashcards grounded in those documents.`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			logger.SetOutput(cmd.ErrOrStderr())
			logger.SetVerbose(opts.verbose)
		},
	}
	root.PersistentFlags().StringVar(&opts.cfgFile, "config", "", "config file path (default ./studyrag.yaml or ~/.config/studyrag/config.yaml)")
	root.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "verbose output")

	root.AddCommand(
		newChatCmd(opts),
		newAskCmd(opts),
		newSearchCmd(opts),
		newNotesCmd(opts),
		newFlashcardsCmd(opts),
		newSummaryCmd(opts),
		newConfigCmd(opts),
	)
	return root
}

func (o *rootOptions) loadConfig() (*config.AppConfig, error) {
	if o.cfgFile != "" {
		return config.Load(o.cfgFile)
	}
	cfg, path, err := config.LoadDefault()
	if err != nil {
		return nil, err
	}
	logger.Debug("using config %s", path)
	return cfg, nil
}

// openSession builds a session from the config and loads files into it.
// A file that fails to load is reported and skipped.
func (o *rootOptions) openSession(ctx context.Context, cmd *cobra.Command, files []string) (*session.Session, error) {
	cfg, err := o.loadConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	models, err := session.NewModels(cfg)
	if err != nil {
		return nil, err
	}
	sess, err := session.FromConfig(ctx, cfg, models)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return sess, nil
	}

	logger.Section("Loading documents")
	rep := progress.NewReporter(cmd.ErrOrStderr())
	if logger.IsVerbose() {
		// a redrawn bar would garble the interleaved log lines
		rep = progress.NewLineReporter(cmd.ErrOrStderr())
	}
	rep.Start(len(files))
	var failed []error
	for i, path := range files {
		if _, err := sess.AddDocument(ctx, path); err != nil {
			failed = append(failed, err)
		}
		rep.Update(i+1, filepath.Base(path))
	}
	rep.Finish()
	for _, err := range failed {
		logger.Error("skipped: %v", err)
	}
	logger.Info("%d documents, %d passages indexed", len(sess.Documents()), sess.PassageCount())
	return sess, nil
}
