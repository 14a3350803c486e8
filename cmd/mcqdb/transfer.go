package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/pavelanni/mcqdb/internal/app"
	"github.com/pavelanni/mcqdb/internal/i18n"
	"github.com/pavelanni/mcqdb/internal/model"
	"github.com/pavelanni/mcqdb/internal/transfer"
)

func importFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.Bool("dry-run", false, "Report what would be imported without storing anything")
	f.Bool("suggestions", false, "Add suggested topics and classifications to the taxonomy")
	f.Bool("validate", false, "Skip records that fail validation")
}

func importOptionsFromFlags(cmd *cobra.Command) (transfer.Options, bool) {
	f := cmd.Flags()
	dryRun, _ := f.GetBool("dry-run")
	suggestions, _ := f.GetBool("suggestions")
	valid, _ := f.GetBool("validate")
	return transfer.Options{ApplySuggestions: suggestions, Validate: valid}, !dryRun
}

func importCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import <file.json|file.csv>",
		Short: "Import questions from a JSON batch or a CSV file",
		Args:  cobra.ExactArgs(1),
		RunE: sessionRunE(func(ctx context.Context, cmd *cobra.Command, s *app.Session, args []string) error {
			b, err := readBatch(args[0])
			if err != nil {
				return err
			}
			opts, commit := importOptionsFromFlags(cmd)
			return runImport(ctx, cmd.OutOrStdout(), s, b, opts, commit)
		}),
	}
	importFlags(cmd)
	sessionFlags(cmd)
	return cmd
}

// readBatch reads a file as CSV when its extension is .csv and as a JSON
// batch otherwise.
func readBatch(path string) (*transfer.Batch, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	if strings.EqualFold(filepath.Ext(path), ".csv") {
		qs, err := transfer.ReadCSV(f)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		if len(qs) == 0 {
			return nil, transfer.ErrNoQuestions
		}
		return &transfer.Batch{Questions: qs}, nil
	}
	data, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	b, err := transfer.DecodeBatch(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return b, nil
}

func runImport(ctx context.Context, w io.Writer, s *app.Session, b *transfer.Batch, opts transfer.Options, commit bool) error {
	im := s.Importer()
	rep, err := im.Plan(ctx, b, opts)
	if err != nil {
		return err
	}
	for _, a := range rep.AddedTopics {
		fmt.Fprintln(w, i18n.Td(ctx, "TopicAdded", map[string]any{"Name": a.Name, "Subject": a.Subject}))
	}
	for _, a := range rep.AddedClassifications {
		fmt.Fprintln(w, i18n.Td(ctx, "ClassificationAdded", map[string]any{"Name": a.Name, "Subject": a.Subject}))
	}
	for _, rj := range rep.Invalid {
		fmt.Fprintf(w, "  #%d %q: %s\n", rj.Index+1, truncate(rj.Question.Text, 60), i18n.Err(ctx, rj.Err))
	}
	fmt.Fprintln(w, i18n.Td(ctx, "ImportSummary", map[string]any{
		"Total":      rep.Total,
		"New":        len(rep.New),
		"Duplicates": len(rep.Duplicates),
		"Invalid":    len(rep.Invalid),
	}))
	if len(rep.New) == 0 {
		if len(rep.Duplicates) > 0 {
			fmt.Fprintln(w, i18n.T(ctx, "AllDuplicates"))
		}
		return nil
	}
	if !commit {
		for _, q := range rep.New {
			fmt.Fprintf(w, "  + [%s] %s\n", q.Subject, truncate(q.Text, 80))
		}
		return nil
	}
	n, err := im.Commit(ctx, rep)
	if err != nil {
		return err
	}
	fmt.Fprintln(w, i18n.Tp(ctx, "QuestionsSaved", n))
	return nil
}

func exportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export matching questions as CSV, or the whole bank as a JSON backup",
		RunE: sessionRunE(func(ctx context.Context, cmd *cobra.Command, s *app.Session, _ []string) error {
			backup, _ := cmd.Flags().GetBool("backup")
			out, _ := cmd.Flags().GetString("output")

			if backup {
				b, err := s.Backup(ctx)
				if err != nil {
					return err
				}
				if out == "" {
					out = transfer.BackupFilename(time.Now())
				}
				return writeOutput(cmd, out, func(w io.Writer) error { return transfer.WriteBackup(w, b) })
			}

			qs, err := s.Find(ctx, criteriaFromFlags(cmd))
			if err != nil {
				return err
			}
			if out == "" {
				out = transfer.ExportFilename(s.Username)
			}
			slog.Info("exporting questions", "count", len(qs), "output", out)
			return writeOutput(cmd, out, func(w io.Writer) error { return transfer.WriteCSV(w, qs) })
		}),
	}
	criteriaFlags(cmd)
	f := cmd.Flags()
	f.Bool("backup", false, "Write a full JSON backup with the taxonomy instead of CSV")
	f.StringP("output", "o", "", "Output file path (- for stdout; default derived from the user or the time)")
	sessionFlags(cmd)
	return cmd
}

func writeOutput(cmd *cobra.Command, path string, write func(io.Writer) error) error {
	if path == "-" {
		return write(cmd.OutOrStdout())
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create output file: %w", err)
	}
	if err := write(f); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close %s: %w", path, err)
	}
	fmt.Fprintln(cmd.ErrOrStderr(), path)
	return nil
}

func promptCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "prompt",
		Short: "Build a question generation prompt, optionally sending it to an LLM",
		RunE: sessionRunE(func(ctx context.Context, cmd *cobra.Command, s *app.Session, _ []string) error {
			f := cmd.Flags()
			var req app.PromptRequest
			req.Count, _ = f.GetInt("count")
			req.Subject, _ = f.GetString("subject")
			level, _ := f.GetString("level")
			var err error
			if req.Level, err = model.ParseLevel(level); err != nil {
				return err
			}
			req.Marks, _ = f.GetInt("marks")
			req.Topics, _ = f.GetStringSlice("topics")
			req.Classifications, _ = f.GetStringSlice("classifications")
			req.Unique, _ = f.GetBool("unique")
			req.Seed, _ = f.GetString("seed")
			req.RandomSeed, _ = f.GetBool("random-seed")
			req.AllowSuggestions, _ = f.GetBool("allow-suggestions")

			p, err := s.Prompt(req)
			if err != nil {
				return err
			}
			if send, _ := f.GetBool("send"); !send {
				fmt.Fprintln(cmd.OutOrStdout(), p.Text)
				return nil
			}

			gen := newGenerator(viperForCmd(cmd))
			if gen == nil {
				return errors.New("sending prompts needs --llm-url or MCQDB_LLM_URL")
			}
			slog.Info("sending prompt", "variant", p.Variant, "count", req.Count, "subject", req.Subject)
			b, err := s.Generate(ctx, gen, p)
			if err != nil {
				return err
			}
			opts, commit := importOptionsFromFlags(cmd)
			opts.ApplySuggestions = opts.ApplySuggestions || req.AllowSuggestions
			return runImport(ctx, cmd.OutOrStdout(), s, b, opts, commit)
		}),
	}
	f := cmd.Flags()
	f.IntP("count", "n", 5, "Number of questions to generate")
	f.String("subject", "", "Subject")
	f.String("level", string(model.LevelEasy), "Level (easy, medium, hard)")
	f.Int("marks", 1, "Marks per question")
	f.StringSlice("topics", nil, "Topics to cover (comma separated)")
	f.StringSlice("classifications", nil, "Classifications to cover (comma separated)")
	f.Bool("unique", false, "Ask for questions distinct from earlier generations")
	f.String("seed", "", "Variation seed for --unique")
	f.Bool("random-seed", false, "Use a fresh random variation seed when --seed is empty")
	f.Bool("allow-suggestions", false, "Let the model suggest new topics or classifications")
	f.Bool("send", false, "Send the prompt to the LLM and import the reply")
	_ = cmd.MarkFlagRequired("subject")
	importFlags(cmd)
	llmFlags(cmd)
	sessionFlags(cmd)
	return cmd
}
