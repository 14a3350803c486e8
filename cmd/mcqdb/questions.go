package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/pavelanni/mcqdb/internal/app"
	"github.com/pavelanni/mcqdb/internal/filter"
	"github.com/pavelanni/mcqdb/internal/i18n"
	"github.com/pavelanni/mcqdb/internal/model"
	"github.com/pavelanni/mcqdb/internal/page"
	"github.com/pavelanni/mcqdb/internal/validate"
)

// sessionRunE wraps a command body with logging setup and a store session.
func sessionRunE(run func(ctx context.Context, cmd *cobra.Command, s *app.Session, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		setupLogging(cmd)
		v := viperForCmd(cmd)
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		sess, closeSession, err := openSession(ctx, v)
		if err != nil {
			return err
		}
		defer closeSession()
		ctx = i18n.WithLocalizer(ctx, i18n.NewLocalizer(v.GetString("lang")))
		if err := run(ctx, cmd, sess, args); err != nil {
			return errors.New(i18n.Err(ctx, err))
		}
		return nil
	}
}

// criteriaFlags registers the browse filter flags.
func criteriaFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.String("subject", filter.All, "Filter by subject")
	f.String("topic", filter.All, "Filter by topic")
	f.String("classification", filter.All, "Filter by classification")
	f.String("level", filter.All, "Filter by level (easy, medium, hard)")
	f.Bool("mine", false, "Only questions created by you")
	f.StringP("search", "s", "", "Case-insensitive text search")
}

func criteriaFromFlags(cmd *cobra.Command) filter.Criteria {
	f := cmd.Flags()
	str := func(name string) string {
		v, _ := f.GetString(name)
		return v
	}
	scope := filter.ScopeAll
	if mine, _ := f.GetBool("mine"); mine {
		scope = filter.ScopeMine
	}
	return filter.Criteria{
		Subject:        str("subject"),
		Topic:          str("topic"),
		Classification: str("classification"),
		Level:          str("level"),
		Author:         scope,
		Search:         str("search"),
	}
}

func browseCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "browse",
		Short: "List questions page by page",
		RunE: sessionRunE(func(ctx context.Context, cmd *cobra.Command, s *app.Session, _ []string) error {
			pageNum, _ := cmd.Flags().GetInt("page")
			width, _ := cmd.Flags().GetInt("width")
			if interactive, _ := cmd.Flags().GetBool("interactive"); interactive {
				qs, err := s.Find(ctx, criteriaFromFlags(cmd))
				if err != nil {
					return err
				}
				pg := &pager{
					questions: qs,
					page:      page.New(len(qs), s.PageSize(width), pageNum-1),
					sizeFor:   s.PageSize,
				}
				return pg.run(ctx, cmd.InOrStdin(), cmd.OutOrStdout())
			}
			res, err := s.Browse(ctx, criteriaFromFlags(cmd), pageNum-1, width)
			if err != nil {
				return err
			}
			printPage(ctx, cmd.OutOrStdout(), res.Page, res.Questions)
			return nil
		}),
	}
	criteriaFlags(cmd)
	cmd.Flags().IntP("page", "p", 1, "Page number")
	cmd.Flags().Int("width", 0, "Display width in pixels (0 uses the default page size)")
	cmd.Flags().BoolP("interactive", "i", false, "Page through the results with commands read from stdin")
	sessionFlags(cmd)
	return cmd
}

func printPage(ctx context.Context, w io.Writer, p page.Page, qs []model.Question) {
	for i, q := range qs {
		fmt.Fprintf(w, "%3d. [%s] %s / %s / %s (%s, %d)\n", p.Start+i+1, q.ID, q.Subject, q.Topic, q.Classification, q.Level, q.Marks)
		fmt.Fprintf(w, "     %s\n", truncate(q.Text, 100))
	}
	fmt.Fprintln(w, i18n.Td(ctx, "PageOf", map[string]any{
		"Page":  p.Index + 1,
		"Pages": p.TotalPages,
		"Total": p.Total,
	}))
}

// pager walks a result set one page at a time. A width change recomputes the
// page size and keeps the reader on the same page where it still exists.
type pager struct {
	questions []model.Question
	page      page.Page
	sizeFor   func(width int) int
}

func (pg *pager) run(ctx context.Context, in io.Reader, w io.Writer) error {
	sc := bufio.NewScanner(in)
	for {
		printPage(ctx, w, pg.page, page.Slice(pg.questions, pg.page))
		fmt.Fprint(w, "[n]ext [p]rev [w]idth <px> [q]uit: ")
		if !sc.Scan() {
			fmt.Fprintln(w)
			return sc.Err()
		}
		fields := strings.Fields(sc.Text())
		if len(fields) == 0 {
			continue
		}
		switch fields[0] {
		case "n":
			pg.page = pg.page.Next()
		case "p":
			pg.page = pg.page.Prev()
		case "w":
			width := 0
			if len(fields) == 2 {
				width, _ = strconv.Atoi(fields[1])
			}
			if width <= 0 {
				fmt.Fprintln(w, "usage: w <width in pixels>")
				continue
			}
			pg.page = pg.page.Resize(pg.sizeFor(width))
		case "q":
			return nil
		}
	}
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}

func printQuestion(w io.Writer, q *model.Question) {
	fmt.Fprintf(w, "ID:             %s\n", q.ID)
	fmt.Fprintf(w, "Subject:        %s\n", q.Subject)
	fmt.Fprintf(w, "Topic:          %s\n", q.Topic)
	fmt.Fprintf(w, "Classification: %s\n", q.Classification)
	fmt.Fprintf(w, "Level:          %s\n", q.Level)
	fmt.Fprintf(w, "Marks:          %d\n", q.Marks)
	fmt.Fprintf(w, "Created by:     %s\n", q.CreatedBy)
	fmt.Fprintf(w, "\n%s\n\n", q.Text)
	answer := q.AnswerIndex()
	for i, o := range q.Options() {
		mark := " "
		if i+1 == answer {
			mark = "*"
		}
		fmt.Fprintf(w, " %s %d) %s\n", mark, i+1, o)
	}
}

func showCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show one question",
		Args:  cobra.ExactArgs(1),
		RunE: sessionRunE(func(ctx context.Context, cmd *cobra.Command, s *app.Session, args []string) error {
			q, err := s.Get(ctx, args[0])
			if err != nil {
				return err
			}
			printQuestion(cmd.OutOrStdout(), q)
			return nil
		}),
	}
	sessionFlags(cmd)
	return cmd
}

// questionFlags registers one flag per editable question field.
func questionFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.String("subject", "", "Subject")
	f.String("topic", "", "Topic")
	f.String("classification", "", "Classification")
	f.StringP("question", "q", "", "Question text")
	f.String("option1", "", "First option")
	f.String("option2", "", "Second option")
	f.String("option3", "", "Third option")
	f.String("option4", "", "Fourth option")
	f.String("answer", "", "Correct answer, the text of one option")
	f.String("level", string(model.LevelEasy), "Level (easy, medium, hard)")
	f.String("marks", "1", "Marks, a positive whole number")
}

// applyQuestionFlags copies the flags the user set onto q. With all set,
// every flag is applied, including defaults.
func applyQuestionFlags(cmd *cobra.Command, q *model.Question, all bool) error {
	f := cmd.Flags()
	fields := map[string]*string{
		"subject":        &q.Subject,
		"topic":          &q.Topic,
		"classification": &q.Classification,
		"question":       &q.Text,
		"option1":        &q.Option1,
		"option2":        &q.Option2,
		"option3":        &q.Option3,
		"option4":        &q.Option4,
		"answer":         &q.CorrectAnswer,
	}
	for name, dst := range fields {
		if all || f.Changed(name) {
			*dst, _ = f.GetString(name)
		}
	}
	if all || f.Changed("level") {
		l, _ := f.GetString("level")
		level, err := model.ParseLevel(l)
		if err != nil {
			return err
		}
		q.Level = level
	}
	if all || f.Changed("marks") {
		raw, _ := f.GetString("marks")
		marks, err := validate.Marks(raw)
		if err != nil {
			return err
		}
		q.Marks = marks
	}
	return nil
}

func addCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a question",
		RunE: sessionRunE(func(ctx context.Context, cmd *cobra.Command, s *app.Session, _ []string) error {
			var q model.Question
			if err := applyQuestionFlags(cmd, &q, true); err != nil {
				return err
			}
			created, err := s.Create(ctx, q)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), i18n.Tp(ctx, "QuestionsSaved", 1))
			printQuestion(cmd.OutOrStdout(), created)
			return nil
		}),
	}
	questionFlags(cmd)
	sessionFlags(cmd)
	return cmd
}

func editCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "edit <id>",
		Short: "Change fields of a question",
		Args:  cobra.ExactArgs(1),
		RunE: sessionRunE(func(ctx context.Context, cmd *cobra.Command, s *app.Session, args []string) error {
			q, err := s.Get(ctx, args[0])
			if err != nil {
				return err
			}
			if err := applyQuestionFlags(cmd, q, false); err != nil {
				return err
			}
			updated, err := s.Update(ctx, args[0], *q)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), i18n.T(ctx, "QuestionUpdated"))
			printQuestion(cmd.OutOrStdout(), updated)
			return nil
		}),
	}
	questionFlags(cmd)
	sessionFlags(cmd)
	return cmd
}

func deleteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a question after confirmation",
		Args:  cobra.ExactArgs(1),
		RunE: sessionRunE(func(ctx context.Context, cmd *cobra.Command, s *app.Session, args []string) error {
			yes, _ := cmd.Flags().GetBool("yes")
			author, _ := cmd.Flags().GetString("author")
			c := app.Confirmation{Confirmed: yes, Author: author}

			err := s.Delete(ctx, args[0], c)
			var need *app.ConfirmationError
			if errors.As(err, &need) && !yes {
				c, err = askConfirmation(ctx, cmd, need)
				if err != nil {
					return err
				}
				err = s.Delete(ctx, args[0], c)
			}
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), i18n.T(ctx, "QuestionDeleted"))
			return nil
		}),
	}
	f := cmd.Flags()
	f.BoolP("yes", "y", false, "Confirm without asking")
	f.String("author", "", "Author of the question, required with --yes for questions created by someone else")
	sessionFlags(cmd)
	return cmd
}

// askConfirmation puts the confirmation question to the user on the command's
// input. Deleting someone else's question also asks for the author's name.
func askConfirmation(ctx context.Context, cmd *cobra.Command, need *app.ConfirmationError) (app.Confirmation, error) {
	in := bufio.NewReader(cmd.InOrStdin())
	out := cmd.OutOrStdout()
	read := func(prompt string) (string, error) {
		fmt.Fprint(out, prompt)
		line, err := in.ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return "", fmt.Errorf("read answer: %w", err)
		}
		return strings.TrimSpace(line), nil
	}

	answer, err := read(i18n.Err(ctx, need) + " [y/N] ")
	if err != nil {
		return app.Confirmation{}, err
	}
	c := app.Confirmation{Confirmed: strings.EqualFold(answer, "y") || strings.EqualFold(answer, "yes")}
	if c.Confirmed && !need.Own {
		if c.Author, err = read("Author: "); err != nil {
			return app.Confirmation{}, err
		}
	}
	return c, nil
}

func statsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show question bank statistics",
		RunE: sessionRunE(func(ctx context.Context, cmd *cobra.Command, s *app.Session, _ []string) error {
			st, err := s.Stats(ctx)
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "Total questions: %d\n", st.Total)
			fmt.Fprintf(w, "Easy: %d  Medium: %d  Hard: %d\n", st.Easy, st.Medium, st.Hard)
			fmt.Fprintf(w, "Subjects: %d\n", st.Subjects)
			fmt.Fprintf(w, "Created by %s: %d\n", s.Username, st.Mine)
			if len(st.Top) > 0 {
				fmt.Fprintln(w, "\nQuestions per subject:")
				for _, sc := range st.Top {
					fmt.Fprintf(w, "  %-20s %d\n", sc.Subject, sc.Count)
				}
			}
			return nil
		}),
	}
	sessionFlags(cmd)
	return cmd
}
