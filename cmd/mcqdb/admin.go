package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/pavelanni/mcqdb/internal/app"
	"github.com/pavelanni/mcqdb/internal/i18n"
	"github.com/pavelanni/mcqdb/internal/model"
	"github.com/pavelanni/mcqdb/internal/presence"
	"github.com/pavelanni/mcqdb/internal/settings"
)

var errNoAdminPassword = errors.New("no admin password configured: run `mcqdb admin set-password` first")

// settingsRunE wraps a command body that only needs the local settings.
func settingsRunE(run func(ctx context.Context, cmd *cobra.Command, set *settings.Settings, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		setupLogging(cmd)
		v := viperForCmd(cmd)
		set, err := loadSettings(v)
		if err != nil {
			return err
		}
		ctx := i18n.WithLocalizer(cmd.Context(), i18n.NewLocalizer(v.GetString("lang")))
		return run(ctx, cmd, set, args)
	}
}

func taxonomyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "taxonomy",
		Short: "List and extend subjects, topics and classifications",
	}

	list := &cobra.Command{
		Use:   "list [subject]",
		Short: "List subjects, or the topics and classifications of one subject",
		Args:  cobra.MaximumNArgs(1),
		RunE: settingsRunE(func(_ context.Context, cmd *cobra.Command, set *settings.Settings, args []string) error {
			w := cmd.OutOrStdout()
			if len(args) == 0 {
				for _, s := range set.Subjects() {
					fmt.Fprintln(w, s)
				}
				return nil
			}
			fmt.Fprintf(w, "Topics: %s\n", strings.Join(set.Topics(args[0]), ", "))
			fmt.Fprintf(w, "Classifications: %s\n", strings.Join(set.Classifications(args[0]), ", "))
			return nil
		}),
	}
	settingsFlags(list)

	addSubject := &cobra.Command{
		Use:   "add-subject <name>",
		Short: "Add a subject",
		Args:  cobra.ExactArgs(1),
		RunE: settingsRunE(func(ctx context.Context, cmd *cobra.Command, set *settings.Settings, args []string) error {
			added, err := set.AddSubject(args[0])
			if err != nil {
				return err
			}
			printAdded(ctx, cmd.OutOrStdout(), added, "SubjectAdded", map[string]any{"Name": args[0]})
			return nil
		}),
	}
	settingsFlags(addSubject)

	cmd.AddCommand(
		list,
		addSubject,
		addItemCmd("add-topic", "Add a topic to a subject", "TopicAdded",
			func(set *settings.Settings) func(string, string) (bool, error) { return set.AddTopic }),
		addItemCmd("add-classification", "Add a classification to a subject", "ClassificationAdded",
			func(set *settings.Settings) func(string, string) (bool, error) { return set.AddClassification }),
	)
	return cmd
}

func addItemCmd(use, short, msgID string, adder func(*settings.Settings) func(string, string) (bool, error)) *cobra.Command {
	cmd := &cobra.Command{
		Use:   use + " <subject> <name>",
		Short: short,
		Args:  cobra.ExactArgs(2),
		RunE: settingsRunE(func(ctx context.Context, cmd *cobra.Command, set *settings.Settings, args []string) error {
			added, err := adder(set)(args[0], args[1])
			if err != nil {
				return err
			}
			printAdded(ctx, cmd.OutOrStdout(), added, msgID, map[string]any{"Name": args[1], "Subject": args[0]})
			return nil
		}),
	}
	settingsFlags(cmd)
	return cmd
}

func printAdded(ctx context.Context, w io.Writer, added bool, msgID string, data map[string]any) {
	if !added {
		msgID = "AlreadyExists"
	}
	fmt.Fprintln(w, i18n.Td(ctx, msgID, data))
}

// checkAdmin verifies the admin password given by flag or environment.
func checkAdmin(cmd *cobra.Command, s *app.Session) error {
	if !s.Settings.HasAdminPassword() {
		return errNoAdminPassword
	}
	password := viperForCmd(cmd).GetString("admin-password")
	if !s.Settings.CheckAdminPassword(password) {
		return errors.New("wrong admin password")
	}
	return nil
}

func usersCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "users [username]",
		Short: "Show user activity and presence (admin)",
		Args:  cobra.MaximumNArgs(1),
		RunE: sessionRunE(func(ctx context.Context, cmd *cobra.Command, s *app.Session, args []string) error {
			if err := checkAdmin(cmd, s); err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			if len(args) == 1 {
				d, err := s.UserDetails(ctx, args[0])
				if err != nil {
					return err
				}
				printUserDetails(w, d)
				return nil
			}

			show := func(ctx context.Context) {
				view, err := s.AdminSummary(ctx)
				if err != nil {
					fmt.Fprintln(cmd.ErrOrStderr(), i18n.Err(ctx, err))
					return
				}
				printAdminView(ctx, w, view)
			}
			watch, _ := cmd.Flags().GetBool("watch")
			if !watch {
				show(ctx)
				return nil
			}
			interval, _ := cmd.Flags().GetDuration("interval")
			if err := presence.Poll(ctx, interval, show); !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		}),
	}
	f := cmd.Flags()
	f.Bool("watch", false, "Refresh until interrupted")
	f.Duration("interval", presence.DefaultPollInterval, "Refresh interval for --watch")
	f.String("admin-password", "", "Admin password (or set MCQDB_ADMIN_PASSWORD)")
	sessionFlags(cmd)
	return cmd
}

func printAdminView(ctx context.Context, w io.Writer, view *app.AdminView) {
	sum := view.Summary
	fmt.Fprintf(w, "Users: %d  Online: %d  Sessions: %d  Time: %s  Questions: %d (created %d)\n",
		sum.TotalUsers, sum.OnlineUsers, sum.TotalSessions,
		presence.FormatDuration(sum.TotalTimeSeconds), sum.TotalQuestions, sum.QuestionsCreated)
	if sum.OnlineUsers == 0 {
		fmt.Fprintln(w, i18n.T(ctx, "NoUsersOnline"))
	} else {
		fmt.Fprintln(w, i18n.Tp(ctx, "UsersOnline", int(sum.OnlineUsers)))
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "USER\tSTATUS\tLAST SEEN\tSESSIONS\tTIME\tQUESTIONS")
	for _, u := range view.Users {
		status := model.StatusOffline
		if u.Online {
			status = model.StatusOnline
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\t%d\n", u.Username, status, u.LastSeen, u.TotalSessions, u.TotalTime, u.QuestionsCreated)
	}
	tw.Flush()
	fmt.Fprintln(w, i18n.Td(ctx, "AdminRefreshed", map[string]any{"Time": view.RefreshedAt.Local().Format(time.TimeOnly)}))
}

func printUserDetails(w io.Writer, d *app.UserDetails) {
	fmt.Fprintf(w, "Username:   %s\n", d.Username)
	fmt.Fprintf(w, "Full name:  %s\n", d.Profile.FullName)
	fmt.Fprintf(w, "Email:      %s\n", d.Profile.Email)
	fmt.Fprintf(w, "Department: %s\n", d.Profile.Department)
	fmt.Fprintf(w, "Role:       %s\n", d.Profile.Role)
	fmt.Fprintf(w, "Status:     %s\n", d.Status)
	fmt.Fprintf(w, "Sessions:   %d (%s)\n", d.TotalSessions, presence.FormatDuration(d.TotalTimeSeconds))
	fmt.Fprintf(w, "Questions:  %d created, %d in the bank\n", d.QuestionsCreated, d.Authored)
	if len(d.Recent) == 0 {
		return
	}
	fmt.Fprintln(w, "\nRecent sessions:")
	for _, rec := range d.Recent {
		fmt.Fprintf(w, "  %s  %s\n", rec.Start.Local().Format(time.DateTime), presence.FormatDuration(rec.DurationSeconds))
	}
}

func profileCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "profile",
		Short: "Show or update your profile",
		RunE: sessionRunE(func(ctx context.Context, cmd *cobra.Command, s *app.Session, _ []string) error {
			u, err := s.Profile(ctx)
			if err != nil {
				return err
			}
			f := cmd.Flags()
			p := u.Profile
			fields := map[string]*string{
				"full-name":  &p.FullName,
				"email":      &p.Email,
				"department": &p.Department,
				"role":       &p.Role,
				"bio":        &p.Bio,
			}
			changed := false
			for name, dst := range fields {
				if f.Changed(name) {
					*dst, _ = f.GetString(name)
					changed = true
				}
			}
			if changed {
				if err := s.UpdateProfile(ctx, p); err != nil {
					return err
				}
			}
			d, err := s.UserDetails(ctx, s.Username)
			if err != nil {
				return err
			}
			printUserDetails(cmd.OutOrStdout(), d)
			return nil
		}),
	}
	f := cmd.Flags()
	f.String("full-name", "", "Full name")
	f.String("email", "", "Email")
	f.String("department", "", "Department")
	f.String("role", "", "Role")
	f.String("bio", "", "Short bio")
	sessionFlags(cmd)
	return cmd
}

func adminCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "admin",
		Short: "Administrative settings",
	}
	setPassword := &cobra.Command{
		Use:   "set-password",
		Short: "Set the admin password (read from stdin when --password is empty)",
		RunE: settingsRunE(func(ctx context.Context, cmd *cobra.Command, set *settings.Settings, _ []string) error {
			password, _ := cmd.Flags().GetString("password")
			if password == "" {
				fmt.Fprint(cmd.ErrOrStderr(), "New admin password: ")
				line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
				if err != nil && !errors.Is(err, io.EOF) {
					return fmt.Errorf("read password: %w", err)
				}
				password = strings.TrimSpace(line)
			}
			if err := set.SetAdminPassword(password); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), i18n.T(ctx, "PasswordSet"))
			return nil
		}),
	}
	setPassword.Flags().String("password", "", "New admin password")
	settingsFlags(setPassword)
	cmd.AddCommand(setPassword)
	return cmd
}
