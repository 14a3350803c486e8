package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pavelanni/mcqdb/internal/app"
	"github.com/pavelanni/mcqdb/internal/handler"
	"github.com/pavelanni/mcqdb/internal/i18n"
	"github.com/pavelanni/mcqdb/internal/llm"
	"github.com/pavelanni/mcqdb/internal/page"
	"github.com/pavelanni/mcqdb/internal/presence"
	"github.com/pavelanni/mcqdb/internal/settings"
	"github.com/pavelanni/mcqdb/internal/store"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "mcqdb",
		Short:        "Multiple-choice question bank manager",
		SilenceUsage: true,
	}

	serve := serveCmd()
	root.AddCommand(
		serve,
		browseCmd(),
		showCmd(),
		addCmd(),
		editCmd(),
		deleteCmd(),
		importCmd(),
		exportCmd(),
		promptCmd(),
		statsCmd(),
		taxonomyCmd(),
		usersCmd(),
		profileCmd(),
		adminCmd(),
	)

	// Make "serve" the default when no subcommand is given.
	root.RunE = serve.RunE

	// Register serve flags on root so bare `mcqdb --addr ...` still works.
	root.Flags().AddFlagSet(serve.Flags())

	return root
}

// logFlags registers the logging flags every command carries.
func logFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.String("log-level", "info", "Log level (debug, info, warn, error)")
	f.String("log-format", "text", "Log format (text, json)")
}

// settingsFlags registers the flags of commands that only touch local settings.
func settingsFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.String("settings", settings.DefaultFile, "Path of the JSON settings file holding the subject taxonomy")
	f.StringP("lang", "l", "en", "Message language (en, ru)")
	logFlags(cmd)
}

// sessionFlags registers the flags of commands that work on the question bank.
func sessionFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.String("store", "sqlite://mcqdb.db", "Store URI (mongodb://, mongodb+srv://, sqlite:// or :memory:)")
	f.String("store-password", "", "Store password, substituted for {password} in the URI")
	f.String("database", store.DefaultDatabase, "MongoDB database name")
	f.StringP("user", "u", "", "Username to work as (remembered in the settings file)")
	f.Int("page-size", page.DefaultSize, "Questions per page")
	f.Int("compact-page-size", page.CompactSize, "Questions per page on narrow displays")
	f.Int("breakpoint", page.Breakpoint, "Display width in pixels below which the compact page size applies")
	settingsFlags(cmd)
}

func llmFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.String("llm-url", "", "OpenAI-compatible API base URL (empty disables sending prompts)")
	f.String("llm-key", "", "API key for LLM")
	f.String("llm-model", "gpt-4o-mini", "LLM model name")
}

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP JSON API",
		RunE:  runServe,
	}
	cmd.Flags().StringP("addr", "a", ":8080", "HTTP listen address")
	sessionFlags(cmd)
	llmFlags(cmd)
	return cmd
}

func setupLogging(cmd *cobra.Command) {
	v := viperForCmd(cmd)

	var logLevel slog.Level
	switch strings.ToLower(v.GetString("log-level")) {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}
	handlerOpts := &slog.HandlerOptions{Level: logLevel}
	var logHandler slog.Handler
	switch strings.ToLower(v.GetString("log-format")) {
	case "json":
		logHandler = slog.NewJSONHandler(os.Stderr, handlerOpts)
	default:
		logHandler = slog.NewTextHandler(os.Stderr, handlerOpts)
	}
	slog.SetDefault(slog.New(logHandler))
}

// viperForCmd binds a command's flags and environment to a fresh viper instance.
func viperForCmd(cmd *cobra.Command) *viper.Viper {
	v := viper.New()
	_ = v.BindPFlags(cmd.Flags())

	v.SetEnvPrefix("MCQDB")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetConfigName("mcqdb")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME/.config/mcqdb")
	v.AddConfigPath("/etc/mcqdb")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			slog.Warn("error reading config file", "error", err)
		}
	} else {
		slog.Debug("loaded config file", "path", v.ConfigFileUsed())
	}

	return v
}

// loadSettings initializes localization and reads the settings file.
func loadSettings(v *viper.Viper) (*settings.Settings, error) {
	if err := i18n.Init(v.GetString("lang")); err != nil {
		return nil, fmt.Errorf("init i18n: %w", err)
	}
	set, err := settings.Load(v.GetString("settings"))
	if err != nil {
		return nil, fmt.Errorf("load settings: %w", err)
	}
	return set, nil
}

// openSession connects to the store and starts presence tracking for the
// session user. The returned close function ends the session.
func openSession(ctx context.Context, v *viper.Viper) (*app.Session, func(), error) {
	set, err := loadSettings(v)
	if err != nil {
		return nil, nil, err
	}

	username := strings.TrimSpace(v.GetString("user"))
	switch {
	case username == "":
		username = set.Username()
	case username != set.Username():
		if err := set.SetUsername(username); err != nil {
			return nil, nil, fmt.Errorf("remember username: %w", err)
		}
	}
	if username == "" {
		return nil, nil, errors.New("no username: pass --user or set MCQDB_USER")
	}

	st, err := store.Open(ctx, store.Config{
		URI:      v.GetString("store"),
		Password: v.GetString("store-password"),
		Database: v.GetString("database"),
	})
	if err != nil {
		return nil, nil, err
	}

	tracker := presence.NewTracker(st, username, presence.DefaultHeartbeat)
	if err := tracker.Start(ctx); err != nil {
		_ = st.Close(ctx)
		return nil, nil, fmt.Errorf("start session: %w", err)
	}

	sess := &app.Session{
		Store:    st,
		Settings: set,
		Username: username,
		Sizing: page.Sizing{
			Default:    v.GetInt("page-size"),
			Compact:    v.GetInt("compact-page-size"),
			Breakpoint: v.GetInt("breakpoint"),
		},
	}
	closeFn := func() {
		// The command context may already be canceled.
		ctx, cancel := context.WithTimeout(context.Background(), store.DefaultTimeout)
		defer cancel()
		if rec, err := tracker.Stop(ctx); err != nil {
			slog.Warn("failed to end session", "username", username, "error", err)
		} else {
			slog.Debug("session ended", "username", username, "duration", presence.FormatDuration(rec.DurationSeconds))
		}
		if err := st.Close(ctx); err != nil {
			slog.Warn("failed to close store", "error", err)
		}
	}
	return sess, closeFn, nil
}

// newGenerator returns the LLM client, or nil when no endpoint is configured.
func newGenerator(v *viper.Viper) app.Generator {
	url := v.GetString("llm-url")
	if url == "" {
		return nil
	}
	return llm.New(url, v.GetString("llm-key"), v.GetString("llm-model"))
}

func runServe(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sess, closeSession, err := openSession(ctx, v)
	if err != nil {
		return err
	}
	defer closeSession()

	gen := newGenerator(v)
	h := handler.New(sess, gen)

	lang := v.GetString("lang")
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(i18n.Middleware(lang))
	h.Routes(r)

	addr := v.GetString("addr")
	srv := &http.Server{Addr: addr, Handler: r, ReadHeaderTimeout: 10 * time.Second}
	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()

	slog.Info("starting server",
		"addr", addr,
		"username", sess.Username,
		"lang", lang,
		"llm", gen != nil,
		"model", v.GetString("llm-model"),
	)

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}
	slog.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
