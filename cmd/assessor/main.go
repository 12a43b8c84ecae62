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
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/pavelanni/assessor/internal/attempt"
	"github.com/pavelanni/assessor/internal/grading"
	"github.com/pavelanni/assessor/internal/handler"
	appI18n "github.com/pavelanni/assessor/internal/i18n"
	"github.com/pavelanni/assessor/internal/notify"
	"github.com/pavelanni/assessor/internal/reportcard"
	"github.com/pavelanni/assessor/internal/store"
)

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintln(os.Stderr, "warning: load .env:", err)
	}
	if err := rootCmd().ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "assessor",
		Short:        "Quiz attempts, grading and report cards for courses",
		SilenceUsage: true,
	}

	serve := serveCmd()
	root.AddCommand(serve, importCmd(), sweepCmd(), reportCmd())

	// Make "serve" the default when no subcommand is given.
	root.RunE = serve.RunE

	// Register serve flags on root so bare `assessor --addr ...` still works.
	root.Flags().AddFlagSet(serve.Flags())

	return root
}

func commonFlags(f *pflag.FlagSet) {
	f.String("db-driver", string(store.DriverSQLite), "Database driver (sqlite, postgres)")
	f.String("db", "assessor.db", "SQLite path or Postgres DSN")
	f.String("log-level", "info", "Log level (debug, info, warn, error)")
	f.String("log-format", "text", "Log format (text, json)")
}

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API server",
		RunE:  runServe,
	}
	f := cmd.Flags()
	commonFlags(f)
	f.StringP("addr", "a", ":8080", "HTTP listen address")
	f.StringSliceP("catalog", "f", nil, "Catalog JSON files to import on startup (repeatable)")
	f.StringP("lang", "l", "en", "Default message language (en, ru)")
	f.String("admin-password", "", "Admin password for /api/admin (or set ASSESSOR_ADMIN_PASSWORD)")
	f.String("jwt-secret", "", "HS256 secret for student bearer tokens; empty trusts the X-Student-ID header")
	f.StringSlice("cors-origins", []string{"http://localhost:3000"}, "Allowed CORS origins")
	f.String("sweep-schedule", "@every 1m", "Cron schedule for expiring stale attempts (empty disables)")
	f.Duration("sweep-grace", 30*time.Second, "Extra time past a deadline before an attempt expires")
	f.String("notify", "log", "Graded attempt notifications (log, sendgrid, none)")
	f.String("sendgrid-key", "", "SendGrid API key")
	f.String("mail-from", "", "Sender address for notification mail")
	f.String("mail-to-domain", "", "Mail domain students receive notifications at")
	f.Int("report-concurrency", 4, "Courses aggregated in parallel per student report")
	return cmd
}

func importCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Validate and load catalog files",
		RunE:  runImport,
	}
	f := cmd.Flags()
	commonFlags(f)
	f.StringSliceP("file", "f", nil, "Catalog JSON files (repeatable)")
	f.Bool("force", false, "Import even if a file is unchanged since the last import")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func sweepCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Expire stale in-progress attempts once",
		RunE:  runSweep,
	}
	f := cmd.Flags()
	commonFlags(f)
	f.Duration("sweep-grace", 30*time.Second, "Extra time past a deadline before an attempt expires")
	return cmd
}

func reportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Export report cards as JSON",
		RunE:  runReport,
	}
	f := cmd.Flags()
	commonFlags(f)
	f.Int64("student", 0, "Student id (0 = every student, of --course if given)")
	f.Int64("course", 0, "Course id (0 = all enrolled courses)")
	f.Int("report-concurrency", 4, "Courses aggregated in parallel per student report")
	f.StringP("output", "o", "-", "Output file path (- for stdout)")
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

	v.SetEnvPrefix("ASSESSOR")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetConfigName("assessor")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME/.config/assessor")
	v.AddConfigPath("/etc/assessor")
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			slog.Warn("error reading config file", "error", err)
		}
	} else {
		slog.Debug("loaded config file", "path", v.ConfigFileUsed())
	}

	return v
}

func openStore(ctx context.Context, v *viper.Viper) (*store.Store, error) {
	db, err := store.Open(ctx, store.Driver(v.GetString("db-driver")), v.GetString("db"))
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	return db, nil
}

func runServe(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := openStore(ctx, v)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := loadCatalogs(ctx, db, v.GetStringSlice("catalog"), false); err != nil {
		return fmt.Errorf("load catalogs: %w", err)
	}

	lang := v.GetString("lang")
	if err := appI18n.Init(lang); err != nil {
		return fmt.Errorf("init i18n: %w", err)
	}

	opts := []attempt.Option{attempt.WithExpiryGrace(v.GetDuration("sweep-grace"))}
	notifier, err := newNotifier(v)
	if err != nil {
		return err
	}
	if notifier != nil {
		opts = append(opts, attempt.WithNotifier(notifier))
	}
	svc := attempt.New(db, grading.New(), opts...)

	adminPassword := v.GetString("admin-password")
	if adminPassword == "" {
		slog.Warn("no admin password set, admin routes are disabled")
	}
	h, err := handler.New(db, svc, reportcard.New(db, v.GetInt("report-concurrency")), handler.Config{
		JWTSecret:     v.GetString("jwt-secret"),
		AdminPassword: adminPassword,
	})
	if err != nil {
		return fmt.Errorf("create handler: %w", err)
	}

	sweeper, err := startSweeper(ctx, v.GetString("sweep-schedule"), svc, db)
	if err != nil {
		return err
	}
	if sweeper != nil {
		defer func() { <-sweeper.Stop().Done() }()
	}

	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(handler.CORS(v.GetStringSlice("cors-origins")))
	r.Use(appI18n.Middleware(lang))
	h.Routes(r)

	addr := v.GetString("addr")
	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("server shutdown", "error", err)
		}
	}()

	slog.Info("starting server",
		"addr", addr,
		"db_driver", db.Driver(),
		"lang", lang,
		"notify", v.GetString("notify"),
		"sweep_schedule", v.GetString("sweep-schedule"),
		"jwt", v.GetString("jwt-secret") != "",
	)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	slog.Info("server stopped")
	return nil
}

func newNotifier(v *viper.Viper) (attempt.Notifier, error) {
	switch mode := strings.ToLower(v.GetString("notify")); mode {
	case "", "none":
		return nil, nil
	case "log":
		return notify.NewLog(slog.Default()), nil
	case "sendgrid":
		key, from, domain := v.GetString("sendgrid-key"), v.GetString("mail-from"), v.GetString("mail-to-domain")
		if key == "" || from == "" || domain == "" {
			return nil, errors.New("notify=sendgrid needs sendgrid-key, mail-from and mail-to-domain")
		}
		return notify.NewSendGrid(key, from, notify.DomainAddresses(domain)), nil
	default:
		return nil, fmt.Errorf("unknown notify mode %q", mode)
	}
}

func runImport(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)
	ctx := cmd.Context()

	db, err := openStore(ctx, v)
	if err != nil {
		return err
	}
	defer db.Close()

	return loadCatalogs(ctx, db, v.GetStringSlice("file"), v.GetBool("force"))
}

func runSweep(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)
	ctx := cmd.Context()

	db, err := openStore(ctx, v)
	if err != nil {
		return err
	}
	defer db.Close()

	svc := attempt.New(db, grading.New(), attempt.WithExpiryGrace(v.GetDuration("sweep-grace")))
	n, err := sweepOnce(ctx, svc, db)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "expired %d attempts\n", n)
	return nil
}
