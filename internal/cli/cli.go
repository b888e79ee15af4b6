package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/pfrederiksen/bamf-monitor/internal/config"
	"github.com/pfrederiksen/bamf-monitor/internal/exam"
	"github.com/pfrederiksen/bamf-monitor/internal/logger"
	"github.com/pfrederiksen/bamf-monitor/internal/metrics"
	"github.com/pfrederiksen/bamf-monitor/internal/monitor"
	"github.com/pfrederiksen/bamf-monitor/internal/notifier"
	"github.com/pfrederiksen/bamf-monitor/internal/scraper"
	"github.com/pfrederiksen/bamf-monitor/internal/storage"
	"github.com/spf13/cobra"
)

const (
	ExitSuccess  = 0
	ExitError    = 1
	ExitNotified = 2
)

// ErrNoStatusDate is returned by the extract command when the page does not
// contain the status sentence.
var ErrNoStatusDate = errors.New("status date not found")

type options struct {
	configFile      string
	stateFile       string
	targetDate      string
	url             string
	terminationDays int
	verbose         bool
	logFormat       string

	dryRun           bool
	strict           bool
	attempts         int
	retryDelay       time.Duration
	timeout          time.Duration
	metricsFile      string
	notifiedExitCode int

	format string
	file   string
}

// app holds the streams and environment a command runs against
type app struct {
	opts      options
	stdout    io.Writer
	stderr    io.Writer
	lookupEnv func(string) (string, bool)
	exitCode  int
}

func newApp(stdout, stderr io.Writer, lookupEnv func(string) (string, bool)) *app {
	return &app{stdout: stdout, stderr: stderr, lookupEnv: lookupEnv}
}

// NewRootCmd creates the root command
func NewRootCmd() *cobra.Command {
	return newApp(os.Stdout, os.Stderr, os.LookupEnv).rootCmd()
}

func (a *app) rootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "bamf-monitor",
		Short: "Watch the BAMF exam page for a target Prüfungsdatum",
		Long: `Checks the BAMF "Abschlussprüfung" page once and emails when the target
exam date appears, when it changes afterwards, and when monitoring ends.
Run it from cron or a CI schedule; state is kept in a small JSON file.

Exit codes: 0 nothing to report, 1 error, 2 an email was sent. Schedulers
that fail a job on any non-zero exit (GitHub Actions and most CI systems)
would then skip a later step that commits the state file; pass
--notified-exit-code 0 there so only real errors fail the job.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          a.runCheck,
	}

	pf := cmd.PersistentFlags()
	pf.StringVar(&a.opts.configFile, "config", "", "YAML config file")
	pf.StringVar(&a.opts.stateFile, "state-file", storage.DefaultPath, "State file path")
	pf.StringVar(&a.opts.targetDate, "target-date", config.DefaultTargetDate, "Target exam date (DD.MM.YYYY)")
	pf.StringVar(&a.opts.url, "url", scraper.PageURL, "Page to monitor")
	pf.IntVar(&a.opts.terminationDays, "termination-days", 14, "Days to keep monitoring after the target appeared")
	pf.BoolVar(&a.opts.verbose, "verbose", false, "Enable verbose logging")
	pf.StringVar(&a.opts.logFormat, "log-format", "console", "Log format: console or json")

	f := cmd.Flags()
	f.BoolVar(&a.opts.dryRun, "dry-run", false, "Print emails instead of sending them")
	f.BoolVar(&a.opts.strict, "strict", false, "Only accept the exact official sentence")
	f.IntVar(&a.opts.attempts, "attempts", scraper.DefaultRetryPolicy.MaxAttempts, "Fetch attempts")
	f.DurationVar(&a.opts.retryDelay, "retry-delay", scraper.DefaultRetryPolicy.Delay, "Delay between fetch attempts")
	f.DurationVar(&a.opts.timeout, "timeout", scraper.Timeout, "Per-request timeout")
	f.StringVar(&a.opts.metricsFile, "metrics-file", "", "Write Prometheus metrics to this file at exit")
	f.IntVar(&a.opts.notifiedExitCode, "notified-exit-code", ExitNotified, "Exit code for runs that sent an email")

	cmd.AddCommand(a.statusCmd(), a.extractCmd())
	return cmd
}

func (a *app) statusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the persisted monitoring state",
		Args:  cobra.NoArgs,
		RunE:  a.runStatus,
	}
	cmd.Flags().StringVar(&a.opts.format, "format", "text", "Output format: text or json")
	return cmd
}

func (a *app) extractCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "extract",
		Short: "Print the status date found on the page",
		Long: `Runs the date extraction against a saved HTML file or a fresh fetch and
prints the status date. Never reads or writes state and never sends email.`,
		Args: cobra.NoArgs,
		RunE: a.runExtract,
	}
	cmd.Flags().StringVar(&a.opts.file, "file", "", "Read the page from a local HTML file instead of fetching")
	cmd.Flags().BoolVar(&a.opts.strict, "strict", false, "Only accept the exact official sentence")
	return cmd
}

// loadConfig layers defaults, the config file, the environment and the flags
// that were set explicitly
func (a *app) loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(a.opts.configFile, a.lookupEnv)
	if err != nil {
		return nil, err
	}

	flags := cmd.Flags()
	if flags.Changed("state-file") {
		cfg.StateFile = a.opts.stateFile
	}
	if flags.Changed("target-date") {
		cfg.TargetDate = a.opts.targetDate
	}
	if flags.Changed("url") {
		cfg.URL = a.opts.url
	}
	if flags.Changed("termination-days") {
		cfg.TerminationAfterDays = a.opts.terminationDays
	}
	if flags.Changed("log-format") {
		cfg.Log.Format = a.opts.logFormat
	}
	if a.opts.verbose {
		cfg.Log.Level = string(logger.LevelDebug)
	}
	if flags.Changed("strict") {
		cfg.Strict = a.opts.strict
	}
	if flags.Changed("attempts") {
		cfg.Fetch.Attempts = a.opts.attempts
	}
	if flags.Changed("retry-delay") {
		cfg.Fetch.RetryDelay = config.Duration(a.opts.retryDelay)
	}
	if flags.Changed("timeout") {
		cfg.Fetch.Timeout = config.Duration(a.opts.timeout)
	}
	if flags.Changed("metrics-file") {
		cfg.MetricsFile = a.opts.metricsFile
	}
	return cfg, nil
}

func (a *app) newLogger(cfg *config.Config) (*logger.Logger, error) {
	level, err := logger.ParseLevel(cfg.Log.Level)
	if err != nil {
		return nil, err
	}
	format, err := logger.ParseFormat(cfg.Log.Format)
	if err != nil {
		return nil, err
	}
	log := logger.New(level, format, a.stderr).With(logger.Fields{"run_id": uuid.New().String()})
	logger.SetDefault(log)
	return log, nil
}

func (a *app) newScraper(cfg *config.Config, log *logger.Logger, rec *metrics.Recorder) *scraper.Scraper {
	return scraper.New(
		scraper.WithURL(cfg.URL),
		scraper.WithTimeout(time.Duration(cfg.Fetch.Timeout)),
		scraper.WithRetryPolicy(cfg.RetryPolicy()),
		scraper.WithLogger(log),
		scraper.WithMetrics(rec),
	)
}

func extractorFor(cfg *config.Config) exam.Extractor {
	if cfg.Strict {
		return exam.SentenceExtractor{}
	}
	return exam.FragmentExtractor{}
}

func signalContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	return signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
}

// runCheck performs one check cycle
func (a *app) runCheck(cmd *cobra.Command, args []string) error {
	cfg, err := a.loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := cfg.Validate(!a.opts.dryRun); err != nil {
		return err
	}
	if code := a.opts.notifiedExitCode; code < 0 || code > 125 || code == ExitError {
		return fmt.Errorf("--notified-exit-code: must be in 0..125 and not %d, got %d", ExitError, code)
	}

	log, err := a.newLogger(cfg)
	if err != nil {
		return err
	}
	defer log.Sync()

	store, err := storage.New(cfg.StateFile)
	if err != nil {
		return fmt.Errorf("initializing storage: %w", err)
	}

	var n notifier.Notifier
	if a.opts.dryRun {
		log.Info("Dry run, emails will be printed", nil)
		n = notifier.NewDryRunNotifier(a.stdout)
	} else {
		email, err := notifier.NewEmailNotifier(cfg.SMTPConfig())
		if err != nil {
			return fmt.Errorf("initializing notifier: %w", err)
		}
		n = email
	}

	rec := metrics.New()
	ctrl := &monitor.Controller{
		Fetcher:   a.newScraper(cfg, log, rec),
		Extractor: extractorFor(cfg),
		Store:     store,
		Notifier:  n,
		Composer:  notifier.Composer{SourceURL: cfg.URL, RecipientName: cfg.SMTP.RecipientName},
		Rules:     cfg.Rules(),
		TextOf:    scraper.PageText,
		Log:       log,
		Metrics:   rec,
	}

	ctx, stop := signalContext(cmd)
	defer stop()

	res, runErr := ctrl.Run(ctx)

	if err := rec.WriteTextfile(cfg.MetricsFile); err != nil {
		log.Warn("Could not write metrics file", logger.Fields{"path": cfg.MetricsFile, "error": err.Error()})
	}
	if runErr != nil {
		return runErr
	}

	log.Info("Run finished", logger.Fields{
		"outcome":       string(res.Outcome),
		"status_date":   res.StatusDate,
		"notifications": len(res.Notices),
		"phase":         string(res.State.Phase()),
	})
	if res.Notified() {
		a.exitCode = a.opts.notifiedExitCode
	}
	return nil
}

// runStatus prints the persisted state
func (a *app) runStatus(cmd *cobra.Command, args []string) error {
	format, err := ParseFormat(a.opts.format)
	if err != nil {
		return err
	}
	cfg, err := a.loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := cfg.Validate(false); err != nil {
		return err
	}

	store, err := storage.New(cfg.StateFile)
	if err != nil {
		return fmt.Errorf("initializing storage: %w", err)
	}
	state, err := store.Load()
	if err != nil {
		return fmt.Errorf("loading state: %w", err)
	}

	if err := WriteStatus(a.stdout, NewStatusReport(store.Path(), state, cfg.Rules()), format); err != nil {
		return fmt.Errorf("writing output: %w", err)
	}
	return nil
}

// runExtract prints the status date of a saved or freshly fetched page
func (a *app) runExtract(cmd *cobra.Command, args []string) error {
	cfg, err := a.loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := cfg.Validate(false); err != nil {
		return err
	}
	log, err := a.newLogger(cfg)
	if err != nil {
		return err
	}
	defer log.Sync()

	var page string
	if a.opts.file != "" {
		data, err := os.ReadFile(a.opts.file)
		if err != nil {
			return fmt.Errorf("reading page file: %w", err)
		}
		page = string(data)
	} else {
		ctx, stop := signalContext(cmd)
		defer stop()

		page, err = a.newScraper(cfg, log, nil).Fetch(ctx)
		if err != nil {
			return fmt.Errorf("fetching page: %w", err)
		}
	}

	date, ok := extractorFor(cfg).Extract(scraper.PageText(page))
	if !ok {
		return ErrNoStatusDate
	}
	fmt.Fprintln(a.stdout, date)
	return nil
}

// run executes the command tree with args and returns the process exit code
func (a *app) run(args []string) int {
	cmd := a.rootCmd()
	cmd.SetArgs(args)
	cmd.SetOut(a.stdout)
	cmd.SetErr(a.stderr)

	if err := cmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(a.stderr, "Error: %v\n", err)
		return ExitError
	}
	return a.exitCode
}

// Execute runs the CLI
func Execute() {
	os.Exit(newApp(os.Stdout, os.Stderr, os.LookupEnv).run(os.Args[1:]))
}
