package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/nhle/mailsort/internal/app"
	"github.com/nhle/mailsort/internal/credential"
	"github.com/nhle/mailsort/internal/logging"
	"github.com/nhle/mailsort/internal/metrics"
	"github.com/nhle/mailsort/internal/model"
	"github.com/nhle/mailsort/internal/pipeline"
	"github.com/nhle/mailsort/internal/present"
	"github.com/nhle/mailsort/internal/source"
	"github.com/nhle/mailsort/internal/source/email"
	"github.com/nhle/mailsort/internal/store"
	appsync "github.com/nhle/mailsort/internal/sync"
	"github.com/nhle/mailsort/internal/theme"
)

const (
	exitOK         = 0
	exitGeneric    = 1
	exitAuth       = 2
	exitConnection = 3
	exitQuery      = 4
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// options are the flags that do not map onto a config key.
type options struct {
	configPath     string
	interactive    bool
	savePassword   bool
	forgetPassword bool
}

func newFlagSet(opts *options) *pflag.FlagSet {
	flags := pflag.NewFlagSet("mailsort", pflag.ContinueOnError)
	flags.StringVar(&opts.configPath, "config", model.DefaultConfigPath(), "config file")
	flags.BoolVarP(&opts.interactive, "interactive", "i", false, "run the terminal UI")
	flags.BoolVar(&opts.savePassword, "save-password", false, "store the password from the environment in the OS keyring")
	flags.BoolVar(&opts.forgetPassword, "forget-password", false, "remove the stored password for the account from the OS keyring and exit")

	flags.String("server", model.DefaultServer, "IMAP server as host:port")
	flags.String("mailbox", model.DefaultMailbox, "mailbox to list")
	flags.StringP("user", "u", "", "account username")
	flags.IntP("max", "n", model.DefaultMaxMessages, "number of most recent messages to fetch")
	flags.Int("timeout", model.DefaultTimeoutSec, "seconds allowed for one fetch run")
	flags.String("log-level", "info", "debug, info, warn or error")
	flags.Bool("history", false, "record runs in the history database")
	flags.String("metrics-textfile", "", "write Prometheus metrics to this file after each run")
	flags.StringP("format", "o", model.FormatTable, "output format: table, json or yaml")
	flags.Int("refresh", 0, "auto refresh interval in seconds for the terminal UI, 0 disables")
	return flags
}

func run(args []string, stdout, stderr io.Writer) int {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintf(stderr, "Error loading .env: %v\n", err)
		return exitGeneric
	}

	if len(args) > 0 && args[0] == "history" {
		return runHistory(args[1:], stdout, stderr)
	}

	var opts options
	flags := newFlagSet(&opts)
	flags.SetOutput(stderr)
	if err := flags.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return exitOK
		}
		return exitGeneric
	}

	cfg, err := model.LoadConfig(opts.configPath, flags)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitGeneric
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(stderr, "Invalid configuration: %v\n", err)
		return exitGeneric
	}

	var logger *zap.Logger
	if opts.interactive {
		logger, err = logging.NewFile(cfg.Log)
	} else {
		logger, err = logging.NewConsole(cfg.Log)
	}
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitGeneric
	}
	defer func() { _ = logger.Sync() }()

	if opts.forgetPassword {
		return forgetPassword(cfg, logger, stdout, stderr)
	}

	creds := resolveCredentials(cfg, logger)

	if opts.savePassword {
		if !creds.Complete() {
			fmt.Fprintln(stderr, "Error: --save-password needs a username and MAILSORT_IMAP_PASSWORD")
			return exitGeneric
		}
		if err := credential.Set(credential.AccountKey(cfg.IMAP.Server, creds.Username), creds.Password); err != nil {
			fmt.Fprintf(stderr, "Error saving password: %v\n", err)
			return exitGeneric
		}
		logger.Info("password stored in keyring", zap.String("username", creds.Username))
	}

	m := metrics.New()
	pipeOpts := []pipeline.Option{
		pipeline.WithLogger(logger),
		pipeline.WithMetrics(m),
		pipeline.WithTextfile(cfg.Metrics.Textfile),
	}

	if cfg.History.Enabled {
		st, err := store.NewSQLiteStore(cfg.History.Path)
		if err != nil {
			fmt.Fprintf(stderr, "Cannot open history database: %v\n", err)
			return exitGeneric
		}
		defer st.Close()
		pipeOpts = append(pipeOpts, pipeline.WithRecorder(store.Retention{Store: st, Keep: cfg.History.Keep}))
	}

	p := pipeline.New(email.Open(logger), pipeOpts...)

	if opts.interactive {
		return runInteractive(cfg, opts.configPath, creds, p, logger, stderr)
	}
	return runConsole(cfg, creds, p, stdout, stderr)
}

// resolveCredentials takes the password from the environment, falling
// back to the keyring entry for the configured account.
func resolveCredentials(cfg *model.AppConfig, logger *zap.Logger) model.SecretPair {
	creds := model.SecretPair{
		Username: cfg.IMAP.Username,
		Password: cfg.IMAP.Password,
	}
	if creds.Password != "" || creds.Username == "" {
		return creds
	}

	password, err := credential.Lookup(cfg.IMAP.Server, creds.Username)
	switch {
	case err == nil:
		creds.Password = password
	case errors.Is(err, credential.ErrNotFound):
	default:
		logger.Warn("reading keyring", zap.Error(err))
	}
	return creds
}

// forgetPassword deletes the keyring entry for the configured account.
func forgetPassword(cfg *model.AppConfig, logger *zap.Logger, stdout, stderr io.Writer) int {
	if cfg.IMAP.Username == "" {
		fmt.Fprintln(stderr, "Error: --forget-password needs a username (--user or imap.username)")
		return exitGeneric
	}
	if err := credential.Delete(credential.AccountKey(cfg.IMAP.Server, cfg.IMAP.Username)); err != nil {
		fmt.Fprintf(stderr, "Error removing password: %v\n", err)
		return exitGeneric
	}
	logger.Info("password removed from keyring", zap.String("username", cfg.IMAP.Username))
	fmt.Fprintf(stdout, "Forgot the stored password for %s on %s.\n", cfg.IMAP.Username, cfg.IMAP.Server)
	return exitOK
}

func runConsole(
	cfg *model.AppConfig,
	creds model.SecretPair,
	p *pipeline.Pipeline,
	stdout, stderr io.Writer,
) int {
	if !creds.Complete() {
		fmt.Fprintln(stderr, "Error: no credentials. Set MAILSORT_IMAP_USERNAME and MAILSORT_IMAP_PASSWORD, "+
			"store a password with --save-password, or log in with -i.")
		return exitGeneric
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	res, err := p.Run(ctx, cfg.FetchConfig(creds))
	if err != nil {
		fmt.Fprintln(stderr, theme.ErrorNoticeStyle.Render(present.Describe(err)))
		return exitCode(err)
	}

	if err := present.Write(stdout, cfg.Display.Format, res.Summaries, len(res.Skipped)); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitGeneric
	}
	return exitOK
}

func runInteractive(
	cfg *model.AppConfig,
	configPath string,
	creds model.SecretPair,
	p *pipeline.Pipeline,
	logger *zap.Logger,
	stderr io.Writer,
) int {
	runner := appsync.New(p.Run)
	defer runner.Cancel()

	root := app.New(cfg, configPath, creds, runner, logger)
	if _, err := tea.NewProgram(root, tea.WithAltScreen()).Run(); err != nil {
		fmt.Fprintf(stderr, "Error running terminal UI: %v\n", err)
		return exitGeneric
	}
	return exitOK
}

// exitCode maps a terminal run error to the process exit status.
func exitCode(err error) int {
	switch {
	case err == nil:
		return exitOK
	case source.IsAuthError(err):
		return exitAuth
	case source.IsConnectionError(err):
		return exitConnection
	case source.IsQueryError(err):
		return exitQuery
	default:
		return exitGeneric
	}
}
