package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"

	"github.com/spf13/pflag"

	"github.com/nhle/mailsort/internal/model"
	"github.com/nhle/mailsort/internal/present"
	"github.com/nhle/mailsort/internal/store"
)

// runHistory implements `mailsort history` and `mailsort history show
// <id>`: it reads past runs from the history database without touching
// the network.
func runHistory(args []string, stdout, stderr io.Writer) int {
	var (
		configPath string
		limit      int
		offset     int
		outcome    string
	)

	flags := pflag.NewFlagSet("mailsort history", pflag.ContinueOnError)
	flags.SetOutput(stderr)
	flags.StringVar(&configPath, "config", model.DefaultConfigPath(), "config file")
	flags.IntVarP(&limit, "limit", "n", 20, "number of runs to show")
	flags.IntVar(&offset, "offset", 0, "skip this many of the newest runs")
	flags.StringVar(&outcome, "outcome", "", "only show runs with this outcome")
	flags.String("server", "", "only show runs against this host:port")
	flags.StringP("format", "o", model.FormatTable, "output format: table, json or yaml")
	if err := flags.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return exitOK
		}
		return exitGeneric
	}

	var showID string
	switch rest := flags.Args(); {
	case len(rest) == 0:
	case rest[0] == "show" && len(rest) == 2:
		showID = rest[1]
	default:
		fmt.Fprintln(stderr, "Usage: mailsort history [flags] | mailsort history show <id> [flags]")
		return exitGeneric
	}

	cfg, err := model.LoadConfig(configPath, flags)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitGeneric
	}

	if _, err := os.Stat(cfg.History.Path); errors.Is(err, fs.ErrNotExist) {
		if showID != "" {
			fmt.Fprintf(stderr, "Error: no run %s: %s\n", showID, present.NoRunsNotice)
			return exitGeneric
		}
		if err := present.WriteRuns(stdout, cfg.Display.Format, nil); err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", err)
			return exitGeneric
		}
		return exitOK
	}

	st, err := store.NewSQLiteStore(cfg.History.Path)
	if err != nil {
		fmt.Fprintf(stderr, "Cannot open history database: %v\n", err)
		return exitGeneric
	}
	defer st.Close()

	ctx := context.Background()

	if showID != "" {
		run, err := st.GetRunByID(ctx, showID)
		if err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", err)
			return exitGeneric
		}
		if err := present.WriteRun(stdout, cfg.Display.Format, *run); err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", err)
			return exitGeneric
		}
		return exitOK
	}

	filter := store.RunFilter{Limit: limit, Offset: offset}
	if outcome != "" {
		o := model.Outcome(outcome)
		filter.Outcome = &o
	}
	if flags.Changed("server") {
		server := cfg.IMAP.Server
		filter.Server = &server
	}

	runs, err := st.GetRuns(ctx, filter)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitGeneric
	}

	if err := present.WriteRuns(stdout, cfg.Display.Format, runs); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitGeneric
	}
	return exitOK
}
