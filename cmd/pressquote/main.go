// PressQuote prices offset print jobs: sheet layout, paper purchase, plates,
// ink and finishing, with a profit margin on top.
//
// Usage:
//
//	pressquote serve                       run the HTTP API
//	pressquote new-job --job 9x12 job.json write a starter job file
//	pressquote calc job.json               price a job file
//	pressquote edit-quote quote.json       override line items of an exported quote
//	pressquote layout --paper 25x36 --job 9x12
//	pressquote import-rates rates.xlsx     load a rate sheet into the store
//	pressquote migrate                     create or update the rate tables
//
// Build:
//
//	go build -o pressquote ./cmd/pressquote
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-kit/log"
	"github.com/spf13/pflag"

	"github.com/piwi3910/PressQuote/internal/config"
	"github.com/piwi3910/PressQuote/internal/logging"
)

// command is one pressquote subcommand.
type command struct {
	name  string
	args  string
	short string
	flags func(fs *pflag.FlagSet)
	run   func(ctx context.Context, env *environment, args []string) error
}

// environment is what every command gets after flags and config are parsed.
type environment struct {
	cfg    config.Config
	fs     *pflag.FlagSet
	logger log.Logger
	stdout io.Writer
	stderr io.Writer
}

var errUsage = errors.New("usage")

func commands() []command {
	return []command{
		{name: "serve", short: "run the HTTP API", run: runServe},
		{name: "calc", args: "<job.json>", short: "price a job file and print the breakdowns", flags: calcFlags, run: runCalc},
		{name: "new-job", args: "<job.json>", short: "write a starter job file", flags: newJobFlags, run: runNewJob},
		{name: "edit-quote", args: "<quote.json>", short: "override or reset line items of an exported quote", flags: editQuoteFlags, run: runEditQuote},
		{name: "layout", short: "show how a job lays out on one or more sheets", flags: layoutFlags, run: runLayout},
		{name: "import-rates", args: "<file.csv|file.xlsx>", short: "load a rate sheet into the rate store", flags: importFlags, run: runImportRates},
		{name: "migrate", short: "create or update the rate store tables", run: runMigrate},
	}
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	os.Exit(run(ctx, os.Args[1:], os.Stdout, os.Stderr))
}

// run executes one command and returns the process exit code.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 || args[0] == "-h" || args[0] == "--help" || args[0] == "help" {
		usage(stderr)
		if len(args) == 0 {
			return 2
		}
		return 0
	}

	var cmd *command
	for _, c := range commands() {
		if c.name == args[0] {
			cmd = &c
			break
		}
	}
	if cmd == nil {
		fmt.Fprintf(stderr, "pressquote: unknown command %q\n\n", args[0])
		usage(stderr)
		return 2
	}

	fs := pflag.NewFlagSet("pressquote "+cmd.name, pflag.ContinueOnError)
	fs.SetOutput(stderr)
	config.RegisterFlags(fs)
	if cmd.flags != nil {
		cmd.flags(fs)
	}
	fs.Usage = func() {
		fmt.Fprintf(stderr, "Usage: pressquote %s [flags] %s\n\n%s\n\nFlags:\n", cmd.name, cmd.args, cmd.short)
		fs.PrintDefaults()
	}
	if err := fs.Parse(args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return 0
		}
		return 2
	}

	configPath, _ := fs.GetString("config")
	cfg, err := config.Load(configPath, fs)
	if err != nil {
		fmt.Fprintf(stderr, "pressquote: %v\n", err)
		return 1
	}
	logger, err := logging.New(stderr, cfg.Log.Format, cfg.Log.Level)
	if err != nil {
		fmt.Fprintf(stderr, "pressquote: %v\n", err)
		return 1
	}

	env := &environment{cfg: cfg, fs: fs, logger: logger, stdout: stdout, stderr: stderr}
	if err := cmd.run(ctx, env, fs.Args()); err != nil {
		if errors.Is(err, errUsage) {
			fs.Usage()
			return 2
		}
		fmt.Fprintf(stderr, "pressquote %s: %v\n", cmd.name, err)
		return 1
	}
	return 0
}

func usage(w io.Writer) {
	fmt.Fprintln(w, "Usage: pressquote <command> [flags] [args]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Commands:")
	for _, c := range commands() {
		fmt.Fprintf(w, "  %-14s %s\n", c.name, c.short)
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Run 'pressquote <command> --help' for the flags of a command.")
}
