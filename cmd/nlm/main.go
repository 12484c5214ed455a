// Copyright 2026 The nlm Authors
// SPDX-License-Identifier: Apache-2.0

// nlm is a command-line client for NotebookLM's private RPC surface.
// It drives the same batch endpoint the web frontend uses, with
// credentials lifted from a Playwright browser sign-in.
//
// Authentication comes from a Playwright storage state file: sign in
// once in a browser session, save the storage state, and point the
// client at it via NLM_AUTH_FILE (or drop it at
// ~/.nlm/storage_state.json). Expired anti-forgery tokens refresh
// automatically; expired session cookies need a fresh sign-in.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/nlmkit/nlm/auth"
	"github.com/nlmkit/nlm/config"
	"github.com/nlmkit/nlm/lib/clock"
	"github.com/nlmkit/nlm/notebook"
	"github.com/nlmkit/nlm/rpc"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		if coder, ok := err.(interface{ ExitCode() int }); ok {
			os.Exit(coder.ExitCode())
		}
		os.Exit(1)
	}
}

// driftError signals that the health sweep found stale method ids. It
// carries exit code 2 so CI can tell drift from operational failures.
type driftError struct{}

func (driftError) Error() string { return "one or more rpc method ids have drifted" }

func (driftError) ExitCode() int { return 2 }

func run() error {
	var (
		configPath  string
		profilePath string
		storagePath string
		notebookID  string
		title       string
		full        bool
		verbose     bool
	)

	flagSet := pflag.NewFlagSet("nlm", pflag.ContinueOnError)
	flagSet.StringVar(&configPath, "config", "", "config file (default: $NLM_CONFIG if set)")
	flagSet.StringVar(&profilePath, "profile", "", "profile file (default: $NLM_HOME/profile.jsonc)")
	flagSet.StringVar(&storagePath, "storage", "", "Playwright storage state file (default: NLM_AUTH_FILE resolution)")
	flagSet.StringVarP(&notebookID, "notebook", "n", "", "notebook id (default: profile default_notebook)")
	flagSet.StringVar(&title, "title", "", "title for text sources read from stdin (add command)")
	flagSet.BoolVar(&full, "full", false, "health: probe mutating methods against a scratch notebook")
	flagSet.BoolVarP(&verbose, "verbose", "v", false, "debug logging")
	flagSet.BoolP("help", "h", false, "show help")

	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if err == pflag.ErrHelp {
			printHelp(flagSet)
			return nil
		}
		return err
	}
	if help, _ := flagSet.GetBool("help"); help {
		printHelp(flagSet)
		return nil
	}

	args := flagSet.Args()
	if len(args) == 0 {
		printHelp(flagSet)
		return errors.New("a command is required")
	}
	command, args := args[0], args[1:]

	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	profile, err := loadProfile(profilePath)
	if err != nil {
		return err
	}
	if notebookID == "" {
		notebookID = profile.DefaultNotebook
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app := &appContext{
		cfg:         cfg,
		profile:     profile,
		storagePath: storagePath,
		logger:      logger,
	}

	switch command {
	case "list":
		return expectArgs(args, 0, func() error { return cmdList(ctx, app) })
	case "create":
		return expectArgs(args, 1, func() error { return cmdCreate(ctx, app, args[0]) })
	case "rename":
		return expectArgs(args, 2, func() error { return cmdRename(ctx, app, args[0], args[1]) })
	case "delete":
		return expectArgs(args, 1, func() error { return cmdDelete(ctx, app, args[0]) })
	case "sources":
		return expectArgs(args, 0, func() error { return cmdSources(ctx, app, notebookID) })
	case "add":
		if title != "" {
			return expectArgs(args, 0, func() error { return cmdAddText(ctx, app, notebookID, title, os.Stdin) })
		}
		return expectArgs(args, 1, func() error { return cmdAddURL(ctx, app, notebookID, args[0]) })
	case "check":
		return expectArgs(args, 1, func() error { return cmdCheck(ctx, app, notebookID, args[0]) })
	case "health":
		return expectArgs(args, 0, func() error { return cmdHealth(ctx, app, notebookID, full) })
	default:
		return fmt.Errorf("unknown command %q, see nlm --help", command)
	}
}

func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.LoadFile(path)
	}
	return config.Load()
}

func expectArgs(args []string, want int, fn func() error) error {
	if len(args) != want {
		return fmt.Errorf("expected %d argument(s), got %d", want, len(args))
	}
	return fn()
}

// appContext bundles what every command needs to build a client. The
// client is assembled lazily so flag errors surface before any auth
// file is touched.
type appContext struct {
	cfg         *config.Config
	profile     Profile
	storagePath string
	logger      *slog.Logger
}

// client assembles the credential store, transport, and notebook
// client from the loaded configuration.
func (a *appContext) client() (*notebook.Client, *rpc.Transport, error) {
	storagePath := a.storagePath
	if storagePath == "" {
		storagePath = a.cfg.Auth.StoragePath
	}
	cookies, err := auth.LoadCookiesFromEnvironment(storagePath)
	if err != nil {
		return nil, nil, err
	}

	store, err := auth.NewStore(auth.StoreConfig{
		Cookies:        cookies,
		BaseURL:        a.cfg.Endpoint.BaseURL,
		Logger:         a.logger,
		SettleDelay:    a.cfg.SettleDelay(),
		RefreshTimeout: a.cfg.RefreshTimeout(),
	})
	if err != nil {
		return nil, nil, err
	}

	sourcePath := a.cfg.Endpoint.SourcePath
	if a.profile.SourcePath != "" {
		sourcePath = a.profile.SourcePath
	}
	transport, err := rpc.New(rpc.Config{
		BaseURL:     a.cfg.Endpoint.BaseURL,
		SourcePath:  sourcePath,
		BuildLabel:  a.cfg.Endpoint.BuildLabel,
		Credentials: store,
		Logger:      a.logger,
		Limiter:     a.cfg.Limiter(),
	})
	if err != nil {
		return nil, nil, err
	}

	opts := rpc.CallOptions{
		MaxRetries:   a.cfg.Retry.MaxRetries,
		RetryBase:    a.cfg.RetryBase(),
		RetryNetwork: a.cfg.Retry.Network,
		Timeout:      a.cfg.Timeout(),
	}
	return notebook.NewClient(transport, opts), transport, nil
}

func requireNotebook(notebookID string) error {
	if notebookID == "" {
		return errors.New("a notebook is required: pass --notebook or set default_notebook in the profile")
	}
	return nil
}

func cmdList(ctx context.Context, app *appContext) error {
	client, _, err := app.client()
	if err != nil {
		return err
	}
	notebooks, err := client.List(ctx)
	if err != nil {
		return err
	}
	for _, nb := range notebooks {
		shared := ""
		if nb.Shared {
			shared = "  (shared)"
		}
		fmt.Printf("%-44s %s  %s%s\n", nb.ID, nb.CreatedAt.Format(time.DateOnly), nb.Title, shared)
	}
	return nil
}

func cmdCreate(ctx context.Context, app *appContext, title string) error {
	client, _, err := app.client()
	if err != nil {
		return err
	}
	nb, err := client.Create(ctx, title)
	if err != nil {
		return err
	}
	fmt.Println(nb.ID)
	return nil
}

func cmdRename(ctx context.Context, app *appContext, notebookID, title string) error {
	client, _, err := app.client()
	if err != nil {
		return err
	}
	return client.Rename(ctx, notebookID, title)
}

func cmdDelete(ctx context.Context, app *appContext, notebookID string) error {
	client, _, err := app.client()
	if err != nil {
		return err
	}
	return client.Delete(ctx, notebookID)
}

func cmdSources(ctx context.Context, app *appContext, notebookID string) error {
	if err := requireNotebook(notebookID); err != nil {
		return err
	}
	client, _, err := app.client()
	if err != nil {
		return err
	}
	sources, err := client.Sources(ctx, notebookID)
	if err != nil {
		return err
	}
	for _, src := range sources {
		status := "processing"
		switch src.Status {
		case notebook.SourceReady:
			status = "ready"
		case notebook.SourceError:
			status = "error"
		}
		line := fmt.Sprintf("%-44s %-10s %s", src.ID, status, src.Title)
		if src.URL != "" {
			line += "  " + src.URL
		}
		fmt.Println(line)
	}
	return nil
}

func cmdAddURL(ctx context.Context, app *appContext, notebookID, url string) error {
	if err := requireNotebook(notebookID); err != nil {
		return err
	}
	client, _, err := app.client()
	if err != nil {
		return err
	}
	src, err := client.AddSourceURL(ctx, notebookID, url)
	if err != nil {
		return err
	}
	fmt.Println(src.ID)
	return nil
}

func cmdAddText(ctx context.Context, app *appContext, notebookID, title string, input io.Reader) error {
	if err := requireNotebook(notebookID); err != nil {
		return err
	}
	content, err := io.ReadAll(input)
	if err != nil {
		return fmt.Errorf("reading source content from stdin: %w", err)
	}
	if len(content) == 0 {
		return errors.New("no source content on stdin")
	}
	client, _, err := app.client()
	if err != nil {
		return err
	}
	src, err := client.AddSourceText(ctx, notebookID, title, string(content))
	if err != nil {
		return err
	}
	fmt.Println(src.ID)
	return nil
}

func cmdCheck(ctx context.Context, app *appContext, notebookID, sourceID string) error {
	if err := requireNotebook(notebookID); err != nil {
		return err
	}
	client, _, err := app.client()
	if err != nil {
		return err
	}
	fresh, err := client.CheckSourceFreshness(ctx, notebookID, sourceID)
	if err != nil {
		return err
	}
	if fresh {
		fmt.Println("fresh")
	} else {
		fmt.Println("stale")
	}
	return nil
}

func cmdHealth(ctx context.Context, app *appContext, notebookID string, full bool) error {
	client, transport, err := app.client()
	if err != nil {
		return err
	}
	check := &healthCheck{
		transport: transport,
		books:     client,
		clk:       clock.Real(),
		out:       os.Stdout,
		delay:     time.Second,
	}
	healthy, err := check.run(ctx, notebookID, full)
	if err != nil {
		return err
	}
	if !healthy {
		return driftError{}
	}
	return nil
}

func printHelp(flagSet *pflag.FlagSet) {
	fmt.Fprintf(os.Stderr, `nlm drives NotebookLM's private RPC surface from the command line.

Usage:
  nlm <command> [arguments] [flags]

Commands:
  list                      list notebooks
  create <title>            create a notebook, print its id
  rename <id> <title>       rename a notebook
  delete <id>               delete a notebook permanently
  sources                   list sources of --notebook
  add <url>                 attach a web page to --notebook
  add --title <t> < file    attach stdin as a text source
  check <source-id>         report whether a URL source is fresh or stale
  health                    probe every known rpc method id for drift

Examples:
  # List notebooks with verbose wire logging
  nlm list -v

  # Add a page to the profile's default notebook
  nlm add https://example.com/article

  # Full health sweep against a scratch notebook (CI)
  nlm health --full

Flags:
`)
	flagSet.SetOutput(os.Stderr)
	flagSet.PrintDefaults()
}
