// Journalsync is a local-first journal store with offline sync. Entries are
// written to a local SQLite database and queued in a durable outbox; a
// background engine delivers queued mutations to the journal backend with
// retries and backoff, so every command works offline and the backend
// converges when connectivity returns.
//
// Usage:
//
//	journalsync daemon [--config <path>]        # start the sync loop
//	journalsync sync-once [--retry-failed]      # single dispatch cycle then exit
//	journalsync add [--title ...] <content>     # write an entry locally
//	journalsync list [--pending]                # show entries and sync state
//	journalsync delete <id>                     # remove an entry
//	journalsync status                          # show config, store, and queue state
//	journalsync version                         # print version
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/offlinekit/journalsync/internal/auth"
	"github.com/offlinekit/journalsync/internal/config"
	"github.com/offlinekit/journalsync/internal/journal"
	"github.com/offlinekit/journalsync/internal/model"
	"github.com/offlinekit/journalsync/internal/remote"
	"github.com/offlinekit/journalsync/internal/state"
	syncp "github.com/offlinekit/journalsync/internal/sync"
	"github.com/offlinekit/journalsync/internal/telemetry"
)

// version is set at build time via -ldflags "-X main.version=..."
var version = "dev"

func main() {
	if err := run(); err != nil {
		slog.Error("fatal error", "error", err)
		os.Exit(1)
	}
}

// run dispatches to the appropriate subcommand.
func run() error {
	if len(os.Args) < 2 {
		return printUsage()
	}

	switch cmd := os.Args[1]; cmd {
	case "daemon":
		return runSync(os.Args[2:], true)
	case "sync-once":
		return runSync(os.Args[2:], false)
	case "add":
		return runAdd(os.Args[2:])
	case "list":
		return runList(os.Args[2:])
	case "delete":
		return runDelete(os.Args[2:])
	case "status":
		return runStatus()
	case "version":
		fmt.Println("journalsync", version)
		return nil
	default:
		return fmt.Errorf("unknown command %q — run 'journalsync' for usage", cmd)
	}
}

// printUsage shows help.
func printUsage() error {
	fmt.Fprintln(os.Stderr, "journalsync — local-first journal with offline sync")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "Usage:")
	fmt.Fprintln(os.Stderr, "  journalsync daemon [--config ...]         Run the continuous sync loop")
	fmt.Fprintln(os.Stderr, "  journalsync sync-once [--retry-failed]    Single dispatch cycle then exit")
	fmt.Fprintln(os.Stderr, "  journalsync add [--title ...] <content>   Write an entry locally")
	fmt.Fprintln(os.Stderr, "  journalsync list [--pending]              Show entries and sync state")
	fmt.Fprintln(os.Stderr, "  journalsync delete <id>                   Remove an entry")
	fmt.Fprintln(os.Stderr, "  journalsync status                        Show config, store, and queue state")
	fmt.Fprintln(os.Stderr, "  journalsync version                       Print version")
	os.Exit(1)
	return nil // unreachable
}

// --- shared wiring -----------------------------------------------------------

// app bundles the components every subcommand needs.
type app struct {
	cfg   *config.Config
	store *state.Store
	repo  *journal.Repository
	log   *slog.Logger
}

// openApp loads config, opens the store, and wires the repository.
func openApp(cfgPath string, verbose bool) (*app, error) {
	logLevel := slog.LevelInfo
	if verbose {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel}))
	slog.SetDefault(logger)

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, fmt.Errorf("loading config from %q: %w", cfgPath, err)
	}

	dbPath, err := state.DefaultDBPath()
	if err != nil {
		return nil, fmt.Errorf("resolving journal DB path: %w", err)
	}
	store, err := state.Open(dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening journal DB at %q: %w", dbPath, err)
	}

	return &app{
		cfg:   cfg,
		store: store,
		repo:  journal.NewRepository(store, logger),
		log:   logger,
	}, nil
}

// close releases the app's resources.
func (a *app) close() {
	if err := a.store.Close(); err != nil {
		a.log.Error("closing journal DB", "error", err)
	}
}

// newEngine wires the transport, credential provider, and dispatcher into a
// sync engine.
func (a *app) newEngine() (*syncp.Engine, error) {
	transport, err := remote.NewClient(a.cfg.BackendURL, a.cfg.RequestTimeout, a.log)
	if err != nil {
		return nil, fmt.Errorf("initialising backend client: %w", err)
	}
	creds := auth.NewTokenProvider(a.cfg.TokenFile, a.log)

	dispatchCfg := syncp.DefaultConfig()
	dispatchCfg.BatchSize = a.cfg.BatchSize
	dispatchCfg.MaxAttempts = a.cfg.MaxAttempts

	dispatcher := syncp.NewDispatcher(a.store, transport, creds, a.repo, dispatchCfg, a.log)
	return syncp.NewEngine(dispatcher, a.cfg.SyncInterval, a.log), nil
}

// --- subcommands -------------------------------------------------------------

// runSync handles both "daemon" and "sync-once".
func runSync(args []string, daemon bool) error {
	fs := flag.NewFlagSet("sync", flag.ExitOnError)
	defaultCfg, _ := config.DefaultPath()
	cfgPath := fs.String("config", defaultCfg, "path to config.yaml")
	verbose := fs.Bool("verbose", false, "enable debug logging")
	retryFailed := fs.Bool("retry-failed", false, "re-enqueue terminally failed events before syncing")
	if err := fs.Parse(args); err != nil {
		return err
	}

	a, err := openApp(*cfgPath, *verbose)
	if err != nil {
		return err
	}
	defer a.close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	// Telemetry is optional; a broken collector never blocks syncing.
	if a.cfg.Telemetry != nil {
		telCfg := telemetry.Config{
			OTLPEndpoint: a.cfg.Telemetry.OTLPEndpoint,
			Insecure:     a.cfg.Telemetry.Insecure,
			ServiceName:  a.cfg.Telemetry.ServiceName,
			Headers:      a.cfg.Telemetry.Headers,
		}
		shutdownTel, err := telemetry.Setup(context.Background(), telCfg)
		if err != nil {
			a.log.Error("telemetry setup failed, continuing without telemetry", "error", err)
		} else {
			a.log.Info("telemetry enabled", "endpoint", a.cfg.Telemetry.OTLPEndpoint)
			defer func() {
				flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := shutdownTel(flushCtx); err != nil {
					a.log.Error("telemetry shutdown error", "error", err)
				}
			}()
		}
	}

	if *retryFailed {
		n, err := a.store.RetryFailed(ctx)
		if err != nil {
			return fmt.Errorf("re-enqueueing failed events: %w", err)
		}
		a.log.Info("failed events re-enqueued", "count", n)
	}

	engine, err := a.newEngine()
	if err != nil {
		return err
	}

	if !daemon {
		a.log.Info("running single dispatch cycle")
		stats, err := engine.RunOnce(ctx)
		a.log.Info("dispatch complete",
			"delivered", stats.Delivered,
			"retried", stats.Retried,
			"failed", stats.Failed,
			"auth_aborted", stats.AuthAborted,
		)
		return err
	}

	a.log.Info("daemon starting", "sync_interval", a.cfg.SyncInterval)
	if err := engine.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("sync engine: %w", err)
	}
	a.log.Info("shutdown complete")
	return nil
}

// runAdd writes a new entry to the local store. Delivery to the backend
// happens later, via the daemon or sync-once.
func runAdd(args []string) error {
	fs := flag.NewFlagSet("add", flag.ExitOnError)
	defaultCfg, _ := config.DefaultPath()
	cfgPath := fs.String("config", defaultCfg, "path to config.yaml")
	title := fs.String("title", "", "entry title")
	mood := fs.String("mood", "", "mood label")
	tags := fs.String("tags", "", "comma-separated tags")
	if err := fs.Parse(args); err != nil {
		return err
	}
	content := strings.TrimSpace(strings.Join(fs.Args(), " "))
	if content == "" {
		return fmt.Errorf("add requires entry content, e.g.: journalsync add \"slept well, long walk\"")
	}

	a, err := openApp(*cfgPath, false)
	if err != nil {
		return err
	}
	defer a.close()

	entry := model.Entry{
		Title:   *title,
		Content: content,
		Mood:    *mood,
	}
	if *tags != "" {
		for _, t := range strings.Split(*tags, ",") {
			entry.Tags = append(entry.Tags, strings.TrimSpace(t))
		}
	}

	saved, err := a.repo.Save(context.Background(), entry)
	if err != nil {
		return fmt.Errorf("saving entry: %w", err)
	}
	fmt.Println(saved.ID)
	return nil
}

// runList prints entries with their sync state.
func runList(args []string) error {
	fs := flag.NewFlagSet("list", flag.ExitOnError)
	defaultCfg, _ := config.DefaultPath()
	cfgPath := fs.String("config", defaultCfg, "path to config.yaml")
	pendingOnly := fs.Bool("pending", false, "show only entries awaiting sync")
	if err := fs.Parse(args); err != nil {
		return err
	}

	a, err := openApp(*cfgPath, false)
	if err != nil {
		return err
	}
	defer a.close()

	ctx := context.Background()
	var entries []*model.Entry
	if *pendingOnly {
		entries, err = a.repo.PendingSync(ctx)
	} else {
		entries, err = a.repo.List(ctx)
	}
	if err != nil {
		return fmt.Errorf("listing entries: %w", err)
	}

	for _, e := range entries {
		marker := "✓"
		if e.NeedsSync {
			marker = "…"
		}
		title := e.Title
		if title == "" {
			title = firstLine(e.Content)
		}
		fmt.Printf("%s  %s  %s  %s\n", marker, e.ID, e.UpdatedAt.Local().Format("2006-01-02 15:04"), title)
	}
	return nil
}

// runDelete removes an entry locally and queues the remote delete if needed.
func runDelete(args []string) error {
	fs := flag.NewFlagSet("delete", flag.ExitOnError)
	defaultCfg, _ := config.DefaultPath()
	cfgPath := fs.String("config", defaultCfg, "path to config.yaml")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("delete requires exactly one entry id")
	}

	a, err := openApp(*cfgPath, false)
	if err != nil {
		return err
	}
	defer a.close()

	if err := a.repo.Delete(context.Background(), fs.Arg(0)); err != nil {
		return err
	}
	fmt.Println("deleted", fs.Arg(0))
	return nil
}

// runStatus prints the current configuration and queue state.
func runStatus() error {
	cfgPath, _ := config.DefaultPath()
	dbPath, _ := state.DefaultDBPath()

	fmt.Println("journalsync status")
	fmt.Println("──────────────────")

	if _, err := os.Stat(cfgPath); err == nil {
		if cfg, loadErr := config.Load(cfgPath); loadErr == nil {
			fmt.Printf("  Config:   %s ✓\n", cfgPath)
			fmt.Printf("  Backend:  %s\n", cfg.BackendURL)
			fmt.Printf("  Interval: %s\n", cfg.SyncInterval)
		} else {
			fmt.Printf("  Config:   %s (invalid: %v)\n", cfgPath, loadErr)
		}
	} else {
		fmt.Printf("  Config:   not found (%s)\n", cfgPath)
	}

	info, err := os.Stat(dbPath)
	if err != nil {
		fmt.Printf("  Journal:  not found (%s)\n", dbPath)
		return nil
	}
	fmt.Printf("  Journal:  %s (%s)\n", dbPath, humanSize(info.Size()))

	store, err := state.Open(dbPath)
	if err != nil {
		return fmt.Errorf("opening journal DB: %w", err)
	}
	defer func() { _ = store.Close() }()

	ctx := context.Background()
	depths, err := store.Depths(ctx)
	if err != nil {
		return fmt.Errorf("reading queue state: %w", err)
	}
	pending, err := store.PendingSyncEntries(ctx)
	if err != nil {
		return fmt.Errorf("reading pending entries: %w", err)
	}

	fmt.Printf("  Unsynced: %d entries\n", len(pending))
	fmt.Printf("  Outbox:   %d pending, %d in flight, %d failed, %d completed\n",
		depths.Pending, depths.InFlight, depths.Failed, depths.Completed)
	return nil
}

// firstLine returns the first line of s, truncated for display.
func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	const max = 60
	if len(s) > max {
		return s[:max] + "…"
	}
	return s
}

// humanSize returns a human-readable file size string.
func humanSize(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}
