// Command smithy-ls is the process entrypoint: parse flags, load process
// config, stand up the logger, construct the long-lived ServerState, and
// run the stdio JSON-RPC dispatcher until exit. Mirrors the teacher's
// cmd/iter/main.go bootstrap shape (load config, set up logger,
// construct the long-lived aggregate, block on serve) adapted from a
// multi-subcommand CLI to a single long-running stdio daemon; the
// signal-handling half of runDaemonForeground is reused so an external
// SIGTERM/SIGINT still shuts the process down cleanly even if the client
// never sends exit.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/smithy-tools/smithy-ls/internal/buildconfig"
	"github.com/smithy-tools/smithy-ls/internal/lifecycle"
	"github.com/smithy-tools/smithy-ls/internal/logger"
	"github.com/smithy-tools/smithy-ls/internal/lsp"
	"github.com/smithy-tools/smithy-ls/internal/procconfig"
	"github.com/smithy-tools/smithy-ls/internal/project"
	"github.com/smithy-tools/smithy-ls/internal/serverstate"
	"github.com/smithy-tools/smithy-ls/internal/simpleassembler"
	"github.com/smithy-tools/smithy-ls/internal/watch"
)

var version = "dev"

const watchDebounce = 250 * time.Millisecond
const workerPoolSize = 4

func main() {
	defaultConfigPath := filepath.Join(procconfig.DefaultDataDir(), "smithy-ls.toml")
	configPath := flag.String("config", defaultConfigPath, "path to a TOML process config file")
	logLevel := flag.String("log-level", "", "override the configured log level (trace, debug, info, warn, error)")
	logFile := flag.String("log-file", "", "also write logs to logs/smithy-ls.log under this path's directory, in addition to the configured outputs")
	// --stdio is accepted for compatibility with clients that always pass
	// it; stdio is this server's only transport, so the flag is a no-op.
	flag.Bool("stdio", true, "communicate over stdio (the only supported transport)")
	showVersion := flag.Bool("version", false, "print the version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println("smithy-ls " + version)
		return
	}

	cfg, err := procconfig.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: loading config: %v\n", err)
		os.Exit(1)
	}
	if *logLevel != "" {
		cfg.Logging.Level = *logLevel
	}
	if *logFile != "" {
		cfg.Logging.Output = append(cfg.Logging.Output, "file")
		cfg.Logging.DataDir = filepath.Dir(*logFile)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		fmt.Fprintf(os.Stderr, "error: preparing data directory: %v\n", err)
		os.Exit(1)
	}

	log := logger.Setup(cfg)
	defer logger.Stop()
	log.Info().Str("version", version).Msg("smithy-ls starting")

	pool := lifecycle.NewPool(workerPoolSize)
	defer pool.Stop()
	lc := lifecycle.NewManager(pool)

	loader := project.NewLoader(simpleassembler.New())
	state := serverstate.New(loader, lc)
	state.OnlyReloadOnSave = cfg.Sync.OnlyReloadOnSave

	osWatcher, err := watch.NewOSWatcher(dispatchWatchEvent(state), watchDebounce)
	if err != nil {
		log.Error().Err(err).Msg("failed to start file watcher")
		os.Exit(1)
	}
	osWatcher.Start()
	defer osWatcher.Stop()

	server := lsp.NewServer(state, osWatcher, log, os.Stdin, os.Stdout)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	exitCh := make(chan int, 1)
	go func() {
		exitCh <- server.Run(ctx)
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)

	select {
	case code := <-exitCh:
		log.Info().Int("exit_code", code).Msg("smithy-ls exiting")
		os.Exit(code)
	case sig := <-sigCh:
		log.Info().Str("signal", sig.String()).Msg("received signal, shutting down")
		lc.CancelAllTasks()
		lc.WaitForAllTasks()
	}
}

// dispatchWatchEvent adapts watch.Event (the debounced OS-level
// vocabulary) into the same ServerState transitions the LSP-level
// workspace/didChangeWatchedFiles notification drives, so a change made
// outside the editor (git checkout, another tool) reaches the project
// model even without a client round trip. Changed events are forwarded
// only for build files. A deleted build file goes to WatchedDeleted,
// which drops the project once it has no build files left; the LSP
// handler sends it to WatchedChangedBuildFile instead.
func dispatchWatchEvent(state *serverstate.ServerState) watch.Handler {
	return func(ev watch.Event) {
		switch ev.Kind {
		case watch.Created:
			state.WatchedCreated(ev.Path)
		case watch.Deleted:
			_ = state.WatchedDeleted(context.Background(), ev.Path)
		case watch.Changed:
			base := filepath.Base(ev.Path)
			if base == buildconfig.SmithyBuildFileName || base == buildconfig.SmithyProjectFileName {
				state.WatchedChangedBuildFile(ev.Path)
			}
		}
	}
}
