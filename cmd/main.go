package main

import (
	"context"
	"fmt"
	"ledger-chat/codec"
	"ledger-chat/contract"
	"ledger-chat/domain"
	"ledger-chat/internal"
	"ledger-chat/ledger/archive"
	"ledger-chat/repositories"
	"ledger-chat/runtime"
	"ledger-chat/runtime/workers"
	"ledger-chat/search"
	"ledger-chat/sink"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/blugelabs/bluge"
	"github.com/mama165/sdk-go/logs"
)

// Exit codes to provide meaningful status to the operating system or service manager (e.g., systemd).
const (
	exitOK      = 0
	exitRuntime = 1
	exitConfig  = 2
)

func main() {
	code, err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Daemon terminated with error: %v\n", err)
	}
	os.Exit(code)
}

// run initializes all components and centralizes error reporting,
// so that every deferred close runs before the process exits.
func run() (int, error) {
	// 1. Configuration & Logger
	config, err := internal.Load()
	if err != nil {
		return exitConfig, err
	}
	log := logs.GetLoggerFromString(config.LogLevel)

	// 2. Read model, codec and search index
	store, err := repositories.Open(config.SqliteFilepath, log)
	if err != nil {
		return exitRuntime, fmt.Errorf("read model opening failed: %w", err)
	}
	defer func() {
		log.Info("Closing read model...")
		_ = store.Close()
	}()

	c, err := codec.New()
	if err != nil {
		return exitRuntime, err
	}
	defer c.Close()

	blugeWriter, err := bluge.OpenWriter(bluge.DefaultConfig(config.BlugeFilepath))
	if err != nil {
		return exitRuntime, fmt.Errorf("failed to open bluge writer: %w", err)
	}
	defer func() {
		log.Info("Closing Bluge...")
		_ = blugeWriter.Close()
	}()

	// 3. Supervision & Orchestration
	sup := workers.NewSupervisor(log, config.RestartInterval)
	orchestrator := runtime.NewOrchestrator(log, sup, runtime.NewRegistry(), store, c,
		runtime.OrchestratorConfig{
			BufferSize:        config.BufferSize,
			SinkTimeout:       config.SinkTimeout,
			PollInterval:      config.PollInterval,
			Follow:            config.Follow,
			HeartbeatInterval: config.HeartbeatInterval,
		})

	// 4. One space per archive
	for _, path := range config.ArchiveList() {
		a, err := archive.Open(path, log)
		if err != nil {
			return exitRuntime, fmt.Errorf("archive %s opening failed: %w", path, err)
		}
		defer func() { _ = a.Close() }()

		if err := registerSpace(log, orchestrator, a, config); err != nil {
			return exitRuntime, err
		}
	}

	searchSink := sink.NewSearchSink(search.NewIndex(blugeWriter, log), log,
		config.SearchBatchSize, config.SearchFlushTimeout)
	defer func() {
		if err := searchSink.Flush(); err != nil {
			log.Error("Final search flush failed", "error", err)
		}
	}()
	orchestrator.Add(
		sink.NewLogSink(log),
		searchSink,
	)

	// 5. Context & Signals
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 6. Blocks until a signal, or until every space caught up when not following
	if err := orchestrator.Start(ctx); err != nil {
		return exitRuntime, fmt.Errorf("orchestrator failed to start: %w", err)
	}
	log.Info("Program stopped cleanly")
	return exitOK, nil
}

func registerSpace(log *slog.Logger, orchestrator contract.IOrchestrator, a *archive.Archive, config internal.Config) error {
	space, err := orchestrator.EnsureSpace(config.SpaceTitle, a)
	if err != nil {
		return err
	}
	for _, shard := range config.ShardList() {
		if err := space.AddShard(shard); err != nil {
			return err
		}
	}

	root, err := space.RootBlock()
	if err != nil {
		return err
	}
	author, err := space.Author()
	if err != nil {
		return err
	}
	link, err := space.ShareLink()
	if err != nil {
		return err
	}
	text, err := link.String()
	if err != nil {
		return err
	}
	log.Info("Space ready",
		"space", space.ID(),
		"name", domain.SpaceEmoji(root, author)+" "+domain.SpaceShortName(root, author),
		"share_link", text)
	return nil
}
