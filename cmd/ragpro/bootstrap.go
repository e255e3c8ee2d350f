package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"

	"github.com/zhaosj0315/rag-pro-max-sub000/internal/adapters/driven/ai"
	configfile "github.com/zhaosj0315/rag-pro-max-sub000/internal/adapters/driven/config/file"
	historyfile "github.com/zhaosj0315/rag-pro-max-sub000/internal/adapters/driven/history/file"
	"github.com/zhaosj0315/rag-pro-max-sub000/internal/adapters/driven/index/bm25"
	"github.com/zhaosj0315/rag-pro-max-sub000/internal/adapters/driven/index/vector"
	"github.com/zhaosj0315/rag-pro-max-sub000/internal/adapters/driven/resource/system"
	"github.com/zhaosj0315/rag-pro-max-sub000/internal/adapters/driven/storage/corpusfs"
	"github.com/zhaosj0315/rag-pro-max-sub000/internal/adapters/driving/cli"
	"github.com/zhaosj0315/rag-pro-max-sub000/internal/connectors/filesystem"
	"github.com/zhaosj0315/rag-pro-max-sub000/internal/core/ports/driven"
	"github.com/zhaosj0315/rag-pro-max-sub000/internal/core/services"
	"github.com/zhaosj0315/rag-pro-max-sub000/internal/logger"
	"github.com/zhaosj0315/rag-pro-max-sub000/internal/normalisers"
)

var log = logger.For("main")

// Data directory layout.
const (
	envHome     = "RAGPRO_HOME"
	corporaDir  = "corpora"
	historyDir  = "chat_histories"
	promptsDir  = "prompts"
	watchSettle = 2 * time.Second
)

// resolveDataDir picks the --data-dir flag, then $RAGPRO_HOME, then ~/.ragpro.
func resolveDataDir(flag string) (string, error) {
	if flag != "" {
		return flag, nil
	}
	if env := os.Getenv(envHome); env != "" {
		return env, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("getting home directory: %w", err)
	}
	return filepath.Join(home, ".ragpro"), nil
}

// loadEnv reads .env from the working directory and the data directory.
// Variables already set in the environment win.
func loadEnv(dataDir string) {
	for _, path := range []string{".env", filepath.Join(dataDir, ".env")} {
		if _, err := os.Stat(path); err != nil {
			continue
		}
		if err := godotenv.Load(path); err != nil {
			log.Warn("failed to load %s: %v", path, err)
		}
	}
}

// bootstrap wires the adapters and services for one command.
func bootstrap(_ context.Context, opts cli.Options) (*cli.Services, func(), error) {
	dataDir, err := resolveDataDir(opts.DataDir)
	if err != nil {
		return nil, nil, err
	}
	loadEnv(dataDir)

	configStore, err := configfile.NewConfigStore(dataDir)
	if err != nil {
		return nil, nil, fmt.Errorf("opening config: %w", err)
	}
	settings, err := services.NewSettingsService(configStore)
	if err != nil {
		return nil, nil, err
	}
	cfg := settings.Get()
	log.Debug("data dir %s, config %s", dataDir, configStore.Path())

	models, err := ai.NewServices(cfg)
	if err != nil {
		return nil, nil, err
	}

	store, err := corpusfs.NewStore(filepath.Join(dataDir, corporaDir))
	if err != nil {
		_ = models.Close()
		return nil, nil, err
	}
	history, err := historyfile.New(filepath.Join(dataDir, historyDir))
	if err != nil {
		_ = models.Close()
		return nil, nil, err
	}
	prompts, err := configfile.NewPromptStore(filepath.Join(dataDir, promptsDir))
	if err != nil {
		_ = models.Close()
		return nil, nil, err
	}

	rt := services.Runtime{
		Config:   cfg,
		Embedder: models.Embedder,
		LLM:      models.LLM,
		Reranker: models.Reranker,
	}

	bus := services.NewProgressBus()
	schedCfg := services.DefaultSchedulerConfig()
	schedCfg.Interval = cfg.MonitorInterval()
	scheduler := services.NewScheduler(system.New(),
		services.WithSchedulerConfig(schedCfg),
		services.WithProgress(bus),
	)

	locks := services.NewCorpusLocks()
	reader := services.NewReader(filesystem.New(), normalisers.NewDefaultRegistry(models.OCR))
	builder := services.NewIndexBuilder(store, reader, rt, locks,
		services.WithScheduler(scheduler),
		services.WithBuildProgress(bus),
	)
	indexes := services.IndexFactory{
		Vector:  func(dim int) driven.VectorIndex { return vector.New(dim) },
		Keyword: func() driven.SearchEngine { return bm25.New() },
	}
	chat := services.NewChatService(store, rt, locks, indexes,
		services.WithPrompts(prompts),
		services.WithHistory(history),
	)

	svc := &cli.Services{
		Builder:   builder,
		Progress:  bus,
		Chat:      chat,
		Corpus:    services.NewCorpusService(store, history, models.Embedder, locks),
		Settings:  settings,
		Watch:     services.NewWatchService(filesystem.NewWatcher(), builder, watchSettle),
		Scheduler: scheduler,
		Providers: models,
	}

	release := func() {
		chat.Wait()
		if err := errors.Join(scheduler.Stop(), models.Close()); err != nil {
			log.Warn("shutdown: %v", err)
		}
	}
	return svc, release, nil
}
