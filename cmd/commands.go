package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"

	"aqua-rag/internal/chromemdb"
	"aqua-rag/internal/config"
	"aqua-rag/internal/db"
	"aqua-rag/internal/embedding"
	"aqua-rag/internal/helper"
	"aqua-rag/internal/ingest"
	"aqua-rag/internal/kvstore"
	"aqua-rag/internal/llmservice"
	"aqua-rag/internal/models"
	"aqua-rag/internal/parser"
	"aqua-rag/internal/rag"
)

const (
	exitConfig = 1
	exitUsage  = 2
)

// metadataStore is what both the postgres and the badger backends provide.
type metadataStore interface {
	ingest.MetadataRecorder
	rag.HistoryProvider
	rag.HistoryRecorder
	Documents(ctx context.Context) ([]models.DocumentRecord, error)
	Close() error
}

func loadConfig(c *cli.Context) (*config.Config, error) {
	cfg, err := config.LoadConfig(c.String("config"))
	if err != nil {
		return nil, cli.Exit(fmt.Sprintf("invalid configuration: %v", err), exitConfig)
	}
	log.Debug().Str("path", c.String("config")).Msg("Loaded config")
	return cfg, nil
}

func indexOptions(cfg *config.Config) chromemdb.Options {
	return chromemdb.Options{
		Collection:    cfg.VectorStore.Collection,
		Compress:      cfg.VectorStore.Compress,
		EncryptionKey: cfg.VectorStore.EncryptionKey,
	}
}

func newStore(cfg *config.Config) *chromemdb.Store {
	return chromemdb.NewStore(cfg.VectorStore.Path, indexOptions(cfg))
}

func ingestOptions(cfg *config.Config) ingest.Options {
	return ingest.Options{ChunkSize: cfg.RAG.ChunkSize, ChunkOverlap: cfg.RAG.ChunkOverlap}
}

// openMetadata opens the configured metadata backend; nil when none is configured.
func openMetadata(ctx context.Context, cfg *config.Config) (metadataStore, error) {
	switch cfg.Metadata.Backend {
	case config.MetadataPostgres:
		sqldb, err := db.ConnectDB(&cfg.Database)
		if err != nil {
			return nil, err
		}
		bunDB := db.NewDB(sqldb, cfg.Database.Debug)
		if err := db.InitDB(ctx, bunDB); err != nil {
			bunDB.Close()
			return nil, fmt.Errorf("failed to initialize database: %w", err)
		}
		return db.NewStore(bunDB), nil
	case config.MetadataBadger:
		kv, err := kvstore.Open(cfg.Badger.Path, cfg.Badger.InMemory)
		if err != nil {
			return nil, err
		}
		return kv, nil
	default:
		return nil, nil
	}
}

func closeMetadata(store metadataStore) {
	if store == nil {
		return
	}
	if err := store.Close(); err != nil {
		log.Warn().Err(err).Msg("Failed to close metadata store")
	}
}

func indexCommand(c *cli.Context) error {
	files := c.StringSlice("files")
	folder := c.String("folder")
	if (len(files) == 0) == (folder == "") {
		return cli.Exit("exactly one of --files or --folder is required", exitUsage)
	}

	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	provider := embedding.NewProvider(&cfg.EmbedLLM)
	embedder, err := provider.Embedder()
	if err != nil {
		return cli.Exit(err.Error(), exitConfig)
	}

	paths := files
	if folder != "" {
		if paths, err = ingest.GatherFiles(folder); err != nil {
			return cli.Exit(fmt.Sprintf("cannot read folder %s: %v", folder, err), exitUsage)
		}
	}

	saveMetadata := !c.Bool("no-metadata")
	var recorder ingest.MetadataRecorder
	if saveMetadata {
		meta, err := openMetadata(c.Context, cfg)
		if err != nil {
			log.Warn().Err(err).Msg("Metadata store unavailable, documents will not be recorded")
		} else if meta != nil {
			defer closeMetadata(meta)
			recorder = meta
		}
	}

	store := newStore(cfg)
	store.Load()
	pipeline, err := ingest.NewPipeline(store, parser.NewPDFExtractor(), embedder, recorder, ingestOptions(cfg))
	if err != nil {
		return cli.Exit(err.Error(), exitConfig)
	}

	out := pipeline.Ingest(c.Context, paths, saveMetadata)
	fmt.Fprintln(c.App.Writer, out.Message)
	return nil
}

func askCommand(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}

	client := llmservice.NewClient(&cfg.LLM)
	model, err := client.Model()
	if err != nil {
		return cli.Exit(err.Error(), exitConfig)
	}
	adapter, err := llmservice.NewAdapter(model, llmservice.CallOptions(&cfg.LLM)...)
	if err != nil {
		return cli.Exit(err.Error(), exitConfig)
	}

	store := newStore(cfg)
	provider := embedding.NewProvider(&cfg.EmbedLLM)
	embedder, embedErr := provider.Embedder()
	if embedErr == nil {
		bootstrap(c.Context, cfg, store, embedder)
	} else {
		log.Warn().Err(embedErr).Msg("Answering without document retrieval")
	}

	meta, err := openMetadata(c.Context, cfg)
	if err != nil {
		log.Warn().Err(err).Msg("Metadata store unavailable, chat history disabled")
	}
	defer closeMetadata(meta)

	opts := rag.Options{
		HistoryLimit: cfg.RAG.HistoryLimit,
		TopK:         cfg.RAG.TopK,
		Debug:        cfg.RAG.Debug,
		LLMStatus:    client,
		EmbedStatus:  provider,
	}
	if meta != nil {
		opts.History = meta
	}
	pipeline, err := rag.NewPipeline(store, embedder, adapter, opts)
	if err != nil {
		return cli.Exit(err.Error(), exitConfig)
	}

	chatID := c.String("chat")
	if chatID == "" {
		if chatID, err = helper.GenerateUUID(); err != nil {
			return err
		}
	}

	answer, err := pipeline.Answer(c.Context, chatID, c.String("query"))
	if err != nil {
		log.Error().Err(err).Msg("Failed to answer")
		fmt.Fprintf(c.App.ErrWriter, "Sorry, the assistant could not answer: %v\n", err)
		return nil
	}
	log.Info().Str("chat_id", chatID).Msg("Answered")
	fmt.Fprintln(c.App.Writer, answer)
	return nil
}

// bootstrap loads the index, building it from the documents folder on first use.
func bootstrap(ctx context.Context, cfg *config.Config, store *chromemdb.Store, embedder embedding.Embedder) {
	p, err := ingest.NewPipeline(store, parser.NewPDFExtractor(), embedder, nil, ingestOptions(cfg))
	if err != nil {
		log.Warn().Err(err).Msg("Cannot prepare index")
		return
	}
	folder := cfg.RAG.DocsFolder
	if _, err := os.Stat(folder); errors.Is(err, os.ErrNotExist) {
		folder = ""
	}
	if !p.Bootstrap(ctx, folder) {
		log.Info().Msg("No index available, answers will not use documents")
	}
}

func statusCommand(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	client := llmservice.NewClient(&cfg.LLM)
	provider := embedding.NewProvider(&cfg.EmbedLLM)
	store := newStore(cfg)
	store.Load()

	embedder, _ := provider.Embedder()
	pipeline, err := rag.NewPipeline(store, embedder, unavailableLLM{}, rag.Options{
		LLMStatus:   client,
		EmbedStatus: provider,
	})
	if err != nil {
		return err
	}

	status := struct {
		models.Diagnostics
		IndexPath string `json:"index_path"`
		Documents *int   `json:"recorded_documents,omitempty"`
	}{
		Diagnostics: pipeline.Diagnostics(),
		IndexPath:   chromemdb.SnapshotPath(store.Dir(), indexOptions(cfg)),
	}

	meta, err := openMetadata(c.Context, cfg)
	if err != nil {
		log.Warn().Err(err).Msg("Metadata store unavailable")
	} else if meta != nil {
		defer closeMetadata(meta)
		if docs, err := meta.Documents(c.Context); err == nil {
			n := len(docs)
			status.Documents = &n
		} else {
			log.Warn().Err(err).Msg("Failed to list recorded documents")
		}
	}

	helper.PrettyPrint(c.App.Writer, status)
	return nil
}

// unavailableLLM stands in for the model where only diagnostics are needed.
type unavailableLLM struct{}

func (unavailableLLM) Invoke(context.Context, string) (string, error) {
	return "", llmservice.ErrLLMUnavailable
}
