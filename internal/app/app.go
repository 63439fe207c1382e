package app

import (
	"context"
	"fmt"
	"io"
	"os"

	"mdrag/internal/chunker"
	"mdrag/internal/config"
	"mdrag/internal/embedding"
	"mdrag/internal/logger"
	"mdrag/internal/store"

	"github.com/philippgille/chromem-go"
)

// Embedder считает эмбеддинги и умеет докачивать модели
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EnsureModels(ctx context.Context, models ...string) error
}

type App struct {
	cfg      *config.Config
	store    store.Store
	chunkers *chunker.Factory
	out      io.Writer
}

// New собирает приложение: проверяет ollama и открывает хранилище
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	embedder, err := embedding.NewOllama(embedding.Options{
		URL:     cfg.OllamaURL,
		Model:   cfg.OllamaEmbedModel,
		Retries: cfg.StoreRetries,
	})
	if err != nil {
		return nil, err
	}
	// Ensure Ollama and models are available
	if err := embedder.EnsureModels(ctx, cfg.OllamaEmbedModel); err != nil {
		return nil, fmt.Errorf("ollama model check failed: %w", err)
	}

	s, err := openStore(ctx, cfg, embedder)
	if err != nil {
		return nil, err
	}
	return NewWithStore(cfg, s)
}

// NewWithStore собирает приложение поверх готового хранилища
func NewWithStore(cfg *config.Config, s store.Store) (*App, error) {
	chunkers, err := chunker.NewFactory(cfg.Chunking())
	if err != nil {
		return nil, err
	}
	return &App{
		cfg:      cfg,
		store:    s,
		chunkers: chunkers,
		out:      os.Stdout,
	}, nil
}

// SetOutput перенаправляет отчёты, по умолчанию stdout
func (a *App) SetOutput(w io.Writer) {
	a.out = w
}

func (a *App) Close() error {
	return a.store.Close()
}

func openStore(ctx context.Context, cfg *config.Config, embedder Embedder) (store.Store, error) {
	log := logger.FromContext(ctx)
	switch cfg.VectorStore {
	case "qdrant":
		log.Info("Using Qdrant vector store", "addr", trimHostPrefix(cfg.QdrantAddr), "collection", cfg.CollectionName)
		return store.NewQdrant(ctx, store.QdrantOptions{
			Addr:       cfg.QdrantAddr,
			APIKey:     cfg.QdrantAPIKey,
			Collection: cfg.CollectionName,
			Embed:      embedder.Embed,
		})
	default:
		log.Info("Using local vector store", "dir", cfg.DataDir, "collection", cfg.CollectionName)
		return store.NewChromem(ctx, store.ChromemOptions{
			Dir:            cfg.DataDir,
			Collection:     cfg.CollectionName,
			EmbeddingModel: cfg.OllamaEmbedModel,
			EmbeddingFunc:  chromem.EmbeddingFunc(embedder.Embed),
			Concurrency:    cfg.IndexWorkers,
		})
	}
}

// Helper to print address nicely in logs
func trimHostPrefix(addr string) string {
	if addr == "" {
		return "localhost"
	}
	if addr[0] == ':' {
		return "127.0.0.1" + addr
	}
	return addr
}
