package config

import (
	"errors"
	"fmt"

	"github.com/caarlos0/env/v10"

	"mdrag/internal/chunker"
)

type Config struct {
	// Chunking
	ChunkSize    int    `env:"CHUNK_SIZE" envDefault:"1000"`
	ChunkOverlap int    `env:"CHUNK_OVERLAP" envDefault:"200"`
	MinChunkSize int    `env:"MIN_CHUNK_SIZE" envDefault:"200"`
	MaxChunkSize int    `env:"MAX_CHUNK_SIZE" envDefault:"2000"`
	ChunkMethod  string `env:"CHUNK_METHOD"`

	// Vector store
	VectorStore    string `env:"VECTOR_STORE" envDefault:"chromem"`
	CollectionName string `env:"COLLECTION_NAME" envDefault:"md_docs"`
	DataDir        string `env:"DATA_DIR" envDefault:"./chroma_db"`
	QdrantAddr     string `env:"QDRANT_ADDR" envDefault:"localhost:6334"`
	QdrantAPIKey   string `env:"QDRANT_API_KEY"`
	StoreRetries   uint64 `env:"STORE_RETRIES" envDefault:"3"`

	// Embeddings
	OllamaURL        string `env:"OLLAMA_URL" envDefault:"http://localhost:11434"`
	OllamaEmbedModel string `env:"OLLAMA_EMBED_MODEL" envDefault:"nomic-embed-text"`

	// Indexing
	IndexWorkers int `env:"INDEX_WORKERS" envDefault:"4"`

	// Search
	DefaultNumResults int     `env:"DEFAULT_NUM_RESULTS" envDefault:"5"`
	MaxNumResults     int     `env:"MAX_NUM_RESULTS" envDefault:"20"`
	MinRelevance      float32 `env:"MIN_RELEVANCE" envDefault:"0.3"`
	TerminalWidth     int     `env:"TERMINAL_WIDTH" envDefault:"80"`

	// Logging
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
	LogJSON  bool   `env:"LOG_JSON" envDefault:"false"`
}

func Init(cfg interface{}) error {
	return env.Parse(cfg)
}

// Chunking возвращает пороги для chunker'а
func (c *Config) Chunking() chunker.Config {
	return chunker.Config{
		TargetSize: c.ChunkSize,
		Overlap:    c.ChunkOverlap,
		MinSize:    c.MinChunkSize,
		MaxSize:    c.MaxChunkSize,
	}
}

// Validate отказывает в запуске при вырожденных настройках
func (c *Config) Validate() error {
	var errs []error
	if err := c.Chunking().Validate(); err != nil {
		errs = append(errs, err)
	}
	switch c.VectorStore {
	case "chromem", "qdrant":
	default:
		errs = append(errs, fmt.Errorf("unknown vector store %q", c.VectorStore))
	}
	if c.CollectionName == "" {
		errs = append(errs, errors.New("collection name is required"))
	}
	if c.IndexWorkers < 1 {
		errs = append(errs, fmt.Errorf("index workers must be positive, got %d", c.IndexWorkers))
	}
	if c.DefaultNumResults < 1 || c.MaxNumResults < c.DefaultNumResults {
		errs = append(errs, fmt.Errorf("invalid result limits: default %d, max %d", c.DefaultNumResults, c.MaxNumResults))
	}
	if c.MinRelevance < 0 || c.MinRelevance > 1 {
		errs = append(errs, fmt.Errorf("min relevance %.2f is outside [0, 1]", c.MinRelevance))
	}
	return errors.Join(errs...)
}
