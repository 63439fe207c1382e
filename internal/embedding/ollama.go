package embedding

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ollama/ollama/api"
	"github.com/sethvargo/go-retry"

	"mdrag/internal/logger"
)

// ErrEmptyEmbedding - модель вернула пустой вектор
var ErrEmptyEmbedding = errors.New("model returned an empty embedding")

type Options struct {
	URL     string
	Model   string
	Retries uint64
	Timeout time.Duration
}

// Ollama считает эмбеддинги через API ollama
type Ollama struct {
	client  *api.Client
	model   string
	retries uint64
}

func NewOllama(opts Options) (*Ollama, error) {
	base, err := url.Parse(opts.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid Ollama URL %q: %w", opts.URL, err)
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 60 * time.Second
	}
	return &Ollama{
		client:  api.NewClient(base, &http.Client{Timeout: opts.Timeout}),
		model:   opts.Model,
		retries: opts.Retries,
	}, nil
}

func (o *Ollama) Model() string {
	return o.model
}

// Embed возвращает эмбеддинг текста. Сетевые сбои повторяются с backoff.
func (o *Ollama) Embed(ctx context.Context, text string) ([]float32, error) {
	req := &api.EmbeddingRequest{Model: o.model, Prompt: text}

	var resp *api.EmbeddingResponse
	backoff := retry.WithMaxRetries(o.retries, retry.NewExponential(200*time.Millisecond))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		var err error
		resp, err = o.client.Embeddings(ctx, req)
		if err == nil {
			return nil
		}
		var status api.StatusError
		if errors.As(err, &status) && status.StatusCode < http.StatusInternalServerError {
			return err
		}
		logger.FromContext(ctx).Debug("Embedding attempt failed", "error", err)
		return retry.RetryableError(err)
	})
	if err != nil {
		return nil, fmt.Errorf("embedding failed: %w", err)
	}
	if len(resp.Embedding) == 0 {
		return nil, ErrEmptyEmbedding
	}

	vector := make([]float32, len(resp.Embedding))
	for i, v := range resp.Embedding {
		vector[i] = float32(v)
	}
	return vector, nil
}

// EnsureModels проверяет, что ollama доступна, и докачивает недостающие модели
func (o *Ollama) EnsureModels(ctx context.Context, models ...string) error {
	log := logger.FromContext(ctx)

	list, err := o.client.List(ctx)
	if err != nil {
		return fmt.Errorf("ollama is not running or not reachable: %w", err)
	}

	for _, model := range models {
		if hasModel(list.Models, model) {
			log.Debug("Model is available", "model", model)
			continue
		}
		log.Info("Model not found, pulling...", "model", model)
		err := o.client.Pull(ctx, &api.PullRequest{Model: model}, func(p api.ProgressResponse) error {
			if p.Total > 0 {
				log.Debug("Pulling", "model", model, "status", p.Status, "completed", p.Completed, "total", p.Total)
			}
			return nil
		})
		if err != nil {
			return fmt.Errorf("failed to pull model %s: %w", model, err)
		}
		log.Info("Model pulled successfully", "model", model)
	}
	return nil
}

// hasModel сравнивает имена с учётом неявного тега :latest
func hasModel(models []api.ListModelResponse, name string) bool {
	for _, m := range models {
		if m.Name == name || strings.TrimSuffix(m.Name, ":latest") == name {
			return true
		}
	}
	return false
}
