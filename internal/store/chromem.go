package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"time"

	"github.com/philippgille/chromem-go"

	"mdrag/internal/logger"
)

const (
	chromemDBFile       = "chromem.gob.gz"
	chromemManifestFile = "manifest.json"
)

// ChromemOptions настраивает локальное хранилище на chromem-go
type ChromemOptions struct {
	Dir            string
	Collection     string
	EmbeddingModel string
	EmbeddingFunc  chromem.EmbeddingFunc
	Concurrency    int
}

// Manifest хранит fingerprint'ы по файлам: chromem не умеет перечислять ID
type Manifest struct {
	Collection     string              `json:"collection"`
	EmbeddingModel string              `json:"embedding_model"`
	Files          map[string]FileInfo `json:"files"`
}

type FileInfo struct {
	Path      string    `json:"path"`
	Chunks    []string  `json:"chunks"`
	IndexedAt time.Time `json:"indexed_at"`
}

// Chromem - in-memory коллекция chromem, сохраняемая в gob файл после каждой записи
type Chromem struct {
	opts         ChromemOptions
	db           *chromem.DB
	coll         *chromem.Collection
	manifest     *Manifest
	dbFile       string
	manifestFile string
	log          logger.Logger
}

var _ Store = (*Chromem)(nil)

func NewChromem(ctx context.Context, opts ChromemOptions) (*Chromem, error) {
	if opts.Concurrency <= 0 {
		opts.Concurrency = runtime.NumCPU()
	}
	if err := os.MkdirAll(opts.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	s := &Chromem{
		opts:         opts,
		db:           chromem.NewDB(),
		dbFile:       filepath.Join(opts.Dir, chromemDBFile),
		manifestFile: filepath.Join(opts.Dir, chromemManifestFile),
		log:          logger.FromContext(ctx).With("store", "chromem", "collection", opts.Collection),
	}

	if err := s.loadManifest(); err != nil {
		return nil, fmt.Errorf("failed to load manifest: %w", err)
	}

	// Векторы от другой модели несравнимы: сбрасываем индекс
	if s.manifest.EmbeddingModel != "" && s.manifest.EmbeddingModel != opts.EmbeddingModel {
		s.log.Warn("Embedding model changed, invalidating index",
			"was", s.manifest.EmbeddingModel, "now", opts.EmbeddingModel)
		_ = os.Remove(s.dbFile)
		s.manifest.Files = make(map[string]FileInfo)
	}
	s.manifest.Collection = opts.Collection
	s.manifest.EmbeddingModel = opts.EmbeddingModel

	if _, err := os.Stat(s.dbFile); err == nil {
		s.log.Debug("Loading vector database", "file", s.dbFile)
		if err := s.db.ImportFromFile(s.dbFile, "", opts.Collection); err != nil {
			return nil, fmt.Errorf("failed to import DB: %w", err)
		}
	} else {
		s.log.Debug("No existing DB file found, starting fresh")
	}

	coll, err := s.db.GetOrCreateCollection(opts.Collection, nil, opts.EmbeddingFunc)
	if err != nil {
		return nil, fmt.Errorf("failed to open collection: %w", err)
	}
	s.coll = coll
	return s, nil
}

// KnownIDs берёт ID из манифеста, оставляя только те, что реально есть в коллекции
func (s *Chromem) KnownIDs(ctx context.Context) (map[string]struct{}, error) {
	ids := make(map[string]struct{})
	for _, f := range s.manifest.Files {
		for _, id := range f.Chunks {
			if _, err := s.coll.GetByID(ctx, id); err != nil {
				continue
			}
			ids[id] = struct{}{}
		}
	}
	return ids, nil
}

func (s *Chromem) Add(ctx context.Context, records []Record) error {
	if len(records) == 0 {
		return nil
	}
	docs := make([]chromem.Document, len(records))
	for i, r := range records {
		docs[i] = chromem.Document{
			ID:       r.ID,
			Content:  r.Text,
			Metadata: r.Metadata.Strings(),
		}
	}
	if err := s.coll.AddDocuments(ctx, docs, s.opts.Concurrency); err != nil {
		return fmt.Errorf("failed to add documents: %w", err)
	}

	now := time.Now()
	for _, r := range records {
		info := s.manifest.Files[r.Metadata.Source]
		info.Path = r.Metadata.Source
		if !slices.Contains(info.Chunks, r.ID) {
			info.Chunks = append(info.Chunks, r.ID)
		}
		info.IndexedAt = now
		s.manifest.Files[r.Metadata.Source] = info
	}
	return s.save()
}

func (s *Chromem) Count(context.Context) (int, error) {
	return s.coll.Count(), nil
}

func (s *Chromem) Query(ctx context.Context, text string, n int) ([]Match, error) {
	count := s.coll.Count()
	if count == 0 {
		return nil, ErrEmptyIndex
	}
	if n > count {
		n = count
	}
	results, err := s.coll.Query(ctx, text, n, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	matches := make([]Match, 0, len(results))
	for _, r := range results {
		matches = append(matches, Match{
			ID:         r.ID,
			Text:       r.Content,
			Metadata:   MetadataFromStrings(r.Metadata),
			Similarity: r.Similarity,
		})
	}
	return matches, nil
}

func (s *Chromem) Close() error {
	return s.save()
}

func (s *Chromem) save() error {
	if err := s.db.ExportToFile(s.dbFile, true, "", s.opts.Collection); err != nil {
		return fmt.Errorf("failed to export DB: %w", err)
	}
	if err := s.saveManifest(); err != nil {
		return fmt.Errorf("failed to save manifest: %w", err)
	}
	return nil
}

func (s *Chromem) loadManifest() error {
	s.manifest = &Manifest{Files: make(map[string]FileInfo)}
	f, err := os.Open(s.manifestFile)
	if os.IsNotExist(err) {
		return nil
	} else if err != nil {
		return err
	}
	defer f.Close()

	if err := json.NewDecoder(f).Decode(s.manifest); err != nil {
		return err
	}
	if s.manifest.Files == nil {
		s.manifest.Files = make(map[string]FileInfo)
	}
	return nil
}

func (s *Chromem) saveManifest() error {
	f, err := os.Create(s.manifestFile)
	if err != nil {
		return err
	}
	defer f.Close()

	return json.NewEncoder(f).Encode(s.manifest)
}
