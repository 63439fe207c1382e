package index

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/sethvargo/go-retry"
	"golang.org/x/sync/errgroup"

	"mdrag/internal/chunker"
	"mdrag/internal/document"
	"mdrag/internal/logger"
	"mdrag/internal/store"
)

// Stats - итог одного прогона индексации
type Stats struct {
	Scanned  int // документов просмотрено
	Skipped  int // пустые или уже полностью проиндексированные
	Failed   int // не прочитаны или не разобраны
	Added    int // новых чанков записано
	Total    int // чанков в хранилище после прогона
	CharsIn  int // символов во входных документах
	CharsOut int // символов в построенных чанках
}

type Options struct {
	Workers int
	Retries uint64
	Backoff time.Duration
	// Method переопределяет выбор chunker'а по расширению файла
	Method string
}

// Indexer добавляет в хранилище только чанки, которых там ещё нет
type Indexer struct {
	store    store.Store
	chunkers *chunker.Factory
	opts     Options
}

func New(s store.Store, chunkers *chunker.Factory, opts Options) *Indexer {
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	if opts.Backoff <= 0 {
		opts.Backoff = 500 * time.Millisecond
	}
	return &Indexer{store: s, chunkers: chunkers, opts: opts}
}

// prepared - результат обработки одного документа воркером
type prepared struct {
	source string
	title  string
	chars  int
	chunks []chunker.Chunk
	err    error
}

// IndexPaths читает файлы и индексирует их
func (ix *Indexer) IndexPaths(ctx context.Context, paths []string) (Stats, error) {
	return ix.run(ctx, len(paths), func(i int) (document.Document, error) {
		return document.Load(paths[i])
	})
}

// Index индексирует уже загруженные документы
func (ix *Indexer) Index(ctx context.Context, docs []document.Document) (Stats, error) {
	return ix.run(ctx, len(docs), func(i int) (document.Document, error) {
		return docs[i], nil
	})
}

func (ix *Indexer) run(ctx context.Context, n int, get func(int) (document.Document, error)) (Stats, error) {
	log := logger.FromContext(ctx)
	stats := Stats{Scanned: n}

	known, err := ix.store.KnownIDs(ctx)
	if err != nil {
		return stats, fmt.Errorf("failed to read index snapshot: %w", err)
	}
	log.Debug("Loaded index snapshot", "chunks", len(known))

	results := make([]prepared, n)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(ix.opts.Workers)
	for i := range n {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			doc, err := get(i)
			if err != nil {
				results[i].err = err
				return nil
			}
			results[i] = ix.prepare(doc)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return stats, err
	}

	submitted := make(map[string]struct{})
	for _, res := range results {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		if res.err != nil {
			stats.Failed++
			log.Warn("❌ Failed to process document", "error", res.err)
			continue
		}
		stats.CharsIn += res.chars

		var records []store.Record
		for _, c := range res.chunks {
			stats.CharsOut += utf8.RuneCountInString(c.Text)
			if _, ok := known[c.ID]; ok {
				continue
			}
			if _, ok := submitted[c.ID]; ok {
				continue
			}
			submitted[c.ID] = struct{}{}
			records = append(records, store.Record{
				ID:       c.ID,
				Text:     c.Text,
				Metadata: store.NewMetadata(c, res.title),
			})
		}
		if len(records) == 0 {
			stats.Skipped++
			log.Debug("Nothing new to index", "source", res.source, "chunks", len(res.chunks))
			continue
		}

		if err := ix.add(ctx, records); err != nil {
			return stats, fmt.Errorf("failed to store chunks of %s: %w", res.source, err)
		}
		stats.Added += len(records)
		log.Info("✅ Indexed document", "source", res.source, "new", len(records), "chunks", len(res.chunks))
	}

	stats.Total = len(known) + stats.Added
	return stats, nil
}

// prepare режет документ на чанки; ID и Index проставляет chunker
func (ix *Indexer) prepare(doc document.Document) prepared {
	res := prepared{
		source: doc.Source,
		title:  doc.Title,
		chars:  utf8.RuneCountInString(doc.Text),
	}
	if strings.TrimSpace(doc.Text) == "" {
		return res
	}
	c, err := ix.chunkers.GetChunker(doc.Source, ix.opts.Method)
	if err != nil {
		res.err = fmt.Errorf("%s: %w", doc.Source, err)
		return res
	}
	res.chunks = c.Chunk(doc.Text, doc.Source)
	return res
}

func (ix *Indexer) add(ctx context.Context, records []store.Record) error {
	backoff := retry.WithMaxRetries(ix.opts.Retries, retry.NewExponential(ix.opts.Backoff))
	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		if err := ix.store.Add(ctx, records); err != nil {
			logger.FromContext(ctx).Debug("Store write failed", "error", err)
			return retry.RetryableError(err)
		}
		return nil
	})
}
