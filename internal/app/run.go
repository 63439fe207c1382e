package app

import (
	"context"
	"fmt"
	"time"

	"mdrag/internal/document"
	"mdrag/internal/index"
	"mdrag/internal/logger"
)

// Index индексирует все поддерживаемые файлы в каталоге и печатает итог
func (a *App) Index(ctx context.Context, dir string) (index.Stats, error) {
	log := logger.FromContext(ctx)
	start := time.Now()

	paths, err := document.Discover(dir)
	if err != nil {
		return index.Stats{}, fmt.Errorf("failed to scan %s: %w", dir, err)
	}
	log.Info("Found documents", "dir", dir, "count", len(paths))

	ix := index.New(a.store, a.chunkers, index.Options{
		Workers: a.cfg.IndexWorkers,
		Retries: a.cfg.StoreRetries,
		Method:  a.cfg.ChunkMethod,
	})
	stats, err := ix.IndexPaths(ctx, paths)
	if err != nil {
		return stats, err
	}
	printIndexSummary(a.out, stats, time.Since(start))
	return stats, nil
}

// SearchAndPrint выполняет поиск и печатает результаты
func (a *App) SearchAndPrint(ctx context.Context, query string, n int) error {
	results, err := a.Search(ctx, query, n)
	if err != nil {
		return err
	}
	printResults(a.out, query, results, a.cfg.TerminalWidth)
	return nil
}

// Stats печатает размер коллекции
func (a *App) Stats(ctx context.Context) (int, error) {
	count, err := a.store.Count(ctx)
	if err != nil {
		return 0, err
	}
	printCollectionStats(a.out, a.cfg.CollectionName, a.cfg.VectorStore, count)
	return count, nil
}
