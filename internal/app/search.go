package app

import (
	"context"
	"errors"
	"strings"

	"mdrag/internal/logger"
	"mdrag/internal/store"
)

// ErrEmptyQuery - пустой поисковый запрос
var ErrEmptyQuery = errors.New("query is empty")

// Search ищет релевантные чанки. n <= 0 означает значение по умолчанию.
func (a *App) Search(ctx context.Context, query string, n int) ([]store.Match, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, ErrEmptyQuery
	}
	if n <= 0 {
		n = a.cfg.DefaultNumResults
	}
	if n > a.cfg.MaxNumResults {
		n = a.cfg.MaxNumResults
	}

	// Хранилище само ограничивает n размером коллекции
	matches, err := a.store.Query(ctx, query, n)
	if err != nil {
		return nil, err
	}

	// Фильтруем по similarity
	results := make([]store.Match, 0, len(matches))
	for _, m := range matches {
		if m.Similarity < a.cfg.MinRelevance {
			continue
		}
		results = append(results, m)
	}
	logger.FromContext(ctx).Debug("Search finished",
		"requested", n, "found", len(matches), "relevant", len(results))
	return results, nil
}

// groupBySource группирует результаты по файлам, сохраняя порядок первого появления
func groupBySource(results []store.Match) ([]string, map[string][]store.Match) {
	var order []string
	grouped := make(map[string][]store.Match)
	for _, r := range results {
		source := r.Metadata.Filename
		if source == "" {
			source = "Unknown"
		}
		if _, ok := grouped[source]; !ok {
			order = append(order, source)
		}
		grouped[source] = append(grouped[source], r)
	}
	return order, grouped
}
