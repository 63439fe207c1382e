package app

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/muesli/reflow/indent"
	"github.com/muesli/reflow/wordwrap"

	"mdrag/internal/chunker"
	"mdrag/internal/index"
	"mdrag/internal/store"
)

const (
	barWidth      = 10
	contentIndent = 4
)

var (
	titleColor = color.New(color.FgCyan, color.Bold)
	okColor    = color.New(color.FgGreen)
	warnColor  = color.New(color.FgYellow)
	failColor  = color.New(color.FgRed)
	dimColor   = color.New(color.Faint)
)

func printIndexSummary(w io.Writer, s index.Stats, elapsed time.Duration) {
	titleColor.Fprintln(w, "Indexing complete")
	fmt.Fprintf(w, "  Documents scanned: %d\n", s.Scanned)
	warnColor.Fprintf(w, "  Documents skipped: %d\n", s.Skipped)
	if s.Failed > 0 {
		failColor.Fprintf(w, "  Documents failed:  %d\n", s.Failed)
	}
	okColor.Fprintf(w, "  Chunks added:      %d\n", s.Added)
	fmt.Fprintf(w, "  Total chunks:      %d\n", s.Total)
	if s.CharsIn > 0 {
		dimColor.Fprintf(w, "  Characters kept:   %d of %d\n", s.CharsOut, s.CharsIn)
	}
	dimColor.Fprintf(w, "  Took %s\n", elapsed.Round(time.Millisecond))
}

func printCollectionStats(w io.Writer, collection, backend string, count int) {
	titleColor.Fprintf(w, "Collection %s", collection)
	dimColor.Fprintf(w, " (%s)\n", backend)
	fmt.Fprintf(w, "  Chunks: %d\n", count)
}

func printResults(w io.Writer, query string, results []store.Match, width int) {
	if len(results) == 0 {
		warnColor.Fprintf(w, "No relevant results for %q\n", query)
		return
	}
	order, grouped := groupBySource(results)
	titleColor.Fprintf(w, "🔍 Found %d relevant sections in %d files\n\n", len(results), len(order))

	for i, r := range results {
		m := r.Metadata
		titleColor.Fprintf(w, "%d. %s", i+1, m.Filename)
		fmt.Fprintf(w, "  %s %.2f\n", relevanceBar(r.Similarity), r.Similarity)
		if m.Headers != "" {
			fmt.Fprintf(w, "   %s\n", m.Headers)
		}
		dimColor.Fprintf(w, "   %s chunk #%d, %d chars\n", m.ChunkType, m.ChunkIndex, m.ChunkSize)
		fmt.Fprintln(w, wrapContent(r.Text, width))
		fmt.Fprintln(w)
	}

	for _, source := range order {
		dimColor.Fprintf(w, "%s: %d\n", source, len(grouped[source]))
	}
}

// wrapContent переносит абзацы по ширине терминала с отступом
func wrapContent(text string, width int) string {
	limit := width - contentIndent
	if limit < 20 {
		limit = 20
	}
	paragraphs := chunker.SplitParagraphs(text)
	wrapped := make([]string, 0, len(paragraphs))
	for _, p := range paragraphs {
		wrapped = append(wrapped, wordwrap.String(p, limit))
	}
	return indent.String(strings.Join(wrapped, "\n\n"), contentIndent)
}

func relevanceBar(similarity float32) string {
	filled := int(similarity*barWidth + 0.5)
	filled = max(0, min(barWidth, filled))
	return strings.Repeat("█", filled) + strings.Repeat("░", barWidth-filled)
}
