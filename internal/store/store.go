package store

import (
	"context"
	"errors"
	"path/filepath"
	"strconv"
	"strings"

	"mdrag/internal/chunker"
)

// ErrEmptyIndex - в коллекции нет ни одного чанка
var ErrEmptyIndex = errors.New("no documents have been indexed yet")

// HeaderSeparator склеивает заголовки в строку для метаданных
const HeaderSeparator = " | "

// Metadata - схема метаданных чанка в хранилище
type Metadata struct {
	Source     string
	ChunkIndex int
	ChunkType  chunker.Kind
	ChunkSize  int
	Filename   string
	Headers    string
	Title      string
}

// NewMetadata собирает метаданные из чанка
func NewMetadata(c chunker.Chunk, title string) Metadata {
	return Metadata{
		Source:     c.Source,
		ChunkIndex: c.Index,
		ChunkType:  c.Kind,
		ChunkSize:  len([]rune(c.Text)),
		Filename:   filepath.Base(c.Source),
		Headers:    strings.Join(c.Headers, HeaderSeparator),
		Title:      title,
	}
}

// Strings - плоское представление для chromem
func (m Metadata) Strings() map[string]string {
	return map[string]string{
		"source":      m.Source,
		"chunk_index": strconv.Itoa(m.ChunkIndex),
		"chunk_type":  string(m.ChunkType),
		"chunk_size":  strconv.Itoa(m.ChunkSize),
		"filename":    m.Filename,
		"headers":     m.Headers,
		"title":       m.Title,
	}
}

// MetadataFromStrings - обратное к Strings; битые числа дают ноль
func MetadataFromStrings(m map[string]string) Metadata {
	index, _ := strconv.Atoi(m["chunk_index"])
	size, _ := strconv.Atoi(m["chunk_size"])
	return Metadata{
		Source:     m["source"],
		ChunkIndex: index,
		ChunkType:  chunker.Kind(m["chunk_type"]),
		ChunkSize:  size,
		Filename:   m["filename"],
		Headers:    m["headers"],
		Title:      m["title"],
	}
}

// Record - чанк, готовый к записи; ID равен fingerprint
type Record struct {
	ID       string
	Text     string
	Metadata Metadata
}

// Match - результат поиска
type Match struct {
	ID         string
	Text       string
	Metadata   Metadata
	Similarity float32
}

// Store - контракт векторного хранилища. Эмбеддинги считает само хранилище.
type Store interface {
	// KnownIDs - снимок уже сохранённых fingerprint'ов
	KnownIDs(ctx context.Context) (map[string]struct{}, error)
	Add(ctx context.Context, records []Record) error
	Count(ctx context.Context) (int, error)
	Query(ctx context.Context, text string, n int) ([]Match, error)
	Close() error
}
