package document

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/ledongthuc/pdf"
)

var (
	ErrUnsupported     = errors.New("unsupported document format")
	ErrInvalidEncoding = errors.New("document is not valid UTF-8")
)

// Pattern - какие файлы берём при обходе каталога
const Pattern = "**/*.{md,markdown,txt,pdf}"

// Document - неизменяемый текст и путь, откуда он прочитан
type Document struct {
	Source string
	Text   string
	Title  string // Первый заголовок markdown, если есть
}

// Discover возвращает абсолютные пути подходящих файлов в детерминированном порядке
func Discover(root string) ([]string, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve %s: %w", root, err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s is not a directory", root)
	}

	matches, err := doublestar.Glob(os.DirFS(abs), Pattern, doublestar.WithFilesOnly())
	if err != nil {
		return nil, fmt.Errorf("failed to scan %s: %w", root, err)
	}
	paths := make([]string, 0, len(matches))
	for _, m := range matches {
		paths = append(paths, filepath.Join(abs, filepath.FromSlash(m)))
	}
	sort.Strings(paths)
	return paths, nil
}

// Load читает документ; формат определяется по расширению
func Load(path string) (Document, error) {
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".md", ".markdown", ".txt":
		data, err := os.ReadFile(path)
		if err != nil {
			return Document{}, err
		}
		if !utf8.Valid(data) {
			return Document{}, fmt.Errorf("%s: %w", path, ErrInvalidEncoding)
		}
		doc := Document{Source: path, Text: string(data)}
		if ext != ".txt" {
			doc.Title = Title(data)
		}
		return doc, nil
	case ".pdf":
		text, err := readPDF(path)
		if err != nil {
			return Document{}, fmt.Errorf("failed to read pdf %s: %w", path, err)
		}
		return Document{Source: path, Text: text}, nil
	default:
		return Document{}, fmt.Errorf("%s: %w", path, ErrUnsupported)
	}
}

func readPDF(path string) (string, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	plain, err := r.GetPlainText()
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(plain); err != nil {
		return "", err
	}
	if !utf8.Valid(buf.Bytes()) {
		return "", ErrInvalidEncoding
	}
	return buf.String(), nil
}
