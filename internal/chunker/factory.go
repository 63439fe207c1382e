package chunker

import (
	"fmt"
	"path/filepath"
	"strings"
)

// Factory создаёт chunker на основе метода и типа файла
type Factory struct {
	markdown *MarkdownChunker
	text     *MarkdownChunker
}

// NewFactory проверяет конфиг один раз: неверные пороги - фатальная ошибка старта
func NewFactory(config Config) (*Factory, error) {
	md, err := NewMarkdownChunker(config)
	if err != nil {
		return nil, err
	}
	txt, err := NewTextChunker(config)
	if err != nil {
		return nil, err
	}
	return &Factory{markdown: md, text: txt}, nil
}

// GetChunker возвращает подходящий chunker для файла
func (f *Factory) GetChunker(filePath, method string) (Chunker, error) {
	// Если метод явно указан - используем его
	if method != "" {
		return f.GetChunkerByMethod(method)
	}

	// Иначе определяем по расширению файла
	switch strings.ToLower(filepath.Ext(filePath)) {
	case ".md", ".markdown":
		return f.markdown, nil
	default:
		return f.text, nil
	}
}

// GetChunkerByMethod возвращает chunker по названию метода
func (f *Factory) GetChunkerByMethod(method string) (Chunker, error) {
	switch strings.ToLower(method) {
	case "markdown", "md":
		return f.markdown, nil
	case "simple", "text", "txt":
		return f.text, nil
	default:
		return nil, fmt.Errorf("unknown chunking method: %s", method)
	}
}
