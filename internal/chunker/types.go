package chunker

import (
	"errors"
	"fmt"
)

// ErrInvalidConfig возвращается при нарушении инвариантов размеров
var ErrInvalidConfig = errors.New("invalid chunker config")

// Kind - путь алгоритма, который породил чанк. Только метаданные.
type Kind string

const (
	KindWhole    Kind = "whole"
	KindSection  Kind = "section"
	KindContent  Kind = "content"
	KindFinal    Kind = "final"
	KindWindowed Kind = "windowed"
)

// IsValid проверяет, что kind входит в известный набор
func (k Kind) IsValid() bool {
	switch k {
	case KindWhole, KindSection, KindContent, KindFinal, KindWindowed:
		return true
	}
	return false
}

// Chunk представляет единицу текста для векторизации
type Chunk struct {
	ID      string   // Fingerprint(source, text)
	Text    string   // Текст чанка без пробелов по краям
	Kind    Kind     // Каким путём получен
	Headers []string // Заголовки, активные в начале чанка
	Source  string   // Путь исходного документа
	Index   int      // Позиция в итоговой последовательности документа
}

// Chunker - интерфейс для всех типов chunker'ов
type Chunker interface {
	// Chunk разбивает контент на чанки
	Chunk(content, source string) []Chunk

	// Name возвращает название chunker'а для логирования
	Name() string
}

// Config содержит пороги размеров в символах (rune)
type Config struct {
	TargetSize int // Желаемый размер чанка
	Overlap    int // Перекрытие между окнами
	MinSize    int // Чанки меньше отбрасываются
	MaxSize    int // Жёсткий верхний предел
}

// DefaultConfig совпадает с настройками по умолчанию из окружения
func DefaultConfig() Config {
	return Config{
		TargetSize: 1000,
		Overlap:    200,
		MinSize:    200,
		MaxSize:    2000,
	}
}

// Validate проверяет min < target <= max и 0 <= overlap < target
func (c Config) Validate() error {
	if c.MinSize < 0 {
		return fmt.Errorf("%w: min size %d is negative", ErrInvalidConfig, c.MinSize)
	}
	if c.MinSize >= c.TargetSize {
		return fmt.Errorf("%w: min size %d must be smaller than target size %d", ErrInvalidConfig, c.MinSize, c.TargetSize)
	}
	if c.TargetSize > c.MaxSize {
		return fmt.Errorf("%w: target size %d exceeds max size %d", ErrInvalidConfig, c.TargetSize, c.MaxSize)
	}
	if c.Overlap < 0 {
		return fmt.Errorf("%w: overlap %d is negative", ErrInvalidConfig, c.Overlap)
	}
	if c.Overlap >= c.TargetSize {
		return fmt.Errorf("%w: overlap %d must be smaller than target size %d", ErrInvalidConfig, c.Overlap, c.TargetSize)
	}
	return nil
}

// step - сдвиг окна, минимум один символ
func (c Config) step() int {
	if s := c.TargetSize - c.Overlap; s > 0 {
		return s
	}
	return 1
}
