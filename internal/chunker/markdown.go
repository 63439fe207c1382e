package chunker

import (
	"strings"
)

// MarkdownChunker разбивает документ с учётом заголовков, абзацев и предложений
type MarkdownChunker struct {
	config  Config
	headers bool // false - '#' строки считаются обычным текстом
}

// NewMarkdownChunker создаёт chunker с разбором заголовков
func NewMarkdownChunker(config Config) (*MarkdownChunker, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &MarkdownChunker{config: config, headers: true}, nil
}

// NewTextChunker создаёт chunker для plain text: тот же алгоритм без заголовков
func NewTextChunker(config Config) (*MarkdownChunker, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &MarkdownChunker{config: config}, nil
}

func (m *MarkdownChunker) Name() string {
	if m.headers {
		return "markdown"
	}
	return "text"
}

// Chunk возвращает итоговую последовательность чанков документа.
// Порядок и содержимое детерминированы для одного и того же входа.
func (m *MarkdownChunker) Chunk(content, source string) []Chunk {
	var candidates []Chunk
	if runeLen(content) <= m.config.TargetSize {
		// Короткий документ никогда не отбрасывается по min size
		if text := strings.TrimSpace(content); text != "" {
			candidates = []Chunk{{Text: text, Kind: KindWhole}}
		}
	} else {
		candidates = m.build(content)
	}

	chunks := make([]Chunk, 0, len(candidates))
	for _, c := range candidates {
		if runeLen(c.Text) <= m.config.MaxSize {
			chunks = append(chunks, c)
			continue
		}
		chunks = append(chunks, m.window(c)...)
	}

	for i := range chunks {
		chunks[i].Index = i
		chunks[i].Source = source
		chunks[i].ID = Fingerprint(source, chunks[i].Text)
	}
	return chunks
}

// build - конечный автомат по размеченным фрагментам
func (m *MarkdownChunker) build(content string) []Chunk {
	spans := []Span{{Kind: SpanContent, Text: content}}
	if m.headers {
		spans = SplitSpans(content)
	}

	b := &builder{config: m.config}
	for _, span := range spans {
		switch span.Kind {
		case SpanHeader:
			b.header(span.Text)
		case SpanContent:
			b.content(span.Text)
		}
	}
	b.emit(KindFinal, b.acc.String())
	return b.out
}

type builder struct {
	config  Config
	acc     strings.Builder
	headers []string
	out     []Chunk
}

// emit добавляет чанк, если после обрезки он не меньше min size
func (b *builder) emit(kind Kind, text string) {
	text = strings.TrimSpace(text)
	if text == "" || runeLen(text) < b.config.MinSize {
		return
	}
	b.out = append(b.out, Chunk{
		Text:    text,
		Kind:    kind,
		Headers: append([]string(nil), b.headers...),
	})
}

func (b *builder) header(h string) {
	b.emit(KindSection, b.acc.String())

	// Новая секция: стек заголовков содержит только текущий заголовок
	b.headers = []string{h}
	b.acc.Reset()
	b.acc.WriteString(h)
	b.acc.WriteString("\n\n")
}

func (b *builder) content(text string) {
	b.acc.WriteString(text)
	b.acc.WriteString("\n\n")
	if runeLen(b.acc.String()) > b.config.MaxSize {
		b.subsplit()
	}
}

// subsplit режет переполненный аккумулятор по предложениям,
// а если их нет - на куски по target size
func (b *builder) subsplit() {
	text := b.acc.String()
	b.acc.Reset()

	sentences := SplitSentences(text)
	if len(sentences) <= 1 {
		runes := []rune(text)
		for start := 0; start < len(runes); start += b.config.TargetSize {
			end := min(start+b.config.TargetSize, len(runes))
			b.emit(KindContent, string(runes[start:end]))
		}
		return
	}

	var temp strings.Builder
	for _, sentence := range sentences {
		if runeLen(temp.String())+runeLen(sentence) <= b.config.TargetSize {
			temp.WriteString(sentence)
			temp.WriteString(" ")
			continue
		}
		b.emit(KindContent, temp.String())
		temp.Reset()
		temp.WriteString(sentence)
		temp.WriteString(" ")
	}
	b.acc.WriteString(temp.String())
}
