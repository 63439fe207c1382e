package chunker

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Заголовок: 1-6 '#' в начале строки, пробел и непустой текст
var headerPattern = regexp.MustCompile(`(?m)^#{1,6}[ \t]+\S.*$`)

// SpanKind различает заголовки и содержимое
type SpanKind int

const (
	SpanContent SpanKind = iota
	SpanHeader
)

// Span - размеченный фрагмент документа
type Span struct {
	Kind SpanKind
	Text string
}

// IsHeader проверяет, является ли строка markdown заголовком
func IsHeader(line string) bool {
	line = strings.TrimRight(line, "\r\n")
	if strings.ContainsRune(line, '\n') {
		return false
	}
	return headerPattern.MatchString(line)
}

// SplitSpans разбивает текст на чередующиеся заголовки и содержимое.
// Фрагменты из одних пробелов отбрасываются.
func SplitSpans(text string) []Span {
	var spans []Span
	appendSpan := func(kind SpanKind, s string) {
		if strings.TrimSpace(s) == "" {
			return
		}
		if kind == SpanHeader {
			s = strings.TrimSpace(s)
		}
		spans = append(spans, Span{Kind: kind, Text: s})
	}

	prev := 0
	for _, loc := range headerPattern.FindAllStringIndex(text, -1) {
		appendSpan(SpanContent, text[prev:loc[0]])
		appendSpan(SpanHeader, text[loc[0]:loc[1]])
		prev = loc[1]
	}
	appendSpan(SpanContent, text[prev:])
	return spans
}

// SplitSentences режет текст сразу после '.', '!' или '?', за которыми идёт пробел.
// Пробелы между предложениями не сохраняются.
func SplitSentences(text string) []string {
	var sentences []string
	start := 0
	for i := 0; i < len(text); {
		r, size := utf8.DecodeRuneInString(text[i:])
		i += size
		if !isSentenceEnd(r) || i >= len(text) {
			continue
		}
		next, _ := utf8.DecodeRuneInString(text[i:])
		if !unicode.IsSpace(next) {
			continue
		}
		sentences = append(sentences, text[start:i])
		for i < len(text) {
			r, size := utf8.DecodeRuneInString(text[i:])
			if !unicode.IsSpace(r) {
				break
			}
			i += size
		}
		start = i
	}
	if start < len(text) {
		sentences = append(sentences, text[start:])
	}
	return sentences
}

// SplitParagraphs разбивает текст на параграфы по пустым строкам
func SplitParagraphs(text string) []string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	paragraphs := strings.Split(text, "\n\n")
	var result []string
	for _, p := range paragraphs {
		p = strings.TrimSpace(p)
		if p != "" {
			result = append(result, p)
		}
	}
	return result
}

// lastSentenceEnd ищет самую правую границу предложения c в [from, to]:
// runes[c-1] - знак конца предложения, runes[c] - пробел. -1 если нет.
func lastSentenceEnd(runes []rune, from, to int) int {
	if from < 1 {
		from = 1
	}
	if to > len(runes)-1 {
		to = len(runes) - 1
	}
	for c := to; c >= from; c-- {
		if isSentenceEnd(runes[c-1]) && unicode.IsSpace(runes[c]) {
			return c
		}
	}
	return -1
}

func isSentenceEnd(r rune) bool {
	return r == '.' || r == '!' || r == '?'
}

func runeLen(s string) int {
	return utf8.RuneCountInString(s)
}
