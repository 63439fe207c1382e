package chunker

import (
	"strings"
)

// window пересобирает чанк больше max size скользящим окном с overlap.
// Заголовки наследуются от родителя.
func (m *MarkdownChunker) window(parent Chunk) []Chunk {
	runes := []rune(parent.Text)
	var chunks []Chunk
	for _, w := range m.config.windows(runes) {
		text := strings.TrimSpace(string(runes[w[0]:w[1]]))
		if text == "" || runeLen(text) < m.config.MinSize {
			continue
		}
		chunks = append(chunks, Chunk{
			Text:    text,
			Kind:    KindWindowed,
			Headers: append([]string(nil), parent.Headers...),
		})
	}
	return chunks
}

// windows возвращает границы [start, end) всех окон.
// Итераций не больше ceil(len / max(1, target - overlap)).
func (c Config) windows(runes []rune) [][2]int {
	n := len(runes)
	step := c.step()
	var bounds [][2]int
	for start := 0; start < n; start += step {
		end := min(start+c.TargetSize, n)
		if end < n {
			// Режем по предложению, только если следующее окно начнётся не позже разреза
			if cut := lastSentenceEnd(runes, start+step, end); cut > start {
				end = cut
			}
		}
		bounds = append(bounds, [2]int{start, end})
		if end >= n {
			break
		}
	}
	return bounds
}
