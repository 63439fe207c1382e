package chunker

import (
	"fmt"
	"math/rand"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMarkdown(t *testing.T, cfg Config) *MarkdownChunker {
	t.Helper()
	m, err := NewMarkdownChunker(cfg)
	require.NoError(t, err)
	return m
}

func TestMarkdownChunker_ShortDocument(t *testing.T) {
	t.Run("Should emit the whole document as one chunk", func(t *testing.T) {
		m := newMarkdown(t, DefaultConfig())
		text := "Tiny note: remember to rotate the API keys monthly"
		require.Len(t, text, 50)

		chunks := m.Chunk(text, "notes/keys.md")

		require.Len(t, chunks, 1)
		assert.Equal(t, KindWhole, chunks[0].Kind)
		assert.Equal(t, text, chunks[0].Text)
		assert.Equal(t, 0, chunks[0].Index)
		assert.Equal(t, "notes/keys.md", chunks[0].Source)
		assert.Equal(t, Fingerprint("notes/keys.md", text), chunks[0].ID)
		assert.Empty(t, chunks[0].Headers)
	})

	t.Run("Should ignore min size for short documents", func(t *testing.T) {
		m := newMarkdown(t, Config{TargetSize: 100, Overlap: 10, MinSize: 50, MaxSize: 200})
		chunks := m.Chunk("  tiny  ", "a.md")
		require.Len(t, chunks, 1)
		assert.Equal(t, "tiny", chunks[0].Text)
	})

	t.Run("Should emit nothing for blank documents", func(t *testing.T) {
		m := newMarkdown(t, DefaultConfig())
		assert.Empty(t, m.Chunk(" \n\t ", "blank.md"))
	})
}

func TestMarkdownChunker_Headers(t *testing.T) {
	cfg := Config{TargetSize: 100, Overlap: 20, MinSize: 20, MaxSize: 200}
	doc := "# Guide\n\n" +
		"This guide explains how the indexer is wired together.\n\n" +
		"## Setup\n\n" +
		"Install the binary and export the embedding model name first.\n\n" +
		"## Usage\n\n" +
		"Run the index command against a folder of markdown notes."

	t.Run("Should carry the active header into each section", func(t *testing.T) {
		chunks := newMarkdown(t, cfg).Chunk(doc, "guide.md")
		require.Len(t, chunks, 3)

		assert.Equal(t, KindSection, chunks[0].Kind)
		assert.Equal(t, []string{"# Guide"}, chunks[0].Headers)

		assert.Equal(t, KindSection, chunks[1].Kind)
		assert.Equal(t, []string{"## Setup"}, chunks[1].Headers)
		assert.True(t, strings.HasPrefix(chunks[1].Text, "## Setup"))
		assert.Contains(t, chunks[1].Text, "Install the binary")

		assert.Equal(t, KindFinal, chunks[2].Kind)
		assert.Equal(t, []string{"## Usage"}, chunks[2].Headers)
	})

	t.Run("Should treat hash lines as content in plain text", func(t *testing.T) {
		txt, err := NewTextChunker(cfg)
		require.NoError(t, err)
		chunks := txt.Chunk(doc, "guide.txt")
		require.NotEmpty(t, chunks)
		for _, c := range chunks {
			assert.Empty(t, c.Headers)
		}
		assert.Equal(t, "text", txt.Name())
	})

	t.Run("Should drop sections below min size", func(t *testing.T) {
		small := "# A\n\nshort\n\n# B\n\n" + strings.Repeat("Long body sentence here. ", 6)
		chunks := newMarkdown(t, Config{TargetSize: 100, Overlap: 10, MinSize: 40, MaxSize: 400}).Chunk(small, "s.md")
		require.Len(t, chunks, 1)
		assert.Equal(t, []string{"# B"}, chunks[0].Headers)
		assert.NotContains(t, chunks[0].Text, "short")
	})
}

func TestMarkdownChunker_Oversized(t *testing.T) {
	t.Run("Should slice a single huge sentence and reconstruct the text", func(t *testing.T) {
		cfg := Config{TargetSize: 1000, Overlap: 200, MinSize: 200, MaxSize: 2000}
		text := strings.Repeat("abcdefghij", 300)

		chunks := newMarkdown(t, cfg).Chunk(text, "big.md")

		require.Greater(t, len(chunks), 1)
		var rebuilt strings.Builder
		for _, c := range chunks {
			assert.Contains(t, []Kind{KindContent, KindWindowed}, c.Kind)
			assert.GreaterOrEqual(t, runeLen(c.Text), 200)
			assert.LessOrEqual(t, runeLen(c.Text), 2000)
			rebuilt.WriteString(c.Text)
		}
		assert.Equal(t, text, rebuilt.String())
	})

	t.Run("Should window a long sentence and inherit its header", func(t *testing.T) {
		cfg := Config{TargetSize: 100, Overlap: 20, MinSize: 20, MaxSize: 200}
		doc := "## Big\n\nIntro sentence here. " + strings.Repeat("word ", 100) + "end."

		chunks := newMarkdown(t, cfg).Chunk(doc, "big.md")

		windowed := 0
		for _, c := range chunks {
			assert.LessOrEqual(t, runeLen(c.Text), cfg.MaxSize)
			assert.Equal(t, []string{"## Big"}, c.Headers)
			if c.Kind == KindWindowed {
				windowed++
			}
		}
		assert.Greater(t, windowed, 1)
		assert.Equal(t, KindContent, chunks[0].Kind)
	})

	t.Run("Should make the drop rate of an unbroken token visible", func(t *testing.T) {
		cfg := Config{TargetSize: 1000, Overlap: 200, MinSize: 200, MaxSize: 2000}
		text := strings.Repeat("x", 2150)

		chunks := newMarkdown(t, cfg).Chunk(text, "token.md")

		out := 0
		for _, c := range chunks {
			out += runeLen(c.Text)
		}
		// Хвост в 150 символов меньше min size и отбрасывается
		assert.Equal(t, 2000, out)
		assert.Equal(t, 150, runeLen(text)-out)
	})
}

func TestMarkdownChunker_Properties(t *testing.T) {
	configs := []Config{
		{TargetSize: 100, Overlap: 20, MinSize: 30, MaxSize: 200},
		{TargetSize: 1000, Overlap: 200, MinSize: 200, MaxSize: 2000},
		{TargetSize: 50, Overlap: 0, MinSize: 10, MaxSize: 50},
		{TargetSize: 300, Overlap: 299, MinSize: 1, MaxSize: 400},
		{TargetSize: 64, Overlap: 10, MinSize: 0, MaxSize: 64},
	}
	rng := rand.New(rand.NewSource(42))
	docs := make([]string, 0, 20)
	for i := 0; i < 20; i++ {
		docs = append(docs, randomDoc(rng))
	}

	t.Run("Should keep every chunk within min and max size", func(t *testing.T) {
		for ci, cfg := range configs {
			m := newMarkdown(t, cfg)
			for di, doc := range docs {
				chunks := m.Chunk(doc, "doc.md")
				if runeLen(doc) <= cfg.TargetSize {
					assert.LessOrEqual(t, len(chunks), 1)
					continue
				}
				for i, c := range chunks {
					msg := fmt.Sprintf("config %d doc %d chunk %d", ci, di, i)
					assert.NotEmpty(t, c.Text, msg)
					assert.Equal(t, strings.TrimSpace(c.Text), c.Text, msg)
					assert.GreaterOrEqual(t, runeLen(c.Text), cfg.MinSize, msg)
					assert.LessOrEqual(t, runeLen(c.Text), cfg.MaxSize, msg)
					assert.True(t, c.Kind.IsValid(), msg)
					assert.Equal(t, i, c.Index, msg)
					assert.Equal(t, Fingerprint("doc.md", c.Text), c.ID, msg)
				}
			}
		}
	})

	t.Run("Should be deterministic", func(t *testing.T) {
		for _, cfg := range configs {
			m := newMarkdown(t, cfg)
			for _, doc := range docs {
				assert.Equal(t, m.Chunk(doc, "doc.md"), m.Chunk(doc, "doc.md"))
			}
		}
	})
}

func TestConfig_Windows(t *testing.T) {
	ceilDiv := func(a, b int) int { return (a + b - 1) / b }

	t.Run("Should terminate even when overlap is not smaller than target", func(t *testing.T) {
		cfg := Config{TargetSize: 10, Overlap: 15}
		runes := []rune(strings.Repeat("z", 1000))
		bounds := cfg.windows(runes)
		assert.LessOrEqual(t, len(bounds), ceilDiv(1000, 1))
		assert.Equal(t, 1000, bounds[len(bounds)-1][1])
	})

	t.Run("Should stay within the iteration bound and cover the text", func(t *testing.T) {
		cfg := Config{TargetSize: 100, Overlap: 30}
		runes := []rune(strings.Repeat("A sentence that ends. ", 50))
		bounds := cfg.windows(runes)

		assert.LessOrEqual(t, len(bounds), ceilDiv(len(runes), 70))
		assert.Equal(t, 0, bounds[0][0])
		assert.Equal(t, len(runes), bounds[len(bounds)-1][1])
		for i := 1; i < len(bounds); i++ {
			assert.Greater(t, bounds[i][0], bounds[i-1][0])
			assert.LessOrEqual(t, bounds[i][0], bounds[i-1][1], "gap before window %d", i)
			assert.LessOrEqual(t, bounds[i][1]-bounds[i][0], cfg.TargetSize)
		}
	})

	t.Run("Should prefer a sentence boundary inside the overlap zone", func(t *testing.T) {
		cfg := Config{TargetSize: 100, Overlap: 30}
		text := strings.Repeat("a", 80) + ". " + strings.Repeat("b", 200)
		bounds := cfg.windows([]rune(text))
		assert.Equal(t, [2]int{0, 81}, bounds[0])
	})
}

func TestConfig_Validate(t *testing.T) {
	testCases := []struct {
		name string
		cfg  Config
		ok   bool
	}{
		{"defaults", DefaultConfig(), true},
		{"zero min", Config{TargetSize: 10, Overlap: 0, MinSize: 0, MaxSize: 10}, true},
		{"min equals target", Config{TargetSize: 10, MinSize: 10, MaxSize: 20}, false},
		{"min not below max", Config{TargetSize: 10, MinSize: 30, MaxSize: 30}, false},
		{"target above max", Config{TargetSize: 30, MinSize: 1, MaxSize: 20}, false},
		{"negative overlap", Config{TargetSize: 10, Overlap: -1, MinSize: 1, MaxSize: 20}, false},
		{"overlap equals target", Config{TargetSize: 10, Overlap: 10, MinSize: 1, MaxSize: 20}, false},
		{"negative min", Config{TargetSize: 10, MinSize: -1, MaxSize: 20}, false},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.cfg.Validate()
			if tc.ok {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, ErrInvalidConfig)
		})
	}
}

// randomDoc собирает markdown с заголовками, предложениями и длинными токенами
func randomDoc(rng *rand.Rand) string {
	words := []string{"alpha", "beta", "gamma", "delta", "vector", "index", "chunk", "store", "é", "日本"}
	var b strings.Builder
	blocks := 1 + rng.Intn(12)
	for i := 0; i < blocks; i++ {
		switch rng.Intn(5) {
		case 0:
			fmt.Fprintf(&b, "%s %s %d\n\n", strings.Repeat("#", 1+rng.Intn(6)), words[rng.Intn(len(words))], i)
		case 1:
			b.WriteString(strings.Repeat("x", rng.Intn(3000)))
			b.WriteString("\n\n")
		default:
			sentences := 1 + rng.Intn(40)
			for s := 0; s < sentences; s++ {
				n := 1 + rng.Intn(25)
				for w := 0; w < n; w++ {
					if w > 0 {
						b.WriteString(" ")
					}
					b.WriteString(words[rng.Intn(len(words))])
				}
				b.WriteString([]string{". ", "! ", "? ", " "}[rng.Intn(4)])
			}
			b.WriteString("\n\n")
		}
	}
	return b.String()
}
