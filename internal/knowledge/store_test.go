package knowledge

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/cloudwego/eino/components/retriever"
	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeDoc(t *testing.T, dir, name, text string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(filepath.Join(dir, name)), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(text), 0o644))
}

func TestLoad_ChunksLongDocuments(t *testing.T) {
	paras := make([]string, 8)
	for i := range paras {
		paras[i] = strings.TrimSpace(strings.Repeat(fmt.Sprintf("w%d ", i), 50))
	}
	dir := t.TempDir()
	writeDoc(t, dir, "catalog.md", strings.Join(paras, "\n\n"))

	s, err := Load(context.Background(), dir, 1000, 200)
	require.NoError(t, err)
	require.GreaterOrEqual(t, s.Len(), 2)

	var all strings.Builder
	for i, c := range s.chunks {
		assert.Equal(t, fmt.Sprintf("catalog.md#%d", i), c.doc.ID)
		assert.Equal(t, "catalog.md", c.doc.MetaData["filename"])
		assert.LessOrEqual(t, utf8.RuneCountInString(c.doc.Content), 1000)
		all.WriteString(c.doc.Content)
	}
	for _, p := range paras {
		assert.Contains(t, all.String(), p)
	}
}

func TestLoad_ChunkSizeCountsRunes(t *testing.T) {
	dir := t.TempDir()
	writeDoc(t, dir, "he.txt", strings.Repeat("שלום ", 60))

	s, err := Load(context.Background(), dir, 100, 0)
	require.NoError(t, err)
	// 300 runes but 540 bytes: rune counting yields a handful of chunks
	assert.GreaterOrEqual(t, s.Len(), 3)
	assert.LessOrEqual(t, s.Len(), 4)
	for _, c := range s.chunks {
		assert.LessOrEqual(t, utf8.RuneCountInString(c.doc.Content), 100)
	}
}

func TestTokenize(t *testing.T) {
	assert.Equal(t, []string{"terminal", "a920", "costs", "99"}, tokenize("Terminal A920, costs 99$ a"))
	// niqqud is folded away so pointed and unpointed Hebrew match
	assert.Equal(t, tokenize("מסוף"), tokenize("מָסוֹף"))
}

func TestStore_Retrieve(t *testing.T) {
	s := NewStore(
		&schema.Document{ID: "a", Content: "The A920 terminal supports contactless payments."},
		&schema.Document{ID: "b", Content: "Our office is in Haifa. Demonstrations are held at the office."},
		&schema.Document{ID: "c", Content: "Yacht charters start at two hours."},
	)
	ctx := context.Background()

	docs, err := s.Retrieve(ctx, "where is the office for demonstrations?")
	require.NoError(t, err)
	require.NotEmpty(t, docs)
	assert.Equal(t, "b", docs[0].ID)
	assert.Greater(t, docs[0].Score(), 0.0)

	docs, err = s.Retrieve(ctx, "terminal yacht office", retriever.WithTopK(2))
	require.NoError(t, err)
	assert.Len(t, docs, 2)

	docs, err = s.Retrieve(ctx, "?!")
	require.NoError(t, err)
	assert.Empty(t, docs)
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "products.md"), []byte("# Terminals\n\nThe A920 terminal costs 99 per month."), 0o644))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "nested"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "nested", "faq.txt"), []byte("Installation takes two days."), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "logo.png"), []byte{0x89, 0x50}, 0o644))

	s, err := Load(context.Background(), dir, DefaultChunkSize, DefaultChunkOverlap)
	require.NoError(t, err)
	assert.Equal(t, 2, s.Len())

	docs, err := s.Retrieve(context.Background(), "how long does installation take")
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "faq.txt#0", docs[0].ID)
	assert.Equal(t, "faq.txt", docs[0].MetaData["filename"])
}

func TestLoad_MissingDir(t *testing.T) {
	s, err := Load(context.Background(), filepath.Join(t.TempDir(), "absent"), DefaultChunkSize, DefaultChunkOverlap)
	require.NoError(t, err)
	assert.Zero(t, s.Len())
}
