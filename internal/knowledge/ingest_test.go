package knowledge

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const guide = "# Retinol\n\nRetinol is a *vitamin A* derivative.\nUse it at night.\n\n- Start slowly\n- Use sunscreen\n\n```\nph 5.5\n```\n"

func TestPlainText(t *testing.T) {
	in := NewIngester(keywordEmbedder{}, NewMemoryStore(), DefaultIngestConfig(), nil)
	blocks := in.PlainText([]byte(guide))

	assert.Equal(t, []string{
		"Retinol",
		"Retinol is a vitamin A derivative. Use it at night.",
		"Start slowly",
		"Use sunscreen",
		"ph 5.5",
	}, blocks)
}

func TestChunk(t *testing.T) {
	text := strings.Repeat("a", 25)
	chunks := Chunk([]string{text}, 10, 2)
	require.Len(t, chunks, 3)
	assert.Len(t, chunks[0], 10)
	assert.Len(t, chunks[2], 9)

	assert.Nil(t, Chunk(nil, 10, 2))
	assert.Nil(t, Chunk([]string{"abc"}, 0, 0))
	assert.Equal(t, []string{"abc"}, Chunk([]string{"abc"}, 10, 20))
}

func TestIngest(t *testing.T) {
	store := NewMemoryStore()
	in := NewIngester(keywordEmbedder{}, store, IngestConfig{ChunkSize: 40, ChunkOverlap: 10}, nil)

	n, err := in.Ingest(context.Background(), "retinol.md", []byte(guide))
	require.NoError(t, err)
	assert.Greater(t, n, 1)
	assert.Equal(t, n, store.Len())

	hits, err := store.Search(context.Background(), []float32{1, 0, 0, 0}, 10, 0.1)
	require.NoError(t, err)
	require.NotEmpty(t, hits)
	assert.Equal(t, "retinol.md", hits[0].Source)
}

func TestIngestEmptyDocument(t *testing.T) {
	in := NewIngester(keywordEmbedder{}, NewMemoryStore(), DefaultIngestConfig(), nil)
	_, err := in.Ingest(context.Background(), "empty.md", []byte("   \n\n"))
	assert.ErrorIs(t, err, ErrNoPassages)
}

func TestMemoryStoreSearch(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, store.SavePassages(ctx, []Passage{
		{Source: "a", Embedding: []float32{1, 0}},
		{Source: "b", Embedding: []float32{1, 1}},
		{Source: "c", Embedding: []float32{0, 1}},
	}))

	hits, err := store.Search(ctx, []float32{1, 0.1}, 2, 0.5)
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, "a", hits[0].Source)
	assert.Equal(t, "b", hits[1].Source)
	assert.Greater(t, hits[0].Similarity, hits[1].Similarity)
	assert.NotEqual(t, hits[0].ID, hits[1].ID)
}
