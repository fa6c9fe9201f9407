package chunker

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/submittal-review/internal/core/domain"
)

func page(text string) domain.Page {
	return domain.Page{DocumentID: "standards/concrete.pdf", Number: 3, Text: text}
}

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		size    int
		overlap int
		wantErr bool
	}{
		{"defaults", DefaultChunkSize, DefaultChunkOverlap, false},
		{"no overlap", 100, 0, false},
		{"overlap equals size", 100, 100, true},
		{"overlap exceeds size", 100, 150, true},
		{"zero size", 0, 0, true},
		{"negative overlap", 100, -1, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := New(tt.size, tt.overlap)
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, ErrInvalidParams)
				assert.Nil(t, c)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.size, c.Size())
			assert.Equal(t, tt.overlap, c.Overlap())
			assert.Equal(t, DefaultMinChars, c.MinChars())
		})
	}
}

func TestChunk_EmptyPage(t *testing.T) {
	c, err := New(100, 20)
	require.NoError(t, err)

	assert.Empty(t, c.Chunk(page("")))
	assert.Empty(t, c.Chunk(page("  \n\t ")))
}

func TestChunk_ShortPageYieldsOneChunk(t *testing.T) {
	c, err := New(100, 20)
	require.NoError(t, err)

	// Shorter than min chars, but it is the only chunk on the page.
	chunks := c.Chunk(page("Grade C40/50"))
	require.Len(t, chunks, 1)
	assert.Equal(t, "Grade C40/50", chunks[0].Text)
	assert.Equal(t, "standards/concrete.pdf", chunks[0].DocumentID)
	assert.Equal(t, 3, chunks[0].Page)
	assert.Equal(t, 0, chunks[0].Sequence)
	assert.NotEmpty(t, chunks[0].ID)
}

func TestChunk_Boundaries(t *testing.T) {
	c, err := New(10, 4, WithMinChars(0))
	require.NoError(t, err)

	text := "abcdefghijklmnopqrstuvwxyz"
	chunks := c.Chunk(page(text))

	var got []string
	for _, ch := range chunks {
		got = append(got, ch.Text)
	}
	assert.Equal(t, []string{"abcdefghij", "ghijklmnop", "mnopqrstuv", "stuvwxyz"}, got)

	for i := 1; i < len(chunks); i++ {
		prev := chunks[i-1].Text
		assert.Equal(t, prev[len(prev)-4:], chunks[i].Text[:4], "chunk %d should overlap its predecessor", i)
		assert.Equal(t, i, chunks[i].Sequence)
	}
}

func TestChunk_ExactMultipleHasNoTrailingDuplicate(t *testing.T) {
	c, err := New(10, 0, WithMinChars(0))
	require.NoError(t, err)

	chunks := c.Chunk(page(strings.Repeat("x", 20)))
	assert.Len(t, chunks, 2)
}

func TestChunk_Multibyte(t *testing.T) {
	c, err := New(4, 1, WithMinChars(0))
	require.NoError(t, err)

	chunks := c.Chunk(page("αβγδεζηθ"))
	require.NotEmpty(t, chunks)
	assert.Equal(t, "αβγδ", chunks[0].Text)
	assert.Equal(t, "δεζη", chunks[1].Text)
	for _, ch := range chunks {
		assert.True(t, strings.Contains("αβγδεζηθ", ch.Text))
	}
}

func TestChunk_DropsTinyTrailingChunk(t *testing.T) {
	c, err := New(60, 10, WithMinChars(20))
	require.NoError(t, err)

	text := strings.Repeat("concrete ", 7) + "end"
	chunks := c.Chunk(page(text))

	for _, ch := range chunks {
		assert.GreaterOrEqual(t, len([]rune(strings.TrimSpace(ch.Text))), 20)
	}
	for i, ch := range chunks {
		assert.Equal(t, i, ch.Sequence)
	}
}

func TestChunk_SparsePageKeepsText(t *testing.T) {
	c, err := New(100, 20)
	require.NoError(t, err)

	chunks := c.Chunk(page("Grade C40" + strings.Repeat(" ", 150) + "x"))

	require.Len(t, chunks, 2)
	assert.True(t, strings.HasPrefix(chunks[0].Text, "Grade C40"))
	assert.Equal(t, "x", strings.TrimSpace(chunks[1].Text))
	for i, ch := range chunks {
		assert.Equal(t, i, ch.Sequence)
	}
}

func TestChunk_Deterministic(t *testing.T) {
	c, err := New(50, 10)
	require.NoError(t, err)

	text := strings.Repeat("Compressive strength shall be not less than 40 MPa at 28 days. ", 20)
	first := c.Chunk(page(text))
	second := c.Chunk(page(text))

	require.Equal(t, len(first), len(second))
	for i := range first {
		assert.Equal(t, first[i], second[i])
	}

	other, err := New(50, 10)
	require.NoError(t, err)
	assert.Equal(t, first, other.Chunk(page(text)))
}

func TestChunk_IDsDependOnProvenance(t *testing.T) {
	c, err := New(100, 0)
	require.NoError(t, err)

	a := c.Chunk(domain.Page{DocumentID: "a.pdf", Number: 1, Text: "same text"})
	b := c.Chunk(domain.Page{DocumentID: "b.pdf", Number: 1, Text: "same text"})
	p2 := c.Chunk(domain.Page{DocumentID: "a.pdf", Number: 2, Text: "same text"})

	assert.NotEqual(t, a[0].ID, b[0].ID)
	assert.NotEqual(t, a[0].ID, p2[0].ID)
}

func TestChunkDocuments(t *testing.T) {
	c, err := New(100, 0)
	require.NoError(t, err)

	docs := []domain.Document{
		{ID: "a.pdf", Pages: []domain.Page{
			{DocumentID: "a.pdf", Number: 1, Text: "first page"},
			{DocumentID: "a.pdf", Number: 2, Text: ""},
			{DocumentID: "a.pdf", Number: 3, Text: "third page"},
		}},
		{ID: "b.txt", Pages: []domain.Page{
			{DocumentID: "b.txt", Number: 1, Text: "only page"},
		}},
	}

	chunks := c.ChunkDocuments(docs)
	require.Len(t, chunks, 3)
	assert.Equal(t, "a.pdf", chunks[0].DocumentID)
	assert.Equal(t, 3, chunks[1].Page)
	assert.Equal(t, "b.txt", chunks[2].DocumentID)
}

func TestSignature(t *testing.T) {
	a, _ := New(1000, 200)
	b, _ := New(1000, 100)
	c, _ := New(1000, 200, WithMinChars(10))

	assert.Equal(t, "chars:1000/200/50", a.Signature())
	assert.NotEqual(t, a.Signature(), b.Signature())
	assert.NotEqual(t, a.Signature(), c.Signature())
}
