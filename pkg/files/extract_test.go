package files

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractText(t *testing.T) {
	text, ok := extractText("txt", []byte("hello"))
	require.True(t, ok)
	assert.Equal(t, "hello", text)

	_, ok = extractText("pdf", []byte("%PDF"))
	assert.False(t, ok)

	// Invalid UTF-8 is not indexed.
	_, ok = extractText("txt", []byte{0xff, 0xfe})
	assert.False(t, ok)
}

func TestSummarizeCSV(t *testing.T) {
	summary, err := summarizeCSV("name,age\nAlice,30\nBob,40")
	require.NoError(t, err)
	assert.Equal(t, []string{"name", "age"}, summary.Headers)
	assert.Equal(t, 2, summary.RowCount)

	empty, err := summarizeCSV("")
	require.NoError(t, err)
	assert.Zero(t, empty.RowCount)

	headerOnly, err := summarizeCSV("a,b,c")
	require.NoError(t, err)
	assert.Equal(t, 0, headerOnly.RowCount)
	assert.Len(t, headerOnly.Headers, 3)
}

func TestPreviewText(t *testing.T) {
	short := "short"
	assert.Equal(t, short, previewText(short))

	long := strings.Repeat("x", previewLimit+100)
	got := previewText(long)
	assert.Len(t, got, previewLimit+3)
	assert.True(t, strings.HasSuffix(got, "..."))

	// Multibyte content is cut on a rune boundary.
	jp := strings.Repeat("あ", previewLimit)
	got = previewText(jp)
	assert.True(t, strings.HasSuffix(got, "..."))
	for _, r := range got {
		if r != 'あ' && r != '.' {
			t.Fatalf("unexpected rune %q", r)
		}
	}
}
