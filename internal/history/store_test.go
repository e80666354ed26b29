package history

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func tempStore(t *testing.T) *Store {
	t.Helper()
	return NewStore(filepath.Join(t.TempDir(), "last-news.json"), zap.NewNop())
}

func entryN(n int) Entry {
	return Entry{
		Title:       fmt.Sprintf("title %d", n),
		URL:         fmt.Sprintf("https://example.com/%d", n),
		PublishedAt: "2025-06-01T00:00:00Z",
		RecordedAt:  time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC),
	}
}

func TestLoadMissingFile(t *testing.T) {
	s := tempStore(t)
	assert.Empty(t, s.Load())
}

func TestLoadMalformedFile(t *testing.T) {
	s := tempStore(t)
	require.NoError(t, os.WriteFile(s.Path(), []byte("{not json"), 0o644))
	assert.Empty(t, s.Load())

	// A non-array JSON document is equally recoverable.
	require.NoError(t, os.WriteFile(s.Path(), []byte(`{"title":"x"}`), 0o644))
	assert.Empty(t, s.Load())
}

func TestRecordRoundTrip(t *testing.T) {
	s := tempStore(t)

	h, err := s.Record(entryN(1), s.Load())
	require.NoError(t, err)
	h, err = s.Record(entryN(2), h)
	require.NoError(t, err)

	loaded := s.Load()
	require.Len(t, loaded, 2)
	assert.Equal(t, "title 2", loaded[0].Title)
	assert.Equal(t, "title 1", loaded[1].Title)
	assert.Equal(t, h, loaded)
}

func TestRecordBoundsHistory(t *testing.T) {
	s := tempStore(t)

	var h []Entry
	var err error
	for i := 0; i < MaxEntries+10; i++ {
		h, err = s.Record(entryN(i), h)
		require.NoError(t, err)
		assert.LessOrEqual(t, len(h), MaxEntries)
	}

	require.Len(t, h, MaxEntries)
	assert.Equal(t, fmt.Sprintf("title %d", MaxEntries+9), h[0].Title)

	loaded := s.Load()
	require.Len(t, loaded, MaxEntries)
	assert.Equal(t, h[0].Title, loaded[0].Title)
}

func TestLoadIgnoresUnknownFields(t *testing.T) {
	s := tempStore(t)
	raw := `[{"title":"kept","url":"https://example.com","publishedAt":"2025-06-01T00:00:00Z","recordedAt":"2025-06-01T00:00:00Z","futureField":42}]`
	require.NoError(t, os.WriteFile(s.Path(), []byte(raw), 0o644))

	loaded := s.Load()
	require.Len(t, loaded, 1)
	assert.Equal(t, "kept", loaded[0].Title)
}

func TestPersistedFileIsValidJSON(t *testing.T) {
	s := tempStore(t)
	_, err := s.Record(entryN(1), nil)
	require.NoError(t, err)

	data, err := os.ReadFile(s.Path())
	require.NoError(t, err)
	var entries []Entry
	require.NoError(t, json.Unmarshal(data, &entries))
	require.Len(t, entries, 1)
}

func TestTitles(t *testing.T) {
	set := Titles([]Entry{entryN(1), entryN(2)})
	assert.Contains(t, set, "title 1")
	assert.Contains(t, set, "title 2")
	assert.NotContains(t, set, "title 3")
}
