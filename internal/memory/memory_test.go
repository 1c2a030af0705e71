package memory

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lumenlabs/lumen/internal/db"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	database, err := db.OpenMemory()
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })
	return NewStore(database)
}

func TestSetGetOverwrite(t *testing.T) {
	store := newTestStore(t)

	require.NoError(t, store.Set("coffee", "oat milk flat white"))
	got, err := store.Get("coffee")
	require.NoError(t, err)
	assert.Equal(t, "oat milk flat white", got)

	require.NoError(t, store.Set("coffee", "double espresso"))
	got, err = store.Get("coffee")
	require.NoError(t, err)
	assert.Equal(t, "double espresso", got)
}

func TestGetMissing(t *testing.T) {
	store := newTestStore(t)
	_, err := store.Get("nothing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDelete(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, store.Set("tmp", "gone soon"))
	require.NoError(t, store.Delete("tmp"))
	_, err := store.Get("tmp")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, store.Delete("tmp"), ErrNotFound)
}

func TestPromptSection(t *testing.T) {
	store := newTestStore(t)
	assert.Empty(t, store.PromptSection())

	require.NoError(t, store.Set("birthday", "March 3"))
	require.NoError(t, store.Set("allergy", "peanuts"))

	section := store.PromptSection()
	assert.Contains(t, section, "allergy: peanuts")
	assert.Contains(t, section, "birthday: March 3")
}
