package storage

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/jwebster45206/campaign-engine/pkg/campaign"
	"github.com/jwebster45206/campaign-engine/pkg/state"
	"github.com/jwebster45206/campaign-engine/pkg/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestSQLite(t *testing.T) (*SQLiteStorage, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "nested", "campaigns.db")
	s, err := OpenSQLite(path, testLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s, path
}

func TestSQLiteStorage_GetPut(t *testing.T) {
	s, _ := openTestSQLite(t)
	ctx := context.Background()

	data, err := s.Get(ctx, "rotwood", storage.ContentFile)
	require.NoError(t, err)
	assert.Nil(t, data)

	require.NoError(t, s.Put(ctx, "rotwood", storage.ContentFile, []byte(`{"v":1}`)))
	require.NoError(t, s.Put(ctx, "rotwood", storage.ContentFile, []byte(`{"v":2}`)))

	data, err = s.Get(ctx, "rotwood", storage.ContentFile)
	require.NoError(t, err)
	assert.Equal(t, `{"v":2}`, string(data))
	require.NoError(t, s.Ping(ctx))
}

func TestSQLiteStorage_DeleteAndList(t *testing.T) {
	s, _ := openTestSQLite(t)
	ctx := context.Background()

	ids, err := s.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, ids)

	require.NoError(t, s.Put(ctx, "b", storage.ContentFile, []byte(`{}`)))
	require.NoError(t, s.Put(ctx, "a", storage.ContentFile, []byte(`{}`)))
	require.NoError(t, s.Put(ctx, "a", storage.StateFile, []byte(`{}`)))

	ids, err = s.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, ids)

	require.NoError(t, s.Delete(ctx, "a"))
	data, err := s.Get(ctx, "a", storage.StateFile)
	require.NoError(t, err)
	assert.Nil(t, data)

	ids, err = s.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"b"}, ids)
}

func TestSQLiteStorage_Reopen(t *testing.T) {
	s, path := openTestSQLite(t)
	ctx := context.Background()

	store := storage.NewDocumentStore(s, testLogger())
	require.NoError(t, store.SaveContent(ctx, "rotwood", campaign.Example()))
	require.NoError(t, store.SaveState(ctx, "rotwood", state.NewFromContent(campaign.Example())))
	require.NoError(t, s.Close())

	reopened, err := OpenSQLite(path, testLogger())
	require.NoError(t, err)
	defer reopened.Close()

	c, err := storage.NewDocumentStore(reopened, testLogger()).LoadContent(ctx, "rotwood")
	require.NoError(t, err)
	require.NotNil(t, c)
	assert.Len(t, c.Beats, 4)
}

func TestOpenSQLite_EmptyPath(t *testing.T) {
	_, err := OpenSQLite("  ", testLogger())
	assert.Error(t, err)
}
