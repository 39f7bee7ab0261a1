package storage

import (
	"context"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/jwebster45206/campaign-engine/pkg/campaign"
	"github.com/jwebster45206/campaign-engine/pkg/state"
	"github.com/jwebster45206/campaign-engine/pkg/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

func setupTestRedis(t *testing.T) (*RedisStorage, *miniredis.Miniredis) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("Failed to start miniredis: %v", err)
	}

	rs, err := NewRedisStorage("redis://"+mr.Addr(), testLogger())
	if err != nil {
		mr.Close()
		t.Fatalf("Failed to create redis storage: %v", err)
	}
	t.Cleanup(func() {
		_ = rs.Close()
		mr.Close()
	})
	return rs, mr
}

func TestRedisStorage_GetPut(t *testing.T) {
	rs, mr := setupTestRedis(t)
	ctx := context.Background()

	data, err := rs.Get(ctx, "rotwood", storage.StateFile)
	require.NoError(t, err)
	assert.Nil(t, data)

	require.NoError(t, rs.Put(ctx, "rotwood", storage.StateFile, []byte(`{"threat_stage":1}`)))

	data, err = rs.Get(ctx, "rotwood", storage.StateFile)
	require.NoError(t, err)
	assert.Equal(t, `{"threat_stage":1}`, string(data))

	raw, err := mr.Get("campaign:rotwood:state.json")
	require.NoError(t, err)
	assert.Equal(t, `{"threat_stage":1}`, raw)
	assert.True(t, mr.Exists("campaigns"))
}

func TestRedisStorage_DeleteAndList(t *testing.T) {
	rs, mr := setupTestRedis(t)
	ctx := context.Background()

	require.NoError(t, rs.Put(ctx, "b", storage.ContentFile, []byte(`{}`)))
	require.NoError(t, rs.Put(ctx, "a", storage.ContentFile, []byte(`{}`)))
	require.NoError(t, rs.Put(ctx, "a", storage.StateFile, []byte(`{}`)))

	ids, err := rs.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, ids)

	require.NoError(t, rs.Delete(ctx, "a"))
	assert.False(t, mr.Exists("campaign:a:campaign.json"))
	assert.False(t, mr.Exists("campaign:a:state.json"))

	ids, err = rs.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"b"}, ids)
}

func TestRedisStorage_DocumentStore(t *testing.T) {
	rs, _ := setupTestRedis(t)
	ctx := context.Background()
	store := storage.NewDocumentStore(rs, testLogger())

	require.NoError(t, store.SaveContent(ctx, "rotwood", campaign.Example()))
	s := state.NewFromContent(campaign.Example())
	s.ThreatStage = 2
	require.NoError(t, store.SaveState(ctx, "rotwood", s))

	c, err := store.LoadContent(ctx, "rotwood")
	require.NoError(t, err)
	assert.Equal(t, "The Rotwood Blight", c.Name)

	loaded, err := store.LoadState(ctx, "rotwood")
	require.NoError(t, err)
	assert.Equal(t, 2, loaded.ThreatStage)
}

func TestRedisStorage_PingAndWait(t *testing.T) {
	rs, mr := setupTestRedis(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, rs.Ping(ctx))
	require.NoError(t, rs.WaitForConnection(ctx))

	mr.SetError("ERR server unavailable")
	assert.Error(t, rs.Ping(ctx))

	short, cancelShort := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancelShort()
	assert.Error(t, rs.WaitForConnection(short))
}

func TestNewRedisStorage_InvalidURL(t *testing.T) {
	_, err := NewRedisStorage("redis://localhost:6379/notanumber", testLogger())
	assert.Error(t, err)
}
