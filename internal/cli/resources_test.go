package cli

import (
	"context"
	"encoding/base64"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/aretw0/argview/internal/config"
	"github.com/aretw0/argview/internal/logging"
	"github.com/aretw0/argview/pkg/adapters/file"
	"github.com/aretw0/argview/pkg/adapters/memory"
	"github.com/aretw0/argview/pkg/adapters/redis"
	"github.com/aretw0/argview/pkg/adapters/sqlite"
	"github.com/aretw0/argview/pkg/domain"
	json "github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenResources(t *testing.T) {
	t.Run("Defaults to memory", func(t *testing.T) {
		res, err := OpenResources(config.Default())
		require.NoError(t, err)
		defer res.Close()

		assert.IsType(t, &memory.Store{}, res.Store)
		assert.Nil(t, res.Locker)
		assert.Nil(t, res.Journal)
		assert.Nil(t, res.Metrics)
	})

	t.Run("File store and journal", func(t *testing.T) {
		dir := t.TempDir()
		cfg := config.Default()
		cfg.Store = config.StoreConfig{Kind: config.StoreFile, Path: filepath.Join(dir, "snapshots")}
		cfg.Journal = filepath.Join(dir, "journal.db")
		cfg.Metrics = true

		res, err := OpenResources(cfg)
		require.NoError(t, err)
		defer res.Close()

		store, ok := res.Store.(*file.Store)
		require.True(t, ok)
		assert.Equal(t, cfg.Store.Path, store.BasePath)
		assert.IsType(t, &sqlite.Journal{}, res.Journal)
		assert.NotNil(t, res.Metrics)
	})

	t.Run("Redis store with lock", func(t *testing.T) {
		mr := miniredis.RunT(t)
		cfg := config.Default()
		cfg.Store = config.StoreConfig{Kind: config.StoreRedis, RedisAddr: mr.Addr(), TTL: time.Minute}
		cfg.Lock.Enabled = true

		res, err := OpenResources(cfg)
		require.NoError(t, err)
		defer res.Close()

		assert.IsType(t, &redis.Store{}, res.Store)
		assert.IsType(t, &redis.Locker{}, res.Locker)
	})

	t.Run("Encrypted store", func(t *testing.T) {
		cfg := config.Default()
		cfg.Store.Redact = []string{"token"}
		cfg.Store.EncryptionKey = base64.StdEncoding.EncodeToString(make([]byte, 32))

		res, err := OpenResources(cfg)
		require.NoError(t, err)
		defer res.Close()

		ctx := context.Background()
		var root domain.Node
		require.NoError(t, json.Unmarshal([]byte(`{"id":"root","token":"t0p"}`), &root))
		require.NoError(t, res.Store.Save(ctx, "r1", &domain.Snapshot{RunID: "r1", Root: &root, NodeCount: 1}))

		loaded, err := res.Store.Load(ctx, "r1")
		require.NoError(t, err)
		var token string
		_, err = loaded.Root.Attribute("token", &token)
		require.NoError(t, err)
		assert.Equal(t, "***", token)
	})

	t.Run("Unknown store", func(t *testing.T) {
		cfg := config.Default()
		cfg.Store.Kind = "tape"
		_, err := OpenResources(cfg)
		assert.ErrorContains(t, err, "tape")
	})
}

func TestNewEngine_WiresStoreAndJournal(t *testing.T) {
	mr := miniredis.RunT(t)
	remote := newMockRemote(t, false)

	cfg := config.Default()
	cfg.RunID = "run-1"
	cfg.Store = config.StoreConfig{Kind: config.StoreRedis, RedisAddr: mr.Addr()}
	cfg.Lock.Enabled = true
	cfg.Journal = filepath.Join(t.TempDir(), "journal.db")

	engine, res, err := NewEngine(cfg, logging.NewNop())
	require.NoError(t, err)
	defer res.Close()
	defer engine.Close()
	assert.Equal(t, "run-1", engine.RunID())

	ctx := context.Background()
	require.NoError(t, engine.Connect(ctx, remote.URL))
	select {
	case <-engine.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("remote did not close the connection")
	}
	require.NoError(t, engine.Err())

	snap, err := res.Store.Load(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, 3, snap.NodeCount)
	assert.Equal(t, domain.NodeID("root"), snap.Root.ID)

	entries, err := res.Journal.Entries(ctx, "run-1")
	require.NoError(t, err)
	assert.Len(t, entries, 3)
}
