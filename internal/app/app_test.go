package app

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ytget/yt-link-bot/internal/config"
	"github.com/ytget/yt-link-bot/internal/model"
	"github.com/ytget/yt-link-bot/internal/registry"
	"github.com/ytget/yt-link-bot/internal/storage"
)

func TestRootCommandTree(t *testing.T) {
	root := NewRootCommand("test")

	var names []string
	for _, c := range root.Commands() {
		names = append(names, c.Name())
	}
	assert.ElementsMatch(t, []string{"serve", "sweep", "stats"}, names)
	assert.NotNil(t, root.PersistentFlags().Lookup("config"))
	assert.NotNil(t, root.PersistentFlags().Lookup("debug"))
}

func TestStatsCommand(t *testing.T) {
	dsn := filepath.Join(t.TempDir(), "bot.db")
	t.Setenv("YTBOT_DB_DRIVER", "sqlite")
	t.Setenv("YTBOT_DB_DSN", dsn)

	store, err := registry.Open(registry.DriverSQLite, dsn)
	require.NoError(t, err)
	ctx := context.Background()
	require.NoError(t, store.UpsertUser(ctx, 42, "alice"))
	require.NoError(t, store.UpsertDownload(ctx, &model.DownloadRecord{
		UserID: 42, VideoID: "abc123def45", Title: "t", Extension: "mp4",
		Status: model.RecordStatusDownloaded, FilePath: "/tmp/x.mp4",
	}))
	require.NoError(t, store.Close())

	root := NewRootCommand("test")
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"stats"})
	require.NoError(t, root.Execute())

	assert.Contains(t, out.String(), "users: 1")
	assert.Contains(t, out.String(), "links: 1")
	assert.Contains(t, out.String(), "downloaded: 1")
}

func TestSweepCommand(t *testing.T) {
	dir := t.TempDir()
	dsn := filepath.Join(dir, "bot.db")
	t.Setenv("YTBOT_DB_DRIVER", "sqlite")
	t.Setenv("YTBOT_DB_DSN", dsn)

	artifact := filepath.Join(dir, "old_abc123def45.mp4")
	require.NoError(t, os.WriteFile(artifact, []byte("data"), 0644))

	store, err := registry.Open(registry.DriverSQLite, dsn)
	require.NoError(t, err)
	store.SetClock(func() time.Time { return time.Now().Add(-2 * time.Hour) })
	require.NoError(t, store.UpsertDownload(context.Background(), &model.DownloadRecord{
		UserID: 42, VideoID: "abc123def45", Title: "t", Extension: "mp4",
		Status: model.RecordStatusDownloaded, FilePath: artifact,
	}))
	require.NoError(t, store.Close())

	root := NewRootCommand("test")
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"sweep"})
	require.NoError(t, root.Execute())

	assert.Contains(t, out.String(), "stale: 1")
	assert.Contains(t, out.String(), "deleted: 1")
	assert.NoFileExists(t, artifact)
}

func TestOpenRegistryUsesDefaultLanguage(t *testing.T) {
	dsn := filepath.Join(t.TempDir(), "bot.db")
	t.Setenv("YTBOT_DB_DRIVER", "sqlite")
	t.Setenv("YTBOT_DB_DSN", dsn)
	t.Setenv("YTBOT_DEFAULT_LANGUAGE", "fa")

	st, err := config.Load("")
	require.NoError(t, err)
	store, err := openRegistry(st)
	require.NoError(t, err)
	defer store.Close()

	require.NoError(t, store.UpsertUser(context.Background(), 42, "alice"))
	lang, err := store.Language(context.Background(), 42)
	require.NoError(t, err)
	assert.Equal(t, config.LanguagePersian, lang)
}

func TestBuildPlacerLocal(t *testing.T) {
	st := config.NewSettings(nil)
	st.SetStorageBackend(config.StorageLocal)

	placer, signer, err := buildPlacer(context.Background(), st)
	require.NoError(t, err)
	assert.NotNil(t, signer)
	_, ok := placer.(*storage.LocalPlacer)
	assert.True(t, ok)
}

func TestBuildLockerDisabled(t *testing.T) {
	locker, closer, err := buildLocker(context.Background(), config.NewSettings(nil))
	require.NoError(t, err)
	assert.Nil(t, locker)
	assert.Nil(t, closer)
}

func TestServeValidates(t *testing.T) {
	st := config.NewSettings(nil)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	assert.Error(t, serve(ctx, st))
}
