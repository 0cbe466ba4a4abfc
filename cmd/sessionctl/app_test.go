package main

import (
	"context"
	"testing"
	"time"

	"github.com/jrsteele09/go-auth-session/internal/config"
	"github.com/jrsteele09/go-auth-session/storage/filestore"
	"github.com/jrsteele09/go-auth-session/storage/storefake"
	"github.com/stretchr/testify/require"
)

func TestValidateOutputFormat(t *testing.T) {
	require.NoError(t, validateOutputFormat("table"))
	require.NoError(t, validateOutputFormat("JSON"))
	require.Error(t, validateOutputFormat("yaml"))
}

func TestOpenStorage(t *testing.T) {
	t.Setenv("STORAGE_DIR", t.TempDir())
	cfg := config.New()
	ctx := context.Background()

	store, closeStore, err := openStorage(ctx, config.StorageBackendMemory, cfg)
	require.NoError(t, err)
	require.IsType(t, &storefake.FakeStore{}, store)
	closeStore()

	store, closeStore, err = openStorage(ctx, config.StorageBackendFile, cfg)
	require.NoError(t, err)
	require.IsType(t, &filestore.Store{}, store)
	closeStore()

	_, _, err = openStorage(ctx, "etcd", cfg)
	require.Error(t, err)
}

func TestExpiresIn(t *testing.T) {
	now := time.Date(2025, 3, 14, 9, 0, 0, 0, time.UTC)
	require.Equal(t, "", expiresIn(nil, now))

	past := now.Add(-time.Second)
	require.Equal(t, "expired", expiresIn(&past, now))

	future := now.Add(90 * time.Second)
	require.Equal(t, "in 1m30s", expiresIn(&future, now))
}
