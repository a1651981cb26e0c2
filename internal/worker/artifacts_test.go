package worker

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLocalArtifactsRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := &localArtifacts{baseDir: t.TempDir()}

	key, err := store.Put(ctx, "papers/p1/extracted.txt", []byte("hello"), "text/plain")
	require.NoError(t, err)
	require.Equal(t, "papers/p1/extracted.txt", key)

	body, err := store.Get(ctx, key)
	require.NoError(t, err)
	require.Equal(t, []byte("hello"), body)
}

func TestLocalArtifactsSanitizesKeys(t *testing.T) {
	ctx := context.Background()
	baseDir := t.TempDir()
	store := &localArtifacts{baseDir: baseDir}

	_, err := store.Put(ctx, "/abs/../escape.txt", []byte("x"), "text/plain")
	require.NoError(t, err)

	// The write must land inside the base directory.
	_, statErr := os.Stat(filepath.Join(baseDir, "escape.txt"))
	require.NoError(t, statErr)
}

func TestLocalArtifactsGetMissing(t *testing.T) {
	store := &localArtifacts{baseDir: t.TempDir()}
	_, err := store.Get(context.Background(), "nope.txt")
	require.Error(t, err)
}
