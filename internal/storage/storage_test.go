package storage

import (
	"context"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildKeySanitizesFileName(t *testing.T) {
	key := BuildKey("evidence", "スクリーンショット (1).png")

	assert.True(t, strings.HasPrefix(key, "evidence/"))
	name := FileNameOf(key)
	// timestamp-uuid-sanitized: everything outside [a-zA-Z0-9.-] in the
	// original name becomes an underscore.
	assert.Regexp(t, regexp.MustCompile(`^\d+-[0-9a-f-]{36}-_+_1_.png$`), name)
	assert.NotContains(t, name, " ")
	assert.NotContains(t, name, "(")
}

func TestBuildKeysAreUnique(t *testing.T) {
	a := BuildKey("temp/evidence", "shot.png")
	b := BuildKey("temp/evidence", "shot.png")
	assert.NotEqual(t, a, b)
}

func TestLocalStoreRoundTrip(t *testing.T) {
	dir := t.TempDir()
	store, err := NewLocalStore(dir)
	require.NoError(t, err)
	ctx := context.Background()

	key, err := store.Put(ctx, "temp/evidence/1-abc-shot.png", "image/png", strings.NewReader("payload"))
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(dir, "temp", "evidence", "1-abc-shot.png"))
	require.NoError(t, err)
	assert.Equal(t, "payload", string(data))

	dstKey, err := store.Copy(ctx, key, "evidence")
	require.NoError(t, err)
	assert.Equal(t, "evidence/1-abc-shot.png", dstKey)

	url, err := store.PresignGet(ctx, dstKey, time.Hour)
	require.NoError(t, err)
	assert.Equal(t, "/files/evidence/1-abc-shot.png", url)

	require.NoError(t, store.Delete(ctx, key))
	require.NoError(t, store.Delete(ctx, key), "deleting an absent key is not an error")
}

func TestLocalStoreRejectsEscapingKeys(t *testing.T) {
	store, err := NewLocalStore(t.TempDir())
	require.NoError(t, err)

	_, err = store.Put(context.Background(), "../outside.txt", "text/plain", strings.NewReader("x"))
	assert.Error(t, err)
}
