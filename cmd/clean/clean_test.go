package clean

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/softwareheritage/swhfs/config"
)

func TestCleanRemovesCacheDatabases(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_CACHE_HOME", dir)
	t.Setenv(config.EnvConfigFile, "")

	cacheDir := filepath.Join(dir, "swh", "fuse")
	require.NoError(t, os.MkdirAll(cacheDir, 0o755))
	var files []string
	for _, name := range []string{
		config.MetadataDBName,
		config.MetadataDBName + "-wal",
		config.BlobDBName,
	} {
		p := filepath.Join(cacheDir, name)
		require.NoError(t, os.WriteFile(p, []byte("x"), 0o644))
		files = append(files, p)
	}

	require.NoError(t, commandDefinition.RunE(commandDefinition, nil))
	for _, p := range files {
		_, err := os.Stat(p)
		assert.True(t, os.IsNotExist(err), p)
	}

	// A second run with nothing left is fine.
	require.NoError(t, commandDefinition.RunE(commandDefinition, nil))
}
