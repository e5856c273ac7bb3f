package meta

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/viant/afs"
)

func TestService_LoadAndList(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "ndvi.yaml"), []byte("name: ndvi\nbucket: ${env.GEOFLOW_META_BUCKET}\n"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "clip.yml"), []byte("name: clip\n"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "README.md"), []byte("docs"), 0644))
	t.Setenv("GEOFLOW_META_BUCKET", "tiles")

	srv := New(afs.New(), dir)
	ctx := context.Background()

	var doc struct {
		Name   string `yaml:"name"`
		Bucket string `yaml:"bucket"`
	}
	require.NoError(t, srv.Load(ctx, "ndvi.yaml", &doc))
	assert.Equal(t, "ndvi", doc.Name)
	assert.Equal(t, "tiles", doc.Bucket)

	names, err := srv.List(ctx, "", ".yaml", ".yml")
	require.NoError(t, err)
	assert.Equal(t, []string{"clip", "ndvi"}, names)

	ok, err := srv.Exists(ctx, "missing.yaml")
	require.NoError(t, err)
	assert.False(t, ok)

	assert.Error(t, srv.Load(ctx, "missing.yaml", &doc))
}
