package addonclient

import (
	"context"
	"log/slog"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jgivc/regarchive/internal/entity"
)

func writeFile(t *testing.T, fs afero.Fs, name string, size int) {
	t.Helper()

	require.NoError(t, afero.WriteFile(fs, name, make([]byte, size), 0644))
}

func TestFSClientFileTree(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeFile(t, fs, "data/node-1/github/readme.md", 10)
	writeFile(t, fs, "data/node-1/github/results/out.csv", 20)
	writeFile(t, fs, "data/node-1/github/results/raw/blob.bin", 30)

	cl := NewFSClientWithFS(fs, "data", slog.New(slog.DiscardHandler))
	tree, err := cl.FileTree(context.Background(), &entity.Node{ID: "node-1"}, nil, "github", "")
	require.NoError(t, err)

	res := entity.AggregateFileTree(tree)
	assert.Equal(t, int64(60), res.DiskUsage)
	assert.Equal(t, int64(3), res.NumFiles)
}

func TestFSClientRevisions(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeFile(t, fs, "data/node-1/dataverse/latest/draft.txt", 5)
	writeFile(t, fs, "data/node-1/dataverse/latest-published/a.txt", 7)
	writeFile(t, fs, "data/node-1/dataverse/latest-published/b.txt", 9)

	cl := NewFSClientWithFS(fs, "data", slog.New(slog.DiscardHandler))

	draft, err := cl.FileTree(context.Background(), &entity.Node{ID: "node-1"}, nil, "dataverse", "latest")
	require.NoError(t, err)
	assert.Equal(t, int64(5), entity.AggregateFileTree(draft).DiskUsage)

	published, err := cl.FileTree(context.Background(), &entity.Node{ID: "node-1"}, nil, "dataverse", "latest-published")
	require.NoError(t, err)
	assert.Equal(t, int64(16), entity.AggregateFileTree(published).DiskUsage)
}

func TestFSClientEmptyAddon(t *testing.T) {
	cl := NewFSClientWithFS(afero.NewMemMapFs(), "data", slog.New(slog.DiscardHandler))

	tree, err := cl.FileTree(context.Background(), &entity.Node{ID: "node-1"}, nil, "s3", "")
	require.NoError(t, err)

	res := entity.AggregateFileTree(tree)
	assert.Zero(t, res.NumFiles)
}
