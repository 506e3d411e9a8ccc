package addonclient

import (
	"context"
	"log/slog"
	"path"

	"github.com/spf13/afero"

	"github.com/jgivc/regarchive/internal/entity"
)

type fsClient struct {
	fs   afero.Fs
	root string
	log  *slog.Logger
}

// NewFSClient returns an addon client that reads file trees from a local
// directory laid out as {root}/{node}/{provider}[/{revision}]/... It is the
// development and test stand-in for the remote storage API.
func NewFSClient(root string, log *slog.Logger) *fsClient {
	return NewFSClientWithFS(afero.NewOsFs(), root, log)
}

func NewFSClientWithFS(fs afero.Fs, root string, log *slog.Logger) *fsClient {
	return &fsClient{
		fs:   fs,
		root: root,
		log:  log.With(slog.String("item", "FSAddonClient")),
	}
}

func (c *fsClient) FileTree(_ context.Context, node *entity.Node, _ *entity.User, provider, revision string) (*entity.FileTree, error) {
	dir := path.Join(c.root, node.ID, provider)
	if revision != "" {
		dir = path.Join(dir, revision)
	}

	return c.walk(dir, "/", provider)
}

func (c *fsClient) walk(dir, treePath, name string) (*entity.FileTree, error) {
	tree := &entity.FileTree{
		Kind: entity.KindFolder,
		Name: name,
		Path: treePath,
	}

	infos, err := afero.ReadDir(c.fs, dir)
	if err != nil {
		// An absent directory is an addon with no content, not an error.
		c.log.Debug("No content", slog.String("dir", dir))

		return tree, nil
	}

	for _, info := range infos {
		childPath := path.Join(treePath, info.Name())
		if info.IsDir() {
			child, err := c.walk(path.Join(dir, info.Name()), childPath, info.Name())
			if err != nil {
				return nil, err
			}
			tree.Children = append(tree.Children, child)

			continue
		}

		tree.Children = append(tree.Children, &entity.FileTree{
			Kind: entity.KindFile,
			Name: info.Name(),
			Path: childPath,
			Size: info.Size(),
		})
	}

	return tree, nil
}
