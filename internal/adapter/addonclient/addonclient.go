// Package addonclient queries storage addons for their file trees. The
// remote implementation talks to the provider-facing HTTP API; the fs
// implementation serves trees from a local directory and backs tests and
// development setups.
package addonclient

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/jgivc/regarchive/internal/common"
	"github.com/jgivc/regarchive/internal/entity"
)

const defaultTimeout = 30 * time.Second

type httpClient struct {
	baseURL string
	cl      *http.Client
	log     *slog.Logger
}

// NewHTTPClient returns an addon client that fetches file trees from the
// remote storage API: GET {base}/nodes/{node}/providers/{provider}/tree.
func NewHTTPClient(baseURL string, timeout time.Duration, log *slog.Logger) *httpClient {
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	return &httpClient{
		baseURL: baseURL,
		cl:      &http.Client{Timeout: timeout},
		log:     log.With(slog.String("item", "AddonClient")),
	}
}

// FileTree fetches the complete file hierarchy of the addon on the given
// node. A non-empty revision selects a document revision for addons that
// version their content.
func (c *httpClient) FileTree(ctx context.Context, node *entity.Node, user *entity.User, provider, revision string) (*entity.FileTree, error) {
	u := fmt.Sprintf("%s/nodes/%s/providers/%s/tree", c.baseURL, url.PathEscape(node.ID), url.PathEscape(provider))
	if revision != "" {
		u += "?revision=" + url.QueryEscape(revision)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("cannot build file tree request: %w", err)
	}
	req.AddCookie(&http.Cookie{Name: "osf", Value: user.Cookie})

	resp, err := c.cl.Do(req)
	if err != nil {
		return nil, &common.NetworkError{Target: provider, Errs: []string{err.Error()}}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &common.NetworkError{
			Target:     provider,
			StatusCode: resp.StatusCode,
			Errs:       []string{fmt.Sprintf("file tree request returned status %d", resp.StatusCode)},
		}
	}

	var tree entity.FileTree
	if err := json.NewDecoder(resp.Body).Decode(&tree); err != nil {
		return nil, fmt.Errorf("cannot decode file tree: %w", err)
	}

	return &tree, nil
}
