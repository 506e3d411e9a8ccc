// Package copyclient submits copy requests to the external file-copy
// service. Submission is fire-and-forget: the service confirms completion
// asynchronously through the copy hook on this service's HTTP surface, so a
// successful POST here only means the copy was accepted.
package copyclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/jgivc/regarchive/internal/common"
)

const defaultTimeout = 30 * time.Second

// Side identifies one end of a copy: the node, the storage provider on it,
// and the credential cookie the copy service acts with.
type Side struct {
	Cookie   string `json:"cookie"`
	Nid      string `json:"nid"`
	Provider string `json:"provider"`
	Path     string `json:"path"`
	Revision string `json:"revision,omitempty"`
}

// Request is the payload of POST /ops/copy.
type Request struct {
	Source      Side   `json:"source"`
	Destination Side   `json:"destination"`
	Rename      string `json:"rename"`
}

// NewRequest builds a copy payload rooted at "/" on both sides. The rename
// is the destination folder name; slashes are replaced so a folder name can
// not fan out into path segments in the destination tree.
func NewRequest(srcNid, dstNid, provider, archiveProvider, cookie, rename, revision string) Request {
	return Request{
		Source: Side{
			Cookie:   cookie,
			Nid:      srcNid,
			Provider: provider,
			Path:     "/",
			Revision: revision,
		},
		Destination: Side{
			Cookie:   cookie,
			Nid:      dstNid,
			Provider: archiveProvider,
			Path:     "/",
		},
		Rename: strings.ReplaceAll(rename, "/", "-"),
	}
}

type Client struct {
	baseURL string
	cl      *http.Client
	log     *slog.Logger
}

func New(baseURL string, timeout time.Duration, log *slog.Logger) *Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	return &Client{
		baseURL: baseURL,
		cl:      &http.Client{Timeout: timeout},
		log:     log.With(slog.String("item", "CopyClient")),
	}
}

// Copy submits one copy request. Any transport error or non-2xx status is
// returned as an error; the caller treats it as fatal for that target.
func (c *Client) Copy(ctx context.Context, req Request) error {
	data, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("cannot marshal copy request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/ops/copy", bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("cannot build copy request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	c.log.Info("Sending copy request",
		slog.String("provider", req.Source.Provider),
		slog.String("src", req.Source.Nid),
		slog.String("dst", req.Destination.Nid),
		slog.String("rename", req.Rename),
	)

	resp, err := c.cl.Do(httpReq)
	if err != nil {
		return &common.NetworkError{Target: req.Source.Provider, Errs: []string{err.Error()}}
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return &common.NetworkError{
			Target:     req.Source.Provider,
			StatusCode: resp.StatusCode,
			Errs:       []string{fmt.Sprintf("copy request rejected with status %d", resp.StatusCode)},
		}
	}

	return nil
}
