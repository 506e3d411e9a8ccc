package archiver

import (
	"context"
	"fmt"
	"strings"

	"github.com/jgivc/regarchive/internal/entity"
)

const viewFileURLTemplate = "/project/%s/files/osfstorage/%s/"

// fileIndex maps content hashes to the archived files carrying them, across
// the registration node and its descendants. It is built once per
// finalization and answered with O(1) lookups afterwards.
type fileIndex struct {
	entries map[string][]fileEntry
}

type fileEntry struct {
	file entity.NodeFile
	node *entity.Node
}

// buildFileIndex walks the registration tree depth-first and indexes every
// archived file by its sha256. A selected file may belong to a child node,
// so the whole tree is indexed.
func (s *Service) buildFileIndex(ctx context.Context, root *entity.Node) (*fileIndex, error) {
	idx := &fileIndex{entries: make(map[string][]fileEntry)}

	stack := []*entity.Node{root}
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		for _, f := range n.Files {
			idx.entries[f.SHA256] = append(idx.entries[f.SHA256], fileEntry{file: f, node: n})
		}

		children, err := s.nodes.Children(ctx, n.ID)
		if err != nil {
			return nil, fmt.Errorf("cannot list children of node %s: %w", n.ID, err)
		}
		stack = append(stack, children...)
	}

	return idx, nil
}

// find matches a frozen file reference against the archived copies: same
// content hash, owned by the node registered from the reference's
// originating node, same file name.
func (idx *fileIndex) find(ref *entity.FileRef) (fileEntry, bool) {
	for _, e := range idx.entries[ref.SHA256] {
		if e.node.RegisteredFromID == ref.NodeID && e.file.Name == ref.SelectedFileName {
			return e, true
		}
	}

	return fileEntry{}, false
}

// rewriteFileRef points the reference's view URL at the archived copy, or
// marks it "File not found" when the file has no archived counterpart. A
// missing counterpart does not fail finalization.
func (idx *fileIndex) rewriteFileRef(ref *entity.FileRef) {
	entry, ok := idx.find(ref)
	if !ok {
		ref.SelectedFileName = "File not found"
		ref.ViewURL = ""

		return
	}

	ref.ViewURL = fmt.Sprintf(viewFileURLTemplate, entry.node.ID, strings.TrimLeft(entry.file.Path, "/"))
}

// rewriteQuestion walks one frozen answer, rewriting the embedded file
// reference on the answer itself and on each of its sub-answers.
func (idx *fileIndex) rewriteQuestion(q *entity.Question) {
	if q == nil {
		return
	}

	if q.Extra != nil && q.Extra.SHA256 != "" {
		idx.rewriteFileRef(q.Extra)
	}

	for _, sub := range q.Value {
		idx.rewriteQuestion(sub)
	}
}
