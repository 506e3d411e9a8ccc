package entity

import "strings"

const (
	KindFile   = "file"
	KindFolder = "folder"
)

// FileTree is the raw file hierarchy reported by an addon's remote storage.
type FileTree struct {
	Kind     string      `json:"kind"`
	Name     string      `json:"name"`
	Path     string      `json:"path"`
	Size     int64       `json:"size,omitempty"`
	Children []*FileTree `json:"children,omitempty"`
}

// StatResult summarizes a single file: its disk usage and identity.
type StatResult struct {
	TargetID   string `json:"target_id"`
	TargetName string `json:"target_name"`
	DiskUsage  int64  `json:"disk_usage"`
}

// AggregateStatResult summarizes a folder or an addon root. DiskUsage and
// NumFiles are derived from the children at construction; the tree is never
// mutated afterwards.
type AggregateStatResult struct {
	TargetID   string                 `json:"target_id"`
	TargetName string                 `json:"target_name"`
	Targets    []*AggregateStatResult `json:"targets,omitempty"`
	Files      []*StatResult          `json:"files,omitempty"`
	DiskUsage  int64                  `json:"disk_usage"`
	NumFiles   int64                  `json:"num_files"`
}

// NewAggregateStatResult sums disk usage and file counts bottom-up over the
// given children.
func NewAggregateStatResult(targetID, targetName string, targets []*AggregateStatResult, files []*StatResult) *AggregateStatResult {
	res := &AggregateStatResult{
		TargetID:   targetID,
		TargetName: targetName,
		Targets:    targets,
		Files:      files,
	}

	for _, f := range files {
		res.DiskUsage += f.DiskUsage
		res.NumFiles++
	}
	for _, t := range targets {
		res.DiskUsage += t.DiskUsage
		res.NumFiles += t.NumFiles
	}

	return res
}

// AggregateFileTree folds a raw addon file tree into a stat tree, summing
// sizes bottom-up. A file node becomes a StatResult leaf; a folder node
// becomes an AggregateStatResult over its children.
func AggregateFileTree(tree *FileTree) *AggregateStatResult {
	var (
		targets []*AggregateStatResult
		files   []*StatResult
	)

	for _, child := range tree.Children {
		if child.Kind == KindFile {
			files = append(files, &StatResult{
				TargetID:   strings.TrimLeft(child.Path, "/"),
				TargetName: child.Name,
				DiskUsage:  child.Size,
			})

			continue
		}

		targets = append(targets, AggregateFileTree(child))
	}

	return NewAggregateStatResult(strings.TrimLeft(tree.Path, "/"), tree.Name, targets, files)
}
