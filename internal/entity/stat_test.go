package entity

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleTree() *FileTree {
	return &FileTree{
		Kind: KindFolder,
		Name: "osfstorage",
		Path: "/",
		Children: []*FileTree{
			{Kind: KindFile, Name: "data.csv", Path: "/data.csv", Size: 100},
			{
				Kind: KindFolder,
				Name: "results",
				Path: "/results",
				Children: []*FileTree{
					{Kind: KindFile, Name: "out.txt", Path: "/results/out.txt", Size: 40},
					{Kind: KindFile, Name: "plot.png", Path: "/results/plot.png", Size: 60},
					{
						Kind: KindFolder,
						Name: "raw",
						Path: "/results/raw",
						Children: []*FileTree{
							{Kind: KindFile, Name: "raw.bin", Path: "/results/raw/raw.bin", Size: 300},
						},
					},
				},
			},
		},
	}
}

func leafSum(res *AggregateStatResult) int64 {
	var sum int64
	for _, f := range res.Files {
		sum += f.DiskUsage
	}
	for _, t := range res.Targets {
		sum += leafSum(t)
	}

	return sum
}

func TestAggregateFileTree(t *testing.T) {
	res := AggregateFileTree(sampleTree())

	assert.Equal(t, int64(500), res.DiskUsage)
	assert.Equal(t, int64(4), res.NumFiles)

	// The aggregate disk usage must equal the sum over all leaves, at every
	// level of the tree.
	assert.Equal(t, leafSum(res), res.DiskUsage)
	require.Len(t, res.Targets, 1)
	assert.Equal(t, leafSum(res.Targets[0]), res.Targets[0].DiskUsage)
	assert.Equal(t, int64(400), res.Targets[0].DiskUsage)
	assert.Equal(t, int64(3), res.Targets[0].NumFiles)
}

func TestAggregateFileTreeEmpty(t *testing.T) {
	res := AggregateFileTree(&FileTree{Kind: KindFolder, Name: "s3", Path: "/"})

	assert.Zero(t, res.DiskUsage)
	assert.Zero(t, res.NumFiles)
}

func TestNewAggregateStatResultSums(t *testing.T) {
	children := []*AggregateStatResult{
		AggregateFileTree(sampleTree()),
		NewAggregateStatResult("b", "b", nil, []*StatResult{{TargetID: "x", TargetName: "x", DiskUsage: 7}}),
	}

	res := NewAggregateStatResult("root", "root", children, nil)

	assert.Equal(t, int64(507), res.DiskUsage)
	assert.Equal(t, int64(5), res.NumFiles)
}
