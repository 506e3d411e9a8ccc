package entity

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryTargets(t *testing.T) {
	r := DefaultRegistry()

	targets, err := r.Targets("osfstorage")
	require.NoError(t, err)
	assert.Equal(t, []string{"osfstorage"}, targets)

	targets, err = r.Targets("dataverse")
	require.NoError(t, err)
	assert.Equal(t, []string{"dataverse-published", "dataverse-draft"}, targets)

	_, err = r.Targets("gopherstore")
	assert.Error(t, err)
}

func TestRegistryResolve(t *testing.T) {
	r := DefaultRegistry()

	addon, rev, err := r.Resolve("github")
	require.NoError(t, err)
	assert.Equal(t, "github", addon.Name)
	assert.Nil(t, rev)

	addon, rev, err = r.Resolve("dataverse-draft")
	require.NoError(t, err)
	assert.Equal(t, "dataverse", addon.Name)
	require.NotNil(t, rev)
	assert.Equal(t, "latest", rev.Selector)
	assert.Equal(t, " (draft)", rev.FolderSuffix)

	addon, rev, err = r.Resolve("dataverse-published")
	require.NoError(t, err)
	assert.Equal(t, "dataverse", addon.Name)
	require.NotNil(t, rev)
	assert.Equal(t, "latest-published", rev.Selector)

	_, _, err = r.Resolve("dataverse")
	assert.Error(t, err, "a dual-revision addon is only addressable through its revision targets")
}

func TestJobStatus(t *testing.T) {
	j := &ArchiveJob{
		Targets: []ArchiveTarget{
			{Name: "a", Status: StatusPending},
			{Name: "b", Status: StatusSuccess},
		},
	}
	assert.Equal(t, StatusPending, j.Status())

	j.Target("a").Status = StatusSuccess
	assert.Equal(t, StatusSuccess, j.Status())

	j.Target("b").Status = StatusNetworkError
	assert.Equal(t, StatusNetworkError, j.Status())

	empty := &ArchiveJob{}
	assert.Equal(t, StatusPending, empty.Status())
	empty.Done = true
	assert.Equal(t, StatusSuccess, empty.Status())
}
