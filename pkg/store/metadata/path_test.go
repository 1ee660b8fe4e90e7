package metadata

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAncestors(t *testing.T) {
	tests := []struct {
		path string
		want []string
	}{
		{path: "/", want: nil},
		{path: "/a", want: []string{"/"}},
		{path: "/a/b/c.txt", want: []string{"/a/b", "/a", "/"}},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.want, Ancestors(tt.path))
		})
	}
}

func TestIsWithin(t *testing.T) {
	assert.True(t, IsWithin("/a/b", "/a"))
	assert.True(t, IsWithin("/a", "/a"))
	assert.True(t, IsWithin("/a", "/"))
	assert.False(t, IsWithin("/ab", "/a"))
	assert.False(t, IsWithin("/a", "/a/b"))
}

func TestRebase(t *testing.T) {
	assert.Equal(t, "/x/y", Rebase("/a/b", "/a/b", "/x/y"))
	assert.Equal(t, "/x/y/c/d", Rebase("/a/b/c/d", "/a/b", "/x/y"))
}

func TestCleanPath(t *testing.T) {
	p, err := CleanPath("/a//b/")
	require.NoError(t, err)
	assert.Equal(t, "/a/b", p)

	_, err = CleanPath("a/b")
	require.True(t, IsCode(err, ErrInvalidArgument))

	_, err = CleanPath("")
	require.True(t, IsCode(err, ErrInvalidArgument))
}

func TestLogicalSize(t *testing.T) {
	tests := []struct {
		name     string
		replicas []Replica
		want     uint64
	}{
		{name: "no_replicas", want: 0},
		{
			name:     "single_good",
			replicas: []Replica{{Number: 0, Size: 4, Status: ReplicaGood}},
			want:     4,
		},
		{
			name: "lowest_good_wins",
			replicas: []Replica{
				{Number: 3, Size: 30, Status: ReplicaGood},
				{Number: 1, Size: 10, Status: ReplicaGood},
			},
			want: 10,
		},
		{
			name: "stale_and_intermediate_skipped",
			replicas: []Replica{
				{Number: 0, Size: 99, Status: ReplicaStale},
				{Number: 1, Size: 77, Status: ReplicaIntermediate},
				{Number: 2, Size: 5, Status: ReplicaGood},
			},
			want: 5,
		},
		{
			name:     "all_stale",
			replicas: []Replica{{Number: 0, Size: 8, Status: ReplicaStale}},
			want:     0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			obj := &DataObject{Replicas: tt.replicas}
			assert.Equal(t, tt.want, obj.LogicalSize())
		})
	}
}
