package graph

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteOutline(t *testing.T) {
	b := NewBuilder()
	require.NoError(t, b.Merge("list", "/list.minidosis", Header{
		Title:    "Linked lists",
		Bases:    []string{"sequence"},
		Children: []string{"singly", "doubly"},
	}, nil))
	snap, err := b.Snapshot(nil, "/")
	require.NoError(t, err)

	var out strings.Builder
	require.NoError(t, snap.WriteOutline(&out))

	want := "doubly {\n}\n\n" +
		"list {\n" +
		"  title: \"Linked lists\"\n" +
		"  bases: { sequence }\n" +
		"  children: { doubly singly }\n" +
		"}\n\n" +
		"sequence {\n}\n\n" +
		"singly {\n}\n\n"
	assert.Equal(t, want, out.String())
}
