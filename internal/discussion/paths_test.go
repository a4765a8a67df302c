package discussion

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pathsByID(comments []*Comment) map[int64]string {
	out := make(map[int64]string, len(comments))
	for _, c := range comments {
		out[c.ID] = c.Path
	}
	return out
}

func TestAssignPaths_SampleThread(t *testing.T) {
	root, ann := sampleThread()
	rec, err := Reconcile(root, ann)
	require.NoError(t, err)

	dangling := AssignPaths(rec.RootID, rec.Comments)
	assert.Empty(t, dangling)
	assert.Equal(t, map[int64]string{102: "1", 103: "1.1", 104: "2"}, pathsByID(rec.Comments))
}

func TestAssignPaths_SiblingOrderFollowsPosition(t *testing.T) {
	root := story(1,
		comment(10, "a",
			comment(11, "b"),
			comment(12, "c", comment(13, "d")),
		),
		comment(20, "e"),
	)
	// 20 is ranked first on the page, 12 is ranked above 11.
	ann := Annotations{
		20: {Position: 0},
		10: {Position: 1},
		12: {Position: 2},
		13: {Position: 3},
		11: {Position: 4},
	}
	rec, err := Reconcile(root, ann)
	require.NoError(t, err)

	assert.Empty(t, AssignPaths(rec.RootID, rec.Comments))
	assert.Equal(t, map[int64]string{
		20: "1",
		10: "2",
		12: "2.1",
		13: "2.1.1",
		11: "2.2",
	}, pathsByID(rec.Comments))
}

func TestAssignPaths_ChildBeforeParentStillResolves(t *testing.T) {
	// Position order normally puts parents first; the assigner must not rely on it.
	comments := []*Comment{
		{ID: 3, ParentID: 2, Position: 0},
		{ID: 4, ParentID: 2, Position: 1},
		{ID: 2, ParentID: 1, Position: 2},
	}

	dangling := AssignPaths(1, comments)
	assert.Empty(t, dangling)
	assert.Equal(t, map[int64]string{2: "1", 3: "1.1", 4: "1.2"}, pathsByID(comments))
}

func TestAssignPaths_DanglingParent(t *testing.T) {
	root := story(1,
		comment(2, "removed",
			comment(3, "orphan", comment(5, "grandchild")),
		),
		comment(4, "kept"),
	)
	ann := Annotations{
		3: {Position: 0},
		4: {Position: 1},
		5: {Position: 2},
	}
	rec, err := Reconcile(root, ann)
	require.NoError(t, err)

	dangling := AssignPaths(rec.RootID, rec.Comments)
	require.Len(t, dangling, 2)

	assert.Equal(t, DanglingParentError{CommentID: 3, ParentID: 2, MissingID: 2}, *dangling[0])
	assert.Equal(t, DanglingParentError{CommentID: 5, ParentID: 3, MissingID: 2}, *dangling[1])
	assert.Contains(t, dangling[1].Error(), "ancestor 2")

	got := pathsByID(rec.Comments)
	assert.Equal(t, "", got[3])
	assert.Equal(t, "", got[5])
	assert.Equal(t, "1", got[4], "top-level numbering only counts comments under the root")
}

func TestAssignPaths_ParentCycleIsReportedNotLooped(t *testing.T) {
	comments := []*Comment{
		{ID: 2, ParentID: 3, Position: 0},
		{ID: 3, ParentID: 2, Position: 1},
	}

	dangling := AssignPaths(1, comments)
	assert.Len(t, dangling, 2)
}

func TestAssignPaths_UniqueAndPrefixed(t *testing.T) {
	root, ann := wideThread()
	rec, err := Reconcile(root, ann)
	require.NoError(t, err)
	require.Empty(t, AssignPaths(rec.RootID, rec.Comments))

	seen := map[string]bool{}
	for _, c := range rec.Comments {
		require.NotEmpty(t, c.Path)
		assert.False(t, seen[c.Path], "duplicate path %s", c.Path)
		seen[c.Path] = true

		if c.ParentID == rec.RootID {
			assert.NotContains(t, c.Path, ".")
			continue
		}
		parent, ok := rec.Get(c.ParentID)
		require.True(t, ok)
		cut := strings.LastIndex(c.Path, ".")
		require.Positive(t, cut)
		assert.Equal(t, parent.Path, c.Path[:cut])
	}
}

// wideThread builds three levels with fan-out three and a page order that
// interleaves branches.
func wideThread() (*RawNode, Annotations) {
	root := story(1)
	ann := Annotations{}
	next := int64(100)
	pos := 0
	for i := 0; i < 3; i++ {
		top := comment(next, "top")
		next++
		root.Children = append(root.Children, top)
		for j := 0; j < 3; j++ {
			mid := comment(next, "mid")
			next++
			top.Children = append(top.Children, mid)
			for k := 0; k < 3; k++ {
				leaf := comment(next, "leaf")
				next++
				mid.Children = append(mid.Children, leaf)
			}
		}
	}
	// Pre-order positions, with every third node removed from the page.
	stack := append([]*RawNode(nil), root.Children...)
	for len(stack) > 0 {
		n := stack[0]
		stack = append(append([]*RawNode(nil), n.Children...), stack[1:]...)
		if n.ID%3 != 0 || len(n.Children) > 0 {
			ann[n.ID] = Annotation{Position: pos, Penalty: int(n.ID % 4)}
		}
		pos++
	}
	return root, ann
}
