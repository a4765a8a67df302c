package export

import (
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/threadrank/internal/discussion"
	"github.com/threadrank/pkg/models"
)

func node(id int64, kind discussion.NodeKind, author string, children ...*discussion.RawNode) *discussion.RawNode {
	if children == nil {
		children = []*discussion.RawNode{}
	}
	return &discussion.RawNode{ID: id, Kind: kind, Author: author, Children: children}
}

func processed(t *testing.T) (*models.Post, *discussion.Result) {
	t.Helper()
	root := node(101, discussion.KindRoot, "op",
		node(102, discussion.KindComment, "user1", node(103, discussion.KindComment, "user2")),
		node(104, discussion.KindComment, "user3"),
		node(105, discussion.KindComment, "gone", node(106, discussion.KindComment, "orphan")),
	)
	ann := discussion.Annotations{
		102: {Position: 0, Text: "Comment 1", Penalty: 1},
		103: {Position: 1, Text: "Comment 2"},
		104: {Position: 2, Text: "Comment 3", Penalty: 2},
		106: {Position: 3, Text: "Orphan"},
	}
	res, err := discussion.Process(context.Background(), root, ann)
	require.NoError(t, err)

	post := &models.Post{
		ID:           101,
		Title:        "Ask HN: threads?",
		Author:       "op",
		Points:       10,
		CreatedAt:    time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC),
		CommentCount: 5,
		FetchedAt:    time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC),
	}
	return post, res
}

func TestBuildDocument(t *testing.T) {
	post, res := processed(t)

	doc := BuildDocument(post, res)
	require.Len(t, doc.Comments, 3)
	require.Len(t, doc.Dangling, 1)
	assert.Equal(t, int64(106), doc.Dangling[0].CommentID)

	id, meta, ok := doc.Lookup.Resolve("1.1")
	require.True(t, ok)
	assert.Equal(t, int64(103), id)
	assert.Equal(t, "user2", meta.Author)
	assert.Len(t, doc.Lookup.ByID, 3)
}

func TestBuildDocument_EmptyResult(t *testing.T) {
	doc := BuildDocument(&models.Post{ID: 1}, &discussion.Result{RootID: 1})

	var buf bytes.Buffer
	require.NoError(t, EncodePretty(&buf, doc))
	assert.Contains(t, buf.String(), `"comments": []`)
	assert.NotContains(t, buf.String(), `"dangling"`)
}

func TestRoundTripDocument(t *testing.T) {
	post, res := processed(t)
	doc := BuildDocument(post, res)

	path := filepath.Join(t.TempDir(), "discussion.json")
	require.NoError(t, WriteJSONPretty(path, doc))

	loaded, err := ReadDocument(path)
	require.NoError(t, err)

	if diff := cmp.Diff(doc, loaded); diff != "" {
		t.Errorf("Round-trip mismatch (-original +roundtrip):\n%s", diff)
	}
}

func TestDocumentResult(t *testing.T) {
	post, res := processed(t)
	path := filepath.Join(t.TempDir(), "discussion.json")
	require.NoError(t, WriteJSONPretty(path, BuildDocument(post, res)))

	loaded, err := ReadDocument(path)
	require.NoError(t, err)

	if diff := cmp.Diff(res, loaded.Result()); diff != "" {
		t.Errorf("Result mismatch (-processed +document):\n%s", diff)
	}
}

func TestReadDocument_Errors(t *testing.T) {
	_, err := ReadDocument(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}

func TestWriteJSONL(t *testing.T) {
	_, res := processed(t)

	var buf bytes.Buffer
	require.NoError(t, WriteJSONL(&buf, 101, res.Comments))

	lines := strings.Split(strings.TrimSuffix(buf.String(), "\n"), "\n")
	require.Len(t, lines, 3)

	var first map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &first))
	assert.Equal(t, float64(101), first["post_id"])
	assert.Equal(t, float64(102), first["id"])
	assert.Equal(t, "1", first["path"])
	assert.Equal(t, float64(900), first["score"])
}
