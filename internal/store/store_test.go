package store

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/threadrank/internal/discussion"
	"github.com/threadrank/internal/summarize"
	"github.com/threadrank/pkg/models"
)

// These tests need a disposable PostgreSQL database:
//
//	THREADRANK_TEST_DATABASE_URL=postgres://localhost/threadrank_test go test ./internal/store
func testStore(t *testing.T) *Store {
	t.Helper()
	url := os.Getenv("THREADRANK_TEST_DATABASE_URL")
	if url == "" {
		t.Skip("THREADRANK_TEST_DATABASE_URL not set")
	}

	ctx := context.Background()
	s, err := New(ctx, url)
	require.NoError(t, err)
	t.Cleanup(s.Close)

	require.NoError(t, s.Migrate(ctx))
	require.NoError(t, s.Migrate(ctx), "migrations must be idempotent")
	return s
}

func sampleResult(t *testing.T) *discussion.Result {
	t.Helper()
	leaf := func(id int64, author string, children ...*discussion.RawNode) *discussion.RawNode {
		if children == nil {
			children = []*discussion.RawNode{}
		}
		return &discussion.RawNode{ID: id, Kind: discussion.KindComment, Author: author, Children: children}
	}
	root := &discussion.RawNode{ID: 9000001, Kind: discussion.KindRoot, Children: []*discussion.RawNode{
		leaf(9000002, "user1", leaf(9000003, "user2")),
		leaf(9000004, "user3"),
		leaf(9000005, "gone", leaf(9000006, "orphan")),
	}}
	res, err := discussion.Process(context.Background(), root, discussion.Annotations{
		9000002: {Position: 0, Text: "Comment 1", Penalty: 1},
		9000003: {Position: 1, Text: "Comment 2"},
		9000004: {Position: 2, Text: "Comment 3", Penalty: 2},
		9000006: {Position: 3, Text: "Orphan"},
	})
	require.NoError(t, err)
	require.Len(t, res.Dangling, 1)
	return res
}

func TestSaveAndLoadDiscussion(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	post := &models.Post{
		ID:           9000001,
		Title:        "Ask HN: storage?",
		Author:       "op",
		Points:       3,
		CommentCount: 3,
		CreatedAt:    time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
		FetchedAt:    time.Date(2024, 5, 2, 12, 0, 0, 0, time.UTC),
	}
	res := sampleResult(t)

	require.NoError(t, s.SaveDiscussion(ctx, post, res))
	// Saving again replaces rather than duplicates.
	require.NoError(t, s.SaveDiscussion(ctx, post, res))

	gotPost, gotRes, err := s.LoadDiscussion(ctx, post.ID)
	require.NoError(t, err)

	if diff := cmp.Diff(post, gotPost); diff != "" {
		t.Errorf("post mismatch (-want +got):\n%s", diff)
	}
	// Counters and dangling diagnostics come back exactly as computed.
	if diff := cmp.Diff(res, gotRes); diff != "" {
		t.Errorf("result mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, discussion.Stats{TotalNodes: 5, Annotated: 4, Skipped: 1, Surviving: 4, Dangling: 1}, gotRes.Stats)
}

func TestSaveDiscussion_ReplacesComments(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	post := &models.Post{ID: 9000001}

	require.NoError(t, s.SaveDiscussion(ctx, post, sampleResult(t)))
	require.NoError(t, s.SaveDiscussion(ctx, post, &discussion.Result{RootID: post.ID}))

	_, res, err := s.LoadDiscussion(ctx, post.ID)
	require.NoError(t, err)
	assert.Empty(t, res.Comments)
	assert.Empty(t, res.Dangling)
	assert.Equal(t, discussion.Stats{}, res.Stats)
}

func TestLoadDiscussion_NotFound(t *testing.T) {
	s := testStore(t)

	_, _, err := s.LoadDiscussion(context.Background(), 1)
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestSaveAndLoadSummary(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	post := &models.Post{ID: 9000001}
	require.NoError(t, s.SaveDiscussion(ctx, post, sampleResult(t)))

	summary := &summarize.Summary{
		Summary: "s",
		Themes: []summarize.Theme{{
			Title: "t",
			Points: []summarize.Point{{
				Text:       "p",
				Paths:      []string{"1"},
				References: []summarize.Reference{{Path: "1", CommentID: 9000002, Author: "user1", Score: 900, URL: models.ItemURL(9000002)}},
			}},
		}},
	}
	require.NoError(t, s.SaveSummary(ctx, post.ID, "fake", summary))

	got, err := s.LoadSummary(ctx, post.ID)
	require.NoError(t, err)
	if diff := cmp.Diff(summary, got); diff != "" {
		t.Errorf("summary mismatch (-want +got):\n%s", diff)
	}

	_, err = s.LoadSummary(ctx, 2)
	assert.True(t, errors.Is(err, ErrNotFound))
}
