package api

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/threadrank/internal/discussion"
	"github.com/threadrank/internal/export"
	"github.com/threadrank/internal/service"
	"github.com/threadrank/internal/store"
	"github.com/threadrank/internal/summarize"
	"github.com/threadrank/pkg/models"
)

type fakeDiscussions struct {
	stored     map[int64]*service.Processed
	loadErr    error
	fetchErr   error
	fetched    int
	refreshed  int
	summaries  map[int64]*summarize.Summary
	summaryErr error
}

func sample(postID int64) *service.Processed {
	return &service.Processed{
		Post: &models.Post{ID: postID, Title: "Show HN"},
		Result: &discussion.Result{
			RootID: postID,
			Comments: []*discussion.Comment{
				{ID: 2, Author: "alice", ParentID: postID, Position: 0, Path: "1", Score: 1000, Text: "hello"},
				{ID: 3, Author: "bob", ParentID: 2, Position: 1, Path: "1.1", Score: 500, Text: "hi"},
			},
			Stats: discussion.Stats{Surviving: 2},
		},
	}
}

func (f *fakeDiscussions) FetchAndSave(ctx context.Context, postID int64) (*service.Processed, error) {
	f.fetched++
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	return sample(postID), nil
}

func (f *fakeDiscussions) Refresh(ctx context.Context, postID int64) (*service.Processed, error) {
	f.refreshed++
	return f.FetchAndSave(ctx, postID)
}

func (f *fakeDiscussions) Load(ctx context.Context, postID int64) (*service.Processed, error) {
	if f.loadErr != nil {
		return nil, f.loadErr
	}
	p, ok := f.stored[postID]
	if !ok {
		return nil, fmt.Errorf("post %d: %w", postID, store.ErrNotFound)
	}
	return p, nil
}

func (f *fakeDiscussions) LoadSummary(ctx context.Context, postID int64) (*summarize.Summary, error) {
	if f.summaryErr != nil {
		return nil, f.summaryErr
	}
	s, ok := f.summaries[postID]
	if !ok {
		return nil, store.ErrNotFound
	}
	return s, nil
}

type fakeQueue struct {
	postID    int64
	summarize bool
	err       error
}

func (q *fakeQueue) Enqueue(ctx context.Context, postID int64, summarize bool) (int64, error) {
	q.postID, q.summarize = postID, summarize
	return 99, q.err
}

func do(t *testing.T, s *Server, method, target string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	rec := do(t, NewServer(0, &fakeDiscussions{}, nil), http.MethodGet, "/health")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"healthy"}`, rec.Body.String())
}

func TestGetDiscussion(t *testing.T) {
	t.Run("fetches when not stored", func(t *testing.T) {
		d := &fakeDiscussions{}
		rec := do(t, NewServer(0, d, nil), http.MethodGet, "/api/v1/discussions/1")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, 1, d.fetched)

		var doc export.Document
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &doc))
		assert.Equal(t, int64(1), doc.Post.ID)
		require.Len(t, doc.Comments, 2)
		assert.Equal(t, "1.1", doc.Comments[1].Path)
		assert.Equal(t, int64(3), doc.Lookup.PathToID["1.1"])
	})

	t.Run("serves stored copy", func(t *testing.T) {
		d := &fakeDiscussions{stored: map[int64]*service.Processed{5: sample(5)}}
		rec := do(t, NewServer(0, d, nil), http.MethodGet, "/api/v1/discussions/5")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, 0, d.fetched)
	})

	t.Run("refresh bypasses store", func(t *testing.T) {
		d := &fakeDiscussions{stored: map[int64]*service.Processed{5: sample(5)}}
		rec := do(t, NewServer(0, d, nil), http.MethodGet, "/api/v1/discussions/5?refresh=true")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, 1, d.fetched)
		assert.Equal(t, 1, d.refreshed)
	})

	t.Run("no store configured", func(t *testing.T) {
		d := &fakeDiscussions{loadErr: service.ErrNoStore}
		rec := do(t, NewServer(0, d, nil), http.MethodGet, "/api/v1/discussions/5")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, 1, d.fetched)
	})

	t.Run("jsonl", func(t *testing.T) {
		rec := do(t, NewServer(0, &fakeDiscussions{}, nil), http.MethodGet, "/api/v1/discussions/1?format=jsonl")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "application/x-ndjson", rec.Header().Get("Content-Type"))

		var rows []map[string]interface{}
		sc := bufio.NewScanner(rec.Body)
		for sc.Scan() {
			var row map[string]interface{}
			require.NoError(t, json.Unmarshal(sc.Bytes(), &row))
			rows = append(rows, row)
		}
		require.Len(t, rows, 2)
		assert.Equal(t, float64(1), rows[0]["post_id"])
		assert.Equal(t, "1", rows[0]["path"])
	})
}

func TestGetDiscussion_Errors(t *testing.T) {
	tests := []struct {
		name   string
		d      *fakeDiscussions
		target string
		want   int
	}{
		{"non-numeric id", &fakeDiscussions{}, "/api/v1/discussions/abc", http.StatusBadRequest},
		{"zero id", &fakeDiscussions{}, "/api/v1/discussions/0", http.StatusBadRequest},
		{"bad format", &fakeDiscussions{}, "/api/v1/discussions/1?format=xml", http.StatusBadRequest},
		{
			"malformed input",
			&fakeDiscussions{fetchErr: fmt.Errorf("post 1: %w", discussion.ErrMalformedInput)},
			"/api/v1/discussions/1",
			http.StatusUnprocessableEntity,
		},
		{
			"upstream failure",
			&fakeDiscussions{fetchErr: errors.New("comment tree for 1: 503")},
			"/api/v1/discussions/1",
			http.StatusBadGateway,
		},
		{
			"timeout",
			&fakeDiscussions{fetchErr: fmt.Errorf("fetch: %w", context.DeadlineExceeded)},
			"/api/v1/discussions/1",
			http.StatusGatewayTimeout,
		},
		{
			"store failure",
			&fakeDiscussions{loadErr: errors.New("connection reset")},
			"/api/v1/discussions/1",
			http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, NewServer(0, tt.d, nil), http.MethodGet, tt.target)
			assert.Equal(t, tt.want, rec.Code)
			assert.Contains(t, rec.Body.String(), "error")
		})
	}
}

func TestGetDiscussionLines(t *testing.T) {
	rec := do(t, NewServer(0, &fakeDiscussions{}, nil), http.MethodGet, "/api/v1/discussions/1/lines")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.HasPrefix(rec.Header().Get("Content-Type"), "text/plain"))
	assert.Equal(t,
		"[1] (score: 1000) <replies: 0> {penalty: 0} alice: hello\n"+
			"[1.1] (score: 500) <replies: 0> {penalty: 0} bob: hi\n",
		rec.Body.String())
}

func TestGetSummary(t *testing.T) {
	d := &fakeDiscussions{summaries: map[int64]*summarize.Summary{1: {Summary: "all good"}}}
	s := NewServer(0, d, nil)

	rec := do(t, s, http.MethodGet, "/api/v1/discussions/1/summary")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "all good")

	assert.Equal(t, http.StatusNotFound, do(t, s, http.MethodGet, "/api/v1/discussions/2/summary").Code)

	d.summaryErr = service.ErrNoStore
	assert.Equal(t, http.StatusServiceUnavailable, do(t, s, http.MethodGet, "/api/v1/discussions/1/summary").Code)
}

func TestCreateJob(t *testing.T) {
	t.Run("without queue", func(t *testing.T) {
		rec := do(t, NewServer(0, &fakeDiscussions{}, nil), http.MethodPost, "/api/v1/discussions/1/jobs")
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	})

	t.Run("queued", func(t *testing.T) {
		q := &fakeQueue{}
		rec := do(t, NewServer(0, &fakeDiscussions{}, q), http.MethodPost, "/api/v1/discussions/42/jobs?summarize=true")
		require.Equal(t, http.StatusAccepted, rec.Code)
		assert.JSONEq(t, `{"job_id":99,"post_id":42,"summarize":true}`, rec.Body.String())
		assert.Equal(t, int64(42), q.postID)
		assert.True(t, q.summarize)
	})

	t.Run("queue failure", func(t *testing.T) {
		q := &fakeQueue{err: errors.New("db down")}
		rec := do(t, NewServer(0, &fakeDiscussions{}, q), http.MethodPost, "/api/v1/discussions/42/jobs")
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
	})
}
