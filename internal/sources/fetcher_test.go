package sources

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/threadrank/internal/discussion"
	"github.com/threadrank/internal/retry"
	"github.com/threadrank/pkg/models"
)

type memoryCache struct {
	mu   sync.Mutex
	data map[string][]byte
}

func newMemoryCache() *memoryCache {
	return &memoryCache{data: make(map[string][]byte)}
}

func (m *memoryCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	return v, ok, nil
}

func (m *memoryCache) Set(_ context.Context, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	return nil
}

func fastRetry() retry.RetryConfig {
	return retry.RetryConfig{
		MaxRetries: 3,
		BaseDelay:  time.Millisecond,
		MaxDelay:   5 * time.Millisecond,
		Multiplier: 2,
	}
}

func TestFetcher_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		assert.Equal(t, "threadrank-test", r.Header.Get("User-Agent"))
		fmt.Fprint(w, "ok")
	}))
	defer srv.Close()

	f := NewFetcher(FetcherConfig{Name: "test", UserAgent: "threadrank-test", Retry: fastRetry()})

	body, err := f.Get(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, "ok", string(body))
	assert.Equal(t, int32(3), calls.Load())
}

func TestFetcher_ClientErrorIsPermanent(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer srv.Close()

	f := NewFetcher(FetcherConfig{Name: "test", Retry: fastRetry()})

	_, err := f.Get(context.Background(), srv.URL)
	require.Error(t, err)
	assert.Equal(t, int32(1), calls.Load())

	var statusErr *HTTPStatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, http.StatusNotFound, statusErr.StatusCode)
	assert.False(t, statusErr.Retryable())
}

func TestFetcher_ServesFromCache(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		fmt.Fprint(w, "payload")
	}))
	defer srv.Close()

	cache := newMemoryCache()
	f := NewFetcher(FetcherConfig{Name: "test", Cache: cache})

	for i := 0; i < 3; i++ {
		body, err := f.Get(context.Background(), srv.URL)
		require.NoError(t, err)
		assert.Equal(t, "payload", string(body))
	}
	assert.Equal(t, int32(1), calls.Load())
	assert.Contains(t, cache.data, "fetch:test:"+srv.URL)
}

func TestFetcher_WithoutCacheReplacesEntry(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, "v%d", calls.Add(1))
	}))
	defer srv.Close()

	cache := newMemoryCache()
	f := NewFetcher(FetcherConfig{Name: "test", Cache: cache})

	body, err := f.Get(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, "v1", string(body))

	body, err = f.Get(WithoutCache(context.Background()), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, "v2", string(body))

	// The fresh body is what later cached reads see.
	body, err = f.Get(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, "v2", string(body))
	assert.Equal(t, int32(2), calls.Load())
}

func TestHTTPStatusError_Retryable(t *testing.T) {
	assert.True(t, (&HTTPStatusError{StatusCode: 429}).Retryable())
	assert.True(t, (&HTTPStatusError{StatusCode: 502}).Retryable())
	assert.False(t, (&HTTPStatusError{StatusCode: 403}).Retryable())
}

type fakeTrees struct {
	root *discussion.RawNode
	err  error
}

func (f fakeTrees) FetchTree(ctx context.Context, postID int64) (*models.Post, *discussion.RawNode, error) {
	if f.err != nil {
		return nil, nil, f.err
	}
	return &models.Post{ID: postID}, f.root, nil
}

type fakePages struct {
	ann discussion.Annotations
	err error
}

func (f fakePages) FetchAnnotations(ctx context.Context, postID int64) (discussion.Annotations, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.ann, nil
}

func TestFetchDiscussion(t *testing.T) {
	root := &discussion.RawNode{ID: 1, Kind: discussion.KindRoot, Children: []*discussion.RawNode{}}
	ann := discussion.Annotations{2: {Position: 0, Text: "hi"}}

	snap, err := FetchDiscussion(context.Background(), fakeTrees{root: root}, fakePages{ann: ann}, 1)
	require.NoError(t, err)
	assert.Same(t, root, snap.Root)
	assert.Equal(t, ann, snap.Annotations)
	assert.Equal(t, int64(1), snap.Post.ID)
	assert.False(t, snap.Post.FetchedAt.IsZero())
}

func TestFetchDiscussion_Error(t *testing.T) {
	boom := errors.New("boom")

	_, err := FetchDiscussion(context.Background(), fakeTrees{err: boom}, fakePages{}, 1)
	require.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "comment tree for 1")

	_, err = FetchDiscussion(context.Background(), fakeTrees{root: &discussion.RawNode{ID: 1}}, fakePages{err: boom}, 1)
	require.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "page annotations for 1")
}
