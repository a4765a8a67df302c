// Package service orchestrates a discussion run: fetch both sources,
// reconcile and rank, then optionally persist and summarize.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/threadrank/internal/discussion"
	"github.com/threadrank/internal/sources"
	"github.com/threadrank/internal/summarize"
	"github.com/threadrank/pkg/models"
)

var (
	// ErrNoStore is returned by operations that need a database when none is configured.
	ErrNoStore = errors.New("no database configured")
	// ErrNoSummarizer is returned by Summarize when no AI provider is configured.
	ErrNoSummarizer = errors.New("no AI provider configured")
)

// Store persists processed discussions.
type Store interface {
	SaveDiscussion(ctx context.Context, post *models.Post, res *discussion.Result) error
	LoadDiscussion(ctx context.Context, postID int64) (*models.Post, *discussion.Result, error)
	SaveSummary(ctx context.Context, postID int64, model string, summary *summarize.Summary) error
	LoadSummary(ctx context.Context, postID int64) (*summarize.Summary, error)
}

// Summarizer produces a summary of a processed discussion.
type Summarizer interface {
	Summarize(ctx context.Context, post *models.Post, res *discussion.Result) (*summarize.Summary, error)
}

// Config holds the service configuration
type Config struct {
	RunTimeout time.Duration
	Model      string // recorded next to stored summaries
}

// DefaultConfig returns the configuration used when none is given.
func DefaultConfig() Config {
	return Config{RunTimeout: 5 * time.Minute}
}

// Processed is a ranked discussion with its post.
type Processed struct {
	Post   *models.Post
	Result *discussion.Result
}

// Service represents the discussion processing service
type Service struct {
	trees      sources.TreeSource
	pages      sources.AnnotationSource
	store      Store
	summarizer Summarizer
	config     Config
}

// Option configures optional collaborators.
type Option func(*Service)

// WithStore enables persistence.
func WithStore(store Store) Option {
	return func(s *Service) { s.store = store }
}

// WithSummarizer enables summaries.
func WithSummarizer(summarizer Summarizer) Option {
	return func(s *Service) { s.summarizer = summarizer }
}

// NewService creates a new service
func NewService(trees sources.TreeSource, pages sources.AnnotationSource, config Config, opts ...Option) *Service {
	if config.RunTimeout <= 0 {
		config.RunTimeout = DefaultConfig().RunTimeout
	}
	s := &Service{trees: trees, pages: pages, config: config}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// HasStore reports whether persistence is enabled.
func (s *Service) HasStore() bool { return s.store != nil }

// HasSummarizer reports whether summaries are enabled.
func (s *Service) HasSummarizer() bool { return s.summarizer != nil }

// Fetch reads both sources for postID and ranks the comments.
func (s *Service) Fetch(ctx context.Context, postID int64) (*Processed, error) {
	if postID <= 0 {
		return nil, fmt.Errorf("invalid post id %d", postID)
	}
	logger := zerolog.Ctx(ctx).With().Int64("post_id", postID).Logger()
	ctx = logger.WithContext(ctx)

	runCtx, cancel := context.WithTimeout(ctx, s.config.RunTimeout)
	defer cancel()

	start := time.Now()
	snap, err := sources.FetchDiscussion(runCtx, s.trees, s.pages, postID)
	if err != nil {
		return nil, err
	}

	res, err := discussion.Process(ctx, snap.Root, snap.Annotations)
	if err != nil {
		return nil, fmt.Errorf("post %d: %w", postID, err)
	}

	logger.Info().
		Int("comments", len(res.Comments)).
		Int("skipped", res.Stats.Skipped).
		Int("dangling", res.Stats.Dangling).
		Dur("duration", time.Since(start)).
		Msg("Discussion ranked")
	return &Processed{Post: snap.Post, Result: res}, nil
}

// FetchAndSave runs Fetch and stores the outcome when a store is configured.
func (s *Service) FetchAndSave(ctx context.Context, postID int64) (*Processed, error) {
	p, err := s.Fetch(ctx, postID)
	if err != nil {
		return nil, err
	}
	if s.store != nil {
		if err := s.store.SaveDiscussion(ctx, p.Post, p.Result); err != nil {
			return nil, err
		}
	}
	return p, nil
}

// Refresh is FetchAndSave with the response cache bypassed, so both sources
// are read from upstream again. The fresh bodies replace the cached ones.
func (s *Service) Refresh(ctx context.Context, postID int64) (*Processed, error) {
	return s.FetchAndSave(sources.WithoutCache(ctx), postID)
}

// Load returns a previously saved discussion.
func (s *Service) Load(ctx context.Context, postID int64) (*Processed, error) {
	if s.store == nil {
		return nil, ErrNoStore
	}
	post, res, err := s.store.LoadDiscussion(ctx, postID)
	if err != nil {
		return nil, err
	}
	return &Processed{Post: post, Result: res}, nil
}

// Summarize summarizes p and stores the summary when a store is configured.
func (s *Service) Summarize(ctx context.Context, p *Processed) (*summarize.Summary, error) {
	if s.summarizer == nil {
		return nil, ErrNoSummarizer
	}
	summary, err := s.summarizer.Summarize(ctx, p.Post, p.Result)
	if err != nil {
		return nil, err
	}
	if s.store != nil {
		if err := s.store.SaveSummary(ctx, p.Post.ID, s.config.Model, summary); err != nil {
			return nil, err
		}
	}
	return summary, nil
}

// LoadSummary returns the stored summary of postID.
func (s *Service) LoadSummary(ctx context.Context, postID int64) (*summarize.Summary, error) {
	if s.store == nil {
		return nil, ErrNoStore
	}
	return s.store.LoadSummary(ctx, postID)
}
