package service

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/threadrank/internal/config"
	"github.com/threadrank/internal/logging"
	"github.com/threadrank/internal/retry"
	"github.com/threadrank/internal/sources"
	"github.com/threadrank/internal/sources/algolia"
	"github.com/threadrank/internal/sources/cache"
	"github.com/threadrank/internal/sources/hnpage"
	"github.com/threadrank/internal/store"
	"github.com/threadrank/internal/summarize"
)

// BuildOptions selects the optional parts Build wires up.
type BuildOptions struct {
	Store      bool
	Summarizer bool
	AIProvider string             // overrides cfg.AI.Provider when set
	RunLog     *logging.RunLogger // optional transcript for LLM calls
}

// Built is a service together with the resources it owns.
type Built struct {
	Service *Service
	Store   *store.Store // nil unless requested
	cache   *cache.RedisCache
}

// Close releases the database pool and the Redis connection.
func (b *Built) Close() {
	if b.Store != nil {
		b.Store.Close()
	}
	if b.cache != nil {
		b.cache.Close()
	}
}

// NewSources creates the Algolia and HN page clients from configuration.
// cache may be nil.
func NewSources(cfg *config.Config, c sources.Cache) (*algolia.Client, *hnpage.Client, error) {
	retryConfig := retry.DefaultRetryConfig()
	retryConfig.MaxRetries = cfg.Sources.MaxRetries

	algoliaFetcher := sources.NewFetcher(sources.FetcherConfig{
		Name:              "algolia",
		UserAgent:         cfg.Sources.UserAgent,
		Timeout:           cfg.Sources.Timeout,
		RequestsPerSecond: cfg.Sources.AlgoliaRPS,
		Burst:             int(cfg.Sources.AlgoliaRPS) + 1,
		Retry:             retryConfig,
		Cache:             c,
	})
	hnFetcher := sources.NewFetcher(sources.FetcherConfig{
		Name:              "hn",
		UserAgent:         cfg.Sources.UserAgent,
		Timeout:           cfg.Sources.Timeout,
		RequestsPerSecond: cfg.Sources.HNRPS,
		Burst:             int(cfg.Sources.HNRPS),
		Retry:             retryConfig,
		Cache:             c,
	})

	pages, err := hnpage.New(hnFetcher, cfg.Sources.HNURL)
	if err != nil {
		return nil, nil, err
	}
	if cfg.Sources.MaxPages > 0 {
		pages.MaxPages = cfg.Sources.MaxPages
	}
	return algolia.New(algoliaFetcher, cfg.Sources.AlgoliaURL), pages, nil
}

// ConnectorOptions maps the [ai] section onto connector options.
func ConnectorOptions(cfg *config.Config, provider string) summarize.Options {
	if provider == "" {
		provider = cfg.AI.Provider
	}
	return summarize.Options{
		Provider:    summarize.Provider(provider),
		APIKey:      cfg.AI.APIKey,
		BaseURL:     cfg.AI.BaseURL,
		Model:       cfg.AI.Model,
		Temperature: cfg.AI.Temperature,
		MaxTokens:   cfg.AI.MaxTokens,
	}
}

// Build wires a Service from configuration. The Redis cache is used when
// cache.redis_url is set; an unreachable Redis only disables caching.
func Build(ctx context.Context, cfg *config.Config, opts BuildOptions) (*Built, error) {
	built := &Built{}

	var c sources.Cache
	if cfg.Cache.RedisURL != "" {
		rc, err := cache.NewRedisCache(cfg.Cache.RedisURL, cfg.Cache.TTL)
		if err != nil {
			log.Warn().Err(err).Msg("Redis cache unavailable, continuing without cache")
		} else {
			built.cache = rc
			c = rc
		}
	}

	trees, pages, err := NewSources(cfg, c)
	if err != nil {
		built.Close()
		return nil, err
	}

	svcConfig := DefaultConfig()
	if cfg.Queue.JobTimeout > 0 {
		svcConfig.RunTimeout = cfg.Queue.JobTimeout
	}

	var svcOpts []Option
	if opts.Store {
		st, err := store.New(ctx, cfg.Database.URL)
		if err != nil {
			built.Close()
			return nil, err
		}
		built.Store = st
		svcOpts = append(svcOpts, WithStore(st))
	}

	if opts.Summarizer {
		connector, err := summarize.NewConnector(ctx, ConnectorOptions(cfg, opts.AIProvider))
		if err != nil {
			built.Close()
			return nil, fmt.Errorf("failed to create AI connector: %w", err)
		}
		svcConfig.Model = string(connector.Provider()) + "/" + connector.Model()
		svcOpts = append(svcOpts, WithSummarizer(summarize.New(connector, opts.RunLog)))
	}

	built.Service = NewService(trees, pages, svcConfig, svcOpts...)
	return built, nil
}
