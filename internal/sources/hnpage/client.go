package hnpage

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/rs/zerolog"

	"github.com/threadrank/internal/discussion"
	"github.com/threadrank/internal/sources"
)

const (
	DefaultBaseURL = "https://news.ycombinator.com"

	// DefaultMaxPages bounds pagination on runaway threads.
	DefaultMaxPages = 50
)

// Client fetches and parses item pages, following "More" links.
type Client struct {
	fetcher  *sources.Fetcher
	baseURL  *url.URL
	MaxPages int
}

// New creates a client. An empty baseURL means DefaultBaseURL.
func New(fetcher *sources.Fetcher, baseURL string) (*Client, error) {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	u, err := url.Parse(strings.TrimSuffix(baseURL, "/") + "/")
	if err != nil {
		return nil, fmt.Errorf("invalid HN base URL %q: %w", baseURL, err)
	}
	return &Client{fetcher: fetcher, baseURL: u, MaxPages: DefaultMaxPages}, nil
}

// FetchAnnotations implements sources.AnnotationSource. Annotations from all
// pages are merged; positions continue across pages.
func (c *Client) FetchAnnotations(ctx context.Context, postID int64) (discussion.Annotations, error) {
	logger := zerolog.Ctx(ctx)

	all := make(discussion.Annotations)
	next := c.baseURL.ResolveReference(&url.URL{Path: "item", RawQuery: fmt.Sprintf("id=%d", postID)})
	offset := 0

	for pageNo := 1; next != nil; pageNo++ {
		if pageNo > c.MaxPages {
			logger.Warn().Int64("post_id", postID).Int("max_pages", c.MaxPages).Msg("Page limit reached, remaining comments ignored")
			break
		}

		body, err := c.fetcher.Get(ctx, next.String())
		if err != nil {
			return nil, fmt.Errorf("item page %d: %w", pageNo, err)
		}
		page, err := Parse(bytes.NewReader(body), offset)
		if err != nil {
			return nil, fmt.Errorf("item page %d: %w", pageNo, err)
		}

		for id, ann := range page.Annotations {
			if _, seen := all[id]; !seen {
				all[id] = ann
			}
		}
		offset += page.Rows

		logger.Debug().
			Int64("post_id", postID).
			Int("page", pageNo).
			Int("rows", page.Rows).
			Msg("Parsed item page")

		next = nil
		if page.Next != "" {
			ref, err := url.Parse(page.Next)
			if err != nil {
				return nil, fmt.Errorf("item page %d: invalid more link %q: %w", pageNo, page.Next, err)
			}
			next = c.baseURL.ResolveReference(ref)
		}
	}
	return all, nil
}
