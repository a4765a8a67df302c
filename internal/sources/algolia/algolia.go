// Package algolia reads discussion trees from the Hacker News Algolia API
// (GET /api/v1/items/{id}), which returns the whole tree in one response.
package algolia

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/threadrank/internal/discussion"
	"github.com/threadrank/internal/sources"
	"github.com/threadrank/pkg/models"
)

const DefaultBaseURL = "https://hn.algolia.com"

// Item is a node of the items API response.
type Item struct {
	ID         *int64  `json:"id"`
	Type       string  `json:"type"`
	Author     *string `json:"author"`
	Title      string  `json:"title"`
	URL        string  `json:"url"`
	Text       string  `json:"text"`
	Points     *int    `json:"points"`
	CreatedAtI int64   `json:"created_at_i"`
	ParentID   *int64  `json:"parent_id"`
	Children   []*Item `json:"children"` // nil when the field is missing or null
}

// Decode parses an items API response body.
func Decode(body []byte) (*Item, error) {
	var it Item
	if err := json.Unmarshal(body, &it); err != nil {
		return nil, &discussion.MalformedInputError{Reason: fmt.Sprintf("decode item: %v", err)}
	}
	return &it, nil
}

func kindOf(itemType string) discussion.NodeKind {
	if strings.EqualFold(itemType, "comment") {
		return discussion.KindComment
	}
	return discussion.KindRoot
}

type pending struct {
	item *Item
	node *discussion.RawNode
}

// Tree converts the item into the raw tree consumed by discussion.Reconcile.
// The root keeps its own kind ("story", "poll", "job" become KindRoot), so a
// comment id passed as a post id yields an empty discussion rather than an
// error. Nodes without an id or a children array are malformed.
func (it *Item) Tree() (*discussion.RawNode, error) {
	root, err := convert(it, it.ID)
	if err != nil {
		return nil, err
	}

	stack := []pending{{item: it, node: root}}
	for len(stack) > 0 {
		top := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		top.node.Children = make([]*discussion.RawNode, 0, len(top.item.Children))
		for _, child := range top.item.Children {
			n, err := convert(child, top.item.ID)
			if err != nil {
				return nil, err
			}
			n.Kind = discussion.KindComment
			top.node.Children = append(top.node.Children, n)
			stack = append(stack, pending{item: child, node: n})
		}
	}
	return root, nil
}

func convert(it *Item, parentID *int64) (*discussion.RawNode, error) {
	var parent int64
	if parentID != nil {
		parent = *parentID
	}
	if it == nil {
		return nil, &discussion.MalformedInputError{NodeID: parent, Reason: "null child item"}
	}
	if it.ID == nil {
		return nil, &discussion.MalformedInputError{NodeID: parent, Reason: "item without id"}
	}
	if it.Children == nil {
		return nil, &discussion.MalformedInputError{NodeID: *it.ID, Reason: "item without children array"}
	}
	n := &discussion.RawNode{ID: *it.ID, Kind: kindOf(it.Type)}
	if it.Author != nil {
		n.Author = *it.Author
	}
	return n, nil
}

// Post extracts the story metadata. CommentCount counts every descendant.
func (it *Item) Post() *models.Post {
	p := &models.Post{
		Title: it.Title,
		URL:   it.URL,
	}
	if it.ID != nil {
		p.ID = *it.ID
	}
	if it.Author != nil {
		p.Author = *it.Author
	}
	if it.Points != nil {
		p.Points = *it.Points
	}
	if it.CreatedAtI > 0 {
		p.CreatedAt = time.Unix(it.CreatedAtI, 0).UTC()
	}

	stack := append([]*Item(nil), it.Children...)
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if n == nil {
			continue
		}
		p.CommentCount++
		stack = append(stack, n.Children...)
	}
	return p
}

// Client fetches items through a sources.Fetcher.
type Client struct {
	fetcher *sources.Fetcher
	baseURL string
}

// New creates a client. An empty baseURL means DefaultBaseURL.
func New(fetcher *sources.Fetcher, baseURL string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{fetcher: fetcher, baseURL: strings.TrimSuffix(baseURL, "/")}
}

// FetchItem downloads and decodes one item with its full subtree.
func (c *Client) FetchItem(ctx context.Context, id int64) (*Item, error) {
	body, err := c.fetcher.Get(ctx, fmt.Sprintf("%s/api/v1/items/%d", c.baseURL, id))
	if err != nil {
		return nil, err
	}
	return Decode(body)
}

// FetchTree implements sources.TreeSource.
func (c *Client) FetchTree(ctx context.Context, postID int64) (*models.Post, *discussion.RawNode, error) {
	item, err := c.FetchItem(ctx, postID)
	if err != nil {
		return nil, nil, err
	}
	root, err := item.Tree()
	if err != nil {
		return nil, nil, err
	}
	return item.Post(), root, nil
}
