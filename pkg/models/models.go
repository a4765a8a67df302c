package models

import (
	"fmt"
	"time"
)

// Post is the story at the root of a discussion.
type Post struct {
	ID           int64     `json:"id" db:"id"`
	Title        string    `json:"title" db:"title"`
	URL          string    `json:"url,omitempty" db:"url"`
	Author       string    `json:"author" db:"author"`
	Points       int       `json:"points" db:"points"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
	CommentCount int       `json:"comment_count" db:"comment_count"` // every comment in the raw tree, including removed ones
	FetchedAt    time.Time `json:"fetched_at,omitempty" db:"fetched_at"`
}

// ItemURL is the Hacker News page of an item.
func ItemURL(id int64) string {
	return fmt.Sprintf("https://news.ycombinator.com/item?id=%d", id)
}

// DiscussionURL is the Hacker News page of the post.
func (p Post) DiscussionURL() string {
	return ItemURL(p.ID)
}
