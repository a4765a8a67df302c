// Package hnpage scrapes Hacker News item pages for the order comments are
// displayed in, their cleaned text and the grey-out level of downvoted ones.
package hnpage

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/threadrank/internal/discussion"
)

// penaltyClasses maps the commtext colour class to downvote units.
var penaltyClasses = map[string]int{
	"c00": 0,
	"c5a": 1,
	"c73": 2,
	"c82": 3,
	"c88": 4,
	"c9c": 5,
	"cae": 6,
	"cbe": 7,
	"cce": 8,
	"cdd": 9,
}

// Page is the result of parsing one item page.
type Page struct {
	Annotations discussion.Annotations
	// Rows is the number of annotated comment rows on the page.
	Rows int
	// Next is the href of the "More" link, empty on the last page.
	Next string
}

// Parse reads one item page. Positions start at offset so that paginated
// pages continue the numbering of the previous ones. Rows without comment
// text (deleted or flagged) are not annotated and take no position.
func Parse(r io.Reader, offset int) (*Page, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("parse item page: %w", err)
	}

	page := &Page{Annotations: make(discussion.Annotations)}
	walk(doc, func(n *html.Node) bool {
		switch {
		case n.DataAtom == atom.Tr && hasClass(n, "athing") && hasClass(n, "comtr"):
			id, err := strconv.ParseInt(attr(n, "id"), 10, 64)
			if err != nil || id <= 0 {
				return false
			}
			text := findFirst(n, func(c *html.Node) bool { return hasClass(c, "commtext") })
			if text == nil {
				return false
			}
			if _, dup := page.Annotations[id]; dup {
				return false
			}
			page.Annotations[id] = discussion.Annotation{
				Position: offset + page.Rows,
				Text:     commentText(text),
				Penalty:  penaltyOf(text),
			}
			page.Rows++
			return false
		case n.DataAtom == atom.A && hasClass(n, "morelink"):
			page.Next = attr(n, "href")
			return false
		}
		return true
	})
	return page, nil
}

func penaltyOf(n *html.Node) int {
	for _, class := range strings.Fields(attr(n, "class")) {
		if p, ok := penaltyClasses[class]; ok {
			return p
		}
	}
	return 0
}

// commentText flattens a commtext node: paragraphs are joined with a space,
// links are replaced by their target, italics are wrapped in asterisks and
// the trailing reply link is dropped.
func commentText(n *html.Node) string {
	var b strings.Builder
	var render func(*html.Node)
	render = func(n *html.Node) {
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			switch {
			case c.Type == html.TextNode:
				b.WriteString(c.Data)
			case c.Type != html.ElementNode:
			case hasClass(c, "reply"):
			case c.DataAtom == atom.A:
				href := attr(c, "href")
				if href == "" {
					render(c)
				} else {
					b.WriteString(href)
				}
			case c.DataAtom == atom.I:
				b.WriteString("*")
				render(c)
				b.WriteString("*")
			case c.DataAtom == atom.P:
				b.WriteString(" ")
				render(c)
			case c.DataAtom == atom.Br:
				b.WriteString(" ")
			default:
				render(c)
			}
		}
	}
	render(n)
	return strings.Join(strings.Fields(b.String()), " ")
}

// walk visits nodes in document order. visit returns false to skip the
// node's subtree.
func walk(root *html.Node, visit func(*html.Node) bool) {
	stack := []*html.Node{root}
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if n.Type == html.ElementNode && !visit(n) {
			continue
		}
		for c := n.LastChild; c != nil; c = c.PrevSibling {
			stack = append(stack, c)
		}
	}
}

func findFirst(root *html.Node, match func(*html.Node) bool) *html.Node {
	var found *html.Node
	walk(root, func(n *html.Node) bool {
		if found != nil {
			return false
		}
		if n != root && match(n) {
			found = n
			return false
		}
		return true
	})
	return found
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func hasClass(n *html.Node, class string) bool {
	if n.Type != html.ElementNode {
		return false
	}
	for _, c := range strings.Fields(attr(n, "class")) {
		if c == class {
			return true
		}
	}
	return false
}
