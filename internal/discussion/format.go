package discussion

import (
	"bufio"
	"io"
	"strconv"
	"strings"
)

// CommentMeta is the per-comment record kept for resolving references made
// by downstream consumers, which only see paths.
type CommentMeta struct {
	Author     string `json:"author"`
	Path       string `json:"path"`
	ReplyCount int    `json:"reply_count"`
	Position   int    `json:"position"`
	Penalty    int    `json:"penalty"`
	Score      int    `json:"score"`
}

// Lookup indexes a processed discussion by path and by id.
type Lookup struct {
	PathToID map[string]int64      `json:"path_to_id"`
	ByID     map[int64]CommentMeta `json:"by_id"`
}

// Resolve maps a hierarchy path back to the comment it names.
func (l Lookup) Resolve(path string) (int64, CommentMeta, bool) {
	id, ok := l.PathToID[path]
	if !ok {
		return 0, CommentMeta{}, false
	}
	return id, l.ByID[id], true
}

// BuildLookup indexes comments that have a path. Dangling comments are left out.
func BuildLookup(comments []*Comment) Lookup {
	l := Lookup{
		PathToID: make(map[string]int64, len(comments)),
		ByID:     make(map[int64]CommentMeta, len(comments)),
	}
	for _, c := range comments {
		if c.Path == "" {
			continue
		}
		l.PathToID[c.Path] = c.ID
		l.ByID[c.ID] = CommentMeta{
			Author:     c.Author,
			Path:       c.Path,
			ReplyCount: c.ReplyCount,
			Position:   c.Position,
			Penalty:    c.Penalty,
			Score:      c.Score,
		}
	}
	return l
}

// FormatLine renders a comment as
//
//	[path] (score: S) <replies: R> {penalty: P} author: text
//
// Summarization prompts depend on this exact layout.
func FormatLine(c *Comment) string {
	var b strings.Builder
	b.Grow(len(c.Path) + len(c.Author) + len(c.Text) + 48)
	b.WriteByte('[')
	b.WriteString(c.Path)
	b.WriteString("] (score: ")
	b.WriteString(strconv.Itoa(c.Score))
	b.WriteString(") <replies: ")
	b.WriteString(strconv.Itoa(c.ReplyCount))
	b.WriteString("> {penalty: ")
	b.WriteString(strconv.Itoa(c.Penalty))
	b.WriteString("} ")
	b.WriteString(c.Author)
	b.WriteString(": ")
	b.WriteString(c.Text)
	return b.String()
}

// WriteLines writes one formatted line per comment, in the given order.
func WriteLines(w io.Writer, comments []*Comment) error {
	bw := bufio.NewWriter(w)
	for _, c := range comments {
		if _, err := bw.WriteString(FormatLine(c)); err != nil {
			return err
		}
		if err := bw.WriteByte('\n'); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// Lines is WriteLines into a string.
func Lines(comments []*Comment) string {
	var b strings.Builder
	_ = WriteLines(&b, comments)
	return b.String()
}
