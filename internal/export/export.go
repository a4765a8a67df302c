// Package export writes processed discussions to disk as JSON documents or
// JSON Lines and reads documents back.
package export

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/threadrank/internal/discussion"
	"github.com/threadrank/pkg/models"
)

// Document is the on-disk form of one processed discussion.
type Document struct {
	Post     *models.Post                      `json:"post"`
	Comments []*discussion.Comment             `json:"comments"`
	Lookup   discussion.Lookup                 `json:"lookup"`
	Dangling []*discussion.DanglingParentError `json:"dangling,omitempty"`
	Stats    discussion.Stats                  `json:"stats"`
}

// BuildDocument assembles a document from a pipeline result.
func BuildDocument(post *models.Post, res *discussion.Result) *Document {
	comments := res.Comments
	if comments == nil {
		comments = []*discussion.Comment{}
	}
	return &Document{
		Post:     post,
		Comments: comments,
		Lookup:   discussion.BuildLookup(comments),
		Dangling: res.Dangling,
		Stats:    res.Stats,
	}
}

// Result rebuilds the pipeline result a document was built from.
func (d *Document) Result() *discussion.Result {
	var rootID int64
	if d.Post != nil {
		rootID = d.Post.ID
	}
	return &discussion.Result{
		RootID:   rootID,
		Comments: d.Comments,
		Dangling: d.Dangling,
		Stats:    d.Stats,
	}
}

// WriteJSONPretty writes v as indented JSON to path.
func WriteJSONPretty(path string, v interface{}) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create file: %w", err)
	}
	defer file.Close()

	return EncodePretty(file, v)
}

// EncodePretty writes v as indented JSON to w.
func EncodePretty(w io.Writer, v interface{}) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}

// jsonlRecord is one JSON Lines row.
type jsonlRecord struct {
	PostID int64 `json:"post_id"`
	*discussion.Comment
}

// WriteJSONL writes one JSON object per comment, in the given order.
func WriteJSONL(w io.Writer, postID int64, comments []*discussion.Comment) error {
	bw := bufio.NewWriter(w)
	encoder := json.NewEncoder(bw)
	for _, c := range comments {
		if err := encoder.Encode(jsonlRecord{PostID: postID, Comment: c}); err != nil {
			return fmt.Errorf("encode comment %d: %w", c.ID, err)
		}
	}
	return bw.Flush()
}

// ReadDocument loads a document written by WriteJSONPretty.
func ReadDocument(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read document: %w", err)
	}

	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode document %s: %w", path, err)
	}
	return &doc, nil
}
