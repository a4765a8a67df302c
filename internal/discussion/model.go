package discussion

// NodeKind discriminates the container node of a discussion from its comments.
type NodeKind string

const (
	KindRoot    NodeKind = "root"
	KindComment NodeKind = "comment"
)

// RawNode is a node of the structured tree source. The root node is the story
// itself and its children are the top-level comments.
type RawNode struct {
	ID       int64      `json:"id"`
	Kind     NodeKind   `json:"kind"`
	Author   string     `json:"author,omitempty"` // empty when the source reports null (deleted accounts)
	Children []*RawNode `json:"children"`
}

// Annotation is what the ordering source knows about a single comment.
type Annotation struct {
	Position int    `json:"position"` // display rank on the rendered page, unique per discussion
	Text     string `json:"text"`
	Penalty  int    `json:"penalty"` // downvote level
}

// Annotations maps comment id to its annotation. Comments missing here were
// removed, flagged or collapsed on the rendered page.
type Annotations map[int64]Annotation

// Comment is a surviving comment enriched with data from both sources.
type Comment struct {
	ID         int64  `json:"id"`
	Author     string `json:"author"`
	ReplyCount int    `json:"reply_count"` // direct children in the raw tree, surviving or not
	ParentID   int64  `json:"parent_id"`   // root id for top-level comments
	Position   int    `json:"position"`
	Text       string `json:"text"`
	Penalty    int    `json:"penalty"`
	Path       string `json:"path"`
	Score      int    `json:"score"`
}

// Stats are the observability counters of a single run.
type Stats struct {
	TotalNodes int `json:"total_nodes"` // non-root nodes in the raw tree
	Annotated  int `json:"annotated"`   // entries in the annotation map
	Skipped    int `json:"skipped"`     // raw nodes without an annotation
	Surviving  int `json:"surviving"`   // nodes present in both sources
	Dangling   int `json:"dangling"`    // surviving nodes left without a path
}
