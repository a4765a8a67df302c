package discussion

import (
	"context"

	"github.com/rs/zerolog"
)

// Result is the output of one pipeline run.
type Result struct {
	RootID   int64                  `json:"root_id"`
	Comments []*Comment             `json:"comments"` // position order, dangling comments removed
	Dangling []*DanglingParentError `json:"dangling,omitempty"`
	Stats    Stats                  `json:"stats"`
}

// Empty reports whether no comment survived. That is a valid outcome, not an error.
func (r *Result) Empty() bool {
	return len(r.Comments) == 0
}

// rank drops dangling comments and scores the rest. Dangling comments keep a
// zero score but still count towards the normalization total.
func rank(surviving []*Comment, dangling []*DanglingParentError) []*Comment {
	ranked := surviving
	if len(dangling) > 0 {
		drop := make(map[int64]bool, len(dangling))
		for _, d := range dangling {
			drop[d.CommentID] = true
		}
		ranked = make([]*Comment, 0, len(surviving)-len(dangling))
		for _, c := range surviving {
			if !drop[c.ID] {
				ranked = append(ranked, c)
			}
		}
	}
	AssignScores(ranked, len(surviving))
	return ranked
}

// Process reconciles the two sources, assigns paths and scores. It keeps no
// state between calls and may run concurrently on independent discussions.
// The logger is taken from ctx.
func Process(ctx context.Context, root *RawNode, ann Annotations) (*Result, error) {
	logger := zerolog.Ctx(ctx)

	rec, err := Reconcile(root, ann)
	if err != nil {
		logger.Error().Err(err).Msg("Rejected malformed discussion input")
		return nil, err
	}

	dangling := AssignPaths(rec.RootID, rec.Comments)

	for _, d := range dangling {
		logger.Warn().
			Int64("comment_id", d.CommentID).
			Int64("parent_id", d.ParentID).
			Int64("missing_id", d.MissingID).
			Msg("Comment has no surviving parent chain")
	}
	ranked := rank(rec.Comments, dangling)

	res := &Result{
		RootID:   rec.RootID,
		Comments: ranked,
		Dangling: dangling,
		Stats: Stats{
			TotalNodes: rec.TotalNodes,
			Annotated:  len(ann),
			Skipped:    rec.Skipped,
			Surviving:  len(rec.Comments),
			Dangling:   len(dangling),
		},
	}

	if res.Empty() {
		logger.Warn().
			Int64("root_id", res.RootID).
			Int("total_nodes", res.Stats.TotalNodes).
			Int("skipped", res.Stats.Skipped).
			Msg("No comments survived reconciliation")
	} else {
		logger.Debug().
			Int64("root_id", res.RootID).
			Int("comments", len(res.Comments)).
			Int("skipped", res.Stats.Skipped).
			Int("dangling", res.Stats.Dangling).
			Msg("Processed discussion")
	}
	return res, nil
}
