package sources

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/threadrank/internal/discussion"
	"github.com/threadrank/pkg/models"
)

// TreeSource supplies the comment tree and the post it hangs off.
type TreeSource interface {
	FetchTree(ctx context.Context, postID int64) (*models.Post, *discussion.RawNode, error)
}

// AnnotationSource supplies display order, text and penalties.
type AnnotationSource interface {
	FetchAnnotations(ctx context.Context, postID int64) (discussion.Annotations, error)
}

// Snapshot is one consistent pair of source reads for a post.
type Snapshot struct {
	Post        *models.Post
	Root        *discussion.RawNode
	Annotations discussion.Annotations
}

// FetchDiscussion reads both sources concurrently. The first failure cancels
// the other read.
func FetchDiscussion(ctx context.Context, trees TreeSource, pages AnnotationSource, postID int64) (*Snapshot, error) {
	snap := &Snapshot{}
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		post, root, err := trees.FetchTree(gctx, postID)
		if err != nil {
			return fmt.Errorf("comment tree for %d: %w", postID, err)
		}
		snap.Post, snap.Root = post, root
		return nil
	})
	g.Go(func() error {
		ann, err := pages.FetchAnnotations(gctx, postID)
		if err != nil {
			return fmt.Errorf("page annotations for %d: %w", postID, err)
		}
		snap.Annotations = ann
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	snap.Post.FetchedAt = time.Now().UTC()
	return snap, nil
}
