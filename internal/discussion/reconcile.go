package discussion

import "sort"

// Reconciliation is the position-ordered set of surviving comments together
// with an id index into it.
type Reconciliation struct {
	RootID     int64
	Comments   []*Comment
	TotalNodes int
	Skipped    int

	index map[int64]int
}

// Get returns the surviving comment with the given id.
func (r *Reconciliation) Get(id int64) (*Comment, bool) {
	i, ok := r.index[id]
	if !ok {
		return nil, false
	}
	return r.Comments[i], true
}

type frame struct {
	node     *RawNode
	parentID int64
}

// Reconcile flattens the raw tree, keeps the nodes that have an annotation and
// orders them by display position. Children of a dropped node are still
// visited and keep the dropped node's id as their parent.
//
// A root of the wrong kind or an empty annotation map gives an empty result.
// Structural problems give a *MalformedInputError and no comments.
func Reconcile(root *RawNode, ann Annotations) (*Reconciliation, error) {
	if root == nil {
		return nil, malformed(0, "missing root node")
	}
	if root.ID <= 0 {
		return nil, malformed(root.ID, "root node has no id")
	}

	rec := &Reconciliation{RootID: root.ID, index: map[int64]int{}}
	if root.Kind != KindRoot {
		return rec, nil
	}

	seen := map[int64]bool{root.ID: true}
	var comments []*Comment

	// Explicit stack keeps deep threads off the call stack. Children are pushed
	// in reverse so they pop in source order, which makes the walk pre-order.
	stack := make([]frame, 0, len(root.Children))
	stack = pushChildren(stack, root)
	for len(stack) > 0 {
		top := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		n := top.node
		if n == nil {
			return nil, malformed(top.parentID, "nil child node")
		}
		if n.ID <= 0 {
			return nil, malformed(top.parentID, "child node has no id")
		}
		if seen[n.ID] {
			return nil, malformed(n.ID, "node appears more than once in the tree")
		}
		seen[n.ID] = true
		rec.TotalNodes++

		stack = pushChildren(stack, n)

		a, ok := ann[n.ID]
		if !ok {
			rec.Skipped++
			continue
		}
		if a.Position < 0 {
			return nil, malformed(n.ID, "negative display position %d", a.Position)
		}
		if a.Penalty < 0 {
			return nil, malformed(n.ID, "negative penalty %d", a.Penalty)
		}
		comments = append(comments, &Comment{
			ID:         n.ID,
			Author:     n.Author,
			ReplyCount: len(n.Children),
			ParentID:   top.parentID,
			Position:   a.Position,
			Text:       a.Text,
			Penalty:    a.Penalty,
		})
	}

	// Stable: equal positions keep their pre-order traversal order.
	sort.SliceStable(comments, func(i, j int) bool {
		return comments[i].Position < comments[j].Position
	})
	for i, c := range comments {
		rec.index[c.ID] = i
	}
	rec.Comments = comments
	return rec, nil
}

func pushChildren(stack []frame, n *RawNode) []frame {
	for i := len(n.Children) - 1; i >= 0; i-- {
		stack = append(stack, frame{node: n.Children[i], parentID: n.ID})
	}
	return stack
}
