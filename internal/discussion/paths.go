package discussion

import "strconv"

// pathAssigner resolves hierarchy paths for one run. All state is confined to
// the run that created it.
type pathAssigner struct {
	rootID  int64
	byID    map[int64]*Comment
	rank    map[int64]int   // 1-based index among siblings, in position order
	memo    map[int64]string
	missing map[int64]int64 // comment id -> first absent ancestor
}

// siblingRanks folds over the position-ordered comments with one counter per
// parent. The root's counter is the top-level numbering.
func siblingRanks(comments []*Comment) map[int64]int {
	counters := map[int64]int{}
	ranks := make(map[int64]int, len(comments))
	for _, c := range comments {
		counters[c.ParentID]++
		ranks[c.ID] = counters[c.ParentID]
	}
	return ranks
}

// AssignPaths sets Path on every comment whose ancestry reaches the root
// through surviving comments. comments must be in display position order,
// which is what Reconcile returns. The remaining comments keep an empty path
// and are reported, in position order, as dangling.
func AssignPaths(rootID int64, comments []*Comment) []*DanglingParentError {
	a := &pathAssigner{
		rootID:  rootID,
		byID:    make(map[int64]*Comment, len(comments)),
		rank:    siblingRanks(comments),
		memo:    make(map[int64]string, len(comments)),
		missing: map[int64]int64{},
	}
	for _, c := range comments {
		a.byID[c.ID] = c
	}

	var dangling []*DanglingParentError
	for _, c := range comments {
		path, missingID, ok := a.resolve(c)
		if !ok {
			c.Path = ""
			dangling = append(dangling, &DanglingParentError{
				CommentID: c.ID,
				ParentID:  c.ParentID,
				MissingID: missingID,
			})
			continue
		}
		c.Path = path
	}
	return dangling
}

// resolve returns the path of c, or the id of its first absent ancestor and
// false. It climbs the parent chain until it reaches the root, a memoized
// comment or a gap, then fills the memo on the way back down. There is no
// recursion, so visiting order does not matter and deep threads are fine.
func (a *pathAssigner) resolve(c *Comment) (string, int64, bool) {
	var (
		chain   []*Comment
		prefix  string
		missing int64
		gap     bool
	)
	inChain := map[int64]bool{}

	cur := c
	for {
		if p, ok := a.memo[cur.ID]; ok {
			prefix = p
			break
		}
		if m, ok := a.missing[cur.ID]; ok {
			missing, gap = m, true
			break
		}
		chain = append(chain, cur)
		inChain[cur.ID] = true
		if cur.ParentID == a.rootID {
			break
		}
		parent, ok := a.byID[cur.ParentID]
		if !ok || inChain[parent.ID] {
			missing, gap = cur.ParentID, true
			break
		}
		cur = parent
	}

	for i := len(chain) - 1; i >= 0; i-- {
		n := chain[i]
		if gap {
			a.missing[n.ID] = missing
			continue
		}
		seg := strconv.Itoa(a.rank[n.ID])
		if prefix == "" {
			prefix = seg
		} else {
			prefix = prefix + "." + seg
		}
		a.memo[n.ID] = prefix
	}

	if gap {
		return "", missing, false
	}
	return a.memo[c.ID], 0, true
}
