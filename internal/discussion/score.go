package discussion

const (
	MaxScore        = 1000
	MaxPenaltyUnits = 10
)

// Score maps a comment's display position and penalty to [0, MaxScore].
//
//	defaultScore = floor(MaxScore - position*MaxScore/total)
//	score        = floor(max(defaultScore - defaultScore/MaxPenaltyUnits*penalty, 0))
//
// The arithmetic is done on integers: floor(MaxScore - x) is MaxScore - ceil(x)
// and the penalty deduction is folded into one division, so results do not
// depend on float rounding. A position past the end of the discussion or a
// penalty of MaxPenaltyUnits or more scores 0.
func Score(position, penalty, total int) int {
	if total <= 0 || position < 0 {
		return 0
	}
	defaultScore := MaxScore - ceilDiv(position*MaxScore, total)
	if defaultScore <= 0 || penalty >= MaxPenaltyUnits {
		return 0
	}
	if penalty < 0 {
		penalty = 0
	}
	return defaultScore * (MaxPenaltyUnits - penalty) / MaxPenaltyUnits
}

// AssignScores sets Score on every comment. total is the number of surviving
// comments in the whole discussion.
func AssignScores(comments []*Comment, total int) {
	for _, c := range comments {
		c.Score = Score(c.Position, c.Penalty, total)
	}
}

func ceilDiv(a, b int) int {
	return (a + b - 1) / b
}
