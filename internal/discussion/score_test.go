package discussion

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestScore(t *testing.T) {
	tests := []struct {
		name     string
		position int
		penalty  int
		total    int
		want     int
	}{
		{name: "first comment, no penalty", position: 0, penalty: 0, total: 3, want: 1000},
		{name: "first comment, one penalty unit", position: 0, penalty: 1, total: 3, want: 900},
		{name: "second of three", position: 1, penalty: 0, total: 3, want: 666},
		{name: "third of three, two units", position: 2, penalty: 2, total: 3, want: 266},
		{name: "full penalty saturates", position: 1, penalty: 10, total: 4, want: 0},
		{name: "penalty above saturation", position: 0, penalty: 25, total: 4, want: 0},
		{name: "nine units", position: 0, penalty: 9, total: 1, want: 100},
		{name: "position at end", position: 4, penalty: 0, total: 4, want: 0},
		{name: "position past end", position: 9, penalty: 0, total: 4, want: 0},
		{name: "position past end with penalty", position: 9, penalty: 20, total: 4, want: 0},
		{name: "no comments", position: 0, penalty: 0, total: 0, want: 0},
		{name: "large discussion", position: 1, penalty: 0, total: 1500, want: 999},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Score(tt.position, tt.penalty, tt.total))
		})
	}
}

func TestScore_Monotonic(t *testing.T) {
	const total = 37
	for penalty := 0; penalty <= MaxPenaltyUnits+1; penalty++ {
		prev := MaxScore + 1
		for pos := 0; pos < total+2; pos++ {
			s := Score(pos, penalty, total)
			assert.GreaterOrEqual(t, s, 0)
			assert.LessOrEqual(t, s, MaxScore)
			assert.LessOrEqual(t, s, prev, "position %d penalty %d", pos, penalty)
			prev = s
		}
	}

	for pos := 0; pos < total; pos++ {
		prev := MaxScore + 1
		for penalty := 0; penalty <= MaxPenaltyUnits+1; penalty++ {
			s := Score(pos, penalty, total)
			assert.LessOrEqual(t, s, prev, "position %d penalty %d", pos, penalty)
			prev = s
		}
	}
}

func TestAssignScores(t *testing.T) {
	comments := []*Comment{
		{ID: 1, Position: 0, Penalty: 0},
		{ID: 2, Position: 1, Penalty: 10},
		{ID: 3, Position: 2, Penalty: 0},
		{ID: 4, Position: 3, Penalty: 1},
	}

	AssignScores(comments, len(comments))

	assert.Equal(t, 1000, comments[0].Score)
	assert.Equal(t, 0, comments[1].Score)
	assert.Equal(t, 500, comments[2].Score)
	assert.Equal(t, 225, comments[3].Score)
}
