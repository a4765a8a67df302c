package summarize

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/kaptinlin/jsonrepair"

	"github.com/threadrank/internal/discussion"
	"github.com/threadrank/pkg/models"
)

// ErrInvalidResponse is returned when the model output cannot be read as a
// summary even after repair.
var ErrInvalidResponse = errors.New("invalid summary response")

// Summary is the model's answer.
type Summary struct {
	Summary string  `json:"summary"`
	Themes  []Theme `json:"themes"`
}

type Theme struct {
	Title  string  `json:"title"`
	Points []Point `json:"points"`
}

type Point struct {
	Text       string      `json:"text"`
	Paths      []string    `json:"paths"`
	References []Reference `json:"references,omitempty"`
}

// Reference is a cited path resolved to the comment it names.
type Reference struct {
	Path      string `json:"path"`
	CommentID int64  `json:"comment_id"`
	Author    string `json:"author"`
	Score     int    `json:"score"`
	URL       string `json:"url"`
}

// ParseResponse extracts the summary JSON from raw model output. Code fences
// and text around the object are dropped; malformed JSON is repaired with
// jsonrepair before giving up.
func ParseResponse(raw string) (*Summary, error) {
	candidate := extractJSON(raw)
	if candidate == "" {
		return nil, fmt.Errorf("%w: no JSON object found", ErrInvalidResponse)
	}

	var s Summary
	if err := json.Unmarshal([]byte(candidate), &s); err != nil {
		repaired, repairErr := jsonrepair.JSONRepair(candidate)
		if repairErr != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidResponse, repairErr)
		}
		s = Summary{}
		if err := json.Unmarshal([]byte(repaired), &s); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
		}
	}

	if s.Summary == "" && len(s.Themes) == 0 {
		return nil, fmt.Errorf("%w: empty summary", ErrInvalidResponse)
	}
	return &s, nil
}

// extractJSON returns the text between the first '{' and the last '}', or
// everything from the first '{' when the object was cut off.
func extractJSON(raw string) string {
	s := strings.TrimSpace(raw)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	}

	start := strings.Index(s, "{")
	if start < 0 {
		return ""
	}
	end := strings.LastIndex(s, "}")
	if end < start {
		return strings.TrimSpace(s[start:])
	}
	return s[start : end+1]
}

// ResolveReferences fills Point.References from lookup and returns the
// cited paths that name no comment, in citation order without repeats.
func ResolveReferences(s *Summary, lookup discussion.Lookup) []string {
	var unknown []string
	reported := make(map[string]bool)

	for ti := range s.Themes {
		for pi := range s.Themes[ti].Points {
			p := &s.Themes[ti].Points[pi]
			p.References = p.References[:0]
			for _, path := range p.Paths {
				path = strings.Trim(strings.TrimSpace(path), "[]")
				id, meta, ok := lookup.Resolve(path)
				if !ok {
					if !reported[path] {
						reported[path] = true
						unknown = append(unknown, path)
					}
					continue
				}
				p.References = append(p.References, Reference{
					Path:      path,
					CommentID: id,
					Author:    meta.Author,
					Score:     meta.Score,
					URL:       models.ItemURL(id),
				})
			}
		}
	}
	return unknown
}
