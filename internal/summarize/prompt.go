// Package summarize asks an LLM for a thematic summary of a ranked
// discussion and maps the comment paths it cites back to comments.
package summarize

import (
	"fmt"
	"strings"

	"github.com/threadrank/pkg/models"
)

const promptTemplate = `You are summarizing a Hacker News discussion.

Title: %s
%sDiscussion: %s

Each line below is one comment, in the order readers see them:

  [path] (score: S) <replies: R> {penalty: P} author: text

"path" locates the comment in the thread: "2" is the second top-level
comment and "2.1" its first reply. "score" ranges from 0 to 1000; higher
means more prominent. "penalty" is how far the comment was downvoted, from
0 to 9. Weigh comments by score and ignore heavily penalized ones unless
they matter to a theme.

<comments>
%s</comments>

Identify the main themes of the discussion. For each theme, give a short
title and a few points, citing the paths of the comments that support each
point.

Respond with JSON only, no prose and no code fences, in exactly this shape:

{"summary": "two or three sentences", "themes": [{"title": "...", "points": [{"text": "...", "paths": ["1", "2.1"]}]}]}
`

// BuildPrompt embeds the rendered comment lines of post into the
// summarization prompt.
func BuildPrompt(post *models.Post, lines string) string {
	title := "(untitled)"
	link := ""
	discussionURL := ""
	if post != nil {
		if post.Title != "" {
			title = post.Title
		}
		if post.URL != "" {
			link = "Link: " + post.URL + "\n"
		}
		discussionURL = post.DiscussionURL()
	}
	if !strings.HasSuffix(lines, "\n") && lines != "" {
		lines += "\n"
	}
	return fmt.Sprintf(promptTemplate, title, link, discussionURL, lines)
}
