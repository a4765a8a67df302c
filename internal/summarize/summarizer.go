package summarize

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/threadrank/internal/discussion"
	"github.com/threadrank/internal/logging"
	"github.com/threadrank/internal/retry"
	"github.com/threadrank/pkg/models"
)

// ErrNothingToSummarize is returned for discussions without ranked comments.
var ErrNothingToSummarize = errors.New("discussion has no comments to summarize")

// LLM is the part of Connector the summarizer needs.
type LLM interface {
	Call(ctx context.Context, input string) (string, error)
	Model() string
}

type connectorLLM struct{ c *Connector }

func (l connectorLLM) Call(ctx context.Context, input string) (string, error) {
	return l.c.Call(ctx, input)
}

func (l connectorLLM) Model() string { return l.c.Model() }

// Summarizer turns a processed discussion into a Summary.
type Summarizer struct {
	llm    LLM
	retry  retry.RetryConfig
	runLog *logging.RunLogger
}

// New creates a summarizer backed by connector. runLog may be nil.
func New(connector *Connector, runLog *logging.RunLogger) *Summarizer {
	return NewWithLLM(connectorLLM{c: connector}, retry.LLMRetryConfig(), runLog)
}

// NewWithLLM creates a summarizer with an explicit model and retry policy.
func NewWithLLM(llm LLM, retryConfig retry.RetryConfig, runLog *logging.RunLogger) *Summarizer {
	return &Summarizer{llm: llm, retry: retryConfig, runLog: runLog}
}

// Summarize renders the ranked comments, asks the model for a summary and
// resolves the cited paths. Unparseable answers are retried like transport
// errors. Citations of unknown paths are logged and left unresolved.
func (s *Summarizer) Summarize(ctx context.Context, post *models.Post, res *discussion.Result) (*Summary, error) {
	if res == nil || res.Empty() {
		return nil, ErrNothingToSummarize
	}
	logger := zerolog.Ctx(ctx).With().Str("model", s.llm.Model()).Logger()

	prompt := BuildPrompt(post, discussion.Lines(res.Comments))
	s.runLog.LogRequest(s.llm.Model(), prompt)

	var summary *Summary
	result := retry.Do(ctx, s.retry, func(ctx context.Context) error {
		raw, err := s.llm.Call(ctx, prompt)
		if err != nil {
			s.runLog.LogError("llm call", err)
			return err
		}
		s.runLog.LogResponse(raw)

		summary, err = ParseResponse(raw)
		if err != nil {
			s.runLog.LogError("parse response", err)
		}
		return err
	}, logger)
	if err := result.Err(); err != nil {
		return nil, fmt.Errorf("summarize after %d attempt(s): %w", result.Attempts, err)
	}

	lookup := discussion.BuildLookup(res.Comments)
	if unknown := ResolveReferences(summary, lookup); len(unknown) > 0 {
		logger.Warn().Strs("paths", unknown).Msg("Summary cites paths that name no comment")
		s.runLog.Log("Unresolved paths: %v", unknown)
	}

	logger.Info().
		Int("themes", len(summary.Themes)).
		Int("attempts", result.Attempts).
		Msg("Summary generated")
	return summary, nil
}
