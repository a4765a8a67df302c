package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"

	"github.com/threadrank/internal/discussion"
	"github.com/threadrank/internal/export"
	"github.com/threadrank/internal/service"
	"github.com/threadrank/internal/store"
)

func parsePostID(c echo.Context) (int64, error) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, errors.New("invalid discussion id")
	}
	return id, nil
}

// discussionError maps pipeline and source failures onto status codes.
func discussionError(c echo.Context, postID int64, err error) error {
	switch {
	case errors.Is(err, discussion.ErrMalformedInput):
		return c.JSON(http.StatusUnprocessableEntity, map[string]string{"error": err.Error()})
	case errors.Is(err, context.DeadlineExceeded):
		return c.JSON(http.StatusGatewayTimeout, map[string]string{"error": "timed out fetching discussion"})
	case errors.Is(err, context.Canceled):
		return c.JSON(http.StatusServiceUnavailable, map[string]string{"error": "request cancelled"})
	}
	log.Warn().Err(err).Int64("post_id", postID).Msg("Failed to fetch discussion")
	return c.JSON(http.StatusBadGateway, map[string]string{"error": err.Error()})
}

// processed returns the stored discussion when there is one, otherwise it
// fetches and stores a fresh copy. ?refresh=true always reads both upstreams
// again, bypassing the store and the response cache. A nil discussion means
// the error response has been written; the returned error is the one to hand
// back to echo.
func (s *Server) processed(c echo.Context, postID int64) (*service.Processed, error) {
	ctx := c.Request().Context()
	if c.QueryParam("refresh") == "true" {
		p, err := s.discussions.Refresh(ctx, postID)
		if err != nil {
			return nil, discussionError(c, postID, err)
		}
		return p, nil
	}

	p, err := s.discussions.Load(ctx, postID)
	if err == nil {
		return p, nil
	}
	if !errors.Is(err, service.ErrNoStore) && !errors.Is(err, store.ErrNotFound) {
		log.Error().Err(err).Int64("post_id", postID).Msg("Failed to load stored discussion")
		return nil, c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to load discussion"})
	}

	p, err = s.discussions.FetchAndSave(ctx, postID)
	if err != nil {
		return nil, discussionError(c, postID, err)
	}
	return p, nil
}

// getDiscussion returns the ranked discussion as a JSON document, or as
// JSON Lines with ?format=jsonl.
func (s *Server) getDiscussion(c echo.Context) error {
	postID, err := parsePostID(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}

	p, err := s.processed(c, postID)
	if p == nil {
		return err
	}

	switch c.QueryParam("format") {
	case "", "json":
		return c.JSON(http.StatusOK, export.BuildDocument(p.Post, p.Result))
	case "jsonl":
		c.Response().Header().Set(echo.HeaderContentType, "application/x-ndjson")
		c.Response().WriteHeader(http.StatusOK)
		return export.WriteJSONL(c.Response(), postID, p.Result.Comments)
	default:
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "format must be json or jsonl"})
	}
}

// getDiscussionLines returns one formatted line per comment.
func (s *Server) getDiscussionLines(c echo.Context) error {
	postID, err := parsePostID(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}

	p, err := s.processed(c, postID)
	if p == nil {
		return err
	}
	return c.String(http.StatusOK, discussion.Lines(p.Result.Comments))
}

func (s *Server) getSummary(c echo.Context) error {
	postID, err := parsePostID(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}

	summary, err := s.discussions.LoadSummary(c.Request().Context(), postID)
	switch {
	case err == nil:
		return c.JSON(http.StatusOK, summary)
	case errors.Is(err, service.ErrNoStore):
		return c.JSON(http.StatusServiceUnavailable, map[string]string{"error": err.Error()})
	case errors.Is(err, store.ErrNotFound):
		return c.JSON(http.StatusNotFound, map[string]string{"error": "no summary for this discussion"})
	}
	log.Error().Err(err).Int64("post_id", postID).Msg("Failed to load summary")
	return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to load summary"})
}

// createJob queues background processing. ?summarize=true also summarizes.
func (s *Server) createJob(c echo.Context) error {
	postID, err := parsePostID(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}
	if s.queue == nil {
		return c.JSON(http.StatusServiceUnavailable, map[string]string{"error": "job queue not configured"})
	}

	summarize := c.QueryParam("summarize") == "true"
	jobID, err := s.queue.Enqueue(c.Request().Context(), postID, summarize)
	if err != nil {
		log.Error().Err(err).Int64("post_id", postID).Msg("Failed to queue discussion job")
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to queue job"})
	}

	return c.JSON(http.StatusAccepted, map[string]interface{}{
		"job_id":    jobID,
		"post_id":   postID,
		"summarize": summarize,
	})
}
