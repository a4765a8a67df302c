/*
Package jobqueue provides a River-based job queue for processing discussions
in the background.

For worker counts, retry policies and timeouts, see queue_config.go.
*/
package jobqueue

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/riverqueue/river"
	"github.com/riverqueue/river/riverdriver/riverpgxv5"
	"github.com/riverqueue/river/rivermigrate"
	"github.com/rs/zerolog/log"

	"github.com/threadrank/internal/discussion"
	"github.com/threadrank/internal/service"
	"github.com/threadrank/internal/summarize"
)

// ProcessDiscussionArgs represents the arguments for a discussion job
type ProcessDiscussionArgs struct {
	PostID    int64 `json:"post_id"`
	Summarize bool  `json:"summarize"`
}

// Kind returns the job kind for River
func (ProcessDiscussionArgs) Kind() string {
	return "process_discussion"
}

// Processor is the part of service.Service the worker drives.
type Processor interface {
	FetchAndSave(ctx context.Context, postID int64) (*service.Processed, error)
	Summarize(ctx context.Context, p *service.Processed) (*summarize.Summary, error)
}

// ProcessDiscussionWorker fetches, ranks and stores one discussion, and
// summarizes it when asked to.
type ProcessDiscussionWorker struct {
	river.WorkerDefaults[ProcessDiscussionArgs]
	processor Processor
	config    *QueueConfig
}

// NewProcessDiscussionWorker creates a worker around processor.
func NewProcessDiscussionWorker(processor Processor, config *QueueConfig) *ProcessDiscussionWorker {
	if config == nil {
		config = DefaultQueueConfig()
	}
	return &ProcessDiscussionWorker{processor: processor, config: config}
}

// Timeout bounds a single job.
func (w *ProcessDiscussionWorker) Timeout(*river.Job[ProcessDiscussionArgs]) time.Duration {
	return w.config.JobTimeout
}

// Work performs the discussion processing
func (w *ProcessDiscussionWorker) Work(ctx context.Context, job *river.Job[ProcessDiscussionArgs]) error {
	args := job.Args
	logger := log.With().
		Int64("job_id", job.ID).
		Int64("post_id", args.PostID).
		Int("attempt", job.Attempt).
		Logger()
	ctx = logger.WithContext(ctx)

	logger.Info().Bool("summarize", args.Summarize).Msg("Processing discussion")

	p, err := w.processor.FetchAndSave(ctx, args.PostID)
	if err != nil {
		if errors.Is(err, discussion.ErrMalformedInput) {
			// Same input, same failure: retrying cannot help.
			logger.Error().Err(err).Msg("Discussion input is malformed, cancelling job")
			return river.JobCancel(err)
		}
		logger.Warn().Err(err).Msg("Failed to process discussion")
		return fmt.Errorf("process discussion %d: %w", args.PostID, err)
	}

	if args.Summarize && !p.Result.Empty() {
		if _, err := w.processor.Summarize(ctx, p); err != nil {
			if errors.Is(err, service.ErrNoSummarizer) {
				logger.Warn().Msg("Summary requested but no AI provider is configured")
				return nil
			}
			return fmt.Errorf("summarize discussion %d: %w", args.PostID, err)
		}
	}

	logger.Info().Int("comments", len(p.Result.Comments)).Msg("Discussion processed")
	return nil
}

// JobQueue manages the River job queue
type JobQueue struct {
	client *river.Client[pgx.Tx]
	pool   *pgxpool.Pool
	config *QueueConfig
}

// NewJobQueue creates a job queue on pool. With a nil processor the queue
// can only insert jobs, which is what the API and the enqueue command need.
func NewJobQueue(pool *pgxpool.Pool, processor Processor, config *QueueConfig) (*JobQueue, error) {
	if config == nil {
		config = DefaultQueueConfig()
	}

	riverConfig := &river.Config{
		MaxAttempts: config.MaxRetries + 1,
		RetryPolicy: &config.RetryPolicy,
		JobTimeout:  config.JobTimeout,
	}
	if processor != nil {
		workers := river.NewWorkers()
		river.AddWorker(workers, NewProcessDiscussionWorker(processor, config))
		riverConfig.Queues = config.RiverQueueConfig()
		riverConfig.Workers = workers
	}

	client, err := river.NewClient(riverpgxv5.New(pool), riverConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create River client: %w", err)
	}

	return &JobQueue{
		client: client,
		pool:   pool,
		config: config,
	}, nil
}

// Migrate applies River's own schema migrations.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	migrator, err := rivermigrate.New(riverpgxv5.New(pool), nil)
	if err != nil {
		return fmt.Errorf("failed to create River migrator: %w", err)
	}
	res, err := migrator.Migrate(ctx, rivermigrate.DirectionUp, nil)
	if err != nil {
		return fmt.Errorf("failed to migrate River schema: %w", err)
	}
	log.Info().Int("versions", len(res.Versions)).Msg("River schema migrated")
	return nil
}

// Start starts the job queue workers
func (jq *JobQueue) Start(ctx context.Context) error {
	return jq.client.Start(ctx)
}

// Stop stops the job queue workers
func (jq *JobQueue) Stop(ctx context.Context) error {
	return jq.client.Stop(ctx)
}

// Enqueue queues a discussion job and returns its id.
func (jq *JobQueue) Enqueue(ctx context.Context, postID int64, summarize bool) (int64, error) {
	if postID <= 0 {
		return 0, fmt.Errorf("invalid post id %d", postID)
	}
	res, err := jq.client.Insert(ctx, ProcessDiscussionArgs{PostID: postID, Summarize: summarize}, &river.InsertOpts{
		UniqueOpts: river.UniqueOpts{ByArgs: true, ByPeriod: jq.config.UniquePeriod},
	})
	if err != nil {
		return 0, fmt.Errorf("failed to queue discussion job: %w", err)
	}
	return res.Job.ID, nil
}
