package scheduler

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/screener/internal/clientdata"
	"github.com/aristath/screener/internal/modules/universe"
	"github.com/aristath/screener/internal/pipeline"
)

// Screener is the pipeline operation the refresh job drives.
type Screener interface {
	Screen(ctx context.Context, q universe.Query) (*pipeline.Result, error)
}

// RefreshJob re-runs the default screener query in the background so the
// memoized universe stays warm and interactive requests hit the cache.
// Failures are logged by the scheduler and never fatal.
type RefreshJob struct {
	screener Screener
	query    universe.Query
	timeout  time.Duration
	log      zerolog.Logger
}

// NewRefreshJob creates the cache refresh job.
func NewRefreshJob(screener Screener, query universe.Query, timeout time.Duration, log zerolog.Logger) *RefreshJob {
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	return &RefreshJob{
		screener: screener,
		query:    query,
		timeout:  timeout,
		log:      log.With().Str("job", "cache_refresh").Logger(),
	}
}

// Name implements Job.
func (j *RefreshJob) Name() string {
	return "cache_refresh"
}

// Run implements Job.
func (j *RefreshJob) Run() error {
	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()

	result, err := j.screener.Screen(ctx, j.query)
	if err != nil {
		return err
	}

	j.log.Info().
		Str("run_id", result.RunID).
		Int("symbols", len(result.Rows)).
		Bool("from_cache", result.FromCache).
		Bool("no_data", result.NoData).
		Msg("Cache refresh completed")
	return nil
}

// CleanupJob evicts expired rows from every cache table.
type CleanupJob struct {
	cache *clientdata.Repository
	log   zerolog.Logger
}

// NewCleanupJob creates the cache cleanup job.
func NewCleanupJob(cache *clientdata.Repository, log zerolog.Logger) *CleanupJob {
	return &CleanupJob{
		cache: cache,
		log:   log.With().Str("job", "cache_cleanup").Logger(),
	}
}

// Name implements Job.
func (j *CleanupJob) Name() string {
	return "cache_cleanup"
}

// Run implements Job.
func (j *CleanupJob) Run() error {
	deleted, err := j.cache.DeleteAllExpired()
	if err != nil {
		return err
	}

	var total int64
	for _, n := range deleted {
		total += n
	}
	if total > 0 {
		j.log.Info().Int64("deleted", total).Msg("Evicted expired cache entries")
	}
	return nil
}
