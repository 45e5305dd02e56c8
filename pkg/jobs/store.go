// Package jobs provides the durable job queue: a Redis FIFO of job IDs
// plus a keyed JSON record per job.
package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/finsight-ai/finsight/pkg/models"
)

// Redis key layout.
const (
	queueKey  = "job_queue"
	jobPrefix = "job:"
)

// ErrNotFound is returned when a job record does not exist.
var ErrNotFound = errors.New("job not found")

// Store persists job records and the pending-job queue.
type Store struct {
	rdb *redis.Client
}

// NewStore creates a Store on an existing Redis client.
func NewStore(rdb *redis.Client) *Store {
	return &Store{rdb: rdb}
}

func jobKey(jobID string) string {
	return jobPrefix + jobID
}

// Enqueue allocates a job ID, writes the record with status queued, and
// pushes the ID onto the queue tail. The record write happens first so a
// worker popping the ID always finds the record.
func (s *Store) Enqueue(ctx context.Context, query, chatID string) (string, error) {
	now := time.Now().UTC()
	job := models.Job{
		JobID:     uuid.New().String(),
		Query:     query,
		ChatID:    chatID,
		Status:    models.JobStatusQueued,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.write(ctx, &job); err != nil {
		return "", err
	}
	if err := s.rdb.RPush(ctx, queueKey, job.JobID).Err(); err != nil {
		return "", fmt.Errorf("pushing job onto queue: %w", err)
	}
	return job.JobID, nil
}

// Get loads a job record. Returns ErrNotFound for unknown IDs.
func (s *Store) Get(ctx context.Context, jobID string) (*models.Job, error) {
	data, err := s.rdb.Get(ctx, jobKey(jobID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("reading job record: %w", err)
	}

	var job models.Job
	if err := json.Unmarshal([]byte(data), &job); err != nil {
		return nil, fmt.Errorf("decoding job record: %w", err)
	}
	return &job, nil
}

// Update merges the given fields into the job record and refreshes
// updated_at. Terminal jobs are never mutated: state transitions are
// monotonic along queued → processing → (completed | failed).
func (s *Store) Update(ctx context.Context, jobID string, update models.JobUpdate) (*models.Job, error) {
	job, err := s.Get(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job.Status.IsTerminal() {
		return nil, fmt.Errorf("job %s is already %s", jobID, job.Status)
	}

	if update.Status != "" {
		job.Status = update.Status
	}
	if update.Result != nil {
		job.Result = update.Result
	}
	if update.Error != "" {
		job.Error = update.Error
	}
	job.UpdatedAt = time.Now().UTC()

	if err := s.write(ctx, job); err != nil {
		return nil, err
	}
	return job, nil
}

// PopBlocking removes and returns the next pending job ID, blocking for
// at most timeout. Returns "" when the queue stays empty, so the caller's
// loop can observe shutdown signals between attempts.
func (s *Store) PopBlocking(ctx context.Context, timeout time.Duration) (string, error) {
	res, err := s.rdb.BLPop(ctx, timeout, queueKey).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", nil
		}
		return "", fmt.Errorf("popping job queue: %w", err)
	}
	// BLPop returns [key, value].
	if len(res) != 2 {
		return "", nil
	}
	return res[1], nil
}

// Ping checks the Redis connection (used by health reporting).
func (s *Store) Ping(ctx context.Context) error {
	return s.rdb.Ping(ctx).Err()
}

// Depth returns the number of pending jobs (used by health reporting).
func (s *Store) Depth(ctx context.Context) (int64, error) {
	return s.rdb.LLen(ctx, queueKey).Result()
}

func (s *Store) write(ctx context.Context, job *models.Job) error {
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("encoding job record: %w", err)
	}
	if err := s.rdb.Set(ctx, jobKey(job.JobID), data, 0).Err(); err != nil {
		return fmt.Errorf("writing job record: %w", err)
	}
	return nil
}
