package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

type JobType string

const (
	// JobTypeRecordSubscription persists a freshly created subscription.
	JobTypeRecordSubscription JobType = "record_subscription"
	// JobTypeActivateSubscription marks a confirmed subscription active.
	JobTypeActivateSubscription JobType = "activate_subscription"
	// JobTypeSendConfirmation sends the welcome email.
	JobTypeSendConfirmation JobType = "send_confirmation"
)

const (
	DefaultQueueName = "checkout_jobs"
	MaxRetries       = 5
)

var ErrJobNotFound = errors.New("job not found in failed queue")

type Job struct {
	ID         string                 `json:"id"`
	Type       JobType                `json:"type"`
	Data       map[string]interface{} `json:"data"`
	CreatedAt  time.Time              `json:"created_at"`
	RetryCount int                    `json:"retry_count"`
}

// String returns a data field, or "" when absent or not a string.
func (j *Job) String(key string) string {
	s, _ := j.Data[key].(string)
	return s
}

type Queue struct {
	client     *redis.Client
	queueName  string
	processing string
	delayed    string
	failed     string
	now        func() time.Time
}

func NewQueue(redisURL, queueName string) (*Queue, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid Redis URL: %w", err)
	}

	client := redis.NewClient(opt)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return NewQueueFromClient(client, queueName), nil
}

// NewQueueFromClient shares an existing client, e.g. the one backing checkout storage.
func NewQueueFromClient(client *redis.Client, queueName string) *Queue {
	return &Queue{
		client:     client,
		queueName:  queueName,
		processing: queueName + ":processing",
		delayed:    queueName + ":delayed",
		failed:     queueName + ":failed",
		now:        time.Now,
	}
}

func (q *Queue) newJob(jobType JobType, data map[string]interface{}) Job {
	if data == nil {
		data = map[string]interface{}{}
	}
	return Job{
		ID:        uuid.NewString(),
		Type:      jobType,
		Data:      data,
		CreatedAt: q.now().UTC(),
	}
}

func (q *Queue) Enqueue(ctx context.Context, jobType JobType, data map[string]interface{}) (string, error) {
	job := q.newJob(jobType, data)

	jobJSON, err := json.Marshal(job)
	if err != nil {
		return "", fmt.Errorf("failed to marshal job: %w", err)
	}

	if err := q.client.RPush(ctx, q.queueName, jobJSON).Err(); err != nil {
		return "", fmt.Errorf("failed to push job to queue: %w", err)
	}

	log.WithFields(log.Fields{"job": job.ID, "type": job.Type}).Info("Enqueued job")
	return job.ID, nil
}

// EnqueueDelayed parks a job until delay has elapsed and ProcessDelayedJobs runs.
func (q *Queue) EnqueueDelayed(ctx context.Context, jobType JobType, data map[string]interface{}, delay time.Duration) (string, error) {
	job := q.newJob(jobType, data)

	jobJSON, err := json.Marshal(job)
	if err != nil {
		return "", fmt.Errorf("failed to marshal job: %w", err)
	}

	executeAt := q.now().Add(delay)
	if err := q.client.ZAdd(ctx, q.delayed, &redis.Z{
		Score:  float64(executeAt.Unix()),
		Member: jobJSON,
	}).Err(); err != nil {
		return "", fmt.Errorf("failed to push delayed job to queue: %w", err)
	}

	log.WithFields(log.Fields{"job": job.ID, "type": job.Type, "execute_at": executeAt.Format(time.RFC3339)}).
		Info("Enqueued delayed job")
	return job.ID, nil
}

// Dequeue blocks up to timeout. It returns nil, nil when nothing arrived.
func (q *Queue) Dequeue(ctx context.Context, timeout time.Duration) (*Job, error) {
	result, err := q.client.BLPop(ctx, timeout, q.queueName).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get job from queue: %w", err)
	}

	if len(result) < 2 {
		return nil, fmt.Errorf("unexpected BLPOP result format")
	}

	var job Job
	if err := json.Unmarshal([]byte(result[1]), &job); err != nil {
		return nil, fmt.Errorf("failed to unmarshal job: %w", err)
	}

	if err := q.client.RPush(ctx, q.processing, result[1]).Err(); err != nil {
		log.WithError(err).WithField("job", job.ID).Warn("Failed to move job to processing queue")
	}

	return &job, nil
}

func (q *Queue) CompleteJob(ctx context.Context, job *Job) error {
	jobJSON, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to marshal job: %w", err)
	}

	if err := q.client.LRem(ctx, q.processing, 1, jobJSON).Err(); err != nil {
		return fmt.Errorf("failed to remove job from processing queue: %w", err)
	}

	log.WithFields(log.Fields{"job": job.ID, "type": job.Type}).Info("Completed job")
	return nil
}

// RetryDelay is the backoff before the given attempt: 15s, 30s, 60s and so on.
func RetryDelay(retryCount int) time.Duration {
	if retryCount < 1 {
		retryCount = 1
	}
	return time.Duration(15*(1<<(retryCount-1))) * time.Second
}

// FailJob schedules a retry with exponential backoff, or moves the job to
// the failed list once MaxRetries is exceeded.
func (q *Queue) FailJob(ctx context.Context, job *Job, cause error) error {
	// The processing entry was written before any mutation below.
	if jobJSON, err := json.Marshal(job); err == nil {
		if err := q.client.LRem(ctx, q.processing, 1, jobJSON).Err(); err != nil {
			log.WithError(err).WithField("job", job.ID).Warn("Failed to remove job from processing queue")
		}
	}

	job.RetryCount++
	job.Data["last_error"] = cause.Error()
	logger := log.WithFields(log.Fields{"job": job.ID, "type": job.Type, "retry": job.RetryCount})

	if job.RetryCount <= MaxRetries {
		retryAt := q.now().Add(RetryDelay(job.RetryCount))
		job.Data["next_retry_at"] = retryAt.UTC().Format(time.RFC3339)

		updated, err := json.Marshal(job)
		if err != nil {
			return fmt.Errorf("failed to marshal job: %w", err)
		}

		if err := q.client.ZAdd(ctx, q.delayed, &redis.Z{
			Score:  float64(retryAt.Unix()),
			Member: updated,
		}).Err(); err != nil {
			logger.WithError(err).Warn("Failed to add job to delayed queue, adding to failed queue")
			if err := q.client.RPush(ctx, q.failed, updated).Err(); err != nil {
				return fmt.Errorf("failed to push job to failed queue: %w", err)
			}
			return nil
		}

		logger.WithField("retry_at", retryAt.Format(time.RFC3339)).Warn("Job scheduled for retry")
		return nil
	}

	job.Data["all_retries_exhausted"] = true
	final, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to marshal job: %w", err)
	}
	if err := q.client.RPush(ctx, q.failed, final).Err(); err != nil {
		return fmt.Errorf("failed to push job to failed queue: %w", err)
	}

	logger.Error("Job moved to failed queue, all attempts exhausted")
	return nil
}

// ProcessDelayedJobs moves due delayed jobs onto the main queue and reports how many moved.
func (q *Queue) ProcessDelayedJobs(ctx context.Context) (int, error) {
	jobs, err := q.client.ZRangeByScore(ctx, q.delayed, &redis.ZRangeBy{
		Min: "-inf",
		Max: fmt.Sprintf("%d", q.now().Unix()),
	}).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to get delayed jobs: %w", err)
	}

	moved := 0
	for _, jobJSON := range jobs {
		removed, err := q.client.ZRem(ctx, q.delayed, jobJSON).Result()
		if err != nil {
			log.WithError(err).Warn("Failed to remove job from delayed queue")
			continue
		}
		if removed == 0 {
			// another instance claimed it
			continue
		}
		if err := q.client.RPush(ctx, q.queueName, jobJSON).Err(); err != nil {
			log.WithError(err).Warn("Failed to move delayed job to main queue")
			continue
		}
		moved++
	}

	if moved > 0 {
		log.WithField("count", moved).Info("Moved delayed jobs to main queue")
	}
	return moved, nil
}

// FailedJobs lists jobs that exhausted their retries.
func (q *Queue) FailedJobs(ctx context.Context) ([]Job, error) {
	raw, err := q.client.LRange(ctx, q.failed, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list failed jobs: %w", err)
	}
	jobs := make([]Job, 0, len(raw))
	for _, r := range raw {
		var job Job
		if err := json.Unmarshal([]byte(r), &job); err != nil {
			log.WithError(err).Warn("Skipping unreadable failed job")
			continue
		}
		jobs = append(jobs, job)
	}
	return jobs, nil
}

// RetryJob requeues a failed job with its retry count reset.
func (q *Queue) RetryJob(ctx context.Context, jobID string) error {
	raw, err := q.client.LRange(ctx, q.failed, 0, -1).Result()
	if err != nil {
		return fmt.Errorf("failed to list failed jobs: %w", err)
	}

	for _, jobJSON := range raw {
		var job Job
		if err := json.Unmarshal([]byte(jobJSON), &job); err != nil {
			continue
		}
		if job.ID != jobID {
			continue
		}

		if err := q.client.LRem(ctx, q.failed, 1, jobJSON).Err(); err != nil {
			return fmt.Errorf("failed to remove job from failed queue: %w", err)
		}

		job.RetryCount = 0
		job.Data["manual_retry"] = true
		delete(job.Data, "all_retries_exhausted")
		delete(job.Data, "next_retry_at")

		updated, err := json.Marshal(job)
		if err != nil {
			return fmt.Errorf("failed to marshal job: %w", err)
		}
		if err := q.client.RPush(ctx, q.queueName, updated).Err(); err != nil {
			return fmt.Errorf("failed to push job to main queue: %w", err)
		}

		log.WithFields(log.Fields{"job": job.ID, "type": job.Type}).Info("Manually requeued job")
		return nil
	}

	return fmt.Errorf("%w: %s", ErrJobNotFound, jobID)
}

func (q *Queue) Client() *redis.Client {
	return q.client
}

func (q *Queue) Close() error {
	return q.client.Close()
}
