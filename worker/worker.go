package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"

	"washclub-checkout-api/database"
	"washclub-checkout-api/metrics"
	"washclub-checkout-api/queue"
	"washclub-checkout-api/services/email"
)

// DelayedJobsSchedule is how often parked retries are moved back onto the queue.
const DelayedJobsSchedule = "@every 10s"

type JobQueue interface {
	Dequeue(ctx context.Context, timeout time.Duration) (*queue.Job, error)
	CompleteJob(ctx context.Context, job *queue.Job) error
	FailJob(ctx context.Context, job *queue.Job, cause error) error
	ProcessDelayedJobs(ctx context.Context) (int, error)
}

type SubscriptionStore interface {
	RecordSubscription(ctx context.Context, rec database.SubscriptionRecord) error
	UpdateSubscriptionStatus(ctx context.Context, subscriptionID, status string) error
}

// Worker drains the checkout job queue.
type Worker struct {
	queue   JobQueue
	subs    SubscriptionStore
	mailer  email.EmailSender
	metrics *metrics.Metrics

	cron     *cron.Cron
	shutdown chan struct{}
	wg       sync.WaitGroup
	mu       sync.Mutex
	running  bool
}

// NewWorker builds a worker. subs and mailer may be nil, in which case the
// matching jobs complete without side effects.
func NewWorker(q JobQueue, subs SubscriptionStore, mailer email.EmailSender, m *metrics.Metrics) *Worker {
	return &Worker{
		queue:    q,
		subs:     subs,
		mailer:   mailer,
		metrics:  m,
		shutdown: make(chan struct{}),
	}
}

// Start launches concurrency consumer goroutines and the delayed-job schedule.
func (w *Worker) Start(concurrency int) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.running {
		return nil
	}

	w.cron = cron.New(cron.WithLogger(cron.PrintfLogger(log.StandardLogger())))
	if _, err := w.cron.AddFunc(DelayedJobsSchedule, w.moveDelayedJobs); err != nil {
		return fmt.Errorf("failed to schedule delayed jobs: %w", err)
	}
	w.cron.Start()

	for i := 0; i < concurrency; i++ {
		w.wg.Add(1)
		go w.processJobs(i)
	}
	w.running = true

	log.WithField("concurrency", concurrency).Info("Started worker goroutines")
	return nil
}

// Stop signals consumers to exit and waits for in-flight jobs.
func (w *Worker) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	w.running = false
	w.mu.Unlock()

	log.Info("Stopping worker...")
	close(w.shutdown)
	<-w.cron.Stop().Done()
	w.wg.Wait()
}

func (w *Worker) moveDelayedJobs() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := w.queue.ProcessDelayedJobs(ctx); err != nil {
		log.WithError(err).Error("Error processing delayed jobs")
	}
}

func (w *Worker) processJobs(workerID int) {
	defer w.wg.Done()
	logger := log.WithField("worker", workerID)
	logger.Debug("Worker starting")

	for {
		select {
		case <-w.shutdown:
			logger.Debug("Worker shutting down")
			return
		default:
		}

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		job, err := w.queue.Dequeue(ctx, 5*time.Second)
		cancel()

		if err != nil {
			logger.WithError(err).Error("Error dequeuing job")
			w.sleep(time.Second)
			continue
		}
		if job == nil {
			continue
		}

		w.run(job)
	}
}

// run handles one job and settles it on the queue.
func (w *Worker) run(job *queue.Job) {
	logger := log.WithFields(log.Fields{"job": job.ID, "type": job.Type})

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	jobErr := w.Handle(ctx, job)
	cancel()

	if w.metrics != nil {
		w.metrics.JobDone(string(job.Type), jobErr)
	}

	ctx, cancel = context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if jobErr != nil {
		logger.WithError(jobErr).Error("Error processing job")
		if err := w.queue.FailJob(ctx, job, jobErr); err != nil {
			logger.WithError(err).Error("Error marking job as failed")
		}
		return
	}

	if err := w.queue.CompleteJob(ctx, job); err != nil {
		logger.WithError(err).Error("Error marking job as complete")
	}
}

func (w *Worker) sleep(d time.Duration) {
	select {
	case <-w.shutdown:
	case <-time.After(d):
	}
}

// Handle dispatches a job by type.
func (w *Worker) Handle(ctx context.Context, job *queue.Job) error {
	p := queue.PayloadFromJob(job)
	if p.SubscriptionID == "" {
		return fmt.Errorf("invalid subscription_id in job data")
	}

	switch job.Type {
	case queue.JobTypeRecordSubscription:
		return w.recordSubscription(ctx, p)
	case queue.JobTypeActivateSubscription:
		return w.activateSubscription(ctx, p)
	case queue.JobTypeSendConfirmation:
		return w.sendConfirmation(p)
	default:
		return fmt.Errorf("unknown job type: %s", job.Type)
	}
}

func (w *Worker) recordSubscription(ctx context.Context, p queue.SubscriptionPayload) error {
	if w.subs == nil {
		log.WithField("subscription", p.SubscriptionID).Debug("No database configured, skipping subscription record")
		return nil
	}
	price, err := decimal.NewFromString(p.Price)
	if err != nil {
		return fmt.Errorf("invalid price %q in job data: %w", p.Price, err)
	}
	return w.subs.RecordSubscription(ctx, database.SubscriptionRecord{
		SubscriptionID: p.SubscriptionID,
		CustomerID:     p.CustomerID,
		SessionID:      p.SessionID,
		PlanID:         p.PlanID,
		Period:         p.Period,
		Price:          price,
		Email:          p.Email,
		LicensePlate:   p.LicensePlate,
		Status:         p.Status,
	})
}

func (w *Worker) activateSubscription(ctx context.Context, p queue.SubscriptionPayload) error {
	if w.subs == nil {
		return nil
	}
	status := p.Status
	if status == "" {
		status = "active"
	}
	return w.subs.UpdateSubscriptionStatus(ctx, p.SubscriptionID, status)
}

func (w *Worker) sendConfirmation(p queue.SubscriptionPayload) error {
	if w.mailer == nil {
		return nil
	}
	if p.Email == "" {
		return fmt.Errorf("invalid email in job data")
	}
	price, err := decimal.NewFromString(p.Price)
	if err != nil {
		return fmt.Errorf("invalid price %q in job data: %w", p.Price, err)
	}
	return w.mailer.SendSubscriptionConfirmation(email.Confirmation{
		To:             p.Email,
		Name:           p.Name,
		PlanName:       p.PlanName,
		Period:         p.Period,
		Price:          price,
		LicensePlate:   p.LicensePlate,
		SubscriptionID: p.SubscriptionID,
	})
}
