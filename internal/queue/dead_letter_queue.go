package queue

import (
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"notifier/internal/interfaces"
)

// An InMemoryDeadLetterQueue provides a simple in-memory implementation of
// dead letter queue for poison batch jobs
type InMemoryDeadLetterQueue struct {
	mu        sync.RWMutex
	jobs      map[string]*interfaces.DeadLetterJob
	logger    *zerolog.Logger
	idCounter int64
}

// NewInMemoryDeadLetterQueue creates a new instance of in-memory dead letter queue
func NewInMemoryDeadLetterQueue(logger *zerolog.Logger) *InMemoryDeadLetterQueue {
	return &InMemoryDeadLetterQueue{
		jobs:   make(map[string]*interfaces.DeadLetterJob),
		logger: logger,
	}
}

// Send adds a job with additional information to the dead letter queue
func (dlq *InMemoryDeadLetterQueue) Send(
	payload []byte, topic string, partition int, offset int64, reason string, originalError error,
) error {
	dlq.mu.Lock()
	defer dlq.mu.Unlock()

	dlq.idCounter++
	jobID := fmt.Sprintf("dlq_%d_%d", time.Now().Unix(), dlq.idCounter)

	errorMsg := ""
	if originalError != nil {
		errorMsg = originalError.Error()
	}

	job := &interfaces.DeadLetterJob{
		ID:        jobID,
		Topic:     topic,
		Partition: partition,
		Offset:    offset,
		Payload:   make([]byte, len(payload)),
		Reason:    reason,
		Error:     errorMsg,
		Timestamp: time.Now(),
	}
	copy(job.Payload, payload)

	dlq.jobs[jobID] = job

	dlq.logger.Error().
		Str("job_id", jobID).
		Str("topic", topic).
		Int("partition", partition).
		Int64("offset", offset).
		Str("reason", reason).
		Str("error", errorMsg).
		Msg("Job sent to dead letter queue")

	return nil
}

// Get returns not more than limit jobs from the dead letter queue
func (dlq *InMemoryDeadLetterQueue) Get(limit int) ([]interfaces.DeadLetterJob, error) {
	dlq.mu.RLock()
	defer dlq.mu.RUnlock()

	jobs := make([]interfaces.DeadLetterJob, 0, limit)
	for _, job := range dlq.jobs {
		if len(jobs) >= limit {
			break
		}
		jobCopy := *job
		jobCopy.Payload = make([]byte, len(job.Payload))
		copy(jobCopy.Payload, job.Payload)
		jobs = append(jobs, jobCopy)
	}

	return jobs, nil
}

// Retry bumps the retry counter of a stored job
func (dlq *InMemoryDeadLetterQueue) Retry(jobID string) error {
	dlq.mu.Lock()
	defer dlq.mu.Unlock()

	job, ok := dlq.jobs[jobID]
	if !ok {
		return fmt.Errorf("dead letter job with ID %s not found", jobID)
	}
	job.RetryCount++

	return nil
}

// Len returns the total number of jobs in the dead letter queue
func (dlq *InMemoryDeadLetterQueue) Len() int {
	dlq.mu.RLock()
	defer dlq.mu.RUnlock()

	return len(dlq.jobs)
}

// Clear removes all the jobs from the dead letter queue
func (dlq *InMemoryDeadLetterQueue) Clear() {
	dlq.mu.Lock()
	defer dlq.mu.Unlock()

	dlq.jobs = make(map[string]*interfaces.DeadLetterJob)
}
