package execution

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"

	"wakesched/internal/constants"
	"wakesched/internal/models"
	"wakesched/internal/state"
	"wakesched/internal/store"
)

// maxBodySize caps how much of a callback response is read.
const maxBodySize = 1 << 20

type Poster interface {
	Post(ctx context.Context, url string, headers map[string]string) (*http.Response, error)
}

type ResultHandler interface {
	HandleResult(ctx context.Context, wakeup models.Wakeup, result models.JobResult) (state.Disposition, error)
	HandleCronResult(ctx context.Context, result models.JobResult) error
}

type JobLocker interface {
	LockJob(ctx context.Context, jobID string) error
}

// Executor delivers wake-ups and cron jobs to their callbacks and hands the results on.
type Executor struct {
	connector Poster
	handler   ResultHandler
	jobs      JobLocker
	configs   store.JobConfigStore
	secret    string
}

func NewExecutor(connector Poster, handler ResultHandler, jobs JobLocker, configs store.JobConfigStore, secret string) *Executor {
	return &Executor{
		connector: connector,
		handler:   handler,
		jobs:      jobs,
		configs:   configs,
		secret:    secret,
	}
}

// ExecuteWakeup posts to the wake-up callback and lets the retry policy decide what happens next.
func (e *Executor) ExecuteWakeup(ctx context.Context, wakeup models.Wakeup) (models.JobResult, state.Disposition, error) {
	result := e.post(ctx, wakeup.ID, wakeup.CallbackURL)
	if !result.IsSuccess() && ctx.Err() != nil {
		// Interrupted deliveries leave the wake-up due for the next cycle.
		return result, "", fmt.Errorf("delivery of wakeup %s interrupted: %w", wakeup.ID, ctx.Err())
	}
	disposition, err := e.handler.HandleResult(ctx, wakeup, result)
	return result, disposition, err
}

// ExecuteCron posts to the configured url of jobID. A job without configuration is skipped: the
// returned result is nil and so is the error.
func (e *Executor) ExecuteCron(ctx context.Context, jobID string) (*models.JobResult, error) {
	config, err := e.configs.Find(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if config == nil {
		log.Printf("executor: job %s has no configuration, skipped", jobID)
		return nil, nil
	}

	result := e.post(ctx, jobID, config.URL)
	if result.IsSuccess() && !result.Ack {
		if err := e.jobs.LockJob(ctx, jobID); err != nil {
			return &result, err
		}
	}
	if err := e.handler.HandleCronResult(ctx, result); err != nil {
		return &result, err
	}
	return &result, nil
}

func (e *Executor) post(ctx context.Context, jobID, url string) models.JobResult {
	failure := models.JobResult{Status: state.CallbackFailure, JobID: jobID}

	resp, err := e.connector.Post(ctx, url, map[string]string{constants.SecretHeader: e.secret})
	if err != nil {
		log.Printf("executor: unable to post to %s (job %s): %v", url, jobID, err)
		return failure
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		log.Printf("executor: post to %s returned HTTP %d", url, resp.StatusCode)
		return failure
	}

	result := models.JobResult{Status: state.CallbackSuccess, JobID: jobID}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		log.Printf("executor: unable to read response of job %s, it will be ignored: %v", jobID, err)
		return result
	}
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return result
	}

	var content models.CallbackResponse
	if err := json.Unmarshal(body, &content); err != nil {
		log.Printf("executor: invalid callback response (job %s), it will be ignored: %v", jobID, err)
		return result
	}
	if content.Ack != nil {
		result.Ack = *content.Ack
	}
	if content.Retry != nil {
		result.RetryDelay = *content.Retry
	}
	if content.RetryDate != nil {
		result.RetryDate = *content.RetryDate
	}
	return result
}
