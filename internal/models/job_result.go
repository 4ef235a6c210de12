package models

import (
	"fmt"
	"wakesched/internal/state"
)

// JobResult is the normalized outcome of one callback delivery. It is never persisted.
type JobResult struct {
	Status state.CallbackStatus
	JobID  string
	Ack    bool
	// RetryDelay is a remote-requested minimum delay in milliseconds, 0 if none.
	RetryDelay int64
	// RetryDate is a remote-requested absolute epoch-ms lower bound, 0 if none.
	RetryDate int64
}

func (r JobResult) IsSuccess() bool {
	return r.Status == state.CallbackSuccess
}

// HasRetryHint reports whether the callback asked for another attempt.
func (r JobResult) HasRetryHint() bool {
	return r.RetryDelay > 0 || r.RetryDate > 0
}

func (r JobResult) String() string {
	return fmt.Sprintf("JobResult[status=%s, jobId=%s, ack=%t, retry=%d, retryDate=%d]",
		r.Status, r.JobID, r.Ack, r.RetryDelay, r.RetryDate)
}

// CallbackResponse is the optional JSON body a callback returns with HTTP 200.
type CallbackResponse struct {
	Ack       *bool  `json:"ack"`
	Retry     *int64 `json:"retry"`
	RetryDate *int64 `json:"retryDate"`
}
