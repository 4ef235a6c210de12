package models

import (
	"fmt"
	"time"
)

// Wakeup is a durable request to POST to CallbackURL once DueAt (epoch ms) has passed.
type Wakeup struct {
	ID          string `json:"id"`
	DueAt       int64  `json:"dueAt"`
	CallbackURL string `json:"callbackUrl"`
	RetryCount  int    `json:"retryCount"`
}

// IsDue reports whether the wake-up is eligible for dispatch at now.
func (w Wakeup) IsDue(now time.Time) bool {
	return w.DueAt <= now.UnixMilli()
}

func (w Wakeup) String() string {
	return fmt.Sprintf("Wakeup[id=%s, dueAt=%d, callback=%s, retryCount=%d]", w.ID, w.DueAt, w.CallbackURL, w.RetryCount)
}
