package models

// JobConfig binds a cron-triggered job id to its callback.
type JobConfig struct {
	ID  string `json:"id" yaml:"id"`
	URL string `json:"url" yaml:"url"`
	// Timeout in milliseconds bounds how long an un-acked job stays locked.
	Timeout        int64  `json:"timeout" yaml:"timeout"`
	CronExpression string `json:"cronExpression" yaml:"cron_expression"`
}

// JobLock suppresses cron firings of a job until it is acknowledged or expires.
type JobLock struct {
	Locked    bool  `json:"locked"`
	ExpiresAt int64 `json:"expiresAt"`
}

// IsActive reports whether the lock still suppresses firings at nowMillis.
func (l JobLock) IsActive(nowMillis int64) bool {
	return l.Locked && l.ExpiresAt > nowMillis
}
