package models

import "wakesched/internal/state"

// Outcome describes what happened to a wake-up after one dispatch.
type Outcome struct {
	WakeupID    string               `json:"wakeupId"`
	Disposition state.Disposition    `json:"disposition"`
	Status      state.CallbackStatus `json:"status,omitempty"`
	RetryCount  int                  `json:"retryCount"`
	DueAt       int64                `json:"dueAt,omitempty"`
	At          int64                `json:"at"`
}
