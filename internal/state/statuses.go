package state

// CallbackStatus is the normalized outcome of one delivery attempt.
type CallbackStatus string

const (
	CallbackSuccess CallbackStatus = "SUCCESS"
	CallbackFailure CallbackStatus = "FAILURE"
)

func (s CallbackStatus) String() string {
	return string(s)
}

// Disposition is what the retry policy did with a wake-up after a delivery.
type Disposition string

const (
	DispositionDeleted     Disposition = "deleted"
	DispositionRescheduled Disposition = "rescheduled"
	// DispositionDeferred marks a wake-up rejected by a saturated pool; the row is untouched.
	DispositionDeferred Disposition = "deferred"
)

func (d Disposition) String() string {
	return string(d)
}

var AllDispositions = []Disposition{
	DispositionDeleted,
	DispositionRescheduled,
	DispositionDeferred,
}

// IsTerminal reports whether the wake-up row is gone after this disposition.
func (d Disposition) IsTerminal() bool {
	return d == DispositionDeleted
}
