package model

import "time"

// Outcome describes how a fetch run ended.
type Outcome string

const (
	OutcomeOK              Outcome = "ok"
	OutcomeEmpty           Outcome = "empty"
	OutcomeAuthError       Outcome = "auth_error"
	OutcomeConnectionError Outcome = "connection_error"
	OutcomeQueryError      Outcome = "query_error"
	OutcomeCanceled        Outcome = "canceled"
	OutcomeError           Outcome = "error"
)

// Run is the history record of one fetch cycle.
type Run struct {
	// ID is the unique identifier for this run.
	ID string `json:"id" db:"id"`

	// StartedAt is when the session was opened.
	StartedAt time.Time `json:"started_at" db:"started_at"`

	// FinishedAt is when the run produced its result or error.
	FinishedAt time.Time `json:"finished_at" db:"finished_at"`

	// Server is the IMAP endpoint the run connected to.
	Server string `json:"server" db:"server"`

	// Username is the account the run authenticated as.
	Username string `json:"username" db:"username"`

	// Listed is the number of identifiers the mailbox reported.
	Listed int `json:"listed" db:"listed"`

	// Fetched is the number of messages that produced a summary.
	Fetched int `json:"fetched" db:"fetched"`

	// Skipped is the number of selected messages whose fetch failed.
	Skipped int `json:"skipped" db:"skipped"`

	Outcome      Outcome `json:"outcome" db:"outcome"`
	ErrorMessage string  `json:"error,omitempty" db:"error_message"`

	// Summaries holds the rows produced by the run, in display order.
	Summaries []EmailSummary `json:"summaries,omitempty" db:"-"`
}

// Duration returns how long the run took.
func (r Run) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}
