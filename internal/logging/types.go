package logging

import "time"

// #region entry

// Decision values written to the decision log.
const (
	DecisionAct   = "act"
	DecisionSkip  = "skip"
	DecisionAbort = "abort"
	DecisionDone  = "done"
	DecisionError = "error"
)

// Entry is a single row in the decision_log table.
type Entry struct {
	RunID       string
	Job         string
	Decision    string
	Reason      string
	DetailsJSON string
	CreatedAt   time.Time
}

// #endregion entry
