package logging

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
)

// #region log-decision
// LogDecision writes an entry to the decision_log table.
func LogDecision(db *sql.DB, entry Entry) error {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	_, err := db.Exec(
		`INSERT INTO decision_log (run_id, job, decision, reason, details, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		entry.RunID,
		entry.Job,
		entry.Decision,
		nullIfEmpty(entry.Reason),
		nullIfEmpty(entry.DetailsJSON),
		entry.CreatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("log decision: %w", err)
	}
	return nil
}
// #endregion log-decision

// #region recent
// Recent returns the newest decision log rows, newest first.
func Recent(db *sql.DB, limit int) ([]Entry, error) {
	rows, err := db.Query(
		`SELECT run_id, job, decision, reason, details, created_at
		 FROM decision_log ORDER BY id DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("recent decisions: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var e Entry
		var reason, details sql.NullString
		var created string
		if err := rows.Scan(&e.RunID, &e.Job, &e.Decision, &reason, &details, &created); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		e.Reason = reason.String
		e.DetailsJSON = details.String
		e.CreatedAt, _ = time.Parse(time.RFC3339Nano, created)
		out = append(out, e)
	}
	return out, rows.Err()
}
// #endregion recent

// #region recorder
// Recorder ties every decision of one run to a run id. A nil db only logs.
type Recorder struct {
	db    *sql.DB
	RunID string
	Job   string
}

// NewRecorder starts a run for job with a fresh run id.
func NewRecorder(db *sql.DB, job string) *Recorder {
	return &Recorder{db: db, RunID: uuid.New().String(), Job: job}
}

// Decide logs the decision and persists it. Persistence failures are logged,
// never returned: the audit row must not change the run outcome.
func (r *Recorder) Decide(decision, reason string, details any) {
	if r == nil {
		log.Printf("[%s] %s", strings.ToUpper(decision), reason)
		return
	}
	log.Printf("[%s] %s: %s", strings.ToUpper(r.Job), decision, reason)
	if r.db == nil {
		return
	}
	entry := Entry{RunID: r.RunID, Job: r.Job, Decision: decision, Reason: reason}
	if details != nil {
		b, err := json.Marshal(details)
		if err != nil {
			log.Printf("[LOG] marshal details: %v", err)
		} else {
			entry.DetailsJSON = string(b)
		}
	}
	if err := LogDecision(r.db, entry); err != nil {
		log.Printf("[LOG] %v", err)
	}
}
// #endregion recorder

// #region helpers
func nullIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
// #endregion helpers
