package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/danielpatrickdp/buildstreak-agent/internal/logging"
	"github.com/danielpatrickdp/buildstreak-agent/internal/state"
)

// #region main

func main() {
	os.Exit(run(os.Args[1:]))
}

// run returns the process exit code so deferred cleanup always happens.
func run(args []string) int {
	fs := flag.NewFlagSet("inspect", flag.ContinueOnError)
	dbPath := fs.String("db", os.Getenv("AGENT_STATE_DB"), "path to the agent state database")
	last := fs.Int("last", 20, "show N most recent decisions")
	key := fs.String("key", "", "show one state document (daily_prompt, discovery, replies, tips)")
	jsonOut := fs.Bool("json", false, "output as JSON instead of table")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	if *dbPath == "" {
		fmt.Fprintln(os.Stderr, "usage: inspect --db path/to/agent.db [--last N] [--key name] [--json]")
		return 2
	}

	store, err := state.NewSQLiteStore(*dbPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "open db: %v\n", err)
		return 1
	}
	defer store.Close()

	if *key != "" {
		err = runDocumentMode(store, *key, *jsonOut)
	} else {
		err = runListMode(store, *last, *jsonOut)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 1
	}
	return 0
}

// #endregion main

// #region list-mode

type documentRow struct {
	Key       string `json:"key"`
	Bytes     int    `json:"bytes"`
	UpdatedAt string `json:"updated_at"`
}

type decisionRow struct {
	RunID     string          `json:"run_id"`
	Job       string          `json:"job"`
	Decision  string          `json:"decision"`
	Reason    string          `json:"reason,omitempty"`
	Details   json.RawMessage `json:"details,omitempty"`
	CreatedAt string          `json:"created_at"`
}

type listOutput struct {
	Documents []documentRow `json:"documents"`
	Decisions []decisionRow `json:"decisions"`
}

func runListMode(store *state.SQLiteStore, last int, jsonOut bool) error {
	docs, err := store.Documents(context.Background())
	if err != nil {
		return err
	}
	entries, err := logging.Recent(store.DB(), last)
	if err != nil {
		return err
	}

	var out listOutput
	for _, d := range docs {
		out.Documents = append(out.Documents, documentRow{
			Key:       d.Key,
			Bytes:     len(d.Body),
			UpdatedAt: d.UpdatedAt.Format("2006-01-02T15:04:05Z"),
		})
	}
	// Recent returns newest first; print chronologically.
	for i := len(entries) - 1; i >= 0; i-- {
		e := entries[i]
		row := decisionRow{
			RunID:     e.RunID,
			Job:       e.Job,
			Decision:  e.Decision,
			Reason:    e.Reason,
			CreatedAt: e.CreatedAt.Format("2006-01-02T15:04:05Z"),
		}
		if e.DetailsJSON != "" {
			row.Details = json.RawMessage(e.DetailsJSON)
		}
		out.Decisions = append(out.Decisions, row)
	}

	if jsonOut {
		return printJSON(out)
	}
	return printListTable(out)
}

func printListTable(out listOutput) error {
	if len(out.Documents) == 0 {
		fmt.Fprintln(os.Stderr, "no documents found")
	} else {
		fmt.Printf("%-14s  %8s  %s\n", "Document", "Bytes", "Updated")
		fmt.Printf("%-14s+-%8s+-%s\n", "--------------", "--------", "--------------------")
		for _, d := range out.Documents {
			fmt.Printf("%-14s  %8d  %s\n", d.Key, d.Bytes, d.UpdatedAt)
		}
	}

	if len(out.Decisions) == 0 {
		return nil
	}
	fmt.Printf("\n%-8s  %-9s  %-6s  %-20s  %s\n", "Run", "Job", "Action", "Time", "Reason")
	fmt.Printf("%-8s+-%-9s+-%-6s+-%-20s+-%s\n", "--------", "---------", "------", "--------------------", "------")
	for _, d := range out.Decisions {
		fmt.Printf("%-8s  %-9s  %-6s  %-20s  %s\n", shortID(d.RunID), d.Job, d.Decision, d.CreatedAt, d.Reason)
	}
	return nil
}

// #endregion list-mode

// #region document-mode

func runDocumentMode(store *state.SQLiteStore, key string, jsonOut bool) error {
	var raw json.RawMessage
	found, err := store.Get(context.Background(), key, &raw)
	if err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("no document %q", key)
	}
	if jsonOut {
		fmt.Println(string(raw))
		return nil
	}
	var buf bytes.Buffer
	if err := json.Indent(&buf, raw, "", "  "); err != nil {
		return fmt.Errorf("indent json: %w", err)
	}
	fmt.Println(buf.String())
	return nil
}

// #endregion document-mode

// #region output

func printJSON(v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal json: %w", err)
	}
	fmt.Println(string(data))
	return nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// #endregion output
