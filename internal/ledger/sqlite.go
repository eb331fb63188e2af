package ledger

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"github.com/icg-systems/icg/internal/domain"
)

func openIndex(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL")
	if err != nil {
		return nil, fmt.Errorf("ledger: open index: %w", err)
	}
	if err := resetIndex(db); err != nil {
		return nil, err
	}
	return db, nil
}

func resetIndex(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS executions (
		execution_id       TEXT PRIMARY KEY,
		plan_id            TEXT NOT NULL,
		result             TEXT NOT NULL,
		policy_decision    TEXT NOT NULL,
		mode               TEXT NOT NULL,
		rollback_reference TEXT,
		executed_at        DATETIME NOT NULL,
		reason             TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_executions_plan ON executions(plan_id);
	CREATE INDEX IF NOT EXISTS idx_executions_result ON executions(result);
	`
	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("ledger: init index schema: %w", err)
	}
	if _, err := db.Exec(`DELETE FROM executions`); err != nil {
		return fmt.Errorf("ledger: reset index: %w", err)
	}
	return nil
}

func (s *Store) indexExecution(r domain.ExecutionRecord) error {
	if s.db == nil {
		return nil
	}
	_, err := s.db.Exec(`
		INSERT INTO executions (execution_id, plan_id, result, policy_decision, mode, rollback_reference, executed_at, reason)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(execution_id) DO UPDATE SET
			result = excluded.result,
			policy_decision = excluded.policy_decision,
			mode = excluded.mode,
			rollback_reference = excluded.rollback_reference,
			executed_at = excluded.executed_at,
			reason = excluded.reason
	`, r.ExecutionID, r.PlanID, string(r.Result), string(r.PolicyDecision), string(r.Mode), r.RollbackReference, r.ExecutedAt, r.Reason)
	if err != nil {
		return fmt.Errorf("ledger: index execution %s: %w", r.ExecutionID, err)
	}
	return nil
}

func (s *Store) findLastSuccessIndexed(planID string) (domain.ExecutionRecord, bool, error) {
	row := s.db.QueryRow(`
		SELECT execution_id, plan_id, result, policy_decision, mode, rollback_reference, executed_at, reason
		FROM executions
		WHERE plan_id = ? AND result = ?
		ORDER BY executed_at DESC
		LIMIT 1
	`, planID, string(domain.ExecutionSuccess))

	var r domain.ExecutionRecord
	var rollbackRef, reason sql.NullString
	err := row.Scan(&r.ExecutionID, &r.PlanID, &r.Result, &r.PolicyDecision, &r.Mode, &rollbackRef, &r.ExecutedAt, &reason)
	if err == sql.ErrNoRows {
		return domain.ExecutionRecord{}, false, nil
	}
	if err != nil {
		return domain.ExecutionRecord{}, false, fmt.Errorf("ledger: query last success for %s: %w", planID, err)
	}
	r.RollbackReference = rollbackRef.String
	r.Reason = reason.String

	full, err := s.ExecutionsForPlan(planID)
	if err != nil {
		return r, true, nil
	}
	for _, f := range full {
		if f.ExecutionID == r.ExecutionID {
			return f, true, nil
		}
	}
	return r, true, nil
}
