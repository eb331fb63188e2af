// Package ledger is the durable, append-only record of everything the
// governance pipeline decided (spec.md §3 and §6): the execution ledger
// (hash-chained per plan), the approval audit trail, the governance
// signal stream, and user feedback. Every stream is a JSONL file; a
// SQLite database indexes the rows for querying and is always safe to
// delete and rebuild from the JSONL source.
package ledger

import (
	"database/sql"
	"fmt"
	"path/filepath"
	"sort"
	"time"

	"github.com/icg-systems/icg/internal/domain"
)

// Paths names the on-disk location of each governance stream, relative
// to a data directory (spec.md §6's artifact layout).
type Paths struct {
	Dir string
}

func (p Paths) executions() string { return filepath.Join(p.Dir, "executions.jsonl") }
func (p Paths) approvals() string  { return filepath.Join(p.Dir, "approvals.jsonl") }
func (p Paths) signals() string    { return filepath.Join(p.Dir, "signals.jsonl") }
func (p Paths) feedback() string   { return filepath.Join(p.Dir, "feedback.jsonl") }
func (p Paths) index() string      { return filepath.Join(p.Dir, "ledger.db") }

// Store is the ledger's JSONL-backed, SQLite-indexed persistence layer.
// It satisfies internal/adapter.ExecutionStore directly so the Adapter
// can depend on it without an import cycle back into this package.
type Store struct {
	paths      Paths
	executions *JSONLStream
	approvals  *JSONLStream
	signals    *JSONLStream
	feedback   *JSONLStream
	db         *sql.DB
}

// Open wires up the JSONL streams and the SQLite index for dir, creating
// dir's index database if absent and refilling it from the executions
// JSONL stream. The index is always opened; an empty dir places every
// file in the current working directory.
func Open(dir string) (*Store, error) {
	paths := Paths{Dir: dir}
	s := &Store{
		paths:      paths,
		executions: NewJSONLStream(paths.executions()),
		approvals:  NewJSONLStream(paths.approvals()),
		signals:    NewJSONLStream(paths.signals()),
		feedback:   NewJSONLStream(paths.feedback()),
	}
	db, err := openIndex(paths.index())
	if err != nil {
		return nil, err
	}
	s.db = db
	if err := s.Rebuild(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// Close releases the SQLite index handle. JSONL streams need no closing.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Append writes an execution record to the ledger and its SQLite index,
// chaining PrevHash/Hash off the plan's last record when the caller left
// them unset. It satisfies internal/adapter.ExecutionStore.
func (s *Store) Append(record domain.ExecutionRecord) error {
	if record.Hash == "" {
		prev, err := s.LastHash(record.PlanID)
		if err != nil {
			return err
		}
		record.PrevHash = prev
		record.Hash = ComputeExecutionHash(record)
	}
	if err := s.executions.Append(record); err != nil {
		return err
	}
	return s.indexExecution(record)
}

// FindLastSuccess returns the most recent successful execution for a
// plan, read from the SQLite index when available and falling back to a
// full JSONL scan otherwise. It satisfies internal/adapter.ExecutionStore.
func (s *Store) FindLastSuccess(planID string) (domain.ExecutionRecord, bool, error) {
	if s.db != nil {
		return s.findLastSuccessIndexed(planID)
	}
	records, err := ReadJSONL[domain.ExecutionRecord](s.paths.executions())
	if err != nil {
		return domain.ExecutionRecord{}, false, err
	}
	for i := len(records) - 1; i >= 0; i-- {
		if records[i].PlanID == planID && records[i].Result == domain.ExecutionSuccess {
			return records[i], true, nil
		}
	}
	return domain.ExecutionRecord{}, false, nil
}

// LastHash returns the hash of the most recent execution record on planID,
// or ComputeChainSeed(planID) if the plan has no prior execution, giving
// the adapter the prev_hash to chain the next record to.
func (s *Store) LastHash(planID string) (string, error) {
	records, err := s.ExecutionsForPlan(planID)
	if err != nil {
		return "", err
	}
	if len(records) == 0 {
		return ComputeChainSeed(planID), nil
	}
	return records[len(records)-1].Hash, nil
}

// ExecutionsForPlan returns every execution record for planID in append
// order, read from the JSONL source directly.
func (s *Store) ExecutionsForPlan(planID string) ([]domain.ExecutionRecord, error) {
	records, err := ReadJSONL[domain.ExecutionRecord](s.paths.executions())
	if err != nil {
		return nil, err
	}
	out := records[:0:0]
	for _, r := range records {
		if r.PlanID == planID {
			out = append(out, r)
		}
	}
	return out, nil
}

// Executions returns every execution record with ExecutedAt in [from, to],
// read from the JSONL source directly (the SQLite index is keyed for
// per-plan lookups, not full-window scans). A zero from or to leaves that
// bound open.
func (s *Store) Executions(from, to time.Time) ([]domain.ExecutionRecord, error) {
	all, err := ReadJSONL[domain.ExecutionRecord](s.paths.executions())
	if err != nil {
		return nil, err
	}
	return filterByWindow(all, from, to, func(r domain.ExecutionRecord) time.Time { return r.ExecutedAt }), nil
}

// AppendApprovalEvent appends one approval-workflow audit line.
func (s *Store) AppendApprovalEvent(e domain.ApprovalEvent) error {
	return s.approvals.Append(e)
}

// ApprovalEvents returns every approval audit line for workflowID.
func (s *Store) ApprovalEvents(workflowID string) ([]domain.ApprovalEvent, error) {
	events, err := ReadJSONL[domain.ApprovalEvent](s.paths.approvals())
	if err != nil {
		return nil, err
	}
	out := events[:0:0]
	for _, e := range events {
		if e.WorkflowID == workflowID {
			out = append(out, e)
		}
	}
	return out, nil
}

// AppendSignal appends one governance signal row (spec.md §4.13).
func (s *Store) AppendSignal(sig domain.Signal) error {
	return s.signals.Append(sig)
}

// Signals returns every governance signal with Timestamp in [from, to],
// sorted ascending by timestamp. A zero from or to leaves that bound open.
func (s *Store) Signals(from, to time.Time) ([]domain.Signal, error) {
	all, err := ReadJSONL[domain.Signal](s.paths.signals())
	if err != nil {
		return nil, err
	}
	out := filterByWindow(all, from, to, func(sig domain.Signal) time.Time { return sig.Timestamp })
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	return out, nil
}

// AppendFeedback appends one user-feedback row (spec.md §6).
func (s *Store) AppendFeedback(f domain.Feedback) error {
	return s.feedback.Append(f)
}

// Feedback returns every feedback row with Timestamp in [from, to].
func (s *Store) Feedback(from, to time.Time) ([]domain.Feedback, error) {
	all, err := ReadJSONL[domain.Feedback](s.paths.feedback())
	if err != nil {
		return nil, err
	}
	return filterByWindow(all, from, to, func(f domain.Feedback) time.Time { return f.Timestamp }), nil
}

func filterByWindow[T any](items []T, from, to time.Time, at func(T) time.Time) []T {
	out := items[:0:0]
	for _, item := range items {
		ts := at(item)
		if !from.IsZero() && ts.Before(from) {
			continue
		}
		if !to.IsZero() && ts.After(to) {
			continue
		}
		out = append(out, item)
	}
	return out
}

// Rebuild drops and recreates the SQLite index from the JSONL streams,
// the recovery path for a corrupted or deleted index database.
func (s *Store) Rebuild() error {
	if s.db == nil {
		return fmt.Errorf("ledger: no index database open")
	}
	if err := resetIndex(s.db); err != nil {
		return err
	}
	records, err := ReadJSONL[domain.ExecutionRecord](s.paths.executions())
	if err != nil {
		return err
	}
	for _, r := range records {
		if err := s.indexExecution(r); err != nil {
			return err
		}
	}
	return nil
}
