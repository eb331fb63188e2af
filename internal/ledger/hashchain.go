package ledger

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/icg-systems/icg/internal/domain"
)

// ComputeExecutionHash computes the SHA-256 hash for an execution record,
// chaining it to the previous record's hash so the ledger can detect
// tampering or gaps after the fact (spec.md §3's prev_hash/hash fields).
func ComputeExecutionHash(r domain.ExecutionRecord) string {
	data := fmt.Sprintf("%s|%s|%s|%s|%s|%s",
		r.ExecutionID,
		r.PlanID,
		string(r.Result),
		string(r.PolicyDecision),
		string(r.Mode),
		r.PrevHash,
	)
	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:])
}

// ComputeChainSeed computes the initial prev_hash for the first execution
// record on a plan, so every chain starts from a deterministic, non-empty
// anchor rather than an empty string indistinguishable from "not chained".
func ComputeChainSeed(planID string) string {
	hash := sha256.Sum256([]byte(planID))
	return hex.EncodeToString(hash[:])
}

// VerifyChain walks execution records in append order and checks hash
// integrity and chain linkage. Returns (valid, brokenAtIndex); brokenAtIndex
// is -1 when valid is true.
func VerifyChain(records []domain.ExecutionRecord) (bool, int) {
	for i, r := range records {
		expected := ComputeExecutionHash(r)
		if r.Hash != expected {
			return false, i
		}
		if i > 0 && r.PrevHash != records[i-1].Hash {
			return false, i
		}
	}
	return true, -1
}
