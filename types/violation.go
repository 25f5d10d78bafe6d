package types

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"
)

// Violation is a persisted, deduplicated policy violation record
type Violation struct {
	ViolationID          string          `json:"violation_id"`
	DatabaseName         string          `json:"database_name"`
	PolicyID             string          `json:"policy_id"`
	Severity             Severity        `json:"severity"`
	Description          string          `json:"description"`
	DetectedAt           time.Time       `json:"detected_at"`
	ViolationData        map[string]any  `json:"violation_data,omitempty"`
	RemediationSuggested []string        `json:"remediation_suggested,omitempty"`
	Status               ViolationStatus `json:"status"`
	ResolvedAt           time.Time       `json:"resolved_at,omitempty"`
	ResolvedBy           string          `json:"resolved_by,omitempty"`
	Fingerprint          string          `json:"fingerprint"`
}

// Validate gates violation construction before persistence
func (v *Violation) Validate() error {
	if v.ViolationID == "" {
		return fmt.Errorf("violation_id cannot be empty")
	}
	if v.DatabaseName == "" {
		return fmt.Errorf("violation %s: database_name cannot be empty", v.ViolationID)
	}
	if v.PolicyID == "" {
		return fmt.Errorf("violation %s: policy_id cannot be empty", v.ViolationID)
	}
	if !v.Severity.Valid() {
		return fmt.Errorf("violation %s: unknown severity %q", v.ViolationID, v.Severity)
	}
	if v.DetectedAt.IsZero() {
		return fmt.Errorf("violation %s: detected_at cannot be zero", v.ViolationID)
	}
	if !v.Status.Valid() {
		return fmt.Errorf("violation %s: unknown status %q", v.ViolationID, v.Status)
	}
	return nil
}

// ComputeFingerprint builds the deduplication key for a violation.
// encoding/json sorts map keys, so the payload signature is stable
// for equal payloads regardless of insertion order.
func ComputeFingerprint(databaseName, policyID string, payload map[string]any) string {
	raw, err := json.Marshal(payload)
	if err != nil {
		raw = []byte(fmt.Sprintf("%v", payload))
	}
	h := sha256.New()
	h.Write([]byte(databaseName))
	h.Write([]byte{0})
	h.Write([]byte(policyID))
	h.Write([]byte{0})
	h.Write(raw)
	return hex.EncodeToString(h.Sum(nil))
}
