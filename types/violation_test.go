package types

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestComputeFingerprintDeterministic(t *testing.T) {
	a := ComputeFingerprint("db1", "policy1", map[string]any{
		"table": "orders", "fk_count": 0,
	})
	b := ComputeFingerprint("db1", "policy1", map[string]any{
		"fk_count": 0, "table": "orders",
	})
	assert.Equal(t, a, b, "map key order must not change the fingerprint")
}

func TestComputeFingerprintDistinguishes(t *testing.T) {
	base := ComputeFingerprint("db1", "policy1", map[string]any{"table": "orders"})

	assert.NotEqual(t, base, ComputeFingerprint("db2", "policy1", map[string]any{"table": "orders"}))
	assert.NotEqual(t, base, ComputeFingerprint("db1", "policy2", map[string]any{"table": "orders"}))
	assert.NotEqual(t, base, ComputeFingerprint("db1", "policy1", map[string]any{"table": "users"}))
}

func TestViolationValidate(t *testing.T) {
	v := Violation{
		ViolationID:  "v1",
		DatabaseName: "orders-db",
		PolicyID:     "p1",
		Severity:     SeverityHigh,
		DetectedAt:   time.Now(),
		Status:       ViolationOpen,
	}
	assert.NoError(t, v.Validate())

	v.Severity = "catastrophic"
	assert.Error(t, v.Validate())
}

func TestAuditEventValidate(t *testing.T) {
	ev := AuditEvent{
		EventID:   "e1",
		EventType: "governance",
		Timestamp: time.Now(),
		Source:    "engine",
	}
	assert.NoError(t, ev.Validate())

	for _, strip := range []func(*AuditEvent){
		func(e *AuditEvent) { e.EventID = "" },
		func(e *AuditEvent) { e.EventType = "" },
		func(e *AuditEvent) { e.Timestamp = time.Time{} },
		func(e *AuditEvent) { e.Source = "" },
	} {
		bad := ev
		strip(&bad)
		err := bad.Validate()
		assert.ErrorIs(t, err, ErrInvalidEvent)
	}
}
