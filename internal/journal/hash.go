package journal

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"

	"vigil/internal/events"
)

// GenesisHash seeds the chain for the first alert ever recorded.
const GenesisHash = "0000000000000000000000000000000000000000000000000000000000000000"

// chainedAlert is the hash input: alert plus the previous link, rebuilt
// here rather than embedded in events.Alert to keep the domain type free
// of storage concerns.
type chainedAlert struct {
	AlertID     string          `json:"alert_id"`
	RuleID      string          `json:"rule_id"`
	Severity    events.Severity `json:"severity"`
	Title       string          `json:"title"`
	Description string          `json:"description"`
	Event       events.Event    `json:"event"`
	PrevHash    string          `json:"prev_hash"`
}

// ComputeHash computes the hash of alert linked after prevHash.
func ComputeHash(alert events.Alert, prevHash string) string {
	input := chainedAlert{
		AlertID:     alert.AlertID,
		RuleID:      alert.RuleID,
		Severity:    alert.Severity,
		Title:       alert.Title,
		Description: alert.Description,
		Event:       alert.Event,
		PrevHash:    prevHash,
	}
	data, err := json.Marshal(input)
	if err != nil {
		data = []byte(alert.AlertID)
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// VerifyChain checks that each record's hash was computed over the
// preceding record's hash. Records must be supplied in insertion order.
// Returns the index of the first broken link, or -1 if the chain is valid.
func VerifyChain(records []Record) int {
	prev := GenesisHash
	for i, r := range records {
		if r.PrevHash != prev {
			return i
		}
		if ComputeHash(r.Alert, r.PrevHash) != r.Hash {
			return i
		}
		prev = r.Hash
	}
	return -1
}
