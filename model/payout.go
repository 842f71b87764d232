package model

import (
	"encoding/json"
	"time"
)

const (
	StatusPending        = "pending"
	StatusClaimRequested = "claim_requested"
	StatusCompleted      = "completed"
	StatusFailed         = "failed"
)

// PayoutObligation is the durable record that the system owes a player a
// reward. An obligation is written once per (player, reason key) pair and
// retained permanently as an audit record once it reaches a terminal
// status.
type PayoutObligation struct {
	ID             int64                  `json:"-"`
	PayoutID       string                 `json:"id"`
	PlayerID       string                 `json:"player_id"`
	Destination    string                 `json:"destination"`
	Network        string                 `json:"network"`
	Amount         int64                  `json:"amount"`
	ReasonKey      string                 `json:"reason_key"`
	Status         string                 `json:"status"`
	ProofReference string                 `json:"proof_reference,omitempty"`
	CreatedAt      time.Time              `json:"created_at"`
	ProcessedAt    *time.Time             `json:"processed_at,omitempty"`
	MetaData       map[string]interface{} `json:"meta_data,omitempty"`
}

func (p *PayoutObligation) ToJSON() ([]byte, error) {
	return json.Marshal(p)
}

// legalTransitions is the full status machine of an obligation. Terminal
// statuses have no outgoing edges.
var legalTransitions = map[string][]string{
	StatusPending:        {StatusClaimRequested, StatusCompleted, StatusFailed},
	StatusClaimRequested: {StatusCompleted, StatusFailed},
	StatusCompleted:      {},
	StatusFailed:         {},
}

// CanTransition reports whether moving an obligation from one status to
// another is legal. Unknown statuses are never legal.
func CanTransition(from, to string) bool {
	for _, next := range legalTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// LegalSources returns every status from which an obligation may move to
// the given status. Used by the datasource to make transitions a single
// conditional update instead of a read followed by a write.
func LegalSources(to string) []string {
	var from []string
	for status, targets := range legalTransitions {
		for _, next := range targets {
			if next == to {
				from = append(from, status)
			}
		}
	}
	return from
}

// IsTerminalStatus reports whether status ends the obligation lifecycle.
func IsTerminalStatus(status string) bool {
	return status == StatusCompleted || status == StatusFailed
}
