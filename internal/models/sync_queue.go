package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// Sync actions replayed by the outbox.
const (
	ActionOrderSubmit = "order_submit"
)

// SyncQueueEntry is a mutating action recorded while offline, awaiting replay.
type SyncQueueEntry struct {
	ID           uint64    `json:"id" gorm:"primaryKey;autoIncrement"`
	Action       string    `json:"action" gorm:"size:64;index"`
	Payload      []byte    `json:"payload"`
	Timestamp    time.Time `json:"timestamp" gorm:"index"`
	RetryCount   int       `json:"retry_count"`
	LastError    string    `json:"last_error,omitempty"`
	DeadLettered bool      `json:"dead_lettered" gorm:"index"`
}

// Decode unmarshals the JSON payload into v.
func (e *SyncQueueEntry) Decode(v any) error {
	if err := json.Unmarshal(e.Payload, v); err != nil {
		return fmt.Errorf("failed to decode %s payload of entry %d: %w", e.Action, e.ID, err)
	}
	return nil
}
