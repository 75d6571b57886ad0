package events

import (
	"encoding/json"
)

// EventType identifies what happened
type EventType string

// Event types published by the jobs
const (
	MarketRefreshed EventType = "market_refreshed"
	SnapshotTaken   EventType = "snapshot_taken"
	BackupCompleted EventType = "backup_completed"
)

// EventData is implemented by every typed event payload
type EventData interface {
	EventType() EventType
}

// MarketRefreshedData contains data for MarketRefreshed events
type MarketRefreshedData struct {
	Updated int     `json:"updated"`
	Skipped int     `json:"skipped"`
	Failed  int     `json:"failed"`
	Seconds float64 `json:"duration_seconds"`
}

// EventType returns the event type for MarketRefreshedData
func (d *MarketRefreshedData) EventType() EventType {
	return MarketRefreshed
}

// SnapshotTakenData contains data for SnapshotTaken events
type SnapshotTakenData struct {
	Date          string  `json:"date"`
	TotalEquity   float64 `json:"total_equity"`
	TotalInvested float64 `json:"total_invested"`
	Profit        float64 `json:"profit"`
}

// EventType returns the event type for SnapshotTakenData
func (d *SnapshotTakenData) EventType() EventType {
	return SnapshotTaken
}

// BackupCompletedData contains data for BackupCompleted events
type BackupCompletedData struct {
	RunID     string   `json:"run_id"`
	Path      string   `json:"path"`
	Databases []string `json:"databases"`
	SizeBytes int64    `json:"size_bytes"`
	Remote    bool     `json:"remote"`
}

// EventType returns the event type for BackupCompletedData
func (d *BackupCompletedData) EventType() EventType {
	return BackupCompleted
}

// ToMap flattens typed event data into the generic map carried by Event.
// Nil data yields an empty map.
func ToMap(data EventData) map[string]interface{} {
	out := map[string]interface{}{}
	if data == nil {
		return out
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return out
	}
	_ = json.Unmarshal(raw, &out)
	return out
}
