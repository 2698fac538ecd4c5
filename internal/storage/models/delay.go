package models

import "time"

// DelayRecord is one persisted delay-test outcome.
type DelayRecord struct {
	ID       int64     `json:"id"`
	NodeName string    `json:"node_name"`
	DelayMS  int       `json:"delay_ms"` // negative when the probe failed
	Success  bool      `json:"success"`
	TestedAt time.Time `json:"tested_at"`
}
