package models

import "time"

// Subscription is one remote node-list source. The decoded node URIs are
// cached opaquely; interpreting them is the engine's job.
type Subscription struct {
	ID             int64      `json:"id"`
	Name           string     `json:"name"`
	URL            string     `json:"url"`
	AutoUpdate     bool       `json:"auto_update"`
	UpdateInterval int        `json:"update_interval"` // seconds
	LastUpdated    *time.Time `json:"last_updated,omitempty"`
	NextUpdate     *time.Time `json:"next_update,omitempty"`
	NodeURIs       []string   `json:"node_uris"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}
