// Package ledger records push operations for auditing and whole-push caching.
package ledger

import (
	"math"
	"time"
)

// Status is the lifecycle state of a push operation
type Status string

const (
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusPartial    Status = "partial"
	StatusFailed     Status = "failed"
)

// Terminal reports whether no further transitions can happen
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusPartial || s == StatusFailed
}

// KeyChange records a created or updated key with value snippets
type KeyChange struct {
	Key    string `json:"key"`
	Before string `json:"before,omitempty"`
	After  string `json:"after"`
}

// KeyFailure records a key whose write failed
type KeyFailure struct {
	Key   string `json:"key"`
	Value string `json:"value,omitempty"`
	Error string `json:"error"`
}

// Pushed holds the per-key outcome lists
type Pushed struct {
	Created []KeyChange  `json:"created"`
	Updated []KeyChange  `json:"updated"`
	Failed  []KeyFailure `json:"failed"`
	Skipped []string     `json:"skipped"`
}

// Operation is one push of a funnel's custom values to the CRM
type Operation struct {
	ID             string     `json:"id"`
	FunnelID       string     `json:"funnel_id"`
	Status         Status     `json:"status"`
	TotalItems     int        `json:"total_items"`
	CompletedItems int        `json:"completed_items"`
	FailedItems    int        `json:"failed_items"`
	SkippedItems   int        `json:"skipped_items"`
	Cached         bool       `json:"cached"`
	ContentHash    string     `json:"content_hash,omitempty"`
	Pushed         Pushed     `json:"custom_values_pushed"`
	Error          string     `json:"error,omitempty"`
	ErrorStack     string     `json:"-"`
	StartedAt      time.Time  `json:"started_at"`
	FinishedAt     *time.Time `json:"finished_at,omitempty"`
	DurationMS     int64      `json:"duration_ms"`
}

// Summary is the caller-facing digest of an operation
type Summary struct {
	Status      Status  `json:"status"`
	Total       int     `json:"total"`
	Created     int     `json:"created"`
	Updated     int     `json:"updated"`
	Failed      int     `json:"failed"`
	Skipped     int     `json:"skipped"`
	Cached      bool    `json:"cached"`
	SuccessRate float64 `json:"success_rate"`
}

// Summary computes counts and the success rate in percent
func (o *Operation) Summary() Summary {
	s := Summary{
		Status:  o.Status,
		Total:   o.TotalItems,
		Created: len(o.Pushed.Created),
		Updated: len(o.Pushed.Updated),
		Failed:  len(o.Pushed.Failed),
		Skipped: len(o.Pushed.Skipped),
		Cached:  o.Cached,
	}
	switch {
	case o.Status == StatusFailed && o.TotalItems == 0:
		s.SuccessRate = 0
	case o.TotalItems == 0:
		s.SuccessRate = 100
	default:
		rate := float64(o.TotalItems-s.Failed) / float64(o.TotalItems) * 100
		s.SuccessRate = math.Round(rate*100) / 100
	}
	return s
}

// Finish stamps the terminal status and timing
func (o *Operation) Finish(status Status, now time.Time) {
	o.Status = status
	finished := now.UTC()
	o.FinishedAt = &finished
	o.DurationMS = finished.Sub(o.StartedAt).Milliseconds()
}
