// Package events provides event management functionality.
package events

import "time"

// EventType represents different event types
type EventType string

const (
	OptimizationCompleted EventType = "OPTIMIZATION_COMPLETED"
	OptimizationRejected  EventType = "OPTIMIZATION_REJECTED"
	BackupCompleted       EventType = "BACKUP_COMPLETED"
	ErrorOccurred         EventType = "ERROR_OCCURRED"
)

// Event represents a system event
type Event struct {
	Type      EventType              `json:"type"`
	Timestamp time.Time              `json:"timestamp"`
	Data      map[string]interface{} `json:"data"`
	Module    string                 `json:"module"`
}
