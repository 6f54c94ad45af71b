package events

// EventData is the interface that all event data types must implement
type EventData interface {
	// EventType returns the event type this data is associated with
	EventType() EventType
}

// OptimizationCompletedData contains data for OptimizationCompleted events
type OptimizationCompletedData struct {
	RunID          string  `json:"run_id,omitempty"`
	Objective      string  `json:"objective"`
	Instruments    int     `json:"instruments"`
	Allocations    int     `json:"allocations"`
	ObjectiveValue float64 `json:"objective_value"`
	DurationMs     int64   `json:"duration_ms"`
}

// EventType returns the event type for OptimizationCompletedData
func (d *OptimizationCompletedData) EventType() EventType {
	return OptimizationCompleted
}

// OptimizationRejectedData contains data for OptimizationRejected events
type OptimizationRejectedData struct {
	RunID       string `json:"run_id,omitempty"`
	Objective   string `json:"objective"`
	Instruments int    `json:"instruments"`
	Reason      string `json:"reason"`
	Status      string `json:"status,omitempty"`
	Diagnostic  string `json:"diagnostic,omitempty"`
}

// EventType returns the event type for OptimizationRejectedData
func (d *OptimizationRejectedData) EventType() EventType {
	return OptimizationRejected
}

// BackupCompletedData contains data for BackupCompleted events
type BackupCompletedData struct {
	Databases []string `json:"databases"`
	Uploaded  bool     `json:"uploaded"`
	SizeBytes int64    `json:"size_bytes"`
}

// EventType returns the event type for BackupCompletedData
func (d *BackupCompletedData) EventType() EventType {
	return BackupCompleted
}

// ErrorEventData contains data for ErrorOccurred events
type ErrorEventData struct {
	Error   string                 `json:"error"`
	Context map[string]interface{} `json:"context,omitempty"`
}

// EventType returns the event type for ErrorEventData
func (d *ErrorEventData) EventType() EventType {
	return ErrorOccurred
}
