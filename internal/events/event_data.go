package events

// EventData is the interface that all event data types must implement
// This allows for type-safe event data while maintaining flexibility
type EventData interface {
	// EventType returns the event type this data is associated with
	EventType() EventType
}

// RunStartedData contains data for RunStarted events
type RunStartedData struct {
	RunID     string   `json:"run_id"`
	Exchanges []string `json:"exchanges"`
	Strategy  string   `json:"strategy"`
}

// EventType returns the event type for RunStartedData
func (d *RunStartedData) EventType() EventType {
	return RunStarted
}

// RunCompletedData contains data for RunCompleted events
type RunCompletedData struct {
	RunID      string  `json:"run_id"`
	Symbols    int     `json:"symbols"`
	Flagged    int     `json:"flagged"`
	Warnings   int     `json:"warnings"`
	DurationMS float64 `json:"duration_ms"`
}

// EventType returns the event type for RunCompletedData
func (d *RunCompletedData) EventType() EventType {
	return RunCompleted
}

// RunFailedData contains data for RunFailed events
type RunFailedData struct {
	RunID string `json:"run_id"`
	Error string `json:"error"`
}

// EventType returns the event type for RunFailedData
func (d *RunFailedData) EventType() EventType {
	return RunFailed
}

// ScreenFetchedData contains data for ScreenFetched events
type ScreenFetchedData struct {
	RunID     string `json:"run_id"`
	Rows      int    `json:"rows"`
	Exchanges int    `json:"exchanges"`
	FromCache bool   `json:"from_cache"`
}

// EventType returns the event type for ScreenFetchedData
func (d *ScreenFetchedData) EventType() EventType {
	return ScreenFetched
}

// EnrichmentProgressData contains data for EnrichmentProgress events
type EnrichmentProgressData struct {
	RunID   string `json:"run_id"`
	Current int    `json:"current"`
	Total   int    `json:"total"`
	Message string `json:"message,omitempty"`
}

// EventType returns the event type for EnrichmentProgressData
func (d *EnrichmentProgressData) EventType() EventType {
	return EnrichmentProgress
}
