package events

// EventData is implemented by every typed event payload
type EventData interface {
	EventType() EventType
}

// RunStartedData is emitted when a strategy run begins
type RunStartedData struct {
	RunID    string `json:"run_id"`
	Strategy string `json:"strategy"`
	Size     int    `json:"size"`
	Seed     int64  `json:"seed"`
}

// EventType implements EventData
func (d *RunStartedData) EventType() EventType {
	return RunStarted
}

// RunProgressData carries per-step progress of a run
type RunProgressData struct {
	RunID     string  `json:"run_id"`
	Strategy  string  `json:"strategy"`
	Step      int     `json:"step"`
	Total     int     `json:"total"`
	BestScore float64 `json:"best_score"`
}

// EventType implements EventData
func (d *RunProgressData) EventType() EventType {
	return RunProgress
}

// RunCompletedData is emitted when a run finishes successfully
type RunCompletedData struct {
	RunID      string   `json:"run_id"`
	Strategy   string   `json:"strategy"`
	Score      float64  `json:"score"`
	Members    []string `json:"members"`
	DurationMs int64    `json:"duration_ms"`
	Cached     bool     `json:"cached"`
}

// EventType implements EventData
func (d *RunCompletedData) EventType() EventType {
	return RunCompleted
}

// RunFailedData is emitted when a run returns an error
type RunFailedData struct {
	RunID    string `json:"run_id"`
	Strategy string `json:"strategy"`
	Error    string `json:"error"`
}

// EventType implements EventData
func (d *RunFailedData) EventType() EventType {
	return RunFailed
}

// CatalogRefreshedData is emitted after the catalog is reloaded
type CatalogRefreshedData struct {
	Source      string `json:"source"`
	Instruments int    `json:"instruments"`
}

// EventType implements EventData
func (d *CatalogRefreshedData) EventType() EventType {
	return CatalogRefreshed
}
