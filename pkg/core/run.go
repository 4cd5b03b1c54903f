package core

import "time"

// RunStatus represents the status of a training run.
type RunStatus string

// Training run statuses.
const (
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
)

// Run is one tracked execution of the training pipeline.
type Run struct {
	ID          string
	Status      RunStatus
	Dataset     string
	ArtifactDir string
	StartedAt   time.Time
	CompletedAt *time.Time
	Error       string
}

// Param is a training parameter recorded against a run.
type Param struct {
	Key   string
	Value string
}

// Metric is an evaluation metric recorded against a run.
type Metric struct {
	Key   string
	Value float64
}

// Store defines the interface for experiment tracking.
type Store interface {
	Open(path string) error
	Close() error
	InitSchema() error

	CreateRun(dataset, artifactDir string) (*Run, error)
	GetRun(id string) (*Run, error)
	CompleteRun(id string, status RunStatus, errMsg string) error
	ListRuns(limit int) ([]*Run, error)

	LogParam(runID, key, value string) error
	LogMetric(runID, key string, value float64) error
	GetParams(runID string) ([]Param, error)
	GetMetrics(runID string) ([]Metric, error)
}
