package service

import (
	"time"

	"github.com/viant/medvec/record"
)

// SyncPolicy controls what a sync request does while another cycle runs.
type SyncPolicy string

const (
	// SyncWait blocks until the running cycle finishes.
	SyncWait SyncPolicy = "wait"
	// SyncReject fails fast with ErrSyncInProgress.
	SyncReject SyncPolicy = "reject"
)

// SyncRequest defines inputs for a sync cycle.
type SyncRequest struct {
	// Descriptions is the full ordered source sequence.
	Descriptions []string
	// Force rebuilds the index regardless of the change probe.
	Force bool
}

// SyncResult reports what a sync cycle did.
type SyncResult struct {
	CycleID  string          `json:"cycleId"`
	Decision record.Decision `json:"decision"`
	Existing int             `json:"existing"`
	Total    int             `json:"total"`
	Embedded int             `json:"embedded"`
	Deleted  int             `json:"deleted"`
	Started  time.Time       `json:"started"`
	Duration time.Duration   `json:"duration"`
	Error    string          `json:"error,omitempty"`
}

// QueryRequest defines inputs for a similarity query.
type QueryRequest struct {
	Text      string
	TopK      int
	Threshold float64
}

// Status is a dependency health state.
type Status string

const (
	StatusHealthy     Status = "healthy"
	StatusDegraded    Status = "degraded"
	StatusUnavailable Status = "unavailable"
)

func (s Status) rank() int {
	switch s {
	case StatusHealthy:
		return 0
	case StatusDegraded:
		return 1
	}
	return 2
}

// DependencyHealth is the state of one collaborator.
type DependencyHealth struct {
	Name   string `json:"name"`
	Status Status `json:"status"`
	Detail string `json:"detail,omitempty"`
}

// HealthReport summarizes service readiness.
type HealthReport struct {
	Status        Status             `json:"status"`
	Namespace     string             `json:"namespace"`
	Model         string             `json:"model,omitempty"`
	Indexed       int                `json:"indexed"`
	SourceRecords *int               `json:"sourceRecords,omitempty"`
	Dependencies  []DependencyHealth `json:"dependencies"`
	LastSync      *SyncResult        `json:"lastSync,omitempty"`
}

// AuditReport is an exact comparison of the index against the source sequence.
type AuditReport struct {
	Existing int      `json:"existing"`
	Total    int      `json:"total"`
	Missing  []int    `json:"missing,omitempty"`
	Drifted  []int    `json:"drifted,omitempty"`
	Extra    []string `json:"extra,omitempty"`
	InSync   bool     `json:"inSync"`
	// ProbeDetects reports whether a regular sync cycle would act on the difference.
	ProbeDetects bool `json:"probeDetects"`
}

// Summary describes the indexed patient data.
type Summary struct {
	Namespace string   `json:"namespace"`
	Total     int      `json:"total"`
	WithEmail int      `json:"withEmail"`
	WithPhone int      `json:"withPhone"`
	Samples   []string `json:"samples"`
}
