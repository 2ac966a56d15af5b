package dispatch

import "sync"

// Status is the lifecycle stage of a dispatched node.
type Status string

const (
	StatusStarted   Status = "started"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
	StatusSkipped   Status = "skipped"
)

// Report is emitted for every node as it moves through dispatch.
type Report struct {
	ExecutionID string `json:"executionId"`
	NodeID      string `json:"nodeId"`
	Name        string `json:"name"`
	Status      Status `json:"status"`
	Message     string `json:"message,omitempty"`
	Err         error  `json:"-"`
}

// Reporter receives reports. Implementations must be safe for concurrent
// use; simultaneous groups report from several goroutines.
type Reporter interface {
	Report(Report)
}

// ReporterFunc adapts a function to Reporter.
type ReporterFunc func(Report)

func (f ReporterFunc) Report(r Report) { f(r) }

// MultiReporter fans out to several reporters.
type MultiReporter []Reporter

func (m MultiReporter) Report(r Report) {
	for _, rep := range m {
		rep.Report(r)
	}
}

// Recorder keeps every report in memory.
type Recorder struct {
	mu      sync.Mutex
	reports []Report
}

func (r *Recorder) Report(rep Report) {
	r.mu.Lock()
	r.reports = append(r.reports, rep)
	r.mu.Unlock()
}

// Reports returns a copy of what was recorded so far.
func (r *Recorder) Reports() []Report {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Report(nil), r.reports...)
}

type nopReporter struct{}

func (nopReporter) Report(Report) {}
