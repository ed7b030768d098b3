package model

import "time"

// ScanStatus is the lifecycle state of the singleton scan record.
type ScanStatus string

const (
	ScanIdle      ScanStatus = "idle"
	ScanRunning   ScanStatus = "running"
	ScanCompleted ScanStatus = "completed"
)

// ScanState is the observable snapshot of the current (or last) scan.
type ScanState struct {
	ScanID           string
	Status           ScanStatus
	StartedAt        *time.Time
	CompletedAt      *time.Time
	CompaniesTotal   int
	CompaniesScanned int
	JobsFound        int
	JobsNew          int
	Errors           []string
	CancelRequested  bool
	// Stale is set when a running row has outlived the maximum scan duration
	// and is treated as idle.
	Stale bool
}

// Running reports whether the snapshot describes a live scan.
func (s ScanState) Running() bool {
	return s.Status == ScanRunning && !s.Stale
}

// ScanHandle identifies the scan that owns the running state. Progress writes
// carrying an outdated handle are rejected.
type ScanHandle struct {
	ScanID    string
	StartedAt time.Time
}

// Progress carries the monotonic counters and the accumulated error list of a scan.
type Progress struct {
	CompaniesScanned int
	JobsFound        int
	JobsNew          int
	Errors           []string
}

// ScanLog is the historical record written when a scan ends.
type ScanLog struct {
	ScanID           string
	StartedAt        time.Time
	CompletedAt      time.Time
	CompaniesScanned int
	CompaniesSkipped int
	JobsFound        int
	JobsNew          int
	Errors           []string
	Cancelled        bool
}

// CancelResult reports the outcome of a cancellation request.
type CancelResult struct {
	Cancelled    bool
	UnitsSkipped int
}
