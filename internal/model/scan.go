package model

import "time"

// ScanStatus is the lifecycle state of a scan.
type ScanStatus string

const (
	StatusPending   ScanStatus = "pending"
	StatusParsing   ScanStatus = "parsing"
	StatusAnalyzing ScanStatus = "analyzing"
	StatusComplete  ScanStatus = "complete"
	StatusFailed    ScanStatus = "failed"
)

// Terminal reports whether no further transitions are possible.
func (s ScanStatus) Terminal() bool {
	return s == StatusComplete || s == StatusFailed
}

// CanTransition reports whether moving from s to next is a legal step of
// Pending -> Parsing -> Analyzing -> Complete, with Failed reachable from any
// non-terminal state.
func (s ScanStatus) CanTransition(next ScanStatus) bool {
	if s.Terminal() {
		return false
	}
	if next == StatusFailed {
		return true
	}
	switch s {
	case StatusPending:
		return next == StatusParsing
	case StatusParsing:
		return next == StatusAnalyzing
	case StatusAnalyzing:
		return next == StatusComplete
	}
	return false
}

// ScanError is an error encountered during a scan. Recoverable errors only
// omit the affected file.
type ScanError struct {
	FilePath    string `json:"filePath"`
	Line        *int   `json:"line,omitempty"`
	Message     string `json:"message"`
	Recoverable bool   `json:"recoverable"`
}

// ScanStats aggregates a completed scan.
type ScanStats struct {
	TotalFiles         int                     `json:"totalFiles"`
	TotalFunctions     int                     `json:"totalFunctions"`
	TotalClasses       int                     `json:"totalClasses"`
	TotalConnections   int                     `json:"totalConnections"`
	TotalWarnings      int                     `json:"totalWarnings"`
	TotalClusters      int                     `json:"totalClusters"`
	NodesByType        map[NodeType]int        `json:"nodesByType"`
	WarningsByLevel    map[WarningLevel]int    `json:"warningsByLevel"`
	WarningsByCategory map[WarningCategory]int `json:"warningsByCategory"`
	CircularCount      int                     `json:"circularCount"`
	AnalyzedCount      int                     `json:"analyzedCount"`
	PendingAnalysis    int                     `json:"pendingAnalysis"`
	ParseErrors        int                     `json:"parseErrors"`
	HealthScore        int                     `json:"healthScore"`
	DurationMS         int64                   `json:"durationMs"`
}

// Summaries are the tiered text digests of a scan.
type Summaries struct {
	L0 string `json:"l0"`
	L1 string `json:"l1"`
	L2 string `json:"l2"`
}

// ScanResult is the complete snapshot produced by one scan.
type ScanResult struct {
	ID          string        `json:"id"`
	ProjectPath string        `json:"projectPath"`
	ProjectName string        `json:"projectName"`
	Status      ScanStatus    `json:"status"`
	CreatedAt   time.Time     `json:"createdAt"`
	CompletedAt *time.Time    `json:"completedAt,omitempty"`
	Stats       ScanStats     `json:"stats"`
	Nodes       NodeMap       `json:"nodes"`
	Connections []*Connection `json:"connections"`
	Warnings    []*Warning    `json:"warnings"`
	Clusters    []*Cluster    `json:"clusters"`
	Errors      []ScanError   `json:"errors"`
	Summary     *Summaries    `json:"summary,omitempty"`
}

// ProgressPhase names the step a progress event belongs to.
type ProgressPhase string

const (
	PhaseDiscovering ProgressPhase = "discovering"
	PhaseParsing     ProgressPhase = "parsing"
	PhaseLinking     ProgressPhase = "linking"
	PhaseDetecting   ProgressPhase = "detecting"
	PhaseClustering  ProgressPhase = "clustering"
	PhaseAnalyzing   ProgressPhase = "analyzing"
	PhaseComplete    ProgressPhase = "complete"
	PhaseFailed      ProgressPhase = "failed"
)

// ScanProgress is a streaming progress event.
type ScanProgress struct {
	Phase        ProgressPhase `json:"phase"`
	Current      int           `json:"current"`
	Total        int           `json:"total"`
	FilePath     string        `json:"filePath,omitempty"`
	FunctionName string        `json:"functionName,omitempty"`
	FromCache    bool          `json:"fromCache,omitempty"`
	Error        string        `json:"error,omitempty"`
}

// ProgressFunc receives progress events. Implementations must be safe for
// concurrent use.
type ProgressFunc func(ScanProgress)
