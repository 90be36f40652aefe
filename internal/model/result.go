package model

import "time"

// ConnectionType is the kind of relationship an edge represents.
type ConnectionType string

const (
	ConnImport         ConnectionType = "import"
	ConnFunctionCall   ConnectionType = "function_call"
	ConnInheritance    ConnectionType = "inheritance"
	ConnImplementation ConnectionType = "implementation"
	ConnTypeReference  ConnectionType = "type_reference"
)

// Location is a position in a source file.
type Location struct {
	FilePath string `json:"filePath"`
	Line     int    `json:"line"`
	Column   int    `json:"column"`
}

// ConnectionMetadata carries per-edge details.
type ConnectionMetadata struct {
	IsCircular bool       `json:"isCircular"`
	CallCount  int        `json:"callCount"`
	Locations  []Location `json:"locations"`
}

// Connection is a directed, typed edge between two nodes.
type Connection struct {
	ID       string             `json:"id"`
	SourceID string             `json:"sourceId"`
	TargetID string             `json:"targetId"`
	Type     ConnectionType     `json:"type"`
	Weight   int                `json:"weight"`
	Metadata ConnectionMetadata `json:"metadata"`
}

// WarningCategory classifies a warning.
type WarningCategory string

const (
	CircularDependency WarningCategory = "circular_dependency"
	OrphanedCode       WarningCategory = "orphaned_code"
	DuplicateCode      WarningCategory = "duplicate_code"
	LargeFile          WarningCategory = "large_file"
	DeepNesting        WarningCategory = "deep_nesting"
	MissingTypes       WarningCategory = "missing_types"
	UnusedExport       WarningCategory = "unused_export"
	SecurityConcern    WarningCategory = "security_concern"
)

// WarningLevel is the severity of a warning.
type WarningLevel string

const (
	LevelInfo    WarningLevel = "info"
	LevelWarning WarningLevel = "warning"
	LevelError   WarningLevel = "error"
)

// Suggestion is advisory remediation metadata. AutoFixable never causes
// surveyor to modify source.
type Suggestion struct {
	Summary     string `json:"summary"`
	Reasoning   string `json:"reasoning"`
	CodeExample string `json:"codeExample,omitempty"`
	AutoFixable bool   `json:"autoFixable"`
}

// Warning is a rule-detected code-quality issue.
type Warning struct {
	ID            string          `json:"id"`
	Category      WarningCategory `json:"category"`
	Level         WarningLevel    `json:"level"`
	Title         string          `json:"title"`
	Description   string          `json:"description"`
	AffectedNodes []string        `json:"affectedNodes"`
	Suggestion    *Suggestion     `json:"suggestion,omitempty"`
	DetectedAt    time.Time       `json:"detectedAt"`
}

// ClusterMethod is how a cluster was formed.
type ClusterMethod string

const (
	ClusterFolder ClusterMethod = "folder"
	ClusterSmart  ClusterMethod = "smart"
	ClusterManual ClusterMethod = "manual"
)

// SmartClusterCategory is the heuristic category of a smart cluster.
type SmartClusterCategory string

const (
	CategoryBackend  SmartClusterCategory = "backend"
	CategoryFrontend SmartClusterCategory = "frontend"
	CategoryAPI      SmartClusterCategory = "api"
	CategoryDatabase SmartClusterCategory = "database"
	CategoryAuth     SmartClusterCategory = "auth"
	CategoryUtils    SmartClusterCategory = "utils"
	CategoryTypes    SmartClusterCategory = "types"
	CategoryConfig   SmartClusterCategory = "config"
	CategoryTests    SmartClusterCategory = "tests"
	CategoryUnknown  SmartClusterCategory = "unknown"
)

// ClusterHealth is the health verdict of a cluster.
type ClusterHealth string

const (
	Healthy  ClusterHealth = "healthy"
	Degraded ClusterHealth = "warning"
	Critical ClusterHealth = "critical"
)

// ClusterStats aggregates the contents of a cluster.
type ClusterStats struct {
	FileCount               int `json:"fileCount"`
	FunctionCount           int `json:"functionCount"`
	ClassCount              int `json:"classCount"`
	InternalConnectionCount int `json:"internalConnectionCount"`
	ExternalConnectionCount int `json:"externalConnectionCount"`
}

// Cluster is a named grouping of nodes.
type Cluster struct {
	ID              string               `json:"id"`
	Name            string               `json:"name"`
	Method          ClusterMethod        `json:"method"`
	Category        SmartClusterCategory `json:"category,omitempty"`
	NodeIDs         []string             `json:"nodeIds"`
	ChildClusterIDs []string             `json:"childClusterIds"`
	ParentClusterID string               `json:"parentClusterId,omitempty"`
	Stats           ClusterStats         `json:"stats"`
	Health          ClusterHealth        `json:"health"`
	WarningCount    int                  `json:"warningCount"`
}

// BehaviorFlags are the side-effect flags inferred for a function.
type BehaviorFlags struct {
	DatabaseRead        bool `json:"databaseRead"`
	DatabaseWrite       bool `json:"databaseWrite"`
	HTTPCall            bool `json:"httpCall"`
	FileRead            bool `json:"fileRead"`
	FileWrite           bool `json:"fileWrite"`
	SendsNotification   bool `json:"sendsNotification"`
	ModifiesGlobalState bool `json:"modifiesGlobalState"`
	HasSideEffects      bool `json:"hasSideEffects"`
}

// BehavioralSummary is the LLM-derived description of a function.
type BehavioralSummary struct {
	Summary     string        `json:"summary"`
	Flags       BehaviorFlags `json:"flags"`
	ContentHash string        `json:"contentHash"`
	Model       string        `json:"model"`
	AnalyzedAt  time.Time     `json:"analyzedAt"`
}

// AnalysisCacheEntry is a persisted behavioral analysis keyed by content hash
// and model. Entries with a different Version are treated as absent.
type AnalysisCacheEntry struct {
	ContentHash string            `json:"contentHash"`
	Model       string            `json:"model"`
	Version     int               `json:"version"`
	Result      BehavioralSummary `json:"result"`
	AnalyzedAt  time.Time         `json:"analyzedAt"`
}
