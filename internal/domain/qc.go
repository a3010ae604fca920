package domain

import "time"

// QCTask is one-to-one with a page routed to manual/qc review (§3).
type QCTask struct {
	TaskID         string     `json:"task_id"`
	PageID         string     `json:"page_id"`
	Severity       Severity   `json:"severity"`
	Priority       Priority   `json:"priority"`
	Status         TaskStatus `json:"status"`
	CreatedAt      time.Time  `json:"created_at"`
	AssignedTo     string     `json:"assigned_to,omitempty"`
	LockHolder     string     `json:"lock_holder,omitempty"`
	LockExpiresAt  *time.Time `json:"lock_expires_at,omitempty"`
	RoutingReasons []string   `json:"routing_reasons"`

	// Snapshots taken at routing time, used by operators without a
	// second read against the archive.
	ImageKey   string                `json:"image_key"`
	OCRText    string                `json:"ocr_text"`
	FieldsSnap map[string]FieldValue `json:"fields_snapshot"`
	DocType    DocType               `json:"doc_type"`
}

// LockExpired reports whether the task's lock is held but past its
// expiry, in which case it is treated as released (§3 invariant).
func (t *QCTask) LockExpired(now time.Time) bool {
	return t.LockExpiresAt != nil && now.After(*t.LockExpiresAt)
}

// FieldCorrection captures one operator-made correction to an extracted
// field.
type FieldCorrection struct {
	Field              string `json:"field"`
	Before             string `json:"before"`
	After              string `json:"after"`
	OperatorConfidence float64 `json:"operator_confidence"`
	Note               string `json:"note,omitempty"`
}

// VerdictAction is the closed set of submit actions (§4.2).
type VerdictAction string

const (
	ActionApprove  VerdictAction = "approve"
	ActionReject   VerdictAction = "reject"
	ActionEscalate VerdictAction = "escalate"
	ActionRelease  VerdictAction = "release"
)

// Verdict is the body of a QC task submission.
type Verdict struct {
	Approved          bool              `json:"approved"`
	CorrectedDocType  DocType           `json:"corrected_doc_type,omitempty"`
	FieldCorrections  []FieldCorrection `json:"field_corrections,omitempty"`
	IssueCategories   []string          `json:"issue_categories,omitempty"`
	OperatorConfidence float64          `json:"operator_confidence"`
	TimeSpentSeconds  int               `json:"time_spent_seconds"`
	Notes             string            `json:"notes,omitempty"`
	Action            VerdictAction     `json:"action"`
}

// FeedbackRecord is an immutable, append-only record of a QC decision
// (§3). Records form the training-data stream.
type FeedbackRecord struct {
	TaskID             string            `json:"task_id"`
	PageID             string            `json:"page_id"`
	OperatorID         string            `json:"operator_id"`
	OriginalDocType    DocType           `json:"original_doc_type"`
	CorrectedDocType   DocType           `json:"corrected_doc_type"`
	FieldCorrections   []FieldCorrection `json:"field_corrections"`
	IssueCategories    []string          `json:"issue_categories"`
	OperatorConfidence float64           `json:"operator_confidence"`
	TimeSpentSeconds   int               `json:"time_spent_seconds"`
	Approved           bool              `json:"approved"`
	Escalated          bool              `json:"escalated"`
	Timestamp          time.Time         `json:"timestamp"`
}

// QueueStats is the aggregate breakdown returned by stats() (§4.2).
type QueueStats struct {
	ByStatus   map[TaskStatus]int `json:"by_status"`
	BySeverity map[Severity]int   `json:"by_severity"`
	ByDocType  map[DocType]int    `json:"by_doc_type"`
	ByPriority map[Priority]int   `json:"by_priority"`
}

// RoutingRecord is one routing engine verdict logged at indexing time,
// the raw material for the routing summary/recent/trends reporting
// surface (§4.1, §6).
type RoutingRecord struct {
	PageID    string    `json:"page_id"`
	DocType   DocType   `json:"doc_type"`
	Severity  Severity  `json:"severity"`
	Reasons   []string  `json:"reasons"`
	Operator  string    `json:"operator,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// RoutingSummary is the aggregate count breakdown for /api/routing/summary.
type RoutingSummary struct {
	TotalPages int                `json:"total_pages"`
	BySeverity map[Severity]int   `json:"by_severity"`
	ByDocType  map[DocType]int    `json:"by_doc_type"`
}

// RoutingTrendPoint is one day's counts in the /api/routing/trends series.
type RoutingTrendPoint struct {
	Date       string           `json:"date"`
	BySeverity map[Severity]int `json:"by_severity"`
}

// FeedbackStats aggregates the feedback stream for /api/qc/feedback/stats.
type FeedbackStats struct {
	TotalRecords      int            `json:"total_records"`
	ApprovedCount     int            `json:"approved_count"`
	RejectedCount     int            `json:"rejected_count"`
	EscalatedCount    int            `json:"escalated_count"`
	AvgConfidence     float64        `json:"avg_operator_confidence"`
	AvgTimeSpentSecs  float64        `json:"avg_time_spent_seconds"`
	ByIssueCategory   map[string]int `json:"by_issue_category"`
	CorrectionRate    float64        `json:"correction_rate"`
}

// OperatorStats aggregates one operator's feedback history for
// /api/qc/operator/{id}/stats.
type OperatorStats struct {
	OperatorID       string  `json:"operator_id"`
	TasksCompleted   int     `json:"tasks_completed"`
	ApprovedCount    int     `json:"approved_count"`
	RejectedCount    int     `json:"rejected_count"`
	AvgConfidence    float64 `json:"avg_operator_confidence"`
	AvgTimeSpentSecs float64 `json:"avg_time_spent_seconds"`
}
