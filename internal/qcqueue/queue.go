// Package qcqueue holds pending QC tasks, assigns them to operators
// with exclusive locks, and persists task state across restarts via an
// append-only transition log (§4.2).
package qcqueue

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"archivecore.io/core/internal/domain"
	"archivecore.io/core/internal/obs"
)

const lockDuration = 30 * time.Minute

// PageRef is the subset of a routed page the queue needs to create a
// task.
type PageRef struct {
	PageID     string
	DocType    domain.DocType
	ImageKey   string
	OCRText    string
	Fields     map[string]domain.FieldValue
}

// Queue is the QC task queue (§4.2).
type Queue struct {
	mu       sync.Mutex
	tasks    map[string]*domain.QCTask // by task_id
	byPage   map[string]string         // page_id -> task_id (non-terminal only)
	log      *transitionLog
	feedback *feedbackLog
	logger   *obs.ContextLogger
	now      func() time.Time
}

// Open rebuilds a Queue from its durable log and feedback directory,
// per §4.2 Persistence.
func Open(logPath, feedbackDir string) (*Queue, error) {
	log, err := openTransitionLog(logPath)
	if err != nil {
		return nil, fmt.Errorf("open transition log: %w", err)
	}
	fb, err := newFeedbackLog(feedbackDir)
	if err != nil {
		return nil, fmt.Errorf("open feedback log: %w", err)
	}
	projection, err := log.replay()
	if err != nil {
		return nil, fmt.Errorf("replay transition log: %w", err)
	}

	q := &Queue{
		tasks:    make(map[string]*domain.QCTask),
		byPage:   make(map[string]string),
		log:      log,
		feedback: fb,
		logger:   obs.New(nil).WithField("component", "qcqueue"),
		now:      time.Now,
	}
	for id, t := range projection {
		q.tasks[id] = t
		if !t.Status.Terminal() {
			q.byPage[t.PageID] = id
		}
	}
	return q, nil
}

// Close releases the underlying log files.
func (q *Queue) Close() error {
	if err := q.log.close(); err != nil {
		return err
	}
	return q.feedback.close()
}

func defaultPriority(severity domain.Severity) domain.Priority {
	switch severity {
	case domain.SeverityManual:
		return domain.PriorityHigh
	case domain.SeverityQC:
		return domain.PriorityMedium
	default:
		return domain.PriorityLow
	}
}

// Enqueue creates a task for a routed page, or returns the existing
// task id if the page already has a non-terminal task (§4.2 Public
// contract, idempotent on page_id).
func (q *Queue) Enqueue(page PageRef, severity domain.Severity, reasons []string) (string, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if existing, ok := q.byPage[page.PageID]; ok {
		return existing, nil
	}

	task := &domain.QCTask{
		TaskID:         uuid.NewString(),
		PageID:         page.PageID,
		Severity:       severity,
		Priority:       defaultPriority(severity),
		Status:         domain.TaskPending,
		CreatedAt:      q.now(),
		RoutingReasons: reasons,
		ImageKey:       page.ImageKey,
		OCRText:        page.OCRText,
		FieldsSnap:     page.Fields,
		DocType:        page.DocType,
	}
	if err := q.log.append(*task); err != nil {
		return "", fmt.Errorf("persist enqueue: %w", err)
	}
	q.tasks[task.TaskID] = task
	q.byPage[task.PageID] = task.TaskID
	q.logger.WithField("task_id", task.TaskID).WithField("page_id", page.PageID).Info("qc task enqueued")
	return task.TaskID, nil
}

// releaseExpiredLocked reassigns task back to pending if its lock has
// expired. Caller must hold q.mu.
func (q *Queue) releaseExpiredLocked(t *domain.QCTask) {
	if (t.Status == domain.TaskAssigned || t.Status == domain.TaskInProgress) && t.LockExpired(q.now()) {
		t.Status = domain.TaskPending
		t.LockHolder = ""
		t.LockExpiresAt = nil
		t.AssignedTo = ""
	}
}

// NextTask selects the highest-priority non-terminal task whose lock
// is free or expired, atomically assigns it to operatorID with a
// fresh lock, and transitions it to assigned (§4.2).
func (q *Queue) NextTask(operatorID string) (*domain.QCTask, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	var candidates []*domain.QCTask
	for _, t := range q.tasks {
		q.releaseExpiredLocked(t)
		if t.Status == domain.TaskPending {
			candidates = append(candidates, t)
		}
	}
	if len(candidates) == 0 {
		return nil, nil
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].Priority.Rank() != candidates[j].Priority.Rank() {
			return candidates[i].Priority.Rank() > candidates[j].Priority.Rank()
		}
		return candidates[i].CreatedAt.Before(candidates[j].CreatedAt)
	})

	chosen := candidates[0]
	expiry := q.now().Add(lockDuration)
	chosen.Status = domain.TaskAssigned
	chosen.AssignedTo = operatorID
	chosen.LockHolder = operatorID
	chosen.LockExpiresAt = &expiry

	if err := q.log.append(*chosen); err != nil {
		return nil, fmt.Errorf("persist assignment: %w", err)
	}
	q.logger.WithField("task_id", chosen.TaskID).WithField("operator", operatorID).Info("qc task assigned")
	out := *chosen
	return &out, nil
}

// StartTask transitions an assigned task to in_progress once its
// operator begins work on it, the middle state of the §4.2 task
// lifecycle between assignment and a terminal verdict.
func (q *Queue) StartTask(taskID, operatorID string) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	t, ok := q.tasks[taskID]
	if !ok {
		return domain.ErrNotFound
	}
	q.releaseExpiredLocked(t)

	if t.LockHolder != operatorID {
		return domain.ErrLockConflict
	}
	if t.Status != domain.TaskAssigned {
		return fmt.Errorf("%w: task %s is %s, not assigned", domain.ErrConflict, taskID, t.Status)
	}

	t.Status = domain.TaskInProgress
	if err := q.log.append(*t); err != nil {
		return fmt.Errorf("persist start: %w", err)
	}
	q.logger.WithField("task_id", taskID).WithField("operator", operatorID).Info("qc task started")
	return nil
}

// Submit applies a verdict to a task (§4.2). Feedback is appended only
// after the terminal status transition is committed, per §9's ordering
// fix.
func (q *Queue) Submit(taskID, operatorID string, verdict domain.Verdict) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	t, ok := q.tasks[taskID]
	if !ok {
		return domain.ErrNotFound
	}
	q.releaseExpiredLocked(t)

	if t.LockHolder != operatorID {
		return domain.ErrLockConflict
	}

	switch verdict.Action {
	case domain.ActionApprove, domain.ActionReject:
		if verdict.Action == domain.ActionApprove {
			t.Status = domain.TaskCompleted
		} else {
			t.Status = domain.TaskRejected
		}
		t.LockHolder = ""
		t.LockExpiresAt = nil
		delete(q.byPage, t.PageID)

		if err := q.log.append(*t); err != nil {
			return fmt.Errorf("persist terminal transition: %w", err)
		}

		rec := domain.FeedbackRecord{
			TaskID:             t.TaskID,
			PageID:             t.PageID,
			OperatorID:         operatorID,
			OriginalDocType:    t.DocType,
			CorrectedDocType:   verdict.CorrectedDocType,
			FieldCorrections:   verdict.FieldCorrections,
			IssueCategories:    verdict.IssueCategories,
			OperatorConfidence: verdict.OperatorConfidence,
			TimeSpentSeconds:   verdict.TimeSpentSeconds,
			Approved:           verdict.Action == domain.ActionApprove,
			Escalated:          false,
			Timestamp:          q.now(),
		}
		if err := q.feedback.append(rec); err != nil {
			return fmt.Errorf("persist feedback: %w", err)
		}

	case domain.ActionEscalate:
		t.Status = domain.TaskEscalated
		t.Priority = domain.PriorityCritical
		t.LockHolder = ""
		t.LockExpiresAt = nil
		delete(q.byPage, t.PageID)
		if err := q.log.append(*t); err != nil {
			return fmt.Errorf("persist escalation: %w", err)
		}

	case domain.ActionRelease:
		t.Status = domain.TaskPending
		t.LockHolder = ""
		t.LockExpiresAt = nil
		t.AssignedTo = ""
		if err := q.log.append(*t); err != nil {
			return fmt.Errorf("persist release: %w", err)
		}

	default:
		return fmt.Errorf("%w: unknown action %q", domain.ErrValidation, verdict.Action)
	}

	return nil
}

// Release clears a task's assignment without a feedback record.
func (q *Queue) Release(taskID, operatorID string) error {
	return q.Submit(taskID, operatorID, domain.Verdict{Action: domain.ActionRelease})
}

// Stats returns counts by status, severity, doc type and priority.
func (q *Queue) Stats() domain.QueueStats {
	q.mu.Lock()
	defer q.mu.Unlock()

	stats := domain.QueueStats{
		ByStatus:   make(map[domain.TaskStatus]int),
		BySeverity: make(map[domain.Severity]int),
		ByDocType:  make(map[domain.DocType]int),
		ByPriority: make(map[domain.Priority]int),
	}
	for _, t := range q.tasks {
		stats.ByStatus[t.Status]++
		stats.BySeverity[t.Severity]++
		stats.ByDocType[t.DocType]++
		stats.ByPriority[t.Priority]++
	}
	return stats
}

// Pending returns up to limit pending tasks, optionally filtered by
// severity, ordered by priority then FIFO, for the
// /api/qc/queue/pending endpoint.
func (q *Queue) Pending(severity domain.Severity, limit int) []domain.QCTask {
	q.mu.Lock()
	defer q.mu.Unlock()

	var out []domain.QCTask
	for _, t := range q.tasks {
		q.releaseExpiredLocked(t)
		if t.Status != domain.TaskPending {
			continue
		}
		if severity != "" && t.Severity != severity {
			continue
		}
		out = append(out, *t)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Priority.Rank() != out[j].Priority.Rank() {
			return out[i].Priority.Rank() > out[j].Priority.Rank()
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// FeedbackStats aggregates the whole feedback stream for
// /api/qc/feedback/stats.
func (q *Queue) FeedbackStats() (domain.FeedbackStats, error) {
	records, err := q.feedback.all()
	if err != nil {
		return domain.FeedbackStats{}, fmt.Errorf("read feedback stream: %w", err)
	}

	stats := domain.FeedbackStats{ByIssueCategory: map[string]int{}}
	var confSum, timeSum float64
	corrected := 0
	for _, r := range records {
		stats.TotalRecords++
		confSum += r.OperatorConfidence
		timeSum += float64(r.TimeSpentSeconds)
		switch {
		case r.Escalated:
			stats.EscalatedCount++
		case r.Approved:
			stats.ApprovedCount++
		default:
			stats.RejectedCount++
		}
		if len(r.FieldCorrections) > 0 || (r.CorrectedDocType != "" && r.CorrectedDocType != r.OriginalDocType) {
			corrected++
		}
		for _, cat := range r.IssueCategories {
			stats.ByIssueCategory[cat]++
		}
	}
	if stats.TotalRecords > 0 {
		stats.AvgConfidence = confSum / float64(stats.TotalRecords)
		stats.AvgTimeSpentSecs = timeSum / float64(stats.TotalRecords)
		stats.CorrectionRate = float64(corrected) / float64(stats.TotalRecords)
	}
	return stats, nil
}

// OperatorStats aggregates one operator's feedback history for
// /api/qc/operator/{id}/stats.
func (q *Queue) OperatorStats(operatorID string) (domain.OperatorStats, error) {
	records, err := q.feedback.all()
	if err != nil {
		return domain.OperatorStats{}, fmt.Errorf("read feedback stream: %w", err)
	}

	stats := domain.OperatorStats{OperatorID: operatorID}
	var confSum, timeSum float64
	for _, r := range records {
		if r.OperatorID != operatorID {
			continue
		}
		stats.TasksCompleted++
		confSum += r.OperatorConfidence
		timeSum += float64(r.TimeSpentSeconds)
		if r.Approved {
			stats.ApprovedCount++
		} else if !r.Escalated {
			stats.RejectedCount++
		}
	}
	if stats.TasksCompleted > 0 {
		stats.AvgConfidence = confSum / float64(stats.TasksCompleted)
		stats.AvgTimeSpentSecs = timeSum / float64(stats.TasksCompleted)
	}
	return stats, nil
}

// Get returns a task by id.
func (q *Queue) Get(taskID string) (domain.QCTask, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	t, ok := q.tasks[taskID]
	if !ok {
		return domain.QCTask{}, false
	}
	return *t, true
}
