package qcqueue

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"archivecore.io/core/internal/domain"
)

func newTestQueue(t *testing.T) *Queue {
	t.Helper()
	dir := t.TempDir()
	q, err := Open(filepath.Join(dir, "qc_queue.jsonl"), filepath.Join(dir, "feedback"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = q.Close() })
	return q
}

func TestEnqueueIsIdempotentOnPageID(t *testing.T) {
	q := newTestQueue(t)
	page := PageRef{PageID: "p1", DocType: domain.DocTypeInvoice}

	id1, err := q.Enqueue(page, domain.SeverityQC, []string{"low_conf"})
	require.NoError(t, err)
	id2, err := q.Enqueue(page, domain.SeverityQC, []string{"low_conf"})
	require.NoError(t, err)
	assert.Equal(t, id1, id2)
}

func TestNextTaskLocksAndLockConflict(t *testing.T) {
	q := newTestQueue(t)
	page := PageRef{PageID: "p1", DocType: domain.DocTypeInvoice}
	taskID, err := q.Enqueue(page, domain.SeverityQC, nil)
	require.NoError(t, err)

	task, err := q.NextTask("alice")
	require.NoError(t, err)
	require.NotNil(t, task)
	assert.Equal(t, taskID, task.TaskID)
	assert.Equal(t, "alice", task.LockHolder)

	// bob must not receive the same task while alice holds the lock.
	again, err := q.NextTask("bob")
	require.NoError(t, err)
	assert.Nil(t, again)

	err = q.Submit(taskID, "bob", domain.Verdict{Action: domain.ActionApprove})
	assert.ErrorIs(t, err, domain.ErrLockConflict)
}

func TestSubmitApproveWritesFeedbackAfterTerminalTransition(t *testing.T) {
	q := newTestQueue(t)
	page := PageRef{PageID: "p1", DocType: domain.DocTypeInvoice}
	taskID, err := q.Enqueue(page, domain.SeverityQC, nil)
	require.NoError(t, err)

	task, err := q.NextTask("alice")
	require.NoError(t, err)
	require.NotNil(t, task)

	err = q.Submit(taskID, "alice", domain.Verdict{
		Approved:           true,
		OperatorConfidence: 0.95,
		TimeSpentSeconds:   42,
		Action:             domain.ActionApprove,
	})
	require.NoError(t, err)

	got, ok := q.Get(taskID)
	require.True(t, ok)
	assert.Equal(t, domain.TaskCompleted, got.Status)
	assert.True(t, got.Status.Terminal())
}

func TestStartTaskTransitionsAssignedToInProgress(t *testing.T) {
	q := newTestQueue(t)
	page := PageRef{PageID: "p1", DocType: domain.DocTypeInvoice}
	taskID, err := q.Enqueue(page, domain.SeverityQC, nil)
	require.NoError(t, err)

	_, err = q.NextTask("alice")
	require.NoError(t, err)

	require.NoError(t, q.StartTask(taskID, "alice"))

	got, ok := q.Get(taskID)
	require.True(t, ok)
	assert.Equal(t, domain.TaskInProgress, got.Status)

	err = q.StartTask(taskID, "bob")
	assert.ErrorIs(t, err, domain.ErrLockConflict)

	require.NoError(t, q.Submit(taskID, "alice", domain.Verdict{Action: domain.ActionApprove}))
	got, ok = q.Get(taskID)
	require.True(t, ok)
	assert.Equal(t, domain.TaskCompleted, got.Status)
}

func TestStartTaskRejectsAlreadyStartedTask(t *testing.T) {
	q := newTestQueue(t)
	page := PageRef{PageID: "p1", DocType: domain.DocTypeInvoice}
	taskID, err := q.Enqueue(page, domain.SeverityQC, nil)
	require.NoError(t, err)

	_, err = q.NextTask("alice")
	require.NoError(t, err)
	require.NoError(t, q.StartTask(taskID, "alice"))

	err = q.StartTask(taskID, "alice")
	assert.ErrorIs(t, err, domain.ErrConflict)
}

func TestEscalatePromotesToCriticalAndReleasesLock(t *testing.T) {
	q := newTestQueue(t)
	page := PageRef{PageID: "p1", DocType: domain.DocTypeInvoice}
	taskID, err := q.Enqueue(page, domain.SeverityManual, nil)
	require.NoError(t, err)

	_, err = q.NextTask("alice")
	require.NoError(t, err)

	err = q.Submit(taskID, "alice", domain.Verdict{Action: domain.ActionEscalate})
	require.NoError(t, err)

	got, ok := q.Get(taskID)
	require.True(t, ok)
	assert.Equal(t, domain.TaskEscalated, got.Status)
	assert.Equal(t, domain.PriorityCritical, got.Priority)
	assert.Empty(t, got.LockHolder)
}
