package metadb

import (
	"encoding/json"

	"archivecore.io/core/internal/domain"
)

// InsertAudit appends an audit row. Inserts are append-only; there is
// no Update/Delete path on AuditRow outside CleanupExpiredAudit
// (§4.6 Audit).
func (d *DB) InsertAudit(e domain.AuditEvent) error {
	meta, err := json.Marshal(e.Metadata)
	if err != nil {
		return err
	}
	row := AuditRow{
		Timestamp:    e.Timestamp,
		UserID:       e.UserID,
		Username:     e.Username,
		Action:       string(e.Action),
		ResourceType: e.ResourceType,
		ResourceID:   e.ResourceID,
		Allowed:      e.Allowed,
		IPAddress:    e.IPAddress,
		SessionID:    e.SessionID,
		UserAgent:    e.UserAgent,
		MetadataJSON: string(meta),
	}
	return d.gdb.Create(&row).Error
}

// AuditSearchCriteria filters an audit query, mirroring the teacher's
// AuditSearchCriteria shape (auth/user.go).
type AuditSearchCriteria struct {
	UserID   string
	Action   string
	Resource string
	Limit    int
	Offset   int
}

// QueryAudit returns audit rows matching criteria, newest first.
func (d *DB) QueryAudit(c AuditSearchCriteria) ([]domain.AuditEvent, error) {
	q := d.gdb.Order("timestamp desc")
	if c.UserID != "" {
		q = q.Where("user_id = ?", c.UserID)
	}
	if c.Action != "" {
		q = q.Where("action = ?", c.Action)
	}
	if c.Resource != "" {
		q = q.Where("resource_type = ?", c.Resource)
	}
	if c.Limit > 0 {
		q = q.Limit(c.Limit)
	}
	if c.Offset > 0 {
		q = q.Offset(c.Offset)
	}
	var rows []AuditRow
	if err := q.Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]domain.AuditEvent, 0, len(rows))
	for _, r := range rows {
		meta := map[string]string{}
		if r.MetadataJSON != "" {
			_ = json.Unmarshal([]byte(r.MetadataJSON), &meta)
		}
		out = append(out, domain.AuditEvent{
			Timestamp:    r.Timestamp,
			UserID:       r.UserID,
			Username:     r.Username,
			Action:       domain.AuditAction(r.Action),
			ResourceType: r.ResourceType,
			ResourceID:   r.ResourceID,
			Allowed:      r.Allowed,
			IPAddress:    r.IPAddress,
			SessionID:    r.SessionID,
			UserAgent:    r.UserAgent,
			Metadata:     meta,
		})
	}
	return out, nil
}

// CleanupExpiredAudit deletes audit rows older than retentionDays,
// never deleting the most recent event per user (§4.6 Audit).
func (d *DB) CleanupExpiredAudit(retentionDays int) error {
	return d.gdb.Exec(`
		DELETE FROM audit
		WHERE timestamp < NOW() - (? * INTERVAL '1 day')
		AND id NOT IN (
			SELECT DISTINCT ON (user_id) id FROM audit ORDER BY user_id, timestamp DESC
		)`, retentionDays).Error
}
