// Package metadb is the archive core's metadata database: the
// objects, versions, audit and hooks tables behind the storage
// abstraction (§4.5), built on gorm.io/gorm over PostgreSQL following
// the teacher's db/postgres.go connection and migration conventions.
package metadb

import "time"

// ObjectRow is the current-metadata row for a stored object. The
// SearchVector column is a generated tsvector (key + content_type at
// weight A, metadata values at weight B) added at migration time as a
// stored generated column; it is not populated from Go, only queried.
type ObjectRow struct {
	ObjectKey      string `gorm:"primaryKey;column:object_key"`
	Size           int64
	ContentType    string `gorm:"column:content_type;index"`
	ETag           string `gorm:"column:etag"`
	VersionID      string `gorm:"column:version_id"`
	StorageBackend string `gorm:"column:storage_backend"`
	StorageClass   string `gorm:"column:storage_class"`
	MetadataJSON   string `gorm:"column:metadata_json;type:text"`
	LastModified   time.Time `gorm:"column:last_modified;index:idx_objects_last_modified,sort:desc"`

	// QCStatus supports the structured index's filter over
	// (owner, year, doc_type, batch_id, qc_status); the first four are
	// covered by the object_key prefix, qc_status needs its own column.
	QCStatus string `gorm:"column:qc_status;index"`
}

func (ObjectRow) TableName() string { return "objects" }

// VersionRow is one historical snapshot of an object.
type VersionRow struct {
	ID        uint   `gorm:"primaryKey"`
	ObjectKey string `gorm:"column:object_key;index:idx_versions_object_key"`
	VersionID string `gorm:"column:version_id"`
	Size      int64
	ETag      string `gorm:"column:etag"`
	IsLatest  bool   `gorm:"column:is_latest"`
	CreatedBy string `gorm:"column:created_by"`
	Comment   string
	TagsCSV   string    `gorm:"column:tags_csv"`
	CreatedAt time.Time `gorm:"column:created_at;index"`
}

func (VersionRow) TableName() string { return "versions" }

// AuditRow is one append-only audit log entry.
type AuditRow struct {
	ID           uint `gorm:"primaryKey"`
	Timestamp    time.Time `gorm:"index"`
	UserID       string    `gorm:"column:user_id;index"`
	Username     string
	Action       string `gorm:"index"`
	ResourceType string `gorm:"column:resource_type"`
	ResourceID   string `gorm:"column:resource_id"`
	Allowed      bool
	IPAddress    string `gorm:"column:ip_address"`
	SessionID    string `gorm:"column:session_id"`
	UserAgent    string `gorm:"column:user_agent"`
	MetadataJSON string `gorm:"column:metadata_json;type:text"`
}

func (AuditRow) TableName() string { return "audit" }

// HookExecutionRow is one hook delivery execution record.
type HookExecutionRow struct {
	ID            uint `gorm:"primaryKey"`
	HookName      string `gorm:"column:hook_name;index"`
	Event         string
	ObjectKey     string `gorm:"column:object_key"`
	Success       bool
	ExecutionMS   int64 `gorm:"column:execution_ms"`
	Response      string `gorm:"type:text"`
	Error         string `gorm:"type:text"`
	FiredAt       time.Time `gorm:"column:fired_at;index"`
}

func (HookExecutionRow) TableName() string { return "hooks" }

// UserRow is a principal record. RolesCSV and AttributesJSON are flat
// storage for User's slice/map fields, following the same
// encode-to-text convention as ObjectRow.MetadataJSON.
type UserRow struct {
	UserID         string `gorm:"primaryKey;column:user_id"`
	Username       string `gorm:"column:username;uniqueIndex"`
	PasswordHash   string `gorm:"column:password_hash"`
	Department     string `gorm:"column:department;index"`
	ClearanceLevel int    `gorm:"column:clearance_level"`
	RolesCSV       string `gorm:"column:roles_csv"`
	Email          string `gorm:"column:email"`
	Enabled        bool   `gorm:"column:enabled"`
	AttributesJSON string `gorm:"column:attributes_json;type:text"`
	FailedLogins   int    `gorm:"column:failed_logins"`
	CreatedAt      time.Time `gorm:"column:created_at"`
	UpdatedAt      time.Time `gorm:"column:updated_at"`
}

func (UserRow) TableName() string { return "users" }

// RoutingRow is one routing engine verdict, logged at indexing time so
// /api/routing/* can aggregate over history without replaying the
// archive (§4.1).
type RoutingRow struct {
	ID         uint      `gorm:"primaryKey"`
	PageID     string    `gorm:"column:page_id;index"`
	DocType    string    `gorm:"column:doc_type;index"`
	Severity   string    `gorm:"column:severity;index"`
	ReasonsCSV string    `gorm:"column:reasons_csv"`
	Operator   string    `gorm:"column:operator;index"`
	CreatedAt  time.Time `gorm:"column:created_at;index"`
}

func (RoutingRow) TableName() string { return "routing_log" }
