package metadb

import (
	"encoding/json"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"archivecore.io/core/internal/domain"
)

func toObjectRow(o domain.StoredObject) (ObjectRow, error) {
	meta, err := json.Marshal(o.Metadata)
	if err != nil {
		return ObjectRow{}, err
	}
	return ObjectRow{
		ObjectKey:      o.ObjectKey,
		Size:           o.Size,
		ContentType:    o.ContentType,
		ETag:           o.ETag,
		VersionID:      o.VersionID,
		StorageBackend: string(o.StorageBackend),
		StorageClass:   o.StorageClass,
		MetadataJSON:   string(meta),
		LastModified:   o.LastModified,
		QCStatus:       o.QCStatus,
	}, nil
}

func fromObjectRow(r ObjectRow) (domain.StoredObject, error) {
	meta := map[string]string{}
	if r.MetadataJSON != "" {
		if err := json.Unmarshal([]byte(r.MetadataJSON), &meta); err != nil {
			return domain.StoredObject{}, err
		}
	}
	return domain.StoredObject{
		ObjectKey:      r.ObjectKey,
		Size:           r.Size,
		ContentType:    r.ContentType,
		ETag:           r.ETag,
		VersionID:      r.VersionID,
		StorageBackend: domain.StorageBackend(r.StorageBackend),
		StorageClass:   r.StorageClass,
		Metadata:       meta,
		LastModified:   r.LastModified,
		QCStatus:       r.QCStatus,
	}, nil
}

// UpsertObject writes or replaces the current-metadata row for key,
// used by put() after the backend write has durably succeeded (§4.5
// Consistency).
func (d *DB) UpsertObject(o domain.StoredObject) error {
	row, err := toObjectRow(o)
	if err != nil {
		return fmt.Errorf("encode object row: %w", err)
	}
	return d.gdb.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "object_key"}},
		UpdateAll: true,
	}).Create(&row).Error
}

// GetObject returns the current metadata row for key.
func (d *DB) GetObject(key string) (domain.StoredObject, error) {
	var row ObjectRow
	if err := d.gdb.First(&row, "object_key = ?", key).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return domain.StoredObject{}, domain.ErrNotFound
		}
		return domain.StoredObject{}, err
	}
	return fromObjectRow(row)
}

// DeleteObject removes an object's current-metadata row.
func (d *DB) DeleteObject(key string) error {
	return d.gdb.Delete(&ObjectRow{}, "object_key = ?", key).Error
}

// ListObjects returns objects whose key starts with prefix, ordered by
// last_modified desc, honoring limit/offset (§4.5 required indices).
func (d *DB) ListObjects(prefix string, limit, offset int) ([]domain.StoredObject, error) {
	q := d.gdb.Order("last_modified desc")
	if prefix != "" {
		q = q.Where("object_key LIKE ?", prefix+"%")
	}
	if limit > 0 {
		q = q.Limit(limit)
	}
	if offset > 0 {
		q = q.Offset(offset)
	}
	var rows []ObjectRow
	if err := q.Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]domain.StoredObject, 0, len(rows))
	for _, r := range rows {
		o, err := fromObjectRow(r)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, nil
}
