package metadb

import (
	"strings"

	"gorm.io/gorm"

	"archivecore.io/core/internal/domain"
)

// InsertVersion appends a version row and, if v.IsLatest, clears the
// is_latest flag on every other version of the same key inside the
// same transaction, preserving the §3 invariant that exactly one
// version per key has is_latest = true.
func (d *DB) InsertVersion(v domain.Version) error {
	row := VersionRow{
		ObjectKey: v.ObjectKey,
		VersionID: v.VersionID,
		Size:      v.Size,
		ETag:      v.ETag,
		IsLatest:  v.IsLatest,
		CreatedBy: v.CreatedBy,
		Comment:   v.Comment,
		TagsCSV:   strings.Join(v.Tags, ","),
		CreatedAt: v.CreatedAt,
	}
	return d.gdb.Transaction(func(tx *gorm.DB) error {
		if v.IsLatest {
			if err := tx.Model(&VersionRow{}).
				Where("object_key = ?", v.ObjectKey).
				Update("is_latest", false).Error; err != nil {
				return err
			}
		}
		return tx.Create(&row).Error
	})
}

// ListVersions returns every version of key, newest first, matching
// §4.5's list_versions(key) contract.
func (d *DB) ListVersions(key string) ([]domain.Version, error) {
	var rows []VersionRow
	if err := d.gdb.Where("object_key = ?", key).Order("created_at desc").Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]domain.Version, 0, len(rows))
	for _, r := range rows {
		out = append(out, fromVersionRow(r))
	}
	return out, nil
}

// PruneVersions deletes untagged versions beyond the newest
// maxVersions for key, never deleting tagged versions (§3 Pruning).
func (d *DB) PruneVersions(key string, maxVersions int) error {
	versions, err := d.ListVersions(key)
	if err != nil {
		return err
	}
	if len(versions) <= maxVersions {
		return nil
	}
	var toDelete []string
	kept := 0
	for _, v := range versions {
		if kept < maxVersions || v.HasTag("keep") || len(v.Tags) > 0 {
			kept++
			continue
		}
		toDelete = append(toDelete, v.VersionID)
	}
	if len(toDelete) == 0 {
		return nil
	}
	return d.gdb.Where("object_key = ? AND version_id IN ?", key, toDelete).Delete(&VersionRow{}).Error
}

func fromVersionRow(r VersionRow) domain.Version {
	var tags []string
	if r.TagsCSV != "" {
		tags = strings.Split(r.TagsCSV, ",")
	}
	return domain.Version{
		ObjectKey: r.ObjectKey,
		VersionID: r.VersionID,
		Size:      r.Size,
		ETag:      r.ETag,
		IsLatest:  r.IsLatest,
		CreatedBy: r.CreatedBy,
		Comment:   r.Comment,
		Tags:      tags,
		CreatedAt: r.CreatedAt,
	}
}
