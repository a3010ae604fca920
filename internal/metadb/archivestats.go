package metadb

import (
	"encoding/json"
	"strconv"
	"strings"

	"archivecore.io/core/internal/domain"
)

func (d *DB) archiveScan(f domain.ArchiveFilter) ([]ObjectRow, error) {
	q := d.gdb.Model(&ObjectRow{})
	var prefix string
	if f.Owner != "" {
		prefix = domain.Slugify(f.Owner) + "/"
		if f.Year != 0 {
			prefix += strconv.Itoa(f.Year) + "/"
			if f.DocType != "" {
				prefix += domain.Slugify(string(f.DocType)) + "/"
			}
		}
	}
	if prefix != "" {
		q = q.Where("object_key LIKE ?", prefix+"%")
	}
	var rows []ObjectRow
	if err := q.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// ArchiveStats tallies pages by owner, year and doc type, one row per
// page since only the JSON sidecar key is indexed per page (§4.3, §4.5).
func (d *DB) ArchiveStats(f domain.ArchiveFilter) (domain.ArchiveStats, error) {
	rows, err := d.archiveScan(f)
	if err != nil {
		return domain.ArchiveStats{}, err
	}
	stats := domain.ArchiveStats{ByOwner: map[string]int{}, ByYear: map[int]int{}, ByDocType: map[domain.DocType]int{}}
	for _, r := range rows {
		owner, docType, year := decodeObjectRowFacets(r)
		stats.TotalPages++
		if owner != "" {
			stats.ByOwner[owner]++
		}
		if docType != "" {
			stats.ByDocType[docType]++
		}
		if year != 0 {
			stats.ByYear[year]++
		}
	}
	return stats, nil
}

// Owners returns the distinct set of owner names among indexed pages.
func (d *DB) Owners() ([]string, error) {
	rows, err := d.archiveScan(domain.ArchiveFilter{})
	if err != nil {
		return nil, err
	}
	seen := map[string]bool{}
	var out []string
	for _, r := range rows {
		owner, _, _ := decodeObjectRowFacets(r)
		if owner != "" && !seen[owner] {
			seen[owner] = true
			out = append(out, owner)
		}
	}
	return out, nil
}

// DocTypes returns the distinct doc types among indexed pages.
func (d *DB) DocTypes() ([]domain.DocType, error) {
	rows, err := d.archiveScan(domain.ArchiveFilter{})
	if err != nil {
		return nil, err
	}
	seen := map[domain.DocType]bool{}
	var out []domain.DocType
	for _, r := range rows {
		_, docType, _ := decodeObjectRowFacets(r)
		if docType != "" && !seen[docType] {
			seen[docType] = true
			out = append(out, docType)
		}
	}
	return out, nil
}

// Years returns the distinct years among indexed pages.
func (d *DB) Years() ([]int, error) {
	rows, err := d.archiveScan(domain.ArchiveFilter{})
	if err != nil {
		return nil, err
	}
	seen := map[int]bool{}
	var out []int
	for _, r := range rows {
		_, _, year := decodeObjectRowFacets(r)
		if year != 0 && !seen[year] {
			seen[year] = true
			out = append(out, year)
		}
	}
	return out, nil
}

// decodeObjectRowFacets pulls owner and doc_type from the row's
// metadata JSON and the year from the object key's second path
// segment (the canonical owner/year/doc_type/batch_id/page_id layout).
func decodeObjectRowFacets(r ObjectRow) (owner string, docType domain.DocType, year int) {
	meta := map[string]string{}
	if r.MetadataJSON != "" {
		_ = json.Unmarshal([]byte(r.MetadataJSON), &meta)
	}
	owner = meta["owner"]
	docType = domain.DocType(meta["doc_type"])
	segments := strings.Split(r.ObjectKey, "/")
	if len(segments) > 1 {
		if y, err := strconv.Atoi(segments[1]); err == nil {
			year = y
		}
	}
	return owner, docType, year
}
