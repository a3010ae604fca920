package metadb

// SearchResult is one ranked full-text search hit over the objects
// table (§4.3 Index, §4.5 full-text vector).
type SearchResult struct {
	ObjectKey string
	Rank      float64
}

// FullTextSearch ranks objects against a free-text query using the
// generated search_vector column (weight A: key/content_type, weight
// B: metadata values), combined with an optional AND-ed prefix filter
// on object_key for exact-field narrowing (e.g. owner/year/doc_type/
// batch_id directory prefixes), per §4.3's "exact-field filters
// combined by AND with free-text queries".
func (d *DB) FullTextSearch(query, keyPrefix string, limit, offset int) ([]SearchResult, error) {
	return d.Search(SearchQuery{Text: query, KeyPrefix: keyPrefix, Limit: limit, Offset: offset})
}

// SearchQuery combines a free-text query with the structured
// (owner, year, doc_type, batch_id, qc_status) filters, AND-ed
// together per §4.3. KeyPrefix covers owner/year/doc_type/batch_id
// since they are the canonical key's leading segments.
type SearchQuery struct {
	Text      string
	KeyPrefix string
	QCStatus  string
	Limit     int
	Offset    int
}

// Search ranks objects against q.Text, narrowed by q.KeyPrefix and
// q.QCStatus, by text relevance with a recency tiebreak (§4.3).
func (d *DB) Search(q SearchQuery) ([]SearchResult, error) {
	sql := `
		SELECT object_key, ts_rank(search_vector, plainto_tsquery('simple', ?)) AS rank
		FROM objects
		WHERE search_vector @@ plainto_tsquery('simple', ?)`
	args := []interface{}{q.Text, q.Text}
	if q.KeyPrefix != "" {
		sql += ` AND object_key LIKE ?`
		args = append(args, q.KeyPrefix+"%")
	}
	if q.QCStatus != "" {
		sql += ` AND qc_status = ?`
		args = append(args, q.QCStatus)
	}
	limit, offset := q.Limit, q.Offset
	sql += ` ORDER BY rank DESC, last_modified DESC`
	if limit > 0 {
		sql += ` LIMIT ?`
		args = append(args, limit)
	}
	if offset > 0 {
		sql += ` OFFSET ?`
		args = append(args, offset)
	}

	rows, err := d.gdb.Raw(sql, args...).Rows()
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []SearchResult
	for rows.Next() {
		var r SearchResult
		if err := rows.Scan(&r.ObjectKey, &r.Rank); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
