package metadb

import (
	"strings"
	"time"

	"gorm.io/gorm"

	"archivecore.io/core/internal/domain"
)

// InsertRouting logs one routing verdict (§4.1).
func (d *DB) InsertRouting(r domain.RoutingRecord) error {
	row := RoutingRow{
		PageID:     r.PageID,
		DocType:    string(r.DocType),
		Severity:   string(r.Severity),
		ReasonsCSV: strings.Join(r.Reasons, ","),
		Operator:   r.Operator,
		CreatedAt:  r.CreatedAt,
	}
	return d.gdb.Create(&row).Error
}

// RoutingFilter narrows the summary query by §6's
// days/doc_type/severity/operator query parameters.
type RoutingFilter struct {
	Days     int
	DocType  string
	Severity string
	Operator string
}

func applyRoutingFilter(q *gorm.DB, f RoutingFilter) *gorm.DB {
	if f.Days > 0 {
		q = q.Where("created_at >= ?", time.Now().AddDate(0, 0, -f.Days))
	}
	if f.DocType != "" {
		q = q.Where("doc_type = ?", f.DocType)
	}
	if f.Severity != "" {
		q = q.Where("severity = ?", f.Severity)
	}
	if f.Operator != "" {
		q = q.Where("operator = ?", f.Operator)
	}
	return q
}

// RoutingSummary aggregates counts by severity and doc type over the
// trailing f.Days days (0 means unbounded), narrowed by f.DocType/
// f.Severity/f.Operator when set.
func (d *DB) RoutingSummary(f RoutingFilter) (domain.RoutingSummary, error) {
	q := d.gdb.Model(&RoutingRow{})
	q = applyRoutingFilter(q, f)

	var rows []RoutingRow
	if err := q.Find(&rows).Error; err != nil {
		return domain.RoutingSummary{}, err
	}

	summary := domain.RoutingSummary{
		BySeverity: map[domain.Severity]int{},
		ByDocType:  map[domain.DocType]int{},
	}
	for _, r := range rows {
		summary.TotalPages++
		summary.BySeverity[domain.Severity(r.Severity)]++
		summary.ByDocType[domain.DocType(r.DocType)]++
	}
	return summary, nil
}

// RoutingRecent returns the most recent routing verdicts, newest
// first, capped at limit.
func (d *DB) RoutingRecent(limit int) ([]domain.RoutingRecord, error) {
	if limit <= 0 || limit > 1000 {
		limit = 100
	}
	var rows []RoutingRow
	if err := d.gdb.Order("created_at desc").Limit(limit).Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]domain.RoutingRecord, 0, len(rows))
	for _, r := range rows {
		out = append(out, fromRoutingRow(r))
	}
	return out, nil
}

// RoutingTrends buckets routing verdicts into daily by-severity counts
// over the trailing days days.
func (d *DB) RoutingTrends(days int) ([]domain.RoutingTrendPoint, error) {
	if days <= 0 {
		days = 30
	}
	since := time.Now().AddDate(0, 0, -days)
	var rows []RoutingRow
	if err := d.gdb.Where("created_at >= ?", since).Find(&rows).Error; err != nil {
		return nil, err
	}

	byDay := map[string]map[domain.Severity]int{}
	for _, r := range rows {
		day := r.CreatedAt.Format("2006-01-02")
		if byDay[day] == nil {
			byDay[day] = map[domain.Severity]int{}
		}
		byDay[day][domain.Severity(r.Severity)]++
	}

	out := make([]domain.RoutingTrendPoint, 0, len(byDay))
	for day, counts := range byDay {
		out = append(out, domain.RoutingTrendPoint{Date: day, BySeverity: counts})
	}
	return out, nil
}

func fromRoutingRow(r RoutingRow) domain.RoutingRecord {
	var reasons []string
	if r.ReasonsCSV != "" {
		reasons = strings.Split(r.ReasonsCSV, ",")
	}
	return domain.RoutingRecord{
		PageID:    r.PageID,
		DocType:   domain.DocType(r.DocType),
		Severity:  domain.Severity(r.Severity),
		Reasons:   reasons,
		Operator:  r.Operator,
		CreatedAt: r.CreatedAt,
	}
}
