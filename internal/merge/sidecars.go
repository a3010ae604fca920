package merge

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"sort"
	"strconv"

	"archivecore.io/core/internal/domain"
)

// pageEntry is one page's contribution to both sidecars.
type pageEntry struct {
	PageID    string
	ImageFile string
	QCStatus  domain.QCStatus
	Fields    map[string]domain.FieldValue
	HasOCR    bool
	OCRLength int
}

// summary is the batch-level roll-up (§4.4 JSON sidecar).
type summary struct {
	Approved          int            `json:"approved"`
	Rejected          int            `json:"rejected"`
	Pending           int            `json:"pending"`
	SkippedPages      int            `json:"skipped_pages"`
	FieldExtractCount map[string]int `json:"field_extraction_counts"`
}

func buildSummary(entries []pageEntry, skipped int) summary {
	s := summary{SkippedPages: skipped, FieldExtractCount: map[string]int{}}
	for _, e := range entries {
		switch e.QCStatus {
		case domain.QCStatusApproved:
			s.Approved++
		case domain.QCStatusRejected:
			s.Rejected++
		default:
			s.Pending++
		}
		for name := range e.Fields {
			s.FieldExtractCount[name]++
		}
	}
	return s
}

type jsonBatchSummary struct {
	Owner     string  `json:"owner"`
	Year      int     `json:"year"`
	DocType   string  `json:"doc_type"`
	BatchID   string  `json:"batch_id"`
	CreatedAt string  `json:"created_at"`
	PageCount int     `json:"page_count"`
	PDFFile   string  `json:"pdf_file"`
}

type jsonPageEntry struct {
	PageID    string                       `json:"page_id"`
	ImageFile string                       `json:"image_file"`
	QCStatus  domain.QCStatus              `json:"qc_status"`
	Fields    map[string]domain.FieldValue `json:"fields"`
	OCRLength int                          `json:"ocr_length"`
	HasOCR    bool                         `json:"has_ocr"`
}

type jsonSidecar struct {
	Batch   jsonBatchSummary `json:"batch"`
	Pages   []jsonPageEntry  `json:"pages"`
	Summary summary          `json:"summary"`
}

// buildJSONSidecar renders the batch/pages/summary document. Field
// order is fixed by struct tags and pages retain the caller's
// (page_id-ascending) order, so re-running on an unchanged batch
// yields byte-identical output (§4.4 Idempotence).
func buildJSONSidecar(batch domain.Batch, pdfFile string, entries []pageEntry, s summary) ([]byte, error) {
	doc := jsonSidecar{
		Batch: jsonBatchSummary{
			Owner:     batch.Owner,
			Year:      batch.Year,
			DocType:   string(batch.DocType),
			BatchID:   batch.BatchID,
			CreatedAt: batch.CreatedAt.UTC().Format("2006-01-02T15:04:05Z"),
			PageCount: len(entries),
			PDFFile:   pdfFile,
		},
		Summary: s,
	}
	for _, e := range entries {
		doc.Pages = append(doc.Pages, jsonPageEntry{
			PageID:    e.PageID,
			ImageFile: e.ImageFile,
			QCStatus:  e.QCStatus,
			Fields:    e.Fields,
			OCRLength: e.OCRLength,
			HasOCR:    e.HasOCR,
		})
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(doc); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// buildCSV renders one row per page, columns being the fixed set plus
// the union of every field name seen, sorted for stable column order
// (§4.4 CSV sidecar, Idempotence).
func buildCSV(entries []pageEntry) ([]byte, error) {
	fieldNames := map[string]bool{}
	for _, e := range entries {
		for name := range e.Fields {
			fieldNames[name] = true
		}
	}
	columns := make([]string, 0, len(fieldNames))
	for name := range fieldNames {
		columns = append(columns, name)
	}
	sort.Strings(columns)

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	header := append([]string{"page_id", "image_file", "qc_status", "has_ocr", "ocr_length"}, columns...)
	if err := w.Write(header); err != nil {
		return nil, err
	}

	for _, e := range entries {
		row := []string{
			e.PageID,
			e.ImageFile,
			string(e.QCStatus),
			boolString(e.HasOCR),
			strconv.Itoa(e.OCRLength),
		}
		for _, col := range columns {
			row = append(row, e.Fields[col].Value)
		}
		if err := w.Write(row); err != nil {
			return nil, err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func boolString(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
