package merge

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"archivecore.io/core/internal/domain"
)

func TestBuildCSVUnionsFieldColumnsSorted(t *testing.T) {
	entries := []pageEntry{
		{PageID: "p1", ImageFile: "p1.png", QCStatus: domain.QCStatusApproved, HasOCR: true, OCRLength: 10,
			Fields: map[string]domain.FieldValue{"total": {Value: "42.00"}}},
		{PageID: "p2", ImageFile: "p2.png", QCStatus: domain.QCStatusRejected, HasOCR: false, OCRLength: 0,
			Fields: map[string]domain.FieldValue{"vendor": {Value: "Acme"}}},
	}
	out, err := buildCSV(entries)
	require.NoError(t, err)
	csv := string(out)
	assert.Contains(t, csv, "page_id,image_file,qc_status,has_ocr,ocr_length,total,vendor")
	assert.Contains(t, csv, "p1,p1.png,approved,true,10,42.00,")
	assert.Contains(t, csv, "p2,p2.png,rejected,false,0,,Acme")
}

func TestBuildCSVIsDeterministicAcrossRuns(t *testing.T) {
	entries := []pageEntry{
		{PageID: "p1", Fields: map[string]domain.FieldValue{"b": {Value: "2"}, "a": {Value: "1"}}},
	}
	out1, err := buildCSV(entries)
	require.NoError(t, err)
	out2, err := buildCSV(entries)
	require.NoError(t, err)
	assert.Equal(t, out1, out2)
}

func TestBuildJSONSidecarIsDeterministicAcrossRuns(t *testing.T) {
	batch := domain.Batch{BatchKey: domain.BatchKey{Owner: "acme", Year: 2024, DocType: domain.DocTypeInvoice, BatchID: "b1"}}
	entries := []pageEntry{{PageID: "p1", QCStatus: domain.QCStatusApproved}}
	s := buildSummary(entries, 0)

	out1, err := buildJSONSidecar(batch, "invoice_b1.pdf", entries, s)
	require.NoError(t, err)
	out2, err := buildJSONSidecar(batch, "invoice_b1.pdf", entries, s)
	require.NoError(t, err)
	assert.Equal(t, out1, out2)
}

func TestBuildSummaryCountsByStatusAndSkipped(t *testing.T) {
	entries := []pageEntry{
		{QCStatus: domain.QCStatusApproved},
		{QCStatus: domain.QCStatusApproved},
		{QCStatus: domain.QCStatusRejected},
	}
	s := buildSummary(entries, 2)
	assert.Equal(t, 2, s.Approved)
	assert.Equal(t, 1, s.Rejected)
	assert.Equal(t, 2, s.SkippedPages)
}
