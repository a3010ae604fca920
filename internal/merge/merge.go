// Package merge is the batch merger: for a sealed batch it produces a
// PDF, a JSON metadata sidecar, and a CSV sidecar as sibling artefacts
// (§4.4).
package merge

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sort"
	"time"

	"archivecore.io/core/internal/archive"
	"archivecore.io/core/internal/domain"
	"archivecore.io/core/internal/merge/pdf"
	"archivecore.io/core/internal/obs"
	"archivecore.io/core/internal/storage"
)

// PageSource lists every page belonging to a batch, e.g. backed by
// the archive organiser's index.
type PageSource interface {
	ListBatchPages(ctx context.Context, key domain.BatchKey) ([]domain.Page, error)
}

// Merger assembles sealed batches into their merged artefacts.
type Merger struct {
	backend storage.Backend
	pages   PageSource
	logger  *obs.ContextLogger
}

// New builds a Merger over backend for artefact reads/writes and
// pages for batch membership lookups.
func New(backend storage.Backend, pages PageSource, logger *obs.ContextLogger) *Merger {
	return &Merger{backend: backend, pages: pages, logger: logger}
}

// Result is the outcome of a successful Merge.
type Result struct {
	Batch        domain.Batch
	SkippedPages int
}

// Merge produces the batch's three sibling artefacts. Every page in
// the batch must have a terminal QC status (approved or rejected);
// otherwise the merge aborts with domain.ErrBatchNotReady (§4.4
// Ordering). Re-running Merge on an unchanged batch yields byte
// identical JSON/CSV sidecars and a semantically equivalent PDF
// (§4.4 Idempotence).
func (m *Merger) Merge(ctx context.Context, batch domain.Batch) (Result, error) {
	pages, err := m.pages.ListBatchPages(ctx, batch.BatchKey)
	if err != nil {
		return Result{}, fmt.Errorf("list batch pages: %w", err)
	}
	for _, p := range pages {
		if p.QCStatus != domain.QCStatusApproved && p.QCStatus != domain.QCStatusRejected {
			return Result{}, fmt.Errorf("%w: page %s has qc_status %s", domain.ErrBatchNotReady, p.PageID, p.QCStatus)
		}
	}

	sort.Slice(pages, func(i, j int) bool { return pages[i].PageID < pages[j].PageID })

	entries := make([]pageEntry, 0, len(pages))
	var pdfPages []pdf.Page
	skipped := 0

	for _, p := range pages {
		entry := pageEntry{
			PageID:    p.PageID,
			ImageFile: p.Refs.ImageKey,
			QCStatus:  p.QCStatus,
			Fields:    p.Fields,
			HasOCR:    p.OCRText != "",
			OCRLength: len(p.OCRText),
		}

		img, _, err := m.backend.Get(ctx, p.Refs.ImageKey, "")
		if err != nil {
			m.logger.WithError(err).WithField("page_id", p.PageID).Warn("page image unreadable, skipping from pdf")
			entry.HasOCR = false
			entry.OCRLength = 0
			skipped++
			entries = append(entries, entry)
			continue
		}
		data, err := io.ReadAll(img)
		img.Close()
		if err != nil {
			skipped++
			entries = append(entries, entry)
			continue
		}
		pdfPages = append(pdfPages, pdf.Page{PageID: p.PageID, Image: data, OCRText: p.OCRText})
		entries = append(entries, entry)
	}

	prefix := archive.BatchPrefix(batch.BatchKey)
	baseName := fmt.Sprintf("%s_%s", batch.DocType, batch.BatchID)
	pdfKey := prefix + baseName + ".pdf"
	jsonKey := prefix + baseName + "_metadata.json"
	csvKey := prefix + baseName + "_pages.csv"

	pdfBytes, err := pdf.Assemble(pdfPages, pdf.Metadata{
		Title:        baseName,
		Author:       batch.Owner,
		Subject:      string(batch.DocType),
		Keywords:     []string{string(batch.DocType), batch.BatchID, batch.Owner},
		CreationDate: batch.CreatedAt,
	})
	if err != nil {
		return Result{}, fmt.Errorf("assemble pdf: %w", err)
	}

	summary := buildSummary(entries, skipped)
	jsonBytes, err := buildJSONSidecar(batch, baseName+".pdf", entries, summary)
	if err != nil {
		return Result{}, fmt.Errorf("build json sidecar: %w", err)
	}
	csvBytes, err := buildCSV(entries)
	if err != nil {
		return Result{}, fmt.Errorf("build csv sidecar: %w", err)
	}

	if _, err := m.backend.Put(ctx, pdfKey, bytes.NewReader(pdfBytes), "application/pdf", nil, ""); err != nil {
		return Result{}, fmt.Errorf("write pdf: %w", err)
	}
	if _, err := m.backend.Put(ctx, jsonKey, bytes.NewReader(jsonBytes), "application/json", nil, ""); err != nil {
		return Result{}, fmt.Errorf("write json sidecar: %w", err)
	}
	if _, err := m.backend.Put(ctx, csvKey, bytes.NewReader(csvBytes), "text/csv", nil, ""); err != nil {
		return Result{}, fmt.Errorf("write csv sidecar: %w", err)
	}

	now := time.Now()
	batch.PDFFile = pdfKey
	batch.MetadataFile = jsonKey
	batch.CSVFile = csvKey
	batch.PageCount = len(pages)
	batch.Status = domain.BatchMerged
	batch.MergedAt = &now

	return Result{Batch: batch, SkippedPages: skipped}, nil
}
