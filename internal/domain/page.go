package domain

import "time"

// FieldValue is an extracted field with its per-field confidence.
type FieldValue struct {
	Value      string  `json:"value"`
	Confidence float64 `json:"confidence"`
}

// Classification is the classifier's verdict for a page.
type Classification struct {
	Label      DocType `json:"label"`
	Confidence float64 `json:"confidence"`
}

// StorageRefs names the per-file storage keys produced for a page.
type StorageRefs struct {
	ImageKey string `json:"image_key"`
	JSONKey  string `json:"json_key"`
	OCRKey   string `json:"ocr_key"`
}

// Page is the atomic archival unit (§3).
type Page struct {
	PageID          string             `json:"page_id"`
	Owner           string             `json:"owner"`
	Department      string             `json:"department"`
	Year            int                `json:"year"`
	DocType         DocType            `json:"doc_type"`
	BatchID         string             `json:"batch_id"`
	OCRText         string             `json:"ocr_text"`
	Fields          map[string]FieldValue `json:"fields"`
	Classification  Classification     `json:"classification"`
	QCStatus        QCStatus           `json:"qc_status"`
	Confidentiality Confidentiality    `json:"confidentiality"`
	// OriginalConfidentiality records the level before a PII-driven
	// escalation (§4.6); it is set only when escalation raises the level
	// and is left at its zero value otherwise.
	OriginalConfidentiality Confidentiality `json:"original_confidentiality"`
	SourceImageKey          string          `json:"source_image_key"`
	Refs                    StorageRefs     `json:"refs"`
	Version                 int             `json:"version"`
	CreatedAt               time.Time       `json:"created_at"`
	UpdatedAt               time.Time       `json:"updated_at"`
}

// BatchKey identifies a batch's canonical directory.
type BatchKey struct {
	Owner   string  `json:"owner"`
	Year    int     `json:"year"`
	DocType DocType `json:"doc_type"`
	BatchID string  `json:"batch_id"`
}

// Batch is a named grouping of pages sharing a BatchKey (§3).
type Batch struct {
	BatchKey
	Status        BatchStatus `json:"status"`
	PageCount     int         `json:"page_count"`
	PDFFile       string      `json:"pdf_file,omitempty"`
	MetadataFile  string      `json:"metadata_file,omitempty"`
	CSVFile       string      `json:"csv_file,omitempty"`
	CreatedAt     time.Time   `json:"created_at"`
	SealedAt      *time.Time  `json:"sealed_at,omitempty"`
	MergedAt      *time.Time  `json:"merged_at,omitempty"`
}
