// Package pdf assembles a batch's page images into a single PDF with
// an invisible, copy-selectable OCR text layer, using pdfcpu
// (§4.4 PDF).
package pdf

import (
	"bytes"
	"fmt"
	"io"
	"time"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"
)

// Page is one page's image bytes plus the OCR text to overlay.
type Page struct {
	PageID  string
	Image   []byte
	OCRText string
}

// Metadata is populated onto the assembled PDF's document info
// dictionary (§4.4 PDF).
type Metadata struct {
	Title        string
	Author       string
	Subject      string
	Keywords     []string
	CreationDate time.Time
}

// Assemble embeds each page's image at native resolution, one image
// per page, then superimposes its OCR text with watermark render mode
// 3 ("neither fill nor stroke" — invisible but present in the content
// stream), so the result is searchable and copy-selectable without a
// visible text artefact. Document info fields are stamped last.
func Assemble(pages []Page, meta Metadata) ([]byte, error) {
	if len(pages) == 0 {
		return emptyPDF(meta)
	}

	readers := make([]io.Reader, len(pages))
	for i, p := range pages {
		readers[i] = bytes.NewReader(p.Image)
	}

	var assembled bytes.Buffer
	if err := api.ImportImages(nil, &assembled, readers, pdfcpu.DefaultImportConfig(), nil); err != nil {
		return nil, fmt.Errorf("import page images: %w", err)
	}

	for i, p := range pages {
		if p.OCRText == "" {
			continue
		}
		pageNum := fmt.Sprintf("%d", i+1)
		wm, err := api.TextWatermark(p.OCRText, "rendermode:3, opacity:1, scale:1 abs, pos:bl, offset:0 0", true, false, types.POINTS)
		if err != nil {
			return nil, fmt.Errorf("build ocr text watermark for page %s: %w", pageNum, err)
		}
		var stamped bytes.Buffer
		if err := api.AddWatermarks(bytes.NewReader(assembled.Bytes()), &stamped, []string{pageNum}, wm, nil); err != nil {
			return nil, fmt.Errorf("stamp ocr text layer on page %s: %w", pageNum, err)
		}
		assembled = stamped
	}

	if err := stampMetadata(&assembled, meta); err != nil {
		return nil, fmt.Errorf("stamp pdf metadata: %w", err)
	}

	return assembled.Bytes(), nil
}

// stampMetadata writes the document info dictionary fields (title,
// author, subject, keywords, creation date) via pdfcpu's document
// properties API.
func stampMetadata(buf *bytes.Buffer, meta Metadata) error {
	props := map[string]string{
		"Title":        meta.Title,
		"Author":       meta.Author,
		"Subject":      meta.Subject,
		"CreationDate": meta.CreationDate.UTC().Format("2006-01-02T15:04:05Z"),
	}
	if len(meta.Keywords) > 0 {
		keywords := meta.Keywords[0]
		for _, k := range meta.Keywords[1:] {
			keywords += ", " + k
		}
		props["Keywords"] = keywords
	}
	var out bytes.Buffer
	if err := api.AddProperties(bytes.NewReader(buf.Bytes()), &out, props, nil); err != nil {
		return err
	}
	*buf = out
	return nil
}

// blankPageTemplate is a minimal, valid one-page PDF used as the base
// for emptyPDF; pdfcpu's property stamping is then applied on top of
// it the same way as for an assembled batch.
const blankPageTemplate = "%PDF-1.7\n" +
	"1 0 obj<</Type/Catalog/Pages 2 0 R>>endobj\n" +
	"2 0 obj<</Type/Pages/Kids[3 0 R]/Count 1>>endobj\n" +
	"3 0 obj<</Type/Page/Parent 2 0 R/MediaBox[0 0 612 792]/Resources<<>>>>endobj\n" +
	"trailer<</Root 1 0 R>>\n"

// emptyPDF covers the degenerate case of a sealed batch whose pages
// all had unreadable images; the batch still produces a sidecar-
// consistent, otherwise blank document (§4.4 Failure semantics).
func emptyPDF(meta Metadata) ([]byte, error) {
	out := bytes.NewBufferString(blankPageTemplate)
	if err := stampMetadata(out, meta); err != nil {
		return nil, fmt.Errorf("stamp placeholder pdf for empty batch: %w", err)
	}
	return out.Bytes(), nil
}
