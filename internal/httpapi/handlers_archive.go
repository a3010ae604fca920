package httpapi

import (
	"bytes"
	"io"
	"net/http"

	"github.com/labstack/echo/v4"

	"archivecore.io/core/internal/archive"
	"archivecore.io/core/internal/domain"
	"archivecore.io/core/internal/thumbnail"
)

func (s *Server) handleArchiveStats(c echo.Context) error {
	f := domain.ArchiveFilter{
		Owner:   c.QueryParam("owner"),
		Year:    queryInt(c, "year", 0),
		DocType: domain.DocType(c.QueryParam("doc_type")),
	}
	stats, err := s.db.ArchiveStats(f)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, stats)
}

func (s *Server) handleArchiveSearch(c echo.Context) error {
	opts := archive.SearchOptions{
		Owner:    c.QueryParam("owner"),
		Year:     queryInt(c, "year", 0),
		DocType:  domain.DocType(c.QueryParam("doc_type")),
		BatchID:  c.QueryParam("batch_id"),
		QCStatus: domain.QCStatus(c.QueryParam("qc_status")),
	}
	limit := queryInt(c, "limit", 50)
	offset := queryInt(c, "offset", 0)

	hits, err := s.organiser.Search(c.QueryParam("text"), opts, limit, offset)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, hits)
}

func (s *Server) handleArchiveDocument(c echo.Context) error {
	pageID := c.Param("page_id")
	results, err := s.organiser.Search(pageID, archive.SearchOptions{}, 1, 0)
	if err != nil {
		return err
	}
	if len(results) == 0 {
		return domain.ErrNotFound
	}

	page, err := s.loadPageSidecar(c, sidecarKeyFor(results[0].ObjectKey))
	if err != nil {
		return err
	}
	dec := s.authSvc.Authorize(c.Request().Context(), currentSession(c), sessionUser(c), page, domain.ActionView)
	if !dec.Allowed {
		return domain.ErrForbidden
	}
	return c.JSON(http.StatusOK, page)
}

func (s *Server) handleArchiveThumbnail(c echo.Context) error {
	pageID := c.Param("page_id")
	size := thumbnail.Size(c.QueryParam("size"))
	if size == "" {
		size = thumbnail.SizeMedium
	}
	if !thumbnail.ValidSize(size) {
		return domain.ErrValidation
	}

	thumbKey := thumbnail.Key(pageID, size)
	if rc, _, err := s.backend.Get(c.Request().Context(), thumbKey, ""); err == nil {
		defer rc.Close()
		return c.Stream(http.StatusOK, "image/jpeg", rc)
	}

	jpegBytes, err := s.renderThumbnail(c, pageID, size)
	if err != nil {
		return err
	}
	return c.Blob(http.StatusOK, "image/jpeg", jpegBytes)
}

func (s *Server) renderThumbnail(c echo.Context, pageID string, size thumbnail.Size) ([]byte, error) {
	results, err := s.organiser.Search(pageID, archive.SearchOptions{}, 1, 0)
	if err != nil {
		return nil, err
	}
	if len(results) == 0 {
		return nil, domain.ErrNotFound
	}
	page, err := s.loadPageSidecar(c, sidecarKeyFor(results[0].ObjectKey))
	if err != nil {
		return nil, err
	}

	rc, _, err := s.backend.Get(c.Request().Context(), page.Refs.ImageKey, "")
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	src, err := io.ReadAll(rc)
	if err != nil {
		return nil, err
	}
	out, err := thumbnail.Generate(src, size)
	if err != nil {
		return nil, err
	}
	_, _ = s.backend.Put(c.Request().Context(), thumbnail.Key(pageID, size), bytes.NewReader(out), "image/jpeg", nil, "")
	return out, nil
}

func (s *Server) handleArchiveOwners(c echo.Context) error {
	owners, err := s.db.Owners()
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, owners)
}

func (s *Server) handleArchiveDocTypes(c echo.Context) error {
	docTypes, err := s.db.DocTypes()
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, docTypes)
}

func (s *Server) handleArchiveYears(c echo.Context) error {
	years, err := s.db.Years()
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, years)
}

type mergeRequest struct {
	Owner   string        `json:"owner"`
	Year    int           `json:"year"`
	DocType domain.DocType `json:"doc_type"`
	BatchID string        `json:"batch_id"`
}

func (s *Server) handleArchiveMerge(c echo.Context) error {
	var req mergeRequest
	if err := c.Bind(&req); err != nil || req.Owner == "" || req.BatchID == "" {
		return domain.ErrValidation
	}

	batch := domain.Batch{
		BatchKey: domain.BatchKey{Owner: req.Owner, Year: req.Year, DocType: req.DocType, BatchID: req.BatchID},
		Status:   domain.BatchSealed,
	}
	result, err := s.merger.Merge(c.Request().Context(), batch)
	if err != nil {
		return err
	}

	if s.dispatcher != nil {
		s.dispatcher.Fire(domain.EventBatchCompleted, result.Batch.PDFFile,
			map[string]interface{}{"batch_id": req.BatchID, "page_count": result.Batch.PageCount},
			map[string]string{"user": sessionUser(c).Username})
	}
	return c.JSON(http.StatusOK, result)
}

type thumbnailsGenerateRequest struct {
	Owner   string        `json:"owner"`
	Year    int           `json:"year"`
	DocType domain.DocType `json:"doc_type"`
	BatchID string        `json:"batch_id"`
	Force   bool          `json:"force"`
}

func (s *Server) handleArchiveThumbnailsGenerate(c echo.Context) error {
	var req thumbnailsGenerateRequest
	if err := c.Bind(&req); err != nil || req.Owner == "" || req.BatchID == "" {
		return domain.ErrValidation
	}

	key := domain.BatchKey{Owner: req.Owner, Year: req.Year, DocType: req.DocType, BatchID: req.BatchID}
	pages, err := s.organiser.ListBatchPages(c.Request().Context(), key)
	if err != nil {
		return err
	}

	generated := 0
	for _, page := range pages {
		for _, size := range []thumbnail.Size{thumbnail.SizeIcon, thumbnail.SizeSmall, thumbnail.SizeMedium, thumbnail.SizeLarge} {
			thumbKey := thumbnail.Key(page.PageID, size)
			if !req.Force {
				if exists, _ := s.backend.Exists(c.Request().Context(), thumbKey); exists {
					continue
				}
			}
			rc, _, err := s.backend.Get(c.Request().Context(), page.Refs.ImageKey, "")
			if err != nil {
				continue
			}
			src, err := io.ReadAll(rc)
			rc.Close()
			if err != nil {
				continue
			}
			out, err := thumbnail.Generate(src, size)
			if err != nil {
				continue
			}
			if _, err := s.backend.Put(c.Request().Context(), thumbKey, bytes.NewReader(out), "image/jpeg", nil, ""); err == nil {
				generated++
			}
		}
	}
	return c.JSON(http.StatusOK, map[string]int{"generated": generated})
}
