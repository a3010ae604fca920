package httpapi

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"archivecore.io/core/internal/domain"
)

func (s *Server) handleQueueStats(c echo.Context) error {
	return c.JSON(http.StatusOK, s.qcQueue.Stats())
}

func (s *Server) handleQueuePending(c echo.Context) error {
	severity := domain.Severity(c.QueryParam("severity"))
	limit := queryInt(c, "limit", 50)
	return c.JSON(http.StatusOK, s.qcQueue.Pending(severity, limit))
}

func (s *Server) handleTaskNext(c echo.Context) error {
	operator := sessionUser(c).UserID
	task, err := s.qcQueue.NextTask(operator)
	if err != nil {
		return err
	}
	if task == nil {
		return c.NoContent(http.StatusNoContent)
	}
	return c.JSON(http.StatusOK, task)
}

func (s *Server) handleTaskStart(c echo.Context) error {
	taskID := c.Param("id")
	operator := sessionUser(c).UserID
	if err := s.qcQueue.StartTask(taskID, operator); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) handleTaskSubmit(c echo.Context) error {
	taskID := c.Param("id")
	operator := sessionUser(c).UserID

	var verdict domain.Verdict
	if err := c.Bind(&verdict); err != nil {
		return domain.ErrValidation
	}
	if err := s.qcQueue.Submit(taskID, operator, verdict); err != nil {
		return err
	}

	if s.dispatcher != nil {
		event := domain.EventQCApproved
		if verdict.Action == domain.ActionReject {
			event = domain.EventQCRejected
		}
		s.dispatcher.Fire(event, "", map[string]interface{}{"task_id": taskID}, map[string]string{"user": operator})
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) handleTaskRelease(c echo.Context) error {
	taskID := c.Param("id")
	operator := sessionUser(c).UserID
	if err := s.qcQueue.Release(taskID, operator); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// sidecarKeyFor derives a page's JSON sidecar key from one of its
// sibling artefact keys, all of which share the canonical
// owner/year/doc_type/batch_id/page_id prefix minted by
// archive.CanonicalKey.
func sidecarKeyFor(artefactKey string) string {
	idx := strings.LastIndex(artefactKey, "/")
	dir, name := artefactKey[:idx+1], artefactKey[idx+1:]
	if dot := strings.Index(name, "."); dot >= 0 {
		name = name[:dot]
	}
	return dir + name + ".json"
}

// handleQCImage serves a page's source image after loading its JSON
// sidecar to run an ABAC check, gating raw image bytes the same way
// document detail is gated (§6 ABAC-gated).
func (s *Server) handleQCImage(c echo.Context) error {
	imageKey := strings.TrimPrefix(c.Param("*"), "/")
	if imageKey == "" {
		return domain.ErrValidation
	}

	page, err := s.loadPageSidecar(c, sidecarKeyFor(imageKey))
	if err != nil {
		return err
	}
	dec := s.authSvc.Authorize(c.Request().Context(), currentSession(c), sessionUser(c), page, domain.ActionView)
	if !dec.Allowed {
		return domain.ErrForbidden
	}

	rc, meta, err := s.backend.Get(c.Request().Context(), imageKey, "")
	if err != nil {
		return err
	}
	defer rc.Close()
	contentType := meta["content_type"]
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	return c.Stream(http.StatusOK, contentType, rc)
}

// loadPageSidecar fetches and decodes the JSON sidecar at key.
func (s *Server) loadPageSidecar(c echo.Context, key string) (domain.Page, error) {
	rc, _, err := s.backend.Get(c.Request().Context(), key, "")
	if err != nil {
		return domain.Page{}, err
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		return domain.Page{}, err
	}
	var page domain.Page
	if err := json.Unmarshal(data, &page); err != nil {
		return domain.Page{}, err
	}
	return page, nil
}

func (s *Server) handleFeedbackStats(c echo.Context) error {
	stats, err := s.qcQueue.FeedbackStats()
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, stats)
}

func (s *Server) handleOperatorStats(c echo.Context) error {
	stats, err := s.qcQueue.OperatorStats(c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, stats)
}
