package httpapi

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"archivecore.io/core/internal/metadb"
)

func queryInt(c echo.Context, name string, def int) int {
	v := c.QueryParam(name)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func (s *Server) handleRoutingSummary(c echo.Context) error {
	f := metadb.RoutingFilter{
		Days:     queryInt(c, "days", 0),
		DocType:  c.QueryParam("doc_type"),
		Severity: c.QueryParam("severity"),
		Operator: c.QueryParam("operator"),
	}
	summary, err := s.db.RoutingSummary(f)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, summary)
}

func (s *Server) handleRoutingRecent(c echo.Context) error {
	limit := queryInt(c, "limit", 100)
	if limit > 1000 {
		limit = 1000
	}
	records, err := s.db.RoutingRecent(limit)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, records)
}

func (s *Server) handleRoutingTrends(c echo.Context) error {
	days := queryInt(c, "days", 30)
	points, err := s.db.RoutingTrends(days)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, points)
}
