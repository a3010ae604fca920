package httpapi

// registerRoutes wires the full route table from §6 External interfaces
// onto the Echo router, gating every path but health and login behind
// RequireAuth and the global per-IP request cap.
func (s *Server) registerRoutes() {
	e := s.echo

	e.GET("/api/health", HealthHandler(s.version))
	e.POST("/api/auth/login", s.handleLogin, s.LoginRateLimit)

	auth := e.Group("/api/auth", s.RequireAuth, s.GlobalRateLimit)
	auth.POST("/logout", s.handleLogout)
	auth.GET("/me", s.handleMe)

	routing := e.Group("/api/routing", s.RequireAuth, s.GlobalRateLimit)
	routing.GET("/summary", s.handleRoutingSummary)
	routing.GET("/recent", s.handleRoutingRecent)
	routing.GET("/trends", s.handleRoutingTrends)

	qc := e.Group("/api/qc", s.RequireAuth, s.GlobalRateLimit)
	qc.GET("/queue/stats", s.handleQueueStats)
	qc.GET("/queue/pending", s.handleQueuePending)
	qc.GET("/task/next", s.handleTaskNext)
	qc.POST("/task/:id/start", s.handleTaskStart)
	qc.POST("/task/:id/submit", s.handleTaskSubmit)
	qc.POST("/task/:id/release", s.handleTaskRelease)
	qc.GET("/image/*", s.handleQCImage)
	qc.GET("/feedback/stats", s.handleFeedbackStats)
	qc.GET("/operator/:id/stats", s.handleOperatorStats)

	ar := e.Group("/api/archive", s.RequireAuth, s.GlobalRateLimit)
	ar.GET("/stats", s.handleArchiveStats)
	ar.GET("/search", s.handleArchiveSearch)
	ar.GET("/document/:page_id", s.handleArchiveDocument)
	ar.GET("/thumbnail/:page_id", s.handleArchiveThumbnail)
	ar.GET("/owners", s.handleArchiveOwners)
	ar.GET("/doc_types", s.handleArchiveDocTypes)
	ar.GET("/years", s.handleArchiveYears)
	ar.POST("/merge", s.handleArchiveMerge)
	ar.POST("/thumbnails/generate", s.handleArchiveThumbnailsGenerate)
}
