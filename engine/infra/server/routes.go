package server

import "github.com/gin-gonic/gin"

func (s *Server) registerRoutes() {
	s.router.GET("/healthz", s.handleHealth)
	if s.deps.Monitoring != nil {
		s.router.GET("/metrics", func(c *gin.Context) {
			s.deps.Monitoring.Handler().ServeHTTP(c.Writer, c.Request)
		})
	}

	api := s.router.Group("/api")
	{
		api.POST("/analyze", s.handleAnalyze)
		api.POST("/analyze/files", s.handleAnalyzeFile)

		api.POST("/chat", s.handleChat)
		api.GET("/chat/:session_id/history", s.handleChatHistory)
		api.DELETE("/chat/:session_id", s.handleChatDelete)

		api.POST("/feedback", s.handleFeedback)
		api.GET("/feedback/analytics", s.handleFeedbackAnalytics)

		api.GET("/documents", s.handleDocumentList)
		api.GET("/documents/:id", s.handleDocumentGet)

		api.GET("/system/metrics", s.handleSystemMetrics)
		api.POST("/system/improvements/run", s.handleImprovementRun)
	}
}
