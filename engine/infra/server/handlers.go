package server

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/lexiscope/lexiscope/engine/chat"
	"github.com/lexiscope/lexiscope/engine/core"
	"github.com/lexiscope/lexiscope/engine/feedback"
)

type analyzeRequest struct {
	Text       string `json:"text"`
	DocumentID string `json:"document_id"`
}

func (s *Server) handleAnalyze(c *gin.Context) {
	var req analyzeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, core.NewError(err, core.ErrCodeInvalidInput, nil))
		return
	}
	text := req.Text
	if text == "" && req.DocumentID != "" {
		doc, err := s.deps.Documents.Get(c.Request.Context(), req.DocumentID)
		if err != nil {
			respondError(c, err)
			return
		}
		text = doc.Content
	}
	report, err := s.deps.Analysis.Analyze(c.Request.Context(), text, req.DocumentID)
	if err != nil {
		s.observeCompletion(core.HasCode(err, core.ErrCodeTotalFailure))
		respondError(c, err)
		return
	}
	s.observeCompletion(false)
	c.JSON(http.StatusOK, report)
}

func (s *Server) observeCompletion(degraded bool) {
	if s.deps.Monitoring != nil {
		s.deps.Monitoring.ObserveCompletion(degraded)
	}
}

// handleAnalyzeFile ingests a multipart upload and analyzes it in one
// request.
func (s *Server) handleAnalyzeFile(c *gin.Context) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		respondError(c, core.NewError(err, core.ErrCodeInvalidInput, nil))
		return
	}
	file, err := fileHeader.Open()
	if err != nil {
		respondError(c, core.NewError(err, core.ErrCodeInvalidInput, nil))
		return
	}
	defer file.Close()
	data, err := io.ReadAll(file)
	if err != nil {
		respondError(c, core.NewError(err, core.ErrCodeInvalidInput, nil))
		return
	}

	ctx := c.Request.Context()
	doc, err := s.deps.Documents.Ingest(ctx, fileHeader.Filename,
		fileHeader.Header.Get("Content-Type"), data)
	if err != nil {
		respondError(c, err)
		return
	}
	report, err := s.deps.Analysis.Analyze(ctx, doc.Content, doc.ID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"document": doc,
		"report":   report,
	})
}

type chatRequest struct {
	SessionID  string       `json:"session_id"`
	DocumentID string       `json:"document_id"`
	Message    string       `json:"message"`
	Profile    chat.Profile `json:"profile"`
}

func (s *Server) handleChat(c *gin.Context) {
	var req chatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, core.NewError(err, core.ErrCodeInvalidInput, nil))
		return
	}
	reply, err := s.deps.Chat.Converse(c.Request.Context(), req.SessionID, req.DocumentID, req.Message, req.Profile)
	if err != nil {
		respondError(c, err)
		return
	}
	s.observeCompletion(reply.Degraded)
	c.JSON(http.StatusOK, reply)
}

func (s *Server) handleChatHistory(c *gin.Context) {
	sessionID := c.Param("session_id")
	messages, err := s.deps.Chat.History(c.Request.Context(), sessionID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"session_id": sessionID,
		"messages":   messages,
	})
}

func (s *Server) handleChatDelete(c *gin.Context) {
	if err := s.deps.Chat.Delete(c.Request.Context(), c.Param("session_id")); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) handleFeedback(c *gin.Context) {
	var rec feedback.Record
	if err := c.ShouldBindJSON(&rec); err != nil {
		respondError(c, core.NewError(err, core.ErrCodeInvalidInput, nil))
		return
	}
	id, suggestions, err := s.deps.Feedback.Submit(c.Request.Context(), &rec)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"id":          id,
		"suggestions": suggestions,
	})
}

func (s *Server) handleFeedbackAnalytics(c *gin.Context) {
	summary, err := s.deps.Feedback.Analytics(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

func (s *Server) handleDocumentList(c *gin.Context) {
	docs, err := s.deps.Documents.List(c.Request.Context(), 100)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"documents": docs})
}

func (s *Server) handleDocumentGet(c *gin.Context) {
	doc, err := s.deps.Documents.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, doc)
}

func (s *Server) handleSystemMetrics(c *gin.Context) {
	body := gin.H{}
	if s.deps.Monitoring != nil {
		body["requests"] = s.deps.Monitoring.Stats()
	}
	if s.deps.Index != nil {
		body["retrieval"] = s.deps.Index.Stats()
	}
	caches := gin.H{}
	if s.deps.Documents != nil {
		caches["documents"] = s.deps.Documents.CacheSize()
	}
	if s.deps.Chat != nil {
		caches["chat_sessions"] = s.deps.Chat.SessionCount()
	}
	body["caches"] = caches
	c.JSON(http.StatusOK, body)
}

func (s *Server) handleImprovementRun(c *gin.Context) {
	if s.deps.Scheduler == nil {
		respondError(c, core.NewError(errors.New("improvement cycle is not configured"),
			core.ErrCodeInvalidInput, nil))
		return
	}
	if err := s.deps.Scheduler.RunOnce(c.Request.Context()); err != nil {
		respondError(c, core.NewError(err, core.ErrCodeInternal, nil))
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "completed"})
}

func (s *Server) handleHealth(c *gin.Context) {
	body := gin.H{"status": "ok"}
	status := http.StatusOK
	if s.deps.DB != nil {
		if err := s.deps.DB.HealthCheck(c.Request.Context()); err != nil {
			body["status"] = "degraded"
			body["database"] = err.Error()
			status = http.StatusServiceUnavailable
		} else {
			body["database"] = "ok"
		}
	} else {
		body["database"] = "disabled"
	}
	if s.deps.Index != nil {
		body["retrieval"] = s.deps.Index.Available()
	}
	c.JSON(status, body)
}
