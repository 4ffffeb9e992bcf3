package server

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lexiscope/lexiscope/engine/analysis"
	"github.com/lexiscope/lexiscope/engine/chat"
	"github.com/lexiscope/lexiscope/engine/document"
	"github.com/lexiscope/lexiscope/engine/feedback"
	"github.com/lexiscope/lexiscope/engine/improvement"
	"github.com/lexiscope/lexiscope/engine/infra/monitoring"
	"github.com/lexiscope/lexiscope/engine/llm"
)

type stubGenerator struct{}

func (stubGenerator) Generate(_ context.Context, prompt, _ string) llm.Completion {
	return llm.Completion{Text: "Generated analysis for: " + prompt[:min(40, len(prompt))]}
}

func newTestServer(t *testing.T) *Server {
	t.Helper()
	settings := analysis.DefaultSettings()
	settings.APIKey = "test-key"
	analysisSvc, err := analysis.NewService(stubGenerator{}, improvement.NewMemoryStore(), settings)
	require.NoError(t, err)

	docs := document.NewService(nil, nil)
	feedbackStore := feedback.NewMemoryStore()
	feedbackSvc := feedback.NewService(feedbackStore, nil)
	engine := feedback.NewEngine(feedbackStore, improvement.NewMemoryStore(), feedbackStore,
		feedback.DefaultRules())

	return New(Config{Host: "127.0.0.1", Port: 0}, Deps{
		Analysis:   analysisSvc,
		Documents:  docs,
		Chat:       chat.NewService(stubGenerator{}, nil, docs, nil, "test-key"),
		Feedback:   feedbackSvc,
		Scheduler:  feedback.NewScheduler(engine),
		Monitoring: monitoring.NewService(),
	})
}

func doJSON(t *testing.T, srv *Server, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)
	return rec
}

func TestAnalyzeEndpoint(t *testing.T) {
	t.Run("Should analyze submitted text", func(t *testing.T) {
		srv := newTestServer(t)
		rec := doJSON(t, srv, http.MethodPost, "/api/analyze",
			map[string]string{"text": "This policy governs data retention."})
		require.Equal(t, http.StatusOK, rec.Code)

		var report analysis.Report
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
		assert.NotEmpty(t, report.Analysis)
		assert.NotEmpty(t, report.RequestID)
	})

	t.Run("Should reject empty submissions with the error envelope", func(t *testing.T) {
		srv := newTestServer(t)
		rec := doJSON(t, srv, http.MethodPost, "/api/analyze", map[string]string{"text": "  "})
		require.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, rec.Body.String(), "INVALID_INPUT")
	})

	t.Run("Should echo the request id header", func(t *testing.T) {
		srv := newTestServer(t)
		req := httptest.NewRequest(http.MethodPost, "/api/analyze",
			strings.NewReader(`{"text":"A short policy."}`))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-Request-ID", "req_custom")
		rec := httptest.NewRecorder()
		srv.Router().ServeHTTP(rec, req)
		assert.Equal(t, "req_custom", rec.Header().Get("X-Request-ID"))
	})
}

func TestAnalyzeFileEndpoint(t *testing.T) {
	t.Run("Should ingest and analyze an uploaded text file", func(t *testing.T) {
		srv := newTestServer(t)

		var buf bytes.Buffer
		writer := multipart.NewWriter(&buf)
		part, err := writer.CreateFormFile("file", "policy.txt")
		require.NoError(t, err)
		_, err = part.Write([]byte("The tenant must give sixty days notice."))
		require.NoError(t, err)
		require.NoError(t, writer.Close())

		req := httptest.NewRequest(http.MethodPost, "/api/analyze/files", &buf)
		req.Header.Set("Content-Type", writer.FormDataContentType())
		rec := httptest.NewRecorder()
		srv.Router().ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)
		var body struct {
			Document document.Document `json:"document"`
			Report   analysis.Report   `json:"report"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.True(t, strings.HasPrefix(body.Document.ID, "doc_"))
		assert.NotEmpty(t, body.Report.Analysis)
	})

	t.Run("Should reject requests without a file", func(t *testing.T) {
		srv := newTestServer(t)
		rec := doJSON(t, srv, http.MethodPost, "/api/analyze/files", nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestChatEndpoints(t *testing.T) {
	t.Run("Should converse, list history, and delete the session", func(t *testing.T) {
		srv := newTestServer(t)

		rec := doJSON(t, srv, http.MethodPost, "/api/chat",
			map[string]string{"message": "What is the notice period?"})
		require.Equal(t, http.StatusOK, rec.Code)
		var reply chat.Reply
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &reply))
		require.NotEmpty(t, reply.SessionID)

		rec = doJSON(t, srv, http.MethodGet, "/api/chat/"+reply.SessionID+"/history", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), "What is the notice period?")

		rec = doJSON(t, srv, http.MethodDelete, "/api/chat/"+reply.SessionID, nil)
		require.Equal(t, http.StatusNoContent, rec.Code)

		rec = doJSON(t, srv, http.MethodGet, "/api/chat/"+reply.SessionID+"/history", nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestFeedbackEndpoints(t *testing.T) {
	t.Run("Should accept feedback and expose analytics", func(t *testing.T) {
		srv := newTestServer(t)

		rec := doJSON(t, srv, http.MethodPost, "/api/feedback", map[string]any{
			"type":     feedback.TypeRating,
			"category": "analysis",
			"rating":   2,
			"text":     "missing the penalties section",
		})
		require.Equal(t, http.StatusCreated, rec.Code)
		assert.Contains(t, rec.Body.String(), "suggestions")

		rec = doJSON(t, srv, http.MethodGet, "/api/feedback/analytics", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		var summary feedback.Summary
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &summary))
		assert.Equal(t, 1, summary.TotalFeedback)
	})

	t.Run("Should reject invalid feedback", func(t *testing.T) {
		srv := newTestServer(t)
		rec := doJSON(t, srv, http.MethodPost, "/api/feedback",
			map[string]any{"category": "analysis"})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestSystemEndpoints(t *testing.T) {
	t.Run("Should report health without a database", func(t *testing.T) {
		srv := newTestServer(t)
		rec := doJSON(t, srv, http.MethodGet, "/healthz", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), `"database":"disabled"`)
	})

	t.Run("Should expose system metrics", func(t *testing.T) {
		srv := newTestServer(t)
		doJSON(t, srv, http.MethodPost, "/api/analyze",
			map[string]string{"text": "A short policy."})

		rec := doJSON(t, srv, http.MethodGet, "/api/system/metrics", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), "requests_observed")
	})

	t.Run("Should run the improvement cycle on demand", func(t *testing.T) {
		srv := newTestServer(t)
		rec := doJSON(t, srv, http.MethodPost, "/api/system/improvements/run", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), "completed")
	})

	t.Run("Should serve Prometheus metrics", func(t *testing.T) {
		srv := newTestServer(t)
		rec := doJSON(t, srv, http.MethodGet, "/metrics", nil)
		require.Equal(t, http.StatusOK, rec.Code)
	})
}
