// Package analysis orchestrates document analysis: prompt assembly,
// chunked fan-out to the LLM gateway, and report assembly.
package analysis

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/lexiscope/lexiscope/engine/chunk"
	"github.com/lexiscope/lexiscope/engine/core"
	"github.com/lexiscope/lexiscope/engine/improvement"
	"github.com/lexiscope/lexiscope/engine/llm"
	"github.com/lexiscope/lexiscope/pkg/logger"
)

const (
	// DefaultSingleCallThreshold is the document size below which the
	// whole text goes out in one request.
	DefaultSingleCallThreshold = 50000

	// DefaultChunkSize bounds each analysis section.
	DefaultChunkSize = 30000

	// DefaultBatchSize is how many sections are analyzed concurrently.
	DefaultBatchSize = 3

	// DefaultBatchCooldown is the pause between batches.
	DefaultBatchCooldown = 500 * time.Millisecond

	// DefaultSynthesisThreshold: documents that split into more sections
	// than this get an executive-summary synthesis pass.
	DefaultSynthesisThreshold = 3

	// DefaultSynthesisInputCap bounds the combined text fed to synthesis.
	DefaultSynthesisInputCap = 6000
)

// Generator is the LLM surface the orchestrator needs.
type Generator interface {
	Generate(ctx context.Context, prompt, apiKey string) llm.Completion
}

// Settings tune the orchestration pipeline.
type Settings struct {
	APIKey              string
	SingleCallThreshold int
	ChunkSize           int
	BatchSize           int
	BatchCooldown       time.Duration
	SynthesisThreshold  int
	SynthesisInputCap   int
}

func DefaultSettings() Settings {
	return Settings{
		SingleCallThreshold: DefaultSingleCallThreshold,
		ChunkSize:           DefaultChunkSize,
		BatchSize:           DefaultBatchSize,
		BatchCooldown:       DefaultBatchCooldown,
		SynthesisThreshold:  DefaultSynthesisThreshold,
		SynthesisInputCap:   DefaultSynthesisInputCap,
	}
}

func (s *Settings) Validate() error {
	if s.SingleCallThreshold <= 0 || s.ChunkSize <= 0 || s.BatchSize <= 0 {
		return fmt.Errorf("analysis settings: thresholds must be positive")
	}
	if s.SynthesisInputCap <= 0 {
		return fmt.Errorf("analysis settings: synthesis input cap must be positive")
	}
	return nil
}

// Report is the assembled outcome of one analysis request.
type Report struct {
	RequestID      string `json:"request_id"`
	DocumentID     string `json:"document_id,omitempty"`
	Analysis       string `json:"analysis"`
	Sections       int    `json:"sections"`
	FailedSections int    `json:"failed_sections"`
	Partial        bool   `json:"partial"`
	Synthesized    bool   `json:"synthesized"`
}

// Service runs the analysis pipeline.
type Service struct {
	generator    Generator
	improvements improvement.Store
	settings     Settings
}

func NewService(generator Generator, improvements improvement.Store, settings Settings) (*Service, error) {
	if err := settings.Validate(); err != nil {
		return nil, err
	}
	return &Service{generator: generator, improvements: improvements, settings: settings}, nil
}

// Analyze produces a report for the given document text. Small documents
// take a single-call path; large ones are chunked, fanned out in fixed
// batches, and reassembled in document order. Sections whose completions
// degrade are dropped from the report; a report with zero surviving
// sections is a total failure.
func (s *Service) Analyze(ctx context.Context, text, documentID string) (*Report, error) {
	if strings.TrimSpace(text) == "" {
		return nil, core.NewError(errors.New("document text is empty"), core.ErrCodeInvalidInput, nil)
	}
	if s.settings.APIKey == "" {
		return nil, core.NewError(errors.New("api key is not configured"), core.ErrCodeInvalidInput, nil)
	}
	log := logger.FromContext(ctx)
	report := &Report{
		RequestID:  core.NewRequestID(),
		DocumentID: documentID,
	}
	addition := s.selectImprovement(ctx)

	if len(text) < s.settings.SingleCallThreshold {
		comp := s.generator.Generate(ctx, analysisPrompt(text, addition), s.settings.APIKey)
		if comp.Degraded {
			return nil, core.NewError(
				fmt.Errorf("analysis failed: %s", comp.Text),
				core.ErrCodeTotalFailure,
				map[string]any{"request_id": report.RequestID, "attempts": comp.Attempts},
			)
		}
		report.Analysis = comp.Text
		report.Sections = 1
		return report, nil
	}

	chunks := chunk.Split(text, s.settings.ChunkSize)
	log.Info("analyzing document in sections",
		"request_id", report.RequestID,
		"chars", len(text),
		"tokens_est", llm.EstimateTokens(text),
		"sections", len(chunks))

	results, failed, err := s.analyzeSections(ctx, chunks, addition)
	if err != nil {
		return nil, err
	}
	report.Sections = len(chunks)
	report.FailedSections = failed
	report.Partial = failed > 0
	if failed == len(chunks) {
		return nil, core.NewError(
			errors.New("every section analysis failed"),
			core.ErrCodeTotalFailure,
			map[string]any{"request_id": report.RequestID, "sections": len(chunks)},
		)
	}

	report.Analysis = assemble(results)
	if len(chunks) > s.settings.SynthesisThreshold {
		s.synthesize(ctx, report, results)
	}
	return report, nil
}

// sectionResult carries a section's completion along with whether the
// call succeeded, so an empty completion is not mistaken for a failure.
type sectionResult struct {
	text string
	ok   bool
}

// analyzeSections fans chunks out in fixed-size batches with a cooldown
// between batches. Results land at their chunk's position so document
// order survives concurrency.
func (s *Service) analyzeSections(ctx context.Context, chunks []string, addition string) ([]sectionResult, int, error) {
	log := logger.FromContext(ctx)
	results := make([]sectionResult, len(chunks))
	failed := 0
	for start := 0; start < len(chunks); start += s.settings.BatchSize {
		end := min(start+s.settings.BatchSize, len(chunks))
		g, gctx := errgroup.WithContext(ctx)
		for i := start; i < end; i++ {
			g.Go(func() error {
				if err := gctx.Err(); err != nil {
					return err
				}
				prompt := sectionPrompt(chunks[i], addition, i+1, len(chunks))
				comp := s.generator.Generate(gctx, prompt, s.settings.APIKey)
				if comp.Degraded {
					log.Warn("section analysis degraded, dropping section",
						"section", i+1, "attempts", comp.Attempts, "error", comp.Err)
					return nil
				}
				results[i] = sectionResult{text: comp.Text, ok: true}
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, 0, err
		}
		if end < len(chunks) {
			select {
			case <-time.After(s.settings.BatchCooldown):
			case <-ctx.Done():
				return nil, 0, ctx.Err()
			}
		}
	}
	for _, r := range results {
		if !r.ok {
			failed++
		}
	}
	return results, failed, nil
}

// synthesize appends an executive summary derived from the combined
// section analyses. Synthesis failures degrade silently; the section
// report stands on its own.
func (s *Service) synthesize(ctx context.Context, report *Report, results []sectionResult) {
	combined := strings.Join(surviving(results), "\n\n")
	combined = capRunes(combined, s.settings.SynthesisInputCap)
	comp := s.generator.Generate(ctx, synthesisPrompt(combined), s.settings.APIKey)
	if comp.Degraded {
		logger.FromContext(ctx).Warn("synthesis pass degraded, skipping executive summary",
			"request_id", report.RequestID, "error", comp.Err)
		return
	}
	report.Analysis += "\n\n## Executive Summary\n\n" + comp.Text
	report.Synthesized = true
}

func (s *Service) selectImprovement(ctx context.Context) string {
	if s.improvements == nil {
		return ""
	}
	log := logger.FromContext(ctx)
	imp, err := s.improvements.Select(ctx)
	if err != nil {
		log.Warn("improvement selection failed, proceeding without", "error", err)
		return ""
	}
	if imp == nil {
		return ""
	}
	if err := s.improvements.RecordUsage(ctx, imp.ID); err != nil {
		log.Warn("recording improvement usage failed", "improvement_id", imp.ID, "error", err)
	}
	return imp.PromptAddition
}

// assemble labels surviving sections in document order.
func assemble(results []sectionResult) string {
	var b strings.Builder
	for i, r := range results {
		if !r.ok {
			continue
		}
		if b.Len() > 0 {
			b.WriteString("\n\n")
		}
		fmt.Fprintf(&b, "## Section %d\n\n%s", i+1, r.text)
	}
	return b.String()
}

func surviving(results []sectionResult) []string {
	out := make([]string, 0, len(results))
	for _, r := range results {
		if r.ok {
			out = append(out, r.text)
		}
	}
	return out
}

func capRunes(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit])
}
