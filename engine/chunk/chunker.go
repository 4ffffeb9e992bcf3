// Package chunk splits document text into bounded segments, both for LLM
// analysis (large, context-preserving chunks) and for retrieval indexing
// (small, sentence-aligned chunks).
package chunk

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/tmc/langchaingo/textsplitter"
)

const (
	// DefaultMaxSize is the analysis chunk budget in characters.
	DefaultMaxSize = 30000
	// DefaultRetrievalSize is the retrieval chunk budget in characters.
	DefaultRetrievalSize = 512
	// DefaultRetrievalOverlap is the retrieval chunk overlap in characters.
	DefaultRetrievalOverlap = 50

	// minStructuralSection filters out heading stubs produced by marker
	// splitting.
	minStructuralSection = 1000
)

// structuralMarker matches chapter-level headings in documents that carry a
// table of contents.
var structuralMarker = regexp.MustCompile(`\n\s*(?:CHAPTER|SECTION|PART)\s+\d+`)

// Settings holds chunking configuration.
type Settings struct {
	MaxSize          int `json:"max_size"`
	RetrievalSize    int `json:"retrieval_size"`
	RetrievalOverlap int `json:"retrieval_overlap"`
}

func DefaultSettings() Settings {
	return Settings{
		MaxSize:          DefaultMaxSize,
		RetrievalSize:    DefaultRetrievalSize,
		RetrievalOverlap: DefaultRetrievalOverlap,
	}
}

func (s Settings) Validate() error {
	if s.MaxSize <= 0 {
		return errors.New("chunk: max size must be greater than zero")
	}
	if s.RetrievalSize <= 0 {
		return errors.New("chunk: retrieval size must be greater than zero")
	}
	if s.RetrievalOverlap < 0 {
		return errors.New("chunk: retrieval overlap cannot be negative")
	}
	if s.RetrievalOverlap >= s.RetrievalSize {
		return fmt.Errorf(
			"chunk: retrieval overlap %d must be smaller than retrieval size %d",
			s.RetrievalOverlap, s.RetrievalSize,
		)
	}
	return nil
}

// Split divides text into analysis chunks of at most maxSize characters.
//
// Text at or under the budget is returned whole. Documents with a table of
// contents are split on structural markers first; everything else is packed
// greedily by paragraph. A single paragraph longer than maxSize is passed
// through unsplit. No returned chunk is empty.
func Split(text string, maxSize int) []string {
	if maxSize <= 0 {
		maxSize = DefaultMaxSize
	}
	if len(text) <= maxSize {
		return []string{text}
	}
	if strings.Contains(strings.ToUpper(text), "TABLE OF CONTENTS") {
		if sections := splitStructural(text); len(sections) > 0 {
			return sections
		}
	}
	return packParagraphs(text, maxSize)
}

func splitStructural(text string) []string {
	sections := structuralMarker.Split(text, -1)
	out := make([]string, 0, len(sections))
	for _, section := range sections {
		section = strings.TrimSpace(section)
		if len(section) > minStructuralSection {
			out = append(out, section)
		}
	}
	return out
}

func packParagraphs(text string, maxSize int) []string {
	paragraphs := strings.Split(text, "\n\n")
	chunks := make([]string, 0, len(text)/maxSize+1)
	var current strings.Builder
	for _, para := range paragraphs {
		if current.Len() > 0 && current.Len()+len(para) > maxSize {
			chunks = append(chunks, current.String())
			current.Reset()
		}
		if current.Len() > 0 {
			current.WriteString("\n\n")
		}
		current.WriteString(para)
	}
	if current.Len() > 0 {
		chunks = append(chunks, current.String())
	}
	return chunks
}

// SplitSentences divides text into retrieval chunks of roughly size
// characters, preferring sentence boundaries, with the given overlap
// between adjacent chunks.
func SplitSentences(text string, size, overlap int) ([]string, error) {
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}
	if size <= 0 {
		size = DefaultRetrievalSize
	}
	if overlap < 0 || overlap >= size {
		overlap = 0
	}
	splitter := textsplitter.NewRecursiveCharacter(
		textsplitter.WithChunkSize(size),
		textsplitter.WithChunkOverlap(overlap),
		textsplitter.WithSeparators([]string{"\n\n", ". ", "? ", "! ", "\n", " ", ""}),
	)
	segments, err := splitter.SplitText(text)
	if err != nil {
		return nil, fmt.Errorf("chunk: split retrieval text: %w", err)
	}
	out := make([]string, 0, len(segments))
	for _, segment := range segments {
		segment = strings.TrimSpace(segment)
		if segment != "" {
			out = append(out, segment)
		}
	}
	return out, nil
}
