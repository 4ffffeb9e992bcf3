package knowledge

import (
	"math"
	"regexp"
	"sort"
	"strings"
)

const (
	defaultMaxFeatures = 1000
	defaultMaxDocFreq  = 0.9
)

// tokenPattern matches word tokens of two or more characters.
var tokenPattern = regexp.MustCompile(`[\p{L}\p{N}]{2,}`)

// Vectorizer fits term-frequency/inverse-document-frequency models over a
// chunk corpus. A fitted Model is immutable; re-fitting produces a new one.
type Vectorizer struct {
	maxFeatures int
	maxDocFreq  float64
}

// VectorizerFactory constructs the vectorizer backing a retrieval index.
// A nil factory (or a factory error) leaves the index unavailable, which
// degrades queries to empty results.
type VectorizerFactory func() (*Vectorizer, error)

// NewVectorizer returns a vectorizer with the standard settings: vocabulary
// capped at 1000 terms, terms present in more than 90% of chunks dropped,
// english stopwords removed.
func NewVectorizer() *Vectorizer {
	return &Vectorizer{maxFeatures: defaultMaxFeatures, maxDocFreq: defaultMaxDocFreq}
}

// DefaultFactory is the VectorizerFactory used by the production wiring.
func DefaultFactory() (*Vectorizer, error) {
	return NewVectorizer(), nil
}

// sparseVector maps vocabulary indexes to l2-normalized tf-idf weights.
type sparseVector map[int]float64

// Model is a fitted tf-idf vocabulary with per-term idf weights.
type Model struct {
	vocabulary map[string]int
	idf        []float64
}

func tokenize(text string) []string {
	tokens := tokenPattern.FindAllString(strings.ToLower(text), -1)
	out := tokens[:0]
	for _, tok := range tokens {
		if _, stop := englishStopwords[tok]; !stop {
			out = append(out, tok)
		}
	}
	return out
}

// Fit builds a model over the corpus and returns it together with the
// corpus vectors, index-aligned with the input.
func (v *Vectorizer) Fit(corpus []string) (*Model, []sparseVector) {
	docTokens := make([][]string, len(corpus))
	docFreq := make(map[string]int)
	termFreq := make(map[string]int)
	for i, text := range corpus {
		tokens := tokenize(text)
		docTokens[i] = tokens
		seen := make(map[string]struct{}, len(tokens))
		for _, tok := range tokens {
			termFreq[tok]++
			if _, ok := seen[tok]; !ok {
				seen[tok] = struct{}{}
				docFreq[tok]++
			}
		}
	}

	terms := make([]string, 0, len(docFreq))
	for term, df := range docFreq {
		// Terms saturating the corpus carry no signal. The ratio filter
		// only applies once there is more than one chunk.
		if len(corpus) > 1 && float64(df) > v.maxDocFreq*float64(len(corpus)) {
			continue
		}
		terms = append(terms, term)
	}
	sort.Slice(terms, func(i, j int) bool {
		if termFreq[terms[i]] != termFreq[terms[j]] {
			return termFreq[terms[i]] > termFreq[terms[j]]
		}
		return terms[i] < terms[j]
	})
	if len(terms) > v.maxFeatures {
		terms = terms[:v.maxFeatures]
	}

	model := &Model{
		vocabulary: make(map[string]int, len(terms)),
		idf:        make([]float64, len(terms)),
	}
	n := float64(len(corpus))
	for i, term := range terms {
		model.vocabulary[term] = i
		model.idf[i] = math.Log((1+n)/(1+float64(docFreq[term]))) + 1
	}

	vectors := make([]sparseVector, len(corpus))
	for i, tokens := range docTokens {
		vectors[i] = model.vectorize(tokens)
	}
	return model, vectors
}

// Transform vectorizes a query under the fitted vocabulary.
func (m *Model) Transform(text string) sparseVector {
	return m.vectorize(tokenize(text))
}

func (m *Model) vectorize(tokens []string) sparseVector {
	vec := make(sparseVector)
	for _, tok := range tokens {
		if idx, ok := m.vocabulary[tok]; ok {
			vec[idx]++
		}
	}
	var norm float64
	for idx := range vec {
		vec[idx] *= m.idf[idx]
		norm += vec[idx] * vec[idx]
	}
	if norm > 0 {
		norm = math.Sqrt(norm)
		for idx := range vec {
			vec[idx] /= norm
		}
	}
	return vec
}

// cosine returns the cosine similarity of two l2-normalized sparse vectors.
func cosine(a, b sparseVector) float64 {
	if len(b) < len(a) {
		a, b = b, a
	}
	var dot float64
	for idx, weight := range a {
		if other, ok := b[idx]; ok {
			dot += weight * other
		}
	}
	return dot
}
