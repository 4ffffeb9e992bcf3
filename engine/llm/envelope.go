package llm

import (
	"encoding/json"
	"errors"
)

// ErrNoCandidates marks an envelope that decoded but carried no usable
// candidate text. It is retryable like any transport failure.
var ErrNoCandidates = errors.New("llm: response contains no candidates")

type generateRequest struct {
	Contents         []requestContent `json:"contents"`
	GenerationConfig generationConfig `json:"generationConfig"`
}

type requestContent struct {
	Parts []requestPart `json:"parts"`
}

type requestPart struct {
	Text string `json:"text"`
}

type generationConfig struct {
	Temperature     float64  `json:"temperature"`
	TopP            float64  `json:"topP"`
	TopK            int      `json:"topK"`
	MaxOutputTokens int      `json:"maxOutputTokens"`
	StopSequences   []string `json:"stopSequences"`
}

func newGenerateRequest(prompt string, cfg Config) *generateRequest {
	return &generateRequest{
		Contents: []requestContent{{Parts: []requestPart{{Text: prompt}}}},
		GenerationConfig: generationConfig{
			Temperature:     cfg.Temperature,
			TopP:            cfg.TopP,
			TopK:            cfg.TopK,
			MaxOutputTokens: cfg.MaxOutputTokens,
			StopSequences:   []string{},
		},
	}
}

type generateResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
}

// Parsed is the outcome of decoding a response envelope. Structured is true
// when the first candidate's text was extracted; otherwise Raw holds the
// undecoded body for callers that want the degraded fallback.
type Parsed struct {
	Text       string
	Structured bool
	Raw        string
}

// ParseEnvelope extracts the first candidate's text from a response body.
// Malformed JSON and candidate-less envelopes return the raw body alongside
// the error so callers can distinguish structured success from fallback.
func ParseEnvelope(raw []byte) (Parsed, error) {
	var env generateResponse
	if err := json.Unmarshal(raw, &env); err != nil {
		return Parsed{Raw: string(raw)}, err
	}
	if len(env.Candidates) == 0 || len(env.Candidates[0].Content.Parts) == 0 {
		return Parsed{Raw: string(raw)}, ErrNoCandidates
	}
	return Parsed{
		Text:       env.Candidates[0].Content.Parts[0].Text,
		Structured: true,
		Raw:        string(raw),
	}, nil
}
