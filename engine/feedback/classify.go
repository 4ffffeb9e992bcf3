package feedback

import "strings"

// Coarse buckets for negative-feedback text.
const (
	BucketAccuracy     = "accuracy"
	BucketCompleteness = "completeness"
	BucketRelevance    = "relevance"
	BucketFormat       = "format"
)

// Coarse buckets for user-supplied corrections.
const (
	CorrectionFactual   = "factual"
	CorrectionTone      = "tone"
	CorrectionStructure = "structure"
	CorrectionScope     = "scope"
)

type classifierRule struct {
	bucket   string
	triggers []string
}

// Rules are evaluated in order; the first bucket with a matching trigger
// wins, so earlier buckets take precedence when vocabularies overlap.
var issueRules = []classifierRule{
	{BucketAccuracy, []string{"wrong", "incorrect", "false", "mistake"}},
	{BucketCompleteness, []string{"missing", "incomplete", "more detail", "expand"}},
	{BucketRelevance, []string{"not relevant", "off-topic", "irrelevant"}},
	{BucketFormat, []string{"format", "formatting", "layout", "markdown"}},
}

var correctionRules = []classifierRule{
	{CorrectionFactual, []string{"actually", "correct", "should be", "fact"}},
	{CorrectionTone, []string{"tone", "professional", "formal", "casual"}},
	{CorrectionStructure, []string{"structure", "format", "organize", "order"}},
	{CorrectionScope, []string{"more", "less", "detail", "brief", "expand"}},
}

func classify(rules []classifierRule, text string) (string, bool) {
	lowered := strings.ToLower(text)
	if strings.TrimSpace(lowered) == "" {
		return "", false
	}
	for _, rule := range rules {
		for _, trigger := range rule.triggers {
			if strings.Contains(lowered, trigger) {
				return rule.bucket, true
			}
		}
	}
	return "", false
}

// ClassifyIssue maps free-form negative feedback to an issue bucket.
func ClassifyIssue(text string) (string, bool) {
	return classify(issueRules, text)
}

// ClassifyCorrection maps a user correction to a correction bucket.
func ClassifyCorrection(text string) (string, bool) {
	return classify(correctionRules, text)
}
