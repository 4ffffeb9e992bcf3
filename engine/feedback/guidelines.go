package feedback

// Fixed guideline blocks spliced into the analysis prompt when the matching
// pattern crosses the activation threshold. The text is static; only the
// selection is data-driven.

var issueGuidelines = map[string]string{
	BucketAccuracy: `ACCURACY REQUIREMENTS:
- Verify every factual claim against the source document before stating it
- Quote or cite the relevant passage when summarizing obligations or rights
- Never infer provisions that the document does not contain`,
	BucketCompleteness: `COMPLETENESS REQUIREMENTS:
- Cover every material section of the document, not only the opening clauses
- Call out obligations, exceptions, and deadlines explicitly
- When a topic is addressed in multiple sections, mention each occurrence`,
	BucketRelevance: `RELEVANCE REQUIREMENTS:
- Keep the analysis focused on what the document actually regulates
- Omit generic legal commentary that is not grounded in the text
- Prioritize provisions that affect the reader's rights and obligations`,
	BucketFormat: `FORMAT REQUIREMENTS:
- Use clear markdown headings and short bullet lists
- Keep paragraphs under four sentences
- Lead each section with its single most important finding`,
}

var correctionGuidelines = map[string]string{
	CorrectionFactual: `FACTUAL PRECISION:
- Double-check names, dates, amounts, and section numbers against the source
- Prefer direct quotation over paraphrase for contested statements`,
	CorrectionTone: `TONE:
- Write in a neutral, professional register
- Avoid speculative or alarmist language`,
	CorrectionStructure: `STRUCTURE:
- Present findings in the document's own order
- Group related provisions under a shared heading`,
	CorrectionScope: `SCOPE:
- Match the level of detail to the document's complexity
- Expand on high-impact clauses; keep boilerplate brief`,
}

// IssueGuideline returns the prompt block for an issue bucket.
func IssueGuideline(bucket string) (string, bool) {
	text, ok := issueGuidelines[bucket]
	return text, ok
}

// CorrectionGuideline returns the prompt block for a correction bucket.
func CorrectionGuideline(bucket string) (string, bool) {
	text, ok := correctionGuidelines[bucket]
	return text, ok
}
