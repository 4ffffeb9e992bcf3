package analysis

import "fmt"

const basePrompt = `You are a legal policy analyst. Analyze the following policy document
and provide a clear, structured review covering:

1. Purpose and scope of the document
2. Key obligations and rights it establishes
3. Notable deadlines, penalties, and exceptions
4. Potential concerns or ambiguities a reader should know about

Write in plain language a non-lawyer can follow. Use markdown headings
and keep each point grounded in the document text.`

const synthesisInstruction = `You are a legal policy analyst. The following are section analyses of
one large policy document. Write a concise executive summary that ties
the sections together: the document's overall purpose, its most
important obligations, and the top concerns. Do not repeat section
detail; synthesize it.`

// analysisPrompt builds the single-document prompt. The improvement
// addition, when present, is spliced between the instructions and the
// document text.
func analysisPrompt(text, addition string) string {
	if addition != "" {
		return fmt.Sprintf("%s\n\n%s\n\nDOCUMENT:\n%s", basePrompt, addition, text)
	}
	return fmt.Sprintf("%s\n\nDOCUMENT:\n%s", basePrompt, text)
}

// sectionPrompt builds the prompt for one section of a chunked document.
func sectionPrompt(text, addition string, index, total int) string {
	header := fmt.Sprintf("%s\n\nThis is section %d of %d of a larger document. Analyze this section on its own terms.", basePrompt, index, total)
	if addition != "" {
		return fmt.Sprintf("%s\n\n%s\n\nSECTION:\n%s", header, addition, text)
	}
	return fmt.Sprintf("%s\n\nSECTION:\n%s", header, text)
}

// synthesisPrompt builds the executive-summary prompt over combined
// section analyses.
func synthesisPrompt(combined string) string {
	return fmt.Sprintf("%s\n\nSECTION ANALYSES:\n%s", synthesisInstruction, combined)
}
