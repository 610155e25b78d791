// Package answer turns a query into a role-aware answer over retrieved chunks.
package answer

// Fixed user-visible messages.
const (
	NoInformationMessage = "I couldn't find any relevant information in the uploaded documents."
	LowConfidenceMessage = "I found some related information but could not determine a precise answer. Try rephrasing the question or asking about a specific detail."
	ErrorMessage         = "Sorry, something went wrong while processing your request."
)

// Result is the outcome of answering one query.
type Result struct {
	Text       string   `json:"text"`
	Sources    []string `json:"sources"`
	Confidence float64  `json:"confidence"`
}

func errorResult() Result {
	return Result{Text: ErrorMessage, Sources: []string{}, Confidence: 0}
}
