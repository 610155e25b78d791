package answer

import "strings"

// Kind is the classification of a query.
type Kind int

const (
	// KindQuestion asks for a specific fact and goes through answer extraction.
	KindQuestion Kind = iota
	// KindTask asks for generated output such as a list or summary.
	KindTask
)

// String returns a string representation of the kind.
func (k Kind) String() string {
	switch k {
	case KindQuestion:
		return "question"
	case KindTask:
		return "task"
	default:
		return "unknown"
	}
}

// Classifier decides which branch answers a query.
type Classifier interface {
	Classify(query string) Kind
}

// KeywordClassifier marks a query as a task when it contains any keyword,
// case-insensitively. Everything else is a question.
type KeywordClassifier struct {
	keywords []string
}

// NewKeywordClassifier returns a classifier over keywords. Blank keywords are ignored.
func NewKeywordClassifier(keywords []string) *KeywordClassifier {
	kc := &KeywordClassifier{keywords: make([]string, 0, len(keywords))}
	for _, kw := range keywords {
		kw = strings.ToLower(strings.TrimSpace(kw))
		if kw != "" {
			kc.keywords = append(kc.keywords, kw)
		}
	}
	return kc
}

// Classify returns KindTask if query contains a keyword.
func (kc *KeywordClassifier) Classify(query string) Kind {
	q := strings.ToLower(query)
	for _, kw := range kc.keywords {
		if strings.Contains(q, kw) {
			return KindTask
		}
	}
	return KindQuestion
}
