package answer

import (
	"fmt"
	"sort"
	"strings"

	"github.com/hyperjump/kotae/internal/vectorstore"
)

const contextSeparator = "\n\n"

func taskPrompt(query, context string) string {
	return fmt.Sprintf(`Perform the following task using only the information in the context below.
If the context does not contain enough information to complete the task, say that the context is insufficient.

Context:
%s

Task: %s

Result:`, context, query)
}

func enhancePrompt(rawAnswer, keyEntities string) string {
	return fmt.Sprintf(`Rephrase the following "Raw Answer" into one fluent, complete, standalone sentence.
Use only the information in the "Raw Answer" and, where helpful, the "Key Entities".
Do not add any new information.

Key Entities: %s
Raw Answer: %s

Polished Answer:`, keyEntities, rawAnswer)
}

// assemble joins chunk contents into one context and returns the sorted,
// deduplicated chunk sources.
func assemble(chunks []vectorstore.Chunk) (string, []string) {
	contents := make([]string, len(chunks))
	seen := make(map[string]bool, len(chunks))
	sources := make([]string, 0, len(chunks))
	for i, c := range chunks {
		contents[i] = c.Content
		if !seen[c.Source] {
			seen[c.Source] = true
			sources = append(sources, c.Source)
		}
	}
	sort.Strings(sources)
	return strings.Join(contents, contextSeparator), sources
}
