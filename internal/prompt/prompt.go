// Package prompt assembles the grounded question prompt sent to the
// generator.
package prompt

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/dshills/gorag/pkg/types"
)

// IDontKnow is the exact reply requested when the sources lack the answer.
const IDontKnow = "I don't know."

const historyHeading = "Conversation context (for resolving references like he/his/that):"

// Build renders the retrieved sources as "[doc_id#chunk_id]" blocks followed
// by answering rules and the question.
func Build(query string, results []types.RetrievalResult) string {
	blocks := make([]string, len(results))
	for i, r := range results {
		blocks[i] = fmt.Sprintf("[%s]\n%s", r.Ref(), r.Text)
	}

	example := "doc_id#chunk_id"
	if len(results) > 0 {
		example = results[0].Ref()
	}

	var b strings.Builder
	b.WriteString("You are an AI assistant.\n")
	b.WriteString("Answer ONLY using the Sources below.\n\n")
	b.WriteString("Rules:\n")
	b.WriteString("- Cite only the source tags shown below, in the form [doc_id#chunk_id].\n")
	fmt.Fprintf(&b, "- End each sentence with the tag of the source it came from, like [%s].\n", example)
	fmt.Fprintf(&b, "- If the answer is not in the Sources, say exactly: %q\n", IDontKnow)
	b.WriteString("- Do not use outside knowledge.\n\n")
	b.WriteString("Sources:\n")
	b.WriteString(strings.Join(blocks, "\n\n"))
	b.WriteString("\n\nQuestion:\n")
	b.WriteString(strings.TrimSpace(query))
	b.WriteString("\n\nAnswer:")
	return b.String()
}

// WithHistory prefixes prompt with prior messages as "Role: content" lines
// so follow-up questions can resolve pronouns. Empty history leaves the
// prompt unchanged.
func WithHistory(history []types.Message, prompt string) string {
	if len(history) == 0 {
		return prompt
	}

	lines := make([]string, len(history))
	for i, m := range history {
		lines[i] = fmt.Sprintf("%s: %s", titleCase(m.Role), m.Content)
	}
	return historyHeading + "\n" + strings.Join(lines, "\n") + "\n\n" + prompt
}

func titleCase(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + strings.ToLower(s[size:])
}
