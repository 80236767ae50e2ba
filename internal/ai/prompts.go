// prompts.go - Extraction prompt for bank guarantee documents
package ai

import (
	"strings"

	"github.com/bosocmputer/bank_guarantee_ai/internal/guarantee"
)

// BuildPrompt returns the extraction instruction. The guarantee type is a
// label chosen by the user; the model is told to use it, not infer it.
func BuildPrompt(guaranteeType string) string {
	return "You are extracting data from a bank guarantee document. " +
		"The document may be in Arabic, English, or both. " +
		"Only use text you can see in the document. " +
		"For each field, provide TWO versions: one in English (translate if needed) and one in Arabic (translate if needed). " +
		"Return JSON with exactly these keys: " + strings.Join(guarantee.Keys, ", ") + ". " +
		"The '_ar' keys must contain the Arabic version. Non-_ar keys must be in English. " +
		"If a field is missing, set it to null. " +
		"Guarantee type is: " + guaranteeType + "."
}
