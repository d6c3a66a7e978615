package types

import "strings"

// llmKeywords are matched case-insensitively against unclassified error
// messages. Matching is a heuristic: "api" in particular also hits unrelated
// words, so structured llm_failure errors always take precedence.
var llmKeywords = []string{"openai", "api", "rate limit", "quota", "timeout"}

// LLMKeywords returns a copy of the keyword set used by MentionsLLMProvider.
func LLMKeywords() []string {
	out := make([]string, len(llmKeywords))
	copy(out, llmKeywords)
	return out
}

// MentionsLLMProvider reports whether msg contains one of the LLM provider keywords.
func MentionsLLMProvider(msg string) bool {
	lower := strings.ToLower(msg)
	for _, kw := range llmKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// IsLLMFailure reports whether err should be treated as an upstream LLM
// failure. A classified error decides by its kind; anything else falls back
// to keyword matching on the message.
func IsLLMFailure(err error) bool {
	if err == nil {
		return false
	}
	if e, ok := AsError(err); ok {
		return e.Kind == KindLLMFailure
	}
	return MentionsLLMProvider(err.Error())
}
