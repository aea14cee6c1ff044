package review

import "strings"

const maxSuggestionLines = 12

// Leading words that mark prose instructions rather than replacement code.
// A fenced suggestion block is applied verbatim by GitHub, so posting
// natural-language text there produces a broken auto-apply.
var imperativeVerbs = map[string]struct{}{
	"add": {}, "avoid": {}, "change": {}, "check": {}, "consider": {},
	"ensure": {}, "extract": {}, "make": {}, "move": {}, "please": {},
	"prefer": {}, "refactor": {}, "remove": {}, "rename": {}, "replace": {},
	"try": {}, "update": {}, "use": {},
}

var codeTokens = []string{
	"=", "(", "{", "[", ";", ":=", "->", "=>",
	"return ", "import ", "func ", "def ", "const ", "var ", "let ",
}

// isExecutableSuggestion judges whether suggestion text is replacement code
// that can be attached as a fenced suggestion block. Heuristic: code-like
// tokens present, no leading imperative verb, no embedded fence, bounded
// line count.
func isExecutableSuggestion(suggestion string) bool {
	trimmed := strings.TrimSpace(suggestion)
	if trimmed == "" {
		return false
	}
	if strings.Contains(trimmed, "```") {
		return false
	}
	if strings.Count(trimmed, "\n") >= maxSuggestionLines {
		return false
	}

	firstWord := strings.ToLower(trimmed)
	if idx := strings.IndexAny(firstWord, " \t\n"); idx > 0 {
		firstWord = firstWord[:idx]
	}
	if _, imperative := imperativeVerbs[firstWord]; imperative {
		return false
	}

	for _, token := range codeTokens {
		if strings.Contains(trimmed, token) {
			return true
		}
	}
	return false
}
