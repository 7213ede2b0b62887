package llmservice

import (
	"regexp"
	"strings"
)

// ParsedResponse is an LLM response split into its surrounding prose and an
// optional extracted SQL statement.
type ParsedResponse struct {
	Text string
	SQL  *string
}

var fencedBlockPattern = regexp.MustCompile("(?s)```([a-zA-Z0-9]*)\\n?(.*?)```")

// Parse locates the first fenced code block, preferring a ```sql block over
// a language-less one. Blocks tagged with an unrelated language (e.g.
// python) are treated as non-SQL. The matched block is stripped from the
// returned text.
func Parse(response string) ParsedResponse {
	matches := fencedBlockPattern.FindAllStringSubmatchIndex(response, -1)
	if len(matches) == 0 {
		return ParsedResponse{Text: strings.TrimSpace(response)}
	}

	chosen := -1
	for i, m := range matches {
		lang := strings.ToLower(strings.TrimSpace(response[m[2]:m[3]]))
		if lang == "sql" {
			chosen = i
			break
		}
	}
	if chosen == -1 {
		for i, m := range matches {
			lang := strings.ToLower(strings.TrimSpace(response[m[2]:m[3]]))
			if lang == "" {
				chosen = i
				break
			}
		}
	}
	if chosen == -1 {
		return ParsedResponse{Text: strings.TrimSpace(response)}
	}

	m := matches[chosen]
	body := strings.TrimSpace(response[m[4]:m[5]])
	surrounding := response[:m[0]] + response[m[1]:]

	sql := body
	return ParsedResponse{Text: strings.TrimSpace(surrounding), SQL: &sql}
}
