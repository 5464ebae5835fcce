package smartinput

import (
	"strings"

	"github.com/cfait/cfait/internal/task"
)

// addTagWithAliases appends tag to t and then walks its colon-namespaced
// hierarchy (`area:sub:leaf` -> `area:sub:leaf`, `area:sub`, `area`),
// expanding every alias found along the way. Expansion is idempotent:
// re-running it against a tag set that already contains the expanded tags
// adds nothing new, since AddTag is itself a no-op on an existing tag
// (spec.md §8: "alias expansion is idempotent").
func addTagWithAliases(t *task.Task, tag string, aliases map[string][]string) {
	t.AddTag(tag)

	search := tag
	for {
		for _, extra := range aliases[search] {
			t.AddTag(extra)
		}
		idx := strings.LastIndexByte(search, ':')
		if idx < 0 {
			break
		}
		search = search[:idx]
	}
}

// ExtractInlineAliases scans input for `#alias=tag1,tag2` definitions,
// returning the input with each definition collapsed to a bare `#alias`
// token and a map of the aliases it defined. A definition with an empty
// alias name or an empty tag list is left untouched as ordinary text
// rather than silently dropped.
//
// Grounded on original_source/src/model/parser.rs::extract_inline_aliases.
func ExtractInlineAliases(input string) (string, map[string][]string) {
	defined := make(map[string][]string)
	tokens := strings.Fields(input)
	cleaned := make([]string, 0, len(tokens))

	for _, tok := range tokens {
		if strings.HasPrefix(tok, "#") {
			if left, right, ok := strings.Cut(tok, "="); ok {
				key := strings.TrimPrefix(left, "#")
				if key != "" && right != "" {
					var tags []string
					for _, part := range strings.Split(right, ",") {
						part = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(part), "#"))
						if part != "" {
							tags = append(tags, part)
						}
					}
					if len(tags) > 0 {
						defined[key] = tags
						cleaned = append(cleaned, left)
						continue
					}
				}
			}
		}
		cleaned = append(cleaned, tok)
	}

	return strings.Join(cleaned, " "), defined
}
