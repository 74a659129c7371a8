package chunk

import (
	"regexp"
	"strings"
)

var atRuleRe = regexp.MustCompile(`^@(media|keyframes|supports|layer|font-face)`)

// cssUnits splits stylesheets at top-level at-rules and section
// separator comments, tracking brace depth so nested blocks stay
// intact.
func cssUnits(content string) []unit {
	var units []unit
	var current []string
	currentKind := "rules"
	braceDepth := 0

	flush := func() {
		text := strings.Join(current, "\n")
		if strings.TrimSpace(text) != "" {
			units = append(units, unit{text: text, kind: currentKind})
		}
		current = nil
	}

	for _, line := range strings.Split(content, "\n") {
		stripped := strings.TrimSpace(line)

		switch {
		case braceDepth == 0 && atRuleRe.MatchString(stripped):
			flush()
			current = []string{line}
			if strings.HasPrefix(stripped, "@media") {
				currentKind = "media-query"
			} else {
				currentKind = "at-rule"
			}

		case braceDepth == 0 && strings.HasPrefix(stripped, "/*") && isSeparatorComment(stripped):
			flush()
			current = []string{line}
			currentKind = "rules"

		default:
			current = append(current, line)
		}

		braceDepth += strings.Count(line, "{") - strings.Count(line, "}")
		if braceDepth < 0 {
			braceDepth = 0
		}

		// At-rule block closed: flush it as its own unit
		if braceDepth == 0 && (currentKind == "media-query" || currentKind == "at-rule") && strings.Contains(line, "}") {
			flush()
			currentKind = "rules"
		}
	}

	flush()

	if len(units) == 0 {
		return []unit{{text: content, kind: "rules"}}
	}
	return units
}

// isSeparatorComment reports whether a comment line looks like a
// component separator (/* === Hero === */ and the like).
func isSeparatorComment(line string) bool {
	return strings.Contains(line, "===") ||
		strings.Contains(line, "---") ||
		strings.Contains(strings.ToUpper(line), "SECTION")
}
