package chunk

import (
	"regexp"
	"strings"
)

// boundaryRe matches lines that start a new top-level declaration in
// JS/TS/JSX/TSX sources.
var boundaryRe = regexp.MustCompile(strings.Join([]string{
	`^export\s+default\s+`,
	`^export\s+(const|function|class|let|var|interface|type)\s+`,
	`^(const|let|var)\s+\w+\s*=\s*(\(|function|class)`,
	`^function\s+\w+`,
	`^class\s+\w+`,
	`^interface\s+\w+`,
	`^type\s+\w+`,
	`^/\*\*`,
}, "|"))

var componentRe = regexp.MustCompile(`^(export\s+default|export\s+const\s+\w+\s*=)`)

// scriptUnits splits JS/TS sources at top-level declaration
// boundaries, detected at brace depth zero.
func scriptUnits(content, defaultKind string) []unit {
	lines := strings.Split(content, "\n")
	boundaries := []int{0}

	braceDepth := 0
	for i, line := range lines {
		stripped := strings.TrimSpace(line)

		if braceDepth == 0 && i > 0 && boundaryRe.MatchString(stripped) {
			boundaries = append(boundaries, i)
		}

		braceDepth += strings.Count(stripped, "{") - strings.Count(stripped, "}")
		// Template literals and JSX make exact counting impossible;
		// never go negative
		if braceDepth < 0 {
			braceDepth = 0
		}
	}
	boundaries = append(boundaries, len(lines))

	var units []unit
	for idx := 0; idx < len(boundaries)-1; idx++ {
		text := strings.TrimSpace(strings.Join(lines[boundaries[idx]:boundaries[idx+1]], "\n"))
		if text == "" {
			continue
		}

		kind := defaultKind
		switch {
		case componentRe.MatchString(text):
			kind = "component"
		case strings.HasPrefix(text, "import "):
			kind = "imports"
		case strings.HasPrefix(text, "/*") || strings.HasPrefix(text, "//"):
			kind = "comments"
		}

		units = append(units, unit{text: text, kind: kind})
	}

	if len(units) == 0 {
		return []unit{{text: content, kind: defaultKind}}
	}
	return units
}
