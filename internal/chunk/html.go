package chunk

import (
	"regexp"
	"strings"
)

var (
	headRe = regexp.MustCompile(`(?is)<head[^>]*>.*?</head>`)
	bodyRe = regexp.MustCompile(`(?is)<body[^>]*>(.*?)</body>`)

	// Top-level semantic HTML5 elements. Lazy match to the nearest
	// closing tag; good enough for design-library markup where
	// sections rarely nest the same tag.
	sectionRe = regexp.MustCompile(`(?is)<(header|nav|main|section|article|aside|footer)[^>]*>.*?</(?:header|nav|main|section|article|aside|footer)>`)

	tagNameRe = regexp.MustCompile(`^<(\w+)`)
)

// htmlUnits splits HTML into head metadata and semantic body sections.
func htmlUnits(content string) []unit {
	var units []unit

	if head := headRe.FindString(content); head != "" {
		units = append(units, unit{text: head, kind: "head-meta"})
	}

	bodyContent := content
	bodyMatch := bodyRe.FindStringSubmatch(content)
	if bodyMatch != nil {
		bodyContent = bodyMatch[1]
	}

	sections := splitSemanticSections(bodyContent)
	units = append(units, sections...)

	// No semantic sections found: keep the whole body as one component
	// unit so layout-free markup (a bare div) still indexes, without
	// duplicating the head.
	if len(sections) == 0 {
		if bodyMatch != nil && strings.TrimSpace(bodyMatch[1]) != "" {
			units = append(units, unit{text: bodyRe.FindString(content), kind: "component"})
		} else if len(units) == 0 {
			units = append(units, unit{text: content, kind: "fragment"})
		}
	}

	return units
}

// splitSemanticSections returns semantic elements and the markup
// between them, in document order.
func splitSemanticSections(content string) []unit {
	matches := sectionRe.FindAllStringIndex(content, -1)
	if len(matches) == 0 {
		return nil
	}

	var units []unit
	prev := 0
	for _, m := range matches {
		if between := strings.TrimSpace(content[prev:m[0]]); between != "" {
			units = append(units, unit{text: between, kind: "section"})
		}
		section := content[m[0]:m[1]]
		units = append(units, unit{text: section, kind: sectionKind(section)})
		prev = m[1]
	}
	if rest := strings.TrimSpace(content[prev:]); rest != "" {
		units = append(units, unit{text: rest, kind: "section"})
	}

	return units
}

// sectionKind names a section unit by its opening tag.
func sectionKind(section string) string {
	m := tagNameRe.FindStringSubmatch(strings.TrimSpace(section))
	if m == nil {
		return "section"
	}
	switch tag := strings.ToLower(m[1]); tag {
	case "header", "nav", "main", "section", "article", "aside", "footer":
		return tag
	default:
		return "section"
	}
}
