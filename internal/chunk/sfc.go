package chunk

import (
	"regexp"
	"strings"
)

var sfcBlockRes = map[string]*regexp.Regexp{
	"template": regexp.MustCompile(`(?is)<template[^>]*>.*?</template>`),
	"script":   regexp.MustCompile(`(?is)<script[^>]*>.*?</script>`),
	"style":    regexp.MustCompile(`(?is)<style[^>]*>.*?</style>`),
}

var frontmatterRe = regexp.MustCompile(`(?s)^---\n.*?\n---`)

// sfcUnits splits single-file components (Vue, Svelte) into their
// block sections; whatever markup remains is split like HTML.
func sfcUnits(content string, blockTags []string) []unit {
	var units []unit
	remaining := content

	for _, tag := range blockTags {
		for _, match := range sfcBlockRes[tag].FindAllString(content, -1) {
			units = append(units, unit{text: match, kind: tag})
			remaining = strings.Replace(remaining, match, "", 1)
		}
	}

	if markup := strings.TrimSpace(remaining); markup != "" {
		for _, u := range htmlUnits(markup) {
			units = append(units, unit{text: u.text, kind: "template-" + u.kind})
		}
	}

	if len(units) == 0 {
		return []unit{{text: content, kind: "fragment"}}
	}
	return units
}

// astroUnits splits Astro files into frontmatter, HTML-like template
// sections, and style blocks.
func astroUnits(content string) []unit {
	var units []unit

	template := content
	if fm := frontmatterRe.FindString(content); fm != "" {
		units = append(units, unit{text: fm, kind: "frontmatter"})
		template = content[len(fm):]
	}

	// Styles come out before the template split so they are not
	// mistaken for markup sections
	var styles []string
	for _, style := range sfcBlockRes["style"].FindAllString(template, -1) {
		styles = append(styles, style)
		template = strings.Replace(template, style, "", 1)
	}

	if markup := strings.TrimSpace(template); markup != "" {
		for _, u := range htmlUnits(markup) {
			units = append(units, unit{text: u.text, kind: "astro-" + u.kind})
		}
	}

	for _, style := range styles {
		units = append(units, unit{text: style, kind: "style"})
	}

	if len(units) == 0 {
		return []unit{{text: content, kind: "fragment"}}
	}
	return units
}
