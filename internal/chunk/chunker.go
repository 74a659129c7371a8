package chunk

import (
	"strings"
	"unicode/utf8"
)

// Split chunks file content based on extension.
//
// The extension routes to a format-aware boundary scanner; unknown
// extensions fall back to treating the whole file as one unit, which
// the size rules then bound. Returns nil for empty or blank input,
// and never returns zero chunks for non-blank input.
func Split(text, ext string, opts Options) []Chunk {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	if opts.TargetChars <= 0 {
		opts = DefaultOptions()
	}

	var units []unit
	switch ext {
	case ".html", ".htm":
		units = htmlUnits(text)
	case ".css", ".scss", ".sass", ".less":
		units = cssUnits(text)
	case ".jsx", ".tsx":
		units = scriptUnits(text, "component")
	case ".js", ".ts", ".mjs", ".cjs":
		units = scriptUnits(text, "function")
	case ".vue":
		units = sfcUnits(text, []string{"template", "script", "style"})
	case ".svelte":
		units = sfcUnits(text, []string{"script", "style"})
	case ".astro":
		units = astroUnits(text)
	default:
		units = []unit{{text: strings.TrimSpace(text), kind: "fragment"}}
	}

	chunks := accumulate(units, opts)

	// Never return zero chunks for non-blank input
	if len(chunks) == 0 {
		fallback := strings.TrimSpace(text)
		if utf8.RuneCountInString(fallback) > opts.MaxChars {
			fallback = truncateRunes(fallback, opts.MaxChars)
		}
		chunks = []Chunk{{Text: fallback, SectionKind: "fragment"}}
	}

	for i := range chunks {
		chunks[i].Index = i
		chunks[i].Total = len(chunks)
	}
	return chunks
}

// accumulate greedily packs units into chunks near the target size.
// A unit longer than MaxChars is hard-split first. The trailing
// fragment is dropped when shorter than MinChars, unless it would be
// the only chunk.
func accumulate(units []unit, opts Options) []Chunk {
	var expanded []unit
	for _, u := range units {
		text := strings.TrimSpace(u.text)
		if text == "" {
			continue
		}
		if utf8.RuneCountInString(text) > opts.MaxChars {
			for i, piece := range hardSplit(text, opts.MaxChars) {
				kind := u.kind
				if i > 0 {
					kind = u.kind + "-part"
				}
				expanded = append(expanded, unit{text: piece, kind: kind})
			}
		} else {
			expanded = append(expanded, unit{text: text, kind: u.kind})
		}
	}

	var chunks []Chunk
	var buf strings.Builder
	bufKind := ""

	flush := func() {
		if buf.Len() == 0 {
			return
		}
		chunks = append(chunks, Chunk{Text: buf.String(), SectionKind: bufKind})
		buf.Reset()
		bufKind = ""
	}

	for _, u := range expanded {
		// Never let an accumulated chunk exceed the hard bound
		if buf.Len() > 0 &&
			utf8.RuneCountInString(buf.String())+2+utf8.RuneCountInString(u.text) > opts.MaxChars {
			flush()
		}

		if buf.Len() > 0 {
			buf.WriteString("\n\n")
		} else {
			bufKind = u.kind
		}
		buf.WriteString(u.text)

		if utf8.RuneCountInString(buf.String()) >= opts.TargetChars {
			flush()
		}
	}

	if buf.Len() > 0 {
		chunks = append(chunks, Chunk{Text: buf.String(), SectionKind: bufKind})
	}

	// Drop fragments below the minimum, but never all of them
	kept := chunks[:0]
	for _, c := range chunks {
		if utf8.RuneCountInString(c.Text) >= opts.MinChars {
			kept = append(kept, c)
		}
	}
	if len(kept) == 0 && len(chunks) > 0 {
		return chunks[:1]
	}
	return kept
}

// hardSplit cuts text into pieces of at most maxChars runes, breaking
// at the last newline inside the window when one exists.
func hardSplit(text string, maxChars int) []string {
	var pieces []string
	runes := []rune(text)

	for len(runes) > 0 {
		if len(runes) <= maxChars {
			piece := strings.TrimSpace(string(runes))
			if piece != "" {
				pieces = append(pieces, piece)
			}
			break
		}

		window := runes[:maxChars]
		cut := maxChars
		if idx := lastIndexRune(window, '\n'); idx > 0 {
			cut = idx + 1
		}

		piece := strings.TrimSpace(string(runes[:cut]))
		if piece != "" {
			pieces = append(pieces, piece)
		}
		runes = runes[cut:]
	}

	return pieces
}

func lastIndexRune(rs []rune, r rune) int {
	for i := len(rs) - 1; i >= 0; i-- {
		if rs[i] == r {
			return i
		}
	}
	return -1
}

// truncateRunes cuts s to at most n runes.
func truncateRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
