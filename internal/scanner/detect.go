package scanner

import (
	"path/filepath"
	"strings"
)

// categoryKeywords maps component categories to path and filename
// keywords that identify them.
var categoryKeywords = map[string][]string{
	"header":      {"header", "navbar", "nav-bar", "navigation", "topbar", "top-bar"},
	"hero":        {"hero", "banner", "jumbotron", "landing-hero", "above-fold"},
	"footer":      {"footer", "bottom-bar", "site-footer"},
	"pricing":     {"pricing", "price-table", "price-card", "plan"},
	"testimonial": {"testimonial", "review", "quote", "social-proof"},
	"contact":     {"contact", "contact-form", "get-in-touch"},
	"cta":         {"cta", "call-to-action", "signup"},
	"feature":     {"feature", "features", "benefit", "services"},
	"faq":         {"faq", "accordion", "questions"},
	"404":         {"404", "not-found", "error-page"},
	"auth":        {"login", "signin", "signup", "register", "auth"},
	"sidebar":     {"sidebar", "side-nav", "drawer"},
	"card":        {"card", "cards", "grid-card"},
	"modal":       {"modal", "dialog", "popup"},
	"form":        {"form", "input", "field"},
	"table":       {"table", "data-table", "grid"},
	"layout":      {"layout", "page-layout", "wrapper", "shell"},
}

// categoryOrder fixes the lookup order so detection is deterministic.
var categoryOrder = []string{
	"header", "hero", "footer", "pricing", "testimonial", "contact",
	"cta", "feature", "faq", "404", "auth", "sidebar", "card",
	"modal", "form", "table", "layout",
}

// DetectFramework detects the framework from extension and path context.
func DetectFramework(relPath, ext string) string {
	pathLower := strings.ToLower(filepath.ToSlash(relPath))

	switch ext {
	case ".astro":
		return "astro"
	case ".vue":
		return "vue"
	case ".svelte":
		return "svelte"
	case ".jsx", ".tsx":
		for _, part := range strings.Split(pathLower, "/") {
			if strings.Contains(part, "next") {
				return "nextjs"
			}
		}
		return "react"
	case ".ts":
		return "typescript"
	case ".css", ".scss", ".sass", ".less":
		return "css"
	case ".html", ".htm":
		return "html"
	case ".js", ".mjs", ".cjs":
		return "javascript"
	case ".json":
		return "config"
	case ".md", ".mdx":
		return "markdown"
	}
	return "unknown"
}

// DetectRepoName extracts the repo directory name when the file lives
// under example-websites/<framework>/<repo>/...
func DetectRepoName(relPath string) string {
	parts := strings.Split(filepath.ToSlash(relPath), "/")
	if len(parts) < 2 || parts[0] != "example-websites" {
		return ""
	}
	rest := parts[1:]
	if len(rest) >= 2 {
		return rest[1]
	}
	return rest[0]
}

// DetectCategory detects the component category from path or filename.
// Returns empty string when no keyword matches.
func DetectCategory(relPath string) string {
	pathLower := strings.ToLower(filepath.ToSlash(relPath))
	base := filepath.Base(pathLower)
	nameLower := strings.TrimSuffix(base, filepath.Ext(base))

	for _, category := range categoryOrder {
		for _, keyword := range categoryKeywords[category] {
			if strings.Contains(nameLower, keyword) || strings.Contains(pathLower, "/"+keyword) {
				return category
			}
		}
	}
	return ""
}

// fileExtension returns the lowercased extension, treating minified
// bundles as their own compound extension so they can be excluded.
func fileExtension(name string) string {
	lower := strings.ToLower(name)
	if strings.HasSuffix(lower, ".min.js") {
		return ".min.js"
	}
	if strings.HasSuffix(lower, ".min.css") {
		return ".min.css"
	}
	return filepath.Ext(lower)
}
