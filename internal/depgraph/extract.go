package depgraph

import (
	"regexp"
	"strings"

	"refinery/internal/discovery"
)

// reference is one raw in-file reference target, pre-resolution.
type reference struct {
	target      string // as written, always slash-separated and relative
	extFallback string // extension appended if the bare target resolves nowhere
}

var (
	// require('./x') / require("../x")
	jsRequireRe = regexp.MustCompile(`require\(\s*['"](\.\.?/[^'"]+)['"]\s*\)`)
	// import ... from './x'  and bare  import './x'
	jsImportRe = regexp.MustCompile(`import\s+(?:[^'";]*?\s+from\s+)?['"](\.\.?/[^'"]+)['"]`)
	// <script src="...">
	htmlScriptRe = regexp.MustCompile(`(?i)<script[^>]*\ssrc\s*=\s*["']([^"']+)["']`)
	// <a href="..."> and <link href="...">
	htmlHrefRe = regexp.MustCompile(`(?i)<(?:a|link)\s[^>]*href\s*=\s*["']([^"']+)["']`)
	// @import "x.css" / @import url(x.css)
	cssImportRe = regexp.MustCompile(`@import\s+(?:url\(\s*)?["']?([^"'()\s;]+)`)
)

// extractReferences applies the type-specific heuristic for inter-file
// references. Go, JSON and YAML files carry no per-file include syntax
// the engine tracks, so they contribute no edges.
func extractReferences(ft discovery.FileType, content string) []reference {
	switch ft {
	case discovery.TypeJavaScript:
		return extractJS(content)
	case discovery.TypeHTML:
		return extractHTML(content)
	case discovery.TypeCSS:
		return extractCSS(content)
	default:
		return nil
	}
}

func extractJS(content string) []reference {
	var refs []reference
	for _, m := range jsRequireRe.FindAllStringSubmatch(content, -1) {
		refs = append(refs, reference{target: m[1], extFallback: ".js"})
	}
	for _, m := range jsImportRe.FindAllStringSubmatch(content, -1) {
		refs = append(refs, reference{target: m[1], extFallback: ".js"})
	}
	return refs
}

func extractHTML(content string) []reference {
	var refs []reference
	for _, m := range htmlScriptRe.FindAllStringSubmatch(content, -1) {
		if src, ok := localTarget(m[1]); ok {
			refs = append(refs, reference{target: src})
		}
	}
	for _, m := range htmlHrefRe.FindAllStringSubmatch(content, -1) {
		href, ok := localTarget(m[1])
		if !ok {
			continue
		}
		// Links are only followed for same- or adjacent-directory
		// references; deeper relative paths are not tracked.
		if strings.Count(href, "/") > 1 {
			continue
		}
		refs = append(refs, reference{target: href})
	}
	return refs
}

func extractCSS(content string) []reference {
	var refs []reference
	for _, m := range cssImportRe.FindAllStringSubmatch(content, -1) {
		if target, ok := localTarget(m[1]); ok {
			refs = append(refs, reference{target: target})
		}
	}
	return refs
}

// localTarget strips query/fragment suffixes and rejects anything that
// is not a plain relative filesystem reference.
func localTarget(raw string) (string, bool) {
	if raw == "" {
		return "", false
	}
	if i := strings.IndexAny(raw, "?#"); i >= 0 {
		raw = raw[:i]
	}
	if raw == "" || strings.HasPrefix(raw, "/") {
		return "", false
	}
	if strings.Contains(raw, "://") || strings.HasPrefix(raw, "//") {
		return "", false
	}
	if strings.HasPrefix(raw, "mailto:") || strings.HasPrefix(raw, "data:") || strings.HasPrefix(raw, "javascript:") {
		return "", false
	}
	return raw, true
}
