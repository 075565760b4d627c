// Package depgraph infers a dependency graph between discovered files
// from in-file reference syntax and computes a dependency-respecting
// processing order for the refactor executor.
package depgraph

import (
	"os"
	"path/filepath"

	"refinery/internal/discovery"
	"refinery/internal/logging"
)

// Graph maps each file path to the ordered list of file paths it
// depends on. Every edge target is itself a discovered file; references
// that resolve outside the discovered set are dropped during Build.
type Graph map[string][]string

// Build reads each discovered file once and extracts reference targets
// using type-specific heuristics. Unreadable files contribute no edges;
// nothing aborts the build.
func Build(files []discovery.File) Graph {
	timer := logging.StartTimer(logging.CategoryGraph, "Build")
	defer timer.Stop()

	inSet := make(map[string]bool, len(files))
	for _, f := range files {
		inSet[f.Path] = true
	}

	graph := make(Graph, len(files))
	for _, f := range files {
		graph[f.Path] = nil

		content, err := os.ReadFile(f.Path)
		if err != nil {
			logging.GraphDebug("Unreadable, no edges: %s (%v)", f.Path, err)
			continue
		}

		seen := make(map[string]bool)
		for _, ref := range extractReferences(f.Type, string(content)) {
			target := resolveReference(filepath.Dir(f.Path), ref, inSet)
			if target == "" || target == f.Path || seen[target] {
				continue
			}
			seen[target] = true
			graph[f.Path] = append(graph[f.Path], target)
		}

		if n := len(graph[f.Path]); n > 0 {
			logging.GraphDebug("%s -> %d dependencies", f.Path, n)
		}
	}

	logging.Graph("Built graph: %d files, %d edges", len(files), countEdges(graph))
	return graph
}

// resolveReference canonicalizes a raw reference against the referring
// file's directory and returns the matching discovered path, or "".
// JavaScript-style extensionless specifiers get a .js fallback.
func resolveReference(dir string, ref reference, inSet map[string]bool) string {
	candidate := filepath.Clean(filepath.Join(dir, filepath.FromSlash(ref.target)))
	if inSet[candidate] {
		return candidate
	}
	if ref.extFallback != "" {
		withExt := candidate + ref.extFallback
		if inSet[withExt] {
			return withExt
		}
	}
	return ""
}

func countEdges(g Graph) int {
	n := 0
	for _, deps := range g {
		n += len(deps)
	}
	return n
}
