package depgraph

import (
	"path/filepath"

	"refinery/internal/discovery"
	"refinery/internal/logging"
)

// Schedule computes the processing order: a Kahn's-algorithm traversal
// where ties among simultaneously ready files are broken by file-type
// rank and then filename. Dependency order is therefore always
// preserved, and the schedule is deterministic for a given input set.
// Files trapped in dependency cycles never reach in-degree zero; they
// are appended after all resolvable files, in discovery order, so
// nothing is ever dropped.
func Schedule(files []discovery.File, graph Graph) []discovery.File {
	timer := logging.StartTimer(logging.CategorySchedule, "Schedule")
	defer timer.Stop()

	byPath := make(map[string]discovery.File, len(files))
	indegree := make(map[string]int, len(files))
	dependents := make(map[string][]string, len(files))

	for _, f := range files {
		byPath[f.Path] = f
		indegree[f.Path] = len(graph[f.Path])
		for _, dep := range graph[f.Path] {
			dependents[dep] = append(dependents[dep], f.Path)
		}
	}

	var ready []string
	for _, f := range files {
		if indegree[f.Path] == 0 {
			ready = append(ready, f.Path)
		}
	}

	ordered := make([]discovery.File, 0, len(files))
	scheduled := make(map[string]bool, len(files))

	for len(ready) > 0 {
		i := pickNext(ready, byPath)
		path := ready[i]
		ready = append(ready[:i], ready[i+1:]...)

		ordered = append(ordered, byPath[path])
		scheduled[path] = true

		for _, dependent := range dependents[path] {
			indegree[dependent]--
			if indegree[dependent] == 0 {
				ready = append(ready, dependent)
			}
		}
	}

	// Cycle participants, in original discovery order.
	var cyclic int
	for _, f := range files {
		if !scheduled[f.Path] {
			ordered = append(ordered, f)
			cyclic++
		}
	}
	if cyclic > 0 {
		logging.Schedule("%d files in dependency cycles appended in discovery order", cyclic)
	}

	logging.Schedule("Scheduled %d files", len(ordered))
	return ordered
}

// pickNext selects the ready file with the lowest type rank, breaking
// ties by filename then full path. Linear scan; the set is capped well
// below the point where this matters.
func pickNext(ready []string, byPath map[string]discovery.File) int {
	best := 0
	for i := 1; i < len(ready); i++ {
		if scheduleLess(byPath[ready[i]], byPath[ready[best]]) {
			best = i
		}
	}
	return best
}

func scheduleLess(a, b discovery.File) bool {
	if a.Type.Rank() != b.Type.Rank() {
		return a.Type.Rank() < b.Type.Rank()
	}
	an, bn := filepath.Base(a.Path), filepath.Base(b.Path)
	if an != bn {
		return an < bn
	}
	return a.Path < b.Path
}
