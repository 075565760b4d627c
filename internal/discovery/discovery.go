// Package discovery walks a target root and produces the fixed set of
// candidate files for one engine run. The set is filtered by supported
// file types (or left open in all-files mode), pruned of built-in and
// caller-supplied exclusions, and capped at a hard ceiling.
package discovery

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"refinery/internal/logging"
)

// FileType tags a discovered file with its refactoring category.
type FileType string

const (
	TypeGo         FileType = "go"
	TypeJavaScript FileType = "javascript"
	TypeHTML       FileType = "html"
	TypeCSS        FileType = "css"
	TypeJSON       FileType = "json"
	TypeYAML       FileType = "yaml"
	TypeUnknown    FileType = "unknown" // all-files mode only
)

// Rank orders file types for scheduling: scripts before markup before
// styles before structured data. Lower runs earlier.
func (t FileType) Rank() int {
	switch t {
	case TypeGo:
		return 0
	case TypeJavaScript:
		return 1
	case TypeHTML:
		return 2
	case TypeCSS:
		return 3
	case TypeJSON:
		return 4
	case TypeYAML:
		return 5
	default:
		return 9
	}
}

// File is one discovered candidate: an absolute path plus its type tag.
type File struct {
	Path string
	Type FileType
}

// Hard ceilings on the discovered set. All-files mode sweeps in
// everything under the root, so it gets the larger cap.
const (
	MaxFiles         = 500
	MaxFilesAllTypes = 2000
)

var (
	// ErrNoFiles is returned when discovery finds nothing to refactor.
	ErrNoFiles = errors.New("no files found to refactor")
	// ErrTooManyFiles is returned when the discovered set exceeds the ceiling.
	ErrTooManyFiles = errors.New("too many files found")
)

var extTypes = map[string]FileType{
	".go":   TypeGo,
	".js":   TypeJavaScript,
	".mjs":  TypeJavaScript,
	".html": TypeHTML,
	".htm":  TypeHTML,
	".css":  TypeCSS,
	".json": TypeJSON,
	".yaml": TypeYAML,
	".yml":  TypeYAML,
}

// Subtrees never worth refactoring: version control, dependency caches,
// temp/log/var directories, and refinery's own state.
var excludedDirs = map[string]bool{
	".git":         true,
	".hg":          true,
	".svn":         true,
	".refinery":    true,
	"node_modules": true,
	"vendor":       true,
	"__pycache__":  true,
	"tmp":          true,
	"temp":         true,
	"log":          true,
	"logs":         true,
	"var":          true,
}

// TypeForPath returns the file type tag for a path, or TypeUnknown.
func TypeForPath(path string) FileType {
	if t, ok := extTypes[strings.ToLower(filepath.Ext(path))]; ok {
		return t
	}
	return TypeUnknown
}

// Options controls a discovery pass.
type Options struct {
	Pattern  string // optional glob matched against the base name
	Exclude  string // optional exclusion: glob on base name or path substring
	AllTypes bool   // include files of unsupported types
}

// Discover walks root and returns the candidate file set in walk order.
// A single-file root is returned as a one-element set when its type is
// supported (or in all-files mode). Returns ErrNoFiles or ErrTooManyFiles
// instead of a partial set.
func Discover(root string, opts Options) ([]File, error) {
	timer := logging.StartTimer(logging.CategoryDiscovery, "Discover")
	defer timer.Stop()

	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve root %q: %w", root, err)
	}

	info, err := os.Stat(absRoot)
	if err != nil {
		return nil, fmt.Errorf("failed to stat root %q: %w", root, err)
	}

	limit := MaxFiles
	if opts.AllTypes {
		limit = MaxFilesAllTypes
	}

	if !info.IsDir() {
		ft := TypeForPath(absRoot)
		if ft == TypeUnknown && !opts.AllTypes {
			return nil, fmt.Errorf("%w: %s has an unsupported type", ErrNoFiles, root)
		}
		logging.Discovery("Single file root: %s (%s)", absRoot, ft)
		return []File{{Path: absRoot, Type: ft}}, nil
	}

	var files []File
	err = filepath.WalkDir(absRoot, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			// Unreadable subtrees are skipped, not fatal.
			logging.DiscoveryDebug("Skipping %s: %v", path, walkErr)
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			if path != absRoot && excludedDirs[d.Name()] {
				return fs.SkipDir
			}
			return nil
		}

		ft := TypeForPath(path)
		if ft == TypeUnknown && !opts.AllTypes {
			return nil
		}
		if opts.Pattern != "" {
			if ok, _ := filepath.Match(opts.Pattern, d.Name()); !ok {
				return nil
			}
		}
		if excluded(path, d.Name(), opts.Exclude) {
			return nil
		}

		files = append(files, File{Path: path, Type: ft})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk %q: %w", root, err)
	}

	if len(files) == 0 {
		return nil, fmt.Errorf("%w under %s", ErrNoFiles, root)
	}
	if len(files) > limit {
		return nil, fmt.Errorf("%w: %d files exceeds limit of %d", ErrTooManyFiles, len(files), limit)
	}

	logging.Discovery("Discovered %d files under %s (all_types=%v)", len(files), absRoot, opts.AllTypes)
	return files, nil
}

func excluded(path, base, pattern string) bool {
	if pattern == "" {
		return false
	}
	if ok, _ := filepath.Match(pattern, base); ok {
		return true
	}
	return strings.Contains(path, pattern)
}
