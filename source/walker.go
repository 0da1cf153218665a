package source

import (
	"path/filepath"

	"github.com/boyter/gocodewalker"
)

// Index maps a base filename (without directory) to every absolute path
// under the workspace matching it. It's used as a best-effort fallback
// when a harvester-reported "file" does not exist at its reported path;
// definitions reported without a file get no location.
type Index struct {
	byBaseName map[string][]string
}

// BuildIndex walks root, honoring ignorePatterns (glob patterns matched
// against the path relative to root), and returns an Index of every
// ".py" file found. Errors from individual file stats are swallowed; a
// source-location fallback is best-effort by nature.
//
// It exists for the case a harvester-reported location doesn't resolve to
// an actual file on disk (the step library is installed into a virtual
// environment's site-packages rather than living under the workspace
// root) — the Loader falls back to a unique workspace match by base name.
func BuildIndex(root string, ignorePatterns []string) (*Index, error) {
	idx := &Index{byBaseName: make(map[string][]string)}

	queue := make(chan *gocodewalker.File, 100)
	walker := gocodewalker.NewFileWalker(root, queue)
	walker.AllowListExtensions = []string{"py"}
	walker.IgnoreGitIgnore = true

	walker.SetErrorHandler(func(error) bool { return true })

	done := make(chan error, 1)

	go func() {
		done <- walker.Start()
	}()

	for f := range queue {
		rel, err := filepath.Rel(root, f.Location)
		if err == nil && matchesAny(rel, ignorePatterns) {
			continue
		}

		base := filepath.Base(f.Location)
		idx.byBaseName[base] = append(idx.byBaseName[base], f.Location)
	}

	return idx, <-done
}

// Resolve returns the unique absolute path whose base name matches
// baseName, if exactly one candidate was found under the workspace.
func (idx *Index) Resolve(baseName string) (string, bool) {
	candidates := idx.byBaseName[baseName]
	if len(candidates) != 1 {
		return "", false
	}

	return candidates[0], true
}

func matchesAny(path string, patterns []string) bool {
	for _, pat := range patterns {
		if ok, _ := filepath.Match(pat, path); ok {
			return true
		}
	}

	return false
}
