// Package scanner walks a CVS module's working tree, resolves the
// Attic/zombie ambiguity between a deleted-on-trunk file and its Attic
// copy, and decides which ",v" files need to be re-parsed against the
// statcache.
package scanner

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/opencvs/cvsimport/internal/cvsimport/cvserr"
	"github.com/opencvs/cvsimport/internal/cvsimport/model"
)

// StatProvider answers whether a ",v" file's stored fingerprint still
// matches its current (mtime, size); the metadata store implements it.
type StatProvider interface {
	Lookup(path string) (model.StatcacheEntry, bool)
}

// Candidate is one ",v" file the scanner has decided belongs in the
// current scan, paired with the working-copy-relative name it maps to.
type Candidate struct {
	Path       string // filesystem path to the ",v" file
	Filename   string // working-copy-relative path, "Attic" stripped
	Entry      model.StatcacheEntry
	NeedsParse bool // (mtime, size) differs from the statcache, or no entry exists
}

// Scanner enumerates the ",v" files under one CVS module.
type Scanner struct {
	root string
}

// New returns a Scanner rooted at the given module directory.
func New(root string) *Scanner {
	return &Scanner{root: root}
}

type rawEntry struct {
	path     string
	filename string
	isAttic  bool
	mtime    os.FileInfo
}

// Scan walks the module, applies the Attic/zombie policy, and returns the
// resulting candidates annotated with whether each needs re-parsing
// against cache. Candidates are returned in a stable, sorted order.
func (s *Scanner) Scan(cache StatProvider) ([]Candidate, error) {
	var entries []rawEntry

	err := filepath.Walk(s.root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			if filepath.Base(path) == "CVSROOT" {
				return filepath.SkipDir
			}
			return nil
		}
		if !strings.HasSuffix(path, ",v") {
			return nil
		}

		rel, err := filepath.Rel(s.root, path)
		if err != nil {
			return err
		}
		isAttic := hasAtticComponent(rel)
		entries = append(entries, rawEntry{
			path:     path,
			filename: workingCopyName(rel),
			isAttic:  isAttic,
			mtime:    info,
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	resolved, err := resolveZombies(entries)
	if err != nil {
		return nil, err
	}

	candidates := make([]Candidate, 0, len(resolved))
	for _, e := range resolved {
		entry := model.StatcacheEntry{
			Path:  e.path,
			Mtime: e.mtime.ModTime(),
			Size:  e.mtime.Size(),
		}
		needsParse := true
		if cache != nil {
			if cached, ok := cache.Lookup(e.path); ok {
				needsParse = !cached.Mtime.Equal(entry.Mtime) || cached.Size != entry.Size
			}
		}
		candidates = append(candidates, Candidate{
			Path:       e.path,
			Filename:   e.filename,
			Entry:      entry,
			NeedsParse: needsParse,
		})
	}

	sort.Slice(candidates, func(i, j int) bool { return candidates[i].Filename < candidates[j].Filename })
	return candidates, nil
}

// resolveZombies applies the Attic/zombie policy across every entry found
// by the walk: an Attic copy and its parent-directory sibling are resolved
// to exactly one winner by size, the larger standing in for the one with
// more revisions.
func resolveZombies(entries []rawEntry) ([]rawEntry, error) {
	byFilename := make(map[string][]rawEntry, len(entries))
	for _, e := range entries {
		byFilename[e.filename] = append(byFilename[e.filename], e)
	}

	var out []rawEntry
	for filename, group := range byFilename {
		if len(group) == 1 {
			out = append(out, group[0])
			continue
		}

		// Exactly two entries are possible for a given working-copy name:
		// the trunk copy and its Attic sibling.
		var attic, parent *rawEntry
		for i := range group {
			if group[i].isAttic {
				attic = &group[i]
			} else {
				parent = &group[i]
			}
		}
		if attic == nil || parent == nil {
			// Shouldn't happen (two non-Attic files can't share a
			// working-copy name), but fall back to keeping both rather
			// than silently dropping data.
			out = append(out, group...)
			continue
		}

		switch {
		case attic.mtime.Size() > parent.mtime.Size():
			out = append(out, *attic)
		case parent.mtime.Size() > attic.mtime.Size():
			out = append(out, *parent)
		default:
			return nil, &cvserr.ZombieAmbiguous{Path: filename}
		}
	}
	return out, nil
}

// hasAtticComponent reports whether rel passes through a directory
// literally named "Attic".
func hasAtticComponent(rel string) bool {
	for _, part := range strings.Split(filepath.ToSlash(filepath.Dir(rel)), "/") {
		if part == "Attic" {
			return true
		}
	}
	return false
}

// workingCopyName strips ",v" and any "Attic" path component from rel,
// yielding the name CVS would show a checkout client.
func workingCopyName(rel string) string {
	rel = strings.TrimSuffix(rel, ",v")
	parts := strings.Split(filepath.ToSlash(rel), "/")
	out := parts[:0]
	for _, p := range parts {
		if p == "Attic" {
			continue
		}
		out = append(out, p)
	}
	return strings.Join(out, "/")
}

// ValidationMessage is one finding from a repository-root Validate call.
type ValidationMessage struct {
	Field   string
	Message string
}

// ValidationResult is the outcome of validating a candidate CVS root.
type ValidationResult struct {
	Valid    bool
	Errors   []ValidationMessage
	Warnings []ValidationMessage
	Infos    []ValidationMessage
}

// Validator checks that a filesystem path looks like a CVS repository
// root, i.e. the path itself contains a CVSROOT directory.
type Validator struct{}

// NewValidator returns a Validator.
func NewValidator() *Validator {
	return &Validator{}
}

// Validate checks path directly; it does not walk upward looking for an
// ancestor CVSROOT — callers wanting that behavior should use
// FindModuleRoot first.
func (v *Validator) Validate(path string) *ValidationResult {
	result := &ValidationResult{Valid: true}

	info, err := os.Stat(path)
	if err != nil {
		result.Valid = false
		result.Errors = append(result.Errors, ValidationMessage{Field: "path", Message: "Path does not exist: " + path})
		return result
	}
	if !info.IsDir() {
		result.Valid = false
		result.Errors = append(result.Errors, ValidationMessage{Field: "path", Message: "Path is not a directory: " + path})
		return result
	}

	cvsroot := filepath.Join(path, "CVSROOT")
	if _, err := os.Stat(cvsroot); os.IsNotExist(err) {
		result.Valid = false
		result.Errors = append(result.Errors, ValidationMessage{Field: "CVSROOT", Message: "CVSROOT directory not found"})
		return result
	}

	result.Infos = append(result.Infos, ValidationMessage{Field: "repository", Message: "Repository structure is valid"})

	for _, file := range []string{"history", "val-tags"} {
		if _, err := os.Stat(filepath.Join(cvsroot, file)); os.IsNotExist(err) {
			result.Warnings = append(result.Warnings, ValidationMessage{
				Field:   "CVSROOT/" + file,
				Message: "Optional file not found",
			})
		}
	}

	return result
}

// FindModuleRoot walks upward from path looking for an ancestor directory
// containing CVSROOT; it returns that ancestor and the module-relative
// path from there, per the "source tree" rule in the external interfaces
// contract.
func FindModuleRoot(path string) (root, module string, err error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", "", err
	}

	cur := abs
	for {
		if _, statErr := os.Stat(filepath.Join(cur, "CVSROOT")); statErr == nil {
			rel, relErr := filepath.Rel(cur, abs)
			if relErr != nil {
				return "", "", relErr
			}
			if rel == "." {
				rel = ""
			}
			return cur, filepath.ToSlash(rel), nil
		}
		parent := filepath.Dir(cur)
		if parent == cur {
			return "", "", os.ErrNotExist
		}
		cur = parent
	}
}
