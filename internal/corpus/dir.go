package corpus

import (
	"bytes"
	"context"
	"fmt"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"slices"
	"strings"
	"sync/atomic"

	"golang.org/x/mod/modfile"

	"github.com/jward/sift/internal/syntax"
)

// skipDirs lists directory names never descended into by the filesystem
// walk.
var skipDirs = map[string]bool{
	"node_modules": true,
	"vendor":       true,
	"__pycache__":  true,
	"testdata":     true,
}

// Dir provides the supported source files under a directory. Files are
// listed with git ls-files when root is inside a git work tree (respecting
// .gitignore) and by walking the filesystem otherwise. Content is read lazily
// by Next.
//
// Each file's project is the module path of the nearest go.mod between the
// file and root, or the base name of root when there is none.
type Dir struct {
	root      string
	languages map[string]bool
	paths     []string
	pos       int
	provided  atomic.Int64
	projects  map[string]string // dir -> project id
}

var _ Provider = (*Dir)(nil)

// DirOption configures a Dir provider.
type DirOption func(*Dir)

// WithDirLanguages restricts the provider to the given languages.
func WithDirLanguages(languages ...string) DirOption {
	return func(d *Dir) {
		if len(languages) == 0 {
			return
		}
		d.languages = make(map[string]bool, len(languages))
		for _, l := range languages {
			d.languages[l] = true
		}
	}
}

// NewDir lists the files under root. The listing happens once, here.
func NewDir(root string, opts ...DirOption) (*Dir, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("corpus: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("corpus: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("corpus: %s is not a directory", abs)
	}

	d := &Dir{root: abs, projects: make(map[string]string)}
	for _, opt := range opts {
		opt(d)
	}

	paths, err := gitListFiles(abs)
	if err != nil {
		// Not a git repo or git not available, fall back to walk.
		paths, err = walkListFiles(abs)
		if err != nil {
			return nil, err
		}
	}
	for _, p := range paths {
		lang, ok := syntax.LanguageForFile(p)
		if !ok || (d.languages != nil && !d.languages[lang]) {
			continue
		}
		d.paths = append(d.paths, p)
	}
	slices.Sort(d.paths)
	return d, nil
}

// Root returns the absolute root directory.
func (d *Dir) Root() string { return d.root }

// Len is the number of files listed.
func (d *Dir) Len() int { return len(d.paths) }

func (d *Dir) HasNext() bool { return d.pos < len(d.paths) }

func (d *Dir) Next(ctx context.Context) (SourceUnit, error) {
	if err := ctx.Err(); err != nil {
		return SourceUnit{}, err
	}
	if d.pos >= len(d.paths) {
		return SourceUnit{}, ErrExhausted
	}
	abs := d.paths[d.pos]
	d.pos++
	rel, err := filepath.Rel(d.root, abs)
	if err != nil {
		rel = abs
	}
	project := d.projectFor(filepath.Dir(abs))
	d.provided.Add(1)

	// git ls-files lists tracked files even after they are deleted.
	content, err := os.ReadFile(abs)
	if err != nil {
		return SourceUnit{}, &ReadError{Project: project, Path: filepath.ToSlash(rel), Err: err}
	}
	return SourceUnit{
		Project: project,
		Path:    filepath.ToSlash(rel),
		Content: content,
	}, nil
}

func (d *Dir) FilesProvided() int { return int(d.provided.Load()) }

// projectFor finds the project of a directory under root, memoised per
// directory.
func (d *Dir) projectFor(dir string) string {
	if p, ok := d.projects[dir]; ok {
		return p
	}
	var project string
	if name := goModulePath(filepath.Join(dir, "go.mod")); name != "" {
		project = name
	} else if dir == d.root || !strings.HasPrefix(dir, d.root) {
		project = filepath.Base(d.root)
	} else {
		project = d.projectFor(filepath.Dir(dir))
	}
	d.projects[dir] = project
	return project
}

// goModulePath returns the module path declared by the go.mod at path, or
// "" when there is no readable go.mod.
func goModulePath(path string) string {
	data, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	mod, err := modfile.ParseLax(path, data, nil)
	if err != nil || mod.Module == nil {
		return ""
	}
	return mod.Module.Mod.Path
}

// gitListFiles uses git ls-files to discover tracked and untracked (but not
// ignored) files under root.
func gitListFiles(root string) ([]string, error) {
	// --cached: tracked files, --others: untracked files,
	// --exclude-standard: respect .gitignore, .git/info/exclude, global excludes.
	cmd := exec.Command("git", "ls-files", "--cached", "--others", "--exclude-standard")
	cmd.Dir = root
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("git ls-files: %w", err)
	}

	var paths []string
	for _, line := range strings.Split(stdout.String(), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		paths = append(paths, filepath.Join(root, line))
	}
	return paths, nil
}

// walkListFiles discovers files by walking the filesystem, used as a fallback
// when git is not available. Skips hidden directories and skipDirs.
func walkListFiles(root string) ([]string, error) {
	var paths []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			name := d.Name()
			if path != root && (strings.HasPrefix(name, ".") || skipDirs[name]) {
				return filepath.SkipDir
			}
			return nil
		}
		paths = append(paths, path)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk directory: %w", err)
	}
	return paths, nil
}
