package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"
)

const entryExt = ".yaml"

// DirBackend keeps one YAML file per (project, finder):
//
//	<root>/<projectKey>/<finder>.yaml
//
// projectKey is a short hash of the project id. Writes go to a temporary
// file in the same directory and are renamed into place, so a reader never
// sees a partial entry.
type DirBackend struct {
	root string
}

var _ Backend = (*DirBackend)(nil)

// NewDirBackend returns a backend rooted at root. The directory is created on
// first write.
func NewDirBackend(root string) *DirBackend {
	return &DirBackend{root: root}
}

// ProjectKey returns a short, stable directory name for a project id.
func ProjectKey(project string) string {
	sum := sha256.Sum256([]byte(project))
	return hex.EncodeToString(sum[:])[:12]
}

func (b *DirBackend) entryPath(project, finderName string) string {
	return filepath.Join(b.root, ProjectKey(project), url.PathEscape(finderName)+entryExt)
}

func (b *DirBackend) Load(project, finderName string) (*Entry, error) {
	data, err := os.ReadFile(b.entryPath(project, finderName))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	var e Entry
	if err := yaml.Unmarshal(data, &e); err != nil {
		return nil, fmt.Errorf("decode %s/%s: %w", project, finderName, err)
	}
	return &e, nil
}

func (b *DirBackend) Save(e *Entry) error {
	data, err := yaml.Marshal(e)
	if err != nil {
		return fmt.Errorf("encode %s/%s: %w", e.Project, e.Finder, err)
	}
	final := b.entryPath(e.Project, e.Finder)
	dir := filepath.Dir(final)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	f, err := os.CreateTemp(dir, ".tmp-"+filepath.Base(final)+"-")
	if err != nil {
		return err
	}
	tmp := f.Name()
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return err
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, final)
}

func (b *DirBackend) Entries() ([]Listing, error) {
	var out []Listing
	err := filepath.WalkDir(b.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, os.ErrNotExist) && path == b.root {
				return filepath.SkipDir
			}
			return err
		}
		if d.IsDir() || !isEntryFile(d.Name()) {
			return nil
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		var e Entry
		if err := yaml.Unmarshal(data, &e); err != nil {
			return fmt.Errorf("decode %s: %w", path, err)
		}
		out = append(out, listingOf(&e))
		return nil
	})
	if err != nil {
		return nil, err
	}
	slices.SortFunc(out, func(a, b Listing) int {
		if c := strings.Compare(a.Project, b.Project); c != 0 {
			return c
		}
		return strings.Compare(a.Finder, b.Finder)
	})
	return out, nil
}

func (b *DirBackend) Clear(project string) (int, error) {
	dirs := []string{filepath.Join(b.root, ProjectKey(project))}
	if project == "" {
		ents, err := os.ReadDir(b.root)
		if errors.Is(err, os.ErrNotExist) {
			return 0, nil
		}
		if err != nil {
			return 0, err
		}
		dirs = dirs[:0]
		for _, d := range ents {
			if d.IsDir() {
				dirs = append(dirs, filepath.Join(b.root, d.Name()))
			}
		}
	}

	n := 0
	for _, dir := range dirs {
		ents, err := os.ReadDir(dir)
		if errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err != nil {
			return n, err
		}
		for _, d := range ents {
			if isEntryFile(d.Name()) {
				n++
			}
		}
		if err := os.RemoveAll(dir); err != nil {
			return n, err
		}
	}
	return n, nil
}

func (b *DirBackend) Close() error { return nil }

func isEntryFile(name string) bool {
	return strings.HasSuffix(name, entryExt) && !strings.HasPrefix(name, ".tmp-")
}
