package corpus

import (
	"fmt"
	"slices"

	"github.com/minio/highwayhash"
)

var hashKey = []byte("sift-corpus-fingerprint-key-0001")

func hash64(data []byte) (uint64, error) {
	h, err := highwayhash.New64(hashKey)
	if err != nil {
		return 0, err
	}
	_, err = h.Write(data)
	return h.Sum64(), err
}

// Fingerprinter accumulates a content fingerprint per project. The result
// does not depend on the order files were added in.
type Fingerprinter struct {
	files map[string]map[string]uint64 // project -> path -> content hash
}

// NewFingerprinter returns an empty fingerprinter.
func NewFingerprinter() *Fingerprinter {
	return &Fingerprinter{files: make(map[string]map[string]uint64)}
}

// Add records one unit.
func (f *Fingerprinter) Add(u SourceUnit) error {
	sum, err := hash64(u.Content)
	if err != nil {
		return fmt.Errorf("corpus: fingerprint %s: %w", u.Path, err)
	}
	files := f.files[u.Project]
	if files == nil {
		files = make(map[string]uint64)
		f.files[u.Project] = files
	}
	files[u.Path] = sum
	return nil
}

// Sum returns the fingerprint of project's files as 16 hex digits, or ""
// when no file of project was added.
func (f *Fingerprinter) Sum(project string) (string, error) {
	files := f.files[project]
	if len(files) == 0 {
		return "", nil
	}
	paths := make([]string, 0, len(files))
	for p := range files {
		paths = append(paths, p)
	}
	slices.Sort(paths)

	var buf []byte
	for _, p := range paths {
		buf = fmt.Appendf(buf, "%s\x00%016x\n", p, files[p])
	}
	sum, err := hash64(buf)
	if err != nil {
		return "", fmt.Errorf("corpus: fingerprint %s: %w", project, err)
	}
	return fmt.Sprintf("%016x", sum), nil
}

// Projects lists the projects seen, sorted.
func (f *Fingerprinter) Projects() []string {
	out := make([]string, 0, len(f.files))
	for p := range f.files {
		out = append(out, p)
	}
	slices.Sort(out)
	return out
}
