package corpus

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"slices"
	"strings"
	"sync/atomic"

	"github.com/viant/afs"
	"github.com/viant/afs/storage"
	"github.com/viant/afs/url"

	"github.com/jward/sift/internal/syntax"
)

// URL provides the supported source files under any location afs can walk
// (file://, mem://, s3://, gs://, ...). Every file belongs to one project.
type URL struct {
	fs       afs.Service
	project  string
	files    []urlFile
	pos      int
	provided atomic.Int64
}

type urlFile struct {
	url string
	rel string
}

var _ Provider = (*URL)(nil)

// NewURL walks baseURL and lists its supported files. project names the
// single project they belong to; empty means the last segment of baseURL.
func NewURL(ctx context.Context, baseURL, project string, languages ...string) (*URL, error) {
	want := map[string]bool{}
	for _, l := range languages {
		want[l] = true
	}
	if project == "" {
		p := baseURL
		if _, rest, ok := strings.Cut(p, "://"); ok {
			p = rest
		}
		project = path.Base(strings.TrimRight(p, "/"))
	}

	u := &URL{fs: afs.New(), project: project}
	var visitor storage.OnVisit = func(ctx context.Context, walkURL, parent string, info os.FileInfo, reader io.Reader) (bool, error) {
		if info.IsDir() {
			return true, nil
		}
		if hidden(parent) {
			return true, nil
		}
		lang, ok := syntax.LanguageForFile(info.Name())
		if !ok || (len(want) > 0 && !want[lang]) {
			return true, nil
		}
		u.files = append(u.files, urlFile{
			url: url.Join(url.Join(walkURL, parent), info.Name()),
			rel: path.Join(parent, info.Name()),
		})
		return true, nil
	}
	if err := u.fs.Walk(ctx, baseURL, visitor); err != nil {
		return nil, fmt.Errorf("corpus: walk %s: %w", baseURL, err)
	}
	slices.SortFunc(u.files, func(a, b urlFile) int { return strings.Compare(a.rel, b.rel) })
	return u, nil
}

// hidden reports whether any segment of a relative directory is hidden or
// skipped.
func hidden(parent string) bool {
	for _, seg := range strings.Split(parent, "/") {
		if strings.HasPrefix(seg, ".") || skipDirs[seg] {
			return true
		}
	}
	return false
}

// Len is the number of files listed.
func (u *URL) Len() int { return len(u.files) }

func (u *URL) HasNext() bool { return u.pos < len(u.files) }

func (u *URL) Next(ctx context.Context) (SourceUnit, error) {
	if u.pos >= len(u.files) {
		return SourceUnit{}, ErrExhausted
	}
	f := u.files[u.pos]
	u.pos++
	u.provided.Add(1)
	content, err := u.fs.DownloadWithURL(ctx, f.url)
	if err != nil {
		if ctx.Err() != nil {
			return SourceUnit{}, ctx.Err()
		}
		return SourceUnit{}, &ReadError{Project: u.project, Path: f.rel, Err: err}
	}
	return SourceUnit{Project: u.project, Path: f.rel, Content: content}, nil
}

func (u *URL) FilesProvided() int { return int(u.provided.Load()) }
