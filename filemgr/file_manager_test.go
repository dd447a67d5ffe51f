package filemgr

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path"
	"sort"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

// fakeDAV is an in-memory WebDAV server covering the verbs the manager
// uses. With strictParent set, PUT demands an existing parent collection
// the way most real servers do.
type fakeDAV struct {
	mu           sync.Mutex
	files        map[string][]byte
	dirs         map[string]bool
	strictParent bool
	puts         []string
	mkcols       []string
}

func newFakeDAV(strictParent bool) *fakeDAV {
	return &fakeDAV{
		files:        make(map[string][]byte),
		dirs:         make(map[string]bool),
		strictParent: strictParent,
	}
}

func (s *fakeDAV) hasDir(p string) bool {
	p = strings.TrimSuffix(p, "/")
	return p == "" || s.dirs[p]
}

func (s *fakeDAV) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := r.URL.Path
	switch r.Method {
	case http.MethodPut:
		s.puts = append(s.puts, p)
		if s.strictParent && !s.hasDir(path.Dir(p)) {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		body, _ := io.ReadAll(r.Body)
		s.files[p] = body
		w.WriteHeader(http.StatusCreated)
	case "MKCOL":
		clean := strings.TrimSuffix(p, "/")
		s.mkcols = append(s.mkcols, clean)
		if s.dirs[clean] {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		s.dirs[clean] = true
		w.WriteHeader(http.StatusCreated)
	case http.MethodGet:
		body, ok := s.files[p]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		if rng := r.Header.Get("Range"); rng != "" {
			var from, to int
			if _, err := fmt.Sscanf(rng, "bytes=%d-%d", &from, &to); err == nil {
				if to >= len(body) {
					to = len(body) - 1
				}
				w.WriteHeader(http.StatusPartialContent)
				_, _ = w.Write(body[from : to+1])
				return
			}
		}
		_, _ = w.Write(body)
	case http.MethodHead:
		if body, ok := s.files[p]; ok {
			w.Header().Set("Content-Length", strconv.Itoa(len(body)))
			w.Header().Set("Last-Modified", "Mon, 02 Jan 2006 15:04:05 GMT")
			w.WriteHeader(http.StatusOK)
			return
		}
		if s.hasDir(p) {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		w.WriteHeader(http.StatusNotFound)
	case http.MethodDelete:
		clean := strings.TrimSuffix(p, "/")
		if _, ok := s.files[p]; ok {
			delete(s.files, p)
			w.WriteHeader(http.StatusNoContent)
			return
		}
		if s.dirs[clean] {
			delete(s.dirs, clean)
			w.WriteHeader(http.StatusNoContent)
			return
		}
		w.WriteHeader(http.StatusNotFound)
	case "MOVE":
		dst, err := url.Parse(r.Header.Get("Destination"))
		if err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		body, ok := s.files[p]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		delete(s.files, p)
		s.files[dst.Path] = body
		w.WriteHeader(http.StatusCreated)
	case "PROPFIND":
		s.servePropfind(w, r)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (s *fakeDAV) servePropfind(w http.ResponseWriter, r *http.Request) {
	p := strings.TrimSuffix(r.URL.Path, "/")
	if _, ok := s.files[r.URL.Path]; ok {
		w.WriteHeader(http.StatusMultiStatus)
		_, _ = w.Write([]byte(multistatusBody([]string{r.URL.Path})))
		return
	}
	if !s.hasDir(p) {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	hrefs := []string{p + "/"}
	if r.Header.Get("Depth") == "1" {
		for f := range s.files {
			if path.Dir(f) == p || (p == "" && path.Dir(f) == "/") {
				hrefs = append(hrefs, f)
			}
		}
		for d := range s.dirs {
			if path.Dir(d) == p || (p == "" && path.Dir(d) == "/") {
				hrefs = append(hrefs, d+"/")
			}
		}
	}
	sort.Strings(hrefs)
	w.WriteHeader(http.StatusMultiStatus)
	_, _ = w.Write([]byte(multistatusBody(hrefs)))
}

func multistatusBody(hrefs []string) string {
	var b strings.Builder
	b.WriteString(`<?xml version="1.0" encoding="utf-8"?><D:multistatus xmlns:D="DAV:">`)
	for _, h := range hrefs {
		b.WriteString("<D:response><D:href>")
		b.WriteString(h)
		b.WriteString("</D:href></D:response>")
	}
	b.WriteString("</D:multistatus>")
	return b.String()
}

func davLink(svr *httptest.Server, p string) string {
	return "webdav://" + strings.TrimPrefix(svr.URL, "http://") + p
}

func newTestManager(t *testing.T, fake *fakeDAV, opts ...Option) (*FileManager, *httptest.Server) {
	svr := httptest.NewServer(fake)
	t.Cleanup(svr.Close)
	fm, err := New(opts...)
	assert.NoError(t, err)
	t.Cleanup(func() { _ = fm.Close() })
	return fm, svr
}

func TestCreateWriteClose(t *testing.T) {
	fake := newFakeDAV(true)
	fake.dirs["/data"] = true
	fm, svr := newTestManager(t, fake)
	ctx := context.Background()

	h, err := fm.Create(ctx, davLink(svr, "/data/f.bin"))
	assert.NoError(t, err)
	n, err := h.Write([]byte("hello-world-123"))
	assert.NoError(t, err)
	assert.Equal(t, 15, n)
	assert.NoError(t, h.Close())

	assert.Equal(t, []string{"/data/f.bin"}, fake.puts)
	assert.Equal(t, []byte("hello-world-123"), fake.files["/data/f.bin"])
	// close again is a no-op
	assert.NoError(t, h.Close())
	_, err = h.Write([]byte("x"))
	assert.Error(t, err)
}

func TestCommitCreatesMissingParents(t *testing.T) {
	fake := newFakeDAV(true)
	fm, svr := newTestManager(t, fake)
	ctx := context.Background()

	h, err := fm.Create(ctx, davLink(svr, "/a/b/f.csv"))
	assert.NoError(t, err)
	_, err = h.Write([]byte("a,b\n1,2\n"))
	assert.NoError(t, err)
	assert.NoError(t, h.Close())

	// first put fails, the ancestor chain gets built, second put lands
	assert.Equal(t, []string{"/a/b/f.csv", "/a/b/f.csv"}, fake.puts)
	assert.Equal(t, []string{"/a", "/a/b"}, fake.mkcols)
	assert.Equal(t, []byte("a,b\n1,2\n"), fake.files["/a/b/f.csv"])
}

func TestSyncRewritesFullContent(t *testing.T) {
	fake := newFakeDAV(false)
	fm, svr := newTestManager(t, fake)
	ctx := context.Background()

	h, err := fm.Create(ctx, davLink(svr, "/f.txt"))
	assert.NoError(t, err)
	_, err = h.Write([]byte("abc"))
	assert.NoError(t, err)
	assert.NoError(t, h.Sync())
	assert.Equal(t, []byte("abc"), fake.files["/f.txt"])

	// a later sync re-uploads everything written so far
	_, err = h.Write([]byte("def"))
	assert.NoError(t, err)
	assert.NoError(t, h.Sync())
	assert.Equal(t, []byte("abcdef"), fake.files["/f.txt"])

	// nothing dirty, close sends no third upload
	assert.NoError(t, h.Close())
	assert.Len(t, fake.puts, 2)
}

func TestSpilledCommit(t *testing.T) {
	fake := newFakeDAV(false)
	fm, svr := newTestManager(t, fake, WithSpillThreshold(4))
	ctx := context.Background()

	h, err := fm.Create(ctx, davLink(svr, "/big.bin"))
	assert.NoError(t, err)
	_, err = h.Write([]byte("12345"))
	assert.NoError(t, err)
	_, err = h.Write([]byte("67890"))
	assert.NoError(t, err)
	assert.True(t, h.buf.spilled)
	stage := h.buf.stagePath

	assert.NoError(t, h.Close())
	assert.Equal(t, []byte("1234567890"), fake.files["/big.bin"])
	_, err = os.Stat(stage)
	assert.True(t, os.IsNotExist(err))
}

func TestOutOfOrderWriteTouchesNothing(t *testing.T) {
	fake := newFakeDAV(false)
	fm, svr := newTestManager(t, fake)
	h, err := fm.Create(context.Background(), davLink(svr, "/f.bin"))
	assert.NoError(t, err)
	_, err = h.WriteAt([]byte("x"), 7)
	assert.ErrorIs(t, err, ErrOutOfOrderWrite)
	assert.Empty(t, fake.puts)
	assert.NoError(t, h.Close())
}

func TestCreateEmptyFile(t *testing.T) {
	fake := newFakeDAV(false)
	fm, svr := newTestManager(t, fake)
	h, err := fm.Create(context.Background(), davLink(svr, "/empty.bin"))
	assert.NoError(t, err)
	assert.NoError(t, h.Close())
	body, ok := fake.files["/empty.bin"]
	assert.True(t, ok)
	assert.Empty(t, body)
}

func TestReadHandle(t *testing.T) {
	fake := newFakeDAV(false)
	fake.files["/r.txt"] = []byte("0123456789")
	fm, svr := newTestManager(t, fake)
	ctx := context.Background()

	h, err := fm.Open(ctx, davLink(svr, "/r.txt"))
	assert.NoError(t, err)
	defer h.Close()
	assert.Equal(t, int64(10), h.Size())

	buf := make([]byte, 4)
	n, err := h.ReadAt(buf, 3)
	assert.NoError(t, err)
	assert.Equal(t, 4, n)
	assert.Equal(t, []byte("3456"), buf)

	// short read at the tail reports EOF
	n, err = h.ReadAt(buf, 8)
	assert.ErrorIs(t, err, io.EOF)
	assert.Equal(t, 2, n)
	assert.Equal(t, []byte("89"), buf[:n])

	_, err = h.ReadAt(buf, 10)
	assert.ErrorIs(t, err, io.EOF)

	// sequential reads walk the whole resource
	all, err := io.ReadAll(h)
	assert.NoError(t, err)
	assert.Equal(t, []byte("0123456789"), all)

	off, err := h.Seek(2, io.SeekStart)
	assert.NoError(t, err)
	assert.Equal(t, int64(2), off)
	rest, err := io.ReadAll(h)
	assert.NoError(t, err)
	assert.Equal(t, []byte("23456789"), rest)
}

func TestOpenMissingFile(t *testing.T) {
	fake := newFakeDAV(false)
	fm, svr := newTestManager(t, fake)
	_, err := fm.Open(context.Background(), davLink(svr, "/nope.bin"))
	assert.Error(t, err)
}

func TestStatAndExists(t *testing.T) {
	fake := newFakeDAV(false)
	fake.files["/s.txt"] = []byte("abcde")
	fake.dirs["/d"] = true
	fm, svr := newTestManager(t, fake)
	ctx := context.Background()

	info, err := fm.Stat(ctx, davLink(svr, "/s.txt"))
	assert.NoError(t, err)
	assert.Equal(t, int64(5), info.Size)
	assert.False(t, info.IsDir)
	assert.False(t, info.ModTime.IsZero())

	// the server refuses HEAD on collections, stat falls back to a probe
	info, err = fm.Stat(ctx, davLink(svr, "/d"))
	assert.NoError(t, err)
	assert.True(t, info.IsDir)

	ok, err := fm.Exists(ctx, davLink(svr, "/s.txt"))
	assert.NoError(t, err)
	assert.True(t, ok)
	ok, err = fm.Exists(ctx, davLink(svr, "/missing"))
	assert.NoError(t, err)
	assert.False(t, ok)

	ok, err = fm.DirExists(ctx, davLink(svr, "/d"))
	assert.NoError(t, err)
	assert.True(t, ok)
	ok, err = fm.DirExists(ctx, davLink(svr, "/nodir"))
	assert.NoError(t, err)
	assert.False(t, ok)
}

func TestRemoveAndMove(t *testing.T) {
	fake := newFakeDAV(false)
	fake.files["/old.txt"] = []byte("x")
	fake.files["/gone.txt"] = []byte("y")
	fake.dirs["/d"] = true
	fm, svr := newTestManager(t, fake)
	ctx := context.Background()

	assert.NoError(t, fm.Remove(ctx, davLink(svr, "/gone.txt")))
	_, ok := fake.files["/gone.txt"]
	assert.False(t, ok)
	assert.Error(t, fm.Remove(ctx, davLink(svr, "/gone.txt")))

	assert.NoError(t, fm.Move(ctx, davLink(svr, "/old.txt"), davLink(svr, "/new.txt")))
	assert.Equal(t, []byte("x"), fake.files["/new.txt"])
	_, ok = fake.files["/old.txt"]
	assert.False(t, ok)

	assert.NoError(t, fm.RemoveDir(ctx, davLink(svr, "/d")))
	assert.False(t, fake.dirs["/d"])
}

func TestMkdirAll(t *testing.T) {
	fake := newFakeDAV(true)
	fm, svr := newTestManager(t, fake)
	assert.NoError(t, fm.MkdirAll(context.Background(), davLink(svr, "/x/y/z")))
	assert.True(t, fake.dirs["/x"])
	assert.True(t, fake.dirs["/x/y"])
	assert.True(t, fake.dirs["/x/y/z"])
}

func TestList(t *testing.T) {
	fake := newFakeDAV(false)
	fake.dirs["/data"] = true
	fake.dirs["/data/sub"] = true
	fake.files["/data/a.txt"] = []byte("a")
	fake.files["/data/sub/deep.txt"] = []byte("d")
	fm, svr := newTestManager(t, fake)

	ents, err := fm.List(context.Background(), davLink(svr, "/data"))
	assert.NoError(t, err)
	got := make(map[string]bool, len(ents))
	for _, e := range ents {
		got[e.Path] = e.IsCollection
	}
	// direct children only, the listed collection itself excluded
	assert.Equal(t, map[string]bool{"/data/a.txt": false, "/data/sub": true}, got)

	_, err = fm.List(context.Background(), davLink(svr, "/absent"))
	assert.Error(t, err)
}

func TestGlob(t *testing.T) {
	fake := newFakeDAV(false)
	fake.dirs["/data"] = true
	fake.dirs["/data/a"] = true
	fake.dirs["/data/b"] = true
	fake.files["/data/top.csv"] = []byte("t")
	fake.files["/data/a/x.csv"] = []byte("x")
	fake.files["/data/a/y.txt"] = []byte("y")
	fake.files["/data/b/z.csv"] = []byte("z")
	fm, svr := newTestManager(t, fake)
	ctx := context.Background()

	rs, err := fm.Glob(ctx, davLink(svr, "/data/*/*.csv"))
	assert.NoError(t, err)
	sort.Strings(rs)
	assert.Equal(t, []string{davLink(svr, "/data/a/x.csv"), davLink(svr, "/data/b/z.csv")}, rs)

	rs, err = fm.Glob(ctx, davLink(svr, "/data/**/*.csv"))
	assert.NoError(t, err)
	sort.Strings(rs)
	assert.Equal(t, []string{
		davLink(svr, "/data/a/x.csv"),
		davLink(svr, "/data/b/z.csv"),
		davLink(svr, "/data/top.csv"),
	}, rs)

	// no wildcard, no server round trip
	rs, err = fm.Glob(ctx, davLink(svr, "/data/top.csv"))
	assert.NoError(t, err)
	assert.Equal(t, []string{davLink(svr, "/data/top.csv")}, rs)

	// an unmatchable pattern yields an empty result, not an error
	rs, err = fm.Glob(ctx, davLink(svr, "/data/*/none-*.bin"))
	assert.NoError(t, err)
	assert.Empty(t, rs)
}

func TestGlobCycleGuard(t *testing.T) {
	svr := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != "PROPFIND" {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		switch r.URL.Path {
		case "/a/":
			w.WriteHeader(http.StatusMultiStatus)
			_, _ = w.Write([]byte(multistatusBody([]string{"/a/", "/a/b/", "/a/f.csv"})))
		case "/a/b/":
			// this sub-collection lists its parent again
			w.WriteHeader(http.StatusMultiStatus)
			_, _ = w.Write([]byte(multistatusBody([]string{"/a/b/", "/a/"})))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer svr.Close()
	fm, err := New()
	assert.NoError(t, err)
	defer fm.Close()

	rs, err := fm.Glob(context.Background(), davLink(svr, "/a/**"))
	assert.NoError(t, err)
	assert.Contains(t, rs, davLink(svr, "/a/f.csv"))
}
