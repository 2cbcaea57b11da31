// SPDX-License-Identifier: MPL-2.0

package acquire

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"testing"

	"github.com/gamekeeper/gamekeeper/internal/testutil"
)

// fileServer serves fixed payloads by path and counts hits.
type fileServer struct {
	*httptest.Server
	mu    sync.Mutex
	hits  map[string]int
	files map[string][]byte
}

func newFileServer(t *testing.T, files map[string][]byte) *fileServer {
	t.Helper()
	fs := &fileServer{hits: make(map[string]int), files: files}
	fs.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fs.mu.Lock()
		fs.hits[r.URL.Path]++
		body, ok := fs.files[r.URL.Path]
		fs.mu.Unlock()
		if !ok {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write(body)
	}))
	t.Cleanup(fs.Close)
	return fs
}

func (fs *fileServer) Hits(path string) int {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return fs.hits[path]
}

func sha(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

func noLeftovers(t *testing.T, dir string) {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), ".gamekeeper-") || strings.Contains(e.Name(), ".old-") {
			t.Errorf("leftover workspace %s in %s", e.Name(), dir)
		}
	}
}

func TestAcquire_FallsBackInOrder(t *testing.T) {
	t.Parallel()

	srv := newFileServer(t, map[string][]byte{
		"/mirror/server.jar": []byte("paper jar"),
		"/third/server.jar":  []byte("never fetched"),
	})

	var attempts []Attempt
	a := New(WithAttemptHook(func(at Attempt) { attempts = append(attempts, at) }))
	dest := t.TempDir()

	path, err := a.Acquire(context.Background(),
		Target{Name: "server-jar", FileName: "server.jar"},
		[]Candidate{
			URLCandidate("primary", KindBinary, srv.URL+"/primary/server.jar"),
			URLCandidate("mirror", KindBinary, srv.URL+"/mirror/server.jar"),
			URLCandidate("third", KindBinary, srv.URL+"/third/server.jar"),
		},
		dest)
	if err != nil {
		t.Fatalf("Acquire() error: %v", err)
	}

	if want := filepath.Join(dest, "server.jar"); path != want {
		t.Errorf("path = %q, want %q", path, want)
	}
	if got := testutil.MustReadFile(t, path); got != "paper jar" {
		t.Errorf("content = %q", got)
	}
	if srv.Hits("/third/server.jar") != 0 {
		t.Error("a later candidate was fetched after an earlier one succeeded")
	}
	if len(attempts) != 2 || attempts[0].Err == nil || attempts[1].Err != nil {
		t.Errorf("attempts = %+v; want failed primary then successful mirror", attempts)
	}
	noLeftovers(t, dest)
}

func TestAcquire_AllFail(t *testing.T) {
	t.Parallel()

	srv := newFileServer(t, map[string][]byte{
		"/corrupt.tar.gz": []byte("definitely not gzip"),
	})

	parent := t.TempDir()
	dest := filepath.Join(parent, "jre")
	testutil.MustWriteFile(t, filepath.Join(dest, "bin", "java"), []byte("previous"), 0o755)

	a := New()
	_, err := a.Acquire(context.Background(),
		Target{Name: "jre", FileName: "java", Executable: true},
		[]Candidate{
			URLCandidate("missing", KindArchive, srv.URL+"/missing.tar.gz"),
			URLCandidate("corrupt", KindArchive, srv.URL+"/corrupt.tar.gz"),
		},
		dest)

	var agg *AggregateError
	if !errors.As(err, &agg) {
		t.Fatalf("Acquire() error = %v, want *AggregateError", err)
	}
	if len(agg.Attempts) != 2 {
		t.Fatalf("len(Attempts) = %d, want 2", len(agg.Attempts))
	}
	if agg.Attempts[0].Candidate != "missing" || agg.Attempts[1].Candidate != "corrupt" {
		t.Errorf("attempt order = %s, %s", agg.Attempts[0].Candidate, agg.Attempts[1].Candidate)
	}
	var status *HTTPStatusError
	if !errors.As(agg.Attempts[0].Err, &status) || status.StatusCode != http.StatusNotFound {
		t.Errorf("first attempt error = %v, want 404 HTTPStatusError", agg.Attempts[0].Err)
	}
	if !errors.Is(agg.Last(), ErrUnsupportedArchive) {
		t.Errorf("Last() = %v, want ErrUnsupportedArchive", agg.Last())
	}
	if !strings.Contains(agg.Detail(), "2. corrupt:") {
		t.Errorf("Detail() = %q", agg.Detail())
	}

	if got := testutil.MustReadFile(t, filepath.Join(dest, "bin", "java")); got != "previous" {
		t.Errorf("destination changed after total failure: %q", got)
	}
	noLeftovers(t, parent)
}

func TestAcquire_NoCandidates(t *testing.T) {
	t.Parallel()

	_, err := New().Acquire(context.Background(), Target{Name: "jre"}, nil, t.TempDir())
	if !errors.Is(err, ErrNoCandidates) {
		t.Errorf("error = %v, want ErrNoCandidates", err)
	}
}

func TestAcquire_ArchiveReplacesDestination(t *testing.T) {
	t.Parallel()

	srv := newFileServer(t, map[string][]byte{
		"/jre.tar.gz": testutil.TarGz(t,
			testutil.ArchiveEntry{Name: "jdk-21.0.5+11-jre/bin/java", Body: "new java", Mode: 0o644},
			testutil.ArchiveEntry{Name: "jdk-21.0.5+11-jre/release", Body: "JAVA_VERSION=21"},
		),
	})

	parent := t.TempDir()
	dest := filepath.Join(parent, ".jre")
	testutil.MustWriteFile(t, filepath.Join(dest, "stale.txt"), []byte("old"), 0o644)

	path, err := New().Acquire(context.Background(),
		Target{Name: "jre", FileName: "java", Executable: true},
		[]Candidate{URLCandidate("temurin", KindArchive, srv.URL+"/jre.tar.gz")},
		dest)
	if err != nil {
		t.Fatalf("Acquire() error: %v", err)
	}

	if want := filepath.Join(dest, "bin", "java"); path != want {
		t.Errorf("path = %q, want %q (wrapper directory dropped)", path, want)
	}
	if got := testutil.MustReadFile(t, path); got != "new java" {
		t.Errorf("java = %q", got)
	}
	if _, err := os.Stat(filepath.Join(dest, "stale.txt")); !errors.Is(err, os.ErrNotExist) {
		t.Error("previous tree was merged instead of replaced")
	}
	if runtime.GOOS != "windows" {
		info, err := os.Stat(path)
		if err != nil {
			t.Fatal(err)
		}
		if info.Mode().Perm()&0o111 == 0 {
			t.Errorf("mode = %v, want executable", info.Mode())
		}
	}
	noLeftovers(t, parent)
}

func TestAcquire_ZipWithoutWrapper(t *testing.T) {
	t.Parallel()

	srv := newFileServer(t, map[string][]byte{
		"/dd.zip": testutil.Zip(t,
			testutil.ArchiveEntry{Name: "DepotDownloader", Body: "elf"},
			testutil.ArchiveEntry{Name: "DepotDownloader.dll", Body: "dll"},
		),
	})

	dest := filepath.Join(t.TempDir(), "depotdownloader")
	path, err := New().Acquire(context.Background(),
		Target{Name: "depotdownloader", FileName: "DepotDownloader", Executable: true},
		[]Candidate{URLCandidate("github", KindArchive, srv.URL+"/dd.zip")},
		dest)
	if err != nil {
		t.Fatalf("Acquire() error: %v", err)
	}
	if want := filepath.Join(dest, "DepotDownloader"); path != want {
		t.Errorf("path = %q, want %q", path, want)
	}
	if _, err := os.Stat(filepath.Join(dest, "DepotDownloader.dll")); err != nil {
		t.Errorf("sibling files should be installed: %v", err)
	}
}

func TestAcquire_ArchiveMissingArtifact(t *testing.T) {
	t.Parallel()

	srv := newFileServer(t, map[string][]byte{
		"/wrong.tar.gz": testutil.TarGz(t, testutil.ArchiveEntry{Name: "README", Body: "hi"}),
	})

	_, err := New().Acquire(context.Background(),
		Target{Name: "jre", FileName: "java"},
		[]Candidate{URLCandidate("wrong", KindArchive, srv.URL+"/wrong.tar.gz")},
		filepath.Join(t.TempDir(), "jre"))
	if !errors.Is(err, ErrArtifactNotFound) {
		t.Errorf("error = %v, want ErrArtifactNotFound", err)
	}
}

type fixedResolver Resolved

func (r fixedResolver) Resolve(context.Context) (Resolved, error) { return Resolved(r), nil }

type failingResolver struct{}

func (failingResolver) Resolve(context.Context) (Resolved, error) {
	return Resolved{}, errors.New("metadata malformed")
}

func TestAcquire_ChecksumAndResolverFailures(t *testing.T) {
	t.Parallel()

	body := []byte("paper jar")
	srv := newFileServer(t, map[string][]byte{"/paper.jar": body})

	dest := t.TempDir()
	_, err := New().Acquire(context.Background(),
		Target{Name: "server-jar", FileName: "server.jar"},
		[]Candidate{
			{Name: "api", Kind: KindBinary, Resolver: failingResolver{}},
			{Name: "tampered", Kind: KindBinary, Resolver: fixedResolver{URL: srv.URL + "/paper.jar", SHA256: strings.Repeat("0", 64)}},
		},
		dest)
	if !errors.Is(err, ErrChecksumMismatch) {
		t.Fatalf("error = %v, want ErrChecksumMismatch among attempts", err)
	}
	if _, statErr := os.Stat(filepath.Join(dest, "server.jar")); !errors.Is(statErr, os.ErrNotExist) {
		t.Error("mismatched payload was installed")
	}

	path, err := New().Acquire(context.Background(),
		Target{Name: "server-jar", FileName: "server.jar"},
		[]Candidate{{Name: "verified", Kind: KindBinary, Resolver: fixedResolver{URL: srv.URL + "/paper.jar", SHA256: strings.ToUpper(sha(body))}}},
		dest)
	if err != nil {
		t.Fatalf("verified Acquire() error: %v", err)
	}
	if testutil.MustReadFile(t, path) != "paper jar" {
		t.Error("verified payload content mismatch")
	}
	noLeftovers(t, dest)
}

func TestAcquire_CancelledContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := New().Acquire(ctx, Target{Name: "jre", FileName: "java"},
		[]Candidate{URLCandidate("any", KindArchive, "http://127.0.0.1:1/x")}, t.TempDir())
	if !errors.Is(err, context.Canceled) {
		t.Errorf("error = %v, want context.Canceled", err)
	}
}

func TestComputeFileHash(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "f")
	testutil.MustWriteFile(t, path, []byte("abc"), 0o644)
	got, err := ComputeFileHash(path)
	if err != nil {
		t.Fatal(err)
	}
	if want := "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad"; got != want {
		t.Errorf("ComputeFileHash() = %s, want %s", got, want)
	}
	if err := VerifyFile(path, got); err != nil {
		t.Errorf("VerifyFile() error: %v", err)
	}
}

func TestRedactURL(t *testing.T) {
	t.Parallel()

	got := redactURL("https://user:pw@example.test/a.zip?token=secret#frag")
	if got != "https://example.test/a.zip" {
		t.Errorf("redactURL() = %q", got)
	}
}
