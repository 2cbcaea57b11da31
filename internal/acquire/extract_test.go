// SPDX-License-Identifier: MPL-2.0

package acquire

import (
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/gamekeeper/gamekeeper/internal/testutil"
)

func writeArchive(t *testing.T, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "payload")
	testutil.MustWriteFile(t, path, data, 0o644)
	return path
}

func TestExtract_TarGzSkipsUnsafeMembers(t *testing.T) {
	t.Parallel()

	archive := writeArchive(t, testutil.TarGz(t,
		testutil.ArchiveEntry{Name: "jre/"},
		testutil.ArchiveEntry{Name: "jre/bin/java", Body: "java", Mode: 0o755},
		testutil.ArchiveEntry{Name: "../escape.txt", Body: "nope"},
		testutil.ArchiveEntry{Name: "/abs.txt", Body: "nope"},
		testutil.ArchiveEntry{Name: "jre/../../sneaky.txt", Body: "nope"},
		testutil.ArchiveEntry{Name: "./jre/release", Body: "JAVA_VERSION=21"},
	))

	parent := t.TempDir()
	dest := filepath.Join(parent, "out")
	n, err := Extract(archive, dest, nil)
	if err != nil {
		t.Fatalf("Extract() error: %v", err)
	}
	if n != 2 {
		t.Errorf("Extract() wrote %d files, want 2", n)
	}

	if got := testutil.MustReadFile(t, filepath.Join(dest, "jre", "bin", "java")); got != "java" {
		t.Errorf("java = %q", got)
	}
	if got := testutil.MustReadFile(t, filepath.Join(dest, "jre", "release")); got != "JAVA_VERSION=21" {
		t.Errorf("release = %q", got)
	}
	for _, p := range []string{
		filepath.Join(parent, "escape.txt"),
		filepath.Join(parent, "sneaky.txt"),
		filepath.Join(dest, "abs.txt"),
	} {
		if _, err := os.Stat(p); !errors.Is(err, os.ErrNotExist) {
			t.Errorf("unsafe member materialised at %s", p)
		}
	}

	if runtime.GOOS != "windows" {
		info, err := os.Stat(filepath.Join(dest, "jre", "bin", "java"))
		if err != nil {
			t.Fatal(err)
		}
		if info.Mode().Perm()&0o100 == 0 {
			t.Errorf("java mode = %v, want owner execute", info.Mode())
		}
	}
}

func TestExtract_Symlinks(t *testing.T) {
	t.Parallel()

	if runtime.GOOS == "windows" {
		t.Skip("symlinks are skipped on Windows")
	}

	archive := writeArchive(t, testutil.TarGz(t,
		testutil.ArchiveEntry{Name: "jre/lib/libjvm.so", Body: "so"},
		testutil.ArchiveEntry{Name: "jre/lib/current.so", Linkname: "libjvm.so"},
		testutil.ArchiveEntry{Name: "jre/passwd", Linkname: "/etc/passwd"},
		testutil.ArchiveEntry{Name: "jre/up", Linkname: "../../outside"},
	))

	dest := filepath.Join(t.TempDir(), "out")
	if _, err := Extract(archive, dest, nil); err != nil {
		t.Fatalf("Extract() error: %v", err)
	}

	target, err := os.Readlink(filepath.Join(dest, "jre", "lib", "current.so"))
	if err != nil || target != "libjvm.so" {
		t.Errorf("internal symlink = %q, %v", target, err)
	}
	for _, name := range []string{"passwd", "up"} {
		if _, err := os.Lstat(filepath.Join(dest, "jre", name)); !errors.Is(err, os.ErrNotExist) {
			t.Errorf("escaping symlink %s was created", name)
		}
	}
}

func TestExtract_ZipSkipsUnsafeMembers(t *testing.T) {
	t.Parallel()

	archive := writeArchive(t, testutil.Zip(t,
		testutil.ArchiveEntry{Name: "DepotDownloader", Body: "elf"},
		testutil.ArchiveEntry{Name: "DepotDownloader.dll", Body: "dll"},
		testutil.ArchiveEntry{Name: `..\evil.txt`, Body: "nope"},
		testutil.ArchiveEntry{Name: "../evil2.txt", Body: "nope"},
	))

	parent := t.TempDir()
	dest := filepath.Join(parent, "out")
	n, err := Extract(archive, dest, nil)
	if err != nil {
		t.Fatalf("Extract() error: %v", err)
	}
	if n != 2 {
		t.Errorf("Extract() wrote %d files, want 2", n)
	}
	for _, name := range []string{"evil.txt", "evil2.txt"} {
		if _, err := os.Stat(filepath.Join(parent, name)); !errors.Is(err, os.ErrNotExist) {
			t.Errorf("%s escaped the extraction root", name)
		}
	}
}

func TestExtract_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		data func(t *testing.T) []byte
		want error
	}{
		{
			name: "plain text",
			data: func(*testing.T) []byte { return []byte("<html>rate limited</html>") },
			want: ErrUnsupportedArchive,
		},
		{
			name: "only unsafe members",
			data: func(t *testing.T) []byte {
				return testutil.TarGz(t, testutil.ArchiveEntry{Name: "../x", Body: "x"})
			},
			want: ErrEmptyArchive,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			archive := writeArchive(t, tt.data(t))
			_, err := Extract(archive, filepath.Join(t.TempDir(), "out"), nil)
			if !errors.Is(err, tt.want) {
				t.Errorf("Extract() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestFindArtifact(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	testutil.MustWriteFile(t, filepath.Join(root, "a", "b", "bin", "java"), []byte("deep"), 0o755)
	testutil.MustWriteFile(t, filepath.Join(root, "jre", "bin", "java"), []byte("shallow"), 0o755)
	if err := os.MkdirAll(filepath.Join(root, "java"), 0o755); err != nil {
		t.Fatal(err)
	}

	got, err := FindArtifact(root, "java")
	if err != nil {
		t.Fatalf("FindArtifact() error: %v", err)
	}
	if want := filepath.Join(root, "jre", "bin", "java"); got != want {
		t.Errorf("FindArtifact() = %q, want %q (directories ignored, shallowest file wins)", got, want)
	}

	if _, err := FindArtifact(root, "RustDedicated"); !errors.Is(err, ErrArtifactNotFound) {
		t.Errorf("FindArtifact(missing) error = %v, want ErrArtifactNotFound", err)
	}
}

func TestMatchAsset(t *testing.T) {
	t.Parallel()

	if !MatchAsset("DepotDownloader-linux-x64.zip", "DepotDownloader-linux-x64.zip") {
		t.Error("exact name should match")
	}
	if !MatchAsset("OpenJDK21U-jre_x64_linux_hotspot_*.tar.gz", "OpenJDK21U-jre_x64_linux_hotspot_21.0.5_11.tar.gz") {
		t.Error("glob should match")
	}
	if MatchAsset("DepotDownloader-linux-x64.zip", "DepotDownloader-windows-x64.zip") {
		t.Error("different asset should not match")
	}
}
