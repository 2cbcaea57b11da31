// SPDX-License-Identifier: MPL-2.0

package acquire

import (
	"archive/tar"
	"archive/zip"
	"bufio"
	"bytes"
	"compress/gzip"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/gamekeeper/gamekeeper/internal/platform"
)

// maxEntryBytes caps a single extracted file (500 MB).
const maxEntryBytes = 500 << 20

type (
	archiveFormat int

	// extractor unpacks archives below root, skipping unsafe members.
	extractor struct {
		root    string
		logger  *log.Logger
		written int
		skipped int
	}
)

const (
	formatUnknown archiveFormat = iota
	formatTarGz
	formatTar
	formatZip
)

// Extract unpacks the archive at archivePath into dest and returns the number
// of regular files written. The format is sniffed from the content.
// Members with absolute paths or ".." segments are skipped.
func Extract(archivePath, dest string, logger *log.Logger) (int, error) {
	if logger == nil {
		logger = log.New(io.Discard)
	}

	format, err := sniffFormat(archivePath)
	if err != nil {
		return 0, err
	}

	if err := os.MkdirAll(dest, 0o755); err != nil {
		return 0, fmt.Errorf("creating extraction root: %w", err)
	}
	x := &extractor{root: dest, logger: logger}

	switch format {
	case formatTarGz, formatTar:
		err = x.tarFile(archivePath, format == formatTarGz)
	case formatZip:
		err = x.zipFile(archivePath)
	default:
		return 0, ErrUnsupportedArchive
	}
	if err != nil {
		return x.written, err
	}
	if x.skipped > 0 {
		logger.Warn("skipped unsafe archive members", "count", x.skipped)
	}
	if x.written == 0 {
		return 0, ErrEmptyArchive
	}
	return x.written, nil
}

func sniffFormat(path string) (archiveFormat, error) {
	f, err := os.Open(path)
	if err != nil {
		return formatUnknown, err
	}
	defer func() { _ = f.Close() }() // read-only file handle

	head := make([]byte, 512)
	n, err := io.ReadFull(f, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return formatUnknown, fmt.Errorf("reading archive header: %w", err)
	}
	head = head[:n]

	switch {
	case bytes.HasPrefix(head, []byte{0x1f, 0x8b}):
		return formatTarGz, nil
	case bytes.HasPrefix(head, []byte("PK\x03\x04")):
		return formatZip, nil
	case len(head) >= 262 && string(head[257:262]) == "ustar":
		return formatTar, nil
	default:
		return formatUnknown, ErrUnsupportedArchive
	}
}

func (x *extractor) tarFile(path string, gzipped bool) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }() // read-only file handle

	var r io.Reader = bufio.NewReader(f)
	if gzipped {
		gz, err := gzip.NewReader(r)
		if err != nil {
			return fmt.Errorf("opening gzip stream: %w", err)
		}
		defer func() { _ = gz.Close() }()
		r = gz
	}

	tr := tar.NewReader(r)
	for {
		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if errors.Is(err, tar.ErrInsecurePath) && hdr != nil {
			x.reject(hdr.Name, "insecure path")
			continue
		}
		if err != nil {
			return fmt.Errorf("reading tar entry: %w", err)
		}

		target, ok := x.safePath(hdr.Name)
		if !ok {
			continue
		}

		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, 0o755); err != nil {
				return err
			}
		case tar.TypeReg:
			if err := x.writeFile(target, tr, fs.FileMode(hdr.Mode)); err != nil {
				return err
			}
		case tar.TypeSymlink:
			if err := x.symlink(target, hdr.Linkname); err != nil {
				return err
			}
		default:
			// Hard links, devices and FIFOs are never needed by a runtime.
			x.logger.Debug("skipping archive member", "name", hdr.Name, "type", string(hdr.Typeflag))
		}
	}
}

func (x *extractor) zipFile(path string) error {
	zr, err := zip.OpenReader(path)
	if err != nil && (!errors.Is(err, zip.ErrInsecurePath) || zr == nil) {
		return fmt.Errorf("opening zip: %w", err)
	}
	defer func() { _ = zr.Close() }()

	for _, zf := range zr.File {
		target, ok := x.safePath(zf.Name)
		if !ok {
			continue
		}

		if zf.FileInfo().IsDir() {
			if err := os.MkdirAll(target, 0o755); err != nil {
				return err
			}
			continue
		}

		rc, err := zf.Open()
		if err != nil {
			return fmt.Errorf("opening zip entry %s: %w", zf.Name, err)
		}
		err = x.writeFile(target, rc, zf.Mode())
		_ = rc.Close()
		if err != nil {
			return err
		}
	}
	return nil
}

// safePath maps an archive member name to a path below the root. It reports
// false, counting the member as skipped, when the name is absolute, contains
// a ".." segment, or would resolve outside the root.
func (x *extractor) safePath(name string) (string, bool) {
	clean := strings.ReplaceAll(name, `\`, "/")
	clean = strings.TrimPrefix(clean, "./")
	if clean == "" || clean == "." {
		return "", false
	}

	if strings.HasPrefix(clean, "/") || filepath.IsAbs(clean) || filepath.VolumeName(clean) != "" {
		x.reject(name, "absolute path")
		return "", false
	}
	for seg := range strings.SplitSeq(clean, "/") {
		if seg == ".." {
			x.reject(name, "parent segment")
			return "", false
		}
		if platform.IsWindows() && platform.IsWindowsReservedName(seg) {
			x.reject(name, "reserved name")
			return "", false
		}
	}

	target := filepath.Join(x.root, filepath.FromSlash(clean))
	rel, err := filepath.Rel(x.root, target)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		x.reject(name, "escapes root")
		return "", false
	}
	return target, true
}

func (x *extractor) reject(name, reason string) {
	x.skipped++
	x.logger.Warn("skipping unsafe archive member", "name", name, "reason", reason)
}

func (x *extractor) writeFile(target string, r io.Reader, mode fs.FileMode) error {
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return err
	}

	perm := mode.Perm()
	if perm == 0 {
		perm = 0o644
	}
	perm |= 0o600

	out, err := os.OpenFile(target, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, perm)
	if err != nil {
		return fmt.Errorf("creating %s: %w", target, err)
	}

	n, copyErr := io.Copy(out, io.LimitReader(r, maxEntryBytes+1))
	closeErr := out.Close()
	if copyErr != nil {
		return fmt.Errorf("extracting %s: %w", target, copyErr)
	}
	if closeErr != nil {
		return fmt.Errorf("closing %s: %w", target, closeErr)
	}
	if n > maxEntryBytes {
		return fmt.Errorf("extracting %s: entry exceeds %d bytes", target, maxEntryBytes)
	}
	// OpenFile honours umask; reapply the archived bits.
	if err := os.Chmod(target, perm); err != nil {
		return err
	}
	x.written++
	return nil
}

// symlink creates a relative link that stays inside the root. Absolute
// targets and targets with ".." segments are skipped.
func (x *extractor) symlink(target, linkname string) error {
	if platform.IsWindows() {
		return nil
	}
	link := strings.ReplaceAll(linkname, `\`, "/")
	if link == "" || strings.HasPrefix(link, "/") || filepath.IsAbs(link) {
		x.reject(linkname, "absolute link target")
		return nil
	}
	for seg := range strings.SplitSeq(link, "/") {
		if seg == ".." {
			x.reject(linkname, "link leaves directory")
			return nil
		}
	}

	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return err
	}
	_ = os.Remove(target)
	return os.Symlink(filepath.FromSlash(link), target)
}
