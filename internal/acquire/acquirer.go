// SPDX-License-Identifier: MPL-2.0

package acquire

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/charmbracelet/log"

	"github.com/gamekeeper/gamekeeper/internal/platform"
)

const (
	// DefaultFetchTimeout bounds one candidate attempt end to end.
	DefaultFetchTimeout = 300 * time.Second

	// DefaultUserAgent is sent with every request.
	DefaultUserAgent = "gamekeeper/dev"
)

type (
	// AttemptHook observes every finished attempt, successful or not.
	AttemptHook func(Attempt)

	// Acquirer downloads artifacts from ordered candidate lists.
	Acquirer struct {
		client       *http.Client
		userAgent    string
		fetchTimeout time.Duration
		logger       *log.Logger
		onAttempt    AttemptHook
		goos         string
	}

	// Option configures an Acquirer.
	Option func(*Acquirer)

	// Installed describes a successful acquisition.
	Installed struct {
		// Path is the located artifact.
		Path string
		// Candidate is the name of the source that succeeded.
		Candidate string
		// URL is the redacted download location.
		URL string
	}
)

// WithHTTPClient sets the client used for payload downloads.
func WithHTTPClient(c *http.Client) Option {
	return func(a *Acquirer) {
		a.client = c
	}
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(a *Acquirer) {
		a.userAgent = ua
	}
}

// WithFetchTimeout bounds each candidate attempt.
func WithFetchTimeout(d time.Duration) Option {
	return func(a *Acquirer) {
		if d > 0 {
			a.fetchTimeout = d
		}
	}
}

// WithLogger sets the logger for attempt progress.
func WithLogger(l *log.Logger) Option {
	return func(a *Acquirer) {
		a.logger = l
	}
}

// WithAttemptHook registers a callback for attempt outcomes.
func WithAttemptHook(h AttemptHook) Option {
	return func(a *Acquirer) {
		a.onAttempt = h
	}
}

// New creates an Acquirer.
func New(opts ...Option) *Acquirer {
	a := &Acquirer{
		client:       http.DefaultClient,
		userAgent:    DefaultUserAgent,
		fetchTimeout: DefaultFetchTimeout,
		logger:       log.New(io.Discard),
		goos:         runtime.GOOS,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Acquire tries candidates in order and installs the first one that yields a
// usable artifact.
//
// Binary payloads are written to dest/target.FileName. Archive payloads are
// extracted and the resulting tree replaces dest as a whole; a single wrapper
// directory at the top of the archive is dropped. The returned path is the
// located artifact inside dest. When every candidate fails the error is an
// *AggregateError and dest is left as it was.
func (a *Acquirer) Acquire(ctx context.Context, target Target, candidates []Candidate, dest string) (string, error) {
	inst, err := a.Install(ctx, target, candidates, dest)
	return inst.Path, err
}

// Install is Acquire reporting which candidate produced the artifact.
func (a *Acquirer) Install(ctx context.Context, target Target, candidates []Candidate, dest string) (Installed, error) {
	agg := &AggregateError{Target: target.Name}
	if len(candidates) == 0 {
		return Installed{}, agg
	}

	for i, c := range candidates {
		if err := ctx.Err(); err != nil {
			agg.Attempts = append(agg.Attempts, Attempt{Target: target.Name, Candidate: c.Name, Err: err})
			return Installed{}, agg
		}

		a.logger.Info("trying source", "artifact", target.Name, "source", c.Name,
			"attempt", fmt.Sprintf("%d/%d", i+1, len(candidates)))

		start := time.Now()
		path, url, err := a.attempt(ctx, target, c, dest)
		attempt := Attempt{
			Target:    target.Name,
			Candidate: c.Name,
			URL:       redactURL(url),
			Duration:  time.Since(start),
			Err:       err,
		}
		if a.onAttempt != nil {
			a.onAttempt(attempt)
		}

		if err == nil {
			a.logger.Info("installed", "artifact", target.Name, "path", path, "source", c.Name)
			return Installed{Path: path, Candidate: c.Name, URL: attempt.URL}, nil
		}

		a.logger.Warn("source failed", "artifact", target.Name, "source", c.Name, "err", err)
		agg.Attempts = append(agg.Attempts, attempt)
	}

	return Installed{}, agg
}

// attempt runs one candidate inside its own temp workspace, which is always removed.
func (a *Acquirer) attempt(ctx context.Context, target Target, c Candidate, dest string) (path, url string, err error) {
	ctx, cancel := context.WithTimeout(ctx, a.fetchTimeout)
	defer cancel()

	if c.Resolver == nil {
		return "", "", errors.New("candidate has no resolver")
	}
	resolved, err := c.Resolver.Resolve(ctx)
	if err != nil {
		return "", "", fmt.Errorf("resolving %s: %w", c.Name, err)
	}
	url = resolved.URL

	workParent := filepath.Dir(dest)
	if c.Kind == KindBinary {
		workParent = dest
	}
	if err := os.MkdirAll(workParent, 0o755); err != nil {
		return "", url, fmt.Errorf("preparing workspace: %w", err)
	}
	work, err := os.MkdirTemp(workParent, ".gamekeeper-"+target.Name+"-")
	if err != nil {
		return "", url, fmt.Errorf("preparing workspace: %w", err)
	}
	defer func() {
		if rmErr := os.RemoveAll(work); rmErr != nil {
			a.logger.Warn("could not remove workspace", "path", work, "err", rmErr)
		}
	}()

	payload := filepath.Join(work, "payload")
	n, err := download(ctx, a.client, a.userAgent, url, payload)
	if err != nil {
		return "", url, err
	}
	a.logger.Debug("downloaded", "artifact", target.Name, "bytes", n, "url", redactURL(url))

	if resolved.SHA256 != "" {
		if err := VerifyFile(payload, resolved.SHA256); err != nil {
			return "", url, err
		}
	}

	switch c.Kind {
	case KindArchive:
		path, err = a.placeArchive(target, payload, work, dest)
	default:
		path, err = a.placeBinary(target, payload, dest)
	}
	return path, url, err
}

func (a *Acquirer) placeBinary(target Target, payload, dest string) (string, error) {
	if err := a.ensureExecutable(target, payload); err != nil {
		return "", err
	}
	final := filepath.Join(dest, target.FileName)
	if err := os.Rename(payload, final); err != nil {
		return "", fmt.Errorf("installing %s: %w", final, err)
	}
	return final, nil
}

func (a *Acquirer) placeArchive(target Target, payload, work, dest string) (string, error) {
	tree := filepath.Join(work, "tree")
	if _, err := Extract(payload, tree, a.logger); err != nil {
		return "", err
	}

	found, err := FindArtifact(tree, target.FileName)
	if err != nil {
		return "", err
	}
	if err := a.ensureExecutable(target, found); err != nil {
		return "", err
	}

	root := unwrapSingleDir(tree)
	rel, err := filepath.Rel(root, found)
	if err != nil {
		return "", err
	}

	if err := swapDir(root, dest); err != nil {
		return "", err
	}
	return filepath.Join(dest, rel), nil
}

// ensureExecutable adds execute bits on platforms that use them and checks
// the result.
func (a *Acquirer) ensureExecutable(target Target, path string) error {
	if !target.Executable || a.goos == platform.Windows {
		return nil
	}
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if err := os.Chmod(path, info.Mode().Perm()|0o755); err != nil {
		return fmt.Errorf("%w: %w", ErrNotExecutable, err)
	}
	info, err = os.Stat(path)
	if err != nil {
		return err
	}
	if info.Mode().Perm()&0o111 == 0 {
		return fmt.Errorf("%w: %s", ErrNotExecutable, path)
	}
	return nil
}

// unwrapSingleDir returns the lone top-level directory of tree, if that is
// all it contains, and tree otherwise.
func unwrapSingleDir(tree string) string {
	entries, err := os.ReadDir(tree)
	if err != nil || len(entries) != 1 || !entries[0].IsDir() {
		return tree
	}
	return filepath.Join(tree, entries[0].Name())
}

// swapDir moves src to dest. An existing dest is parked beside it first and
// restored if the move fails, so dest is never left half-populated.
func swapDir(src, dest string) error {
	parked := ""
	if _, err := os.Lstat(dest); err == nil {
		parked = fmt.Sprintf("%s.old-%d", dest, time.Now().UnixNano())
		if err := os.Rename(dest, parked); err != nil {
			return fmt.Errorf("moving previous %s aside: %w", dest, err)
		}
	}

	if err := os.Rename(src, dest); err != nil {
		if parked != "" {
			_ = os.Rename(parked, dest)
		}
		return fmt.Errorf("installing %s: %w", dest, err)
	}

	if parked != "" {
		_ = os.RemoveAll(parked)
	}
	return nil
}
