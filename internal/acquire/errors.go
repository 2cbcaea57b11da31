// SPDX-License-Identifier: MPL-2.0

package acquire

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	// ErrNoCandidates is returned when Acquire is called with an empty list.
	ErrNoCandidates = errors.New("no candidate sources")

	// ErrEmptyPayload indicates a download finished with zero bytes.
	ErrEmptyPayload = errors.New("downloaded payload is empty")

	// ErrPayloadTooLarge indicates a download exceeded the size ceiling.
	ErrPayloadTooLarge = errors.New("downloaded payload exceeds size limit")

	// ErrUnsupportedArchive indicates the payload is not tar, tar.gz or zip.
	ErrUnsupportedArchive = errors.New("unsupported archive format")

	// ErrEmptyArchive indicates extraction produced no files.
	ErrEmptyArchive = errors.New("archive contained no usable entries")

	// ErrArtifactNotFound indicates the expected file is missing from an extracted tree.
	ErrArtifactNotFound = errors.New("artifact not found in archive")

	// ErrNotExecutable indicates the artifact could not be made executable.
	ErrNotExecutable = errors.New("artifact is not executable")

	// ErrChecksumMismatch indicates the computed SHA256 does not match the expected one.
	ErrChecksumMismatch = errors.New("checksum mismatch")

	// ErrAssetNotFound indicates no release asset matched the requested pattern.
	ErrAssetNotFound = errors.New("release asset not found")
)

type (
	// Attempt records the outcome of trying one candidate.
	Attempt struct {
		Target    string
		Candidate string
		URL       string
		Duration  time.Duration
		Err       error
	}

	// AggregateError is returned when every candidate failed. Attempts keeps
	// every per-candidate failure in the order they were tried.
	AggregateError struct {
		Target   string
		Attempts []Attempt
	}

	// HTTPStatusError reports a non-2xx response.
	HTTPStatusError struct {
		URL        string
		StatusCode int
	}

	// ChecksumError provides details about a checksum verification failure.
	// It wraps ErrChecksumMismatch so callers can use errors.Is for classification.
	ChecksumError struct {
		Filename string
		Expected string
		Got      string
	}
)

// Error summarises the failure, naming the last error seen.
func (e *AggregateError) Error() string {
	if len(e.Attempts) == 0 {
		return fmt.Sprintf("acquiring %s: %v", e.Target, ErrNoCandidates)
	}
	return fmt.Sprintf("acquiring %s: all %d candidates failed, last error: %v",
		e.Target, len(e.Attempts), e.Last())
}

// Last returns the error from the final attempt.
func (e *AggregateError) Last() error {
	if len(e.Attempts) == 0 {
		return ErrNoCandidates
	}
	return e.Attempts[len(e.Attempts)-1].Err
}

// Unwrap exposes every per-candidate error to errors.Is and errors.As.
func (e *AggregateError) Unwrap() []error {
	if len(e.Attempts) == 0 {
		return []error{ErrNoCandidates}
	}
	errs := make([]error, 0, len(e.Attempts))
	for _, a := range e.Attempts {
		errs = append(errs, a.Err)
	}
	return errs
}

// Detail renders one line per attempt for verbose output.
func (e *AggregateError) Detail() string {
	var b strings.Builder
	for i, a := range e.Attempts {
		fmt.Fprintf(&b, "%d. %s: %v\n", i+1, a.Candidate, a.Err)
	}
	return b.String()
}

// Error implements error.
func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("GET %s: unexpected status %d", redactURL(e.URL), e.StatusCode)
}

// Error returns a human-readable description of the checksum mismatch.
func (e *ChecksumError) Error() string {
	return fmt.Sprintf("checksum verification failed for %s\nExpected: %s\nGot:      %s", e.Filename, e.Expected, e.Got)
}

// Unwrap returns ErrChecksumMismatch so callers can use errors.Is.
func (e *ChecksumError) Unwrap() error { return ErrChecksumMismatch }
