// SPDX-License-Identifier: MPL-2.0

package acquire

import "context"

const (
	// KindBinary payloads are the artifact itself.
	KindBinary Kind = iota
	// KindArchive payloads are extracted and searched for the artifact.
	KindArchive
)

type (
	// Kind says how a downloaded payload turns into the artifact.
	Kind int

	// Resolver turns a candidate into a concrete download location. Static
	// candidates resolve without I/O; API-backed candidates query metadata.
	Resolver interface {
		Resolve(ctx context.Context) (Resolved, error)
	}

	// Resolved is a concrete download location.
	Resolved struct {
		URL string
		// SHA256 is the expected hex digest, empty when the source publishes none.
		SHA256 string
	}

	// Candidate is one source in an ordered fallback list.
	Candidate struct {
		// Name labels the candidate in logs and errors.
		Name     string
		Kind     Kind
		Resolver Resolver
	}

	// Target describes the artifact being acquired.
	Target struct {
		// Name is the logical artifact name, also used as the store key.
		Name string
		// FileName is the file to locate in an archive, or to write a binary payload as.
		FileName string
		// Executable requires the artifact to carry an execute bit.
		Executable bool
	}

	// StaticURL is a Resolver for a fixed URL.
	StaticURL string
)

// String returns a printable kind name.
func (k Kind) String() string {
	switch k {
	case KindBinary:
		return "binary"
	case KindArchive:
		return "archive"
	default:
		return "unknown"
	}
}

// Resolve returns the URL unchanged.
func (u StaticURL) Resolve(context.Context) (Resolved, error) {
	return Resolved{URL: string(u)}, nil
}

// URLCandidate is shorthand for a Candidate backed by a StaticURL.
func URLCandidate(name string, kind Kind, url string) Candidate {
	return Candidate{Name: name, Kind: kind, Resolver: StaticURL(url)}
}
