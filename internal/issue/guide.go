// SPDX-License-Identifier: MPL-2.0

package issue

import (
	"maps"
	"slices"

	"github.com/charmbracelet/glamour"
)

const (
	// CrashLoopGuide explains what to do when a restart ceiling is hit.
	CrashLoopGuide GuideID = iota + 1
	// JavaMissingGuide explains how to provide a Java runtime.
	JavaMissingGuide
	// OutOfMemoryGuide explains SIGKILL exits caused by the OOM killer.
	OutOfMemoryGuide
	// InstallFailedGuide explains first-run download failures.
	InstallFailedGuide
)

type (
	// GuideID identifies a Markdown remediation guide.
	GuideID int

	// Guide is a Markdown write-up for a fatal condition.
	Guide struct {
		id    GuideID
		title string
		mdMsg string
	}
)

var (
	render = glamour.Render

	guides = map[GuideID]*Guide{
		CrashLoopGuide: {
			id:    CrashLoopGuide,
			title: "crash loop",
			mdMsg: `
# The server keeps crashing

The manager stopped restarting the server because it failed too many times in a row.

## Things you can try
- Read the last lines of the session log for a stack trace.
- Check that the server has enough memory for the configured heap or map size.
- Remove recently added plugins or mods and start again.
- Raise the ceilings in the config file when crashes are expected:
~~~cue
supervisor: {
	max_fast_crashes: 10
	max_crashes: 5
}
~~~`,
		},
		JavaMissingGuide: {
			id:    JavaMissingGuide,
			title: "java missing",
			mdMsg: `
# No Java runtime found

Paper needs Java 21 (17 works for older versions). None was found on PATH,
in the JRE cache, or via automatic installation.

## Things you can try
- Install a JRE in the container image and make sure ` + "`java`" + ` is on PATH.
- Enable automatic installation:
~~~
AUTO_INSTALL_JRE=yes
~~~
- Point JRE_CACHE_DIR at a directory that already holds an extracted JRE.`,
		},
		OutOfMemoryGuide: {
			id:    OutOfMemoryGuide,
			title: "out of memory",
			mdMsg: `
# The server was killed by the kernel

A SIGKILL exit almost always means the host ran out of memory.

## Things you can try
- Allocate more RAM to the container.
- Use a smaller world size or lower the heap ceiling (MEM_MAX).
- Check ` + "`dmesg`" + ` for "Out of memory: Killed process".`,
		},
		InstallFailedGuide: {
			id:    InstallFailedGuide,
			title: "install failed",
			mdMsg: `
# The first install did not complete

Every download source failed, so there is nothing to launch.

## Things you can try
- Check outbound network access from the container.
- Set GITHUB_TOKEN when the GitHub API rate limit is exhausted.
- Provide an explicit mirror (SERVER_JAR_URL / SERVER_JAR_FALLBACK_URL).`,
		},
	}
)

// ID returns the guide identifier.
func (g *Guide) ID() GuideID {
	return g.id
}

// Title returns a short human-readable name.
func (g *Guide) Title() string {
	return g.title
}

// MarkdownMsg returns the raw Markdown body.
func (g *Guide) MarkdownMsg() string {
	return g.mdMsg
}

// Render renders the guide for a terminal using the given glamour style.
func (g *Guide) Render(stylePath string) (string, error) {
	return render(g.mdMsg, stylePath)
}

// Guides returns all registered guides ordered by ID.
func Guides() []*Guide {
	ids := slices.Sorted(maps.Keys(guides))
	out := make([]*Guide, 0, len(ids))
	for _, id := range ids {
		out = append(out, guides[id])
	}
	return out
}

// GetGuide returns the guide for id, or nil when unknown.
func GetGuide(id GuideID) *Guide {
	return guides[id]
}
