// SPDX-License-Identifier: MPL-2.0

package acquire

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"slices"
	"strconv"
	"strings"
	"time"

	"golang.org/x/mod/semver"
)

const (
	// DefaultGitHubAPI is the public GitHub REST endpoint.
	DefaultGitHubAPI = "https://api.github.com"

	// defaultPerPage is the number of releases fetched per API page.
	defaultPerPage = 30

	// maxPages is the upper bound on pagination to avoid runaway requests.
	maxPages = 3

	// maxJSONResponseBytes is the upper bound on JSON API response size (10 MB).
	maxJSONResponseBytes = 10 << 20
)

type (
	// RateLimitError is returned when the GitHub API rate limit is exceeded.
	RateLimitError struct {
		Limit     int
		Remaining int
		ResetAt   time.Time
	}

	// Release is a GitHub release with its assets.
	Release struct {
		TagName    string
		Prerelease bool
		Draft      bool
		Assets     []Asset
	}

	// Asset is a downloadable file attached to a release.
	Asset struct {
		Name               string
		BrowserDownloadURL string
		Size               int64
	}

	githubRelease struct {
		TagName    string        `json:"tag_name"`
		Prerelease bool          `json:"prerelease"`
		Draft      bool          `json:"draft"`
		Assets     []githubAsset `json:"assets"`
	}

	githubAsset struct {
		Name               string `json:"name"`
		BrowserDownloadURL string `json:"browser_download_url"`
		Size               int64  `json:"size"`
	}

	// GitHubClient queries the GitHub Releases API.
	GitHubClient struct {
		httpClient *http.Client
		baseURL    string
		token      string
		userAgent  string
	}

	// GitHubOption configures a GitHubClient during construction.
	GitHubOption func(*GitHubClient)

	// GitHubLatestAsset resolves to the newest stable release asset whose
	// name matches AssetPattern.
	GitHubLatestAsset struct {
		Client       *GitHubClient
		Owner        string
		Repo         string
		AssetPattern string
	}
)

// Error formats the rate limit details as a human-readable message.
func (e *RateLimitError) Error() string {
	return fmt.Sprintf("GitHub API rate limit exceeded (%d remaining, resets at %s)",
		e.Remaining, e.ResetAt.UTC().Format("15:04 UTC"))
}

// WithGitHubHTTPClient sets a custom HTTP client.
func WithGitHubHTTPClient(c *http.Client) GitHubOption {
	return func(g *GitHubClient) {
		g.httpClient = c
	}
}

// WithGitHubBaseURL overrides the API base URL, primarily for test servers.
func WithGitHubBaseURL(base string) GitHubOption {
	return func(g *GitHubClient) {
		g.baseURL = strings.TrimRight(base, "/")
	}
}

// WithGitHubToken sets a token for authenticated requests (5000/hour instead of 60/hour).
func WithGitHubToken(token string) GitHubOption {
	return func(g *GitHubClient) {
		g.token = token
	}
}

// WithGitHubUserAgent sets the User-Agent header.
func WithGitHubUserAgent(ua string) GitHubOption {
	return func(g *GitHubClient) {
		g.userAgent = ua
	}
}

// NewGitHubClient creates a GitHubClient for the public API.
func NewGitHubClient(opts ...GitHubOption) *GitHubClient {
	c := &GitHubClient{
		httpClient: http.DefaultClient,
		baseURL:    DefaultGitHubAPI,
		userAgent:  DefaultUserAgent,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ListReleases fetches stable releases of owner/repo sorted newest first.
// Tags are compared as semantic versions after stripping any non-numeric
// prefix, so "DepotDownloader_3.4.0" sorts like "v3.4.0".
func (c *GitHubClient) ListReleases(ctx context.Context, owner, repo string) ([]Release, error) {
	pageURL := fmt.Sprintf("%s/repos/%s/%s/releases?per_page=%d", c.baseURL, owner, repo, defaultPerPage)

	var all []Release
	for page := 0; page < maxPages && pageURL != ""; page++ {
		resp, err := c.doRequest(ctx, pageURL)
		if err != nil {
			return nil, fmt.Errorf("listing releases: %w", err)
		}

		if rlErr := checkRateLimit(resp); rlErr != nil {
			resp.Body.Close()
			return nil, rlErr
		}
		if resp.StatusCode != http.StatusOK {
			resp.Body.Close()
			return nil, &HTTPStatusError{URL: pageURL, StatusCode: resp.StatusCode}
		}

		var raw []githubRelease
		err = json.NewDecoder(io.LimitReader(resp.Body, maxJSONResponseBytes)).Decode(&raw)
		resp.Body.Close()
		if err != nil {
			return nil, fmt.Errorf("decoding releases: %w", err)
		}

		for _, gr := range raw {
			if gr.Draft || gr.Prerelease {
				continue
			}
			all = append(all, toRelease(gr))
		}
		pageURL = parseLinkHeader(resp.Header.Get("Link"))
	}

	slices.SortStableFunc(all, func(a, b Release) int {
		return semver.Compare(normalizeTag(b.TagName), normalizeTag(a.TagName))
	})
	return all, nil
}

// Resolve picks the first release, newest first, that carries a matching asset.
func (r GitHubLatestAsset) Resolve(ctx context.Context) (Resolved, error) {
	client := r.Client
	if client == nil {
		client = NewGitHubClient()
	}

	releases, err := client.ListReleases(ctx, r.Owner, r.Repo)
	if err != nil {
		return Resolved{}, err
	}
	for _, rel := range releases {
		for _, asset := range rel.Assets {
			if MatchAsset(r.AssetPattern, asset.Name) && asset.BrowserDownloadURL != "" {
				return Resolved{URL: asset.BrowserDownloadURL}, nil
			}
		}
	}
	return Resolved{}, fmt.Errorf("%w: %s in %s/%s", ErrAssetNotFound, r.AssetPattern, r.Owner, r.Repo)
}

// doRequest executes a GET with the GitHub API headers.
func (c *GitHubClient) doRequest(ctx context.Context, reqURL string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("X-GitHub-Api-Version", "2022-11-28")
	req.Header.Set("User-Agent", c.userAgent)

	// The token only goes to the API host, never to a redirect target.
	if c.token != "" && isGitHubHost(req.URL, c.baseURL) {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("executing request: %w", err)
	}
	return resp, nil
}

// checkRateLimit returns a RateLimitError when X-RateLimit-Remaining is zero.
func checkRateLimit(resp *http.Response) error {
	remaining := resp.Header.Get("X-RateLimit-Remaining")
	if remaining == "" {
		return nil
	}

	rem, err := strconv.Atoi(remaining)
	if err != nil || rem > 0 {
		return nil //nolint:nilerr // Non-numeric header is non-fatal.
	}

	limit, _ := strconv.Atoi(resp.Header.Get("X-RateLimit-Limit"))                 //nolint:errcheck // Best-effort header parsing.
	resetUnix, _ := strconv.ParseInt(resp.Header.Get("X-RateLimit-Reset"), 10, 64) //nolint:errcheck // Best-effort header parsing.

	return &RateLimitError{
		Limit:     limit,
		Remaining: 0,
		ResetAt:   time.Unix(resetUnix, 0),
	}
}

// parseLinkHeader extracts the rel="next" URL from a Link header.
func parseLinkHeader(header string) string {
	for part := range strings.SplitSeq(header, ",") {
		part = strings.TrimSpace(part)
		if !strings.Contains(part, `rel="next"`) {
			continue
		}
		start := strings.Index(part, "<")
		end := strings.Index(part, ">")
		if start >= 0 && end > start {
			return part[start+1 : end]
		}
	}
	return ""
}

func toRelease(gr githubRelease) Release {
	assets := make([]Asset, 0, len(gr.Assets))
	for _, ga := range gr.Assets {
		assets = append(assets, Asset(ga))
	}
	return Release{
		TagName:    gr.TagName,
		Prerelease: gr.Prerelease,
		Draft:      gr.Draft,
		Assets:     assets,
	}
}

// normalizeTag maps a release tag to a canonical semver string, or "" when
// the tag carries no version.
func normalizeTag(tag string) string {
	i := strings.IndexAny(tag, "0123456789")
	if i < 0 {
		return ""
	}
	return semver.Canonical("v" + tag[i:])
}

// isGitHubHost reports whether reqURL targets the configured API host, or
// github.com when the API base is api.github.com.
func isGitHubHost(reqURL *url.URL, baseURL string) bool {
	base, err := url.Parse(baseURL)
	if err != nil {
		return false
	}
	if strings.EqualFold(reqURL.Host, base.Host) {
		return true
	}
	return strings.EqualFold(base.Host, "api.github.com") && strings.EqualFold(reqURL.Host, "github.com")
}
