// SPDX-License-Identifier: MPL-2.0

package acquire

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	// DefaultPaperAPI is the PaperMC downloads API.
	DefaultPaperAPI = "https://api.papermc.io/v2"

	// DefaultPaperVersion is used when the project version list cannot be read.
	DefaultPaperVersion = "1.21.11"

	// DefaultMetadataTimeout bounds each metadata request.
	DefaultMetadataTimeout = 30 * time.Second
)

// ErrNoBuilds is returned when a Paper version lists no builds.
var ErrNoBuilds = errors.New("no builds published")

type (
	// PaperClient talks to the PaperMC v2 API.
	PaperClient struct {
		httpClient *http.Client
		baseURL    string
		userAgent  string
		timeout    time.Duration
	}

	// PaperOption configures a PaperClient.
	PaperOption func(*PaperClient)

	// PaperBuild resolves the newest build of Version, or of the newest
	// version when Version is empty.
	PaperBuild struct {
		Client  *PaperClient
		Version string
	}

	paperProject struct {
		Versions []string `json:"versions"`
	}

	paperVersion struct {
		Builds []int `json:"builds"`
	}

	paperBuild struct {
		Downloads map[string]paperDownload `json:"downloads"`
	}

	paperDownload struct {
		Name   string `json:"name"`
		SHA256 string `json:"sha256"`
	}
)

// WithPaperBaseURL overrides the API base URL.
func WithPaperBaseURL(base string) PaperOption {
	return func(p *PaperClient) {
		p.baseURL = strings.TrimRight(base, "/")
	}
}

// WithPaperHTTPClient sets the HTTP client.
func WithPaperHTTPClient(c *http.Client) PaperOption {
	return func(p *PaperClient) {
		p.httpClient = c
	}
}

// WithPaperUserAgent sets the User-Agent header.
func WithPaperUserAgent(ua string) PaperOption {
	return func(p *PaperClient) {
		p.userAgent = ua
	}
}

// WithPaperTimeout bounds each metadata request.
func WithPaperTimeout(d time.Duration) PaperOption {
	return func(p *PaperClient) {
		if d > 0 {
			p.timeout = d
		}
	}
}

// NewPaperClient creates a client for the public PaperMC API.
func NewPaperClient(opts ...PaperOption) *PaperClient {
	p := &PaperClient{
		httpClient: http.DefaultClient,
		baseURL:    DefaultPaperAPI,
		userAgent:  DefaultUserAgent,
		timeout:    DefaultMetadataTimeout,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// LatestVersion returns the last entry of the project's version list.
func (p *PaperClient) LatestVersion(ctx context.Context) (string, error) {
	var proj paperProject
	if err := p.getJSON(ctx, p.baseURL+"/projects/paper", &proj); err != nil {
		return "", err
	}
	if len(proj.Versions) == 0 {
		return "", errors.New("paper project lists no versions")
	}
	return proj.Versions[len(proj.Versions)-1], nil
}

// LatestBuild returns the last build number published for version.
func (p *PaperClient) LatestBuild(ctx context.Context, version string) (int, error) {
	var v paperVersion
	if err := p.getJSON(ctx, fmt.Sprintf("%s/projects/paper/versions/%s", p.baseURL, version), &v); err != nil {
		return 0, err
	}
	if len(v.Builds) == 0 {
		return 0, fmt.Errorf("%w for paper %s", ErrNoBuilds, version)
	}
	return v.Builds[len(v.Builds)-1], nil
}

// Resolve performs the version and build lookups and returns the jar URL
// with its published checksum when the build metadata provides one.
func (r PaperBuild) Resolve(ctx context.Context) (Resolved, error) {
	p := r.Client
	if p == nil {
		p = NewPaperClient()
	}

	version := r.Version
	if version == "" {
		latest, err := p.LatestVersion(ctx)
		if err != nil {
			version = DefaultPaperVersion
		} else {
			version = latest
		}
	}

	build, err := p.LatestBuild(ctx, version)
	if err != nil {
		return Resolved{}, err
	}

	buildURL := fmt.Sprintf("%s/projects/paper/versions/%s/builds/%d", p.baseURL, version, build)
	name := fmt.Sprintf("paper-%s-%d.jar", version, build)
	sum := ""

	var info paperBuild
	if err := p.getJSON(ctx, buildURL, &info); err == nil {
		if app, ok := info.Downloads["application"]; ok && app.Name != "" {
			name = app.Name
			if isValidHexHash(app.SHA256) {
				sum = app.SHA256
			}
		}
	}

	return Resolved{URL: buildURL + "/downloads/" + name, SHA256: sum}, nil
}

func (p *PaperClient) getJSON(ctx context.Context, reqURL string, out any) error {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, http.NoBody)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", p.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("GET %s: %w", reqURL, err)
	}
	defer func() { _ = resp.Body.Close() }() // read-only response body

	if resp.StatusCode != http.StatusOK {
		return &HTTPStatusError{URL: reqURL, StatusCode: resp.StatusCode}
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxJSONResponseBytes)).Decode(out); err != nil {
		return fmt.Errorf("decoding %s: %w", reqURL, err)
	}
	return nil
}
