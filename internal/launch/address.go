// SPDX-License-Identifier: MPL-2.0

package launch

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"
)

const (
	// PlaceholderIP stands in for the public address when no lookup succeeds.
	PlaceholderIP = "SERVER_IP"
	// DefaultLookupTimeout bounds each public IP service request.
	DefaultLookupTimeout = 8 * time.Second

	maxLookupBody = 64
)

// PublicIP asks each service in order for the host's public IPv4 address
// and returns the first valid answer, or "" when none responds.
func PublicIP(ctx context.Context, client *http.Client, userAgent string, services []string) string {
	if client == nil {
		client = &http.Client{Timeout: DefaultLookupTimeout}
	}
	for _, svc := range services {
		if ip := lookupIP(ctx, client, userAgent, svc); ip != "" {
			return ip
		}
	}
	return ""
}

func lookupIP(ctx context.Context, client *http.Client, userAgent, url string) string {
	ctx, cancel := context.WithTimeout(ctx, DefaultLookupTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return ""
	}
	if userAgent != "" {
		req.Header.Set("User-Agent", userAgent)
	}
	resp, err := client.Do(req)
	if err != nil {
		return ""
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return ""
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxLookupBody))
	if err != nil {
		return ""
	}
	ip := strings.TrimSpace(string(body))
	if !isIPv4(ip) {
		return ""
	}
	return ip
}

func isIPv4(s string) bool {
	if strings.Count(s, ".") != 3 {
		return false
	}
	ip := net.ParseIP(s)
	return ip != nil && ip.To4() != nil
}

// JoinAddress formats host:port for players, using PlaceholderIP for an
// unknown host.
func JoinAddress(ip string, port int) string {
	if ip == "" {
		ip = PlaceholderIP
	}
	return net.JoinHostPort(ip, strconv.Itoa(port))
}

// ReadyMessage is the line logged once per launch when the server is up.
func ReadyMessage(ip string, port int) string {
	return fmt.Sprintf("Server reports ready. Join at: %s", JoinAddress(ip, port))
}
