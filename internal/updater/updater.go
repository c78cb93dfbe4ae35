// Package updater checks GitHub for a newer dotbot release. It only reports;
// installing the release is left to the user's package manager.
package updater

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/Masterminds/semver/v3"
)

const (
	githubRepo   = "HendryAvila/dotbot"
	releaseURL   = "https://api.github.com/repos/" + githubRepo + "/releases/latest"
	checkTimeout = 10 * time.Second
)

// For testing: allow overriding the release URL and HTTP client.
var (
	releaseEndpoint = releaseURL
	httpClient      = &http.Client{Timeout: checkTimeout}
)

// release holds the fields used from a GitHub release.
type release struct {
	TagName string `json:"tag_name"`
	HTMLURL string `json:"html_url"`
}

// Result is the outcome of a version check.
type Result struct {
	CurrentVersion  string `json:"currentVersion"`
	LatestVersion   string `json:"latestVersion"`
	UpdateAvailable bool   `json:"updateAvailable"`
	ReleaseURL      string `json:"releaseUrl,omitempty"`
}

// Check queries GitHub for the latest release and compares it with current.
func Check(ctx context.Context, current string) (*Result, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, releaseEndpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/vnd.github.v3+json")
	req.Header.Set("User-Agent", "dotbot/"+current)

	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("checking latest release: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("GitHub API returned %d", resp.StatusCode)
	}

	var rel release
	if err := json.NewDecoder(resp.Body).Decode(&rel); err != nil {
		return nil, fmt.Errorf("parsing release info: %w", err)
	}

	res := &Result{
		CurrentVersion: strings.TrimPrefix(current, "v"),
		LatestVersion:  strings.TrimPrefix(rel.TagName, "v"),
		ReleaseURL:     rel.HTMLURL,
	}
	res.UpdateAvailable = isNewer(res.CurrentVersion, res.LatestVersion)
	return res, nil
}

// isNewer reports whether latest is a higher version than current.
// Development builds and unparsable versions never report an update.
func isNewer(current, latest string) bool {
	c, err := semver.NewVersion(current)
	if err != nil {
		return false
	}
	l, err := semver.NewVersion(latest)
	if err != nil {
		return false
	}
	return l.GreaterThan(c)
}
