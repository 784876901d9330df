package updater

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/cadmod-labs/cadmod/internal/branding"
)

const githubAPIBase = "https://api.github.com"

// minHostHeader is the release-body trailer carrying the minimum host
// version the release requires, e.g. "Min-Host-Version: 2.4.0".
const minHostHeader = "min-host-version:"

// FetchLatest fetches the newest release from the feed. One attempt, no
// retry; the caller decides cadence.
func (u *Updater) FetchLatest() (*Release, error) {
	base := githubAPIBase
	if u.mirror != "" {
		base = strings.TrimRight(u.mirror, "/")
	}
	url := fmt.Sprintf("%s/repos/%s/releases/latest", base, branding.GitHubRepo())

	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("User-Agent", "cadmod-updater")

	// Optional token for higher rate limits.
	if token := os.Getenv("GITHUB_TOKEN"); token != "" {
		req.Header.Set("Authorization", "token "+token)
	}

	resp, err := u.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching release: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("release not found")
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("releases feed returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response body: %w", err)
	}

	var release Release
	if err := json.Unmarshal(body, &release); err != nil {
		return nil, fmt.Errorf("parsing release JSON: %w", err)
	}
	return &release, nil
}

// MinHostVersion extracts the minimum host version trailer from the release
// body. Empty when the release declares none.
func (r *Release) MinHostVersion() string {
	sc := bufio.NewScanner(strings.NewReader(r.Body))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if strings.HasPrefix(strings.ToLower(line), minHostHeader) {
			return strings.TrimSpace(line[len(minHostHeader):])
		}
	}
	return ""
}
