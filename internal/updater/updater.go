package updater

import (
	"net/http"
	"time"
)

// Release represents one entry of the host releases feed.
type Release struct {
	Version   string    `json:"tag_name"`
	Body      string    `json:"body"`
	Published time.Time `json:"published_at"`
	HTMLURL   string    `json:"html_url"`
}

// Updater checks the releases feed for host-application updates.
type Updater struct {
	hostVersion string
	httpClient  *http.Client
	mirror      string
}

// Option configures an Updater.
type Option func(*Updater)

// WithHTTPClient sets a custom HTTP client (useful for testing).
func WithHTTPClient(c *http.Client) Option {
	return func(u *Updater) {
		u.httpClient = c
	}
}

// WithMirror sets a mirror base URL for the releases feed.
func WithMirror(mirror string) Option {
	return func(u *Updater) {
		u.mirror = mirror
	}
}

// New creates an Updater for the given running host version.
func New(hostVersion string, opts ...Option) *Updater {
	u := &Updater{
		hostVersion: hostVersion,
		httpClient:  &http.Client{Timeout: 15 * time.Second},
	}
	for _, opt := range opts {
		opt(u)
	}
	return u
}

// HostVersion returns the version this updater was created with.
func (u *Updater) HostVersion() string {
	return u.hostVersion
}
