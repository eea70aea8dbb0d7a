// Package cookiejar persists the App Store session cookies between runs. The
// store talks to a fixed handful of hosts, so cookies are kept per-host
// rather than with full RFC 6265 domain-matching.
package cookiejar

import (
	"encoding/json"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"sync"
	"time"
)

type cookie struct {
	Name     string    `json:"name"`
	Value    string    `json:"value"`
	Path     string    `json:"path,omitempty"`
	Domain   string    `json:"domain,omitempty"`
	Expires  time.Time `json:"expires,omitempty"`
	Secure   bool      `json:"secure,omitempty"`
	HTTPOnly bool      `json:"httpOnly,omitempty"`
}

// Jar is a file-backed http.CookieJar. Save writes the current state; New
// loads whatever a previous run left behind (a corrupt file starts fresh).
type Jar struct {
	mu      sync.Mutex
	path    string
	entries map[string][]cookie // keyed by host
}

func New(path string) *Jar {
	jar := &Jar{
		path:    path,
		entries: make(map[string][]cookie),
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return jar
	}
	if err := json.Unmarshal(data, &jar.entries); err != nil {
		jar.entries = make(map[string][]cookie)
	}
	return jar
}

// SetCookies merges cookies for the URL's host, replacing same-name+path
// entries and dropping expired ones.
func (j *Jar) SetCookies(u *url.URL, cookies []*http.Cookie) {
	j.mu.Lock()
	defer j.mu.Unlock()

	existing := j.entries[u.Host]
	for _, c := range cookies {
		kept := existing[:0]
		for _, e := range existing {
			if e.Name != c.Name || e.Path != c.Path {
				kept = append(kept, e)
			}
		}
		existing = kept

		if c.MaxAge < 0 {
			continue
		}
		expires := c.Expires
		if c.MaxAge > 0 {
			expires = time.Now().Add(time.Duration(c.MaxAge) * time.Second)
		}
		if !expires.IsZero() && expires.Before(time.Now()) {
			continue
		}
		existing = append(existing, cookie{
			Name:     c.Name,
			Value:    c.Value,
			Path:     c.Path,
			Domain:   c.Domain,
			Expires:  expires,
			Secure:   c.Secure,
			HTTPOnly: c.HttpOnly,
		})
	}
	j.entries[u.Host] = existing
}

// Cookies returns the live cookies for the URL's host.
func (j *Jar) Cookies(u *url.URL) []*http.Cookie {
	j.mu.Lock()
	defer j.mu.Unlock()

	var out []*http.Cookie
	for _, e := range j.entries[u.Host] {
		if !e.Expires.IsZero() && e.Expires.Before(time.Now()) {
			continue
		}
		out = append(out, &http.Cookie{
			Name:  e.Name,
			Value: e.Value,
		})
	}
	return out
}

// Save flushes the jar to disk. Latest write wins; there is no transactional
// guarantee beyond that.
func (j *Jar) Save() error {
	j.mu.Lock()
	defer j.mu.Unlock()

	data, err := json.MarshalIndent(j.entries, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(j.path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(j.path, data, 0o600)
}
