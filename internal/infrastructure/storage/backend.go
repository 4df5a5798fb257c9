// Package storage persists attribution records across the visitor's cookie
// and key-value channels.
package storage

import (
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
)

// Backend is one persistence channel. Read returns ok=false when key is absent.
type Backend interface {
	Name() string
	Read(key string) (value string, ok bool)
	Write(key, value string) error
}

// CookieOptions controls the attributes of written cookies.
type CookieOptions struct {
	Days     int
	Path     string
	SameSite http.SameSite
	Secure   bool
}

// DefaultCookieOptions returns path=/; SameSite=Lax; Secure for the given lifetime.
func DefaultCookieOptions(days int) CookieOptions {
	return CookieOptions{
		Days:     days,
		Path:     "/",
		SameSite: http.SameSiteLaxMode,
		Secure:   true,
	}
}

// CookieJar is the short-lived channel: the cookies a request arrived with,
// overlaid with the cookies written while handling it.
type CookieJar struct {
	mu      sync.Mutex
	values  map[string]string
	written []*http.Cookie
	opts    CookieOptions
	now     func() time.Time
}

// NewCookieJar builds a jar from request cookies.
func NewCookieJar(cookies []*http.Cookie, opts CookieOptions, now func() time.Time) *CookieJar {
	if now == nil {
		now = time.Now
	}
	values := make(map[string]string, len(cookies))
	for _, c := range cookies {
		if _, seen := values[c.Name]; !seen {
			values[c.Name] = c.Value
		}
	}
	return &CookieJar{values: values, opts: opts, now: now}
}

func (j *CookieJar) Name() string { return "cookie" }

// Read returns the decoded cookie value.
func (j *CookieJar) Read(key string) (string, bool) {
	j.mu.Lock()
	raw, ok := j.values[key]
	j.mu.Unlock()
	if !ok || raw == "" {
		return "", false
	}
	return DecodeCookieValue(raw), true
}

// Write records a Set-Cookie for key and makes it visible to later reads.
func (j *CookieJar) Write(key, value string) error {
	encoded := url.QueryEscape(value)
	cookie := &http.Cookie{
		Name:     key,
		Value:    encoded,
		Path:     j.opts.Path,
		SameSite: j.opts.SameSite,
		Secure:   j.opts.Secure,
	}
	if j.opts.Days > 0 {
		cookie.Expires = j.now().Add(time.Duration(j.opts.Days) * 24 * time.Hour).UTC()
	}

	j.mu.Lock()
	defer j.mu.Unlock()
	j.values[key] = encoded
	j.written = append(j.written, cookie)
	return nil
}

// Written returns the cookies to send back, in write order.
func (j *CookieJar) Written() []*http.Cookie {
	j.mu.Lock()
	defer j.mu.Unlock()
	out := make([]*http.Cookie, len(j.written))
	copy(out, j.written)
	return out
}

// ParseCookieHeader reads Cookie header lines the way a page script reads
// document.cookie: pairs split on ";", trimmed, cut at the first "=". Values
// are kept verbatim, so raw JSON written by other scripts survives. Repeated
// names keep their first value.
func ParseCookieHeader(lines []string) []*http.Cookie {
	var cookies []*http.Cookie
	for _, line := range lines {
		for _, part := range strings.Split(line, ";") {
			name, value, _ := strings.Cut(strings.TrimSpace(part), "=")
			name = strings.TrimSpace(name)
			if name == "" {
				continue
			}
			cookies = append(cookies, &http.Cookie{Name: name, Value: value})
		}
	}
	return cookies
}

// DecodeCookieValue undoes the percent-encoding applied on write. Values
// that were written raw by older tags are returned unchanged.
func DecodeCookieValue(raw string) string {
	if strings.HasPrefix(raw, "{") {
		return raw
	}
	if decoded, err := url.QueryUnescape(raw); err == nil {
		return decoded
	}
	return raw
}

// MemoryStore is the long-lived key-value channel, seeded from the snapshot
// the client sends and tracking the writes to hand back.
type MemoryStore struct {
	mu      sync.Mutex
	values  map[string]string
	changed map[string]string
}

// NewMemoryStore copies snapshot into a new store.
func NewMemoryStore(snapshot map[string]string) *MemoryStore {
	values := make(map[string]string, len(snapshot))
	for k, v := range snapshot {
		values[k] = v
	}
	return &MemoryStore{values: values, changed: make(map[string]string)}
}

func (s *MemoryStore) Name() string { return "localStorage" }

func (s *MemoryStore) Read(key string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.values[key]
	if !ok || v == "" {
		return "", false
	}
	return v, true
}

func (s *MemoryStore) Write(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = value
	s.changed[key] = value
	return nil
}

// Changes returns the keys written since the store was created.
func (s *MemoryStore) Changes() map[string]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]string, len(s.changed))
	for k, v := range s.changed {
		out[k] = v
	}
	return out
}
