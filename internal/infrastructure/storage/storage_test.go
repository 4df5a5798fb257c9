package storage

import (
	"errors"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/AtRiskMedia/clicktrail-go/internal/domain/attribution"
	"github.com/AtRiskMedia/clicktrail-go/internal/infrastructure/observability/logging"
)

var testNow = time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

func sampleRecord(source string, count int) *attribution.Record {
	first := attribution.NewTouch(map[string]string{"utm_source": "google", "timestamp": "2026-01-01T00:00:00.000Z"})
	last := attribution.NewTouch(map[string]string{"utm_source": source, "referrer": "https://t.co/a b"})
	return &attribution.Record{FirstTouch: first, LastTouch: last, SessionCount: count}
}

func encoded(t *testing.T, r *attribution.Record) string {
	t.Helper()
	raw, err := attribution.Encode(r)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	return raw
}

func TestRoundTripPerChannel(t *testing.T) {
	logger := logging.NewDiscardLogger()
	r := sampleRecord("bing", 3)

	backends := map[string]func() Backend{
		"cookie": func() Backend { return NewCookieJar(nil, DefaultCookieOptions(90), func() time.Time { return testNow }) },
		"kv":     func() Backend { return NewMemoryStore(nil) },
	}

	for name, build := range backends {
		t.Run(name, func(t *testing.T) {
			m := NewManager("ct_attribution", logger, build())
			if err := m.Save(r); err != nil {
				t.Fatalf("save: %v", err)
			}
			got := m.Load()
			if !got.Equal(r) {
				t.Fatalf("load(save(r)) mismatch: %+v", got)
			}
		})
	}
}

func TestCookieRoundTripThroughHTTP(t *testing.T) {
	r := sampleRecord("newsletter", 2)
	jar := NewCookieJar(nil, DefaultCookieOptions(90), func() time.Time { return testNow })
	if err := NewManager("ct_attribution", logging.NewDiscardLogger(), jar).Save(r); err != nil {
		t.Fatalf("save: %v", err)
	}

	written := jar.Written()
	if len(written) != 1 {
		t.Fatalf("written = %d cookies", len(written))
	}
	c := written[0]
	if c.Path != "/" || c.SameSite != http.SameSiteLaxMode || !c.Secure {
		t.Fatalf("unexpected cookie attributes: %+v", c)
	}
	if want := testNow.Add(90 * 24 * time.Hour); !c.Expires.Equal(want) {
		t.Fatalf("expires = %v, want %v", c.Expires, want)
	}

	// Replay the Set-Cookie as the next request's Cookie header.
	req, _ := http.NewRequest(http.MethodGet, "https://shop.test/", nil)
	req.AddCookie(&http.Cookie{Name: c.Name, Value: c.Value})
	next := NewCookieJar(ParseCookieHeader(req.Header.Values("Cookie")), DefaultCookieOptions(90), nil)

	got := NewManager("ct_attribution", logging.NewDiscardLogger(), next).Load()
	if !got.Equal(r) {
		t.Fatalf("record did not survive the cookie header: %+v", got)
	}
}

func TestParseCookieHeaderKeepsRawJSON(t *testing.T) {
	r := sampleRecord("newsletter", 2)
	line := `ct_consent={"marketing":true}; attribution=` + encoded(t, r) + `;  theme=dark=1 ; =orphan; empty=`

	cookies := ParseCookieHeader([]string{line, "ct_consent=ignored"})
	want := map[string]string{
		"ct_consent": `{"marketing":true}`,
		"theme":      "dark=1",
		"empty":      "",
	}
	jar := NewCookieJar(cookies, DefaultCookieOptions(90), nil)
	for name, value := range want {
		got := ""
		for _, c := range cookies {
			if c.Name == name {
				got = c.Value
				break
			}
		}
		if got != value {
			t.Fatalf("%s = %q, want %q", name, got, value)
		}
	}
	if v, ok := jar.Read("ct_consent"); !ok || v != `{"marketing":true}` {
		t.Fatalf("first value should win, got %q", v)
	}
	if _, ok := jar.Read("empty"); ok {
		t.Fatal("empty cookie should read as absent")
	}

	got := NewManager("ct_attribution", logging.NewDiscardLogger(), jar).Load()
	if !got.Equal(r) {
		t.Fatalf("raw legacy cookie not loaded: %+v", got)
	}
}

func TestLoadOrder(t *testing.T) {
	logger := logging.NewDiscardLogger()
	cookieLegacy := sampleRecord("cookie-legacy", 1)
	kvPrimary := sampleRecord("kv-primary", 5)

	jar := NewCookieJar([]*http.Cookie{{Name: LegacyKey, Value: encoded(t, cookieLegacy)}}, DefaultCookieOptions(90), nil)
	kv := NewMemoryStore(map[string]string{"ct_attribution": encoded(t, kvPrimary)})

	got := NewManager("ct_attribution", logger, jar, kv).Load()
	if got.LastTouch.Get("utm_source") != "cookie-legacy" {
		t.Fatalf("expected cookie channel (even legacy key) to win, got %q", got.LastTouch.Get("utm_source"))
	}
}

func TestLoadPrimaryBeforeLegacy(t *testing.T) {
	kv := NewMemoryStore(map[string]string{
		LegacyKey:        encoded(t, sampleRecord("legacy", 1)),
		"ct_attribution": encoded(t, sampleRecord("primary", 1)),
	})
	got := NewManager("ct_attribution", logging.NewDiscardLogger(), kv).Load()
	if got.LastTouch.Get("utm_source") != "primary" {
		t.Fatalf("got %q, want primary", got.LastTouch.Get("utm_source"))
	}
}

func TestLoadSkipsMalformed(t *testing.T) {
	jar := NewCookieJar([]*http.Cookie{
		{Name: "ct_attribution", Value: "%7Bbroken"},
		{Name: LegacyKey, Value: "null"},
	}, DefaultCookieOptions(90), nil)
	kv := NewMemoryStore(map[string]string{"ct_attribution": encoded(t, sampleRecord("kv", 7))})

	failures := 0
	m := NewManager("ct_attribution", logging.NewDiscardLogger(), jar, kv)
	m.OnReadFailure(func(string) { failures++ })

	got := m.Load()
	if got == nil || got.SessionCount != 7 {
		t.Fatalf("expected kv record after malformed cookies, got %+v", got)
	}
	if failures != 2 {
		t.Fatalf("failures = %d, want 2", failures)
	}
}

func TestLoadNothingStored(t *testing.T) {
	m := NewManager("ct_attribution", logging.NewDiscardLogger(), NewCookieJar(nil, DefaultCookieOptions(90), nil), NewMemoryStore(nil))
	if got := m.Load(); got != nil {
		t.Fatalf("expected nil, got %+v", got)
	}
}

type failingBackend struct{}

func (failingBackend) Name() string               { return "broken" }
func (failingBackend) Read(string) (string, bool) { return "", false }
func (failingBackend) Write(string, string) error { return errors.New("quota exceeded") }

func TestSaveWritesEveryBackendUnderPrimaryKey(t *testing.T) {
	jar := NewCookieJar([]*http.Cookie{{Name: LegacyKey, Value: "x"}}, DefaultCookieOptions(30), nil)
	kv := NewMemoryStore(nil)
	m := NewManager("custom_key", logging.NewDiscardLogger(), jar, failingBackend{}, kv)

	err := m.Save(sampleRecord("x", 1))
	if err == nil || !strings.Contains(err.Error(), "quota exceeded") {
		t.Fatalf("expected joined backend error, got %v", err)
	}
	if _, ok := kv.Changes()["custom_key"]; !ok {
		t.Fatal("kv store should still be written after an earlier backend failed")
	}
	if len(kv.Changes()) != 1 {
		t.Fatalf("only the primary key should be written: %v", kv.Changes())
	}
	if w := jar.Written(); len(w) != 1 || w[0].Name != "custom_key" {
		t.Fatalf("cookie writes = %+v", w)
	}
}

func TestKeysDeduplicateLegacy(t *testing.T) {
	m := NewManager(LegacyKey, logging.NewDiscardLogger())
	if keys := m.Keys(); len(keys) != 1 || keys[0] != LegacyKey {
		t.Fatalf("keys = %v", keys)
	}
}
