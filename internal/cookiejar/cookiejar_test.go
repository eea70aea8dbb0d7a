package cookiejar

import (
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func mustURL(t *testing.T, raw string) *url.URL {
	t.Helper()
	u, err := url.Parse(raw)
	if err != nil {
		t.Fatal(err)
	}
	return u
}

func TestSetAndGetCookies(t *testing.T) {
	jar := New(filepath.Join(t.TempDir(), "cookies.json"))
	u := mustURL(t, "https://buy.itunes.apple.com/WebObjects/MZBuy.woa/wa/buyProduct")

	jar.SetCookies(u, []*http.Cookie{
		{Name: "session", Value: "abc"},
		{Name: "dqsid", Value: "xyz"},
	})

	got := jar.Cookies(u)
	if len(got) != 2 {
		t.Fatalf("Cookies() returned %d cookies, want 2", len(got))
	}

	// other hosts see nothing
	other := mustURL(t, "https://itunes.apple.com/search")
	if c := jar.Cookies(other); len(c) != 0 {
		t.Errorf("Cookies() for other host = %d, want 0", len(c))
	}
}

func TestSetCookiesReplacesSameName(t *testing.T) {
	jar := New(filepath.Join(t.TempDir(), "cookies.json"))
	u := mustURL(t, "https://buy.itunes.apple.com/")

	jar.SetCookies(u, []*http.Cookie{{Name: "session", Value: "old"}})
	jar.SetCookies(u, []*http.Cookie{{Name: "session", Value: "new"}})

	got := jar.Cookies(u)
	if len(got) != 1 {
		t.Fatalf("Cookies() returned %d cookies, want 1", len(got))
	}
	if got[0].Value != "new" {
		t.Errorf("cookie value = %q, want %q", got[0].Value, "new")
	}
}

func TestSetCookiesExpiry(t *testing.T) {
	jar := New(filepath.Join(t.TempDir(), "cookies.json"))
	u := mustURL(t, "https://buy.itunes.apple.com/")

	jar.SetCookies(u, []*http.Cookie{
		{Name: "live", Value: "1", Expires: time.Now().Add(time.Hour)},
		{Name: "dead", Value: "1", Expires: time.Now().Add(-time.Hour)},
		{Name: "deleted", Value: "1", MaxAge: -1},
	})

	got := jar.Cookies(u)
	if len(got) != 1 {
		t.Fatalf("Cookies() returned %d cookies, want 1", len(got))
	}
	if got[0].Name != "live" {
		t.Errorf("surviving cookie = %q, want %q", got[0].Name, "live")
	}
}

func TestSaveAndReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "store", "cookies.json")
	u := mustURL(t, "https://p25-buy.itunes.apple.com/")

	jar := New(path)
	jar.SetCookies(u, []*http.Cookie{{Name: "session", Value: "abc", Expires: time.Now().Add(time.Hour)}})
	if err := jar.Save(); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	reloaded := New(path)
	got := reloaded.Cookies(u)
	if len(got) != 1 || got[0].Name != "session" || got[0].Value != "abc" {
		t.Errorf("reloaded cookies = %v, want session=abc", got)
	}
}

func TestNewCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cookies.json")
	if err := os.WriteFile(path, []byte("not json"), 0o600); err != nil {
		t.Fatal(err)
	}

	jar := New(path)
	u := mustURL(t, "https://buy.itunes.apple.com/")
	if c := jar.Cookies(u); len(c) != 0 {
		t.Errorf("Cookies() from corrupt file = %d, want empty jar", len(c))
	}

	// a fresh jar must still be usable
	jar.SetCookies(u, []*http.Cookie{{Name: "session", Value: "abc"}})
	if err := jar.Save(); err != nil {
		t.Errorf("Save() error = %v", err)
	}
}
