package misc

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"
)

func TestListMembership(t *testing.T) {
	tests := []struct {
		name string
		got  bool
		want bool
	}{
		{"disposable domain", IsDisposableDomain("mailinator.com"), true},
		{"disposable mixed case", IsDisposableDomain("MAILINATOR.COM"), true},
		{"regular domain not disposable", IsDisposableDomain("gmail.com"), false},
		{"free provider", IsFreeDomain("gmail.com"), true},
		{"corporate domain not free", IsFreeDomain("example.com"), false},
		{"role local part", IsRoleAccount("admin"), true},
		{"role with tag", IsRoleAccount("support+billing"), true},
		{"personal local part", IsRoleAccount("alice.smith"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("got %v, want %v", tt.got, tt.want)
			}
		})
	}
}

func TestFreeDomainListSorted(t *testing.T) {
	list := FreeDomainList()
	if len(list) == 0 {
		t.Fatal("free domain list is empty")
	}
	for i := 1; i < len(list); i++ {
		if list[i-1] >= list[i] {
			t.Fatalf("list not sorted at %d: %q >= %q", i, list[i-1], list[i])
		}
	}
}

func TestHash(t *testing.T) {
	// Published gravatar example value.
	got := Hash(" MyEmailAddress@example.com ")
	want := "0bc83cb571cd1c50ba6f3e8a78ef1346"
	if got != want {
		t.Errorf("Hash() = %q, want %q", got, want)
	}
}

func newTestChecker(t *testing.T, handler http.Handler) (*Checker, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	c := &Checker{
		client:       &http.Client{Timeout: time.Second},
		gravatarBase: srv.URL + "/avatar/",
		hibpBase:     srv.URL + "/breachedaccount/",
		hibpKey:      "test-key",
		hibpEnabled:  true,
		logger:       zap.NewNop(),
	}
	return c, srv
}

func TestGravatarFound(t *testing.T) {
	c, srv := newTestChecker(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/avatar/") {
			w.WriteHeader(http.StatusOK)
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))

	got := c.gravatar(context.Background(), "bob@example.com")
	if got == nil {
		t.Fatal("expected gravatar URL, got nil")
	}
	if !strings.HasPrefix(*got, srv.URL+"/avatar/") {
		t.Errorf("unexpected URL %q", *got)
	}
	if !strings.HasSuffix(*got, "?d=404") {
		t.Errorf("URL %q should request 404 for missing avatars", *got)
	}
}

func TestGravatarMissing(t *testing.T) {
	c, _ := newTestChecker(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))

	if got := c.gravatar(context.Background(), "bob@example.com"); got != nil {
		t.Errorf("expected nil for missing avatar, got %q", *got)
	}
}

func TestHaveIBeenPwned(t *testing.T) {
	tests := []struct {
		name   string
		status int
		want   *bool
	}{
		{"breached", http.StatusOK, boolPtr(true)},
		{"clean", http.StatusNotFound, boolPtr(false)},
		{"rate limited", http.StatusTooManyRequests, nil},
		{"server error", http.StatusInternalServerError, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var gotKey string
			c, _ := newTestChecker(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				gotKey = r.Header.Get("hibp-api-key")
				w.WriteHeader(tt.status)
			}))

			got := c.haveIBeenPwned(context.Background(), "bob@example.com")
			if gotKey != "test-key" {
				t.Errorf("hibp-api-key header = %q, want %q", gotKey, "test-key")
			}
			if (got == nil) != (tt.want == nil) {
				t.Fatalf("got %v, want %v", got, tt.want)
			}
			if got != nil && *got != *tt.want {
				t.Errorf("got %v, want %v", *got, *tt.want)
			}
		})
	}
}

func TestHaveIBeenPwnedDisabled(t *testing.T) {
	var called bool
	c, _ := newTestChecker(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	c.hibpEnabled = false

	if got := c.haveIBeenPwned(context.Background(), "bob@example.com"); got != nil {
		t.Errorf("disabled lookup should return nil, got %v", *got)
	}
	if called {
		t.Error("disabled lookup must not hit the API")
	}
}

func TestCheckAggregatesSignals(t *testing.T) {
	c, _ := newTestChecker(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasPrefix(r.URL.Path, "/avatar/"):
			w.WriteHeader(http.StatusOK)
		case strings.HasPrefix(r.URL.Path, "/breachedaccount/"):
			w.WriteHeader(http.StatusNotFound)
		default:
			w.WriteHeader(http.StatusBadRequest)
		}
	}))

	details := c.Check(context.Background(), "admin", "mailinator.com")
	if !details.IsDisposable {
		t.Error("mailinator.com should be disposable")
	}
	if !details.IsRoleAccount {
		t.Error("admin should be a role account")
	}
	if details.IsFreeEmail {
		t.Error("mailinator.com is not a free mailbox provider")
	}
	if details.GravatarURL == nil {
		t.Error("expected gravatar URL")
	}
	if details.IsBreached == nil || *details.IsBreached {
		t.Error("expected is_breached=false from 404")
	}
}

func boolPtr(b bool) *bool { return &b }
