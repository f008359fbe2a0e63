package util

import (
	"testing"

	"inboxsweep/internal/model"
)

func TestParseFrom_Basic(t *testing.T) {
	tests := []struct {
		in       string
		wantName string
		want     string
	}{
		{`Name <User@Example.COM>`, "Name", "user@example.com"},
		{`"Acme Weekly" <news+tag@Send.Acme.com>`, "Acme Weekly", "news+tag@send.acme.com"},
		{`user.name@EXAMPLE.com`, "User Name", "user.name@example.com"},
		{`"A" <not-an-email> , "B" <c@D.com>`, "B", "c@d.com"},                        // list fallback picks first valid
		{`Shop Team shop@deals.example.org (via list)`, "", "shop@deals.example.org"}, // free-text scan
		{`bad address`, "bad address", model.UnknownEmail},
		{``, model.UnknownName, model.UnknownEmail},
	}
	for _, tc := range tests {
		name, email := ParseFrom(tc.in)
		if email != tc.want {
			t.Errorf("ParseFrom(%q) email = %q; want %q", tc.in, email, tc.want)
		}
		if tc.wantName != "" && name != tc.wantName {
			t.Errorf("ParseFrom(%q) name = %q; want %q", tc.in, name, tc.wantName)
		}
	}
}

func TestRootDomain(t *testing.T) {
	tests := map[string]string{
		"send.vendor.com":   "vendor.com",
		"vendor.com":        "vendor.com",
		"a.b.c.example.org": "example.org",
		"localhost":         "localhost",
		"MAIL.Example.COM.": "example.com",
	}
	for in, want := range tests {
		if got := RootDomain(in); got != want {
			t.Errorf("RootDomain(%q) = %q; want %q", in, got, want)
		}
	}
}

func TestIsUnresolved(t *testing.T) {
	tests := []struct {
		email string
		want  bool
	}{
		{"", true},
		{model.UnknownEmail, true},
		{"foo", true},
		{"foo@", true},
		{"@vendor.com", true},
		{"news@vendor.com", false},
	}
	for _, tt := range tests {
		if got := IsUnresolved(tt.email); got != tt.want {
			t.Errorf("IsUnresolved(%q) = %v; want %v", tt.email, got, tt.want)
		}
	}
}

func TestDomainOf(t *testing.T) {
	if got := DomainOf("News@Send.Vendor.com"); got != "send.vendor.com" {
		t.Errorf("DomainOf = %q", got)
	}
	if got := DomainOf(model.UnknownEmail); got != "" {
		t.Errorf("DomainOf(sentinel) = %q; want empty", got)
	}
	if got := DomainOf("broken@"); got != "" {
		t.Errorf("DomainOf(broken@) = %q; want empty", got)
	}
}

func TestParseListUnsubscribe(t *testing.T) {
	u := ParseListUnsubscribe(`<mailto:unsub@example.com?subject=stop>, <https://example.com/u/1>`, "List-Unsubscribe=One-Click")
	if u == nil {
		t.Fatal("expected structured unsubscribe")
	}
	if u.URL != "https://example.com/u/1" || u.Mailto != "mailto:unsub@example.com?subject=stop" || !u.OneClick {
		t.Fatalf("unexpected %+v", u)
	}

	u = ParseListUnsubscribe(`<mailto:unsub@example.com>`, "List-Unsubscribe=One-Click")
	if u == nil || u.URL != "" || u.OneClick {
		t.Fatalf("mailto-only header must not be one-click: %+v", u)
	}

	if ParseListUnsubscribe("", "") != nil {
		t.Fatal("empty header should yield nil")
	}
}

func TestIsGenericDomain(t *testing.T) {
	if !IsGenericDomain("Gmail.com") {
		t.Error("gmail.com should be generic")
	}
	if IsGenericDomain("vendor.com") {
		t.Error("vendor.com should not be generic")
	}
}
