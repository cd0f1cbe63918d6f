package economy

import (
	"testing"
	"time"
)

func TestNormalizeContent(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"Hello World", "hello world"},
		{"  HELLO   world  ", "hello world"},
		{"one\ttwo\nthree", "one two three"},
		{"", ""},
	}
	for _, tc := range cases {
		if got := NormalizeContent(tc.in); got != tc.want {
			t.Fatalf("NormalizeContent(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestFingerprintStableAcrossFormatting(t *testing.T) {
	a := FingerprintContent(NormalizeContent("Hello   There"))
	b := FingerprintContent(NormalizeContent("hello there"))
	if a != b {
		t.Fatalf("formatting variants fingerprint differently: %s vs %s", a, b)
	}
	c := FingerprintContent(NormalizeContent("hello friend"))
	if a == c {
		t.Fatalf("distinct content collided: %s", a)
	}
}

func TestContentViolation(t *testing.T) {
	cases := []struct {
		content string
		want    string
	}{
		{"a perfectly normal message", ""},
		{"look at https://example.com", ReasonLink},
		{"http://sketchy.io free stuff", ReasonLink},
		{"join discord.gg/abc now", ReasonLink},
		{"discord.com/invite/xyz", ReasonLink},
		{"visit example.org sometime", ReasonLink},
		{"you absolute badword", ReasonBlacklist},
		{"what a slur that was", ReasonBlacklist},
	}
	for _, tc := range cases {
		if got := contentViolation(NormalizeContent(tc.content)); got != tc.want {
			t.Fatalf("contentViolation(%q) = %q, want %q", tc.content, got, tc.want)
		}
	}
}

func TestParseDuration(t *testing.T) {
	cases := []struct {
		in   string
		want time.Duration
	}{
		{"30s", 30 * time.Second},
		{"5m", 5 * time.Minute},
		{"2h", 2 * time.Hour},
		{"1d", 24 * time.Hour},
		{" 10M ", 10 * time.Minute},
	}
	for _, tc := range cases {
		got, err := ParseDuration(tc.in)
		if err != nil {
			t.Fatalf("ParseDuration(%q): %v", tc.in, err)
		}
		if got != tc.want {
			t.Fatalf("ParseDuration(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}
	for _, bad := range []string{"", "d", "10", "3w", "-5m", "0s", "x5m"} {
		if _, err := ParseDuration(bad); err == nil {
			t.Fatalf("ParseDuration(%q) should fail", bad)
		}
	}
}

func TestNextDailyTime(t *testing.T) {
	loc := time.UTC
	before := time.Date(2026, 3, 14, 20, 0, 0, 0, loc)
	got := NextDailyTime(before, loc, 21, 0)
	want := time.Date(2026, 3, 14, 21, 0, 0, 0, loc)
	if !got.Equal(want) {
		t.Fatalf("before target: got %v, want %v", got, want)
	}

	at := time.Date(2026, 3, 14, 21, 0, 0, 0, loc)
	got = NextDailyTime(at, loc, 21, 0)
	want = time.Date(2026, 3, 15, 21, 0, 0, 0, loc)
	if !got.Equal(want) {
		t.Fatalf("at target: got %v, want %v", got, want)
	}

	after := time.Date(2026, 3, 14, 22, 30, 0, 0, loc)
	got = NextDailyTime(after, loc, 21, 0)
	if !got.Equal(want) {
		t.Fatalf("after target: got %v, want %v", got, want)
	}
}
