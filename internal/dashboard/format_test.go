package dashboard

import (
	"testing"
	"time"
)

func TestFormatPrice(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"50123.456", "50123.46"},
		{"0.1", "0.10"},
		{"", "-"},
		{"abc", "-"},
	}
	for _, c := range cases {
		if got := FormatPrice(c.in); got != c.want {
			t.Errorf("FormatPrice(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestFormatQty(t *testing.T) {
	if got := FormatQty("0.5"); got != "0.5000" {
		t.Errorf("FormatQty(0.5) = %q, want 0.5000", got)
	}
	if got := FormatQty(""); got != "-" {
		t.Errorf("FormatQty(empty) = %q, want -", got)
	}
}

func TestFormatPercent(t *testing.T) {
	if got := FormatPercent("1.518"); got != "+1.52%" {
		t.Errorf("FormatPercent = %q, want +1.52%%", got)
	}
	if got := FormatPercent("-0.4"); got != "-0.40%" {
		t.Errorf("FormatPercent = %q, want -0.40%%", got)
	}
}

func TestFormatVolume(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"2500000000", "2.5B"},
		{"31500000", "31.5M"},
		{"4200", "4.2K"},
		{"512.345", "512.35"},
	}
	for _, c := range cases {
		if got := FormatVolume(c.in); got != c.want {
			t.Errorf("FormatVolume(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestTimeLabel(t *testing.T) {
	ts := time.Date(2025, 6, 1, 14, 5, 9, 0, time.UTC).UnixMilli()
	if got := TimeLabel(ts, time.UTC); got != "14:05:09" {
		t.Errorf("TimeLabel = %q, want 14:05:09", got)
	}
}
