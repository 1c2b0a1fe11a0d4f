package dashboard

import (
	"fmt"
	"strconv"
	"time"
)

// FormatPrice renders a price string to two decimal places, or "-" when
// the value is missing or unparseable.
func FormatPrice(s string) string {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || v == 0 {
		return "-"
	}
	return fmt.Sprintf("%.2f", v)
}

// FormatQty renders a quantity string to four decimal places, or "-" when
// missing.
func FormatQty(s string) string {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return "-"
	}
	return fmt.Sprintf("%.4f", v)
}

// FormatPercent renders a signed percent change, e.g. "+1.52%".
func FormatPercent(s string) string {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return "-"
	}
	return fmt.Sprintf("%+.2f%%", v)
}

// FormatVolume formats a 24h volume with B/M/K suffixes.
func FormatVolume(s string) string {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return "-"
	}
	switch {
	case v >= 1e9:
		return fmt.Sprintf("%.1fB", v/1e9)
	case v >= 1e6:
		return fmt.Sprintf("%.1fM", v/1e6)
	case v >= 1e3:
		return fmt.Sprintf("%.1fK", v/1e3)
	default:
		return fmt.Sprintf("%.2f", v)
	}
}

// TimeLabel renders a Unix-millisecond timestamp as a local time-of-day
// label for chart axes and trade rows.
func TimeLabel(unixMilli int64, loc *time.Location) string {
	if loc == nil {
		loc = time.Local
	}
	return time.UnixMilli(unixMilli).In(loc).Format("15:04:05")
}
