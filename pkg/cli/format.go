package cli

import (
	"fmt"
	"time"
)

// FormatDuration formats a duration as a compact human-readable string,
// e.g. "45s" or "12m05s".
func FormatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	mins := int(d.Minutes())
	secs := int(d.Seconds()) - mins*60
	return fmt.Sprintf("%dm%02ds", mins, secs)
}

// FormatHeartRate formats a heart rate reading, rendering zero (no
// sample) as a dash.
func FormatHeartRate(bpm int) string {
	if bpm <= 0 {
		return "-"
	}
	return fmt.Sprintf("%d bpm", bpm)
}
