package billing

import (
	"fmt"
	"time"
)

// FormatDuration renders a duration as an HH:MM:SS countdown/elapsed string
// for display. Negative durations render as zero.
func FormatDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	total := int64(d / time.Second)
	h := total / 3600
	m := (total % 3600) / 60
	s := total % 60
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}
