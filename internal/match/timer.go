package match

import (
	"fmt"
	"regexp"
	"strconv"
)

var (
	timerMMSS = regexp.MustCompile(`^(\d+):(\d\d)$`)
	nonDigits = regexp.MustCompile(`[^0-9]`)
)

// ParseTimer converts a timer display string to seconds. Both MM:SS and a
// raw digit count are accepted; anything else parses to zero.
func ParseTimer(s string) int {
	if s == "" {
		return 0
	}
	if m := timerMMSS.FindStringSubmatch(s); m != nil {
		mins, _ := strconv.Atoi(m[1])
		secs, _ := strconv.Atoi(m[2])
		return mins*60 + secs
	}
	digits := nonDigits.ReplaceAllString(s, "")
	if digits == "" {
		return 0
	}
	n, err := strconv.Atoi(digits)
	if err != nil {
		return 0
	}
	return n
}

// FormatTimer renders seconds as M:SS, clamping negatives to 0:00.
func FormatTimer(secs int) string {
	if secs <= 0 {
		return "0:00"
	}
	return fmt.Sprintf("%d:%02d", secs/60, secs%60)
}

// ParseHP extracts a numeric HP value from raw card data, stripping any
// non-numeric characters. Absent or unparseable input yields zero.
func ParseHP(raw string) int {
	digits := nonDigits.ReplaceAllString(raw, "")
	if digits == "" {
		return 0
	}
	n, err := strconv.Atoi(digits)
	if err != nil {
		return 0
	}
	return n
}
