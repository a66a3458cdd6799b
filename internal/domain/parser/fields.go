package parser

import (
	"math"
	"regexp"
	"strconv"
	"strings"
)

var (
	minutesTimePattern = regexp.MustCompile(`^(\d+):(\d{1,2})\.(\d{1,2})$`)
	secondsTimePattern = regexp.MustCompile(`^(\d+)\.(\d{1,2})$`)
	datePattern        = regexp.MustCompile(`(\d{2})/(\d{2})/(\d{4})`)
	pointsPattern      = regexp.MustCompile(`\d{1,3}(?: \d{3})+|\d+`)
)

const (
	pointsMarker = "pts"
	// maxTimeSeconds bounds accepted times; nothing in a results table
	// comes close to a thousand minutes.
	maxTimeSeconds = 1000 * 60
)

// ParseTime converts a swim time cell to seconds. Accepted shapes are
// "m:ss.cc" and "ss.cc"; a one-digit fraction is read as tenths ("5" -> 50
// hundredths). The value is built from integer hundredths so that equal
// notations always produce the same float64.
func ParseTime(s string) (float64, bool) {
	s = Normalize(s)

	var minutes, seconds int
	var fraction string
	var err error
	if m := minutesTimePattern.FindStringSubmatch(s); m != nil {
		if minutes, err = strconv.Atoi(m[1]); err != nil {
			return 0, false
		}
		if seconds, err = strconv.Atoi(m[2]); err != nil || seconds >= 60 {
			return 0, false
		}
		fraction = m[3]
	} else if m := secondsTimePattern.FindStringSubmatch(s); m != nil {
		if seconds, err = strconv.Atoi(m[1]); err != nil {
			return 0, false
		}
		fraction = m[2]
	} else {
		return 0, false
	}
	if minutes > maxTimeSeconds/60 || seconds > maxTimeSeconds {
		return 0, false
	}

	if len(fraction) == 1 {
		fraction += "0"
	}
	hundredths, err := strconv.Atoi(fraction)
	if err != nil {
		return 0, false
	}

	total := (int64(minutes)*60+int64(seconds))*100 + int64(hundredths)
	if total <= 0 || total > maxTimeSeconds*100 {
		return 0, false
	}
	return float64(total) / 100, true
}

// FormatTime renders seconds back to "m:ss.cc" (or "ss.cc" under a minute).
func FormatTime(seconds float64) string {
	total := int64(math.Round(seconds * 100))
	minutes := total / 6000
	rest := total % 6000
	if minutes == 0 {
		return strconv.FormatInt(rest/100, 10) + "." + twoDigits(rest%100)
	}
	return strconv.FormatInt(minutes, 10) + ":" + twoDigits(rest/100) + "." + twoDigits(rest%100)
}

func twoDigits(n int64) string {
	if n < 10 {
		return "0" + strconv.FormatInt(n, 10)
	}
	return strconv.FormatInt(n, 10)
}

// ParseDate finds a DD/MM/YYYY date in s and returns it as YYYY-MM-DD.
func ParseDate(s string) (string, bool) {
	m := datePattern.FindStringSubmatch(s)
	if m == nil {
		return "", false
	}
	return m[3] + "-" + m[2] + "-" + m[1], true
}

// ParsePoints extracts ranking points from a cell mentioning "pts".
// Digit groups separated by a space ("1 012 pts") are joined.
func ParsePoints(s string) (int, bool) {
	text := Normalize(s)
	if !strings.Contains(fold(text), pointsMarker) {
		return 0, false
	}
	m := pointsPattern.FindString(text)
	if m == "" {
		return 0, false
	}
	points, err := strconv.Atoi(strings.ReplaceAll(m, " ", ""))
	if err != nil {
		return 0, false
	}
	return points, true
}
