package extract

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"orderscraper/lib/htmlutil"
)

var ordinalSuffix = regexp.MustCompile(`(\d)(st|nd|rd|th)\b`)

// ParseDate parses a rendered order date. Dates that omit the year resolve to the
// most recent occurrence that is not after `now`.
func ParseDate(text string, layouts []string, prefixes []string, now time.Time) (time.Time, error) {
	cleaned := strings.ToLower(htmlutil.CleanText(text))
	for _, p := range prefixes {
		p = strings.ToLower(strings.TrimSpace(p))
		if p != "" && strings.HasPrefix(cleaned, p) {
			cleaned = strings.TrimSpace(cleaned[len(p):])
			break
		}
	}
	cleaned = ordinalSuffix.ReplaceAllString(cleaned, "$1")
	cleaned = strings.TrimSpace(strings.Trim(cleaned, ":-"))

	for _, layout := range layouts {
		t, err := time.ParseInLocation(layout, cleaned, now.Location())
		if err != nil {
			continue
		}
		if t.Year() != 0 {
			return t, nil
		}

		// 29 Feb only exists in leap years, so walk back until the day survives
		// time.Date normalization.
		for year := now.Year(); year > now.Year()-8; year-- {
			inferred := time.Date(year, t.Month(), t.Day(), t.Hour(), t.Minute(), 0, 0, now.Location())
			if inferred.Month() != t.Month() || inferred.Day() != t.Day() || inferred.After(now) {
				continue
			}
			return inferred, nil
		}
		return time.Time{}, fmt.Errorf("no recent year has date '%s'", text)
	}
	return time.Time{}, fmt.Errorf("unrecognized date '%s'", text)
}

var (
	hoursRegex   = regexp.MustCompile(`(\d+)\s*(?:h|hr|hrs|hour|hours)\b`)
	minutesRegex = regexp.MustCompile(`(\d+)\s*(?:m|min|mins|minute|minutes)\b`)
)

// ParseMinutes reads durations like "Delivered in 12 minutes" or "1 hr 5 mins".
func ParseMinutes(text string) (int, bool) {
	text = strings.ToLower(text)
	total := 0
	found := false
	if m := hoursRegex.FindStringSubmatch(text); m != nil {
		hours, _ := strconv.Atoi(m[1])
		total += hours * 60
		found = true
	}
	if m := minutesRegex.FindStringSubmatch(text); m != nil {
		minutes, _ := strconv.Atoi(m[1])
		total += minutes
		found = true
	}
	return total, found
}

var firstInt = regexp.MustCompile(`\d+`)

// ParseCount returns the first integer in the text ("5 items", "Qty: 2", "2 x").
func ParseCount(text string) (int, bool) {
	m := firstInt.FindString(text)
	if m == "" {
		return 0, false
	}
	n, err := strconv.Atoi(m)
	if err != nil {
		return 0, false
	}
	return n, true
}
