package common

import (
	"html"
	"regexp"
	"strconv"
	"strings"
)

var tagPattern = regexp.MustCompile(`<[^>]+>`)

// CleanHTMLText strips markup and collapses whitespace in upstream
// descriptions, which often arrive with embedded tags and entities.
func CleanHTMLText(raw string) string {
	value := strings.TrimSpace(raw)
	value = html.UnescapeString(value)
	value = tagPattern.ReplaceAllString(value, " ")
	value = strings.Join(strings.Fields(value), " ")
	return value
}

// ParseYear extracts the year from an ISO-ish date string (yyyy-mm-dd,
// yyyy/mm/dd or a bare year). Returns 0 when none is present.
func ParseYear(date string) int {
	date = strings.TrimSpace(date)
	if len(date) < 4 {
		return 0
	}
	year, err := strconv.Atoi(date[:4])
	if err != nil || year < 1900 || year > 2200 {
		return 0
	}
	return year
}

// NormalizeDate converts yyyy/mm/dd style separators to the dashed
// form and trims a trailing time component.
func NormalizeDate(date string) string {
	date = strings.TrimSpace(date)
	if idx := strings.IndexAny(date, " T"); idx > 0 {
		date = date[:idx]
	}
	return strings.ReplaceAll(date, "/", "-")
}
