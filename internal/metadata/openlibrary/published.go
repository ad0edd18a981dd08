package openlibrary

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/bookclubapp/bookclub-server/internal/domain"
)

// Open Library publish dates are free text ("Jun 01, 2004", "2004", "June
// 2004"), so parsing is deliberately loose.

var yearLoose = regexp.MustCompile(`\b(19|20)\d{2}\b`)

func publishedYearLoose(value string) int {
	match := yearLoose.FindString(value)
	if match == "" {
		return 0
	}
	year, err := strconv.Atoi(match)
	if err != nil || year < 1900 || year > 2100 {
		return 0
	}
	return year
}

func publishedMonthLoose(value string) string {
	raw := strings.TrimSpace(value)
	if raw == "" {
		return ""
	}
	lower := strings.ToLower(raw)
	for _, month := range domain.MonthNames() {
		if strings.Contains(lower, strings.ToLower(month)) {
			return month
		}
	}
	// Abbreviated month names ("Jun 01, 2004").
	for _, month := range domain.MonthNames() {
		if strings.Contains(lower, strings.ToLower(month[:3])) {
			return month
		}
	}
	return ""
}
