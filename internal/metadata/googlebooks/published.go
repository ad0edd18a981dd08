package googlebooks

import (
	"regexp"
	"strconv"

	"github.com/bookclubapp/bookclub-server/internal/domain"
)

// Google Books publishedDate is ISO-shaped: "2004", "2004-06" or "2004-06-01".

var (
	yearPrefix  = regexp.MustCompile(`^(\d{4})`)
	monthPrefix = regexp.MustCompile(`^\d{4}-(\d{2})`)
)

func publishedYear(value string) int {
	match := yearPrefix.FindStringSubmatch(value)
	if match == nil {
		return 0
	}
	year, err := strconv.Atoi(match[1])
	if err != nil || year < 1900 || year > 2100 {
		return 0
	}
	return year
}

func publishedMonth(value string) string {
	match := monthPrefix.FindStringSubmatch(value)
	if match == nil {
		return ""
	}
	idx, err := strconv.Atoi(match[1])
	if err != nil || idx < 1 || idx > 12 {
		return ""
	}
	return domain.MonthNames()[idx-1]
}
