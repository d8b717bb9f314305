package normalize

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var ErrInvalidDate = errors.New("invalid date")

var dateLayouts = []string{
	"02/01/2006",
	"2/1/2006",
	"2006-01-02",
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"02-01-2006",
	"02.01.2006",
}

var monthNames = map[string]time.Month{
	"janeiro": time.January, "fevereiro": time.February, "março": time.March, "marco": time.March,
	"abril": time.April, "maio": time.May, "junho": time.June, "julho": time.July,
	"agosto": time.August, "setembro": time.September, "outubro": time.October,
	"novembro": time.November, "dezembro": time.December,
}

var monthByNumber = []string{"", "janeiro", "fevereiro", "março", "abril", "maio", "junho",
	"julho", "agosto", "setembro", "outubro", "novembro", "dezembro"}

var reLongDate = regexp.MustCompile(`(?i)^(\d{1,2})\s*(?:º|o)?\s+de\s+([a-zç]+)\s+de\s+(\d{4})$`)

// ParseDate accepts dd/mm/yyyy, ISO dates and long-form dates such as "10 de março de 2015".
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, ErrInvalidDate
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), nil
		}
	}
	if m := reLongDate.FindStringSubmatch(strings.ToLower(s)); m != nil {
		day, _ := strconv.Atoi(m[1])
		month, ok := monthNames[m[2]]
		year, _ := strconv.Atoi(m[3])
		if ok && day >= 1 && day <= 31 {
			t := time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
			if t.Day() == day {
				return t, nil
			}
		}
	}
	return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
}

// AgeAt returns completed years between birth and ref.
func AgeAt(birth, ref time.Time) int {
	age := ref.Year() - birth.Year()
	if ref.Month() < birth.Month() || (ref.Month() == birth.Month() && ref.Day() < birth.Day()) {
		age--
	}
	if age < 0 {
		return 0
	}
	return age
}

// FormatDate renders dd/mm/yyyy.
func FormatDate(t time.Time) string {
	return t.Format("02/01/2006")
}

// FormatLongDate renders "17 de outubro de 2026".
func FormatLongDate(t time.Time) string {
	return fmt.Sprintf("%d de %s de %d", t.Day(), monthByNumber[t.Month()], t.Year())
}
