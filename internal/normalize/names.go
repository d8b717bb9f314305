package normalize

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var particles = map[string]bool{
	"da": true, "das": true, "de": true, "do": true, "dos": true, "e": true, "di": true, "du": true,
}

// TitleName capitalizes a personal name, keeping Portuguese particles lower case.
func TitleName(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	if s == "" {
		return ""
	}
	caser := cases.Title(language.BrazilianPortuguese)
	words := strings.Split(caser.String(s), " ")
	for i, w := range words {
		if i > 0 && particles[strings.ToLower(w)] {
			words[i] = strings.ToLower(w)
		}
	}
	return strings.Join(words, " ")
}

// FormatCPF renders eleven digits as 000.000.000-00; anything else is returned trimmed.
func FormatCPF(s string) string {
	d := digitsOnly(s)
	if len(d) != 11 {
		return strings.TrimSpace(s)
	}
	return d[0:3] + "." + d[3:6] + "." + d[6:9] + "-" + d[9:11]
}

func digitsOnly(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// JoinNames renders "A", "A e B" or "A, B e C".
func JoinNames(names []string) string {
	switch len(names) {
	case 0:
		return ""
	case 1:
		return names[0]
	}
	return strings.Join(names[:len(names)-1], ", ") + " e " + names[len(names)-1]
}
