package normalize

import "strings"

var (
	units = []string{"", "um", "dois", "três", "quatro", "cinco", "seis", "sete", "oito", "nove",
		"dez", "onze", "doze", "treze", "quatorze", "quinze", "dezesseis", "dezessete", "dezoito", "dezenove"}
	tens     = []string{"", "", "vinte", "trinta", "quarenta", "cinquenta", "sessenta", "setenta", "oitenta", "noventa"}
	hundreds = []string{"", "cento", "duzentos", "trezentos", "quatrocentos", "quinhentos",
		"seiscentos", "setecentos", "oitocentos", "novecentos"}
)

type scale struct {
	singular, plural string
}

// index i is 1000^i
var scales = []scale{
	{"", ""},
	{"mil", "mil"},
	{"milhão", "milhões"},
	{"bilhão", "bilhões"},
}

// below1000 spells 1..999.
func below1000(n int64) string {
	if n == 100 {
		return "cem"
	}
	var parts []string
	if h := n / 100; h > 0 {
		parts = append(parts, hundreds[h])
	}
	rest := n % 100
	switch {
	case rest == 0:
	case rest < 20:
		parts = append(parts, units[rest])
	default:
		parts = append(parts, tens[rest/10])
		if u := rest % 10; u > 0 {
			parts = append(parts, units[u])
		}
	}
	return strings.Join(parts, " e ")
}

// SpellInteger spells a non-negative integer in Brazilian Portuguese.
func SpellInteger(n int64) string {
	if n == 0 {
		return "zero"
	}
	var groups []int64
	for v := n; v > 0; v /= 1000 {
		groups = append(groups, v%1000)
	}
	if len(groups) > len(scales) {
		return ""
	}

	var words []string
	var lastIdx int
	for i := range groups {
		if groups[i] != 0 {
			lastIdx = i
			break
		}
	}
	for i := len(groups) - 1; i >= 0; i-- {
		g := groups[i]
		if g == 0 {
			continue
		}
		var w string
		switch {
		case i == 1 && g == 1:
			w = "mil"
		case i == 0:
			w = below1000(g)
		case g == 1:
			w = "um " + scales[i].singular
		default:
			w = below1000(g) + " " + scales[i].plural
		}
		if len(words) > 0 {
			if i == lastIdx && (g < 100 || g%100 == 0) {
				words = append(words, "e")
			}
		}
		words = append(words, w)
	}
	return strings.Join(words, " ")
}

// Extenso spells an amount of money: 1500000 centavos -> "quinze mil reais".
func Extenso(m Money) string {
	if m < 0 {
		return ""
	}
	reais := int64(m) / 100
	cents := int64(m) % 100

	var b strings.Builder
	if reais > 0 || cents == 0 {
		b.WriteString(SpellInteger(reais))
		switch {
		case reais == 1:
			b.WriteString(" real")
		case reais >= 1_000_000 && reais%1_000_000 == 0:
			b.WriteString(" de reais")
		default:
			b.WriteString(" reais")
		}
	}
	if cents > 0 {
		if b.Len() > 0 {
			b.WriteString(" e ")
		}
		b.WriteString(SpellInteger(cents))
		if cents == 1 {
			b.WriteString(" centavo")
		} else {
			b.WriteString(" centavos")
		}
	}
	return b.String()
}
