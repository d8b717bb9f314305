package normalize

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
)

// Money is an amount in centavos.
type Money int64

var (
	ErrEmptyAmount   = errors.New("empty amount")
	ErrInvalidAmount = errors.New("invalid amount")

	reThousandsDot   = regexp.MustCompile(`^\d{1,3}(\.\d{3})+$`)
	reThousandsComma = regexp.MustCompile(`^\d{1,3}(,\d{3})+$`)
)

// FromReais converts a float amount into centavos, rounding half away from zero.
func FromReais(v float64) Money {
	return Money(math.Round(v * 100))
}

// Reais returns the amount as a float.
func (m Money) Reais() float64 {
	return float64(m) / 100
}

// Format renders the amount in Brazilian notation: 1500.5 -> "1.500,50".
func (m Money) Format() string {
	neg := m < 0
	if neg {
		m = -m
	}
	ints := strconv.FormatInt(int64(m)/100, 10)
	var b strings.Builder
	for i, r := range ints {
		if i > 0 && (len(ints)-i)%3 == 0 {
			b.WriteByte('.')
		}
		b.WriteRune(r)
	}
	out := fmt.Sprintf("%s,%02d", b.String(), int64(m)%100)
	if neg {
		return "-" + out
	}
	return out
}

// Annual multiplies a monthly amount by twelve.
func (m Money) Annual() Money {
	return m * 12
}

// ParseBRL accepts JSON numbers and strings such as "1.500,00", "R$ 1500,5", "1500.00" or "1,500.00".
func ParseBRL(v any) (Money, error) {
	switch x := v.(type) {
	case nil:
		return 0, ErrEmptyAmount
	case float64:
		return checkAmount(FromReais(x))
	case float32:
		return checkAmount(FromReais(float64(x)))
	case int:
		return checkAmount(Money(int64(x) * 100))
	case int64:
		return checkAmount(Money(x * 100))
	case json.Number:
		return ParseBRL(x.String())
	case string:
		return parseBRLString(x)
	default:
		return 0, fmt.Errorf("%w: unsupported type %T", ErrInvalidAmount, v)
	}
}

func checkAmount(m Money) (Money, error) {
	if m < 0 {
		return 0, fmt.Errorf("%w: negative", ErrInvalidAmount)
	}
	return m, nil
}

func parseBRLString(s string) (Money, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(strings.TrimPrefix(s, "R$"), "r$")
	s = strings.Map(func(r rune) rune {
		if r == ' ' || r == '\u00a0' {
			return -1
		}
		return r
	}, s)
	if s == "" {
		return 0, ErrEmptyAmount
	}

	lastDot := strings.LastIndexByte(s, '.')
	lastComma := strings.LastIndexByte(s, ',')
	var normalized string
	switch {
	case lastDot >= 0 && lastComma >= 0:
		// whichever separator comes last is the decimal one
		if lastComma > lastDot {
			normalized = strings.ReplaceAll(s, ".", "")
			normalized = strings.Replace(normalized, ",", ".", 1)
		} else {
			normalized = strings.ReplaceAll(s, ",", "")
		}
	case lastComma >= 0:
		if reThousandsComma.MatchString(s) && len(s)-lastComma-1 == 3 && strings.Count(s, ",") > 1 {
			normalized = strings.ReplaceAll(s, ",", "")
		} else {
			normalized = strings.Replace(s, ",", ".", 1)
		}
	case lastDot >= 0:
		if reThousandsDot.MatchString(s) {
			normalized = strings.ReplaceAll(s, ".", "")
		} else {
			normalized = s
		}
	default:
		normalized = s
	}

	f, err := strconv.ParseFloat(normalized, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
	}
	return checkAmount(FromReais(f))
}

// PercentOf returns m as a percentage of base, rounded to two decimals.
func (m Money) PercentOf(base float64) float64 {
	if base <= 0 {
		return 0
	}
	return math.Round(m.Reais()/base*100*100) / 100
}

// FormatDecimal renders a float with a comma decimal separator and two places.
func FormatDecimal(v float64) string {
	return FromReais(v).Format()
}
