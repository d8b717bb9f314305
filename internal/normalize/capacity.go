package normalize

// Capacity is the civil-law capacity bracket of a party.
type Capacity int

const (
	// CapacityUnknown is used when no birth date could be parsed; treated as absolutely incapable.
	CapacityUnknown Capacity = iota
	CapacityAbsolute
	CapacityRelative
	CapacityFull
)

const (
	AgeRelativeCapacity = 16
	AgeMajority         = 18
)

// CapacityForAge maps an age in years to its bracket.
func CapacityForAge(age int) Capacity {
	switch {
	case age < AgeRelativeCapacity:
		return CapacityAbsolute
	case age < AgeMajority:
		return CapacityRelative
	default:
		return CapacityFull
	}
}

// CapacityPhrase returns how the minors appear in the qualification paragraph.
// Under sixteen a child is represented; from sixteen to seventeen assisted; adults need neither.
func CapacityPhrase(deps []Dependent) string {
	var represented, assisted int
	for _, d := range deps {
		switch d.Capacity {
		case CapacityAbsolute, CapacityUnknown:
			represented++
		case CapacityRelative:
			assisted++
		}
	}
	plural := represented+assisted > 1
	switch {
	case represented > 0 && assisted > 0:
		return "neste ato representados e assistidos"
	case represented > 0 && plural:
		return "neste ato representados"
	case represented > 0:
		return "neste ato representado(a)"
	case assisted > 0 && plural:
		return "neste ato assistidos"
	case assisted > 0:
		return "neste ato assistido(a)"
	}
	return ""
}
